package sem

import (
	"fmt"
	"math"

	"semprep/domain/core"
	domainsem "semprep/domain/sem"

	"gonum.org/v1/gonum/mat"
)

type paramKind int

const (
	// kindBeta is a directed effect col -> row in the B matrix
	kindBeta paramKind = iota
	// kindPsi is a (co)variance in the symmetric Psi matrix
	kindPsi
)

type parameter struct {
	lval, op, rval string
	kind           paramKind
	row, col       int
	fixed          bool
	value          float64
}

func (p *parameter) key() [3]int {
	row, col := p.row, p.col
	if p.kind == kindPsi && col < row {
		row, col = col, row
	}
	return [3]int{int(p.kind), row, col}
}

// Model is a structural equation model in RAM form:
//
//	v = B v + e,  Cov(e) = Psi,  Sigma = F (I-B)^-1 Psi (I-B)^-T F'
//
// Observed variables come first in vars, so F selects the leading block.
type Model struct {
	observed  []string
	latent    []string
	vars      []string
	index     map[string]int
	params    []*parameter
	free      []int
	// variances are the positions in theta of free variances, kept >= 0
	variances []int
	// reference holds the scale-setting indicator of each latent
	reference map[string]string
}

// NewModel builds the parameter structure for parsed relations. Defaults:
// the first loading of every latent is fixed to 1; residual variances are
// free for endogenous variables and latents; observed exogenous variables
// get free variances and pairwise covariances; exogenous latents covary.
func NewModel(relations []Relation) (*Model, error) {
	m := &Model{
		index:     make(map[string]int),
		reference: make(map[string]string),
	}

	isLatent := make(map[string]bool)
	for _, r := range relations {
		if r.Op == domainsem.OpMeasurement && !isLatent[r.LHS] {
			isLatent[r.LHS] = true
			m.latent = append(m.latent, r.LHS)
		}
	}

	seen := make(map[string]bool)
	addObserved := func(name string) {
		if !isLatent[name] && !seen[name] {
			seen[name] = true
			m.observed = append(m.observed, name)
		}
	}
	endogenous := make(map[string]bool)
	for _, r := range relations {
		addObserved(r.LHS)
		for _, t := range r.RHS {
			addObserved(t.Name)
			switch r.Op {
			case domainsem.OpMeasurement:
				endogenous[t.Name] = true
			case domainsem.OpRegression:
				endogenous[r.LHS] = true
			}
			if t.Name == r.LHS && r.Op != domainsem.OpCovariance {
				return nil, core.NewModelSyntaxError(r.Line, fmt.Sprintf("%s cannot depend on itself", r.LHS))
			}
		}
	}
	if len(m.observed) == 0 {
		return nil, fmt.Errorf("%w: no observed variables", core.ErrInvalidModel)
	}

	m.vars = append(append([]string{}, m.observed...), m.latent...)
	for i, v := range m.vars {
		m.index[v] = i
	}

	keys := make(map[[3]int]bool)
	add := func(line int, p *parameter) error {
		k := p.key()
		if keys[k] {
			return core.NewModelSyntaxError(line, fmt.Sprintf("duplicate parameter %s %s %s", p.lval, p.op, p.rval))
		}
		keys[k] = true
		m.params = append(m.params, p)
		return nil
	}

	// measurement, then regressions, then explicit (co)variances
	for _, op := range []string{domainsem.OpMeasurement, domainsem.OpRegression, domainsem.OpCovariance} {
		for _, r := range relations {
			if r.Op != op {
				continue
			}
			for _, t := range r.RHS {
				p := &parameter{lval: r.LHS, op: r.Op, rval: t.Name}
				switch r.Op {
				case domainsem.OpMeasurement:
					p.kind, p.row, p.col = kindBeta, m.index[t.Name], m.index[r.LHS]
					if _, ok := m.reference[r.LHS]; !ok {
						m.reference[r.LHS] = t.Name
						if t.Fixed == nil {
							p.fixed, p.value = true, 1.0
						}
					}
				case domainsem.OpRegression:
					p.kind, p.row, p.col = kindBeta, m.index[r.LHS], m.index[t.Name]
				case domainsem.OpCovariance:
					p.kind, p.row, p.col = kindPsi, m.index[r.LHS], m.index[t.Name]
				}
				if t.Fixed != nil {
					p.fixed, p.value = true, *t.Fixed
				}
				if err := add(r.Line, p); err != nil {
					return nil, err
				}
			}
		}
	}

	variance := func(name string) *parameter {
		i := m.index[name]
		return &parameter{lval: name, op: domainsem.OpCovariance, rval: name, kind: kindPsi, row: i, col: i}
	}
	covariance := func(a, b string) *parameter {
		return &parameter{lval: a, op: domainsem.OpCovariance, rval: b, kind: kindPsi, row: m.index[a], col: m.index[b]}
	}

	var exoObserved, exoLatent []string
	for _, v := range m.vars {
		switch {
		case endogenous[v] || isLatent[v]:
			if isLatent[v] && !endogenous[v] {
				exoLatent = append(exoLatent, v)
			}
		default:
			exoObserved = append(exoObserved, v)
		}
	}

	for _, v := range m.vars {
		if endogenous[v] || isLatent[v] {
			if p := variance(v); !keys[p.key()] {
				_ = add(0, p)
			}
		}
	}
	for _, group := range [][]string{exoObserved, exoLatent} {
		for i, a := range group {
			for _, b := range group[i:] {
				var p *parameter
				if a == b {
					p = variance(a)
				} else {
					p = covariance(a, b)
				}
				if !keys[p.key()] {
					_ = add(0, p)
				}
			}
		}
	}

	for i, p := range m.params {
		if p.fixed {
			continue
		}
		if p.kind == kindPsi && p.row == p.col {
			m.variances = append(m.variances, len(m.free))
		}
		m.free = append(m.free, i)
	}
	if q, moments := len(m.free), m.Moments(); q > moments {
		return nil, fmt.Errorf("%w: %d free parameters for %d moments", core.ErrNotIdentified, q, moments)
	}
	return m, nil
}

// Observed returns the observed variable names in model order
func (m *Model) Observed() []string { return append([]string(nil), m.observed...) }

// Latent returns the latent variable names
func (m *Model) Latent() []string { return append([]string(nil), m.latent...) }

// NumFree returns the number of free parameters
func (m *Model) NumFree() int { return len(m.free) }

// Moments returns the number of distinct observed (co)variances
func (m *Model) Moments() int {
	p := len(m.observed)
	return p * (p + 1) / 2
}

// DegreesOfFreedom returns moments minus free parameters
func (m *Model) DegreesOfFreedom() int {
	return m.Moments() - m.NumFree()
}

// matrices fills B and Psi from the fixed values and the free vector theta
func (m *Model) matrices(theta []float64) (*mat.Dense, *mat.SymDense) {
	n := len(m.vars)
	beta := mat.NewDense(n, n, nil)
	psi := mat.NewSymDense(n, nil)

	k := 0
	for _, p := range m.params {
		v := p.value
		if !p.fixed {
			v = theta[k]
			k++
		}
		switch p.kind {
		case kindBeta:
			beta.Set(p.row, p.col, v)
		case kindPsi:
			psi.SetSym(p.row, p.col, v)
		}
	}
	return beta, psi
}

// startValues derives starting values from the observed covariance s:
// loadings from the covariance with the reference indicator, half of each
// observed variance for residuals, sample moments for exogenous variables.
func (m *Model) startValues(s *mat.SymDense) []float64 {
	p := len(m.observed)
	observedVar := func(name string) float64 {
		if i, ok := m.index[name]; ok && i < p {
			return s.At(i, i)
		}
		return 1.0
	}
	isObserved := func(i int) bool { return i < p }

	start := make([]float64, 0, len(m.free))
	for _, idx := range m.free {
		par := m.params[idx]
		v := 0.0
		switch {
		case par.op == domainsem.OpMeasurement:
			v = 1.0
			ref := m.reference[par.lval]
			ri, ok := m.index[ref]
			if ok && isObserved(ri) && isObserved(par.row) && s.At(ri, ri) > 0 {
				v = s.At(par.row, ri) / s.At(ri, ri)
			}
		case par.kind == kindPsi && par.row == par.col:
			name := m.vars[par.row]
			switch {
			case !isObserved(par.row):
				v = 0.5 * observedVar(m.reference[name])
			case m.isExogenousObserved(name):
				v = s.At(par.row, par.row)
			default:
				v = 0.5 * s.At(par.row, par.row)
			}
		case par.kind == kindPsi:
			if isObserved(par.row) && isObserved(par.col) &&
				m.isExogenousObserved(m.vars[par.row]) && m.isExogenousObserved(m.vars[par.col]) {
				v = s.At(par.row, par.col)
			}
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		start = append(start, v)
	}
	return start
}

// fallbackStart is a neutral second starting point: every free loading 1,
// regressions and covariances 0, half of the observed variance for every
// variance. Latents take half the variance of their reference indicator.
func (m *Model) fallbackStart(s *mat.SymDense) []float64 {
	p := len(m.observed)
	half := func(i int) float64 {
		if i < p {
			return 0.5 * s.At(i, i)
		}
		if ri, ok := m.index[m.reference[m.vars[i]]]; ok && ri < p {
			return 0.5 * s.At(ri, ri)
		}
		return 0.5
	}

	start := make([]float64, 0, len(m.free))
	for _, idx := range m.free {
		par := m.params[idx]
		v := 0.0
		switch {
		case par.op == domainsem.OpMeasurement:
			v = 1.0
		case par.kind == kindPsi && par.row == par.col:
			v = half(par.row)
		}
		start = append(start, v)
	}
	return start
}

// admissible reports whether theta is finite and every free variance is
// non-negative
func (m *Model) admissible(theta []float64) bool {
	for _, v := range theta {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	for _, k := range m.variances {
		if theta[k] < 0 {
			return false
		}
	}
	return true
}

func (m *Model) isExogenousObserved(name string) bool {
	i, ok := m.index[name]
	if !ok || i >= len(m.observed) {
		return false
	}
	for _, p := range m.params {
		if p.kind == kindBeta && p.row == i {
			return false
		}
	}
	return true
}
