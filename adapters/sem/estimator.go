// Package sem fits structural equation models written in lavaan-style
// syntax by maximum likelihood.
package sem

import (
	"context"
	"fmt"
	"math"
	"time"

	"semprep/domain/core"
	"semprep/domain/dataset"
	domainsem "semprep/domain/sem"
	"semprep/internal"
	"semprep/internal/errors"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Default optimizer settings
const (
	DefaultMaxIterations     = 1000
	DefaultGradientTolerance = 1e-6
	// acceptedGradient is the largest gradient max-norm counted as converged
	// when the optimizer stops without reporting convergence
	acceptedGradient = 1e-4
)

// Estimator fits models with BFGS on the ML discrepancy function
type Estimator struct {
	maxIterations     int
	gradientTolerance float64
	logger            *internal.Logger
}

// Option configures an Estimator
type Option func(*Estimator)

// WithMaxIterations caps the number of BFGS iterations
func WithMaxIterations(n int) Option {
	return func(e *Estimator) { e.maxIterations = n }
}

// WithGradientTolerance sets the gradient norm at which the fit is converged
func WithGradientTolerance(tol float64) Option {
	return func(e *Estimator) { e.gradientTolerance = tol }
}

// WithLogger sets the estimator logger
func WithLogger(logger *internal.Logger) Option {
	return func(e *Estimator) { e.logger = logger }
}

// NewEstimator creates an ML estimator
func NewEstimator(opts ...Option) *Estimator {
	e := &Estimator{
		maxIterations:     DefaultMaxIterations,
		gradientTolerance: DefaultGradientTolerance,
		logger:            internal.DefaultLogger,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("SEM")
	return e
}

// Fit parses the description, fits it to the observed columns of data and
// returns the parameter table and fit statistics.
func (e *Estimator) Fit(ctx context.Context, description string, data *dataset.Table) (*domainsem.Estimates, error) {
	relations, err := ParseSyntax(description)
	if err != nil {
		return nil, errors.WithCode(errors.CodeInvalidInput, err)
	}
	model, err := NewModel(relations)
	if err != nil {
		return nil, errors.WithCode(errors.CodeInvalidInput, err)
	}

	x, err := observedMatrix(model.observed, data)
	if err != nil {
		return nil, err
	}
	n, p := x.Dims()
	if n <= p {
		return nil, errors.Computation(fmt.Sprintf("%d complete rows for %d observed variables", n, p), core.ErrInsufficientData)
	}

	s := mlCovariance(x)
	obj, err := newMLObjective(model, s)
	if err != nil {
		return nil, errors.Computation("sample covariance", core.ErrNotPositiveDefinite)
	}

	e.logger.Debug("fitting %d free parameters, %d observed variables, %d rows, dof=%d",
		model.NumFree(), p, n, model.DegreesOfFreedom())

	starts := [][]float64{model.startValues(s), model.fallbackStart(s)}
	var best *fitRun
	for i, start := range starts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if f := obj.Func(start); math.IsInf(f, 0) || math.IsNaN(f) {
			e.logger.Debug("start %d is outside the admissible region", i)
			continue
		}
		run := e.minimize(obj, start)
		if run == nil {
			continue
		}
		e.logger.Debug("start %d: status %v after %d iterations (%s), F=%.6g, |grad|=%.3g",
			i, run.status, run.iterations, run.elapsed.Round(time.Millisecond), run.f, run.gradNorm)
		if best == nil || run.betterThan(best) {
			best = run
		}
		if run.converged {
			break
		}
	}
	if best == nil {
		return nil, errors.Computation("no admissible starting values", core.ErrNotPositiveDefinite)
	}
	if !best.converged {
		e.logger.Warn("optimizer stopped with status %v after %d iterations (gradient %.3g); reporting the best admissible estimates",
			best.status, best.iterations, best.gradNorm)
	}

	c, err := model.implied(best.x)
	if err != nil {
		return nil, errors.Computation("implied covariance at the optimum", core.ErrNotPositiveDefinite)
	}
	fmin := obj.valueAt(c)

	return &domainsem.Estimates{
		Parameters: model.parameterTable(best.x, model.standardErrors(c, n)),
		Statistics: fitStatistics(model, obj, c, fmin, n),
		N:          n,
		Iterations: best.iterations,
		Objective:  fmin,
		Converged:  best.converged,
	}, nil
}

// fitRun is the outcome of one optimizer run from one starting point
type fitRun struct {
	x          []float64
	f          float64
	iterations int
	status     optimize.Status
	gradNorm   float64
	converged  bool
	elapsed    time.Duration
}

// betterThan prefers converged runs, then the lower discrepancy
func (r *fitRun) betterThan(other *fitRun) bool {
	if r.converged != other.converged {
		return r.converged
	}
	return r.f < other.f
}

// minimize runs BFGS from start. The result is the best admissible point the
// optimizer visited, whether or not it reported convergence; nil means the
// optimizer produced no location at all.
func (e *Estimator) minimize(obj *mlObjective, start []float64) *fitRun {
	begin := time.Now()
	problem := optimize.Problem{Func: obj.Func, Grad: obj.Grad}
	settings := &optimize.Settings{
		GradientThreshold: e.gradientTolerance,
		MajorIterations:   e.maxIterations,
	}
	result, err := optimize.Minimize(problem, start, settings, &optimize.BFGS{})
	if result == nil || len(result.X) == 0 || math.IsInf(result.F, 0) || math.IsNaN(result.F) {
		e.logger.Debug("optimizer returned no admissible location: %v", err)
		return nil
	}

	grad := make([]float64, len(result.X))
	obj.Grad(grad, result.X)
	gradNorm := floats.Norm(grad, math.Inf(1))
	return &fitRun{
		x:          result.X,
		f:          result.F,
		iterations: result.Stats.MajorIterations,
		status:     result.Status,
		gradNorm:   gradNorm,
		converged:  (err == nil && converged(result.Status)) || gradNorm <= acceptedGradient,
		elapsed:    time.Since(begin),
	}
}

func converged(status optimize.Status) bool {
	switch status {
	case optimize.Success, optimize.GradientThreshold, optimize.FunctionConvergence, optimize.FunctionThreshold:
		return true
	}
	return false
}

// observedMatrix extracts the observed variables as an n x p matrix
func observedMatrix(names []string, data *dataset.Table) (*mat.Dense, error) {
	var missing []string
	for _, name := range names {
		if _, ok := data.Column(name); !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, errors.WithCode(errors.CodeMissingColumn, core.NewMissingColumnError(missing))
	}

	n := data.NumRows()
	x := mat.NewDense(max(n, 1), len(names), nil)
	for j, name := range names {
		values, err := data.Floats(name)
		if err != nil {
			return nil, errors.WithCode(errors.CodeInvalidInput, err)
		}
		for i, v := range values {
			if math.IsNaN(v) {
				return nil, errors.InvalidInput(fmt.Sprintf("column %s has a missing value in row %d", name, i))
			}
			x.Set(i, j, v)
		}
	}
	if n == 0 {
		return nil, errors.Computation("no rows to fit", core.ErrInsufficientData)
	}
	return x, nil
}

// mlCovariance returns the covariance with divisor N
func mlCovariance(x *mat.Dense) *mat.SymDense {
	n, p := x.Dims()
	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, x, nil)
	s := mat.NewSymDense(p, nil)
	s.ScaleSym(float64(n-1)/float64(n), &cov)
	return s
}

// parameterTable renders every parameter, fixed ones included. Cells with no
// numeric value carry domainsem.Placeholder.
func (m *Model) parameterTable(theta, se []float64) domainsem.ParameterTable {
	table := domainsem.ParameterTable{
		Columns: []string{domainsem.ColEstimate, domainsem.ColStdErr, domainsem.ColZValue, domainsem.ColPValue},
		Rows:    make([]domainsem.ParameterRow, 0, len(m.params)),
	}

	k := 0
	for _, p := range m.params {
		values := map[string]any{
			domainsem.ColStdErr: domainsem.Placeholder,
			domainsem.ColZValue: domainsem.Placeholder,
			domainsem.ColPValue: domainsem.Placeholder,
		}
		if p.fixed {
			values[domainsem.ColEstimate] = p.value
		} else {
			est := theta[k]
			values[domainsem.ColEstimate] = est
			if s := se[k]; core.IsFinite(s) && s > 0 {
				z := est / s
				values[domainsem.ColStdErr] = s
				values[domainsem.ColZValue] = z
				values[domainsem.ColPValue] = 2 * distuv.UnitNormal.Survival(math.Abs(z))
			}
			k++
		}
		table.Rows = append(table.Rows, domainsem.ParameterRow{
			LVal:   p.lval,
			Op:     p.op,
			RVal:   p.rval,
			Values: values,
		})
	}
	return table
}
