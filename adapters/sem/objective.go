package sem

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
)

// impliedCovariance holds the pieces of Sigma(theta) needed by the
// objective, its gradient and the information matrix.
type impliedCovariance struct {
	// a is (I-B)^-1 over all variables
	a *mat.Dense
	// full is a Psi a' over all variables
	full *mat.Dense
	// sigma is the observed block of full
	sigma *mat.SymDense
	chol  mat.Cholesky
	inv   mat.SymDense
}

func (c *impliedCovariance) logDet() float64 {
	return c.chol.LogDet()
}

// implied computes Sigma(theta). It fails when I-B is singular or Sigma is
// not positive definite.
func (m *Model) implied(theta []float64) (*impliedCovariance, error) {
	beta, psi := m.matrices(theta)
	n := len(m.vars)
	p := len(m.observed)

	iMinusB := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		iMinusB.Set(i, i, 1)
	}
	iMinusB.Sub(iMinusB, beta)

	var a mat.Dense
	if err := a.Inverse(iMinusB); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, err
		}
	}

	var tmp, full mat.Dense
	tmp.Mul(&a, psi)
	full.Mul(&tmp, a.T())

	sigma := mat.NewSymDense(p, nil)
	for i := 0; i < p; i++ {
		for j := i; j < p; j++ {
			sigma.SetSym(i, j, 0.5*(full.At(i, j)+full.At(j, i)))
		}
	}

	c := &impliedCovariance{a: &a, full: &full, sigma: sigma}
	if ok := c.chol.Factorize(sigma); !ok {
		return nil, errNotPD
	}
	if err := c.chol.InverseTo(&c.inv); err != nil {
		return nil, err
	}
	return c, nil
}

var errNotPD = errors.New("implied covariance is not positive definite")

// maxCondition is the largest condition number of S treated as positive
// definite; collinear columns factorize on rounding noise alone.
const maxCondition = 1e12

// derivative returns dSigma/dtheta for one parameter
func (m *Model) derivative(par *parameter, c *impliedCovariance) *mat.SymDense {
	p := len(m.observed)
	d := mat.NewSymDense(p, nil)
	r, col := par.row, par.col

	for i := 0; i < p; i++ {
		for j := i; j < p; j++ {
			var v float64
			switch {
			case par.kind == kindBeta:
				v = c.a.At(i, r)*c.full.At(col, j) + c.a.At(j, r)*c.full.At(col, i)
			case r == col:
				v = c.a.At(i, r) * c.a.At(j, r)
			default:
				v = c.a.At(i, r)*c.a.At(j, col) + c.a.At(i, col)*c.a.At(j, r)
			}
			d.SetSym(i, j, v)
		}
	}
	return d
}

// mlObjective is the maximum likelihood discrepancy
//
//	F(theta) = log|Sigma| + tr(S Sigma^-1) - log|S| - p
//
// which is zero when the model reproduces S exactly.
type mlObjective struct {
	model   *Model
	s       *mat.SymDense
	logDetS float64
}

func newMLObjective(model *Model, s *mat.SymDense) (*mlObjective, error) {
	var chol mat.Cholesky
	if ok := chol.Factorize(s); !ok || chol.Cond() > maxCondition {
		return nil, errNotPD
	}
	return &mlObjective{model: model, s: s, logDetS: chol.LogDet()}, nil
}

// valueAt evaluates F for an already computed Sigma
func (o *mlObjective) valueAt(c *impliedCovariance) float64 {
	p := o.s.SymmetricDim()
	return c.logDet() + traceProduct(o.s, &c.inv) - o.logDetS - float64(p)
}

// Func is the optimize.Problem objective. Outside the admissible region
// (negative variances or a Sigma that is not positive definite) it returns
// +Inf so line searches back off.
func (o *mlObjective) Func(theta []float64) float64 {
	if !o.model.admissible(theta) {
		return math.Inf(1)
	}
	c, err := o.model.implied(theta)
	if err != nil {
		return math.Inf(1)
	}
	return o.valueAt(c)
}

// Grad is the analytic gradient tr(W dSigma/dtheta) with
// W = Sigma^-1 - Sigma^-1 S Sigma^-1.
func (o *mlObjective) Grad(grad, theta []float64) {
	for i := range grad {
		grad[i] = 0
	}
	c, err := o.model.implied(theta)
	if err != nil {
		return
	}

	var tmp, sis mat.Dense
	tmp.Mul(&c.inv, o.s)
	sis.Mul(&tmp, &c.inv)
	var w mat.Dense
	w.Sub(&c.inv, &sis)

	for k, idx := range o.model.free {
		d := o.model.derivative(o.model.params[idx], c)
		grad[k] = traceProduct(&w, d)
	}
}

// traceProduct returns tr(A B) for symmetric B, i.e. sum_ij A_ij B_ij
func traceProduct(a, b mat.Matrix) float64 {
	r, cols := a.Dims()
	sum := 0.0
	for i := 0; i < r; i++ {
		for j := 0; j < cols; j++ {
			sum += a.At(i, j) * b.At(i, j)
		}
	}
	return sum
}
