package sem

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// standardErrors derives standard errors from the expected information
//
//	I_kl = (N/2) tr(Sigma^-1 D_k Sigma^-1 D_l)
//
// where D_k = dSigma/dtheta_k. When the information matrix is singular
// every standard error is NaN.
func (m *Model) standardErrors(c *impliedCovariance, n int) []float64 {
	q := len(m.free)
	se := make([]float64, q)

	scaled := make([]*mat.Dense, q)
	for k, idx := range m.free {
		d := m.derivative(m.params[idx], c)
		var qk mat.Dense
		qk.Mul(&c.inv, d)
		scaled[k] = &qk
	}

	info := mat.NewSymDense(q, nil)
	half := float64(n) / 2
	for k := 0; k < q; k++ {
		for l := k; l < q; l++ {
			// tr(Qk Ql) = sum_ab Qk[a,b] Ql[b,a]
			info.SetSym(k, l, half*traceProduct(scaled[k], scaled[l].T()))
		}
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(info); !ok {
		for k := range se {
			se[k] = math.NaN()
		}
		return se
	}
	var cov mat.SymDense
	if err := chol.InverseTo(&cov); err != nil {
		for k := range se {
			se[k] = math.NaN()
		}
		return se
	}
	for k := range se {
		if v := cov.At(k, k); v > 0 {
			se[k] = math.Sqrt(v)
		} else {
			se[k] = math.NaN()
		}
	}
	return se
}
