package sem

import (
	"math"

	domainsem "semprep/domain/sem"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Names of the fit statistics, in report order
const (
	StatDoF          = "DoF"
	StatDoFBaseline  = "DoF Baseline"
	StatChi2         = "chi2"
	StatChi2PValue   = "chi2 p-value"
	StatChi2Baseline = "chi2 Baseline"
	StatCFI          = "CFI"
	StatGFI          = "GFI"
	StatAGFI         = "AGFI"
	StatNFI          = "NFI"
	StatTLI          = "TLI"
	StatRMSEA        = "RMSEA"
	StatAIC          = "AIC"
	StatBIC          = "BIC"
	StatLogLik       = "LogLik"
)

// fitStatistics computes the model-fit summary at the optimum. The baseline
// is the independence model Sigma_b = diag(S). Indices that are undefined for
// the model (e.g. RMSEA with zero degrees of freedom) are NaN.
func fitStatistics(m *Model, obj *mlObjective, c *impliedCovariance, fmin float64, n int) []domainsem.Statistic {
	p := float64(len(m.observed))
	q := float64(m.NumFree())
	nf := float64(n)
	dof := float64(m.DegreesOfFreedom())

	chi2 := nf * fmin

	logDiag := 0.0
	for i := 0; i < len(m.observed); i++ {
		logDiag += math.Log(obj.s.At(i, i))
	}
	chi2Base := nf * (logDiag - obj.logDetS)
	dofBase := p * (p - 1) / 2

	chi2P := math.NaN()
	if dof > 0 {
		chi2P = distuv.ChiSquared{K: dof}.Survival(chi2)
	}

	excess := math.Max(chi2-dof, 0)
	cfi := 1.0
	if den := math.Max(math.Max(chi2Base-dofBase, excess), 0); den > 0 {
		cfi = 1 - excess/den
	}

	tli := math.NaN()
	if dof > 0 && dofBase > 0 {
		baseRatio := chi2Base / dofBase
		tli = (baseRatio - chi2/dof) / (baseRatio - 1)
	}

	nfi := math.NaN()
	if chi2Base > 0 {
		nfi = (chi2Base - chi2) / chi2Base
	}

	rmsea := math.NaN()
	if dof > 0 && n > 1 {
		rmsea = math.Sqrt(excess / (dof * (nf - 1)))
	}

	gfi := goodnessOfFit(obj.s, &c.inv)
	agfi := math.NaN()
	if dof > 0 {
		agfi = 1 - (p*(p+1)/(2*dof))*(1-gfi)
	}

	logLik := -nf / 2 * (p*math.Log(2*math.Pi) + c.logDet() + traceProduct(obj.s, &c.inv))
	aic := 2*q - 2*logLik
	bic := q*math.Log(nf) - 2*logLik

	return []domainsem.Statistic{
		{Name: StatDoF, Value: dof},
		{Name: StatDoFBaseline, Value: dofBase},
		{Name: StatChi2, Value: chi2},
		{Name: StatChi2PValue, Value: chi2P},
		{Name: StatChi2Baseline, Value: chi2Base},
		{Name: StatCFI, Value: cfi},
		{Name: StatGFI, Value: gfi},
		{Name: StatAGFI, Value: agfi},
		{Name: StatNFI, Value: nfi},
		{Name: StatTLI, Value: tli},
		{Name: StatRMSEA, Value: rmsea},
		{Name: StatAIC, Value: aic},
		{Name: StatBIC, Value: bic},
		{Name: StatLogLik, Value: logLik},
	}
}

// goodnessOfFit is the ML GFI: 1 - tr((Sigma^-1 S - I)^2) / tr((Sigma^-1 S)^2)
func goodnessOfFit(s, inv mat.Symmetric) float64 {
	var ms mat.Dense
	ms.Mul(inv, s)
	p, _ := ms.Dims()

	var resid mat.Dense
	resid.CloneFrom(&ms)
	for i := 0; i < p; i++ {
		resid.Set(i, i, resid.At(i, i)-1)
	}

	num := traceProduct(&resid, resid.T())
	den := traceProduct(&ms, ms.T())
	if den == 0 {
		return math.NaN()
	}
	return 1 - num/den
}
