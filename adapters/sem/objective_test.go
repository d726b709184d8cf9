package sem

import (
	"math"
	"testing"

	"semprep/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
)

func sampleCovariance(t *testing.T, model *Model, respondents int) *mat.SymDense {
	t.Helper()
	config := testkit.DefaultSurveyConfig()
	config.Respondents = respondents
	table := testkit.NewSurveyGenerator(config).Generate()
	x, err := observedMatrix(model.observed, table)
	require.NoError(t, err)
	return mlCovariance(x)
}

func TestMLObjective_GradientMatchesFiniteDifferences(t *testing.T) {
	model := teachingModel(t)
	s := sampleCovariance(t, model, 200)
	obj, err := newMLObjective(model, s)
	require.NoError(t, err)

	theta := model.startValues(s)
	require.False(t, math.IsInf(obj.Func(theta), 0))

	analytic := make([]float64, len(theta))
	obj.Grad(analytic, theta)
	numeric := fd.Gradient(nil, obj.Func, theta, &fd.Settings{Formula: fd.Central, Step: 1e-6})

	for k := range theta {
		tol := 1e-5 * math.Max(1, math.Abs(numeric[k]))
		assert.InDelta(t, numeric[k], analytic[k], tol, "parameter %d (%s %s %s)",
			k, model.params[model.free[k]].lval, model.params[model.free[k]].op, model.params[model.free[k]].rval)
	}
}

func TestMLObjective_ZeroAtPerfectFit(t *testing.T) {
	relations, err := ParseSyntax("y ~ x")
	require.NoError(t, err)
	model, err := NewModel(relations)
	require.NoError(t, err)

	// var(x)=2, cov(x,y)=1, var(y)=1.5 is reproduced by b=0.5, var(x)=2, resid=1
	s := mat.NewSymDense(2, []float64{1.5, 1, 1, 2})
	obj, err := newMLObjective(model, s)
	require.NoError(t, err)

	// free order: y ~ x, y ~~ y, x ~~ x
	assert.InDelta(t, 0, obj.Func([]float64{0.5, 1, 2}), 1e-12)
	assert.Greater(t, obj.Func([]float64{0.1, 1, 2}), 0.0)
}

func TestMLObjective_InfOutsideAdmissibleRegion(t *testing.T) {
	relations, err := ParseSyntax("y ~ x")
	require.NoError(t, err)
	model, err := NewModel(relations)
	require.NoError(t, err)

	s := mat.NewSymDense(2, []float64{1.5, 1, 1, 2})
	obj, err := newMLObjective(model, s)
	require.NoError(t, err)

	assert.True(t, math.IsInf(obj.Func([]float64{0.5, -1, 2}), 1))

	grad := []float64{9, 9, 9}
	obj.Grad(grad, []float64{0.5, -1, 2})
	assert.Equal(t, []float64{0, 0, 0}, grad)
}

func TestMLObjective_NegativeVarianceIsInadmissible(t *testing.T) {
	relations, err := ParseSyntax("y ~ x")
	require.NoError(t, err)
	model, err := NewModel(relations)
	require.NoError(t, err)

	s := mat.NewSymDense(2, []float64{1.5, 1, 1, 2})
	obj, err := newMLObjective(model, s)
	require.NoError(t, err)

	assert.False(t, math.IsInf(obj.Func([]float64{0.5, 0, 2}), 0), "zero residual variance is still admissible")
	assert.True(t, math.IsInf(obj.Func([]float64{0.5, 1, -0.1}), 1))
	assert.True(t, math.IsInf(obj.Func([]float64{math.NaN(), 1, 2}), 1))
}

func TestNewMLObjective_RejectsCollinearCovariance(t *testing.T) {
	relations, err := ParseSyntax("y ~ x")
	require.NoError(t, err)
	model, err := NewModel(relations)
	require.NoError(t, err)

	s := mat.NewSymDense(2, []float64{2, 4, 4, 8 + 1e-13})
	_, err = newMLObjective(model, s)
	assert.ErrorIs(t, err, errNotPD)
}

func TestModel_FallbackStart(t *testing.T) {
	model := teachingModel(t)
	s := sampleCovariance(t, model, 100)
	obj, err := newMLObjective(model, s)
	require.NoError(t, err)

	start := model.fallbackStart(s)
	require.Len(t, start, model.NumFree())
	for k, idx := range model.free {
		par := model.params[idx]
		switch {
		case par.op == "=~":
			assert.Equal(t, 1.0, start[k])
		case par.kind == kindPsi && par.row == par.col:
			assert.Greater(t, start[k], 0.0)
		default:
			assert.Equal(t, 0.0, start[k])
		}
	}
	assert.False(t, math.IsInf(obj.Func(start), 0))
}
