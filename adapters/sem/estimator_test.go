package sem

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"semprep/domain/core"
	"semprep/domain/dataset"
	"semprep/domain/excerpt"
	domainsem "semprep/domain/sem"
	apperrors "semprep/internal/errors"
	"semprep/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func estimate(t *testing.T, est *domainsem.Estimates, lval, op, rval string) float64 {
	t.Helper()
	for _, row := range est.Parameters.Rows {
		if row.LVal == lval && row.Op == op && row.RVal == rval {
			raw, _ := row.Value(domainsem.ColEstimate)
			v, ok := raw.(float64)
			require.True(t, ok, "estimate of %s %s %s is not numeric", lval, op, rval)
			return v
		}
	}
	t.Fatalf("parameter %s %s %s not found", lval, op, rval)
	return 0
}

func statistic(t *testing.T, est *domainsem.Estimates, name string) float64 {
	t.Helper()
	v, ok := est.Statistic(name)
	require.True(t, ok, "statistic %s missing", name)
	return v
}

func TestEstimator_RecoversKnownParameters(t *testing.T) {
	config := testkit.DefaultSurveyConfig()
	config.Respondents = 5000
	table := testkit.NewSurveyGenerator(config).Generate()

	est, err := NewEstimator().Fit(context.Background(), excerpt.ModelSpec, table)
	require.NoError(t, err)
	assert.Equal(t, 5000, est.N)
	assert.True(t, est.Converged)

	assert.Equal(t, 1.0, estimate(t, est, "Personality", "=~", "opennessvariable"))
	assert.InDelta(t, 0.8, estimate(t, est, "Personality", "=~", "consciensiousnessvariable"), 0.1)
	assert.InDelta(t, 0.6, estimate(t, est, "Personality", "=~", "extroversionvariable"), 0.1)
	assert.InDelta(t, 0.7, estimate(t, est, "Personality", "=~", "agreeablenessvariable"), 0.1)

	assert.InDelta(t, -0.5, estimate(t, est, "Personality", "~", "neuroticismvariable"), 0.1)
	assert.InDelta(t, 0.4, estimate(t, est, "powerlessnessvariable", "~", "Personality"), 0.1)
	assert.InDelta(t, 0.3, estimate(t, est, "powerlessnessvariable", "~", "neuroticismvariable"), 0.1)
	assert.InDelta(t, 0.2, estimate(t, est, "powerlessnessvariable", "~", "totalfetishcategory"), 0.1)

	assert.Equal(t, 12.0, statistic(t, est, StatDoF))
	assert.Greater(t, statistic(t, est, StatCFI), 0.95)
	assert.Less(t, statistic(t, est, StatRMSEA), 0.05)
	assert.InDelta(t, float64(est.N)*est.Objective, statistic(t, est, StatChi2), 1e-9)
}

func TestEstimator_ParameterTableShape(t *testing.T) {
	table := testkit.NewSurveyGenerator(testkit.DefaultSurveyConfig()).Generate()

	est, err := NewEstimator().Fit(context.Background(), excerpt.ModelSpec, table)
	require.NoError(t, err)
	assert.Equal(t, 100, est.N)

	params := est.Parameters
	assert.Len(t, params.Rows, 17)
	for _, col := range []string{domainsem.ColEstimate, domainsem.ColStdErr, domainsem.ColZValue, domainsem.ColPValue} {
		assert.True(t, params.HasColumn(col), col)
	}

	reference := params.Rows[0]
	assert.Equal(t, "opennessvariable", reference.RVal)
	for _, col := range []string{domainsem.ColStdErr, domainsem.ColZValue, domainsem.ColPValue} {
		v, ok := reference.Value(col)
		require.True(t, ok)
		assert.Equal(t, domainsem.Placeholder, v, col)
	}

	for _, row := range params.Rows[1:] {
		raw, _ := row.Value(domainsem.ColStdErr)
		se, ok := raw.(float64)
		require.True(t, ok, "%s %s %s", row.LVal, row.Op, row.RVal)
		assert.Greater(t, se, 0.0)
		raw, _ = row.Value(domainsem.ColPValue)
		p, ok := raw.(float64)
		require.True(t, ok)
		assert.True(t, p >= 0 && p <= 1)
	}

	var names []string
	for _, s := range est.Statistics {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{
		StatDoF, StatDoFBaseline, StatChi2, StatChi2PValue, StatChi2Baseline,
		StatCFI, StatGFI, StatAGFI, StatNFI, StatTLI, StatRMSEA, StatAIC, StatBIC, StatLogLik,
	}, names)
}

func TestEstimator_SaturatedRegressionMatchesOLS(t *testing.T) {
	xs := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	ys := []float64{2.1, 3.9, 6.2, 7.8, 10.1, 12.2, 13.8, 16.1}
	table, err := dataset.NewTable(
		dataset.NewNumericColumn("x", xs),
		dataset.NewNumericColumn("y", ys),
	)
	require.NoError(t, err)

	est, err := NewEstimator().Fit(context.Background(), "y ~ x", table)
	require.NoError(t, err)

	var mx, my float64
	for i := range xs {
		mx += xs[i]
		my += ys[i]
	}
	mx /= float64(len(xs))
	my /= float64(len(ys))
	var sxy, sxx float64
	for i := range xs {
		sxy += (xs[i] - mx) * (ys[i] - my)
		sxx += (xs[i] - mx) * (xs[i] - mx)
	}

	assert.InDelta(t, sxy/sxx, estimate(t, est, "y", "~", "x"), 1e-4)
	assert.Equal(t, 0.0, statistic(t, est, StatDoF))
	assert.InDelta(t, 0, statistic(t, est, StatChi2), 1e-6)
	assert.True(t, math.IsNaN(statistic(t, est, StatRMSEA)))
}

func TestEstimator_Errors(t *testing.T) {
	full := testkit.NewSurveyGenerator(testkit.DefaultSurveyConfig()).Generate()

	t.Run("invalid syntax", func(t *testing.T) {
		_, err := NewEstimator().Fit(context.Background(), "y x", full)
		require.Error(t, err)
		assert.True(t, errors.Is(err, core.ErrInvalidModel))
		assert.Equal(t, apperrors.CodeInvalidInput, apperrors.GetCode(err))
	})

	t.Run("missing column", func(t *testing.T) {
		partial, err := full.Select("opennessvariable", "neuroticismvariable")
		require.NoError(t, err)
		_, err = NewEstimator().Fit(context.Background(), excerpt.ModelSpec, partial)
		require.Error(t, err)
		assert.True(t, errors.Is(err, core.ErrMissingColumn))
		assert.Equal(t, apperrors.CodeMissingColumn, apperrors.GetCode(err))
	})

	t.Run("too few rows", func(t *testing.T) {
		config := testkit.DefaultSurveyConfig()
		config.Respondents = 5
		small := testkit.NewSurveyGenerator(config).Generate()
		_, err := NewEstimator().Fit(context.Background(), excerpt.ModelSpec, small)
		require.Error(t, err)
		assert.True(t, errors.Is(err, core.ErrInsufficientData))
		assert.Equal(t, apperrors.CodeComputation, apperrors.GetCode(err))
	})

	t.Run("singular covariance", func(t *testing.T) {
		xs := []float64{1, 2, 3, 4, 5}
		table, err := dataset.NewTable(
			dataset.NewNumericColumn("x", xs),
			dataset.NewNumericColumn("y", []float64{2, 4, 6, 8, 10}),
		)
		require.NoError(t, err)
		_, err = NewEstimator().Fit(context.Background(), "y ~ x", table)
		require.Error(t, err)
		assert.True(t, errors.Is(err, core.ErrNotPositiveDefinite))
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := NewEstimator().Fit(ctx, excerpt.ModelSpec, full)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestEstimator_IndependentColumnsStillReportEstimates(t *testing.T) {
	for seed := int64(0); seed < 10; seed++ {
		rng := rand.New(rand.NewSource(seed))
		columns := make([]*dataset.Column, len(excerpt.SEMColumns))
		for j, name := range excerpt.SEMColumns {
			values := make([]float64, 100)
			for i := range values {
				values[i] = rng.NormFloat64()
			}
			columns[j] = dataset.NewNumericColumn(name, values)
		}
		table, err := dataset.NewTable(columns...)
		require.NoError(t, err)

		est, err := NewEstimator().Fit(context.Background(), excerpt.ModelSpec, table)
		require.NoError(t, err, "seed %d", seed)
		assert.Len(t, est.Parameters.Rows, 17, "seed %d", seed)
		chi2 := statistic(t, est, StatChi2)
		assert.False(t, math.IsNaN(chi2), "seed %d", seed)
		assert.GreaterOrEqual(t, chi2, -1e-9, "seed %d", seed)

		for _, row := range est.Parameters.Rows {
			if row.Op == domainsem.OpCovariance && row.LVal == row.RVal {
				raw, _ := row.Value(domainsem.ColEstimate)
				v, ok := raw.(float64)
				require.True(t, ok)
				assert.GreaterOrEqual(t, v, 0.0, "variance of %s, seed %d", row.LVal, seed)
			}
		}
	}
}
