package sem

import (
	"errors"
	"testing"

	"semprep/domain/core"
	"semprep/domain/excerpt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func teachingModel(t *testing.T) *Model {
	t.Helper()
	relations, err := ParseSyntax(excerpt.ModelSpec)
	require.NoError(t, err)
	model, err := NewModel(relations)
	require.NoError(t, err)
	return model
}

func TestNewModel_TeachingModelStructure(t *testing.T) {
	model := teachingModel(t)

	assert.Equal(t, []string{
		"opennessvariable",
		"consciensiousnessvariable",
		"extroversionvariable",
		"agreeablenessvariable",
		"neuroticismvariable",
		"powerlessnessvariable",
		"totalfetishcategory",
	}, model.Observed())
	assert.Equal(t, []string{"Personality"}, model.Latent())

	// 3 free loadings, 4 regressions, 6 residual variances,
	// 2 exogenous variances and their covariance
	assert.Equal(t, 16, model.NumFree())
	assert.Equal(t, 28, model.Moments())
	assert.Equal(t, 12, model.DegreesOfFreedom())

	first := model.params[0]
	assert.Equal(t, "Personality", first.lval)
	assert.Equal(t, "opennessvariable", first.rval)
	assert.True(t, first.fixed)
	assert.Equal(t, 1.0, first.value)
}

func TestNewModel_ParameterOrder(t *testing.T) {
	model := teachingModel(t)

	var ops []string
	for _, p := range model.params {
		ops = append(ops, p.op)
	}
	// loadings, then regressions, then (co)variances
	assert.Equal(t, []string{"=~", "=~", "=~", "=~", "~", "~", "~", "~"}, ops[:8])
	for _, op := range ops[8:] {
		assert.Equal(t, "~~", op)
	}
	assert.Len(t, ops, 17)
}

func TestNewModel_ExplicitCovarianceIsNotDuplicated(t *testing.T) {
	relations, err := ParseSyntax("y ~ x1 + x2\nx1 ~~ x2")
	require.NoError(t, err)
	model, err := NewModel(relations)
	require.NoError(t, err)

	// two regressions, var y, var x1, var x2, cov x1 x2
	assert.Equal(t, 6, model.NumFree())
	assert.Equal(t, 0, model.DegreesOfFreedom())
}

func TestNewModel_Errors(t *testing.T) {
	tests := []struct {
		name        string
		description string
		want        error
	}{
		{"self regression", "y ~ y", core.ErrInvalidModel},
		{"duplicate", "y ~ x\ny ~ x", core.ErrInvalidModel},
		{"under-identified", "F =~ x1 + x2\nG =~ x1 + x2\nF ~~ G", core.ErrNotIdentified},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			relations, err := ParseSyntax(tt.description)
			require.NoError(t, err)
			_, err = NewModel(relations)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}
