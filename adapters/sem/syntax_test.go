package sem

import (
	"errors"
	"testing"

	"semprep/domain/core"
	"semprep/domain/excerpt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSyntax_TeachingModel(t *testing.T) {
	relations, err := ParseSyntax(excerpt.ModelSpec)
	require.NoError(t, err)
	require.Len(t, relations, 3)

	assert.Equal(t, "Personality", relations[0].LHS)
	assert.Equal(t, "=~", relations[0].Op)
	assert.Len(t, relations[0].RHS, 4)

	assert.Equal(t, "~", relations[1].Op)
	assert.Equal(t, "neuroticismvariable", relations[1].RHS[0].Name)

	assert.Equal(t, "powerlessnessvariable", relations[2].LHS)
	assert.Equal(t, 3, relations[2].Line)
	var names []string
	for _, term := range relations[2].RHS {
		names = append(names, term.Name)
	}
	assert.Equal(t, []string{"Personality", "neuroticismvariable", "totalfetishcategory"}, names)
}

func TestParseSyntax_CommentsSemicolonsAndModifiers(t *testing.T) {
	relations, err := ParseSyntax(`
# measurement part
F =~ 1*x1 + 0.5*x2 + NA*x3   # trailing comment
y1 + y2 ~ F; x1 ~~ x2
`)
	require.NoError(t, err)
	require.Len(t, relations, 4)

	rhs := relations[0].RHS
	require.NotNil(t, rhs[0].Fixed)
	assert.Equal(t, 1.0, *rhs[0].Fixed)
	require.NotNil(t, rhs[1].Fixed)
	assert.Equal(t, 0.5, *rhs[1].Fixed)
	assert.Nil(t, rhs[2].Fixed, "NA marks a free parameter")

	assert.Equal(t, "y1", relations[1].LHS)
	assert.Equal(t, "y2", relations[2].LHS)
	assert.Equal(t, "~~", relations[3].Op)
	// the raw string opens with a newline, so the statement sits on line 4
	assert.Equal(t, 4, relations[3].Line)
}

func TestParseSyntax_Errors(t *testing.T) {
	tests := []struct {
		name        string
		description string
	}{
		{"empty", "  \n# only a comment\n"},
		{"no operator", "y x"},
		{"empty term", "y ~ x +"},
		{"bad name", "y ~ 3x"},
		{"bad modifier", "F =~ a*x1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSyntax(tt.description)
			require.Error(t, err)
			assert.True(t, errors.Is(err, core.ErrInvalidModel), "got %v", err)
		})
	}
}
