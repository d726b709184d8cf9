package testkit

import (
	"math"
	"path/filepath"
	"testing"

	"semprep/domain/excerpt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSurveyGenerator_ShapeAndDeterminism(t *testing.T) {
	config := DefaultSurveyConfig()

	first := NewSurveyGenerator(config).Generate()
	second := NewSurveyGenerator(config).Generate()

	assert.Equal(t, excerpt.SEMColumns, first.ColumnNames())
	assert.Equal(t, 100, first.NumRows())
	assert.Equal(t, 0, first.MissingCount())

	for _, name := range excerpt.SEMColumns {
		a, err := first.Floats(name)
		require.NoError(t, err)
		b, err := second.Floats(name)
		require.NoError(t, err)
		assert.Equal(t, a, b, "same seed must give identical %s", name)
	}
}

func TestSurveyGenerator_CountsAreNonNegativeIntegers(t *testing.T) {
	table := NewSurveyGenerator(DefaultSurveyConfig()).Generate()

	counts, err := table.Floats("totalfetishcategory")
	require.NoError(t, err)
	for i, c := range counts {
		assert.GreaterOrEqual(t, c, 0.0, "row %d", i)
		assert.Equal(t, float64(int(c)), c, "row %d", i)
	}
}

func TestWithMissing(t *testing.T) {
	table := NewSurveyGenerator(DefaultSurveyConfig()).Generate()

	holed := WithMissing(table, "neuroticismvariable", 10)
	values, err := holed.Floats("neuroticismvariable")
	require.NoError(t, err)
	assert.Equal(t, 10, nanCount(values))

	original, err := table.Floats("neuroticismvariable")
	require.NoError(t, err)
	assert.Equal(t, 0, nanCount(original), "source table is not modified")
}

func TestWriteCSV(t *testing.T) {
	table := WithExtraColumns(NewSurveyGenerator(DefaultSurveyConfig()).Generate(), 7)
	path := filepath.Join(t.TempDir(), "survey.csv")

	require.NoError(t, WriteCSV(path, table))
	assert.FileExists(t, path)
}

func nanCount(values []float64) int {
	count := 0
	for _, v := range values {
		if math.IsNaN(v) {
			count++
		}
	}
	return count
}
