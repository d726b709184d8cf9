package main

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"

	"semprep/domain/core"
	"semprep/domain/excerpt"
	"semprep/internal/errors"
	"semprep/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCmd_WritesExcerpt(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "survey.csv")
	require.NoError(t, testkit.WriteCSV(input, testkit.NewSurveyGenerator(testkit.DefaultSurveyConfig()).Generate()))
	output := filepath.Join(dir, "data", "bks_excerpt.json")

	out, err := execute(t, "--input", input, "--output", output, "--log-level", "ERROR")
	require.NoError(t, err)
	assert.Contains(t, out, "Loaded 100 rows, 7 columns")
	assert.Contains(t, out, "Done!")

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	var doc excerpt.Document
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, 100, doc.DescriptiveStats.N)
}

func TestRootCmd_RequiresInput(t *testing.T) {
	_, err := execute(t)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "input")
}

func TestRootCmd_MissingInputFile(t *testing.T) {
	output := filepath.Join(t.TempDir(), "out.json")
	_, err := execute(t, "--input", filepath.Join(t.TempDir(), "nope.csv"), "--output", output)
	require.Error(t, err)
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))
	assert.Equal(t, "input not found", failureKind(err))
	assert.NoFileExists(t, output)
}

func TestRootCmd_InvalidLogLevel(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "survey.csv")
	require.NoError(t, testkit.WriteCSV(input, testkit.NewSurveyGenerator(testkit.DefaultSurveyConfig()).Generate()))

	_, err := execute(t, "--input", input, "--output", filepath.Join(dir, "out.json"), "--log-level", "LOUD")
	require.Error(t, err)
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
}

func TestFailureKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"not found", errors.WithCode(errors.CodeNotFound, core.ErrInputNotFound), "input not found"},
		{"missing column", errors.Wrap(core.NewMissingColumnError([]string{"x"}), "select"), "column selection"},
		{"not converged", errors.Computation("fit", core.ErrNotConverged), "numeric computation"},
		{"singular", errors.Computation("fit", core.ErrNotPositiveDefinite), "numeric computation"},
		{"config", errors.ConfigInvalid("bad level"), "config_invalid"},
		{"plain", stderrors.New("boom"), "unexpected"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, failureKind(tt.err))
		})
	}
}
