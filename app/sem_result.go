package app

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"semprep/domain/core"
	"semprep/domain/dataset"
	"semprep/domain/excerpt"
	"semprep/domain/sem"
	"semprep/internal"
	"semprep/internal/errors"
	"semprep/ports"
)

// ResultPrecision is the number of decimals kept for exported SEM values
const ResultPrecision = 4

// fitIndexRenames maps normalized estimator names to exported keys
var fitIndexRenames = map[string]string{
	"chi2": "chi_square",
}

// SelectSEMColumns projects the teaching-model columns in their fixed order
// and keeps only complete cases. Absent columns fail with CodeMissingColumn.
func SelectSEMColumns(table *dataset.Table) (*dataset.Table, error) {
	selected, err := table.Select(excerpt.SEMColumns...)
	if err != nil {
		return nil, errors.WithCode(errors.CodeMissingColumn, err)
	}
	return selected.DropMissing(), nil
}

// FitSEMModel fits the teaching model to the selected columns and converts
// the estimator output into the exported result.
func FitSEMModel(ctx context.Context, estimator ports.EstimatorPort, data *dataset.Table, logger *internal.Logger) (*sem.Result, error) {
	estimates, err := estimator.Fit(ctx, excerpt.ModelSpec, data)
	if err != nil {
		return nil, errors.Wrap(err, "SEM fit failed")
	}
	if !estimates.Converged {
		logger.Warn("SEM estimates after %d iterations did not converge; exporting the best admissible point", estimates.Iterations)
	}
	return BuildSEMResult(excerpt.ModelSpec, estimates, logger), nil
}

// BuildSEMResult splits the parameter table into path coefficients ("~")
// and factor loadings ("=~"); rows with any other operator are left out.
func BuildSEMResult(modelSpec string, estimates *sem.Estimates, logger *internal.Logger) *sem.Result {
	result := &sem.Result{
		ModelSpec:        strings.TrimSpace(modelSpec),
		PathCoefficients: []sem.Coefficient{},
		FactorLoadings:   []sem.Coefficient{},
		FitIndices:       make(map[string]*float64, len(estimates.Statistics)),
	}

	for _, s := range estimates.Statistics {
		result.FitIndices[FitIndexKey(s.Name)] = roundedOrNil(s.Value)
	}

	skipped := 0
	for _, row := range estimates.Parameters.Rows {
		entry := sem.Coefficient{
			From:     row.LVal,
			Op:       row.Op,
			To:       row.RVal,
			Estimate: cell(row, sem.ColEstimate),
			StdErr:   cell(row, sem.ColStdErr),
			PValue:   cell(row, sem.ColPValue),
		}
		switch row.Op {
		case sem.OpRegression:
			result.PathCoefficients = append(result.PathCoefficients, entry)
		case sem.OpMeasurement:
			result.FactorLoadings = append(result.FactorLoadings, entry)
		default:
			skipped++
			logger.Trace("dropping parameter %s %s %s", row.LVal, row.Op, row.RVal)
		}
	}
	if skipped > 0 {
		logger.Debug("excluded %d parameters with operators other than %q and %q",
			skipped, sem.OpRegression, sem.OpMeasurement)
	}
	return result
}

// FitIndexKey lower-cases an estimator statistic name, replaces spaces with
// underscores and applies the exported renames ("chi2" -> "chi_square").
func FitIndexKey(name string) string {
	key := strings.ReplaceAll(strings.ToLower(name), " ", "_")
	if renamed, ok := fitIndexRenames[key]; ok {
		return renamed
	}
	return key
}

// SafeFloat converts a parameter-table cell to a rounded number. Placeholders
// such as "-", non-numeric text and non-finite values become nil.
func SafeFloat(v any) *float64 {
	switch x := v.(type) {
	case nil:
		return nil
	case float64:
		return roundedOrNil(x)
	case float32:
		return roundedOrNil(float64(x))
	case int:
		return roundedOrNil(float64(x))
	case int64:
		return roundedOrNil(float64(x))
	case string:
		s := strings.TrimSpace(x)
		if s == sem.Placeholder {
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		return roundedOrNil(f)
	case fmt.Stringer:
		return SafeFloat(x.String())
	}
	return nil
}

func cell(row sem.ParameterRow, column string) *float64 {
	v, ok := row.Value(column)
	if !ok {
		return nil
	}
	return SafeFloat(v)
}

func roundedOrNil(x float64) *float64 {
	if !core.IsFinite(x) {
		return nil
	}
	r := core.Round(x, ResultPrecision)
	if r == 0 {
		// avoid exporting -0
		r = math.Abs(r)
	}
	return &r
}
