// Package describe computes the descriptive statistics shown next to the
// SEM results: means, sample standard deviations and Pearson correlations.
package describe

import (
	"math"

	"semprep/domain/core"
	"semprep/domain/dataset"
	domainstats "semprep/domain/stats"
	"semprep/internal/errors"

	"github.com/montanaflynn/stats"
	gonumstat "gonum.org/v1/gonum/stat"
)

// DefaultPrecision is the number of decimals kept in every output value
const DefaultPrecision = 3

// Describer computes descriptive statistics for the numeric columns of a table
type Describer struct {
	precision int
}

// NewDescriber creates a describer that rounds to DefaultPrecision decimals
func NewDescriber() *Describer {
	return &Describer{precision: DefaultPrecision}
}

// Describe restricts the table to its numeric columns and summarizes them.
// Missing cells are skipped per column for means and deviations and per
// pair of columns for correlations.
func (d *Describer) Describe(table *dataset.Table) (*domainstats.DescriptiveStats, error) {
	if table.NumRows() == 0 {
		return nil, errors.Computation("cannot describe an empty table", core.ErrInsufficientData)
	}

	numeric := table.NumericColumns()
	result := &domainstats.DescriptiveStats{
		Means:             make(map[string]domainstats.Value, len(numeric)),
		StdDevs:           make(map[string]domainstats.Value, len(numeric)),
		CorrelationMatrix: make(map[string]map[string]domainstats.Value, len(numeric)),
		N:                 table.NumRows(),
		Columns:           make([]string, 0, len(numeric)),
	}

	for _, col := range numeric {
		present := presentValues(col.Numbers)
		mean, sd := math.NaN(), math.NaN()
		if len(present) > 0 {
			var err error
			if mean, err = stats.Mean(present); err != nil {
				return nil, errors.Computation("mean of "+col.Name, err)
			}
		}
		// fewer than two values have no sample deviation
		if len(present) > 1 {
			var err error
			if sd, err = stats.StandardDeviationSample(present); err != nil {
				return nil, errors.Computation("standard deviation of "+col.Name, err)
			}
		}
		result.Columns = append(result.Columns, col.Name)
		result.Means[col.Name] = d.round(mean)
		result.StdDevs[col.Name] = d.round(sd)
	}

	for i, a := range numeric {
		row := make(map[string]domainstats.Value, len(numeric))
		for j, b := range numeric {
			if i == j {
				row[b.Name] = 1.0
				continue
			}
			row[b.Name] = d.round(pairwiseCorrelation(a.Numbers, b.Numbers))
		}
		result.CorrelationMatrix[a.Name] = row
	}

	return result, nil
}

// presentValues drops missing (NaN) cells
func presentValues(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// pairwiseCorrelation is the Pearson correlation over the rows where both
// columns have a value
func pairwiseCorrelation(a, b []float64) float64 {
	xs := make([]float64, 0, len(a))
	ys := make([]float64, 0, len(b))
	for k := range a {
		if math.IsNaN(a[k]) || math.IsNaN(b[k]) {
			continue
		}
		xs = append(xs, a[k])
		ys = append(ys, b[k])
	}
	if len(xs) < 2 {
		return math.NaN()
	}
	return gonumstat.Correlation(xs, ys, nil)
}

func (d *Describer) round(x float64) domainstats.Value {
	return domainstats.Value(core.Round(x, d.precision))
}
