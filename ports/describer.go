package ports

import (
	"semprep/domain/dataset"
	"semprep/domain/stats"
)

// DescriberPort computes descriptive statistics for the numeric columns of a table
type DescriberPort interface {
	Describe(table *dataset.Table) (*stats.DescriptiveStats, error)
}
