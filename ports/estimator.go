package ports

import (
	"context"

	"semprep/domain/dataset"
	"semprep/domain/sem"
)

// EstimatorPort fits a structural equation model given in lavaan-style
// syntax to the observed columns of a table.
type EstimatorPort interface {
	Fit(ctx context.Context, description string, data *dataset.Table) (*sem.Estimates, error)
}
