package ports

import (
	"context"

	"semprep/domain/dataset"
)

// TableReaderPort loads a data file into an in-memory table
type TableReaderPort interface {
	Read(ctx context.Context, path string) (*dataset.Table, error)
}
