package ports

import (
	"context"

	"semprep/domain/excerpt"
)

// ExporterPort writes the excerpt document to its destination
type ExporterPort interface {
	Export(ctx context.Context, doc *excerpt.Document, path string) error
}

// ReportPort renders a human-readable summary of the excerpt document
type ReportPort interface {
	WriteReport(ctx context.Context, doc *excerpt.Document, path string) error
}
