// Package export writes the excerpt document to disk: the JSON file read by
// the teaching page and an optional HTML summary.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"semprep/domain/excerpt"
	"semprep/internal"
)

// JSONExporter writes the document as 2-space indented UTF-8 JSON
type JSONExporter struct {
	logger *internal.Logger
}

// NewJSONExporter creates a JSON exporter
func NewJSONExporter(logger *internal.Logger) *JSONExporter {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &JSONExporter{logger: logger.With("Export")}
}

// Marshal renders the document exactly as Export writes it
func Marshal(doc *excerpt.Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Export creates the parent directory if needed and overwrites path
func (e *JSONExporter) Export(ctx context.Context, doc *excerpt.Document, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal excerpt: %w", err)
	}
	if err := ensureParent(path); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write excerpt file: %w", err)
	}

	e.logger.Debug("wrote %d bytes to %s", len(data), path)
	return nil
}

func ensureParent(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return nil
}
