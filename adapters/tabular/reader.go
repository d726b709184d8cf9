package tabular

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"semprep/domain/core"
	"semprep/domain/dataset"
	"semprep/internal"
	"semprep/internal/errors"

	"github.com/xuri/excelize/v2"
)

// File formats understood by DataReader
const (
	FormatCSV     = "csv"
	FormatTSV     = "tsv"
	FormatXLSX    = "xlsx"
	FormatParquet = "parquet"
)

var extensionFormats = map[string]string{
	".csv":     FormatCSV,
	".tsv":     FormatTSV,
	".xlsx":    FormatXLSX,
	".xlsm":    FormatXLSX,
	".parquet": FormatParquet,
	".pq":      FormatParquet,
}

// DetectFormat maps a file extension to a supported format
func DetectFormat(path string) (string, bool) {
	format, ok := extensionFormats[strings.ToLower(filepath.Ext(path))]
	return format, ok
}

// DataReader reads CSV, TSV, Excel and Parquet files into a dataset.Table
type DataReader struct {
	sheet  string
	logger *internal.Logger
}

// Option configures a DataReader
type Option func(*DataReader)

// WithSheet selects the worksheet of an Excel workbook
func WithSheet(name string) Option {
	return func(r *DataReader) { r.sheet = name }
}

// WithLogger sets the logger used for timing and shape messages
func WithLogger(logger *internal.Logger) Option {
	return func(r *DataReader) { r.logger = logger }
}

// NewDataReader creates a reader; the format is chosen per file from its extension
func NewDataReader(opts ...Option) *DataReader {
	r := &DataReader{logger: internal.DefaultLogger}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("DataReader")
	return r
}

// Read loads every column and row of the file verbatim
func (r *DataReader) Read(ctx context.Context, path string) (*dataset.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, errors.WithCode(errors.CodeNotFound, fmt.Errorf("%w: %s", core.ErrInputNotFound, path))
	}
	if err != nil {
		return nil, errors.WithCode(errors.CodeInvalidInput, fmt.Errorf("cannot stat %s: %w", path, err))
	}
	if info.IsDir() {
		return nil, errors.InvalidInput(fmt.Sprintf("%s is a directory", path))
	}

	format, ok := DetectFormat(path)
	if !ok {
		return nil, errors.InvalidInput(fmt.Sprintf("unsupported file type: %s", filepath.Ext(path)))
	}
	r.logger.Debug("Starting to read %s file: %s (%d bytes)", format, path, info.Size())

	start := time.Now()
	var table *dataset.Table
	switch format {
	case FormatCSV:
		table, err = r.readDelimited(path, ',')
	case FormatTSV:
		table, err = r.readDelimited(path, '\t')
	case FormatXLSX:
		table, err = r.readExcel(path)
	case FormatParquet:
		table, err = r.readParquet(path)
	}
	if err != nil {
		return nil, errors.WithCode(errors.CodeInvalidInput, err)
	}

	r.logger.Info("%s file processed in %.2fms (%d columns, %d rows)",
		strings.ToUpper(format), float64(time.Since(start).Nanoseconds())/1e6,
		table.NumColumns(), table.NumRows())
	return table, nil
}

// readDelimited reads CSV or TSV data
func (r *DataReader) readDelimited(path string, comma rune) (*dataset.Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.Comma = comma
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrMalformedInput, err)
	}
	return buildTable(rows)
}

// readExcel reads the configured sheet, or the first one, of a workbook
func (r *DataReader) readExcel(path string) (*dataset.Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open Excel file: %v", core.ErrMalformedInput, err)
	}
	defer f.Close()

	sheet := r.sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("%w: workbook has no sheets", core.ErrMalformedInput)
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read sheet %q: %v", core.ErrMalformedInput, sheet, err)
	}
	r.logger.Debug("Sheet %q read (%d rows)", sheet, len(rows))

	// excelize trims trailing empty cells, so rows may be ragged
	if len(rows) > 0 {
		width := len(rows[0])
		for i, row := range rows {
			if len(row) < width {
				padded := make([]string, width)
				copy(padded, row)
				rows[i] = padded
			} else if len(row) > width {
				rows[i] = row[:width]
			}
		}
	}
	return buildTable(rows)
}
