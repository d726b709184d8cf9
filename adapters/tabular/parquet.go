package tabular

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"semprep/domain/core"
	"semprep/domain/dataset"

	"github.com/parquet-go/parquet-go"
)

const parquetBatchSize = 512

// parquetColumn accumulates the cells of one leaf column. Physical numeric
// types fill numbers, everything else fills texts; only real nulls are missing.
type parquetColumn struct {
	name    string
	numeric bool
	numbers []float64
	texts   []string
}

func (c *parquetColumn) append(v parquet.Value) {
	if c.numeric {
		c.numbers = append(c.numbers, parquetNumber(v))
		return
	}
	c.texts = append(c.texts, parquetText(v))
}

func (c *parquetColumn) build() *dataset.Column {
	if c.numeric {
		return dataset.NewNumericColumn(c.name, c.numbers)
	}
	return dataset.NewTextColumn(c.name, c.texts)
}

// readParquet reads every row group of a flat Parquet file. Column kinds
// come from the physical type of each leaf, so a string column holding "NA"
// or "12" stays text and no missing-value markers apply.
func (r *DataReader) readParquet(path string) (*dataset.Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Parquet file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat Parquet file: %w", err)
	}

	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrMalformedInput, err)
	}

	schema := pf.Schema()
	paths := schema.Columns()
	columns := make([]*parquetColumn, len(paths))
	for i, p := range paths {
		col := &parquetColumn{name: strings.Join(p, ".")}
		if leaf, ok := schema.Lookup(p...); ok {
			col.numeric = isNumericKind(leaf.Node.Type().Kind())
		}
		columns[i] = col
	}
	r.logger.Debug("Parquet schema has %d leaf columns, %d rows in %d row groups",
		len(columns), pf.NumRows(), len(pf.RowGroups()))

	buf := make([]parquet.Row, parquetBatchSize)
	for _, rg := range pf.RowGroups() {
		if err := readRowGroup(rg, buf, columns); err != nil {
			return nil, err
		}
	}

	built := make([]*dataset.Column, len(columns))
	for i, col := range columns {
		built[i] = col.build()
	}
	return dataset.NewTable(built...)
}

func readRowGroup(rg parquet.RowGroup, buf []parquet.Row, columns []*parquetColumn) error {
	rows := rg.Rows()
	defer rows.Close()

	for {
		n, err := rows.ReadRows(buf)
		for _, row := range buf[:n] {
			for _, v := range row {
				col := v.Column()
				if col < 0 || col >= len(columns) {
					continue
				}
				columns[col].append(v)
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: reading row group: %v", core.ErrMalformedInput, err)
		}
	}
}

func isNumericKind(kind parquet.Kind) bool {
	switch kind {
	case parquet.Boolean, parquet.Int32, parquet.Int64, parquet.Float, parquet.Double:
		return true
	default:
		return false
	}
}

// parquetNumber converts a numeric leaf value; null becomes NaN
func parquetNumber(v parquet.Value) float64 {
	if v.IsNull() {
		return math.NaN()
	}
	switch v.Kind() {
	case parquet.Boolean:
		if v.Boolean() {
			return 1
		}
		return 0
	case parquet.Int32:
		return float64(v.Int32())
	case parquet.Int64:
		return float64(v.Int64())
	case parquet.Float:
		return float64(v.Float())
	case parquet.Double:
		return v.Double()
	default:
		return math.NaN()
	}
}

// parquetText renders a non-numeric leaf value; null becomes the empty cell
func parquetText(v parquet.Value) string {
	if v.IsNull() {
		return ""
	}
	switch v.Kind() {
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(v.ByteArray())
	default:
		return v.String()
	}
}
