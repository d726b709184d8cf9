package testkit

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"semprep/domain/dataset"
)

// WriteCSV writes a table as CSV with a header row; missing cells are empty
func WriteCSV(path string, table *dataset.Table) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(table.ColumnNames()); err != nil {
		return err
	}

	cols := table.Columns()
	record := make([]string, len(cols))
	for r := 0; r < table.NumRows(); r++ {
		for j, col := range cols {
			switch {
			case col.IsMissing(r):
				record[j] = ""
			case col.IsNumeric():
				record[j] = strconv.FormatFloat(col.Numbers[r], 'g', -1, 64)
			default:
				record[j] = col.Texts[r]
			}
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return file.Close()
}
