package tabular

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"semprep/domain/core"
	"semprep/domain/dataset"
)

// missingMarkers are the cell spellings treated as "no value" (compared
// case-insensitively after trimming).
var missingMarkers = map[string]struct{}{
	"":     {},
	"na":   {},
	"n/a":  {},
	"nan":  {},
	"null": {},
	"none": {},
	".":    {},
}

// IsMissing reports whether a raw cell denotes a missing value
func IsMissing(cell string) bool {
	_, ok := missingMarkers[strings.ToLower(strings.TrimSpace(cell))]
	return ok
}

// buildTable turns a header row plus data rows into a table
func buildTable(rows [][]string) (*dataset.Table, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: file has no header row", core.ErrMalformedInput)
	}

	header := rows[0]
	names := make([]string, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		names[i] = name
	}

	data := rows[1:]
	columns := make([]*dataset.Column, len(names))
	cells := make([]string, len(data))
	for j, name := range names {
		for i, row := range data {
			if j < len(row) {
				cells[i] = row[j]
			} else {
				cells[i] = ""
			}
		}
		columns[j] = buildColumn(name, cells)
	}
	return dataset.NewTable(columns...)
}

// buildColumn infers the column kind: numeric when every non-missing cell
// parses as a finite float, text otherwise.
func buildColumn(name string, cells []string) *dataset.Column {
	numbers := make([]float64, len(cells))
	numeric := true
	for i, cell := range cells {
		if IsMissing(cell) {
			numbers[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
		if err != nil || math.IsInf(v, 0) {
			numeric = false
			break
		}
		numbers[i] = v
	}
	if numeric {
		return dataset.NewNumericColumn(name, numbers)
	}

	texts := make([]string, len(cells))
	for i, cell := range cells {
		if !IsMissing(cell) {
			texts[i] = strings.TrimSpace(cell)
		}
	}
	return dataset.NewTextColumn(name, texts)
}
