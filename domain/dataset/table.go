package dataset

import (
	"fmt"
	"math"

	"semprep/domain/core"
)

// ColumnKind distinguishes numeric columns from free text
type ColumnKind string

const (
	KindNumeric ColumnKind = "numeric"
	KindText    ColumnKind = "text"
)

// Column is a named vector of cells. Numeric columns mark missing cells
// with NaN, text columns with the empty string.
type Column struct {
	Name    string     `json:"name"`
	Kind    ColumnKind `json:"kind"`
	Numbers []float64  `json:"numbers,omitempty"`
	Texts   []string   `json:"texts,omitempty"`
}

// NewNumericColumn creates a numeric column; NaN marks a missing cell
func NewNumericColumn(name string, values []float64) *Column {
	return &Column{Name: name, Kind: KindNumeric, Numbers: values}
}

// NewTextColumn creates a text column; "" marks a missing cell
func NewTextColumn(name string, values []string) *Column {
	return &Column{Name: name, Kind: KindText, Texts: values}
}

// Len returns the number of cells
func (c *Column) Len() int {
	if c.Kind == KindNumeric {
		return len(c.Numbers)
	}
	return len(c.Texts)
}

// IsNumeric reports whether the column holds numbers
func (c *Column) IsNumeric() bool {
	return c.Kind == KindNumeric
}

// IsMissing reports whether cell i is missing
func (c *Column) IsMissing(i int) bool {
	if c.Kind == KindNumeric {
		return math.IsNaN(c.Numbers[i])
	}
	return c.Texts[i] == ""
}

// MissingCount returns the number of missing cells
func (c *Column) MissingCount() int {
	count := 0
	for i := 0; i < c.Len(); i++ {
		if c.IsMissing(i) {
			count++
		}
	}
	return count
}

func (c *Column) subset(rows []int) *Column {
	if c.Kind == KindNumeric {
		values := make([]float64, len(rows))
		for i, r := range rows {
			values[i] = c.Numbers[r]
		}
		return NewNumericColumn(c.Name, values)
	}
	values := make([]string, len(rows))
	for i, r := range rows {
		values[i] = c.Texts[r]
	}
	return NewTextColumn(c.Name, values)
}

// Table is an in-memory, column-oriented dataset. Tables are not modified
// after construction; Select and DropMissing return new tables.
type Table struct {
	columns []*Column
	index   map[string]int
	rows    int
}

// NewTable assembles columns into a table. All columns must have the same
// length and distinct names.
func NewTable(columns ...*Column) (*Table, error) {
	t := &Table{
		columns: make([]*Column, 0, len(columns)),
		index:   make(map[string]int, len(columns)),
	}
	for i, col := range columns {
		if col == nil {
			return nil, fmt.Errorf("%w: column %d is nil", core.ErrMalformedInput, i)
		}
		if _, dup := t.index[col.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate column %q", core.ErrMalformedInput, col.Name)
		}
		if i == 0 {
			t.rows = col.Len()
		} else if col.Len() != t.rows {
			return nil, fmt.Errorf("%w: column %q has %d rows, expected %d",
				core.ErrMalformedInput, col.Name, col.Len(), t.rows)
		}
		t.index[col.Name] = len(t.columns)
		t.columns = append(t.columns, col)
	}
	return t, nil
}

// NumRows returns the number of rows
func (t *Table) NumRows() int {
	return t.rows
}

// NumColumns returns the number of columns
func (t *Table) NumColumns() int {
	return len(t.columns)
}

// ColumnNames returns column names in table order
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.columns))
	for i, col := range t.columns {
		names[i] = col.Name
	}
	return names
}

// Columns returns the columns in table order
func (t *Table) Columns() []*Column {
	out := make([]*Column, len(t.columns))
	copy(out, t.columns)
	return out
}

// Column looks up a column by name
func (t *Table) Column(name string) (*Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.columns[i], true
}

// Floats returns the values of a numeric column
func (t *Table) Floats(name string) ([]float64, error) {
	col, ok := t.Column(name)
	if !ok {
		return nil, core.NewMissingColumnError([]string{name})
	}
	if !col.IsNumeric() {
		return nil, core.NewNonNumericError(name)
	}
	return col.Numbers, nil
}

// NumericColumns returns the numeric columns in table order
func (t *Table) NumericColumns() []*Column {
	var out []*Column
	for _, col := range t.columns {
		if col.IsNumeric() {
			out = append(out, col)
		}
	}
	return out
}

// Select projects the named columns in the given order. Every absent column
// is reported in a single error.
func (t *Table) Select(names ...string) (*Table, error) {
	var missing []string
	selected := make([]*Column, 0, len(names))
	for _, name := range names {
		col, ok := t.Column(name)
		if !ok {
			missing = append(missing, name)
			continue
		}
		selected = append(selected, col)
	}
	if len(missing) > 0 {
		return nil, core.NewMissingColumnError(missing)
	}
	out, err := NewTable(selected...)
	if err != nil {
		return nil, err
	}
	// an empty projection keeps the row count
	out.rows = t.rows
	return out, nil
}

// DropMissing returns the rows that have no missing cell in any column
func (t *Table) DropMissing() *Table {
	keep := make([]int, 0, t.rows)
	for r := 0; r < t.rows; r++ {
		complete := true
		for _, col := range t.columns {
			if col.IsMissing(r) {
				complete = false
				break
			}
		}
		if complete {
			keep = append(keep, r)
		}
	}

	columns := make([]*Column, len(t.columns))
	for i, col := range t.columns {
		columns[i] = col.subset(keep)
	}
	index := make(map[string]int, len(t.index))
	for k, v := range t.index {
		index[k] = v
	}
	return &Table{columns: columns, index: index, rows: len(keep)}
}

// MissingCount returns the number of missing cells across all columns
func (t *Table) MissingCount() int {
	total := 0
	for _, col := range t.columns {
		total += col.MissingCount()
	}
	return total
}
