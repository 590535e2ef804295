package dataset

import "strings"

// nullTokens are cell values treated as missing in addition to the empty string.
var nullTokens = map[string]struct{}{
	"na":    {},
	"n/a":   {},
	"null":  {},
	"nil":   {},
	"none":  {},
	"-":     {},
	"#n/a":  {},
	"#null": {},
}

// Dataset is an immutable, column-oriented table loaded from an uploaded file.
// Cells are raw strings; IsMissing reports which ones carry no value.
type Dataset struct {
	columns []Column
	rows    int
}

type Column struct {
	Name  string
	Cells []string
}

func New(columns []Column) *Dataset {
	rows := 0
	if len(columns) > 0 {
		rows = len(columns[0].Cells)
	}
	return &Dataset{columns: columns, rows: rows}
}

func (d *Dataset) Rows() int {
	return d.rows
}

func (d *Dataset) NumColumns() int {
	return len(d.columns)
}

func (d *Dataset) Columns() []Column {
	return d.columns
}

func (d *Dataset) Column(name string) (Column, bool) {
	for _, c := range d.columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// IsMissing reports whether a raw cell value represents a missing value.
func IsMissing(cell string) bool {
	trimmed := strings.TrimSpace(cell)
	if trimmed == "" {
		return true
	}
	_, ok := nullTokens[strings.ToLower(trimmed)]
	return ok
}

// NonMissing returns the column's present values in row order.
func (c Column) NonMissing() []string {
	values := make([]string, 0, len(c.Cells))
	for _, cell := range c.Cells {
		if !IsMissing(cell) {
			values = append(values, strings.TrimSpace(cell))
		}
	}
	return values
}

// MissingCount returns how many cells in the column are missing.
func (c Column) MissingCount() int {
	count := 0
	for _, cell := range c.Cells {
		if IsMissing(cell) {
			count++
		}
	}
	return count
}
