// Package table provides a small in-memory table for StatCan CSV files.
//
// Cells are stored as strings; the Missing constant marks absent values.
// Columns carry optional type tags so callers can mark categorical and
// date columns the way the upstream CSV schema expects.
package table

import (
	"fmt"
	"time"
)

// Missing marks an absent cell value.
const Missing = ""

// TypeTag describes the coercion applied to a column.
type TypeTag int

const (
	String TypeTag = iota
	Category
	Number
	Date
)

func (t TypeTag) String() string {
	switch t {
	case Category:
		return "category"
	case Number:
		return "number"
	case Date:
		return "date"
	default:
		return "string"
	}
}

// Table is an ordered sequence of rows with named columns.
type Table struct {
	Columns []string
	Rows    [][]string

	// Index names the column used as the row index after SetIndex.
	// Empty when no index has been assigned.
	Index string

	types map[string]TypeTag
}

// New creates an empty table with the given column names.
func New(columns ...string) *Table {
	return &Table{
		Columns: append([]string(nil), columns...),
		types:   make(map[string]TypeTag),
	}
}

// AppendRow adds a row, padding or truncating it to the column count.
func (t *Table) AppendRow(cells ...string) {
	row := make([]string, len(t.Columns))
	copy(row, cells)
	t.Rows = append(t.Rows, row)
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// ColumnIndex returns the position of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// HasColumn reports whether the named column exists.
func (t *Table) HasColumn(name string) bool { return t.ColumnIndex(name) >= 0 }

// Column returns all cell values of the named column in row order.
func (t *Table) Column(name string) ([]string, error) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil, fmt.Errorf("table: no column %q", name)
	}
	vals := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		vals[i] = row[idx]
	}
	return vals, nil
}

// Cell returns the value at (row, column name).
func (t *Table) Cell(row int, name string) string {
	idx := t.ColumnIndex(name)
	if idx < 0 || row < 0 || row >= len(t.Rows) {
		return Missing
	}
	return t.Rows[row][idx]
}

// SetType tags a column with a type. Unknown columns are ignored so a
// shared type map can be applied to tables with differing schemas.
func (t *Table) SetType(name string, tag TypeTag) {
	if !t.HasColumn(name) {
		return
	}
	if t.types == nil {
		t.types = make(map[string]TypeTag)
	}
	t.types[name] = tag
}

// TypeOf returns the tag of a column; untagged columns are String.
func (t *Table) TypeOf(name string) TypeTag { return t.types[name] }

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	out := New(t.Columns...)
	out.Index = t.Index
	out.Rows = make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		out.Rows[i] = append([]string(nil), row...)
	}
	for name, tag := range t.types {
		out.types[name] = tag
	}
	return out
}

// DropColumns returns a copy of the table without the named columns.
// Names that do not exist are ignored.
func (t *Table) DropColumns(names ...string) *Table {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	var keep []int
	out := New()
	for i, c := range t.Columns {
		if drop[c] {
			continue
		}
		keep = append(keep, i)
		out.Columns = append(out.Columns, c)
		if tag, ok := t.types[c]; ok {
			out.types[c] = tag
		}
	}
	if !drop[t.Index] {
		out.Index = t.Index
	}
	out.Rows = make([][]string, len(t.Rows))
	for r, row := range t.Rows {
		cells := make([]string, len(keep))
		for j, i := range keep {
			cells[j] = row[i]
		}
		out.Rows[r] = cells
	}
	return out
}

// RenameColumn renames a column in place. Missing columns are a no-op,
// mirroring a rename map applied to tables that may lack some columns.
func (t *Table) RenameColumn(from, to string) {
	idx := t.ColumnIndex(from)
	if idx < 0 {
		return
	}
	t.Columns[idx] = to
	if tag, ok := t.types[from]; ok {
		delete(t.types, from)
		t.types[to] = tag
	}
	if t.Index == from {
		t.Index = to
	}
}

// SetIndex marks the named column as the table's row index and moves it
// to the first position. Duplicate index values are permitted.
func (t *Table) SetIndex(name string) error {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return fmt.Errorf("table: index column %q not found", name)
	}
	if idx > 0 {
		t.Columns = append([]string{name}, append(append([]string(nil), t.Columns[:idx]...), t.Columns[idx+1:]...)...)
		for r, row := range t.Rows {
			v := row[idx]
			copy(row[1:idx+1], row[:idx])
			row[0] = v
			t.Rows[r] = row
		}
	}
	t.Index = name
	return nil
}

// DistinctPairs returns the distinct (a, b) value pairs as a two-column
// table, sorted by a then b. Duplicate a values with differing b values
// are all retained.
func (t *Table) DistinctPairs(a, b string) (*Table, error) {
	ai := t.ColumnIndex(a)
	bi := t.ColumnIndex(b)
	if ai < 0 {
		return nil, fmt.Errorf("table: no column %q", a)
	}
	if bi < 0 {
		return nil, fmt.Errorf("table: no column %q", b)
	}
	seen := make(map[[2]string]bool)
	var pairs [][2]string
	for _, row := range t.Rows {
		p := [2]string{row[ai], row[bi]}
		if seen[p] {
			continue
		}
		seen[p] = true
		pairs = append(pairs, p)
	}
	sortPairs(pairs)
	out := New(a, b)
	for _, p := range pairs {
		out.AppendRow(p[0], p[1])
	}
	return out, nil
}

func sortPairs(pairs [][2]string) {
	// Insertion sort keeps this dependency-free; units tables are tiny.
	for i := 1; i < len(pairs); i++ {
		for j := i; j > 0; j-- {
			if pairs[j][0] < pairs[j-1][0] ||
				(pairs[j][0] == pairs[j-1][0] && pairs[j][1] < pairs[j-1][1]) {
				pairs[j], pairs[j-1] = pairs[j-1], pairs[j]
			} else {
				break
			}
		}
	}
}

// dateLayouts are the reference-date shapes StatCan publishes: daily,
// monthly, and annual periods.
var dateLayouts = []string{"2006-01-02", "2006-01", "2006"}

// NormalizeDates parses every value of the named column as a calendar
// date and rewrites it in YYYY-MM-DD form, tagging the column as Date.
// If any cell is missing the column is left untouched (partial data
// would otherwise fail over nulls). A non-missing value that cannot be
// parsed is an error.
func (t *Table) NormalizeDates(name string) error {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil
	}
	for _, row := range t.Rows {
		if row[idx] == Missing {
			return nil
		}
	}
	normalized := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		d, err := parseDate(row[idx])
		if err != nil {
			return fmt.Errorf("table: column %q row %d: %w", name, i, err)
		}
		normalized[i] = d.Format("2006-01-02")
	}
	for i := range t.Rows {
		t.Rows[i][idx] = normalized[i]
	}
	t.SetType(name, Date)
	return nil
}

func parseDate(v string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, v); err == nil {
			return d, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", v)
}
