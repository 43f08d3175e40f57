package statcan

import (
	"sort"
	"strconv"
	"strings"

	"github.com/ocandata/statcango/internal/table"
)

// ValueColumn is the observation value column in StatCan data files.
const ValueColumn = "VALUE"

// ControlColumns are the fixed annotation columns excluded from
// grouping during the wide reshape.
var ControlColumns = []string{
	"VECTOR", "COORDINATE", "DECIMALS",
	"STATUS", "SYMBOL", "TERMINATED",
	"SCALAR_FACTOR", "SCALAR_ID", "DGUID", "UOM", "UOM_ID",
}

var controlSet = func() map[string]bool {
	m := make(map[string]bool, len(ControlColumns))
	for _, c := range ControlColumns {
		m[c] = true
	}
	return m
}()

// groupSep joins dimension values into a group key. Unit separator does
// not appear in StatCan cell values.
const groupSep = "\x1f"

// ToWide converts a long-format observation table to wide format: one
// row per distinct combination of dimension-column values, one column
// per distinct value of pivotColumn.
//
// Dimension columns are every column that is not a control column, not
// the pivot, and not VALUE — computed from the table at call time, so
// datasets with differing dimension sets all work. When several input
// rows share the same group and pivot value the maximum VALUE wins;
// this aggregation policy follows the upstream data-quality handling
// and is worth confirming against the source semantics. Combinations
// with no input row materialize as missing cells.
func ToWide(t *table.Table, pivotColumn string) (*table.Table, error) {
	pivotIdx := t.ColumnIndex(pivotColumn)
	if pivotIdx < 0 {
		return nil, &ReshapeError{Column: pivotColumn, Detail: "not present in table"}
	}
	valueIdx := t.ColumnIndex(ValueColumn)
	if valueIdx < 0 {
		return nil, &ReshapeError{Column: ValueColumn, Detail: "not present in table"}
	}

	// Base columns: everything but pivot and VALUE, original order.
	// Group columns: base columns minus the control set.
	var baseIdx, groupIdx []int
	for i, name := range t.Columns {
		if i == pivotIdx || i == valueIdx {
			continue
		}
		baseIdx = append(baseIdx, i)
		if !controlSet[name] {
			groupIdx = append(groupIdx, i)
		}
	}

	// Number groups by first appearance of the group-column tuple.
	groupOf := make([]int, len(t.Rows))
	groupIDs := make(map[string]int)
	var firstRow []int // first input row of each group
	for r, row := range t.Rows {
		parts := make([]string, len(groupIdx))
		for j, i := range groupIdx {
			parts[j] = row[i]
		}
		key := strings.Join(parts, groupSep)
		id, ok := groupIDs[key]
		if !ok {
			id = len(firstRow)
			groupIDs[key] = id
			firstRow = append(firstRow, r)
		}
		groupOf[r] = id
	}

	// Distinct pivot values, sorted; these become the new columns.
	pivotSeen := make(map[string]bool)
	var pivotVals []string
	for _, row := range t.Rows {
		v := row[pivotIdx]
		if !pivotSeen[v] {
			pivotSeen[v] = true
			pivotVals = append(pivotVals, v)
		}
	}
	sort.Strings(pivotVals)
	pivotCol := make(map[string]int, len(pivotVals))
	for i, v := range pivotVals {
		pivotCol[v] = i
	}

	// Dense group × pivot matrix, max-aggregated.
	type cell struct {
		val float64
		set bool
	}
	cells := make([][]cell, len(firstRow))
	for i := range cells {
		cells[i] = make([]cell, len(pivotVals))
	}
	for r, row := range t.Rows {
		raw := row[valueIdx]
		if raw == table.Missing {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, &ReshapeError{Column: ValueColumn, Detail: "non-numeric value " + strconv.Quote(raw)}
		}
		c := &cells[groupOf[r]][pivotCol[row[pivotIdx]]]
		if !c.set || v > c.val {
			c.val = v
			c.set = true
		}
	}

	// Assemble: base columns from the group's first row, then one
	// column per pivot value.
	out := table.New()
	for _, i := range baseIdx {
		out.Columns = append(out.Columns, t.Columns[i])
	}
	out.Columns = append(out.Columns, pivotVals...)
	for g, r := range firstRow {
		row := make([]string, 0, len(baseIdx)+len(pivotVals))
		for _, i := range baseIdx {
			row = append(row, t.Rows[r][i])
		}
		for _, c := range cells[g] {
			if c.set {
				row = append(row, strconv.FormatFloat(c.val, 'g', -1, 64))
			} else {
				row = append(row, table.Missing)
			}
		}
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}
