package statcan

import (
	"errors"
	"math/rand"
	"reflect"
	"testing"

	"github.com/ocandata/statcango/internal/table"
)

func newObsTable(columns []string, rows ...[]string) *table.Table {
	t := table.New(columns...)
	for _, r := range rows {
		t.AppendRow(r...)
	}
	return t
}

// ---------------------------------------------------------------------------
// End-to-end reshape
// ---------------------------------------------------------------------------

func TestToWideExample(t *testing.T) {
	obs := newObsTable(
		[]string{"GEO", "Age group", "Element", "VALUE"},
		[]string{"Toronto", "0-4", "Population", "100"},
		[]string{"Toronto", "0-4", "Births", "5"},
		[]string{"Ottawa", "0-4", "Population", "80"},
	)

	wide, err := ToWide(obs, "Element")
	if err != nil {
		t.Fatal(err)
	}

	wantCols := []string{"GEO", "Age group", "Births", "Population"}
	if !reflect.DeepEqual(wide.Columns, wantCols) {
		t.Fatalf("columns = %v, want %v", wide.Columns, wantCols)
	}
	wantRows := [][]string{
		{"Toronto", "0-4", "5", "100"},
		{"Ottawa", "0-4", table.Missing, "80"},
	}
	if !reflect.DeepEqual(wide.Rows, wantRows) {
		t.Fatalf("rows = %v, want %v", wide.Rows, wantRows)
	}
}

func TestToWideRowCountEqualsDistinctGroups(t *testing.T) {
	obs := newObsTable(
		[]string{"GEO", "Sex", "Element", "UOM", "VALUE"},
		[]string{"Toronto", "Male", "Population", "Persons", "10"},
		[]string{"Toronto", "Female", "Population", "Persons", "12"},
		[]string{"Toronto", "Male", "Births", "Persons", "1"},
		[]string{"Ottawa", "Male", "Population", "Persons", "7"},
		[]string{"Ottawa", "Male", "Deaths", "Persons", "2"},
	)
	wide, err := ToWide(obs, "Element")
	if err != nil {
		t.Fatal(err)
	}
	// Distinct (GEO, Sex) tuples: (Toronto,Male), (Toronto,Female), (Ottawa,Male).
	// UOM is a control column and must not split groups.
	if wide.Len() != 3 {
		t.Errorf("rows = %d, want 3", wide.Len())
	}
}

func TestToWideColumnCompleteness(t *testing.T) {
	obs := newObsTable(
		[]string{"GEO", "Element", "VALUE"},
		[]string{"Toronto", "Population", "100"},
		[]string{"Ottawa", "Births", "3"},
	)
	wide, err := ToWide(obs, "Element")
	if err != nil {
		t.Fatal(err)
	}
	for _, col := range []string{"Births", "Population"} {
		if !wide.HasColumn(col) {
			t.Errorf("missing pivot column %q", col)
		}
	}
	// Absent combinations materialize as missing cells.
	if got := wide.Cell(0, "Births"); got != table.Missing {
		t.Errorf("Toronto Births = %q, want missing", got)
	}
	if got := wide.Cell(1, "Population"); got != table.Missing {
		t.Errorf("Ottawa Population = %q, want missing", got)
	}
}

func TestToWideMaxAggregation(t *testing.T) {
	obs := newObsTable(
		[]string{"GEO", "Element", "VALUE"},
		[]string{"Toronto", "Population", "3"},
		[]string{"Toronto", "Population", "7"},
	)
	wide, err := ToWide(obs, "Element")
	if err != nil {
		t.Fatal(err)
	}
	if wide.Len() != 1 {
		t.Fatalf("rows = %d, want 1", wide.Len())
	}
	if got := wide.Cell(0, "Population"); got != "7" {
		t.Errorf("cell = %q, want 7 (max aggregation)", got)
	}
}

func TestToWideReorderInvariance(t *testing.T) {
	columns := []string{"GEO", "Age group", "Element", "VALUE"}
	rows := [][]string{
		{"Toronto", "0-4", "Population", "100"},
		{"Toronto", "0-4", "Births", "5"},
		{"Ottawa", "0-4", "Population", "80"},
		{"Ottawa", "5-9", "Births", "2"},
		{"Toronto", "5-9", "Population", "90"},
	}

	wide1, err := ToWide(newObsTable(columns, rows...), "Element")
	if err != nil {
		t.Fatal(err)
	}

	shuffled := make([][]string, len(rows))
	copy(shuffled, rows)
	rng := rand.New(rand.NewSource(1))
	rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	wide2, err := ToWide(newObsTable(columns, shuffled...), "Element")
	if err != nil {
		t.Fatal(err)
	}

	// Row order may differ; compare cell sets keyed by group values.
	if !reflect.DeepEqual(cellsByKey(t, wide1), cellsByKey(t, wide2)) {
		t.Errorf("cells differ after input reorder:\n%v\n%v", cellsByKey(t, wide1), cellsByKey(t, wide2))
	}
}

// cellsByKey maps "GEO|Age group" to pivot column -> cell value.
func cellsByKey(t *testing.T, w *table.Table) map[string]map[string]string {
	t.Helper()
	out := make(map[string]map[string]string)
	for r := range w.Rows {
		key := w.Cell(r, "GEO") + "|" + w.Cell(r, "Age group")
		cells := make(map[string]string)
		for _, col := range w.Columns {
			if col == "GEO" || col == "Age group" {
				continue
			}
			cells[col] = w.Cell(r, col)
		}
		out[key] = cells
	}
	return out
}

// ---------------------------------------------------------------------------
// Edge cases
// ---------------------------------------------------------------------------

func TestToWideEmptyGroupCols(t *testing.T) {
	// Every column is pivot, value, or control: all rows collapse to one.
	obs := newObsTable(
		[]string{"UOM", "Element", "VALUE"},
		[]string{"Persons", "Population", "100"},
		[]string{"Persons", "Births", "5"},
	)
	wide, err := ToWide(obs, "Element")
	if err != nil {
		t.Fatal(err)
	}
	if wide.Len() != 1 {
		t.Fatalf("rows = %d, want 1", wide.Len())
	}
	if got := wide.Cell(0, "Population"); got != "100" {
		t.Errorf("Population = %q, want 100", got)
	}
	if got := wide.Cell(0, "Births"); got != "5" {
		t.Errorf("Births = %q, want 5", got)
	}
}

func TestToWideControlColumnsKeptInBase(t *testing.T) {
	obs := newObsTable(
		[]string{"GEO", "Element", "UOM", "VALUE"},
		[]string{"Toronto", "Population", "Persons", "100"},
	)
	wide, err := ToWide(obs, "Element")
	if err != nil {
		t.Fatal(err)
	}
	// Control columns survive the reshape (the facade drops them later).
	if !wide.HasColumn("UOM") {
		t.Error("UOM dropped by reshape")
	}
	if got := wide.Cell(0, "UOM"); got != "Persons" {
		t.Errorf("UOM = %q, want Persons", got)
	}
}

func TestToWideMissingColumns(t *testing.T) {
	obs := newObsTable([]string{"GEO", "VALUE"}, []string{"Toronto", "1"})
	if _, err := ToWide(obs, "Element"); err == nil {
		t.Error("expected error for missing pivot column")
	} else {
		var reshapeErr *ReshapeError
		if !errors.As(err, &reshapeErr) {
			t.Errorf("error type %T, want *ReshapeError", err)
		}
	}

	obs = newObsTable([]string{"GEO", "Element"}, []string{"Toronto", "Population"})
	if _, err := ToWide(obs, "Element"); err == nil {
		t.Error("expected error for missing VALUE column")
	}
}

func TestToWideNonNumericValue(t *testing.T) {
	obs := newObsTable(
		[]string{"GEO", "Element", "VALUE"},
		[]string{"Toronto", "Population", "n/a"},
	)
	if _, err := ToWide(obs, "Element"); err == nil {
		t.Error("expected error for non-numeric VALUE")
	}
}

func TestToWideMissingValueCell(t *testing.T) {
	obs := newObsTable(
		[]string{"GEO", "Element", "VALUE"},
		[]string{"Toronto", "Population", table.Missing},
	)
	wide, err := ToWide(obs, "Element")
	if err != nil {
		t.Fatal(err)
	}
	if got := wide.Cell(0, "Population"); got != table.Missing {
		t.Errorf("cell = %q, want missing", got)
	}
}
