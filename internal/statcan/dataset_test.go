package statcan

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

const testDataCSV = `REF_DATE,GEO,Age group,Element,UOM,VALUE
2001,Toronto,0 to 4,Population,Persons,100
2001,Toronto,0 to 4,Births,Persons,5
2001,Ottawa,0 to 4,Population,Persons,80
`

const testMetadataCSV = `"Cube Title","Product Id","CANSIM Id"
"Population estimates","17100005","051-0001"
"Dimension ID","Dimension name","Dimension Notes"
"1","Geography",""
"2","Age group",""
"3","Element",""
"Dimension ID","Member Name","Classification Code"
"1","Canada",""
"Symbol Legend","Description"
"Survey Code","Survey Name"
"3601","Population Estimates Program"
"Subject Code","Subject Name"
"17","Population and demography"
"Note ID","Note"
"1","Age at last birthday."
"Correction ID","Correction Date"
`

// stubFetcher satisfies Fetcher by writing fixture CSVs to a temp dir.
type stubFetcher struct {
	dir   string
	calls int
}

func (f *stubFetcher) FetchAndExtract(_ context.Context, _, resourceID string) (string, string, error) {
	f.calls++
	dataPath := filepath.Join(f.dir, resourceID+".csv")
	metaPath := filepath.Join(f.dir, resourceID+"_MetaData.csv")
	if err := os.WriteFile(dataPath, []byte(testDataCSV), 0o644); err != nil {
		return "", "", err
	}
	if err := os.WriteFile(metaPath, []byte(testMetadataCSV), 0o644); err != nil {
		return "", "", err
	}
	return dataPath, metaPath, nil
}

func newTestDataset(t *testing.T) (*Dataset, *stubFetcher) {
	t.Helper()
	fetcher := &stubFetcher{dir: t.TempDir()}
	ds, err := NewDataset("https://www150.statcan.gc.ca/n1/tbl/csv/17100005-eng.zip",
		WithFetcher(fetcher))
	if err != nil {
		t.Fatal(err)
	}
	return ds, fetcher
}

func TestNewDatasetRejectsNonZip(t *testing.T) {
	_, err := NewDataset("https://example.org/17100005-eng.csv")
	if err == nil {
		t.Fatal("expected error for non-zip url")
	}
}

func TestDatasetGetDataWide(t *testing.T) {
	ds, _ := newTestDataset(t)

	data, err := ds.GetData(context.Background(), DefaultDataOptions())
	if err != nil {
		t.Fatal(err)
	}

	// Wide on Element; UOM dropped; REF_DATE parsed and renamed.
	wantCols := []string{"Date", "Geo", "Age group", "Births", "Population"}
	if !reflect.DeepEqual(data.Columns, wantCols) {
		t.Fatalf("columns = %v, want %v", data.Columns, wantCols)
	}
	wantRows := [][]string{
		{"2001-01-01", "Toronto", "0 to 4", "5", "100"},
		{"2001-01-01", "Ottawa", "0 to 4", "", "80"},
	}
	if !reflect.DeepEqual(data.Rows, wantRows) {
		t.Fatalf("rows = %v, want %v", data.Rows, wantRows)
	}
}

func TestDatasetGetDataLong(t *testing.T) {
	ds, _ := newTestDataset(t)

	data, err := ds.GetData(context.Background(), DataOptions{Wide: false, DropControlCols: false})
	if err != nil {
		t.Fatal(err)
	}
	if data.Len() != 3 {
		t.Errorf("rows = %d, want 3", data.Len())
	}
	if !data.HasColumn("UOM") {
		t.Error("UOM missing from long table with controls kept")
	}
	if !data.HasColumn("Date") || data.HasColumn("REF_DATE") {
		t.Error("REF_DATE not renamed to Date")
	}
}

func TestDatasetIndexCol(t *testing.T) {
	ds, _ := newTestDataset(t)

	opts := DefaultDataOptions()
	opts.IndexCol = "Geo"
	data, err := ds.GetData(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if data.Index != "Geo" {
		t.Errorf("index = %q, want Geo", data.Index)
	}
	if data.Columns[0] != "Geo" {
		t.Errorf("first column = %q, want Geo", data.Columns[0])
	}
}

func TestDatasetIndexColMissing(t *testing.T) {
	ds, _ := newTestDataset(t)

	opts := DefaultDataOptions()
	opts.IndexCol = "NoSuchColumn"
	if _, err := ds.GetData(context.Background(), opts); err == nil {
		t.Fatal("expected error for missing index column")
	}
}

func TestDatasetFetchOnce(t *testing.T) {
	ds, fetcher := newTestDataset(t)
	ctx := context.Background()

	if _, err := ds.GetData(ctx, DefaultDataOptions()); err != nil {
		t.Fatal(err)
	}
	// A different shape re-derives from the cached parse.
	if _, err := ds.GetData(ctx, DataOptions{Wide: false}); err != nil {
		t.Fatal(err)
	}
	if _, err := ds.GetMetadata(ctx); err != nil {
		t.Fatal(err)
	}
	if fetcher.calls != 1 {
		t.Errorf("fetch calls = %d, want 1", fetcher.calls)
	}
}

func TestDatasetPrimaryDimension(t *testing.T) {
	ds, _ := newTestDataset(t)
	pivot, err := ds.PrimaryDimension(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if pivot != "Element" {
		t.Errorf("primary dimension = %q, want Element", pivot)
	}
}

func TestDatasetUnitsOfMeasure(t *testing.T) {
	ds, _ := newTestDataset(t)
	units, err := ds.UnitsOfMeasure(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := [][]string{
		{"Births", "Persons"},
		{"Population", "Persons"},
	}
	if !reflect.DeepEqual(units.Rows, want) {
		t.Errorf("units = %v, want %v", units.Rows, want)
	}
}

func TestDatasetNoFetcher(t *testing.T) {
	ds, err := NewDataset("https://example.org/17100005-eng.zip")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ds.GetData(context.Background(), DefaultDataOptions()); err == nil {
		t.Fatal("expected error without a fetcher")
	}
}
