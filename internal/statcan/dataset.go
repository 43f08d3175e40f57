package statcan

import (
	"context"

	"github.com/ocandata/statcango/internal/table"
)

// CategoryTypes tags the StatCan columns that are categorical, keeping
// repeated values interned when the data file is parsed.
var CategoryTypes = map[string]table.TypeTag{
	"Age group":     table.Category,
	"Sex":           table.Category,
	"UOM":           table.Category,
	"UOM_ID":        table.Category,
	"GEO":           table.Category,
	"SCALAR_FACTOR": table.Category,
	"SCALAR_ID":     table.Category,
	"STATUS":        table.Category,
	"SYMBOL":        table.Category,
}

// presentationRenames maps raw StatCan column names to friendlier ones
// applied to the returned table.
var presentationRenames = map[string]string{
	"REF_DATE": "Date",
	"GEO":      "Geo",
}

// Fetcher downloads and extracts one dataset zip, returning the local
// paths of the data and metadata CSV members. Implementations own
// network, caching, and timeout behavior.
type Fetcher interface {
	FetchAndExtract(ctx context.Context, url, resourceID string) (dataPath, metadataPath string, err error)
}

// DataOptions control GetData. The zero value returns the raw long
// table with control columns intact; DefaultDataOptions matches the
// usual wide, control-free presentation.
type DataOptions struct {
	// Wide reshapes to one row per dimension combination, one column
	// per primary-dimension value.
	Wide bool

	// IndexCol re-indexes the result by the named column. The column
	// must exist in the result; duplicate values are permitted.
	IndexCol string

	// DropControlCols removes any control columns present.
	DropControlCols bool
}

// DefaultDataOptions returns the standard presentation: wide, no
// control columns.
func DefaultDataOptions() DataOptions {
	return DataOptions{Wide: true, DropControlCols: true}
}

// Dataset is the user-facing handle for one StatCan full table. The
// fetch happens once; metadata, the raw observation parse, and the
// units-of-measure lookup are cached on the instance for its lifetime.
// A Dataset is not safe for concurrent use.
type Dataset struct {
	url     string
	info    *URL
	fetcher Fetcher

	meta  *Metadata
	raw   *table.Table // long-format parse of the data CSV
	units *table.Table // primary dimension value -> UOM
}

// Option configures a Dataset.
type Option func(*Dataset)

// WithFetcher sets the fetch collaborator.
func WithFetcher(f Fetcher) Option {
	return func(d *Dataset) { d.fetcher = f }
}

// NewDataset validates the dataset zip URL and returns a handle.
// Nothing is fetched until data or metadata is first requested.
func NewDataset(rawurl string, opts ...Option) (*Dataset, error) {
	info, err := ParseURL(rawurl)
	if err != nil {
		return nil, err
	}
	if info.Extension != "zip" {
		return nil, &ParseError{URL: rawurl, Detail: "expected a .zip full-table download"}
	}
	d := &Dataset{url: rawurl, info: info}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// URLInfo returns the parsed dataset identifier.
func (d *Dataset) URLInfo() *URL { return d.info }

// ID returns the dataset identity shared across language variants.
func (d *Dataset) ID() string { return d.info.ID() }

// GetMetadata fetches (once) and parses the metadata file.
func (d *Dataset) GetMetadata(ctx context.Context) (*Metadata, error) {
	if d.meta != nil {
		return d.meta, nil
	}
	_, metaPath, err := d.fetch(ctx)
	if err != nil {
		return nil, err
	}
	rawMeta, err := table.ReadCSV(metaPath, nil)
	if err != nil {
		return nil, err
	}
	meta, err := ParseMetadata(rawMeta)
	if err != nil {
		return nil, err
	}
	d.meta = meta
	return meta, nil
}

// Dimensions returns the metadata dimensions table.
func (d *Dataset) Dimensions(ctx context.Context) (*table.Table, error) {
	meta, err := d.GetMetadata(ctx)
	if err != nil {
		return nil, err
	}
	return meta.Dimensions, nil
}

// PrimaryDimension returns the dimension used as the wide pivot.
func (d *Dataset) PrimaryDimension(ctx context.Context) (string, error) {
	meta, err := d.GetMetadata(ctx)
	if err != nil {
		return "", err
	}
	return meta.PivotColumn(), nil
}

// UnitsOfMeasure returns the primary-dimension-value to UOM lookup,
// captured from the pre-reshape table on first data load. One pivot
// value can carry conflicting UOM rows in the source; all distinct
// pairs are kept, sorted.
func (d *Dataset) UnitsOfMeasure(ctx context.Context) (*table.Table, error) {
	if d.units != nil {
		return d.units, nil
	}
	if err := d.loadData(ctx); err != nil {
		return nil, err
	}
	return d.units, nil
}

// GetData returns the dataset's observation table shaped per opts.
// The fetch and raw parse happen once; later calls with different
// options re-derive from the cached parse.
func (d *Dataset) GetData(ctx context.Context, opts DataOptions) (*table.Table, error) {
	if err := d.loadData(ctx); err != nil {
		return nil, err
	}
	return d.transform(d.raw, opts)
}

// fetch invokes the collaborator once per call; the collaborator owns
// any on-disk caching across calls.
func (d *Dataset) fetch(ctx context.Context) (dataPath, metaPath string, err error) {
	if d.fetcher == nil {
		return "", "", &FetchError{URL: d.url, Err: errNoFetcher}
	}
	return d.fetcher.FetchAndExtract(ctx, d.url, d.info.ResourceID)
}

// loadData populates the cached metadata, raw table, and units lookup.
func (d *Dataset) loadData(ctx context.Context) error {
	if d.raw != nil {
		return nil
	}
	dataPath, metaPath, err := d.fetch(ctx)
	if err != nil {
		return err
	}
	if d.meta == nil {
		rawMeta, err := table.ReadCSV(metaPath, nil)
		if err != nil {
			return err
		}
		meta, err := ParseMetadata(rawMeta)
		if err != nil {
			return err
		}
		d.meta = meta
	}
	raw, err := table.ReadCSV(dataPath, CategoryTypes)
	if err != nil {
		return err
	}
	units, err := unitsOfMeasure(raw, d.meta.PivotColumn())
	if err != nil {
		return err
	}
	d.raw = raw
	d.units = units
	return nil
}

// transform applies the requested shaping to a copy of the raw parse.
func (d *Dataset) transform(raw *table.Table, opts DataOptions) (*table.Table, error) {
	data := raw
	if opts.Wide {
		wide, err := ToWide(data, d.meta.PivotColumn())
		if err != nil {
			return nil, err
		}
		data = wide
	} else {
		data = data.Clone()
	}
	if opts.IndexCol != "" {
		if err := data.SetIndex(opts.IndexCol); err != nil {
			return nil, &ReshapeError{Column: opts.IndexCol, Detail: "index column not present"}
		}
	}
	if opts.DropControlCols {
		drop := make([]string, 0, len(ControlColumns))
		for _, c := range ControlColumns {
			if c != data.Index {
				drop = append(drop, c)
			}
		}
		data = data.DropColumns(drop...)
	}
	if err := data.NormalizeDates("REF_DATE"); err != nil {
		return nil, err
	}
	for from, to := range presentationRenames {
		data.RenameColumn(from, to)
	}
	return data, nil
}

// unitsOfMeasure extracts distinct (pivot value, UOM) pairs. Datasets
// published without a UOM column yield an empty lookup.
func unitsOfMeasure(raw *table.Table, pivotColumn string) (*table.Table, error) {
	if !raw.HasColumn("UOM") || !raw.HasColumn(pivotColumn) {
		return table.New(pivotColumn, "UOM"), nil
	}
	return raw.DistinctPairs(pivotColumn, "UOM")
}

var errNoFetcher = &noFetcherError{}

type noFetcherError struct{}

func (*noFetcherError) Error() string { return "no fetcher configured" }
