// Package models defines the transport-facing types shared by the API
// server, the CLI, and the release feed client.
package models

import "time"

// Release is one entry from a StatCan "The Daily" release feed.
type Release struct {
	Title     string    `json:"title"`
	Link      string    `json:"link"`
	Summary   string    `json:"summary,omitempty"`
	Published time.Time `json:"published"`
	Source    string    `json:"source"`
}

// DimensionInfo describes one dataset dimension.
type DimensionInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Notes string `json:"notes,omitempty"`
}

// DatasetInfo is the metadata summary exposed for one dataset.
type DatasetInfo struct {
	ProductID        string          `json:"product_id"`
	Title            string          `json:"title"`
	Survey           string          `json:"survey,omitempty"`
	Subject          string          `json:"subject,omitempty"`
	PrimaryDimension string          `json:"primary_dimension"`
	Dimensions       []DimensionInfo `json:"dimensions"`
}

// TableJSON is the wire shape of a table: column names plus rows of
// string cells (empty string = missing).
type TableJSON struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}
