package statcan

import "fmt"

// ParseError is returned when a URL or filename does not follow the
// StatCan full-table naming convention.
type ParseError struct {
	URL    string
	Detail string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("not a valid statcan dataset url %q: %s", e.URL, e.Detail)
}

// MetadataFormatError is returned when a required sentinel section is
// missing or malformed in a metadata table.
type MetadataFormatError struct {
	Sentinel string
	Detail   string
}

func (e *MetadataFormatError) Error() string {
	return fmt.Sprintf("malformed metadata: sentinel %q %s", e.Sentinel, e.Detail)
}

// ReshapeError is returned when the observation table lacks a column
// the wide reshape needs, or a value cell cannot be read as a number.
type ReshapeError struct {
	Column string
	Detail string
}

func (e *ReshapeError) Error() string {
	return fmt.Sprintf("cannot reshape: column %q %s", e.Column, e.Detail)
}

// FetchError wraps a failure from the fetch collaborator. The cause is
// propagated unchanged.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
