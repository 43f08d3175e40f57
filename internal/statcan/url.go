// Package statcan implements the core of a Statistics Canada full-table
// client: dataset URL parsing, the sentinel-delimited metadata parser,
// the long-to-wide reshape, and the Dataset facade tying them together.
package statcan

import (
	"path"
	"regexp"
	"strings"
)

// datasetFileRE matches full-table filenames: a numeric product id, an
// optional language tag, and an extension, e.g. "14100017-eng.zip".
var datasetFileRE = regexp.MustCompile(`^(\d+)(-(eng|fra))?\.(\w+)$`)

// URL identifies one StatCan full-table download and the two CSV
// members its zip is expected to contain.
type URL struct {
	BaseURL    string // everything before the filename
	File       string // the matched filename
	ResourceID string // numeric product id
	Language   string // "eng", "fra", or empty
	Extension  string

	DataFilename     string // "{id}.csv"
	MetadataFilename string // "{id}_MetaData.csv"
}

// ParseURL parses a dataset URL or bare filename into its parts.
func ParseURL(rawurl string) (*URL, error) {
	filename := path.Base(rawurl)
	m := datasetFileRE.FindStringSubmatch(filename)
	if m == nil {
		return nil, &ParseError{URL: rawurl, Detail: "filename does not match <digits>[-<lang>].<ext>"}
	}
	base := rawurl[:strings.LastIndex(rawurl, filename)]
	return &URL{
		BaseURL:          base,
		File:             m[0],
		ResourceID:       m[1],
		Language:         m[3],
		Extension:        m[4],
		DataFilename:     m[1] + ".csv",
		MetadataFilename: m[1] + "_MetaData.csv",
	}, nil
}

// ID returns a stable dataset identity shared by all language variants,
// usable as a cache or dedup key.
func (u *URL) ID() string {
	return u.BaseURL + u.ResourceID
}
