package statcan

import (
	"github.com/ocandata/statcango/internal/table"
)

// Sentinel values that delimit sections in a metadata file, matched
// against column 0 of the raw table.
const (
	sentinelNoteID       = "Note ID"
	sentinelCorrectionID = "Correction ID"
	sentinelDimensionID  = "Dimension ID"
	sentinelSymbolLegend = "Symbol Legend"
	sentinelSurveyCode   = "Survey Code"
	sentinelSubjectCode  = "Subject Code"
)

// Metadata holds the structured sections of a StatCan metadata file.
type Metadata struct {
	// CubeInfo is the dataset title and descriptive attributes as
	// (Attribute, Value) pairs, one pair per metadata header column.
	CubeInfo *table.Table

	// Note maps note ids to note text.
	Note *table.Table

	// Dimensions lists the dataset's dimensions. The Dimension Notes
	// column is resolved against Note; unresolved ids become missing,
	// matching a left join.
	Dimensions *table.Table

	// DimensionDetails lists every dimension member.
	DimensionDetails *table.Table

	Survey  *table.Table
	Subject *table.Table

	name  string            // survey name, used as display name
	notes map[string]string // note id -> text
}

var dimensionColumns = []string{
	"Dimension ID", "Dimension name", "Dimension Notes", "Dimension Definitions",
}

var dimensionDetailColumns = []string{
	"Dimension ID", "Member Name", "Classification Code", "Member ID",
	"Parent Member ID", "Terminated", "Member Notes", "Member Definitions",
}

// sentinelIndex records where each sentinel appears in column 0.
type sentinelIndex map[string][]int

// scanSentinels walks column 0 once and records every sentinel hit,
// so section bounds survive extra blank rows between sections.
func scanSentinels(t *table.Table) sentinelIndex {
	idx := make(sentinelIndex)
	watched := map[string]bool{
		sentinelNoteID:       true,
		sentinelCorrectionID: true,
		sentinelDimensionID:  true,
		sentinelSymbolLegend: true,
		sentinelSurveyCode:   true,
		sentinelSubjectCode:  true,
	}
	for r, row := range t.Rows {
		if len(row) == 0 {
			continue
		}
		if watched[row[0]] {
			idx[row[0]] = append(idx[row[0]], r)
		}
	}
	return idx
}

// exactlyOne returns the single occurrence of a sentinel, or an error
// when it is absent or repeated.
func (s sentinelIndex) exactlyOne(sentinel string) (int, error) {
	hits := s[sentinel]
	switch len(hits) {
	case 0:
		return 0, &MetadataFormatError{Sentinel: sentinel, Detail: "not found"}
	case 1:
		return hits[0], nil
	default:
		return 0, &MetadataFormatError{Sentinel: sentinel, Detail: "found more than once"}
	}
}

// last returns the final occurrence of a sentinel.
func (s sentinelIndex) last(sentinel string) (int, error) {
	hits := s[sentinel]
	if len(hits) == 0 {
		return 0, &MetadataFormatError{Sentinel: sentinel, Detail: "not found"}
	}
	return hits[len(hits)-1], nil
}

// ParseMetadata extracts the structured sections from a raw metadata
// table (the parsed {id}_MetaData.csv, header row already consumed).
func ParseMetadata(raw *table.Table) (*Metadata, error) {
	if raw.Len() == 0 {
		return nil, &MetadataFormatError{Sentinel: "Cube Title", Detail: "empty metadata table"}
	}

	sentinels := scanSentinels(raw)

	noteRow, err := sentinels.exactlyOne(sentinelNoteID)
	if err != nil {
		return nil, err
	}
	correctionRow, err := sentinels.exactlyOne(sentinelCorrectionID)
	if err != nil {
		return nil, err
	}
	lastDimensionRow, err := sentinels.last(sentinelDimensionID)
	if err != nil {
		return nil, err
	}
	symbolRow, err := sentinels.exactlyOne(sentinelSymbolLegend)
	if err != nil {
		return nil, err
	}
	surveyRow, err := sentinels.exactlyOne(sentinelSurveyCode)
	if err != nil {
		return nil, err
	}
	subjectRow, err := sentinels.exactlyOne(sentinelSubjectCode)
	if err != nil {
		return nil, err
	}

	m := &Metadata{notes: make(map[string]string)}

	// Cube info: the first data row transposed onto the header names.
	m.CubeInfo = table.New("Attribute", "Value")
	for i, attr := range raw.Columns {
		m.CubeInfo.AppendRow(attr, cellAt(raw, 0, i))
	}

	// Notes sit between the Note ID and Correction ID sentinels.
	m.Note = slice(raw, noteRow+1, correctionRow, "Note ID", "Note")
	for _, row := range m.Note.Rows {
		m.notes[row[0]] = row[1]
	}

	// Dimensions run from row 2 (past cube info and the first header
	// row) to the last Dimension ID row, which starts member details.
	m.Dimensions = slice(raw, 2, lastDimensionRow, dimensionColumns...)
	resolveNotes(m.Dimensions, "Dimension Notes", m.notes)

	m.DimensionDetails = slice(raw, lastDimensionRow+1, symbolRow, dimensionDetailColumns...)

	m.Survey = slice(raw, surveyRow+1, surveyRow+2, "Survey Code", "Survey Name")
	if m.Survey.Len() > 0 {
		m.name = m.Survey.Rows[0][1]
	}
	m.Subject = slice(raw, subjectRow+1, subjectRow+2, "Subject Code", "Subject Name")

	return m, nil
}

// PivotColumn returns the dimension name of the last dimensions row —
// the StatCan convention for the dimension that pivots to wide columns.
func (m *Metadata) PivotColumn() string {
	n := m.Dimensions.Len()
	if n == 0 {
		return ""
	}
	return m.Dimensions.Rows[n-1][1]
}

// Name returns the survey name.
func (m *Metadata) Name() string { return m.name }

// NoteText looks up a note by id.
func (m *Metadata) NoteText(id string) (string, bool) {
	text, ok := m.notes[id]
	return text, ok
}

// slice copies rows [start, end) and the first len(columns) cells of
// each into a new table, padding short rows with Missing.
func slice(raw *table.Table, start, end int, columns ...string) *table.Table {
	out := table.New(columns...)
	if start < 0 {
		start = 0
	}
	if end > raw.Len() {
		end = raw.Len()
	}
	for r := start; r < end; r++ {
		cells := make([]string, len(columns))
		for i := range columns {
			cells[i] = cellAt(raw, r, i)
		}
		out.AppendRow(cells...)
	}
	return out
}

// resolveNotes replaces note ids in the named column with note text;
// ids without a note become missing.
func resolveNotes(t *table.Table, column string, notes map[string]string) {
	idx := t.ColumnIndex(column)
	if idx < 0 {
		return
	}
	for _, row := range t.Rows {
		row[idx] = notes[row[idx]]
	}
}

func cellAt(t *table.Table, row, col int) string {
	if row >= t.Len() || col >= len(t.Rows[row]) {
		return table.Missing
	}
	return t.Rows[row][col]
}
