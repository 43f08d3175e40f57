package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// ReadCSV parses a delimited file into a Table. The first record is the
// header. Records shorter than the header are padded with Missing and
// longer records keep their extra cells out of the table — StatCan
// metadata files are ragged, so field counts are not enforced.
//
// Columns named in types are tagged; Category columns have their cell
// strings interned so repeated values share storage.
func ReadCSV(path string, types map[string]TypeTag) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	t, err := ReadCSVFrom(f, types)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return t, nil
}

// ReadCSVFrom parses CSV data from r. See ReadCSV.
func ReadCSVFrom(r io.Reader, types map[string]TypeTag) (*Table, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty csv input")
	}
	if err != nil {
		return nil, err
	}
	header[0] = stripBOM(header[0])

	t := New(header...)

	// Per-column string interning for category columns.
	var interns []map[string]string
	for _, name := range header {
		if types[name] == Category {
			interns = append(interns, make(map[string]string))
		} else {
			interns = append(interns, nil)
		}
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		row := make([]string, len(header))
		for i := range header {
			var v string
			if i < len(record) {
				v = record[i]
			}
			if interns[i] != nil && v != Missing {
				if iv, ok := interns[i][v]; ok {
					v = iv
				} else {
					interns[i][v] = v
				}
			}
			row[i] = v
		}
		t.Rows = append(t.Rows, row)
	}

	for name, tag := range types {
		t.SetType(name, tag)
	}
	return t, nil
}

// WriteCSV writes the table, header first, to w.
func (t *Table) WriteCSV(w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(t.Columns); err != nil {
		return err
	}
	for _, row := range t.Rows {
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// stripBOM removes a UTF-8 byte order mark StatCan prepends to some files.
func stripBOM(s string) string {
	const bom = "\ufeff"
	if len(s) >= len(bom) && s[:len(bom)] == bom {
		return s[len(bom):]
	}
	return s
}
