package generator

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// Dataset is a parsed tabular source: first row is the header, the rest
// are data rows in file order.
type Dataset struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// ParseCSV reads a comma-delimited dataset. A conformant parser is used
// deliberately: naive split-by-comma corrupts quoted fields with
// embedded commas.
func ParseCSV(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("CSV is empty")
	}

	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		headers[i] = strings.TrimSpace(h)
	}

	rows := make([][]string, 0, len(records)-1)
	for _, record := range records[1:] {
		if isBlankRow(record) {
			continue
		}
		row := make([]string, len(record))
		for i, v := range record {
			row[i] = strings.TrimSpace(v)
		}
		rows = append(rows, row)
	}

	return &Dataset{Headers: headers, Rows: rows}, nil
}

// HeaderIndex returns the position of a header, or -1.
func (d *Dataset) HeaderIndex(name string) int {
	for i, h := range d.Headers {
		if h == name {
			return i
		}
	}
	return -1
}

func isBlankRow(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
