package services

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"sales-analytics/internal/models"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadTable parses a CSV stream with a mandatory header row. Short rows are
// padded with empty cells; rows wider than the header are rejected.
func ReadTable(r io.Reader) (*models.RawTable, error) {
	br := bufio.NewReader(r)
	if prefix, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(prefix, utf8BOM) {
		br.Discard(len(utf8BOM))
	}

	reader := csv.NewReader(br)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, csvError(err, 1)
	}

	table := &models.RawTable{
		Columns: columnNames(header),
		Rows:    make([][]string, 0),
	}

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, csvError(err, 0)
		}

		line, _ := reader.FieldPos(0)
		if len(record) > len(header) {
			return nil, &CSVError{
				Line: line,
				Err:  fmt.Errorf("expected %d fields, saw %d", len(header), len(record)),
			}
		}
		for len(record) < len(header) {
			record = append(record, "")
		}

		table.Rows = append(table.Rows, record)
		table.Lines = append(table.Lines, line)
	}

	return table, nil
}

func csvError(err error, line int) error {
	var parseErr *csv.ParseError
	if errors.As(err, &parseErr) {
		return &CSVError{Line: parseErr.Line, Err: parseErr.Err}
	}
	if line > 0 {
		return &CSVError{Line: line, Err: err}
	}
	return fmt.Errorf("read csv: %w", err)
}

// columnNames names blank headers "Unnamed: i" and suffixes repeats with
// ".1", ".2", ... so every column stays addressable. The first occurrence
// keeps the plain name.
func columnNames(header []string) []string {
	names := make([]string, len(header))
	used := make(map[string]bool, len(header))
	repeats := make(map[string]int)

	for i, h := range header {
		base := h
		if base == "" {
			base = fmt.Sprintf("Unnamed: %d", i)
		}
		name := base
		for used[name] {
			repeats[base]++
			name = fmt.Sprintf("%s.%d", base, repeats[base])
		}
		used[name] = true
		names[i] = name
	}

	return names
}

// Validate is the schema gate: every required column must be present.
// Names match exactly; order and extra columns do not matter.
func Validate(table *models.RawTable) error {
	present := make(map[string]bool, len(table.Columns))
	for _, c := range table.Columns {
		present[c] = true
	}

	var missing []string
	for _, c := range models.RequiredColumns {
		if !present[c] {
			missing = append(missing, c)
		}
	}

	if len(missing) > 0 {
		return &SchemaError{
			Missing:  missing,
			Required: append([]string(nil), models.RequiredColumns...),
		}
	}
	return nil
}
