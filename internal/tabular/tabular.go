// Package tabular parses uploaded reference files into raw string records.
//
// CMS publishes the same data in whatever format the publishing office
// prefers that quarter: comma-separated CSV, tab- or pipe-delimited TXT, and
// XLSX workbooks. This package normalizes all of them to [][]string so the
// ingestion core never deals with file formats. Legacy binary .xls is not
// supported and is rejected with a clear error.
package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrUnsupportedFormat is returned for file extensions this package cannot
// parse, including legacy binary .xls workbooks.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// Parse reads an uploaded file into raw records, dispatching on extension.
// Delimited text goes through delimiter detection; .xlsx is read via the
// first sheet of the workbook.
func Parse(fileName string, r io.Reader) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv":
		return parseDelimited(r, ',')
	case ".txt", ".tsv", ".dat":
		return parseDetected(r)
	case ".xlsx":
		return parseXLSX(r)
	case ".xls":
		return nil, fmt.Errorf("%w: legacy .xls workbooks are not supported, save as .xlsx or .csv", ErrUnsupportedFormat)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(fileName))
	}
}

// parseDelimited reads delimited text with a known separator. Ragged rows
// are expected: legend and title rows rarely match the header width.
func parseDelimited(r io.Reader, comma rune) ([][]string, error) {
	cr := csv.NewReader(WrapReader(r))
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse delimited file: %w", err)
	}
	return records, nil
}

// parseDetected sniffs the delimiter of a .txt file from its first lines.
// Tab and pipe are tried before comma because comma appears inside quoted
// description text.
func parseDetected(r io.Reader) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return parseDelimited(bytes.NewReader(data), detectDelimiter(data))
}

func detectDelimiter(data []byte) rune {
	sample := data
	if len(sample) > 64*1024 {
		sample = sample[:64*1024]
	}
	lines := bytes.Split(sample, []byte("\n"))
	if len(lines) > 20 {
		lines = lines[:20]
	}

	counts := map[rune]int{'\t': 0, '|': 0, ',': 0}
	for _, line := range lines {
		for delim := range counts {
			counts[delim] += bytes.Count(line, []byte(string(delim)))
		}
	}

	switch {
	case counts['\t'] > 0 && counts['\t'] >= counts['|']:
		return '\t'
	case counts['|'] > 0:
		return '|'
	default:
		return ','
	}
}

// parseXLSX reads the first sheet of an XLSX workbook.
func parseXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}
