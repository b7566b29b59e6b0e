package tabular

import (
	"bytes"
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

// ----------------------------------------------------------------------------
// Parse Tests
// ----------------------------------------------------------------------------

func TestParseCSV(t *testing.T) {
	input := "HCPCS,MOD,WORK RVU\n99213,,1.5\n\"G0463\",\"25\",\"2.1\"\n"

	records, err := Parse("pfs.csv", strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := [][]string{
		{"HCPCS", "MOD", "WORK RVU"},
		{"99213", "", "1.5"},
		{"G0463", "25", "2.1"},
	}
	if !reflect.DeepEqual(records, want) {
		t.Errorf("records = %v, want %v", records, want)
	}
}

func TestParseCSVWithBOM(t *testing.T) {
	input := "\xEF\xBB\xBFHCPCS,MOD\n99213,25\n"

	records, err := Parse("pfs.csv", strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	// The BOM must not leak into the first header cell
	if records[0][0] != "HCPCS" {
		t.Errorf("first header = %q, want HCPCS", records[0][0])
	}
}

func TestParseCSVRaggedRows(t *testing.T) {
	input := "National Physician Fee Schedule\nHCPCS,MOD,WORK RVU\n99213,,1.5\n"

	records, err := Parse("pfs.csv", strings.NewReader(input))
	if err != nil {
		t.Fatalf("ragged title row must not fail parsing: %v", err)
	}
	if len(records) != 3 || len(records[0]) != 1 || len(records[1]) != 3 {
		t.Errorf("records = %v, want ragged widths preserved", records)
	}
}

func TestParseCSVInvalidUTF8(t *testing.T) {
	// Stray Latin-1 byte inside a description cell
	input := "CODE,DESC\nA0001,caf\xE9 visit\n"

	records, err := Parse("notes.csv", strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if records[1][1] != "caf? visit" {
		t.Errorf("desc = %q, want invalid byte replaced with ?", records[1][1])
	}
}

func TestParseTXTDelimiterDetection(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  [][]string
	}{
		{
			name:  "tab delimited",
			input: "COLUMN 1\tCOLUMN 2\n99213\t99212\n",
			want:  [][]string{{"COLUMN 1", "COLUMN 2"}, {"99213", "99212"}},
		},
		{
			name:  "pipe delimited",
			input: "COLUMN 1|COLUMN 2\n99213|99212\n",
			want:  [][]string{{"COLUMN 1", "COLUMN 2"}, {"99213", "99212"}},
		},
		{
			name:  "comma fallback",
			input: "COLUMN 1,COLUMN 2\n99213,99212\n",
			want:  [][]string{{"COLUMN 1", "COLUMN 2"}, {"99213", "99212"}},
		},
		{
			// Quoted commas in descriptions must not outvote real tabs
			name:  "tabs win over commas inside text",
			input: "CODE\tDESC\nA0001\tambulance, ground, emergency\n",
			want:  [][]string{{"CODE", "DESC"}, {"A0001", "ambulance, ground, emergency"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := Parse("file.txt", strings.NewReader(tt.input))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if !reflect.DeepEqual(records, tt.want) {
				t.Errorf("records = %v, want %v", records, tt.want)
			}
		})
	}
}

func TestParseXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	cells := [][]interface{}{
		{"HCPCS", "MOD", "WORK RVU"},
		{"99213", nil, 1.5},
	}
	for i, row := range cells {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatal(err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatal(err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}

	records, err := Parse("pfs.xlsx", &buf)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d rows, want 2", len(records))
	}
	if records[0][0] != "HCPCS" || records[1][0] != "99213" {
		t.Errorf("records = %v, want header and data row", records)
	}
}

func TestParseUnsupportedFormats(t *testing.T) {
	for _, name := range []string{"legacy.xls", "report.pdf", "noextension"} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(name, strings.NewReader("data"))
			if !errors.Is(err, ErrUnsupportedFormat) {
				t.Errorf("Parse(%q) err = %v, want ErrUnsupportedFormat", name, err)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// Reader Tests
// ----------------------------------------------------------------------------

func TestWrapReaderShortInput(t *testing.T) {
	// Inputs shorter than the 3-byte BOM probe must survive intact
	for _, input := range []string{"", "a", "ab"} {
		got, err := io.ReadAll(WrapReader(strings.NewReader(input)))
		if err != nil {
			t.Fatalf("ReadAll(%q): %v", input, err)
		}
		if string(got) != input {
			t.Errorf("ReadAll(%q) = %q", input, got)
		}
	}
}

func TestWrapReaderMultiByteAcrossReads(t *testing.T) {
	// A valid multi-byte rune split across read boundaries must not be
	// mangled into replacement characters.
	input := "desc: café and more text to force multiple reads"
	r := WrapReader(&chunkReader{r: strings.NewReader(input), n: 4})

	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != input {
		t.Errorf("got %q, want %q", got, input)
	}
}

// chunkReader yields at most n bytes per Read call.
type chunkReader struct {
	r io.Reader
	n int
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if len(p) > c.n {
		p = p[:c.n]
	}
	return c.r.Read(p)
}
