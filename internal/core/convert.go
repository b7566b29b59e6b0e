package core

// convert.go provides type coercion from raw cell text to typed values.
//
// These functions handle the messy reality of published reference files:
//   - Multiple date formats (YYYYMMDD in NCCI files, US and ISO elsewhere)
//   - Thousands separators in numbers
//   - Placeholder tokens (NULL, N/A, NaN) that mean absent
//   - Excel formula prefixes (="value") and stray quotes
//
// Coercion distinguishes NULL (blank or placeholder input) from failure
// (non-blank input that does not parse): NULL is a value, failure is a
// ValidationIssue decided by the caller.

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// dateLayouts are tried in order. YYYYMMDD first: it is the CMS NCCI format
// and never ambiguous.
var dateLayouts = []string{
	"20060102",
	"2006-01-02",
	"2006/01/02",
	"1/2/2006",
	"01/02/2006",
	"1-2-2006",
	"01-02-2006",
}

var leadingIntRegex = regexp.MustCompile(`^(\d+)`)

// nullTokens are placeholder spellings treated as absent values.
var nullTokens = map[string]bool{
	"":     true,
	"NULL": true,
	"N/A":  true,
	"NAN":  true,
}

// IsNullToken reports whether the cleaned cell text represents an absent value.
func IsNullToken(s string) bool {
	return nullTokens[strings.ToUpper(strings.TrimSpace(s))]
}

// CleanCell removes common spreadsheet artifacts from a cell value:
// surrounding whitespace, Excel formula prefixes (="..."), and stray quotes.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, `="`) && strings.HasSuffix(s, `"`) {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}
	s = strings.Trim(s, `"'`)
	return strings.TrimSpace(s)
}

// NormalizeHeader canonicalizes a raw header for alias comparison: case-fold,
// trim, and collapse internal whitespace runs to single spaces.
func NormalizeHeader(s string) string {
	return strings.Join(strings.Fields(strings.ToUpper(CleanCell(s))), " ")
}

// CleanCode normalizes a code value (HCPCS, CPT, locality). Uppercased with
// leading zeros preserved; placeholder tokens become NULL.
func CleanCode(s string) Value {
	s = strings.ToUpper(CleanCell(s))
	if nullTokens[s] {
		return Null(KindText)
	}
	return TextValue(s)
}

// Coerce converts cleaned cell text to a typed value of the given kind.
// Blank and placeholder input yields NULL; unparseable input yields an error.
func Coerce(raw string, kind Kind) (Value, error) {
	if IsNullToken(raw) {
		return Null(kind), nil
	}
	switch kind {
	case KindText:
		return TextValue(raw), nil
	case KindInteger:
		return parseInteger(raw)
	case KindNumeric:
		return parseNumeric(raw)
	case KindDate:
		return parseDate(raw)
	case KindBool:
		return parseBool(raw)
	}
	return Null(kind), fmt.Errorf("unsupported kind %d", kind)
}

// parseNumeric parses a decimal, tolerating thousands separators.
func parseNumeric(s string) (Value, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Null(KindNumeric), fmt.Errorf("invalid numeric value %q", s)
	}
	return NumValue(d), nil
}

// parseInteger parses an integer, accepting decimal notation that truncates
// cleanly (spreadsheets export counts as "3.0"). Zero is a meaningful value
// and is preserved, never mapped to NULL.
func parseInteger(s string) (Value, error) {
	v, err := parseNumeric(s)
	if err != nil {
		return Null(KindInteger), fmt.Errorf("invalid integer value %q", strings.TrimSpace(s))
	}
	return IntValue(v.Num.IntPart()), nil
}

// parseDate tries each supported layout in order.
func parseDate(s string) (Value, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DateValue(t), nil
		}
	}
	return Null(KindDate), fmt.Errorf("invalid date value %q", s)
}

// parseBool accepts the spellings found in CMS files. "*" is true here
// because flag columns mark presence with an asterisk.
func parseBool(s string) (Value, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y", "t", "*":
		return BoolValue(true), nil
	case "0", "false", "no", "n", "f":
		return BoolValue(false), nil
	}
	return Null(KindBool), fmt.Errorf("invalid boolean value %q", strings.TrimSpace(s))
}

// LeadingInt extracts the leading digit run of a string, for columns that
// embed a value in descriptive text ("3 Date of Service Edit: Clinical" -> 3).
func LeadingInt(s string) (int64, bool) {
	m := leadingIntRegex.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, false
	}
	v, err := decimal.NewFromString(m[1])
	if err != nil {
		return 0, false
	}
	return v.IntPart(), true
}
