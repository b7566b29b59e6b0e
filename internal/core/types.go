// Package core provides the business logic for reference table ingestion.
// This package has no transport dependencies and can be used by any frontend.
package core

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind represents the semantic type of a canonical column.
type Kind int

const (
	KindText Kind = iota
	KindInteger
	KindNumeric
	KindDate
	KindBool
)

// KindName returns a human-readable name for a column kind.
func KindName(k Kind) string {
	switch k {
	case KindText:
		return "text"
	case KindInteger:
		return "integer"
	case KindNumeric:
		return "numeric"
	case KindDate:
		return "date"
	case KindBool:
		return "boolean"
	default:
		return "value"
	}
}

// Value is a typed cell value. Valid=false represents NULL regardless of Kind.
// Numeric values are held as decimals so fee-schedule figures never pass
// through float64.
type Value struct {
	Kind  Kind
	Valid bool
	Text  string
	Int   int64
	Num   decimal.Decimal
	Date  time.Time
	Bool  bool
}

// Null returns a NULL value of the given kind.
func Null(k Kind) Value { return Value{Kind: k} }

// TextValue wraps a string as a valid text value.
func TextValue(s string) Value { return Value{Kind: KindText, Valid: true, Text: s} }

// IntValue wraps an int64 as a valid integer value.
func IntValue(i int64) Value { return Value{Kind: KindInteger, Valid: true, Int: i} }

// NumValue wraps a decimal as a valid numeric value.
func NumValue(d decimal.Decimal) Value { return Value{Kind: KindNumeric, Valid: true, Num: d} }

// DateValue wraps a time as a valid date value.
func DateValue(t time.Time) Value { return Value{Kind: KindDate, Valid: true, Date: t} }

// BoolValue wraps a bool as a valid boolean value.
func BoolValue(b bool) Value { return Value{Kind: KindBool, Valid: true, Bool: b} }

// IsNull reports whether the value represents NULL.
func (v Value) IsNull() bool { return !v.Valid }

// String renders the value for display and key building.
func (v Value) String() string {
	if !v.Valid {
		return ""
	}
	switch v.Kind {
	case KindText:
		return v.Text
	case KindInteger:
		return decimal.NewFromInt(v.Int).String()
	case KindNumeric:
		return v.Num.String()
	case KindDate:
		return v.Date.Format("2006-01-02")
	case KindBool:
		if v.Bool {
			return "true"
		}
		return "false"
	}
	return ""
}

// RowRef identifies where a row came from: source file and 1-indexed line.
type RowRef struct {
	File string
	Line int
}

// Row is a transformed record: canonical column name to typed value.
type Row struct {
	Ref    RowRef
	Values map[string]Value
}

// KeyTuple builds the unique-key string for a row. NULL components are kept
// distinct from empty text so a null modifier still participates in the key.
func (r Row) KeyTuple(keys []string) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		v := r.Values[k]
		if v.IsNull() {
			parts[i] = "\x00null"
		} else {
			parts[i] = v.String()
		}
	}
	return strings.Join(parts, "\x1f")
}

// SpecialRule is a per-column substitution applied before type coercion.
// Rules are configuration data, not per-source code paths.
type SpecialRule int

const (
	// SpecialNone applies no substitution.
	SpecialNone SpecialRule = iota
	// SpecialStarNull maps a literal "*" to NULL. Used for deletion-date
	// columns where "*" signals a still-active edit.
	SpecialStarNull
	// SpecialStarTrue maps a literal "*" to boolean true. Used for
	// legacy-edit flag columns.
	SpecialStarTrue
	// SpecialLeadingDigit coerces from the leading digit run of the cell,
	// tolerating legend text appended after the value.
	SpecialLeadingDigit
)

// ColumnSpec defines one canonical column of a data source.
type ColumnSpec struct {
	Name     string      // canonical column name (snake_case)
	Type     Kind        // semantic type
	Required bool        // header must be present and values non-null
	Aliases  []string    // accepted raw header spellings, compared normalized
	Special  SpecialRule // optional special-value substitution
	Code     bool        // code column: uppercase, leading zeros preserved

	// AllowedInts, when non-empty, restricts a SpecialLeadingDigit column to
	// the listed values. Anything else is a coercion failure.
	AllowedInts []int64
}

// DerivedColumn computes a column from already-resolved columns after
// per-column transformation. Exactly one of Concat or LeadingIntFrom is set.
type DerivedColumn struct {
	Name           string
	Type           Kind
	Concat         []string // concatenate these columns' text values
	LeadingIntFrom string   // extract the leading integer token of this column
	AllowedInts    []int64  // when non-empty, extracted value must be one of these
}

// SourceConfig describes one data source: canonical schema, header aliases,
// uniqueness, and multi-part/variant behavior. Pure data; adding a source is
// a registration, not a code change.
type SourceConfig struct {
	Code      string // unique source code, e.g. "PFS_RVU"
	Name      string // display name
	Table     string // target data table, e.g. "cms.pfs_rvu"
	Columns   []ColumnSpec
	Derived   []DerivedColumn
	UniqueKey []string // column set unique within a version+variant
	Variants  []string // empty means a single implicit variant
	MultiPart bool     // versions may span multiple uploaded files
}

// Column returns the spec for a canonical column name.
func (c SourceConfig) Column(name string) (ColumnSpec, bool) {
	for _, col := range c.Columns {
		if col.Name == name {
			return col, true
		}
	}
	return ColumnSpec{}, false
}

// HasVariant reports whether the variant name is valid for this source.
// Sources without configured variants accept only the empty variant.
func (c SourceConfig) HasVariant(v string) bool {
	if len(c.Variants) == 0 {
		return v == ""
	}
	for _, name := range c.Variants {
		if strings.EqualFold(name, v) {
			return true
		}
	}
	return false
}

// ColumnNames returns all stored column names, declared then derived, with
// derived names that shadow a declared column listed once.
func (c SourceConfig) ColumnNames() []string {
	names := make([]string, 0, len(c.Columns)+len(c.Derived))
	seen := make(map[string]bool, len(c.Columns))
	for _, col := range c.Columns {
		names = append(names, col.Name)
		seen[col.Name] = true
	}
	for _, d := range c.Derived {
		if !seen[d.Name] {
			names = append(names, d.Name)
			seen[d.Name] = true
		}
	}
	return names
}

// IsUniqueKey reports whether the column participates in the unique key.
func (c SourceConfig) IsUniqueKey(name string) bool {
	for _, k := range c.UniqueKey {
		if k == name {
			return true
		}
	}
	return false
}

// VersionStatus is the lifecycle state of a data version.
type VersionStatus string

const (
	StatusPending    VersionStatus = "pending"
	StatusProcessing VersionStatus = "processing"
	StatusCompleted  VersionStatus = "completed"
	StatusFailed     VersionStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s VersionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// VersionKey identifies a logical version of one source+variant.
type VersionKey struct {
	Source  string `json:"source"`
	Variant string `json:"variant,omitempty"`
	Label   string `json:"label"`
}

func (k VersionKey) String() string {
	if k.Variant == "" {
		return k.Source + "/" + k.Label
	}
	return k.Source + "/" + k.Variant + "/" + k.Label
}

// VersionMeta is the persisted metadata record for a version.
type VersionMeta struct {
	Key           VersionKey    `json:"key"`
	Status        VersionStatus `json:"status"`
	RecordCount   int           `json:"record_count"`
	ImportedAt    time.Time     `json:"imported_at"`
	IsCurrent     bool          `json:"is_current"`
	PartsExpected int           `json:"parts_expected"`
	PartsReceived []int         `json:"parts_received"`
	Error         string        `json:"error,omitempty"`
}

// HasPart reports whether the given part index has been received.
func (m VersionMeta) HasPart(idx int) bool {
	for _, p := range m.PartsReceived {
		if p == idx {
			return true
		}
	}
	return false
}

// AssemblyStatus reports multi-part assembly progress for a version.
type AssemblyStatus struct {
	PartsReceived int  `json:"parts_received"`
	PartsExpected int  `json:"parts_expected"`
	Complete      bool `json:"complete"`
}

// IngestResult is returned to the caller for each submitted file.
type IngestResult struct {
	IngestID     string         `json:"ingest_id"`
	Version      VersionKey     `json:"version"`
	Status       VersionStatus  `json:"status"`
	Assembly     AssemblyStatus `json:"assembly"`
	AcceptedRows int            `json:"accepted_rows"`
	Report       *IngestReport  `json:"report"`
}

func sortedInts(m map[int]bool) []int {
	out := make([]int, 0, len(m))
	for i := range m {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}
