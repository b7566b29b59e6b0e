package core

// transform.go turns one raw record into a typed, validated row.
//
// Order of operations per column: extract, special-value substitution, type
// coercion. Derived columns are computed afterwards from resolved values,
// then required-column non-null enforcement runs last. Failures are
// row-granular: a bad row is dropped and reported, the file continues.

import "fmt"

// TransformRow produces a typed row from a raw record, or nil if the row was
// rejected, plus any issues found. Issues may accompany an accepted row
// (e.g. a skipped derived column).
func TransformRow(raw []string, mapping HeaderMapping, cfg SourceConfig, ref RowRef) (*Row, []ValidationIssue) {
	row := &Row{Ref: ref, Values: make(map[string]Value, len(cfg.Columns)+len(cfg.Derived))}
	var issues []ValidationIssue
	failed := make(map[string]bool)
	rejected := false

	for _, col := range cfg.Columns {
		cell := ""
		if idx, ok := mapping[col.Name]; ok && idx < len(raw) {
			cell = CleanCell(raw[idx])
		}

		v, err := transformCell(cell, col)
		if err != nil {
			failed[col.Name] = true
			rejected = true
			issues = append(issues, ValidationIssue{
				File:    ref.File,
				Line:    ref.Line,
				Column:  col.Name,
				Kind:    IssueTypeError,
				Message: err.Error(),
				Fatal:   cfg.IsUniqueKey(col.Name),
			})
			v = Null(col.Type)
		}
		row.Values[col.Name] = v
	}

	issues = append(issues, computeDerived(row, cfg, failed, ref)...)

	for _, col := range cfg.Columns {
		if col.Required && row.Values[col.Name].IsNull() && !failed[col.Name] {
			rejected = true
			issues = append(issues, ValidationIssue{
				File:    ref.File,
				Line:    ref.Line,
				Column:  col.Name,
				Kind:    IssueMissingRequired,
				Message: fmt.Sprintf("required column %q is empty", col.Name),
			})
		}
	}

	if rejected {
		return nil, issues
	}
	return row, issues
}

// transformCell applies the column's special-value rule, then coerces.
func transformCell(cell string, col ColumnSpec) (Value, error) {
	switch col.Special {
	case SpecialStarNull:
		// "*" in deletion-date style columns means "still active".
		if cell == "*" {
			return Null(col.Type), nil
		}
	case SpecialStarTrue:
		// "*" in legacy-flag columns marks presence.
		if cell == "*" {
			return BoolValue(true), nil
		}
	case SpecialLeadingDigit:
		if n, ok := LeadingInt(cell); ok {
			if len(col.AllowedInts) > 0 && !containsInt(col.AllowedInts, n) {
				return Null(col.Type), fmt.Errorf("value %d not allowed for column %q", n, col.Name)
			}
			if col.Type == KindInteger {
				return IntValue(n), nil
			}
			cell = fmt.Sprintf("%d", n)
		}
	}

	if col.Code {
		return CleanCode(cell), nil
	}
	return Coerce(cell, col.Type)
}

// computeDerived fills derived columns from already-resolved values. A
// derived column whose input failed coercion is skipped and flagged rather
// than computed from the raw text. Pre-populated values win over derivation.
func computeDerived(row *Row, cfg SourceConfig, failed map[string]bool, ref RowRef) []ValidationIssue {
	var issues []ValidationIssue

	for _, d := range cfg.Derived {
		if existing, ok := row.Values[d.Name]; ok && !existing.IsNull() {
			continue
		}

		switch {
		case len(d.Concat) > 0:
			v, issue := deriveConcat(row, d, failed, ref)
			row.Values[d.Name] = v
			if issue != nil {
				issues = append(issues, *issue)
			}
		case d.LeadingIntFrom != "":
			v, issue := deriveLeadingInt(row, d, failed, ref)
			row.Values[d.Name] = v
			if issue != nil {
				issues = append(issues, *issue)
			}
		default:
			row.Values[d.Name] = Null(d.Type)
		}
	}
	return issues
}

func deriveConcat(row *Row, d DerivedColumn, failed map[string]bool, ref RowRef) (Value, *ValidationIssue) {
	out := ""
	for _, src := range d.Concat {
		if failed[src] {
			return Null(d.Type), &ValidationIssue{
				File:    ref.File,
				Line:    ref.Line,
				Column:  d.Name,
				Kind:    IssueDerivedSkipped,
				Message: fmt.Sprintf("derived column %q skipped: input %q failed coercion", d.Name, src),
			}
		}
		v := row.Values[src]
		if v.IsNull() {
			return Null(d.Type), nil
		}
		out += v.String()
	}
	return TextValue(out), nil
}

func deriveLeadingInt(row *Row, d DerivedColumn, failed map[string]bool, ref RowRef) (Value, *ValidationIssue) {
	src := d.LeadingIntFrom
	if failed[src] {
		return Null(d.Type), &ValidationIssue{
			File:    ref.File,
			Line:    ref.Line,
			Column:  d.Name,
			Kind:    IssueDerivedSkipped,
			Message: fmt.Sprintf("derived column %q skipped: input %q failed coercion", d.Name, src),
		}
	}
	v := row.Values[src]
	if v.IsNull() {
		return Null(d.Type), nil
	}
	n, ok := LeadingInt(v.String())
	if !ok {
		return Null(d.Type), &ValidationIssue{
			File:    ref.File,
			Line:    ref.Line,
			Column:  d.Name,
			Kind:    IssueDerivedSkipped,
			Message: fmt.Sprintf("no leading integer in %q for derived column %q", v.String(), d.Name),
		}
	}
	if len(d.AllowedInts) > 0 && !containsInt(d.AllowedInts, n) {
		return Null(d.Type), &ValidationIssue{
			File:    ref.File,
			Line:    ref.Line,
			Column:  d.Name,
			Kind:    IssueDerivedSkipped,
			Message: fmt.Sprintf("value %d outside allowed set for derived column %q", n, d.Name),
		}
	}
	return IntValue(n), nil
}

func containsInt(set []int64, n int64) bool {
	for _, v := range set {
		if v == n {
			return true
		}
	}
	return false
}

// IsEmptyRow reports whether at least 80% of a record's cells are blank.
// Reference files pad metadata and legend rows below the header.
func IsEmptyRow(raw []string) bool {
	if len(raw) == 0 {
		return true
	}
	empty := 0
	for _, cell := range raw {
		if IsNullToken(cell) {
			empty++
		}
	}
	return empty*5 >= len(raw)*4
}

// DedupeRows drops rows whose unique-key tuple repeats within one part.
// First occurrence wins; later duplicates produce warning issues. Cross-part
// duplicates are a separate, fatal check at assembly completion.
func DedupeRows(rows []*Row, uniqueKey []string) ([]*Row, []ValidationIssue) {
	if len(uniqueKey) == 0 {
		return rows, nil
	}
	seen := make(map[string]int, len(rows))
	out := rows[:0]
	var issues []ValidationIssue
	for _, row := range rows {
		key := row.KeyTuple(uniqueKey)
		if firstLine, dup := seen[key]; dup {
			issues = append(issues, ValidationIssue{
				File:    row.Ref.File,
				Line:    row.Ref.Line,
				Kind:    IssueDuplicateKey,
				Message: fmt.Sprintf("duplicate key, first seen at line %d", firstLine),
			})
			continue
		}
		seen[key] = row.Ref.Line
		out = append(out, row)
	}
	return out, issues
}
