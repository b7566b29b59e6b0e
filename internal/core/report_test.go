package core

import "testing"

// ----------------------------------------------------------------------------
// IngestReport Tests
// ----------------------------------------------------------------------------

func TestReportFatalScope(t *testing.T) {
	r := &IngestReport{}
	r.Add(ValidationIssue{Column: "work_rvu", Kind: IssueTypeError})
	r.Add(ValidationIssue{Kind: IssueUnmappedHeader})
	if r.Fatal() {
		t.Error("row-scoped non-key issues must not read as fatal")
	}

	// A key column failing coercion is flagged fatal even though only its
	// row is dropped; the version-failing case is the cross-part duplicate.
	r.Add(ValidationIssue{Column: "hcpcs_code", Kind: IssueTypeError, Fatal: true})
	if !r.Fatal() {
		t.Error("key-touching issue must read as fatal")
	}
}

func TestReportGrouping(t *testing.T) {
	r := &IngestReport{}
	r.AddAll([]ValidationIssue{
		{Column: "work_rvu", Kind: IssueTypeError},
		{Column: "work_rvu", Kind: IssueTypeError},
		{Column: "mue_value", Kind: IssueMissingRequired},
		{Kind: IssueUnmappedHeader},
	})

	kinds := r.ByKind()
	if kinds[IssueTypeError] != 2 || kinds[IssueMissingRequired] != 1 || kinds[IssueUnmappedHeader] != 1 {
		t.Errorf("ByKind = %v", kinds)
	}

	cols := r.ByColumn()
	if cols["work_rvu"] != 2 || cols["mue_value"] != 1 || cols[""] != 1 {
		t.Errorf("ByColumn = %v", cols)
	}
}
