package core

// report.go collects per-row and per-file validation issues into a
// structured report returned to the caller. Issues are data, not log lines:
// the caller owns user-facing display.

// IssueKind classifies a validation issue.
type IssueKind string

const (
	IssueTypeError       IssueKind = "type_error"
	IssueMissingRequired IssueKind = "missing_required"
	IssueDuplicateKey    IssueKind = "duplicate_key"
	IssueUnmappedHeader  IssueKind = "unmapped_header"
	IssueDerivedSkipped  IssueKind = "derived_skipped"
)

// ValidationIssue records one problem with a traceable row reference. Fatal
// marks issues touching the version's unique key: a duplicate key across
// parts fails the whole version at completion, while a key column that fails
// coercion drops only its row and flags that key coverage is incomplete.
// Non-fatal issues drop at most one row.
type ValidationIssue struct {
	File    string    `json:"file,omitempty"`
	Line    int       `json:"line,omitempty"`
	Column  string    `json:"column,omitempty"`
	Kind    IssueKind `json:"kind"`
	Message string    `json:"message"`
	Fatal   bool      `json:"fatal,omitempty"`
}

// IngestReport aggregates the outcome of transforming one file.
type IngestReport struct {
	RowsAttempted int               `json:"rows_attempted"`
	RowsAccepted  int               `json:"rows_accepted"`
	RowsRejected  int               `json:"rows_rejected"`
	RowsSkipped   int               `json:"rows_skipped"` // blank/metadata rows
	Issues        []ValidationIssue `json:"issues,omitempty"`
}

// Add appends an issue to the report.
func (r *IngestReport) Add(issue ValidationIssue) {
	r.Issues = append(r.Issues, issue)
}

// AddAll appends a batch of issues.
func (r *IngestReport) AddAll(issues []ValidationIssue) {
	r.Issues = append(r.Issues, issues...)
}

// Fatal reports whether any collected issue touched the unique key set.
// Only cross-part duplicates among these fail the version; row-scoped key
// failures cost their row.
func (r *IngestReport) Fatal() bool {
	for _, issue := range r.Issues {
		if issue.Fatal {
			return true
		}
	}
	return false
}

// ByKind groups issue counts by kind for diagnostics summaries.
func (r *IngestReport) ByKind() map[IssueKind]int {
	out := make(map[IssueKind]int)
	for _, issue := range r.Issues {
		out[issue.Kind]++
	}
	return out
}

// ByColumn groups issue counts by column. Issues without a column (file-level
// warnings) are grouped under the empty key.
func (r *IngestReport) ByColumn() map[string]int {
	out := make(map[string]int)
	for _, issue := range r.Issues {
		out[issue.Column]++
	}
	return out
}
