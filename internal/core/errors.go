package core

// errors.go defines the error taxonomy for ingestion operations.
//
// Structural errors abort a file before any row is accepted. State-conflict
// errors abort a single operation against a version whose lifecycle does not
// permit it. Row-level problems are never errors; they are ValidationIssues
// collected on the ingest report.

import "fmt"

// UnknownSourceError indicates a source code with no registered configuration.
type UnknownSourceError struct {
	Code string
}

func (e *UnknownSourceError) Error() string {
	return fmt.Sprintf("unknown data source %q", e.Code)
}

// StructuralError indicates the file cannot be trusted as a whole: a missing
// required header, an unrecognized variant, or an invalid part index.
type StructuralError struct {
	Reason  string
	Missing []string // required canonical columns with no matching header
}

func (e *StructuralError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("%s: %v", e.Reason, e.Missing)
	}
	return e.Reason
}

// PartCountMismatchError indicates a part submission disagreeing with the
// part count fixed by the version's first part.
type PartCountMismatchError struct {
	Version  VersionKey
	Declared int
	Expected int
}

func (e *PartCountMismatchError) Error() string {
	return fmt.Sprintf("version %s expects %d part(s), submission declared %d",
		e.Version, e.Expected, e.Declared)
}

// VersionClosedError indicates a part submission against a version already in
// a terminal state.
type VersionClosedError struct {
	Version VersionKey
	Status  VersionStatus
}

func (e *VersionClosedError) Error() string {
	return fmt.Sprintf("version %s is %s and accepts no further parts", e.Version, e.Status)
}

// VersionNotCompletedError indicates a promotion attempt on a version that is
// missing, still assembling, or failed.
type VersionNotCompletedError struct {
	Version VersionKey
	Status  VersionStatus // empty if the version does not exist
}

func (e *VersionNotCompletedError) Error() string {
	if e.Status == "" {
		return fmt.Sprintf("version %s does not exist", e.Version)
	}
	return fmt.Sprintf("version %s is %s, only completed versions can be promoted", e.Version, e.Status)
}
