package core

// assembler.go accumulates multi-part uploads until a version is complete.
//
// NCCI PTP edits arrive as several files per quarter, one per code range.
// Each file declares the total part count; the first accepted part fixes that
// count for the version and later submissions must agree. Parts are a set
// keyed by index: arrival order does not matter and resubmitting an index
// replaces the earlier rows rather than doubling them.

import (
	"sync"
	"time"
)

type pendingVersion struct {
	expected   int
	parts      map[int][]*Row
	lastSubmit time.Time
}

// Assembler holds in-flight part sets, keyed by version.
type Assembler struct {
	mu      sync.Mutex
	pending map[VersionKey]*pendingVersion
}

// NewAssembler creates an empty assembler.
func NewAssembler() *Assembler {
	return &Assembler{pending: make(map[VersionKey]*pendingVersion)}
}

// SubmitPart records one part's rows for a version. The first submission for
// a version fixes the expected part count; declared must match on every
// subsequent part. partIdx is 1-based and must not exceed the expected count.
func (a *Assembler) SubmitPart(key VersionKey, partIdx, declared int, rows []*Row) (AssemblyStatus, error) {
	if declared < 1 {
		declared = 1
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	pv, ok := a.pending[key]
	if !ok {
		pv = &pendingVersion{expected: declared, parts: make(map[int][]*Row)}
		a.pending[key] = pv
	}

	if declared != pv.expected {
		return a.statusLocked(pv), &PartCountMismatchError{
			Version:  key,
			Declared: declared,
			Expected: pv.expected,
		}
	}
	if partIdx < 1 || partIdx > pv.expected {
		return a.statusLocked(pv), &StructuralError{
			Reason: "part index out of range for " + key.String(),
		}
	}

	pv.parts[partIdx] = rows
	pv.lastSubmit = time.Now()
	return a.statusLocked(pv), nil
}

// Status returns assembly progress for a version. The zero status is returned
// for versions with no pending parts.
func (a *Assembler) Status(key VersionKey) AssemblyStatus {
	a.mu.Lock()
	defer a.mu.Unlock()

	pv, ok := a.pending[key]
	if !ok {
		return AssemblyStatus{}
	}
	return a.statusLocked(pv)
}

// PartsReceived returns the sorted part indices received for a version.
func (a *Assembler) PartsReceived(key VersionKey) []int {
	a.mu.Lock()
	defer a.mu.Unlock()

	pv, ok := a.pending[key]
	if !ok {
		return nil
	}
	received := make(map[int]bool, len(pv.parts))
	for idx := range pv.parts {
		received[idx] = true
	}
	return sortedInts(received)
}

// Rows returns all accumulated rows for a complete version, ordered by part
// index, and drops the pending state. Returns false if the version is not
// complete.
func (a *Assembler) Rows(key VersionKey) ([]*Row, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	pv, ok := a.pending[key]
	if !ok || len(pv.parts) != pv.expected {
		return nil, false
	}

	total := 0
	for _, part := range pv.parts {
		total += len(part)
	}
	rows := make([]*Row, 0, total)
	for idx := 1; idx <= pv.expected; idx++ {
		rows = append(rows, pv.parts[idx]...)
	}
	delete(a.pending, key)
	return rows, true
}

// Drop discards any pending parts for a version.
func (a *Assembler) Drop(key VersionKey) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.pending, key)
}

// StaleSince returns the keys of pending versions with no submission since
// the cutoff. Used by the background sweeper to fail abandoned assemblies.
func (a *Assembler) StaleSince(cutoff time.Time) []VersionKey {
	a.mu.Lock()
	defer a.mu.Unlock()

	var stale []VersionKey
	for key, pv := range a.pending {
		if pv.lastSubmit.Before(cutoff) {
			stale = append(stale, key)
		}
	}
	return stale
}

// PendingCount returns the number of versions with parts in flight.
func (a *Assembler) PendingCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}

func (a *Assembler) statusLocked(pv *pendingVersion) AssemblyStatus {
	return AssemblyStatus{
		PartsReceived: len(pv.parts),
		PartsExpected: pv.expected,
		Complete:      len(pv.parts) == pv.expected,
	}
}
