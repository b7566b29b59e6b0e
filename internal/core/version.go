package core

// version.go drives the version lifecycle: pending -> processing while parts
// assemble, then completed or failed, both terminal. Exactly one version per
// source+variant may be current; promotion is atomic in the store.
//
// All state transitions for one version run under a per-version mutex, so
// concurrent part submissions serialize instead of corrupting assembly state.

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Manager owns version lifecycle transitions against a Store.
type Manager struct {
	store Store
	asm   *Assembler

	mu    sync.Mutex
	locks map[VersionKey]*sync.Mutex
}

// NewManager creates a manager over the given store.
func NewManager(store Store) *Manager {
	return &Manager{
		store: store,
		asm:   NewAssembler(),
		locks: make(map[VersionKey]*sync.Mutex),
	}
}

// SubmitResult reports the outcome of one part submission.
type SubmitResult struct {
	Meta     VersionMeta
	Assembly AssemblyStatus
	// Issues holds fatal cross-part problems found at completion time
	// (duplicate unique keys spanning parts). The version is failed when
	// any are present.
	Issues []ValidationIssue
}

// lockFor returns the mutex serializing operations on one version.
func (m *Manager) lockFor(key VersionKey) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	return l
}

// SubmitPart adds one transformed part to a version, creating the version on
// first contact and completing it when the final part lands.
//
// A completed version rejects the submission with VersionClosedError. A
// failed version is superseded: its record is deleted and the submission
// starts the version over. The declared part count must agree with the count
// persisted on the version record, so a disagreement is caught even when the
// in-memory assembly state did not survive a restart.
func (m *Manager) SubmitPart(ctx context.Context, cfg SourceConfig, key VersionKey, partIdx, declared int, rows []*Row) (SubmitResult, error) {
	if declared < 1 {
		declared = 1
	}

	l := m.lockFor(key)
	l.Lock()
	defer l.Unlock()

	meta, exists, err := m.store.GetVersion(ctx, key)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("load version %s: %w", key, err)
	}

	if exists && meta.Status == StatusCompleted {
		return SubmitResult{Meta: meta}, &VersionClosedError{Version: key, Status: meta.Status}
	}
	if exists && meta.Status == StatusFailed {
		slog.Info("superseding failed version", "version", key.String())
		if err := m.store.DeleteVersion(ctx, key); err != nil {
			return SubmitResult{}, fmt.Errorf("supersede version %s: %w", key, err)
		}
		m.asm.Drop(key)
		exists = false
	}

	if exists && declared != meta.PartsExpected {
		mismatch := &PartCountMismatchError{Version: key, Declared: declared, Expected: meta.PartsExpected}
		if failErr := m.store.FailVersion(ctx, key, mismatch.Error()); failErr != nil {
			slog.Error("failed to mark version failed", "version", key.String(), "error", failErr)
		}
		m.asm.Drop(key)
		meta.Status = StatusFailed
		meta.Error = mismatch.Error()
		return SubmitResult{Meta: meta}, mismatch
	}

	if !exists {
		meta = VersionMeta{
			Key:           key,
			Status:        StatusProcessing,
			ImportedAt:    time.Now().UTC(),
			PartsExpected: declared,
		}
		if meta.PartsExpected < 1 {
			meta.PartsExpected = 1
		}
		if err := m.store.CreateVersion(ctx, meta); err != nil {
			return SubmitResult{}, fmt.Errorf("create version %s: %w", key, err)
		}
	}

	asmStatus, err := m.asm.SubmitPart(key, partIdx, declared, rows)
	if err != nil {
		reason := err.Error()
		if failErr := m.store.FailVersion(ctx, key, reason); failErr != nil {
			slog.Error("failed to mark version failed", "version", key.String(), "error", failErr)
		}
		m.asm.Drop(key)
		meta.Status = StatusFailed
		meta.Error = reason
		return SubmitResult{Meta: meta, Assembly: asmStatus}, err
	}

	// Union with the persisted set: parts_received never shrinks, even when
	// a restart emptied the in-memory assembler.
	received := mergeParts(meta.PartsReceived, m.asm.PartsReceived(key))
	meta.PartsReceived = received
	if err := m.store.UpdateVersionParts(ctx, key, asmStatus.PartsExpected, received); err != nil {
		return SubmitResult{}, fmt.Errorf("update version %s: %w", key, err)
	}

	if !asmStatus.Complete {
		return SubmitResult{Meta: meta, Assembly: asmStatus}, nil
	}

	allRows, ok := m.asm.Rows(key)
	if !ok {
		return SubmitResult{}, fmt.Errorf("version %s reported complete but parts are missing", key)
	}

	if issues := crossPartDuplicates(allRows, cfg.UniqueKey); len(issues) > 0 {
		reason := fmt.Sprintf("%d duplicate unique key(s) across parts", len(issues))
		if err := m.store.FailVersion(ctx, key, reason); err != nil {
			return SubmitResult{}, fmt.Errorf("fail version %s: %w", key, err)
		}
		meta.Status = StatusFailed
		meta.Error = reason
		return SubmitResult{Meta: meta, Assembly: asmStatus, Issues: issues}, nil
	}

	if err := m.store.CompleteVersion(ctx, cfg, key, allRows); err != nil {
		reason := "persist failed: " + err.Error()
		if failErr := m.store.FailVersion(ctx, key, reason); failErr != nil {
			slog.Error("failed to mark version failed", "version", key.String(), "error", failErr)
		}
		return SubmitResult{}, fmt.Errorf("complete version %s: %w", key, err)
	}

	meta.Status = StatusCompleted
	meta.RecordCount = len(allRows)
	slog.Info("version completed",
		"version", key.String(),
		"record_count", meta.RecordCount,
		"parts", asmStatus.PartsExpected,
	)
	return SubmitResult{Meta: meta, Assembly: asmStatus}, nil
}

// FailStructural marks an in-flight version failed after a structural problem
// in a later part (missing headers, bad part index). No-op when the version
// does not exist or is already terminal.
func (m *Manager) FailStructural(ctx context.Context, key VersionKey, reason string) error {
	l := m.lockFor(key)
	l.Lock()
	defer l.Unlock()

	meta, exists, err := m.store.GetVersion(ctx, key)
	if err != nil {
		return err
	}
	if !exists || meta.Status.Terminal() {
		return nil
	}
	m.asm.Drop(key)
	return m.store.FailVersion(ctx, key, reason)
}

// Promote makes a completed version the current one for its source+variant.
func (m *Manager) Promote(ctx context.Context, key VersionKey) error {
	// Promotion swaps the current flag across every label of the
	// source+variant, so it serializes on the scope, not the label. Two
	// labels promoting in parallel could otherwise both end up current.
	scope := m.lockFor(VersionKey{Source: key.Source, Variant: key.Variant})
	scope.Lock()
	defer scope.Unlock()

	l := m.lockFor(key)
	l.Lock()
	defer l.Unlock()

	meta, exists, err := m.store.GetVersion(ctx, key)
	if err != nil {
		return fmt.Errorf("load version %s: %w", key, err)
	}
	if !exists {
		return &VersionNotCompletedError{Version: key}
	}
	if meta.Status != StatusCompleted {
		return &VersionNotCompletedError{Version: key, Status: meta.Status}
	}

	if err := m.store.Promote(ctx, key); err != nil {
		return fmt.Errorf("promote version %s: %w", key, err)
	}
	slog.Info("version promoted", "version", key.String())
	return nil
}

// List returns version metadata for a source, newest first.
func (m *Manager) List(ctx context.Context, source, variant string) ([]VersionMeta, error) {
	return m.store.ListVersions(ctx, source, variant)
}

// FailStale fails every pending assembly with no submission within maxWait.
// Returns the versions failed.
func (m *Manager) FailStale(ctx context.Context, maxWait time.Duration) []VersionKey {
	cutoff := time.Now().Add(-maxWait)
	stale := m.asm.StaleSince(cutoff)
	for _, key := range stale {
		reason := fmt.Sprintf("assembly timed out after %s", maxWait)
		if err := m.FailStructural(ctx, key, reason); err != nil {
			slog.Error("failed to expire stale version", "version", key.String(), "error", err)
			continue
		}
		slog.Warn("stale assembly failed", "version", key.String(), "max_wait", maxWait.String())
	}
	return stale
}

// mergeParts unions two received-part sets, sorted.
func mergeParts(a, b []int) []int {
	seen := make(map[int]bool, len(a)+len(b))
	for _, p := range a {
		seen[p] = true
	}
	for _, p := range b {
		seen[p] = true
	}
	return sortedInts(seen)
}

// crossPartDuplicates finds unique-key collisions in the merged row set.
// Within-part duplicates are already resolved first-wins at transform time,
// so any collision here spans parts and poisons the whole version.
func crossPartDuplicates(rows []*Row, uniqueKey []string) []ValidationIssue {
	if len(uniqueKey) == 0 {
		return nil
	}
	seen := make(map[string]RowRef, len(rows))
	var issues []ValidationIssue
	for _, row := range rows {
		key := row.KeyTuple(uniqueKey)
		if first, dup := seen[key]; dup {
			issues = append(issues, ValidationIssue{
				File: row.Ref.File,
				Line: row.Ref.Line,
				Kind: IssueDuplicateKey,
				Message: fmt.Sprintf("duplicate key across parts, first seen in %s line %d",
					first.File, first.Line),
				Fatal: true,
			})
			continue
		}
		seen[key] = row.Ref
	}
	return issues
}
