package store

// memory.go is an in-memory core.Store used by tests and local development.
// It mirrors the Postgres store's semantics, including atomic promotion. The
// BeforePromote hook lets tests interrupt a promotion mid-flight to verify
// the previously current version survives.

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kingsfoil/refdata/internal/core"
)

// MemStore is an in-memory implementation of core.Store.
type MemStore struct {
	mu       sync.Mutex
	versions map[core.VersionKey]*core.VersionMeta
	rows     map[core.VersionKey][]*core.Row

	// BeforePromote, when set, runs after the promote target is validated
	// and before any current flag changes. Returning an error aborts the
	// promotion with no state change.
	BeforePromote func(key core.VersionKey) error
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		versions: make(map[core.VersionKey]*core.VersionMeta),
		rows:     make(map[core.VersionKey][]*core.Row),
	}
}

func (s *MemStore) CreateVersion(_ context.Context, meta core.VersionMeta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.versions[meta.Key]; exists {
		return fmt.Errorf("version %s already exists", meta.Key)
	}
	m := meta
	s.versions[meta.Key] = &m
	return nil
}

func (s *MemStore) GetVersion(_ context.Context, key core.VersionKey) (core.VersionMeta, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.versions[key]
	if !ok {
		return core.VersionMeta{}, false, nil
	}
	return *m, true, nil
}

func (s *MemStore) UpdateVersionParts(_ context.Context, key core.VersionKey, expected int, received []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.versions[key]
	if !ok {
		return fmt.Errorf("version %s not found", key)
	}
	m.PartsExpected = expected
	m.PartsReceived = append([]int(nil), received...)
	return nil
}

func (s *MemStore) CompleteVersion(_ context.Context, _ core.SourceConfig, key core.VersionKey, rows []*core.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.versions[key]
	if !ok {
		return fmt.Errorf("version %s not found", key)
	}
	s.rows[key] = rows
	m.Status = core.StatusCompleted
	m.RecordCount = len(rows)
	m.Error = ""
	return nil
}

func (s *MemStore) FailVersion(_ context.Context, key core.VersionKey, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.versions[key]
	if !ok {
		return fmt.Errorf("version %s not found", key)
	}
	m.Status = core.StatusFailed
	m.Error = reason
	return nil
}

func (s *MemStore) DeleteVersion(_ context.Context, key core.VersionKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.versions, key)
	delete(s.rows, key)
	return nil
}

func (s *MemStore) Promote(_ context.Context, key core.VersionKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, ok := s.versions[key]
	if !ok {
		return fmt.Errorf("version %s not found", key)
	}

	if s.BeforePromote != nil {
		if err := s.BeforePromote(key); err != nil {
			return err
		}
	}

	for k, m := range s.versions {
		if k.Source == key.Source && k.Variant == key.Variant {
			m.IsCurrent = false
		}
	}
	target.IsCurrent = true
	return nil
}

func (s *MemStore) ListVersions(_ context.Context, source, variant string) ([]core.VersionMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []core.VersionMeta
	for k, m := range s.versions {
		if k.Source != source {
			continue
		}
		if variant != "" && k.Variant != variant {
			continue
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ImportedAt.Equal(out[j].ImportedAt) {
			return out[i].ImportedAt.After(out[j].ImportedAt)
		}
		return out[i].Key.Label > out[j].Key.Label
	})
	return out, nil
}

// Rows returns the persisted rows for a version, for test assertions.
func (s *MemStore) Rows(key core.VersionKey) []*core.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows[key]
}

// CurrentVersion returns the current version for a source+variant, if any.
func (s *MemStore) CurrentVersion(source, variant string) (core.VersionMeta, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, m := range s.versions {
		if k.Source == source && k.Variant == variant && m.IsCurrent {
			return *m, true
		}
	}
	return core.VersionMeta{}, false
}
