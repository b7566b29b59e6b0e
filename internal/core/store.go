package core

// store.go declares the persistence contract the version manager drives.
// Implementations live in internal/store; the Postgres store is authoritative
// and the in-memory store backs tests.

import "context"

// Store persists version metadata and completed version rows.
type Store interface {
	// CreateVersion inserts a new version metadata record.
	CreateVersion(ctx context.Context, meta VersionMeta) error

	// GetVersion fetches a version's metadata. ok=false means no such version.
	GetVersion(ctx context.Context, key VersionKey) (meta VersionMeta, ok bool, err error)

	// UpdateVersionParts records assembly progress on a processing version.
	UpdateVersionParts(ctx context.Context, key VersionKey, expected int, received []int) error

	// CompleteVersion writes all rows for a version and marks it completed
	// with the final record count. The write is atomic: either every row
	// lands and the version completes, or neither happens.
	CompleteVersion(ctx context.Context, cfg SourceConfig, key VersionKey, rows []*Row) error

	// FailVersion marks a version failed with a diagnostic reason.
	FailVersion(ctx context.Context, key VersionKey, reason string) error

	// DeleteVersion removes a version's metadata and rows. Used when a failed
	// version is superseded by a re-ingest under the same label.
	DeleteVersion(ctx context.Context, key VersionKey) error

	// Promote atomically makes the version current for its source+variant,
	// clearing the flag from the previously current version. Readers observe
	// either the old current or the new one, never both or neither.
	Promote(ctx context.Context, key VersionKey) error

	// ListVersions returns version metadata for a source, newest first.
	// Empty variant matches all variants of the source.
	ListVersions(ctx context.Context, source, variant string) ([]VersionMeta, error)
}
