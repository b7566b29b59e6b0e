// Package store provides core.Store implementations: Postgres for
// production and an in-memory store for tests.
package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kingsfoil/refdata/internal/core"
)

//go:embed schema.sql
var schemaSQL string

// PGStore persists versions and reference rows in Postgres. Version rows
// live in meta.data_versions; data rows land in the per-source cms tables
// keyed by data_version_id, so deleting a version cascades to its rows.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a store over a connection pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// InitSchema creates the meta and cms schemas if they do not exist.
func (s *PGStore) InitSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

func (s *PGStore) CreateVersion(ctx context.Context, meta core.VersionMeta) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO meta.data_versions
			(source_code, variant, version_label, status, parts_expected, parts_received, imported_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		meta.Key.Source, meta.Key.Variant, meta.Key.Label,
		string(meta.Status), meta.PartsExpected, intArray(meta.PartsReceived), meta.ImportedAt)
	if err != nil {
		return fmt.Errorf("insert version %s: %w", meta.Key, err)
	}
	return nil
}

func (s *PGStore) GetVersion(ctx context.Context, key core.VersionKey) (core.VersionMeta, bool, error) {
	meta := core.VersionMeta{Key: key}
	var status string
	var errMsg pgtype.Text
	var received []int32

	err := s.pool.QueryRow(ctx, `
		SELECT status, record_count, parts_expected, parts_received,
		       is_current, error_message, imported_at
		FROM meta.data_versions
		WHERE source_code = $1 AND variant = $2 AND version_label = $3`,
		key.Source, key.Variant, key.Label,
	).Scan(&status, &meta.RecordCount, &meta.PartsExpected, &received,
		&meta.IsCurrent, &errMsg, &meta.ImportedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.VersionMeta{}, false, nil
	}
	if err != nil {
		return core.VersionMeta{}, false, fmt.Errorf("select version %s: %w", key, err)
	}

	meta.Status = core.VersionStatus(status)
	meta.Error = errMsg.String
	meta.PartsReceived = fromIntArray(received)
	return meta, true, nil
}

func (s *PGStore) UpdateVersionParts(ctx context.Context, key core.VersionKey, expected int, received []int) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE meta.data_versions
		SET parts_expected = $4, parts_received = $5
		WHERE source_code = $1 AND variant = $2 AND version_label = $3`,
		key.Source, key.Variant, key.Label, expected, intArray(received))
	if err != nil {
		return fmt.Errorf("update parts for %s: %w", key, err)
	}
	return nil
}

// CompleteVersion bulk-loads all rows for a version and marks it completed,
// in one transaction. COPY keeps multi-hundred-thousand-row NCCI loads fast.
func (s *PGStore) CompleteVersion(ctx context.Context, cfg core.SourceConfig, key core.VersionKey, rows []*core.Row) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var versionID int64
	err = tx.QueryRow(ctx, `
		SELECT id FROM meta.data_versions
		WHERE source_code = $1 AND variant = $2 AND version_label = $3
		FOR UPDATE`,
		key.Source, key.Variant, key.Label).Scan(&versionID)
	if err != nil {
		return fmt.Errorf("lock version %s: %w", key, err)
	}

	names := cfg.ColumnNames()
	copyCols := append([]string{"data_version_id"}, names...)
	_, err = tx.CopyFrom(ctx, tableIdent(cfg.Table), copyCols,
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			vals := make([]any, 0, len(copyCols))
			vals = append(vals, versionID)
			for _, name := range names {
				v, perr := pgValue(rows[i].Values[name])
				if perr != nil {
					return nil, perr
				}
				vals = append(vals, v)
			}
			return vals, nil
		}))
	if err != nil {
		return fmt.Errorf("copy rows into %s: %w", cfg.Table, err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE meta.data_versions
		SET status = $2, record_count = $3, error_message = NULL, imported_at = NOW()
		WHERE id = $1`,
		versionID, string(core.StatusCompleted), len(rows))
	if err != nil {
		return fmt.Errorf("mark version %s completed: %w", key, err)
	}

	return tx.Commit(ctx)
}

func (s *PGStore) FailVersion(ctx context.Context, key core.VersionKey, reason string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE meta.data_versions
		SET status = $4, error_message = $5
		WHERE source_code = $1 AND variant = $2 AND version_label = $3`,
		key.Source, key.Variant, key.Label, string(core.StatusFailed), reason)
	if err != nil {
		return fmt.Errorf("fail version %s: %w", key, err)
	}
	return nil
}

func (s *PGStore) DeleteVersion(ctx context.Context, key core.VersionKey) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM meta.data_versions
		WHERE source_code = $1 AND variant = $2 AND version_label = $3`,
		key.Source, key.Variant, key.Label)
	if err != nil {
		return fmt.Errorf("delete version %s: %w", key, err)
	}
	return nil
}

// Promote flips the current flag to the given version inside one
// transaction. Readers see the old current version or the new one, never an
// intermediate state with zero or two current versions.
func (s *PGStore) Promote(ctx context.Context, key core.VersionKey) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		UPDATE meta.data_versions
		SET is_current = FALSE
		WHERE source_code = $1 AND variant = $2 AND is_current`,
		key.Source, key.Variant)
	if err != nil {
		return fmt.Errorf("clear current for %s/%s: %w", key.Source, key.Variant, err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE meta.data_versions
		SET is_current = TRUE
		WHERE source_code = $1 AND variant = $2 AND version_label = $3`,
		key.Source, key.Variant, key.Label)
	if err != nil {
		return fmt.Errorf("set current %s: %w", key, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("version %s not found", key)
	}

	return tx.Commit(ctx)
}

func (s *PGStore) ListVersions(ctx context.Context, source, variant string) ([]core.VersionMeta, error) {
	query := `
		SELECT source_code, variant, version_label, status, record_count,
		       parts_expected, parts_received, is_current, error_message, imported_at
		FROM meta.data_versions
		WHERE source_code = $1`
	args := []any{source}
	if variant != "" {
		query += ` AND variant = $2`
		args = append(args, variant)
	}
	query += ` ORDER BY imported_at DESC, id DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list versions for %s: %w", source, err)
	}
	defer rows.Close()

	var out []core.VersionMeta
	for rows.Next() {
		var meta core.VersionMeta
		var status string
		var errMsg pgtype.Text
		var received []int32
		if err := rows.Scan(&meta.Key.Source, &meta.Key.Variant, &meta.Key.Label,
			&status, &meta.RecordCount, &meta.PartsExpected, &received,
			&meta.IsCurrent, &errMsg, &meta.ImportedAt); err != nil {
			return nil, fmt.Errorf("scan version row: %w", err)
		}
		meta.Status = core.VersionStatus(status)
		meta.Error = errMsg.String
		meta.PartsReceived = fromIntArray(received)
		out = append(out, meta)
	}
	return out, rows.Err()
}

// pgValue maps a typed cell value to a pgx parameter. NULL maps to nil so
// the driver writes SQL NULL; decimals go through pgtype.Numeric to avoid a
// float64 round trip.
func pgValue(v core.Value) (any, error) {
	if v.IsNull() {
		return nil, nil
	}
	switch v.Kind {
	case core.KindText:
		return v.Text, nil
	case core.KindInteger:
		return v.Int, nil
	case core.KindNumeric:
		var n pgtype.Numeric
		if err := n.Scan(v.Num.String()); err != nil {
			return nil, fmt.Errorf("encode numeric %s: %w", v.Num, err)
		}
		return n, nil
	case core.KindDate:
		return pgtype.Date{Time: v.Date, Valid: true}, nil
	case core.KindBool:
		return v.Bool, nil
	}
	return nil, fmt.Errorf("unsupported value kind %d", v.Kind)
}

// tableIdent splits a schema-qualified table name for CopyFrom.
func tableIdent(table string) pgx.Identifier {
	parts := strings.Split(table, ".")
	ident := make(pgx.Identifier, len(parts))
	copy(ident, parts)
	return ident
}

func intArray(in []int) []int32 {
	out := make([]int32, len(in))
	for i, v := range in {
		out[i] = int32(v)
	}
	return out
}

func fromIntArray(in []int32) []int {
	if len(in) == 0 {
		return nil
	}
	out := make([]int, len(in))
	for i, v := range in {
		out[i] = int(v)
	}
	return out
}
