package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/coreline-labs/erpsync-core/internal/core/domain"
	"github.com/coreline-labs/erpsync-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.MirrorStore = (*MirrorStore)(nil)

// MirrorStore implements driven.MirrorStore over the mirror_* tables.
// Table and column names come from the fixed catalog, never from tenant
// input, and are quoted defensively anyway.
type MirrorStore struct {
	db     *DB
	logger *slog.Logger
}

// MirrorStoreConfig holds dependencies for MirrorStore.
type MirrorStoreConfig struct {
	DB     *DB
	Logger *slog.Logger
}

// NewMirrorStore creates a new MirrorStore.
func NewMirrorStore(cfg MirrorStoreConfig) *MirrorStore {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &MirrorStore{db: cfg.DB, logger: logger}
}

// MarkStale flips current=false on every current row for the tenant and
// table, stamping the load timestamp.
func (s *MirrorStore) MarkStale(ctx context.Context, tenantID string, spec domain.TableSpec, loadedAt time.Time) (int, error) {
	query := fmt.Sprintf(
		`UPDATE %s SET current = false, loaded_at = $2 WHERE tenant_id = $1 AND current = true`,
		pq.QuoteIdentifier(spec.LocalTable),
	)

	result, err := s.db.ExecContext(ctx, query, tenantID, loadedAt)
	if err != nil {
		return 0, fmt.Errorf("mark stale %s for tenant %s: %w", spec.LocalTable, tenantID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

// UpsertBatch merges one batch of records inside a single transaction.
// The upsert itself reports whether it inserted or updated: xmax is zero
// only on a freshly inserted row version, so no timestamp inference is
// involved. Row-level failures roll back to a savepoint and the batch
// continues; the failed row is counted as skipped.
func (s *MirrorStore) UpsertBatch(ctx context.Context, tenantID string, spec domain.TableSpec, batch []domain.Record, batchStart time.Time) (driven.UpsertResult, error) {
	query := upsertQuery(spec)

	var result driven.UpsertResult
	err := s.db.Transaction(ctx, func(tx *sql.Tx) error {
		for i, record := range batch {
			key := record.Key(spec.KeyField)
			if key == "" {
				s.logger.Warn("record without natural key skipped",
					"table", spec.LocalTable,
					"tenant_id", tenantID,
				)
				result.Skipped++
				continue
			}

			args := make([]any, 0, len(spec.Fields)+2)
			args = append(args, tenantID)
			for _, field := range spec.Fields {
				args = append(args, record[field])
			}
			args = append(args, batchStart)

			savepoint := fmt.Sprintf("row_%d", i)
			if _, err := tx.ExecContext(ctx, "SAVEPOINT "+savepoint); err != nil {
				return fmt.Errorf("savepoint: %w", err)
			}

			var inserted bool
			if err := tx.QueryRowContext(ctx, query, args...).Scan(&inserted); err != nil {
				if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+savepoint); rbErr != nil {
					return fmt.Errorf("upsert row %s: %w (savepoint rollback failed: %v)", key, err, rbErr)
				}
				s.logger.Warn("row upsert failed, skipping",
					"table", spec.LocalTable,
					"tenant_id", tenantID,
					"key", key,
					"error", err,
				)
				result.Skipped++
				continue
			}
			if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+savepoint); err != nil {
				return fmt.Errorf("release savepoint: %w", err)
			}

			if inserted {
				result.Inserted++
			} else {
				result.Updated++
			}
		}
		return nil
	})
	if err != nil {
		return driven.UpsertResult{}, fmt.Errorf("upsert batch into %s for tenant %s: %w", spec.LocalTable, tenantID, err)
	}
	return result, nil
}

// CountCurrent returns the number of rows with current=true.
func (s *MirrorStore) CountCurrent(ctx context.Context, tenantID string, spec domain.TableSpec) (int, error) {
	query := fmt.Sprintf(
		`SELECT COUNT(*) FROM %s WHERE tenant_id = $1 AND current = true`,
		pq.QuoteIdentifier(spec.LocalTable),
	)

	var count int
	if err := s.db.QueryRowContext(ctx, query, tenantID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count current %s for tenant %s: %w", spec.LocalTable, tenantID, err)
	}
	return count, nil
}

// upsertQuery builds the merge statement for one table spec.
//
//	INSERT INTO t (tenant_id, f1, ..., fn, current, loaded_at)
//	VALUES ($1, $2, ..., $n+1, true, $n+2)
//	ON CONFLICT (tenant_id, key) DO UPDATE SET
//	    f1 = EXCLUDED.f1, ..., current = true, loaded_at = EXCLUDED.loaded_at
//	RETURNING (xmax = 0)
func upsertQuery(spec domain.TableSpec) string {
	columns := make([]string, 0, len(spec.Fields))
	placeholders := make([]string, 0, len(spec.Fields))
	assignments := make([]string, 0, len(spec.Fields))

	for i, field := range spec.Fields {
		column := pq.QuoteIdentifier(field)
		columns = append(columns, column)
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+2))
		if field != spec.KeyField {
			assignments = append(assignments, fmt.Sprintf("%s = EXCLUDED.%s", column, column))
		}
	}
	assignments = append(assignments, "current = true", "loaded_at = EXCLUDED.loaded_at")

	return fmt.Sprintf(
		`INSERT INTO %s (tenant_id, %s, current, loaded_at)
		VALUES ($1, %s, true, $%d)
		ON CONFLICT (tenant_id, %s) DO UPDATE SET %s
		RETURNING (xmax = 0)`,
		pq.QuoteIdentifier(spec.LocalTable),
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
		len(spec.Fields)+2,
		pq.QuoteIdentifier(spec.KeyField),
		strings.Join(assignments, ", "),
	)
}
