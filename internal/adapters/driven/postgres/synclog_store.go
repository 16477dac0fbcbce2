package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/coreline-labs/erpsync-core/internal/core/domain"
	"github.com/coreline-labs/erpsync-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.SyncLogStore = (*SyncLogStore)(nil)

// defaultListLimit bounds ListRecent when the caller passes zero.
const defaultListLimit = 50

// SyncLogStore implements driven.SyncLogStore over the append-only
// sync_logs table.
type SyncLogStore struct {
	db *DB
}

// NewSyncLogStore creates a new SyncLogStore.
func NewSyncLogStore(db *DB) *SyncLogStore {
	return &SyncLogStore{db: db}
}

// Append persists one attempt outcome.
func (s *SyncLogStore) Append(ctx context.Context, result *domain.TableSyncResult) error {
	query := `
		INSERT INTO sync_logs (id, tenant_id, tenant_name, entity, success,
		                       total, inserted, updated, stale, skipped,
		                       started_at, finished_at, duration_seconds, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.NewString(),
		result.TenantID,
		result.TenantName,
		result.Entity,
		result.Success,
		result.Counts.Total,
		result.Counts.Inserted,
		result.Counts.Updated,
		result.Counts.Stale,
		result.Counts.Skipped,
		result.StartedAt,
		result.FinishedAt,
		result.Duration,
		sql.NullString{String: result.Error, Valid: result.Error != ""},
	)
	if err != nil {
		return fmt.Errorf("append sync log for tenant %s: %w", result.TenantID, err)
	}
	return nil
}

// ListRecent retrieves the most recent attempts for a tenant, newest first.
func (s *SyncLogStore) ListRecent(ctx context.Context, tenantID string, limit int) ([]*domain.TableSyncResult, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := `
		SELECT tenant_id, tenant_name, entity, success,
		       total, inserted, updated, stale, skipped,
		       started_at, finished_at, duration_seconds, error
		FROM sync_logs
		WHERE tenant_id = $1
		ORDER BY started_at DESC
		LIMIT $2
	`

	rows, err := s.db.QueryContext(ctx, query, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("list sync logs for tenant %s: %w", tenantID, err)
	}
	defer rows.Close()

	var results []*domain.TableSyncResult
	for rows.Next() {
		var result domain.TableSyncResult
		var errMsg sql.NullString

		err := rows.Scan(
			&result.TenantID,
			&result.TenantName,
			&result.Entity,
			&result.Success,
			&result.Counts.Total,
			&result.Counts.Inserted,
			&result.Counts.Updated,
			&result.Counts.Stale,
			&result.Counts.Skipped,
			&result.StartedAt,
			&result.FinishedAt,
			&result.Duration,
			&errMsg,
		)
		if err != nil {
			return nil, fmt.Errorf("list sync logs for tenant %s: %w", tenantID, err)
		}
		result.Error = errMsg.String
		results = append(results, &result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sync logs for tenant %s: %w", tenantID, err)
	}
	return results, nil
}
