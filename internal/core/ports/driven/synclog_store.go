package driven

import (
	"context"

	"github.com/coreline-labs/erpsync-core/internal/core/domain"
)

// SyncLogStore is the durable, append-only record of every table sync
// attempt, used for audit and statistics.
type SyncLogStore interface {
	// Append persists one attempt outcome. Never updated afterwards.
	Append(ctx context.Context, result *domain.TableSyncResult) error

	// ListRecent retrieves the most recent attempts for a tenant, newest
	// first. A zero limit applies a sensible default.
	ListRecent(ctx context.Context, tenantID string, limit int) ([]*domain.TableSyncResult, error)
}
