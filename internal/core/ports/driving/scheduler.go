package driving

import (
	"context"

	"github.com/coreline-labs/erpsync-core/internal/core/domain"
)

// SyncScheduler is the operational surface of the scheduler, consumed by
// the HTTP adapter.
type SyncScheduler interface {
	// ForceSync enqueues a tenant outside its normal schedule.
	// Returns domain.ErrAlreadyQueued if the tenant is queued or in flight,
	// domain.ErrTenantDisabled if the tenant cannot be synced.
	ForceSync(ctx context.Context, tenantID string) error

	// Status returns a snapshot of the queue and in-flight set.
	Status() domain.QueueStatus
}
