package driven

import (
	"context"
	"time"

	"github.com/coreline-labs/erpsync-core/internal/core/domain"
)

// TenantStore provides read access to tenant connection settings and
// credentials. The engine only reads tenants, except for the schedule
// fields the scheduler writes back after a pass.
type TenantStore interface {
	// Get retrieves a tenant by ID, including its decrypted credential
	// bundle. Returns domain.ErrNotFound if the tenant does not exist.
	Get(ctx context.Context, id string) (*domain.Tenant, error)

	// ListDue retrieves active, sync-enabled tenants whose next-due
	// timestamp is null or at/before the given instant.
	ListDue(ctx context.Context, now time.Time) ([]*domain.Tenant, error)

	// UpdateSchedule stamps the tenant's last-run and next-due timestamps
	// after a completed pass.
	UpdateSchedule(ctx context.Context, id string, lastRun, nextDue time.Time) error

	// Ping checks if the backing store is healthy.
	Ping(ctx context.Context) error
}
