package driven

import (
	"context"
	"time"

	"github.com/coreline-labs/erpsync-core/internal/core/domain"
)

// TokenCache stores issued bearer tokens per tenant with a TTL.
// Entries disappear on expiry or explicit invalidation; tokens issued
// under forced refresh are never stored here.
type TokenCache interface {
	// Get retrieves the cached token for a tenant.
	// Returns domain.ErrNotFound if no entry exists.
	Get(ctx context.Context, tenantID string) (domain.Token, error)

	// Put stores a token for a tenant with the given TTL.
	Put(ctx context.Context, tenantID string, token domain.Token, ttl time.Duration) error

	// Invalidate removes the cached token for a tenant.
	// Safe to call when no entry exists.
	Invalidate(ctx context.Context, tenantID string) error

	// Ping checks if the cache backend is healthy.
	Ping(ctx context.Context) error
}
