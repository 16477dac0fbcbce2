package driven

import (
	"context"

	"github.com/coreline-labs/erpsync-core/internal/core/domain"
)

// ERPGateway talks to the remote ERP API on behalf of one tenant.
// The base URL is selected by the tenant's sandbox/production flag.
//
// Error contract: a rejected bearer token (HTTP 401/403) wraps
// domain.ErrUnauthorized; a server-side failure (5xx) wraps
// domain.ErrAuthUnavailable on the auth path. Everything else is returned
// as a plain error.
type ERPGateway interface {
	// Authenticate performs the tenant's login call (legacy 4-field or
	// OAuth2 client credentials, per the tenant's auth scheme) and returns
	// a freshly issued token.
	Authenticate(ctx context.Context, tenant *domain.Tenant) (domain.Token, error)

	// FetchPage loads one page of an entity type starting at the given
	// record offset, decoding the positional payload into named records.
	FetchPage(ctx context.Context, tenant *domain.Tenant, spec domain.TableSpec, token domain.Token, offset int) (*domain.Page, error)
}
