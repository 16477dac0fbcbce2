package domain

import "errors"

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrMissingCredentials indicates the tenant's credential bundle is
	// incomplete for its auth scheme; a configuration error, never retried
	ErrMissingCredentials = errors.New("missing credentials")

	// ErrAuthFailed indicates the ERP authentication endpoint rejected the
	// tenant's credentials
	ErrAuthFailed = errors.New("authentication failed")

	// ErrAuthUnavailable indicates the ERP authentication endpoint kept
	// returning server errors after all retries
	ErrAuthUnavailable = errors.New("authentication service unavailable")

	// ErrLockWait indicates the per-tenant token lock could not be acquired
	// within the polling window
	ErrLockWait = errors.New("timed out waiting for tenant lock")

	// ErrUnauthorized indicates the ERP API rejected a bearer token (401/403);
	// recovered by re-authenticating, not a terminal failure
	ErrUnauthorized = errors.New("unauthorized")

	// ErrAlreadyQueued indicates the tenant is already queued or in-flight
	ErrAlreadyQueued = errors.New("tenant already queued or in flight")

	// ErrTenantDisabled indicates the tenant is inactive or has sync disabled
	ErrTenantDisabled = errors.New("tenant sync disabled")
)
