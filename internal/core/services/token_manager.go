package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/coreline-labs/erpsync-core/internal/core/domain"
	"github.com/coreline-labs/erpsync-core/internal/core/ports/driven"
)

const tokenLockPrefix = "tenant-token:"

// TokenManager acquires and caches bearer tokens per tenant.
// A distributed lock keyed by tenant id guards the issuance path so
// concurrent callers, in this process or another, perform at most one
// authentication call. A process-local singleflight group collapses
// duplicate concurrent requests before they reach the lock.
type TokenManager struct {
	tenants driven.TenantStore
	cache   driven.TokenCache
	lock    driven.DistributedLock
	gateway driven.ERPGateway
	logger  *slog.Logger
	group   singleflight.Group

	cacheTTL     time.Duration
	safetyMargin time.Duration
	lockTTL      time.Duration
	lockWait     time.Duration
	lockPoll     time.Duration
	authRetries  int
	retryStep    time.Duration
}

// TokenManagerConfig holds dependencies and tuning for TokenManager.
type TokenManagerConfig struct {
	Tenants driven.TenantStore
	Cache   driven.TokenCache
	Lock    driven.DistributedLock
	Gateway driven.ERPGateway
	Logger  *slog.Logger

	CacheTTL     time.Duration // cached token lifetime (default: 20m)
	SafetyMargin time.Duration // minimum remaining lifetime to serve from cache (default: 2m)
	LockTTL      time.Duration // issuance lock TTL (default: 30s)
	LockWait     time.Duration // maximum time to wait for the lock (default: 25s)
	LockPoll     time.Duration // lock polling interval (default: 500ms)
	AuthRetries  int           // attempts against a failing auth endpoint (default: 3)
	RetryStep    time.Duration // linear backoff step between attempts (default: 1s)
}

// NewTokenManager creates a new token manager.
func NewTokenManager(cfg TokenManagerConfig) *TokenManager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	m := &TokenManager{
		tenants:      cfg.Tenants,
		cache:        cfg.Cache,
		lock:         cfg.Lock,
		gateway:      cfg.Gateway,
		logger:       logger,
		cacheTTL:     cfg.CacheTTL,
		safetyMargin: cfg.SafetyMargin,
		lockTTL:      cfg.LockTTL,
		lockWait:     cfg.LockWait,
		lockPoll:     cfg.LockPoll,
		authRetries:  cfg.AuthRetries,
		retryStep:    cfg.RetryStep,
	}
	if m.cacheTTL == 0 {
		m.cacheTTL = 20 * time.Minute
	}
	if m.safetyMargin == 0 {
		m.safetyMargin = 2 * time.Minute
	}
	if m.lockTTL == 0 {
		m.lockTTL = 30 * time.Second
	}
	if m.lockWait == 0 {
		m.lockWait = 25 * time.Second
	}
	if m.lockPoll == 0 {
		m.lockPoll = 500 * time.Millisecond
	}
	if m.authRetries == 0 {
		m.authRetries = 3
	}
	if m.retryStep == 0 {
		m.retryStep = time.Second
	}
	return m
}

// Acquire returns a bearer token for the tenant.
//
// With forceRefresh=false the cached token is returned when its remaining
// lifetime exceeds the safety margin. With forceRefresh=true the cache is
// bypassed on both read and write: the caller gets a freshly issued,
// tenant-correct token, which is how every reconciliation run starts.
func (m *TokenManager) Acquire(ctx context.Context, tenantID string, forceRefresh bool) (domain.Token, error) {
	if !forceRefresh {
		if token, err := m.cached(ctx, tenantID); err == nil {
			return token, nil
		}
	}

	key := fmt.Sprintf("%s:%t", tenantID, forceRefresh)
	result, err, _ := m.group.Do(key, func() (any, error) {
		return m.issue(ctx, tenantID, forceRefresh)
	})
	if err != nil {
		return domain.Token{}, err
	}
	return result.(domain.Token), nil
}

// cached returns the cached token if it has enough lifetime left.
func (m *TokenManager) cached(ctx context.Context, tenantID string) (domain.Token, error) {
	token, err := m.cache.Get(ctx, tenantID)
	if err != nil {
		return domain.Token{}, err
	}
	if token.ExpiresWithin(time.Now(), m.safetyMargin) {
		return domain.Token{}, domain.ErrNotFound
	}
	return token, nil
}

// issue authenticates against the ERP API under the tenant lock.
func (m *TokenManager) issue(ctx context.Context, tenantID string, forceRefresh bool) (domain.Token, error) {
	lockName := tokenLockPrefix + tenantID
	token, locked, err := m.acquireLock(ctx, lockName, tenantID, forceRefresh)
	if err != nil {
		return domain.Token{}, err
	}
	if !locked {
		// Another caller issued a usable token while we waited.
		return token, nil
	}
	defer func() {
		if err := m.lock.Release(context.WithoutCancel(ctx), lockName); err != nil {
			m.logger.Warn("failed to release tenant lock", "tenant_id", tenantID, "error", err)
		}
	}()

	// Another caller may have issued a token while we waited for the lock.
	if !forceRefresh {
		if token, err := m.cached(ctx, tenantID); err == nil {
			return token, nil
		}
	}

	tenant, err := m.tenants.Get(ctx, tenantID)
	if err != nil {
		return domain.Token{}, fmt.Errorf("load tenant %s: %w", tenantID, err)
	}
	if err := tenant.Credentials.Validate(tenant.AuthScheme); err != nil {
		return domain.Token{}, err
	}

	token, err = m.authenticate(ctx, tenant)
	if err != nil {
		return domain.Token{}, err
	}

	if !forceRefresh {
		ttl := m.cacheTTL
		if remaining := token.TTL(time.Now()); remaining > 0 && remaining < ttl {
			ttl = remaining
		}
		if err := m.cache.Put(ctx, tenantID, token, ttl); err != nil {
			m.logger.Warn("failed to cache token", "tenant_id", tenantID, "error", err)
		}
	}

	m.logger.Info("token issued",
		"tenant_id", tenantID,
		"force_refresh", forceRefresh,
		"expires_at", token.ExpiresAt,
	)
	return token, nil
}

// acquireLock obtains the tenant lock, polling while another holder has it
// and re-checking the cache between polls: the holder is probably issuing a
// token right now, and a cached result makes the lock unnecessary.
// Returns locked=false with a token when the cache was satisfied instead.
func (m *TokenManager) acquireLock(ctx context.Context, lockName, tenantID string, forceRefresh bool) (domain.Token, bool, error) {
	deadline := time.Now().Add(m.lockWait)
	for {
		acquired, err := m.lock.Acquire(ctx, lockName, m.lockTTL)
		if err != nil {
			return domain.Token{}, false, fmt.Errorf("acquire tenant lock: %w", err)
		}
		if acquired {
			return domain.Token{}, true, nil
		}

		if !forceRefresh {
			if token, err := m.cached(ctx, tenantID); err == nil {
				return token, false, nil
			}
		}

		if time.Now().After(deadline) {
			return domain.Token{}, false, fmt.Errorf("%w: tenant %s", domain.ErrLockWait, tenantID)
		}
		select {
		case <-ctx.Done():
			return domain.Token{}, false, ctx.Err()
		case <-time.After(m.lockPoll):
		}
	}
}

// authenticate calls the tenant's auth endpoint with bounded retries on
// server errors.
func (m *TokenManager) authenticate(ctx context.Context, tenant *domain.Tenant) (domain.Token, error) {
	var lastErr error
	for attempt := 1; attempt <= m.authRetries; attempt++ {
		token, err := m.gateway.Authenticate(ctx, tenant)
		if err == nil {
			return token, nil
		}
		lastErr = err

		if !errors.Is(err, domain.ErrAuthUnavailable) {
			if cacheErr := m.cache.Invalidate(ctx, tenant.ID); cacheErr != nil {
				m.logger.Warn("failed to invalidate token cache", "tenant_id", tenant.ID, "error", cacheErr)
			}
			return domain.Token{}, fmt.Errorf("%w: %v", domain.ErrAuthFailed, err)
		}

		m.logger.Warn("auth endpoint unavailable, retrying",
			"tenant_id", tenant.ID,
			"attempt", attempt,
			"error", err,
		)
		if attempt < m.authRetries {
			select {
			case <-ctx.Done():
				return domain.Token{}, ctx.Err()
			case <-time.After(time.Duration(attempt) * m.retryStep):
			}
		}
	}
	return domain.Token{}, fmt.Errorf("%w: %v", domain.ErrAuthUnavailable, lastErr)
}
