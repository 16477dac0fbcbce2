package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/coreline-labs/erpsync-core/internal/core/domain"
	"github.com/coreline-labs/erpsync-core/internal/core/ports/driven"
	"github.com/redis/go-redis/v9"
)

// Verify interface compliance
var _ driven.TokenCache = (*TokenCache)(nil)

const tokenPrefix = "erpsync:token:"

// TokenCache implements driven.TokenCache using Redis.
// Entries expire through Redis TTL, so a crashed process never leaves a
// token cached past its intended lifetime.
type TokenCache struct {
	client *redis.Client
}

// NewTokenCache creates a new Redis-backed TokenCache.
func NewTokenCache(client *redis.Client) *TokenCache {
	return &TokenCache{client: client}
}

// Get retrieves the cached token for a tenant.
// Returns domain.ErrNotFound when no entry exists or it has expired.
func (c *TokenCache) Get(ctx context.Context, tenantID string) (domain.Token, error) {
	data, err := c.client.Get(ctx, tokenPrefix+tenantID).Bytes()
	if err == redis.Nil {
		return domain.Token{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Token{}, fmt.Errorf("get cached token for tenant %s: %w", tenantID, err)
	}

	var token domain.Token
	if err := json.Unmarshal(data, &token); err != nil {
		// A corrupt entry is unreadable forever; drop it so the next
		// caller re-issues instead of failing repeatedly.
		c.client.Del(ctx, tokenPrefix+tenantID)
		return domain.Token{}, domain.ErrNotFound
	}
	return token, nil
}

// Put stores a token for a tenant with the given TTL.
func (c *TokenCache) Put(ctx context.Context, tenantID string, token domain.Token, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("marshal token for tenant %s: %w", tenantID, err)
	}
	if err := c.client.Set(ctx, tokenPrefix+tenantID, data, ttl).Err(); err != nil {
		return fmt.Errorf("cache token for tenant %s: %w", tenantID, err)
	}
	return nil
}

// Invalidate removes the cached token for a tenant.
// Safe to call when no entry exists.
func (c *TokenCache) Invalidate(ctx context.Context, tenantID string) error {
	if err := c.client.Del(ctx, tokenPrefix+tenantID).Err(); err != nil {
		return fmt.Errorf("invalidate token for tenant %s: %w", tenantID, err)
	}
	return nil
}

// Ping checks if the Redis backend is healthy.
func (c *TokenCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
