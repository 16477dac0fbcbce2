package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/coreline-labs/erpsync-core/internal/core/domain"
)

type cacheEntry struct {
	token     domain.Token
	expiresAt time.Time
}

// MockTokenCache is an in-memory TokenCache for testing.
type MockTokenCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry

	puts        int
	invalidates int
}

// NewMockTokenCache creates a new MockTokenCache.
func NewMockTokenCache() *MockTokenCache {
	return &MockTokenCache{entries: make(map[string]cacheEntry)}
}

func (m *MockTokenCache) Get(ctx context.Context, tenantID string) (domain.Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[tenantID]
	if !ok || time.Now().After(entry.expiresAt) {
		return domain.Token{}, domain.ErrNotFound
	}
	return entry.token, nil
}

func (m *MockTokenCache) Put(ctx context.Context, tenantID string, token domain.Token, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[tenantID] = cacheEntry{token: token, expiresAt: time.Now().Add(ttl)}
	m.puts++
	return nil
}

func (m *MockTokenCache) Invalidate(ctx context.Context, tenantID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, tenantID)
	m.invalidates++
	return nil
}

func (m *MockTokenCache) Ping(ctx context.Context) error { return nil }

// Puts returns how many times Put was called.
func (m *MockTokenCache) Puts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.puts
}

// Invalidates returns how many times Invalidate was called.
func (m *MockTokenCache) Invalidates() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.invalidates
}
