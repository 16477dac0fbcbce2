package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coreline-labs/erpsync-core/internal/core/domain"
)

// MockERPGateway is a scriptable ERPGateway for testing.
// Behavior can be overridden per call via the function fields; without
// overrides it issues sequential tokens and serves the configured pages.
type MockERPGateway struct {
	mu sync.Mutex

	// AuthenticateFunc, when set, replaces the default token issuance.
	AuthenticateFunc func(ctx context.Context, tenant *domain.Tenant) (domain.Token, error)
	// FetchPageFunc, when set, replaces the default page serving.
	FetchPageFunc func(ctx context.Context, tenant *domain.Tenant, spec domain.TableSpec, token domain.Token, offset int) (*domain.Page, error)

	// Pages served by the default FetchPage, keyed by offset.
	Pages map[int]*domain.Page

	authCalls  int
	fetchCalls int
}

// NewMockERPGateway creates a new MockERPGateway.
func NewMockERPGateway() *MockERPGateway {
	return &MockERPGateway{Pages: make(map[int]*domain.Page)}
}

func (m *MockERPGateway) Authenticate(ctx context.Context, tenant *domain.Tenant) (domain.Token, error) {
	m.mu.Lock()
	m.authCalls++
	calls := m.authCalls
	fn := m.AuthenticateFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, tenant)
	}
	now := time.Now()
	return domain.Token{
		Value:     fmt.Sprintf("token-%d", calls),
		IssuedAt:  now,
		ExpiresAt: now.Add(20 * time.Minute),
	}, nil
}

func (m *MockERPGateway) FetchPage(ctx context.Context, tenant *domain.Tenant, spec domain.TableSpec, token domain.Token, offset int) (*domain.Page, error) {
	m.mu.Lock()
	m.fetchCalls++
	fn := m.FetchPageFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, tenant, spec, token, offset)
	}
	page, ok := m.Pages[offset]
	if !ok {
		return &domain.Page{}, nil
	}
	return page, nil
}

// AuthCalls returns how many times Authenticate was called.
func (m *MockERPGateway) AuthCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.authCalls
}

// FetchCalls returns how many times FetchPage was called.
func (m *MockERPGateway) FetchCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetchCalls
}
