package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/coreline-labs/erpsync-core/internal/core/domain"
)

// MockTenantStore is an in-memory TenantStore for testing.
type MockTenantStore struct {
	mu      sync.RWMutex
	tenants map[string]*domain.Tenant

	// GetErr, when set, is returned by Get.
	GetErr error
	// ListDueErr, when set, is returned by ListDue.
	ListDueErr error

	scheduleUpdates []ScheduleUpdate
}

// ScheduleUpdate records one UpdateSchedule call.
type ScheduleUpdate struct {
	TenantID string
	LastRun  time.Time
	NextDue  time.Time
}

// NewMockTenantStore creates a new MockTenantStore.
func NewMockTenantStore() *MockTenantStore {
	return &MockTenantStore{tenants: make(map[string]*domain.Tenant)}
}

// Add registers a tenant.
func (m *MockTenantStore) Add(tenant *domain.Tenant) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tenants[tenant.ID] = tenant
}

func (m *MockTenantStore) Get(ctx context.Context, id string) (*domain.Tenant, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	tenant, ok := m.tenants[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return tenant, nil
}

func (m *MockTenantStore) ListDue(ctx context.Context, now time.Time) ([]*domain.Tenant, error) {
	if m.ListDueErr != nil {
		return nil, m.ListDueErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var due []*domain.Tenant
	for _, tenant := range m.tenants {
		if tenant.Due(now) {
			due = append(due, tenant)
		}
	}
	return due, nil
}

func (m *MockTenantStore) UpdateSchedule(ctx context.Context, id string, lastRun, nextDue time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tenant, ok := m.tenants[id]; ok {
		tenant.LastRunAt = &lastRun
		tenant.NextDueAt = &nextDue
	}
	m.scheduleUpdates = append(m.scheduleUpdates, ScheduleUpdate{TenantID: id, LastRun: lastRun, NextDue: nextDue})
	return nil
}

// ScheduleUpdates returns every UpdateSchedule call seen so far.
func (m *MockTenantStore) ScheduleUpdates() []ScheduleUpdate {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ScheduleUpdate, len(m.scheduleUpdates))
	copy(out, m.scheduleUpdates)
	return out
}

func (m *MockTenantStore) Ping(ctx context.Context) error { return nil }
