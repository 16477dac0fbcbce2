package mocks

import (
	"context"
	"sync"

	"github.com/coreline-labs/erpsync-core/internal/core/domain"
)

// MockSyncLogStore is an in-memory SyncLogStore for testing.
type MockSyncLogStore struct {
	mu      sync.RWMutex
	records []*domain.TableSyncResult

	// AppendErr, when set, is returned by Append.
	AppendErr error
}

// NewMockSyncLogStore creates a new MockSyncLogStore.
func NewMockSyncLogStore() *MockSyncLogStore {
	return &MockSyncLogStore{}
}

func (m *MockSyncLogStore) Append(ctx context.Context, result *domain.TableSyncResult) error {
	if m.AppendErr != nil {
		return m.AppendErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, result)
	return nil
}

func (m *MockSyncLogStore) ListRecent(ctx context.Context, tenantID string, limit int) ([]*domain.TableSyncResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.TableSyncResult
	for i := len(m.records) - 1; i >= 0; i-- {
		if m.records[i].TenantID == tenantID {
			out = append(out, m.records[i])
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// Records returns every appended record in order.
func (m *MockSyncLogStore) Records() []*domain.TableSyncResult {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.TableSyncResult, len(m.records))
	copy(out, m.records)
	return out
}
