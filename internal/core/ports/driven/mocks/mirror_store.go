package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/coreline-labs/erpsync-core/internal/core/domain"
	"github.com/coreline-labs/erpsync-core/internal/core/ports/driven"
)

type mirrorRow struct {
	record    domain.Record
	current   bool
	createdAt time.Time
	loadedAt  time.Time
}

// MockMirrorStore is an in-memory MirrorStore for testing. It keeps the
// same current-flag semantics as the postgres adapter so reconciliation
// invariants can be asserted directly.
type MockMirrorStore struct {
	mu sync.Mutex
	// rows[table][tenantID][key]
	rows map[string]map[string]map[string]*mirrorRow

	// MarkStaleErr, when set, is returned by MarkStale.
	MarkStaleErr error
	// UpsertErr, when set, is returned by UpsertBatch.
	UpsertErr error
	// FailBatch, when > 0, fails the Nth UpsertBatch call (1-based) with
	// UpsertErr, leaving earlier batches applied.
	FailBatch int
	// FailKeys lists natural keys that fail at row level and are skipped.
	FailKeys map[string]bool

	upsertBatches int
}

// NewMockMirrorStore creates a new MockMirrorStore.
func NewMockMirrorStore() *MockMirrorStore {
	return &MockMirrorStore{
		rows:     make(map[string]map[string]map[string]*mirrorRow),
		FailKeys: make(map[string]bool),
	}
}

func (m *MockMirrorStore) tenantRows(table, tenantID string) map[string]*mirrorRow {
	if m.rows[table] == nil {
		m.rows[table] = make(map[string]map[string]*mirrorRow)
	}
	if m.rows[table][tenantID] == nil {
		m.rows[table][tenantID] = make(map[string]*mirrorRow)
	}
	return m.rows[table][tenantID]
}

func (m *MockMirrorStore) MarkStale(ctx context.Context, tenantID string, spec domain.TableSpec, loadedAt time.Time) (int, error) {
	if m.MarkStaleErr != nil {
		return 0, m.MarkStaleErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	affected := 0
	for _, row := range m.tenantRows(spec.LocalTable, tenantID) {
		if row.current {
			row.current = false
			row.loadedAt = loadedAt
			affected++
		}
	}
	return affected, nil
}

func (m *MockMirrorStore) UpsertBatch(ctx context.Context, tenantID string, spec domain.TableSpec, batch []domain.Record, batchStart time.Time) (driven.UpsertResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertBatches++
	if m.FailBatch > 0 && m.upsertBatches == m.FailBatch {
		err := m.UpsertErr
		if err == nil {
			err = domain.ErrNotFound
		}
		return driven.UpsertResult{}, err
	}
	if m.FailBatch == 0 && m.UpsertErr != nil {
		return driven.UpsertResult{}, m.UpsertErr
	}

	var result driven.UpsertResult
	rows := m.tenantRows(spec.LocalTable, tenantID)
	for _, record := range batch {
		key := record.Key(spec.KeyField)
		if key == "" || m.FailKeys[key] {
			result.Skipped++
			continue
		}
		if existing, ok := rows[key]; ok {
			existing.record = record
			existing.current = true
			existing.loadedAt = batchStart
			result.Updated++
			continue
		}
		rows[key] = &mirrorRow{record: record, current: true, createdAt: time.Now(), loadedAt: batchStart}
		result.Inserted++
	}
	return result, nil
}

func (m *MockMirrorStore) CountCurrent(ctx context.Context, tenantID string, spec domain.TableSpec) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, row := range m.tenantRows(spec.LocalTable, tenantID) {
		if row.current {
			count++
		}
	}
	return count, nil
}

// Current returns the natural keys currently flagged current=true.
func (m *MockMirrorStore) Current(tenantID string, spec domain.TableSpec) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for key, row := range m.tenantRows(spec.LocalTable, tenantID) {
		if row.current {
			keys = append(keys, key)
		}
	}
	return keys
}

// UpsertBatches returns how many batches were written.
func (m *MockMirrorStore) UpsertBatches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upsertBatches
}
