package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/coreline-labs/erpsync-core/internal/core/domain"
	"github.com/coreline-labs/erpsync-core/internal/core/ports/driven/mocks"
)

type testPipeline struct {
	pipeline *Pipeline
	tenants  *mocks.MockTenantStore
	cache    *mocks.MockTokenCache
	gateway  *mocks.MockERPGateway
	mirror   *mocks.MockMirrorStore
	logs     *mocks.MockSyncLogStore
}

func createTestPipeline(t *testing.T) *testPipeline {
	t.Helper()

	tenants := mocks.NewMockTenantStore()
	cache := mocks.NewMockTokenCache()
	lock := mocks.NewMockDistributedLock()
	gateway := mocks.NewMockERPGateway()
	mirror := mocks.NewMockMirrorStore()
	logs := mocks.NewMockSyncLogStore()

	tokens := NewTokenManager(TokenManagerConfig{
		Tenants:   tenants,
		Cache:     cache,
		Lock:      lock,
		Gateway:   gateway,
		LockWait:  100 * time.Millisecond,
		LockPoll:  10 * time.Millisecond,
		RetryStep: time.Millisecond,
	})
	fetcher := NewFetcher(FetcherConfig{
		Gateway:      gateway,
		Tokens:       tokens,
		PageRate:     10000,
		RenewalDelay: time.Millisecond,
	})
	reconciler := NewReconciler(ReconcilerConfig{Store: mirror})

	pipeline := NewPipeline(PipelineConfig{
		Tokens:     tokens,
		Fetcher:    fetcher,
		Reconciler: reconciler,
		Logs:       logs,
	})

	return &testPipeline{
		pipeline: pipeline,
		tenants:  tenants,
		cache:    cache,
		gateway:  gateway,
		mirror:   mirror,
		logs:     logs,
	}
}

func TestPipeline_SyncTable_Success(t *testing.T) {
	tp := createTestPipeline(t)
	tenant := testTenant("t1")
	tp.tenants.Add(tenant)
	tp.gateway.Pages = makePages(2, 3)

	result := tp.pipeline.SyncTable(context.Background(), tenant, partnerSpec())

	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	if result.Counts.Total != 6 || result.Counts.Inserted != 6 {
		t.Errorf("counts = %+v", result.Counts)
	}
	if result.Duration < 0 {
		t.Errorf("duration = %f", result.Duration)
	}

	// The attempt is persisted to the sync log.
	records := tp.logs.Records()
	if len(records) != 1 {
		t.Fatalf("expected 1 log record, got %d", len(records))
	}
	if !records[0].Success || records[0].TenantID != "t1" || records[0].Entity != "Parceiro" {
		t.Errorf("log record = %+v", records[0])
	}
}

func TestPipeline_SyncTable_AlwaysForcesRefresh(t *testing.T) {
	tp := createTestPipeline(t)
	tenant := testTenant("t1")
	tp.tenants.Add(tenant)

	// Seed a perfectly valid cached token; the pipeline must ignore it.
	now := time.Now()
	cached := domain.Token{Value: "cached", IssuedAt: now, ExpiresAt: now.Add(20 * time.Minute)}
	_ = tp.cache.Put(context.Background(), "t1", cached, 20*time.Minute)

	result := tp.pipeline.SyncTable(context.Background(), tenant, partnerSpec())
	if !result.Success {
		t.Fatalf("expected success, got %q", result.Error)
	}
	if tp.gateway.AuthCalls() != 1 {
		t.Errorf("expected a fresh auth call despite cached token, got %d", tp.gateway.AuthCalls())
	}
}

func TestPipeline_SyncTable_FetchFailureLogged(t *testing.T) {
	tp := createTestPipeline(t)
	tenant := testTenant("t1")
	tp.tenants.Add(tenant)

	boom := errors.New("gateway timeout")
	tp.gateway.FetchPageFunc = func(ctx context.Context, tenant *domain.Tenant, spec domain.TableSpec, token domain.Token, offset int) (*domain.Page, error) {
		return nil, boom
	}

	result := tp.pipeline.SyncTable(context.Background(), tenant, partnerSpec())
	if result.Success {
		t.Fatal("expected failure")
	}
	if result.Error == "" {
		t.Error("expected error message in result")
	}

	records := tp.logs.Records()
	if len(records) != 1 || records[0].Success {
		t.Fatalf("expected 1 failure log record, got %+v", records)
	}
}

func TestPipeline_SyncTable_AuthFailureLogged(t *testing.T) {
	tp := createTestPipeline(t)
	tenant := testTenant("t1")
	tenant.Credentials = &domain.CredentialBundle{}
	tp.tenants.Add(tenant)

	result := tp.pipeline.SyncTable(context.Background(), tenant, partnerSpec())
	if result.Success {
		t.Fatal("expected failure for missing credentials")
	}
	if len(tp.logs.Records()) != 1 {
		t.Fatalf("expected failure to be logged, got %d records", len(tp.logs.Records()))
	}
	if tp.gateway.FetchCalls() != 0 {
		t.Errorf("expected no fetch after auth failure, got %d", tp.gateway.FetchCalls())
	}
}

func TestPipeline_SyncTable_ReconcileFailureKeepsPartialCounts(t *testing.T) {
	tp := createTestPipeline(t)
	tenant := testTenant("t1")
	tp.tenants.Add(tenant)
	tp.gateway.Pages = makePages(1, 150)
	tp.mirror.UpsertErr = errors.New("connection lost")
	tp.mirror.FailBatch = 2

	result := tp.pipeline.SyncTable(context.Background(), tenant, partnerSpec())
	if result.Success {
		t.Fatal("expected failure")
	}
	// First batch of 100 committed before the failure.
	if result.Counts.Inserted != 100 {
		t.Errorf("inserted = %d, want 100 from the committed batch", result.Counts.Inserted)
	}
}

func TestPipeline_SyncTable_LogStoreFailureTolerated(t *testing.T) {
	tp := createTestPipeline(t)
	tenant := testTenant("t1")
	tp.tenants.Add(tenant)
	tp.logs.AppendErr = errors.New("log table full")

	result := tp.pipeline.SyncTable(context.Background(), tenant, partnerSpec())
	if !result.Success {
		t.Fatalf("log store failure must not fail the sync: %q", result.Error)
	}
}
