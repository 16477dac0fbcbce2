package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreline-labs/erpsync-core/internal/core/domain"
)

func createTestScheduler(t *testing.T, catalog []domain.TableSpec) (*Scheduler, *testPipeline) {
	t.Helper()

	tp := createTestPipeline(t)
	scheduler := NewScheduler(SchedulerConfig{
		Tenants:      tp.tenants,
		Pipeline:     tp.pipeline,
		Catalog:      catalog,
		PollInterval: time.Hour, // tests drive Poll directly
		RetryStep:    time.Millisecond,
	})
	return scheduler, tp
}

func smallCatalog() []domain.TableSpec {
	return []domain.TableSpec{
		{Entity: "Parceiro", LocalTable: "mirror_partners", KeyField: "codigo"},
		{Entity: "Produto", LocalTable: "mirror_products", KeyField: "codigo"},
	}
}

func TestScheduler_Poll_EnqueuesDueAndSyncs(t *testing.T) {
	scheduler, tp := createTestScheduler(t, smallCatalog())
	tp.tenants.Add(testTenant("t1"))
	tp.tenants.Add(testTenant("t2"))

	scheduler.Poll(context.Background())

	require.Eventually(t, func() bool {
		return len(tp.tenants.ScheduleUpdates()) == 2
	}, 2*time.Second, 10*time.Millisecond, "both tenants should complete a pass")

	// One log record per (tenant, table).
	assert.Len(t, tp.logs.Records(), 4)

	status := scheduler.Status()
	assert.Equal(t, 0, status.Length)
	assert.Empty(t, status.InFlight)
	assert.False(t, status.Draining)
}

func TestScheduler_Poll_DoesNotRequeueQueuedOrInFlight(t *testing.T) {
	scheduler, tp := createTestScheduler(t, smallCatalog()[:1])
	tp.tenants.Add(testTenant("t1"))
	tp.tenants.Add(testTenant("t2"))

	// Hold the worker inside the first tenant's fetch.
	release := make(chan struct{})
	var once sync.Once
	tp.gateway.FetchPageFunc = func(ctx context.Context, tenant *domain.Tenant, spec domain.TableSpec, token domain.Token, offset int) (*domain.Page, error) {
		once.Do(func() { <-release })
		return &domain.Page{}, nil
	}

	ctx := context.Background()
	scheduler.Poll(ctx)

	require.Eventually(t, func() bool {
		return len(scheduler.Status().InFlight) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// Polling again while one tenant is in flight and the other queued
	// must not add either a second time.
	scheduler.Poll(ctx)
	scheduler.Poll(ctx)

	status := scheduler.Status()
	assert.Equal(t, 1, status.Length)
	assert.Len(t, status.InFlight, 1)
	assert.NotEqual(t, status.InFlight[0], status.Items[0].TenantID,
		"a tenant must never be queued and in flight at once")

	close(release)
	require.Eventually(t, func() bool {
		return len(tp.tenants.ScheduleUpdates()) == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestScheduler_ForceSync(t *testing.T) {
	scheduler, tp := createTestScheduler(t, smallCatalog()[:1])
	tp.tenants.Add(testTenant("t1"))

	err := scheduler.ForceSync(context.Background(), "t1")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(tp.tenants.ScheduleUpdates()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Len(t, tp.logs.Records(), 1)
}

func TestScheduler_ForceSync_RejectsDuplicate(t *testing.T) {
	scheduler, tp := createTestScheduler(t, smallCatalog()[:1])
	tp.tenants.Add(testTenant("t1"))

	release := make(chan struct{})
	tp.gateway.FetchPageFunc = func(ctx context.Context, tenant *domain.Tenant, spec domain.TableSpec, token domain.Token, offset int) (*domain.Page, error) {
		<-release
		return &domain.Page{}, nil
	}

	ctx := context.Background()
	require.NoError(t, scheduler.ForceSync(ctx, "t1"))
	require.Eventually(t, func() bool {
		return len(scheduler.Status().InFlight) == 1
	}, 2*time.Second, 10*time.Millisecond)

	err := scheduler.ForceSync(ctx, "t1")
	assert.ErrorIs(t, err, domain.ErrAlreadyQueued)

	close(release)
	require.Eventually(t, func() bool {
		return len(tp.tenants.ScheduleUpdates()) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestScheduler_ForceSync_RejectsDisabledAndUnknown(t *testing.T) {
	scheduler, tp := createTestScheduler(t, smallCatalog())

	disabled := testTenant("t1")
	disabled.SyncEnabled = false
	tp.tenants.Add(disabled)

	err := scheduler.ForceSync(context.Background(), "t1")
	assert.ErrorIs(t, err, domain.ErrTenantDisabled)

	err = scheduler.ForceSync(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestScheduler_SchedulePushedForwardAfterPass(t *testing.T) {
	scheduler, tp := createTestScheduler(t, smallCatalog()[:1])
	tenant := testTenant("t1")
	tenant.SyncInterval = 30 * time.Minute
	tp.tenants.Add(tenant)

	scheduler.Poll(context.Background())
	require.Eventually(t, func() bool {
		return len(tp.tenants.ScheduleUpdates()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	update := tp.tenants.ScheduleUpdates()[0]
	assert.Equal(t, "t1", update.TenantID)
	assert.Equal(t, 30*time.Minute, update.NextDue.Sub(update.LastRun))
	assert.False(t, tenant.Due(time.Now()), "tenant must not be due again immediately")
}

func TestScheduler_TableRetryThenPassContinues(t *testing.T) {
	scheduler, tp := createTestScheduler(t, smallCatalog())
	tp.tenants.Add(testTenant("t1"))

	// The first table fails twice, then recovers; the second table is
	// clean. The pass must retry through the failures and still run the
	// second table.
	var mu sync.Mutex
	partnerCalls := 0
	tp.gateway.FetchPageFunc = func(ctx context.Context, tenant *domain.Tenant, spec domain.TableSpec, token domain.Token, offset int) (*domain.Page, error) {
		if spec.Entity != "Parceiro" {
			return &domain.Page{}, nil
		}
		mu.Lock()
		partnerCalls++
		calls := partnerCalls
		mu.Unlock()
		if calls <= 2 {
			return nil, errors.New("connection reset")
		}
		return &domain.Page{}, nil
	}

	scheduler.Poll(context.Background())
	require.Eventually(t, func() bool {
		return len(tp.tenants.ScheduleUpdates()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// Two failed attempts plus the successful one for Parceiro, one for
	// Produto.
	records := tp.logs.Records()
	require.Len(t, records, 4)

	outcomes := make(map[string][]bool)
	for _, record := range records {
		outcomes[record.Entity] = append(outcomes[record.Entity], record.Success)
	}
	assert.Equal(t, []bool{false, false, true}, outcomes["Parceiro"])
	assert.Equal(t, []bool{true}, outcomes["Produto"])
}

func TestScheduler_TableGivesUpAfterMaxAttempts(t *testing.T) {
	scheduler, tp := createTestScheduler(t, smallCatalog())
	tp.tenants.Add(testTenant("t1"))

	tp.gateway.FetchPageFunc = func(ctx context.Context, tenant *domain.Tenant, spec domain.TableSpec, token domain.Token, offset int) (*domain.Page, error) {
		if spec.Entity == "Parceiro" {
			return nil, errors.New("entity unavailable")
		}
		return &domain.Page{}, nil
	}

	scheduler.Poll(context.Background())
	require.Eventually(t, func() bool {
		return len(tp.tenants.ScheduleUpdates()) == 1
	}, 2*time.Second, 10*time.Millisecond, "schedule must be stamped even when a table gives up")

	failed := 0
	for _, record := range tp.logs.Records() {
		if record.Entity == "Parceiro" {
			require.False(t, record.Success)
			failed++
		}
	}
	assert.Equal(t, 3, failed, "one log record per attempt")
}

func TestScheduler_StartStop(t *testing.T) {
	scheduler, tp := createTestScheduler(t, smallCatalog()[:1])
	tp.tenants.Add(testTenant("t1"))

	ctx := context.Background()
	require.NoError(t, scheduler.Start(ctx))

	// The initial poll picks up the due tenant without waiting a tick.
	require.Eventually(t, func() bool {
		return len(tp.tenants.ScheduleUpdates()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	scheduler.Stop()

	status := scheduler.Status()
	assert.Equal(t, 0, status.Length)
	assert.Empty(t, status.InFlight)
}

func TestScheduler_SequentialWorker(t *testing.T) {
	scheduler, tp := createTestScheduler(t, smallCatalog()[:1])
	for i := 0; i < 5; i++ {
		tp.tenants.Add(testTenant(fmt.Sprintf("t%d", i)))
	}

	// The fetch hook observes concurrency directly: a second tenant
	// entering while one is active would drive active above 1.
	var mu sync.Mutex
	active, maxActive := 0, 0
	tp.gateway.FetchPageFunc = func(ctx context.Context, tenant *domain.Tenant, spec domain.TableSpec, token domain.Token, offset int) (*domain.Page, error) {
		mu.Lock()
		active++
		if active > maxActive {
			maxActive = active
		}
		mu.Unlock()

		time.Sleep(5 * time.Millisecond)

		mu.Lock()
		active--
		mu.Unlock()
		return &domain.Page{}, nil
	}

	scheduler.Poll(context.Background())
	require.Eventually(t, func() bool {
		return len(tp.tenants.ScheduleUpdates()) == 5
	}, 5*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, maxActive, "tenants must be reconciled one at a time")
}
