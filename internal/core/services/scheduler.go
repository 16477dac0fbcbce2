package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coreline-labs/erpsync-core/internal/core/domain"
	"github.com/coreline-labs/erpsync-core/internal/core/ports/driven"
	"github.com/coreline-labs/erpsync-core/internal/core/ports/driving"
	"github.com/coreline-labs/erpsync-core/internal/metrics"
)

// Verify interface compliance
var _ driving.SyncScheduler = (*Scheduler)(nil)

// Scheduler polls tenant schedules, queues due tenants and drives a single
// sequential worker that reconciles them one at a time.
//
// The FIFO queue and the in-flight set live behind one mutex; a tenant id
// never appears twice in the queue and never sits in the queue and the
// in-flight set at the same time. Exactly one tenant is reconciled
// system-wide at any moment: no two tenants' table syncs interleave.
type Scheduler struct {
	tenants  driven.TenantStore
	pipeline *Pipeline
	catalog  []domain.TableSpec
	metrics  *metrics.SyncMetrics
	logger   *slog.Logger

	pollInterval time.Duration
	maxAttempts  int
	retryStep    time.Duration

	// Queue state. All mutation goes through the mutex.
	mu       sync.Mutex
	queue    []domain.QueueItem
	queued   map[string]bool
	inFlight map[string]bool
	draining bool

	// Lifecycle
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	drainWG sync.WaitGroup
}

// SchedulerConfig holds dependencies and tuning for the scheduler.
type SchedulerConfig struct {
	Tenants  driven.TenantStore
	Pipeline *Pipeline
	Catalog  []domain.TableSpec    // defaults to domain.Catalog()
	Metrics  *metrics.SyncMetrics  // optional
	Logger   *slog.Logger

	PollInterval time.Duration // how often to check for due tenants (default: 60s)
	MaxAttempts  int           // attempts per table before giving up (default: 3)
	RetryStep    time.Duration // linear backoff step between attempts (default: 2s)
}

// NewScheduler creates a new sync scheduler.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	catalog := cfg.Catalog
	if catalog == nil {
		catalog = domain.Catalog()
	}
	pollInterval := cfg.PollInterval
	if pollInterval == 0 {
		pollInterval = 60 * time.Second
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	retryStep := cfg.RetryStep
	if retryStep == 0 {
		retryStep = 2 * time.Second
	}

	return &Scheduler{
		tenants:      cfg.Tenants,
		pipeline:     cfg.Pipeline,
		catalog:      catalog,
		metrics:      cfg.Metrics,
		logger:       logger,
		pollInterval: pollInterval,
		maxAttempts:  maxAttempts,
		retryStep:    retryStep,
		queued:       make(map[string]bool),
		inFlight:     make(map[string]bool),
	}
}

// Start begins the polling loop. It runs until Stop is called or the
// context is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	s.logger.Info("scheduler starting", "poll_interval", s.pollInterval)
	go s.run(ctx)
	return nil
}

// Stop gracefully stops the scheduler. The tenant currently in flight
// runs to completion; no new tenant is started.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	close(s.stopCh)
	s.mu.Unlock()

	<-s.doneCh
	s.drainWG.Wait()

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.logger.Info("scheduler stopped")
}

// run is the polling loop.
func (s *Scheduler) run(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	// Poll immediately on start.
	s.Poll(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler context cancelled")
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.Poll(ctx)
		}
	}
}

// Poll queries for due tenants and enqueues them. Enqueueing is
// idempotent: tenants already queued or in flight are skipped, so calling
// Poll twice before the worker drains adds each tenant once.
func (s *Scheduler) Poll(ctx context.Context) {
	due, err := s.tenants.ListDue(ctx, time.Now())
	if err != nil {
		s.logger.Error("failed to list due tenants", "error", err)
		return
	}

	added := 0
	for _, tenant := range due {
		if err := s.enqueue(tenant); err != nil {
			continue
		}
		added++
		s.logger.Info("tenant enqueued", "tenant_id", tenant.ID, "tenant_name", tenant.Name)
	}

	if added > 0 {
		s.startDraining(ctx)
	}
}

// ForceSync submits a tenant out-of-band. Rejected when the tenant is
// already queued or in flight, or cannot be synced at all.
func (s *Scheduler) ForceSync(ctx context.Context, tenantID string) error {
	tenant, err := s.tenants.Get(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("load tenant %s: %w", tenantID, err)
	}
	if !tenant.Active || !tenant.SyncEnabled {
		return fmt.Errorf("%w: %s", domain.ErrTenantDisabled, tenantID)
	}
	if err := s.enqueue(tenant); err != nil {
		return err
	}
	s.logger.Info("tenant force-enqueued", "tenant_id", tenant.ID)
	s.startDraining(ctx)
	return nil
}

// Status returns a snapshot of the queue and in-flight set.
func (s *Scheduler) Status() domain.QueueStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := domain.QueueStatus{
		Length:   len(s.queue),
		Draining: s.draining,
		Items:    make([]domain.QueueItem, len(s.queue)),
		InFlight: make([]string, 0, len(s.inFlight)),
	}
	copy(status.Items, s.queue)
	for id := range s.inFlight {
		status.InFlight = append(status.InFlight, id)
	}
	return status
}

// enqueue appends the tenant unless it is already queued or in flight.
func (s *Scheduler) enqueue(tenant *domain.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.queued[tenant.ID] || s.inFlight[tenant.ID] {
		return fmt.Errorf("%w: %s", domain.ErrAlreadyQueued, tenant.ID)
	}
	s.queue = append(s.queue, domain.QueueItem{
		TenantID:   tenant.ID,
		TenantName: tenant.Name,
		EnqueuedAt: time.Now(),
	})
	s.queued[tenant.ID] = true
	if s.metrics != nil {
		s.metrics.QueueLength.Set(float64(len(s.queue)))
	}
	return nil
}

// startDraining launches the worker goroutine unless one is running.
func (s *Scheduler) startDraining(ctx context.Context) {
	s.mu.Lock()
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true
	s.mu.Unlock()

	s.drainWG.Add(1)
	go func() {
		defer s.drainWG.Done()
		s.drain(ctx)
	}()
}

// drain is the sequential worker: it pops tenants FIFO and reconciles the
// full catalog for each, one tenant at a time, until the queue is empty.
func (s *Scheduler) drain(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			s.setIdle()
			return
		default:
		}
		if s.stopping() {
			s.setIdle()
			return
		}

		item, ok := s.pop()
		if !ok {
			return
		}
		s.syncTenant(ctx, item)
		s.release(item.TenantID)
	}
}

// pop atomically moves the head of the queue into the in-flight set.
// When the queue is empty the worker goes idle.
func (s *Scheduler) pop() (domain.QueueItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) == 0 {
		s.draining = false
		return domain.QueueItem{}, false
	}
	item := s.queue[0]
	s.queue = s.queue[1:]
	delete(s.queued, item.TenantID)
	s.inFlight[item.TenantID] = true
	if s.metrics != nil {
		s.metrics.QueueLength.Set(float64(len(s.queue)))
	}
	return item, true
}

// release removes a tenant from the in-flight set.
func (s *Scheduler) release(tenantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, tenantID)
}

// setIdle marks the worker as not draining (shutdown path).
func (s *Scheduler) setIdle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draining = false
}

// stopping reports whether Stop has been called.
func (s *Scheduler) stopping() bool {
	s.mu.Lock()
	stopCh := s.stopCh
	s.mu.Unlock()
	if stopCh == nil {
		return false
	}
	select {
	case <-stopCh:
		return true
	default:
		return false
	}
}

// syncTenant runs the full table catalog for one tenant. A table that
// exhausts its attempts is logged as failed and the pass moves on; the
// tenant's schedule is stamped afterwards regardless of per-table
// outcomes.
func (s *Scheduler) syncTenant(ctx context.Context, item domain.QueueItem) {
	logger := s.logger.With("tenant_id", item.TenantID, "tenant_name", item.TenantName)
	logger.Info("tenant pass starting", "tables", len(s.catalog))

	tenant, err := s.tenants.Get(ctx, item.TenantID)
	if err != nil {
		logger.Error("failed to load tenant, skipping pass", "error", err)
		return
	}

	startedAt := time.Now()
	failedTables := 0
	for _, spec := range s.catalog {
		if !s.syncTableWithRetry(ctx, tenant, spec, logger) {
			failedTables++
		}
	}

	finishedAt := time.Now()
	if err := s.tenants.UpdateSchedule(ctx, tenant.ID, finishedAt, tenant.NextDue(finishedAt)); err != nil {
		logger.Error("failed to update tenant schedule", "error", err)
	}

	logger.Info("tenant pass finished",
		"duration_seconds", finishedAt.Sub(startedAt).Seconds(),
		"tables", len(s.catalog),
		"failed_tables", failedTables,
	)
}

// syncTableWithRetry attempts one table up to maxAttempts times with
// linear backoff. Every attempt lands in the sync log via the pipeline.
func (s *Scheduler) syncTableWithRetry(ctx context.Context, tenant *domain.Tenant, spec domain.TableSpec, logger *slog.Logger) bool {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		result := s.pipeline.SyncTable(ctx, tenant, spec)
		if result.Success {
			return true
		}

		logger.Warn("table sync attempt failed",
			"entity", spec.Entity,
			"attempt", attempt,
			"max_attempts", s.maxAttempts,
			"error", result.Error,
		)
		if attempt < s.maxAttempts {
			select {
			case <-ctx.Done():
				return false
			case <-time.After(time.Duration(attempt) * s.retryStep):
			}
		}
	}

	logger.Error("table sync gave up", "entity", spec.Entity, "attempts", s.maxAttempts)
	return false
}
