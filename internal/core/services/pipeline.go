package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/coreline-labs/erpsync-core/internal/core/domain"
	"github.com/coreline-labs/erpsync-core/internal/core/ports/driven"
	"github.com/coreline-labs/erpsync-core/internal/metrics"
)

// Pipeline runs one (tenant, table) sync end to end:
// forced-refresh token -> paginated fetch -> reconcile -> sync log.
//
// The token is always freshly issued, never cached, so the credentials in
// use are guaranteed to match the tenant being synced. Every attempt,
// success or failure, is appended to the sync log before returning; the
// caller decides whether a failed attempt is retried.
type Pipeline struct {
	tokens     *TokenManager
	fetcher    *Fetcher
	reconciler *Reconciler
	logs       driven.SyncLogStore
	metrics    *metrics.SyncMetrics
	logger     *slog.Logger
}

// PipelineConfig holds dependencies for Pipeline.
type PipelineConfig struct {
	Tokens     *TokenManager
	Fetcher    *Fetcher
	Reconciler *Reconciler
	Logs       driven.SyncLogStore
	Metrics    *metrics.SyncMetrics // optional
	Logger     *slog.Logger
}

// NewPipeline creates a new table sync pipeline.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		tokens:     cfg.Tokens,
		fetcher:    cfg.Fetcher,
		reconciler: cfg.Reconciler,
		logs:       cfg.Logs,
		metrics:    cfg.Metrics,
		logger:     logger,
	}
}

// SyncTable reconciles one table for one tenant and reports the outcome.
// It never returns an error: failures are carried inside the result.
func (p *Pipeline) SyncTable(ctx context.Context, tenant *domain.Tenant, spec domain.TableSpec) domain.TableSyncResult {
	startedAt := time.Now()
	p.logger.Info("table sync starting",
		"tenant_id", tenant.ID,
		"entity", spec.Entity,
	)

	token, err := p.tokens.Acquire(ctx, tenant.ID, true)
	if err != nil {
		return p.finish(ctx, tenant, spec, startedAt, domain.SyncCounts{}, err)
	}

	records, err := p.fetcher.FetchAll(ctx, tenant, spec, token)
	if err != nil {
		return p.finish(ctx, tenant, spec, startedAt, domain.SyncCounts{}, err)
	}

	counts, err := p.reconciler.Reconcile(ctx, tenant.ID, spec, records)
	return p.finish(ctx, tenant, spec, startedAt, counts, err)
}

// finish builds the result, persists it to the sync log and updates
// metrics. Partial counts from committed batches are kept on failure.
func (p *Pipeline) finish(ctx context.Context, tenant *domain.Tenant, spec domain.TableSpec, startedAt time.Time, counts domain.SyncCounts, err error) domain.TableSyncResult {
	finishedAt := time.Now()
	result := domain.TableSyncResult{
		TenantID:   tenant.ID,
		TenantName: tenant.Name,
		Entity:     spec.Entity,
		Success:    err == nil,
		Counts:     counts,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		Duration:   finishedAt.Sub(startedAt).Seconds(),
	}
	if err != nil {
		result.Error = err.Error()
		p.logger.Error("table sync failed",
			"tenant_id", tenant.ID,
			"entity", spec.Entity,
			"duration_seconds", result.Duration,
			"error", err,
		)
	} else {
		p.logger.Info("table sync completed",
			"tenant_id", tenant.ID,
			"entity", spec.Entity,
			"duration_seconds", result.Duration,
			"total", counts.Total,
			"inserted", counts.Inserted,
			"updated", counts.Updated,
			"stale", counts.Stale,
		)
	}

	if logErr := p.logs.Append(ctx, &result); logErr != nil {
		p.logger.Error("failed to append sync log record",
			"tenant_id", tenant.ID,
			"entity", spec.Entity,
			"error", logErr,
		)
	}
	if p.metrics != nil {
		p.metrics.ObserveTableSync(spec.Entity, result.Success, result.Duration,
			counts.Inserted, counts.Updated, counts.Stale, counts.Skipped)
	}
	return result
}
