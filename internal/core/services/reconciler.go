package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/coreline-labs/erpsync-core/internal/core/domain"
	"github.com/coreline-labs/erpsync-core/internal/core/ports/driven"
)

// Reconciler makes the local mirror of one (tenant, table) pair match a
// freshly fetched dataset: every current row is first marked stale, then
// fetched rows are merged back in batches with current=true. Rows absent
// upstream simply stay stale (soft delete by absence); nothing is ever
// hard-deleted here.
type Reconciler struct {
	store     driven.MirrorStore
	logger    *slog.Logger
	batchSize int
}

// ReconcilerConfig holds dependencies and tuning for Reconciler.
type ReconcilerConfig struct {
	Store  driven.MirrorStore
	Logger *slog.Logger

	// BatchSize bounds how many rows go into one transaction (default: 100).
	// Committing per batch keeps transactions small on the shared pool and
	// keeps earlier batches durable if a later one fails.
	BatchSize int
}

// NewReconciler creates a new reconciler.
func NewReconciler(cfg ReconcilerConfig) *Reconciler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Reconciler{
		store:     cfg.Store,
		logger:    logger,
		batchSize: batchSize,
	}
}

// Reconcile applies the fetched dataset to the tenant's mirror table.
//
// On a batch failure the counts accumulated from committed batches are
// returned alongside the error; the failed batch itself was rolled back by
// the store. After a fully successful call, a row has current=true iff its
// natural key was present in records.
func (r *Reconciler) Reconcile(ctx context.Context, tenantID string, spec domain.TableSpec, records []domain.Record) (domain.SyncCounts, error) {
	counts := domain.SyncCounts{Total: len(records)}
	loadedAt := time.Now()

	stale, err := r.store.MarkStale(ctx, tenantID, spec, loadedAt)
	if err != nil {
		return counts, fmt.Errorf("mark stale %s/%s: %w", tenantID, spec.LocalTable, err)
	}
	counts.Stale = stale

	for start := 0; start < len(records); start += r.batchSize {
		end := start + r.batchSize
		if end > len(records) {
			end = len(records)
		}
		batch := make([]domain.Record, 0, end-start)
		for _, record := range records[start:end] {
			batch = append(batch, spec.MapRecord(record))
		}

		result, err := r.store.UpsertBatch(ctx, tenantID, spec, batch, time.Now())
		if err != nil {
			return counts, fmt.Errorf("upsert %s/%s batch at %d: %w", tenantID, spec.LocalTable, start, err)
		}
		counts.Inserted += result.Inserted
		counts.Updated += result.Updated
		counts.Skipped += result.Skipped

		if result.Skipped > 0 {
			r.logger.Warn("rows skipped during upsert",
				"tenant_id", tenantID,
				"table", spec.LocalTable,
				"skipped", result.Skipped,
			)
		}
	}

	r.logger.Debug("reconcile complete",
		"tenant_id", tenantID,
		"table", spec.LocalTable,
		"total", counts.Total,
		"inserted", counts.Inserted,
		"updated", counts.Updated,
		"stale", counts.Stale,
	)
	return counts, nil
}
