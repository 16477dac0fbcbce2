package driven

import (
	"context"
	"time"

	"github.com/coreline-labs/erpsync-core/internal/core/domain"
)

// UpsertResult reports what one upsert batch did.
type UpsertResult struct {
	// Inserted counts rows first created by this batch.
	Inserted int
	// Updated counts rows that already existed and were refreshed.
	Updated int
	// Skipped counts rows dropped due to row-level errors.
	Skipped int
}

// MirrorStore persists mirrored entity rows, tenant-scoped.
// Rows carry a current flag and a load timestamp beside the mirrored
// business fields; this store never hard-deletes.
type MirrorStore interface {
	// MarkStale flips current=false on every current row for the tenant and
	// table, stamping the load timestamp. Returns the number of affected
	// rows: the rows considered gone unless re-observed by the upsert phase.
	MarkStale(ctx context.Context, tenantID string, spec domain.TableSpec, loadedAt time.Time) (int, error)

	// UpsertBatch merges one batch of records into the mirror table inside
	// a single transaction, setting current=true and refreshing the load
	// timestamp. batchStart is stamped as the batch's load timestamp; the
	// implementation reports inserted vs updated exactly, not by
	// timestamp inference. A row-level failure skips the row and continues;
	// a batch-level failure rolls the transaction back and propagates.
	UpsertBatch(ctx context.Context, tenantID string, spec domain.TableSpec, batch []domain.Record, batchStart time.Time) (UpsertResult, error)

	// CountCurrent returns the number of rows with current=true for the
	// tenant and table. Used by operational tooling and tests.
	CountCurrent(ctx context.Context, tenantID string, spec domain.TableSpec) (int, error)
}
