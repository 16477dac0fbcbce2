package domain

import (
	"crypto/rand"
	"encoding/base64"
	"time"
)

// GenerateID creates a unique random ID.
func GenerateID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

// SyncCounts holds the row counts produced by one reconciliation.
type SyncCounts struct {
	// Total is the number of records fetched from the ERP API.
	Total int `json:"total"`
	// Inserted is the number of rows first observed in this pass.
	Inserted int `json:"inserted"`
	// Updated is the number of rows that already existed and were refreshed.
	Updated int `json:"updated"`
	// Stale is the number of rows flipped current=false at the start of the
	// pass; rows not re-observed stay stale (soft delete by absence).
	Stale int `json:"stale"`
	// Skipped is the number of rows dropped due to row-level errors.
	Skipped int `json:"skipped"`
}

// TableSyncResult is the outcome of one (tenant, table) sync attempt.
// Every attempt, success or failure, is persisted as a sync log record.
type TableSyncResult struct {
	TenantID   string     `json:"tenant_id"`
	TenantName string     `json:"tenant_name"`
	Entity     string     `json:"entity"`
	Success    bool       `json:"success"`
	Counts     SyncCounts `json:"counts"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
	// Duration is the elapsed time in seconds.
	Duration float64 `json:"duration_seconds"`
	Error    string  `json:"error,omitempty"`
}

// QueueItem is one tenant waiting for a reconciliation pass.
// Lives only in process memory.
type QueueItem struct {
	TenantID   string    `json:"tenant_id"`
	TenantName string    `json:"tenant_name"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// QueueStatus is a point-in-time snapshot of the scheduler queue, consumed
// by operational tooling.
type QueueStatus struct {
	Length   int         `json:"length"`
	Draining bool        `json:"draining"`
	Items    []QueueItem `json:"items"`
	InFlight []string    `json:"in_flight"`
}
