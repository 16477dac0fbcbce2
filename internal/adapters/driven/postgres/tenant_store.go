package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/coreline-labs/erpsync-core/internal/core/domain"
	"github.com/coreline-labs/erpsync-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.TenantStore = (*TenantStore)(nil)

// TenantStore implements driven.TenantStore over the contracts table.
// Credential bundles are encrypted at rest and decrypted on read.
type TenantStore struct {
	db        *DB
	encryptor *SecretEncryptor
}

// NewTenantStore creates a new TenantStore.
func NewTenantStore(db *DB, encryptor *SecretEncryptor) *TenantStore {
	return &TenantStore{db: db, encryptor: encryptor}
}

const tenantColumns = `id, name, active, environment, auth_scheme, credentials,
       sync_enabled, sync_interval_minutes, last_run_at, next_due_at,
       created_at, updated_at`

// Get retrieves a tenant by ID, including its decrypted credentials.
func (s *TenantStore) Get(ctx context.Context, id string) (*domain.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM contracts WHERE id = $1`

	tenant, err := s.scanTenant(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get tenant %s: %w", id, err)
	}
	return tenant, nil
}

// ListDue retrieves active, sync-enabled tenants due at the given instant.
func (s *TenantStore) ListDue(ctx context.Context, now time.Time) ([]*domain.Tenant, error) {
	query := `
		SELECT ` + tenantColumns + `
		FROM contracts
		WHERE active = true
		  AND sync_enabled = true
		  AND (next_due_at IS NULL OR next_due_at <= $1)
		ORDER BY next_due_at NULLS FIRST, id
	`

	rows, err := s.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("list due tenants: %w", err)
	}
	defer rows.Close()

	var tenants []*domain.Tenant
	for rows.Next() {
		tenant, err := s.scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("list due tenants: %w", err)
		}
		tenants = append(tenants, tenant)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list due tenants: %w", err)
	}
	return tenants, nil
}

// UpdateSchedule stamps the tenant's last-run and next-due timestamps.
func (s *TenantStore) UpdateSchedule(ctx context.Context, id string, lastRun, nextDue time.Time) error {
	query := `
		UPDATE contracts
		SET last_run_at = $1, next_due_at = $2, updated_at = now()
		WHERE id = $3
	`
	result, err := s.db.ExecContext(ctx, query, lastRun, nextDue, id)
	if err != nil {
		return fmt.Errorf("update schedule for tenant %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Save creates or updates a tenant, encrypting its credential bundle.
// Schedule fields are not written here; the scheduler owns those.
func (s *TenantStore) Save(ctx context.Context, tenant *domain.Tenant) error {
	var credentials []byte
	if tenant.Credentials != nil {
		blob, err := s.encryptor.Encrypt(tenant.Credentials)
		if err != nil {
			return fmt.Errorf("encrypt credentials for tenant %s: %w", tenant.ID, err)
		}
		credentials = blob
	}

	query := `
		INSERT INTO contracts (id, name, active, environment, auth_scheme, credentials,
		                       sync_enabled, sync_interval_minutes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			active = EXCLUDED.active,
			environment = EXCLUDED.environment,
			auth_scheme = EXCLUDED.auth_scheme,
			credentials = EXCLUDED.credentials,
			sync_enabled = EXCLUDED.sync_enabled,
			sync_interval_minutes = EXCLUDED.sync_interval_minutes,
			updated_at = now()
	`
	_, err := s.db.ExecContext(ctx, query,
		tenant.ID,
		tenant.Name,
		tenant.Active,
		string(tenant.Environment),
		string(tenant.AuthScheme),
		credentials,
		tenant.SyncEnabled,
		int(tenant.SyncInterval/time.Minute),
	)
	if err != nil {
		return fmt.Errorf("save tenant %s: %w", tenant.ID, err)
	}
	return nil
}

// Ping checks if the database is reachable.
func (s *TenantStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *TenantStore) scanTenant(row rowScanner) (*domain.Tenant, error) {
	var tenant domain.Tenant
	var credentials []byte
	var intervalMinutes int
	var lastRun, nextDue sql.NullTime

	err := row.Scan(
		&tenant.ID,
		&tenant.Name,
		&tenant.Active,
		&tenant.Environment,
		&tenant.AuthScheme,
		&credentials,
		&tenant.SyncEnabled,
		&intervalMinutes,
		&lastRun,
		&nextDue,
		&tenant.CreatedAt,
		&tenant.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	tenant.SyncInterval = time.Duration(intervalMinutes) * time.Minute
	tenant.LastRunAt = TimePtr(lastRun)
	tenant.NextDueAt = TimePtr(nextDue)

	if len(credentials) > 0 {
		var bundle domain.CredentialBundle
		if err := s.encryptor.Decrypt(credentials, &bundle); err != nil {
			return nil, fmt.Errorf("decrypt credentials for tenant %s: %w", tenant.ID, err)
		}
		tenant.Credentials = &bundle
	}
	return &tenant, nil
}
