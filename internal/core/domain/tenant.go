package domain

import (
	"fmt"
	"time"
)

// AuthScheme selects how a tenant authenticates against the ERP API.
type AuthScheme string

const (
	// AuthSchemeLegacy is the 4-field login (app key, app secret, username, password).
	AuthSchemeLegacy AuthScheme = "legacy"
	// AuthSchemeOAuth2 is the 3-field OAuth2 client-credentials grant.
	AuthSchemeOAuth2 AuthScheme = "oauth2"
)

// Environment selects which ERP endpoint family a tenant talks to.
type Environment string

const (
	EnvironmentSandbox    Environment = "sandbox"
	EnvironmentProduction Environment = "production"
)

// CredentialBundle holds the secrets a tenant uses against the ERP API.
// Only the fields for the tenant's AuthScheme are populated.
// Stored encrypted at rest; see the postgres adapter.
type CredentialBundle struct {
	// Legacy scheme
	AppKey    string `json:"app_key,omitempty"`
	AppSecret string `json:"app_secret,omitempty"`
	Username  string `json:"username,omitempty"`
	Password  string `json:"password,omitempty"`

	// OAuth2 client-credentials scheme
	ClientID     string `json:"client_id,omitempty"`
	ClientSecret string `json:"client_secret,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// Validate checks that every field the given scheme requires is present.
// A missing field is a configuration error, never retried.
func (c *CredentialBundle) Validate(scheme AuthScheme) error {
	if c == nil {
		return fmt.Errorf("%w: credential bundle is empty", ErrMissingCredentials)
	}

	var missing []string
	switch scheme {
	case AuthSchemeLegacy:
		for _, f := range []struct{ name, value string }{
			{"app_key", c.AppKey},
			{"app_secret", c.AppSecret},
			{"username", c.Username},
			{"password", c.Password},
		} {
			if f.value == "" {
				missing = append(missing, f.name)
			}
		}
	case AuthSchemeOAuth2:
		for _, f := range []struct{ name, value string }{
			{"client_id", c.ClientID},
			{"client_secret", c.ClientSecret},
			{"scope", c.Scope},
		} {
			if f.value == "" {
				missing = append(missing, f.name)
			}
		}
	default:
		return fmt.Errorf("%w: unknown auth scheme %q", ErrMissingCredentials, scheme)
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %v", ErrMissingCredentials, missing)
	}
	return nil
}

// Tenant is one contract whose ERP data is mirrored locally.
// Owned by the tenant store; the engine only reads it, except for the
// schedule fields the scheduler writes back after a pass.
type Tenant struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Active      bool              `json:"active"`
	Environment Environment       `json:"environment"`
	AuthScheme  AuthScheme        `json:"auth_scheme"`
	Credentials *CredentialBundle `json:"-"`

	SyncEnabled  bool          `json:"sync_enabled"`
	SyncInterval time.Duration `json:"sync_interval"`
	LastRunAt    *time.Time    `json:"last_run_at,omitempty"`
	NextDueAt    *time.Time    `json:"next_due_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Due reports whether the tenant should be enqueued for a reconciliation
// pass. A nil NextDueAt means the tenant has never run and is due.
func (t *Tenant) Due(now time.Time) bool {
	if !t.Active || !t.SyncEnabled {
		return false
	}
	return t.NextDueAt == nil || !t.NextDueAt.After(now)
}

// NextDue computes the next due instant after a pass that finished at the
// given time.
func (t *Tenant) NextDue(finishedAt time.Time) time.Time {
	interval := t.SyncInterval
	if interval <= 0 {
		interval = time.Hour
	}
	return finishedAt.Add(interval)
}
