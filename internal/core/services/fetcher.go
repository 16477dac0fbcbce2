package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/coreline-labs/erpsync-core/internal/core/domain"
	"github.com/coreline-labs/erpsync-core/internal/core/ports/driven"
)

// fetchState is the resumable cursor of one FetchAll run: the page offset,
// the records accumulated so far and the token in use. Credential renewal
// replaces the token without touching offset or records, so the same page
// is retried and nothing already fetched is lost.
type fetchState struct {
	offset  int
	records []domain.Record
	token   domain.Token
}

// advance folds one fetched page into the state. Returns true when the
// stream is exhausted: an empty page, or a page without a has-more flag.
func (s *fetchState) advance(page *domain.Page) bool {
	if len(page.Records) == 0 {
		return true
	}
	s.records = append(s.records, page.Records...)
	s.offset += len(page.Records)
	return !page.HasMore
}

// renew swaps in a fresh token, keeping the cursor where it is.
func (s *fetchState) renew(token domain.Token) {
	s.token = token
}

// Fetcher retrieves the full dataset of one entity type for one tenant,
// page by page, recovering from mid-stream credential expiry. Used
// exclusively inside forced-refresh reconciliation flows.
type Fetcher struct {
	gateway driven.ERPGateway
	tokens  *TokenManager
	logger  *slog.Logger
	limiter *rate.Limiter

	renewalDelay time.Duration
	maxRenewals  int
}

// FetcherConfig holds dependencies and tuning for Fetcher.
type FetcherConfig struct {
	Gateway driven.ERPGateway
	Tokens  *TokenManager
	Logger  *slog.Logger

	PageRate     rate.Limit    // pages per second against the ERP API (default: 2)
	RenewalDelay time.Duration // pause after a credential renewal (default: 1s)
	MaxRenewals  int           // consecutive renewals on one page before giving up (default: 3)
}

// NewFetcher creates a new paginated fetcher.
func NewFetcher(cfg FetcherConfig) *Fetcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	pageRate := cfg.PageRate
	if pageRate == 0 {
		pageRate = 2
	}
	renewalDelay := cfg.RenewalDelay
	if renewalDelay == 0 {
		renewalDelay = time.Second
	}
	maxRenewals := cfg.MaxRenewals
	if maxRenewals == 0 {
		maxRenewals = 3
	}

	return &Fetcher{
		gateway:      cfg.Gateway,
		tokens:       cfg.Tokens,
		logger:       logger,
		limiter:      rate.NewLimiter(pageRate, 1),
		renewalDelay: renewalDelay,
		maxRenewals:  maxRenewals,
	}
}

// FetchAll retrieves every page of the entity for the tenant.
//
// A 401/403 mid-stream is not fatal: the token is renewed with forced
// refresh and the same page is retried, keeping rows from prior pages.
// Any other error propagates and the caller discards the partial fetch.
func (f *Fetcher) FetchAll(ctx context.Context, tenant *domain.Tenant, spec domain.TableSpec, token domain.Token) ([]domain.Record, error) {
	state := fetchState{token: token}
	renewals := 0

	for {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		page, err := f.gateway.FetchPage(ctx, tenant, spec, state.token, state.offset)
		if err != nil {
			if !errors.Is(err, domain.ErrUnauthorized) {
				return nil, fmt.Errorf("fetch %s at offset %d: %w", spec.Entity, state.offset, err)
			}

			renewals++
			if renewals > f.maxRenewals {
				return nil, fmt.Errorf("fetch %s: token rejected after %d renewals: %w", spec.Entity, f.maxRenewals, err)
			}
			f.logger.Info("token expired mid-fetch, renewing",
				"tenant_id", tenant.ID,
				"entity", spec.Entity,
				"offset", state.offset,
			)
			fresh, renewErr := f.tokens.Acquire(ctx, tenant.ID, true)
			if renewErr != nil {
				return nil, fmt.Errorf("renew token for %s: %w", tenant.ID, renewErr)
			}
			state.renew(fresh)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(f.renewalDelay):
			}
			continue
		}

		renewals = 0
		if state.advance(page) {
			return state.records, nil
		}
	}
}
