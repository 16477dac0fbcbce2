package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/coreline-labs/erpsync-core/internal/core/domain"
	"github.com/coreline-labs/erpsync-core/internal/core/ports/driven/mocks"
)

func createTestFetcher(t *testing.T, gateway *mocks.MockERPGateway) (*Fetcher, *mocks.MockTenantStore) {
	t.Helper()

	tenants := mocks.NewMockTenantStore()
	tokens := NewTokenManager(TokenManagerConfig{
		Tenants:   tenants,
		Cache:     mocks.NewMockTokenCache(),
		Lock:      mocks.NewMockDistributedLock(),
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
	return fetcher, tenants
}

// makePages builds numPages pages of perPage sequential records each.
func makePages(numPages, perPage int) map[int]*domain.Page {
	pages := make(map[int]*domain.Page)
	n := 0
	for p := 0; p < numPages; p++ {
		page := &domain.Page{HasMore: p < numPages-1}
		for i := 0; i < perPage; i++ {
			page.Records = append(page.Records, domain.Record{"codigo": fmt.Sprintf("%d", n)})
			n++
		}
		pages[p*perPage] = page
	}
	return pages
}

func validToken() domain.Token {
	now := time.Now()
	return domain.Token{Value: "initial", IssuedAt: now, ExpiresAt: now.Add(20 * time.Minute)}
}

func TestFetcher_FetchAll_MultiPage(t *testing.T) {
	gateway := mocks.NewMockERPGateway()
	gateway.Pages = makePages(3, 4)
	fetcher, tenants := createTestFetcher(t, gateway)
	tenant := testTenant("t1")
	tenants.Add(tenant)

	spec := domain.TableSpec{Entity: "Parceiro", LocalTable: "mirror_partners", KeyField: "codigo"}
	records, err := fetcher.FetchAll(context.Background(), tenant, spec, validToken())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 12 {
		t.Fatalf("expected 12 records, got %d", len(records))
	}
	for i, record := range records {
		if record.Key("codigo") != fmt.Sprintf("%d", i) {
			t.Errorf("record %d out of order: %v", i, record)
		}
	}
}

func TestFetcher_FetchAll_EmptyDataset(t *testing.T) {
	gateway := mocks.NewMockERPGateway()
	fetcher, tenants := createTestFetcher(t, gateway)
	tenant := testTenant("t1")
	tenants.Add(tenant)

	spec := domain.TableSpec{Entity: "Parceiro", LocalTable: "mirror_partners", KeyField: "codigo"}
	records, err := fetcher.FetchAll(context.Background(), tenant, spec, validToken())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected no records, got %d", len(records))
	}
	if gateway.FetchCalls() != 1 {
		t.Errorf("expected a single page request, got %d", gateway.FetchCalls())
	}
}

func TestFetcher_FetchAll_RenewsTokenMidStream(t *testing.T) {
	gateway := mocks.NewMockERPGateway()
	pages := makePages(5, 2)
	fetcher, tenants := createTestFetcher(t, gateway)
	tenant := testTenant("t1")
	tenants.Add(tenant)

	// Page 2 (offset 2) rejects the initial token once; the renewed token
	// issued by the mock gateway works everywhere.
	gateway.FetchPageFunc = func(ctx context.Context, tenant *domain.Tenant, spec domain.TableSpec, token domain.Token, offset int) (*domain.Page, error) {
		if offset == 2 && token.Value == "initial" {
			return nil, fmt.Errorf("load page: %w", domain.ErrUnauthorized)
		}
		page, ok := pages[offset]
		if !ok {
			return &domain.Page{}, nil
		}
		return page, nil
	}

	spec := domain.TableSpec{Entity: "Parceiro", LocalTable: "mirror_partners", KeyField: "codigo"}
	records, err := fetcher.FetchAll(context.Background(), tenant, spec, validToken())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// All 5 pages' worth of rows, no duplicates, no gaps.
	if len(records) != 10 {
		t.Fatalf("expected 10 records, got %d", len(records))
	}
	seen := map[string]bool{}
	for _, record := range records {
		key := record.Key("codigo")
		if seen[key] {
			t.Errorf("duplicate record %s", key)
		}
		seen[key] = true
	}

	// Exactly one re-authentication call.
	if gateway.AuthCalls() != 1 {
		t.Errorf("expected exactly 1 re-auth call, got %d", gateway.AuthCalls())
	}
}

func TestFetcher_FetchAll_GivesUpOnRepeatedRejection(t *testing.T) {
	gateway := mocks.NewMockERPGateway()
	gateway.FetchPageFunc = func(ctx context.Context, tenant *domain.Tenant, spec domain.TableSpec, token domain.Token, offset int) (*domain.Page, error) {
		return nil, fmt.Errorf("load page: %w", domain.ErrUnauthorized)
	}
	fetcher, tenants := createTestFetcher(t, gateway)
	tenant := testTenant("t1")
	tenants.Add(tenant)

	spec := domain.TableSpec{Entity: "Parceiro", LocalTable: "mirror_partners", KeyField: "codigo"}
	_, err := fetcher.FetchAll(context.Background(), tenant, spec, validToken())
	if err == nil {
		t.Fatal("expected error when every token is rejected")
	}
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("expected wrapped ErrUnauthorized, got %v", err)
	}
}

func TestFetcher_FetchAll_FatalErrorPropagates(t *testing.T) {
	gateway := mocks.NewMockERPGateway()
	boom := errors.New("connection reset")
	gateway.FetchPageFunc = func(ctx context.Context, tenant *domain.Tenant, spec domain.TableSpec, token domain.Token, offset int) (*domain.Page, error) {
		if offset == 0 {
			return &domain.Page{Records: []domain.Record{{"codigo": "1"}}, HasMore: true}, nil
		}
		return nil, boom
	}
	fetcher, tenants := createTestFetcher(t, gateway)
	tenant := testTenant("t1")
	tenants.Add(tenant)

	spec := domain.TableSpec{Entity: "Parceiro", LocalTable: "mirror_partners", KeyField: "codigo"}
	_, err := fetcher.FetchAll(context.Background(), tenant, spec, validToken())
	if !errors.Is(err, boom) {
		t.Fatalf("expected fatal fetch error, got %v", err)
	}
	if gateway.AuthCalls() != 0 {
		t.Errorf("expected no re-auth on fatal error, got %d", gateway.AuthCalls())
	}
}

func TestFetchState_Advance(t *testing.T) {
	state := fetchState{}

	done := state.advance(&domain.Page{Records: []domain.Record{{"codigo": "1"}, {"codigo": "2"}}, HasMore: true})
	if done {
		t.Error("expected more pages")
	}
	if state.offset != 2 {
		t.Errorf("offset = %d, want 2", state.offset)
	}

	done = state.advance(&domain.Page{Records: []domain.Record{{"codigo": "3"}}, HasMore: false})
	if !done {
		t.Error("expected stream exhausted on has_more=false")
	}
	if len(state.records) != 3 {
		t.Errorf("accumulated %d records, want 3", len(state.records))
	}

	// An empty page always terminates, whatever the flag says.
	state = fetchState{}
	if done := state.advance(&domain.Page{HasMore: true}); !done {
		t.Error("expected empty page to terminate")
	}
}
