package erp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/coreline-labs/erpsync-core/internal/core/domain"
	"github.com/coreline-labs/erpsync-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ERPGateway = (*Client)(nil)

const (
	loginPath = "/api/v1/auth/login"
	tokenPath = "/api/v1/auth/token"
	loadPath  = "/api/v1/entities/load"

	// defaultTokenLifetime is assumed when the auth response carries no
	// expiry at all.
	defaultTokenLifetime = 20 * time.Minute

	defaultPageSize = 200
)

// Client implements driven.ERPGateway over the ERP's HTTP API.
// The base URL is selected per request by the tenant's environment flag.
type Client struct {
	httpClient    *http.Client
	productionURL string
	sandboxURL    string
	pageSize      int
	logger        *slog.Logger
}

// ClientConfig holds configuration for the ERP client.
type ClientConfig struct {
	ProductionURL string
	SandboxURL    string
	Timeout       time.Duration // per-request timeout (default: 30s)
	PageSize      int           // rows requested per page (default: 200)
	Logger        *slog.Logger
}

// NewClient creates a new ERP API client.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient:    &http.Client{Timeout: timeout},
		productionURL: strings.TrimSuffix(cfg.ProductionURL, "/"),
		sandboxURL:    strings.TrimSuffix(cfg.SandboxURL, "/"),
		pageSize:      pageSize,
		logger:        logger,
	}
}

// baseURL selects the endpoint family for a tenant.
func (c *Client) baseURL(tenant *domain.Tenant) string {
	if tenant.Environment == domain.EnvironmentSandbox {
		return c.sandboxURL
	}
	return c.productionURL
}

// legacyLoginRequest is the 4-field login payload.
type legacyLoginRequest struct {
	AppKey    string `json:"app_key"`
	AppSecret string `json:"app_secret"`
	Username  string `json:"username"`
	Password  string `json:"password"`
}

// authResponse covers both auth schemes; the legacy endpoint answers with
// "token", the OAuth2 endpoint with "access_token".
type authResponse struct {
	Token       string `json:"token"`
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Authenticate performs the tenant's login call and returns a fresh token.
// 5xx responses wrap domain.ErrAuthUnavailable so the token manager can
// retry; everything else is terminal for this attempt.
func (c *Client) Authenticate(ctx context.Context, tenant *domain.Tenant) (domain.Token, error) {
	var (
		resp *http.Response
		err  error
	)
	switch tenant.AuthScheme {
	case domain.AuthSchemeOAuth2:
		resp, err = c.doOAuthToken(ctx, tenant)
	default:
		resp, err = c.doLegacyLogin(ctx, tenant)
	}
	if err != nil {
		return domain.Token{}, fmt.Errorf("%w: %v", domain.ErrAuthUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Token{}, fmt.Errorf("%w: read auth response: %v", domain.ErrAuthUnavailable, err)
	}

	switch {
	case resp.StatusCode >= 500:
		return domain.Token{}, fmt.Errorf("%w: auth endpoint returned %d", domain.ErrAuthUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return domain.Token{}, fmt.Errorf("auth endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var auth authResponse
	if err := json.Unmarshal(body, &auth); err != nil {
		return domain.Token{}, fmt.Errorf("decode auth response: %w", err)
	}

	value := auth.Token
	if value == "" {
		value = auth.AccessToken
	}
	if value == "" {
		return domain.Token{}, fmt.Errorf("auth response carries no token")
	}

	now := time.Now()
	token := domain.Token{
		Value:     value,
		IssuedAt:  now,
		ExpiresAt: now.Add(tokenLifetime(auth, value)),
	}
	c.logger.Debug("token issued",
		"tenant_id", tenant.ID,
		"scheme", tenant.AuthScheme,
		"expires_at", token.ExpiresAt,
	)
	return token, nil
}

func (c *Client) doLegacyLogin(ctx context.Context, tenant *domain.Tenant) (*http.Response, error) {
	payload, err := json.Marshal(legacyLoginRequest{
		AppKey:    tenant.Credentials.AppKey,
		AppSecret: tenant.Credentials.AppSecret,
		Username:  tenant.Credentials.Username,
		Password:  tenant.Credentials.Password,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL(tenant)+loginPath, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.httpClient.Do(req)
}

func (c *Client) doOAuthToken(ctx context.Context, tenant *domain.Tenant) (*http.Response, error) {
	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {tenant.Credentials.ClientID},
		"client_secret": {tenant.Credentials.ClientSecret},
		"scope":         {tenant.Credentials.Scope},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL(tenant)+tokenPath, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.httpClient.Do(req)
}

// tokenLifetime derives the token lifetime from the response. Responses
// without expires_in (some OAuth2 deployments omit it) fall back to the
// JWT exp claim; the token value is used as a bearer either way, so the
// parse is unverified.
func tokenLifetime(auth authResponse, value string) time.Duration {
	if auth.ExpiresIn > 0 {
		return time.Duration(auth.ExpiresIn) * time.Second
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(value, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			if lifetime := time.Until(exp.Time); lifetime > 0 {
				return lifetime
			}
		}
	}
	return defaultTokenLifetime
}

// loadRequest is the entity loading payload.
type loadRequest struct {
	Entity    string   `json:"entity"`
	Fields    []string `json:"fields"`
	Offset    int      `json:"offset"`
	Limit     int      `json:"limit"`
	ReturnAll bool     `json:"return_all"`
}

// FetchPage loads one page of an entity type starting at the given record
// offset. A 401/403 wraps domain.ErrUnauthorized so the fetcher can renew
// the token and retry the same page.
func (c *Client) FetchPage(ctx context.Context, tenant *domain.Tenant, spec domain.TableSpec, token domain.Token, offset int) (*domain.Page, error) {
	payload, err := json.Marshal(loadRequest{
		Entity: spec.Entity,
		Fields: spec.Fields,
		Offset: offset,
		Limit:  c.pageSize,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL(tenant)+loadPath, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token.Value)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("load %s at offset %d: %w", spec.Entity, offset, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("load %s at offset %d: read response: %w", spec.Entity, offset, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: load %s returned %d", domain.ErrUnauthorized, spec.Entity, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("load %s at offset %d returned %d: %s",
			spec.Entity, offset, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return decodePage(body)
}
