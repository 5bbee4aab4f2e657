package gocardless

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-banking/core"
	"github.com/goliatone/go-banking/normalize"
	"github.com/goliatone/go-banking/providers"
	"github.com/goliatone/go-banking/transport"
	glog "github.com/goliatone/go-logger/glog"
)

const (
	ProductionBaseURL = "https://bankable.gocardless.com/api/v2"
	SandboxBaseURL    = ProductionBaseURL + "/sandbox"
)

// BaseURL selects the API root for env. Only sandbox differs.
func BaseURL(env string) string {
	if core.NormalizeEnvironment(env) == core.EnvironmentSandbox {
		return SandboxBaseURL
	}
	return ProductionBaseURL
}

type Provider struct {
	cfg      core.GoCardlessConfig
	client   *transport.Client
	enricher *normalize.Enricher
	logger   core.Logger
	now      func() time.Time
}

func New(cfg core.GoCardlessConfig, deps core.ProviderDeps) (*Provider, error) {
	if strings.TrimSpace(cfg.SecretID) == "" || strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, core.ConfigurationError("gocardless: secret_id and secret_key are required")
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = BaseURL(cfg.Environment)
	}
	logger := glog.Ensure(deps.Logger)
	client := transport.NewClient(core.ProviderGoCardless, baseURL, deps.Doer,
		transport.WithRetrier(deps.Retrier),
		transport.WithRateLimiter(deps.RateLimiter),
		transport.WithLogger(logger),
		transport.WithRedactor(core.NewRedactor(cfg.SecretID, cfg.SecretKey)),
		transport.WithErrorDecoder(transport.JSONMessage("message", "detail", "summary")),
	)
	return &Provider{
		cfg:      cfg,
		client:   client,
		enricher: normalize.DefaultEnricher(),
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Factory adapts New to core.ProviderFactory.
func Factory(cfg core.Config, deps core.ProviderDeps) (core.Provider, error) {
	provider, err := New(cfg.GoCardless, deps)
	if err != nil {
		return nil, err
	}
	return provider, nil
}

// WithClock swaps the wall clock used for last_sync and date fallbacks.
func (p *Provider) WithClock(now func() time.Time) *Provider {
	if now != nil {
		p.now = now
	}
	return p
}

func (p *Provider) Name() core.ProviderName {
	return core.ProviderGoCardless
}

func (p *Provider) clientAuth() transport.Auth {
	return transport.BasicAuth{Username: p.cfg.SecretID, Password: p.cfg.SecretKey}
}

func (p *Provider) ExchangeToken(ctx context.Context, code string, redirectURI string) (core.TokenResponse, error) {
	if err := providers.RequireCode(core.ProviderGoCardless, code); err != nil {
		return core.TokenResponse{}, err
	}
	return p.token(ctx, "/auth/access-token", map[string]string{
		"code":         strings.TrimSpace(code),
		"redirect_uri": strings.TrimSpace(redirectURI),
	})
}

func (p *Provider) RefreshToken(ctx context.Context, refreshToken string) (core.TokenResponse, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return core.TokenResponse{}, core.ValidationError(core.ProviderGoCardless, "refresh token is required")
	}
	return p.token(ctx, "/auth/refresh", map[string]string{"refresh_token": strings.TrimSpace(refreshToken)})
}

func (p *Provider) token(ctx context.Context, path string, body map[string]string) (core.TokenResponse, error) {
	var payload tokenResponse
	err := p.client.JSON(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   path,
		JSON:   body,
		Auth:   p.clientAuth(),
	}, &payload, "token response")
	if err != nil {
		return core.TokenResponse{}, err
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		return core.TokenResponse{}, core.DecodeError(core.ProviderGoCardless, nil, "token response without access_token")
	}
	return core.NewTokenResponse(p.now(), payload.AccessToken, payload.RefreshToken, payload.ExpiresIn), nil
}

func (p *Provider) GetAccounts(ctx context.Context, accessToken string) ([]core.Account, error) {
	if err := providers.RequireAccessToken(core.ProviderGoCardless, accessToken); err != nil {
		return nil, err
	}
	var payload accountsResponse
	if err := p.client.JSON(ctx, transport.Request{
		Path: "/accounts",
		Auth: transport.BearerAuth{Token: accessToken},
	}, &payload, "accounts"); err != nil {
		return nil, err
	}
	now := p.now()
	accounts := make([]core.Account, 0, len(payload.Accounts))
	for _, native := range payload.Accounts {
		accounts = append(accounts, transformAccount(native, now))
	}
	return accounts, nil
}

func (p *Provider) GetAccountBalance(ctx context.Context, accessToken string, accountID string) (core.Balance, error) {
	if err := providers.RequireAccessToken(core.ProviderGoCardless, accessToken); err != nil {
		return core.Balance{}, err
	}
	nativeID, err := providers.RequireAccountID(core.ProviderGoCardless, accountID)
	if err != nil {
		return core.Balance{}, err
	}
	var payload nativeAccount
	if err := p.client.JSON(ctx, transport.Request{
		Path: "/accounts/" + url.PathEscape(nativeID),
		Auth: transport.BearerAuth{Token: accessToken},
	}, &payload, "account"); err != nil {
		return core.Balance{}, err
	}
	return transformBalance(payload.Balance, normalize.Currency(payload.Currency, "EUR")), nil
}

func (p *Provider) GetTransactions(
	ctx context.Context,
	accessToken string,
	accountID string,
	window core.DateRange,
) ([]core.Transaction, error) {
	if err := providers.RequireAccessToken(core.ProviderGoCardless, accessToken); err != nil {
		return nil, err
	}
	nativeID, err := providers.RequireAccountID(core.ProviderGoCardless, accountID)
	if err != nil {
		return nil, err
	}
	query := url.Values{}
	if window.From != nil {
		query.Set("from_date", window.From.UTC().Format(time.RFC3339))
	}
	if window.To != nil {
		query.Set("to_date", window.To.UTC().Format(time.RFC3339))
	}

	var payload transactionsResponse
	if err := p.client.JSON(ctx, transport.Request{
		Path:  "/accounts/" + url.PathEscape(nativeID) + "/transactions",
		Query: query,
		Auth:  transport.BearerAuth{Token: accessToken},
	}, &payload, "transactions"); err != nil {
		return nil, err
	}
	now := p.now()
	transactions := make([]core.Transaction, 0, len(payload.Transactions))
	for _, native := range payload.Transactions {
		transactions = append(transactions, p.enricher.Enrich(transformTransaction(native, nativeID, now)))
	}
	return transactions, nil
}

func (p *Provider) GetInstitutions(ctx context.Context, filter core.InstitutionFilter) ([]core.Institution, error) {
	country, err := providers.CountryFilter(core.ProviderGoCardless, filter)
	if err != nil {
		return nil, err
	}
	query := url.Values{}
	if country != "" {
		query.Set("country", country)
	}
	var payload []nativeInstitution
	if err := p.client.JSON(ctx, transport.Request{
		Path:  "/institutions",
		Query: query,
		Auth:  p.clientAuth(),
	}, &payload, "institutions"); err != nil {
		return nil, err
	}
	now := p.now()
	institutions := make([]core.Institution, 0, len(payload))
	for _, native := range payload {
		institutions = append(institutions, transformInstitution(native, now))
	}
	return institutions, nil
}

// GetInstitution fetches a single institution by canonical or native id.
func (p *Provider) GetInstitution(ctx context.Context, institutionID string) (core.Institution, error) {
	nativeID := strings.TrimSpace(core.StripPrefix(core.ProviderGoCardless, strings.TrimSpace(institutionID)))
	if nativeID == "" {
		return core.Institution{}, core.ValidationError(core.ProviderGoCardless, "institution id is required")
	}
	var payload nativeInstitution
	if err := p.client.JSON(ctx, transport.Request{
		Path: "/institutions/" + url.PathEscape(nativeID),
		Auth: p.clientAuth(),
	}, &payload, "institution"); err != nil {
		return core.Institution{}, err
	}
	return transformInstitution(payload, p.now()), nil
}

func (p *Provider) GetConnectionStatus(ctx context.Context, accessToken string) (core.ConnectionStatus, error) {
	if err := providers.RequireAccessToken(core.ProviderGoCardless, accessToken); err != nil {
		return core.ConnectionError, err
	}
	_, err := p.client.Do(ctx, transport.Request{
		Path: "/accounts",
		Auth: transport.BearerAuth{Token: accessToken},
	})
	return providers.ConnectionStatusFromError(err)
}

func (p *Provider) DeleteConnection(ctx context.Context, accessToken string) error {
	if err := providers.RequireAccessToken(core.ProviderGoCardless, accessToken); err != nil {
		return err
	}
	_, err := p.client.Do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "/auth/revoke",
		JSON:   map[string]string{"token": accessToken},
		Auth:   p.clientAuth(),
	})
	return err
}

func (p *Provider) HealthCheck(ctx context.Context) error {
	return providers.HealthCheck(ctx, p.client, transport.Request{Path: "/institutions", Auth: p.clientAuth()})
}

var _ core.Provider = (*Provider)(nil)
