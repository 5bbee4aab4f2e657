package teller

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
	"golang.org/x/sync/errgroup"
)

const (
	DefaultBaseURL = "https://api.teller.io"
	TokenHeader    = "Teller-Account-Token"

	balanceFetchLimit = 4
)

// BaseURL appends the environment segment Teller uses outside production.
func BaseURL(env string) string {
	switch core.NormalizeEnvironment(env) {
	case core.EnvironmentProduction:
		return DefaultBaseURL
	case core.EnvironmentDevelopment:
		return DefaultBaseURL + "/development"
	default:
		return DefaultBaseURL + "/sandbox"
	}
}

// Provider talks to Teller. Teller access tokens never expire, so token
// responses carry a synthetic expiry window.
type Provider struct {
	cfg      core.TellerConfig
	client   *transport.Client
	enricher *normalize.Enricher
	now      func() time.Time
}

func New(cfg core.TellerConfig, deps core.ProviderDeps) (*Provider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, core.ConfigurationError("teller: api_key is required")
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = BaseURL(cfg.Environment)
	}
	client := transport.NewClient(core.ProviderTeller, baseURL, deps.Doer,
		transport.WithRetrier(deps.Retrier),
		transport.WithRateLimiter(deps.RateLimiter),
		transport.WithLogger(glog.Ensure(deps.Logger)),
		transport.WithRedactor(core.NewRedactor(cfg.APIKey)),
		transport.WithErrorDecoder(transport.JSONMessage("error.message", "error.code", "message")),
	)
	return &Provider{
		cfg:      cfg,
		client:   client,
		enricher: normalize.DefaultEnricher(),
		now:      time.Now,
	}, nil
}

func Factory(cfg core.Config, deps core.ProviderDeps) (core.Provider, error) {
	provider, err := New(cfg.Teller, deps)
	if err != nil {
		return nil, err
	}
	return provider, nil
}

func (p *Provider) WithClock(now func() time.Time) *Provider {
	if now != nil {
		p.now = now
	}
	return p
}

func (p *Provider) Name() core.ProviderName {
	return core.ProviderTeller
}

func (p *Provider) auth(accessToken string) transport.Auth {
	auth := transport.Chain{transport.BasicAuth{Username: p.cfg.APIKey}}
	if accessToken != "" {
		auth = append(auth, transport.HeaderAuth{Name: TokenHeader, Value: accessToken})
	}
	return auth
}

// ExchangeToken trades an enrollment id for its access token.
func (p *Provider) ExchangeToken(ctx context.Context, code string, _ string) (core.TokenResponse, error) {
	if err := providers.RequireCode(core.ProviderTeller, code); err != nil {
		return core.TokenResponse{}, err
	}
	var payload enrollmentResponse
	if err := p.client.JSON(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "/auth/exchange",
		JSON:   map[string]string{"enrollment_id": strings.TrimSpace(code)},
		Auth:   p.auth(""),
	}, &payload, "enrollment"); err != nil {
		return core.TokenResponse{}, err
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		return core.TokenResponse{}, core.DecodeError(core.ProviderTeller, nil, "enrollment without access_token")
	}
	return core.NewSyntheticTokenResponse(p.now(), payload.AccessToken), nil
}

// RefreshToken confirms the token still lists accounts and reissues it.
func (p *Provider) RefreshToken(ctx context.Context, refreshToken string) (core.TokenResponse, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return core.TokenResponse{}, core.ValidationError(core.ProviderTeller, "refresh token is required")
	}
	if _, err := p.client.Do(ctx, transport.Request{Path: "/accounts", Auth: p.auth(refreshToken)}); err != nil {
		return core.TokenResponse{}, err
	}
	return core.NewSyntheticTokenResponse(p.now(), refreshToken), nil
}

func (p *Provider) listAccounts(ctx context.Context, accessToken string) ([]nativeAccount, error) {
	var payload []nativeAccount
	if err := p.client.JSON(ctx, transport.Request{
		Path: "/accounts",
		Auth: p.auth(accessToken),
	}, &payload, "accounts"); err != nil {
		return nil, err
	}
	return payload, nil
}

// accountCurrency reads the account record; Teller's balance and
// transaction payloads carry no currency of their own.
func (p *Provider) accountCurrency(ctx context.Context, accessToken string, nativeID string) (string, error) {
	var payload nativeAccount
	if err := p.client.JSON(ctx, transport.Request{
		Path: "/accounts/" + url.PathEscape(nativeID),
		Auth: p.auth(accessToken),
	}, &payload, "account"); err != nil {
		return "", err
	}
	return payload.Currency, nil
}

func (p *Provider) fetchBalance(ctx context.Context, accessToken string, nativeID string, currency string) (core.Balance, error) {
	var payload nativeBalances
	if err := p.client.JSON(ctx, transport.Request{
		Path: "/accounts/" + url.PathEscape(nativeID) + "/balances",
		Auth: p.auth(accessToken),
	}, &payload, "balances"); err != nil {
		return core.Balance{}, err
	}
	balance, err := transformBalance(payload, currency)
	if err != nil {
		return core.Balance{}, core.DecodeError(core.ProviderTeller, err, "balances")
	}
	return balance, nil
}

// GetAccounts lists accounts and fetches each balance concurrently, since
// Teller does not embed balances in the account payload.
func (p *Provider) GetAccounts(ctx context.Context, accessToken string) ([]core.Account, error) {
	if err := providers.RequireAccessToken(core.ProviderTeller, accessToken); err != nil {
		return nil, err
	}
	natives, err := p.listAccounts(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	balances := make([]core.Balance, len(natives))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(balanceFetchLimit)
	for i, native := range natives {
		group.Go(func() error {
			balance, err := p.fetchBalance(groupCtx, accessToken, native.ID, native.Currency)
			if err != nil {
				return err
			}
			balances[i] = balance
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	now := p.now()
	accounts := make([]core.Account, 0, len(natives))
	for i, native := range natives {
		accounts = append(accounts, transformAccount(native, balances[i], now))
	}
	return accounts, nil
}

func (p *Provider) GetAccountBalance(ctx context.Context, accessToken string, accountID string) (core.Balance, error) {
	if err := providers.RequireAccessToken(core.ProviderTeller, accessToken); err != nil {
		return core.Balance{}, err
	}
	nativeID, err := providers.RequireAccountID(core.ProviderTeller, accountID)
	if err != nil {
		return core.Balance{}, err
	}
	currency, err := p.accountCurrency(ctx, accessToken, nativeID)
	if err != nil {
		return core.Balance{}, err
	}
	return p.fetchBalance(ctx, accessToken, nativeID, currency)
}

// GetTransactions fetches the full history and applies window locally.
func (p *Provider) GetTransactions(
	ctx context.Context,
	accessToken string,
	accountID string,
	window core.DateRange,
) ([]core.Transaction, error) {
	if err := providers.RequireAccessToken(core.ProviderTeller, accessToken); err != nil {
		return nil, err
	}
	nativeID, err := providers.RequireAccountID(core.ProviderTeller, accountID)
	if err != nil {
		return nil, err
	}
	currency, err := p.accountCurrency(ctx, accessToken, nativeID)
	if err != nil {
		return nil, err
	}
	var payload []nativeTransaction
	if err := p.client.JSON(ctx, transport.Request{
		Path: "/accounts/" + url.PathEscape(nativeID) + "/transactions",
		Auth: p.auth(accessToken),
	}, &payload, "transactions"); err != nil {
		return nil, err
	}
	now := p.now()
	transactions := make([]core.Transaction, 0, len(payload))
	for _, native := range payload {
		transaction, err := transformTransaction(native, nativeID, currency, now)
		if err != nil {
			return nil, core.DecodeError(core.ProviderTeller, err, "transaction amount")
		}
		if !window.Contains(transaction.Date) {
			continue
		}
		transactions = append(transactions, p.enricher.Enrich(transaction))
	}
	return transactions, nil
}

// GetInstitutions only covers the US; other supported countries yield an
// empty list without a request.
func (p *Provider) GetInstitutions(ctx context.Context, filter core.InstitutionFilter) ([]core.Institution, error) {
	country, err := providers.CountryFilter(core.ProviderTeller, filter)
	if err != nil {
		return nil, err
	}
	if country != "" && country != "US" {
		return []core.Institution{}, nil
	}
	var payload []nativeInstitution
	if err := p.client.JSON(ctx, transport.Request{
		Path: "/institutions",
		Auth: p.auth(""),
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

func (p *Provider) GetConnectionStatus(ctx context.Context, accessToken string) (core.ConnectionStatus, error) {
	if err := providers.RequireAccessToken(core.ProviderTeller, accessToken); err != nil {
		return core.ConnectionError, err
	}
	_, err := p.client.Do(ctx, transport.Request{Path: "/accounts", Auth: p.auth(accessToken)})
	return providers.ConnectionStatusFromError(err)
}

// DeleteConnection removes every account of the enrollment.
func (p *Provider) DeleteConnection(ctx context.Context, accessToken string) error {
	if err := providers.RequireAccessToken(core.ProviderTeller, accessToken); err != nil {
		return err
	}
	_, err := p.client.Do(ctx, transport.Request{
		Method: http.MethodDelete,
		Path:   "/accounts",
		Auth:   p.auth(accessToken),
	})
	return err
}

func (p *Provider) HealthCheck(ctx context.Context) error {
	return providers.HealthCheck(ctx, p.client, transport.Request{Path: "/institutions", Auth: p.auth("")})
}

var _ core.Provider = (*Provider)(nil)
