package wise

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-banking/core"
	"github.com/goliatone/go-banking/normalize"
	"github.com/goliatone/go-banking/providers"
	"github.com/goliatone/go-banking/transport"
	glog "github.com/goliatone/go-logger/glog"
)

const (
	SandboxBaseURL    = "https://api.sandbox.transferwise.tech"
	ProductionBaseURL = "https://api.wise.com"
	TokenPath         = "/oauth/token"

	defaultStatementWindow = 30 * 24 * time.Hour
)

func BaseURL(env string) string {
	if core.NormalizeEnvironment(env) == core.EnvironmentProduction {
		return ProductionBaseURL
	}
	return SandboxBaseURL
}

// Provider maps Wise multi-currency balances onto canonical accounts. Each
// (profile, balance) pair is one account.
type Provider struct {
	cfg      core.OAuthClientConfig
	client   *transport.Client
	grant    *providers.TokenGrant
	enricher *normalize.Enricher
	now      func() time.Time
}

func New(cfg core.OAuthClientConfig, deps core.ProviderDeps) (*Provider, error) {
	if strings.TrimSpace(cfg.ClientID) == "" || strings.TrimSpace(cfg.ClientSecret) == "" {
		return nil, core.ConfigurationError("wise: client_id and client_secret are required")
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = BaseURL(cfg.Environment)
	}
	authURL := strings.TrimSpace(cfg.AuthURL)
	if authURL == "" {
		authURL = baseURL
	}
	client := transport.NewClient(core.ProviderWise, baseURL, deps.Doer,
		transport.WithRetrier(deps.Retrier),
		transport.WithRateLimiter(deps.RateLimiter),
		transport.WithLogger(glog.Ensure(deps.Logger)),
		transport.WithRedactor(core.NewRedactor(cfg.ClientSecret)),
		transport.WithErrorDecoder(transport.JSONMessage("error_description", "errors.0.message", "error", "message")),
	)
	p := &Provider{
		cfg:      cfg,
		client:   client,
		enricher: normalize.DefaultEnricher(),
		now:      time.Now,
	}
	p.grant = &providers.TokenGrant{
		Client:       client,
		AuthBaseURL:  authURL,
		TokenPath:    TokenPath,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Now:          func() time.Time { return p.now() },
	}
	return p, nil
}

func Factory(cfg core.Config, deps core.ProviderDeps) (core.Provider, error) {
	provider, err := New(cfg.Wise, deps)
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
	return core.ProviderWise
}

func (p *Provider) ExchangeToken(ctx context.Context, code string, redirectURI string) (core.TokenResponse, error) {
	return p.grant.Exchange(ctx, code, redirectURI)
}

func (p *Provider) RefreshToken(ctx context.Context, refreshToken string) (core.TokenResponse, error) {
	return p.grant.Refresh(ctx, refreshToken)
}

func (p *Provider) profiles(ctx context.Context, accessToken string) ([]nativeProfile, error) {
	var payload []nativeProfile
	if err := p.client.JSON(ctx, transport.Request{
		Path: "/v2/profiles",
		Auth: transport.BearerAuth{Token: accessToken},
	}, &payload, "profiles"); err != nil {
		return nil, err
	}
	return payload, nil
}

func (p *Provider) balances(ctx context.Context, accessToken string, profileID string) ([]nativeBalance, error) {
	var payload []nativeBalance
	if err := p.client.JSON(ctx, transport.Request{
		Path:  "/v4/profiles/" + url.PathEscape(profileID) + "/balances",
		Query: url.Values{"types": []string{"STANDARD"}},
		Auth:  transport.BearerAuth{Token: accessToken},
	}, &payload, "balances"); err != nil {
		return nil, err
	}
	return payload, nil
}

func (p *Provider) GetAccounts(ctx context.Context, accessToken string) ([]core.Account, error) {
	if err := providers.RequireAccessToken(core.ProviderWise, accessToken); err != nil {
		return nil, err
	}
	profiles, err := p.profiles(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	now := p.now()
	accounts := []core.Account{}
	for _, profile := range profiles {
		balances, err := p.balances(ctx, accessToken, strconv.FormatInt(profile.ID, 10))
		if err != nil {
			return nil, err
		}
		for _, balance := range balances {
			accounts = append(accounts, transformAccount(profile, balance, now))
		}
	}
	return accounts, nil
}

func (p *Provider) resolveAccount(accountID string) (string, string, string, error) {
	nativeID, err := providers.RequireAccountID(core.ProviderWise, accountID)
	if err != nil {
		return "", "", "", err
	}
	profileID, balanceID, ok := splitAccountKey(nativeID)
	if !ok {
		return "", "", "", core.ValidationError(core.ProviderWise, "account id %q is not a <profile>-<balance> pair", nativeID)
	}
	return nativeID, profileID, balanceID, nil
}

func (p *Provider) balance(ctx context.Context, accessToken string, profileID string, balanceID string) (nativeBalance, error) {
	var payload nativeBalance
	if err := p.client.JSON(ctx, transport.Request{
		Path: "/v4/profiles/" + url.PathEscape(profileID) + "/balances/" + url.PathEscape(balanceID),
		Auth: transport.BearerAuth{Token: accessToken},
	}, &payload, "balance"); err != nil {
		return nativeBalance{}, err
	}
	return payload, nil
}

func (p *Provider) GetAccountBalance(ctx context.Context, accessToken string, accountID string) (core.Balance, error) {
	if err := providers.RequireAccessToken(core.ProviderWise, accessToken); err != nil {
		return core.Balance{}, err
	}
	_, profileID, balanceID, err := p.resolveAccount(accountID)
	if err != nil {
		return core.Balance{}, err
	}
	native, err := p.balance(ctx, accessToken, profileID, balanceID)
	if err != nil {
		return core.Balance{}, err
	}
	return transformBalance(native), nil
}

// GetTransactions reads the balance statement. The statement endpoint needs
// the balance currency and a closed interval, so the balance is looked up
// first and open window ends default to the last 30 days.
func (p *Provider) GetTransactions(
	ctx context.Context,
	accessToken string,
	accountID string,
	window core.DateRange,
) ([]core.Transaction, error) {
	if err := providers.RequireAccessToken(core.ProviderWise, accessToken); err != nil {
		return nil, err
	}
	nativeID, profileID, balanceID, err := p.resolveAccount(accountID)
	if err != nil {
		return nil, err
	}
	balance, err := p.balance(ctx, accessToken, profileID, balanceID)
	if err != nil {
		return nil, err
	}

	now := p.now()
	end := now
	if window.To != nil {
		end = *window.To
	}
	start := end.Add(-defaultStatementWindow)
	if window.From != nil {
		start = *window.From
	}
	query := url.Values{}
	query.Set("currency", normalize.Currency(balance.Currency, "EUR"))
	query.Set("intervalStart", start.UTC().Format(time.RFC3339))
	query.Set("intervalEnd", end.UTC().Format(time.RFC3339))
	query.Set("type", "COMPACT")

	var payload statementResponse
	if err := p.client.JSON(ctx, transport.Request{
		Path:  "/v1/profiles/" + url.PathEscape(profileID) + "/balance-statements/" + url.PathEscape(balanceID) + "/statement.json",
		Query: query,
		Auth:  transport.BearerAuth{Token: accessToken},
	}, &payload, "statement"); err != nil {
		return nil, err
	}
	transactions := make([]core.Transaction, 0, len(payload.Transactions))
	for _, native := range payload.Transactions {
		transactions = append(transactions, p.enricher.Enrich(transformTransaction(native, nativeID, now)))
	}
	return transactions, nil
}

// GetInstitutions returns Wise itself for any supported country.
func (p *Provider) GetInstitutions(_ context.Context, filter core.InstitutionFilter) ([]core.Institution, error) {
	if _, err := providers.CountryFilter(core.ProviderWise, filter); err != nil {
		return nil, err
	}
	return []core.Institution{wiseInstitution(p.now())}, nil
}

func (p *Provider) GetConnectionStatus(ctx context.Context, accessToken string) (core.ConnectionStatus, error) {
	if err := providers.RequireAccessToken(core.ProviderWise, accessToken); err != nil {
		return core.ConnectionError, err
	}
	_, err := p.client.Do(ctx, transport.Request{
		Path: "/v2/profiles",
		Auth: transport.BearerAuth{Token: accessToken},
	})
	return providers.ConnectionStatusFromError(err)
}

// DeleteConnection always fails: Wise has no token revocation endpoint.
func (p *Provider) DeleteConnection(_ context.Context, accessToken string) error {
	if err := providers.RequireAccessToken(core.ProviderWise, accessToken); err != nil {
		return err
	}
	return core.ProviderError(core.ProviderWise, http.StatusNotImplemented, "token revocation is not supported")
}

func (p *Provider) HealthCheck(ctx context.Context) error {
	return providers.HealthCheck(ctx, p.client, transport.Request{Path: "/v2/profiles"})
}

var _ core.Provider = (*Provider)(nil)
