package truelayer

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
	TokenPath = "/connect/token"

	pendingStatus = "pending"
)

// BaseURLs returns the auth and data API roots for env.
func BaseURLs(env string) (authURL string, dataURL string) {
	if core.NormalizeEnvironment(env) == core.EnvironmentProduction {
		return "https://auth.truelayer.com", "https://api.truelayer.com/data/v1"
	}
	return "https://auth.truelayer-sandbox.com", "https://api.truelayer-sandbox.com/data/v1"
}

type Provider struct {
	cfg      core.OAuthClientConfig
	authURL  string
	client   *transport.Client
	grant    *providers.TokenGrant
	enricher *normalize.Enricher
	now      func() time.Time
}

func New(cfg core.OAuthClientConfig, deps core.ProviderDeps) (*Provider, error) {
	if strings.TrimSpace(cfg.ClientID) == "" || strings.TrimSpace(cfg.ClientSecret) == "" {
		return nil, core.ConfigurationError("truelayer: client_id and client_secret are required")
	}
	authURL, dataURL := BaseURLs(cfg.Environment)
	if value := strings.TrimSpace(cfg.AuthURL); value != "" {
		authURL = value
	}
	if value := strings.TrimSpace(cfg.BaseURL); value != "" {
		dataURL = value
	}
	client := transport.NewClient(core.ProviderTrueLayer, dataURL, deps.Doer,
		transport.WithRetrier(deps.Retrier),
		transport.WithRateLimiter(deps.RateLimiter),
		transport.WithLogger(glog.Ensure(deps.Logger)),
		transport.WithRedactor(core.NewRedactor(cfg.ClientSecret)),
		transport.WithErrorDecoder(transport.JSONMessage("error_description", "error", "title")),
	)
	p := &Provider{
		cfg:      cfg,
		authURL:  authURL,
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
		SecretInBody: true,
		Now:          func() time.Time { return p.now() },
	}
	return p, nil
}

func Factory(cfg core.Config, deps core.ProviderDeps) (core.Provider, error) {
	provider, err := New(cfg.TrueLayer, deps)
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
	return core.ProviderTrueLayer
}

func (p *Provider) ExchangeToken(ctx context.Context, code string, redirectURI string) (core.TokenResponse, error) {
	return p.grant.Exchange(ctx, code, redirectURI)
}

func (p *Provider) RefreshToken(ctx context.Context, refreshToken string) (core.TokenResponse, error) {
	return p.grant.Refresh(ctx, refreshToken)
}

func results[T any](ctx context.Context, client *transport.Client, req transport.Request, what string) ([]T, error) {
	var payload resultsEnvelope[T]
	if err := client.JSON(ctx, req, &payload, what); err != nil {
		return nil, err
	}
	return payload.Results, nil
}

func (p *Provider) get(path string, accessToken string, query url.Values) transport.Request {
	return transport.Request{
		Path:  path,
		Query: query,
		Auth:  transport.BearerAuth{Token: accessToken},
	}
}

// GetAccounts reads /me and /accounts concurrently, then each balance.
func (p *Provider) GetAccounts(ctx context.Context, accessToken string) ([]core.Account, error) {
	if err := providers.RequireAccessToken(core.ProviderTrueLayer, accessToken); err != nil {
		return nil, err
	}
	var (
		me      []nativeMe
		natives []nativeAccount
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		me, err = results[nativeMe](groupCtx, p.client, p.get("/me", accessToken, nil), "me")
		return err
	})
	group.Go(func() error {
		var err error
		natives, err = results[nativeAccount](groupCtx, p.client, p.get("/accounts", accessToken, nil), "accounts")
		return err
	})
	if err := group.Wait(); err != nil {
		return nil, err
	}
	credentialsID := ""
	if len(me) > 0 {
		credentialsID = me[0].CredentialsID
	}

	now := p.now()
	accounts := make([]core.Account, 0, len(natives))
	for _, native := range natives {
		balance, err := p.balance(ctx, accessToken, native.AccountID)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, transformAccount(native, credentialsID, balance, now))
	}
	return accounts, nil
}

func (p *Provider) balance(ctx context.Context, accessToken string, nativeID string) (core.Balance, error) {
	balances, err := results[nativeBalance](ctx, p.client,
		p.get("/accounts/"+url.PathEscape(nativeID)+"/balance", accessToken, nil), "balance")
	if err != nil {
		return core.Balance{}, err
	}
	if len(balances) == 0 {
		return core.Balance{}, core.NotFoundError(core.ProviderTrueLayer, "balance for account %s not found", core.PrefixID(core.ProviderTrueLayer, nativeID))
	}
	return transformBalance(balances[0]), nil
}

func (p *Provider) GetAccountBalance(ctx context.Context, accessToken string, accountID string) (core.Balance, error) {
	if err := providers.RequireAccessToken(core.ProviderTrueLayer, accessToken); err != nil {
		return core.Balance{}, err
	}
	nativeID, err := providers.RequireAccountID(core.ProviderTrueLayer, accountID)
	if err != nil {
		return core.Balance{}, err
	}
	return p.balance(ctx, accessToken, nativeID)
}

// GetTransactions merges settled and pending transactions, fetched
// concurrently. Settled entries come first.
func (p *Provider) GetTransactions(
	ctx context.Context,
	accessToken string,
	accountID string,
	window core.DateRange,
) ([]core.Transaction, error) {
	if err := providers.RequireAccessToken(core.ProviderTrueLayer, accessToken); err != nil {
		return nil, err
	}
	nativeID, err := providers.RequireAccountID(core.ProviderTrueLayer, accountID)
	if err != nil {
		return nil, err
	}
	query := url.Values{}
	if window.From != nil {
		query.Set("from", window.From.UTC().Format(time.RFC3339))
	}
	if window.To != nil {
		query.Set("to", window.To.UTC().Format(time.RFC3339))
	}
	base := "/accounts/" + url.PathEscape(nativeID) + "/transactions"

	var settled, pending []nativeTransaction
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		settled, err = results[nativeTransaction](groupCtx, p.client, p.get(base, accessToken, query), "transactions")
		return err
	})
	group.Go(func() error {
		var err error
		pending, err = results[nativeTransaction](groupCtx, p.client, p.get(base+"/"+pendingStatus, accessToken, query), "pending transactions")
		return err
	})
	if err := group.Wait(); err != nil {
		return nil, err
	}

	now := p.now()
	transactions := make([]core.Transaction, 0, len(settled)+len(pending))
	for _, native := range settled {
		transactions = append(transactions, p.enricher.Enrich(transformTransaction(native, nativeID, false, now)))
	}
	for _, native := range pending {
		transactions = append(transactions, p.enricher.Enrich(transformTransaction(native, nativeID, normalize.IsPending(pendingStatus), now)))
	}
	return transactions, nil
}

// GetInstitutions lists the providers enabled for this client. The country
// filter is applied locally.
func (p *Provider) GetInstitutions(ctx context.Context, filter core.InstitutionFilter) ([]core.Institution, error) {
	country, err := providers.CountryFilter(core.ProviderTrueLayer, filter)
	if err != nil {
		return nil, err
	}
	var payload []nativeInstitution
	if err := p.client.JSON(ctx, transport.Request{
		BaseURL: p.authURL,
		Path:    "/api/providers",
		Query:   url.Values{"clientId": []string{p.cfg.ClientID}},
	}, &payload, "providers"); err != nil {
		return nil, err
	}
	now := p.now()
	institutions := make([]core.Institution, 0, len(payload))
	for _, native := range payload {
		institution := transformInstitution(native, now)
		if country != "" && institution.Country != country {
			continue
		}
		institutions = append(institutions, institution)
	}
	return institutions, nil
}

func (p *Provider) GetConnectionStatus(ctx context.Context, accessToken string) (core.ConnectionStatus, error) {
	if err := providers.RequireAccessToken(core.ProviderTrueLayer, accessToken); err != nil {
		return core.ConnectionError, err
	}
	_, err := p.client.Do(ctx, p.get("/me", accessToken, nil))
	return providers.ConnectionStatusFromError(err)
}

func (p *Provider) DeleteConnection(ctx context.Context, accessToken string) error {
	if err := providers.RequireAccessToken(core.ProviderTrueLayer, accessToken); err != nil {
		return err
	}
	_, err := p.client.Do(ctx, transport.Request{
		Method:  http.MethodDelete,
		BaseURL: p.authURL,
		Path:    "/api/delete",
		Auth:    transport.BearerAuth{Token: accessToken},
	})
	return err
}

func (p *Provider) HealthCheck(ctx context.Context) error {
	return providers.HealthCheck(ctx, p.client, transport.Request{BaseURL: p.authURL, Path: "/api/providers"})
}

var _ core.Provider = (*Provider)(nil)
