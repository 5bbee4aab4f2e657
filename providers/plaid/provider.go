package plaid

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-banking/core"
	"github.com/goliatone/go-banking/normalize"
	"github.com/goliatone/go-banking/providers"
	"github.com/goliatone/go-banking/transport"
	glog "github.com/goliatone/go-logger/glog"
)

const (
	transactionsPageSize = 500
	institutionsPageSize = 500
	defaultHistoryWindow = 30 * 24 * time.Hour

	errorCodeItemLoginRequired = "ITEM_LOGIN_REQUIRED"
)

var DefaultCountryCodes = []string{"US", "CA", "GB"}

// BaseURL maps the environment onto Plaid's per-environment host.
func BaseURL(env string) string {
	switch core.NormalizeEnvironment(env) {
	case core.EnvironmentDevelopment:
		return "https://development.plaid.com"
	case core.EnvironmentProduction:
		return "https://production.plaid.com"
	default:
		return "https://sandbox.plaid.com"
	}
}

// Provider speaks Plaid's JSON-over-POST API. Credentials travel in every
// request body rather than in headers.
type Provider struct {
	cfg          core.PlaidConfig
	countryCodes []string
	client       *transport.Client
	enricher     *normalize.Enricher
	now          func() time.Time
}

func New(cfg core.PlaidConfig, deps core.ProviderDeps) (*Provider, error) {
	if strings.TrimSpace(cfg.ClientID) == "" || strings.TrimSpace(cfg.Secret) == "" {
		return nil, core.ConfigurationError("plaid: client_id and secret are required")
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = BaseURL(cfg.Environment)
	}
	countryCodes := make([]string, 0, len(cfg.CountryCodes))
	for _, code := range cfg.CountryCodes {
		if code = normalize.CountryCode(code); code != "" {
			countryCodes = append(countryCodes, code)
		}
	}
	if len(countryCodes) == 0 {
		countryCodes = append(countryCodes, DefaultCountryCodes...)
	}
	logger := glog.Ensure(deps.Logger)
	client := transport.NewClient(core.ProviderPlaid, baseURL, deps.Doer,
		transport.WithRetrier(deps.Retrier),
		transport.WithRateLimiter(deps.RateLimiter),
		transport.WithLogger(logger),
		transport.WithRedactor(core.NewRedactor(cfg.ClientID, cfg.Secret)),
		transport.WithErrorDecoder(decodeError),
	)
	return &Provider{
		cfg:          cfg,
		countryCodes: countryCodes,
		client:       client,
		enricher:     normalize.DefaultEnricher(),
		now:          time.Now,
	}, nil
}

func Factory(cfg core.Config, deps core.ProviderDeps) (core.Provider, error) {
	provider, err := New(cfg.Plaid, deps)
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
	return core.ProviderPlaid
}

// decodeError renders Plaid's envelope as "CODE: message".
func decodeError(status int, body []byte) string {
	message := transport.JSONMessage("display_message", "error_message")(status, body)
	code := transport.JSONMessage("error_code")(status, body)
	switch {
	case code != "" && message != "":
		return code + ": " + message
	case code != "":
		return code
	default:
		return message
	}
}

// post sends body merged with the client credentials.
func (p *Provider) post(ctx context.Context, path string, body map[string]any, out any, what string) error {
	payload := make(map[string]any, len(body)+2)
	for key, value := range body {
		payload[key] = value
	}
	payload["client_id"] = p.cfg.ClientID
	payload["secret"] = p.cfg.Secret
	return p.client.JSON(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   path,
		JSON:   payload,
	}, out, what)
}

func (p *Provider) ExchangeToken(ctx context.Context, code string, _ string) (core.TokenResponse, error) {
	if err := providers.RequireCode(core.ProviderPlaid, code); err != nil {
		return core.TokenResponse{}, err
	}
	var payload exchangeResponse
	if err := p.post(ctx, "/item/public_token/exchange", map[string]any{
		"public_token": strings.TrimSpace(code),
	}, &payload, "token exchange"); err != nil {
		return core.TokenResponse{}, err
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		return core.TokenResponse{}, core.DecodeError(core.ProviderPlaid, nil, "token exchange without access_token")
	}
	return core.NewSyntheticTokenResponse(p.now(), payload.AccessToken), nil
}

// RefreshToken validates the item and reissues the same access token; Plaid
// access tokens do not expire.
func (p *Provider) RefreshToken(ctx context.Context, refreshToken string) (core.TokenResponse, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return core.TokenResponse{}, core.ValidationError(core.ProviderPlaid, "refresh token is required")
	}
	item, err := p.item(ctx, refreshToken)
	if err != nil {
		return core.TokenResponse{}, err
	}
	if item.Error != nil && item.Error.ErrorCode != "" {
		return core.TokenResponse{}, core.ProviderError(core.ProviderPlaid, http.StatusUnauthorized, item.Error.ErrorCode)
	}
	return core.NewSyntheticTokenResponse(p.now(), refreshToken), nil
}

func (p *Provider) item(ctx context.Context, accessToken string) (nativeItem, error) {
	var payload itemResponse
	if err := p.post(ctx, "/item/get", map[string]any{"access_token": accessToken}, &payload, "item"); err != nil {
		return nativeItem{}, err
	}
	return payload.Item, nil
}

func (p *Provider) GetAccounts(ctx context.Context, accessToken string) ([]core.Account, error) {
	if err := providers.RequireAccessToken(core.ProviderPlaid, accessToken); err != nil {
		return nil, err
	}
	var payload accountsResponse
	if err := p.post(ctx, "/accounts/get", map[string]any{"access_token": accessToken}, &payload, "accounts"); err != nil {
		return nil, err
	}
	now := p.now()
	accounts := make([]core.Account, 0, len(payload.Accounts))
	for _, native := range payload.Accounts {
		accounts = append(accounts, transformAccount(native, payload.Item.ItemID, payload.Item.InstitutionID, now))
	}
	return accounts, nil
}

func (p *Provider) GetAccountBalance(ctx context.Context, accessToken string, accountID string) (core.Balance, error) {
	if err := providers.RequireAccessToken(core.ProviderPlaid, accessToken); err != nil {
		return core.Balance{}, err
	}
	nativeID, err := providers.RequireAccountID(core.ProviderPlaid, accountID)
	if err != nil {
		return core.Balance{}, err
	}
	var payload accountsResponse
	if err := p.post(ctx, "/accounts/balance/get", map[string]any{
		"access_token": accessToken,
		"options":      map[string]any{"account_ids": []string{nativeID}},
	}, &payload, "balances"); err != nil {
		return core.Balance{}, err
	}
	for _, native := range payload.Accounts {
		if native.AccountID == nativeID {
			return transformBalance(native.Balances), nil
		}
	}
	return core.Balance{}, core.NotFoundError(core.ProviderPlaid, "account %s not found", core.PrefixID(core.ProviderPlaid, nativeID))
}

// GetTransactions pages through /transactions/get until total_transactions
// is reached. Plaid requires both dates, so open ends default to the last
// 30 days.
func (p *Provider) GetTransactions(
	ctx context.Context,
	accessToken string,
	accountID string,
	window core.DateRange,
) ([]core.Transaction, error) {
	if err := providers.RequireAccessToken(core.ProviderPlaid, accessToken); err != nil {
		return nil, err
	}
	nativeID, err := providers.RequireAccountID(core.ProviderPlaid, accountID)
	if err != nil {
		return nil, err
	}
	now := p.now()
	end := now
	if window.To != nil {
		end = *window.To
	}
	start := end.Add(-defaultHistoryWindow)
	if window.From != nil {
		start = *window.From
	}

	transactions := []core.Transaction{}
	for offset := 0; ; {
		var payload transactionsResponse
		if err := p.post(ctx, "/transactions/get", map[string]any{
			"access_token": accessToken,
			"start_date":   normalize.FormatDate(start),
			"end_date":     normalize.FormatDate(end),
			"options": map[string]any{
				"account_ids": []string{nativeID},
				"count":       transactionsPageSize,
				"offset":      offset,
			},
		}, &payload, "transactions"); err != nil {
			return nil, err
		}
		for _, native := range payload.Transactions {
			transactions = append(transactions, p.enricher.Enrich(transformTransaction(native, now)))
		}
		offset += len(payload.Transactions)
		if len(payload.Transactions) == 0 || offset >= payload.TotalTransactions {
			break
		}
	}
	return transactions, nil
}

func (p *Provider) GetInstitutions(ctx context.Context, filter core.InstitutionFilter) ([]core.Institution, error) {
	country, err := providers.CountryFilter(core.ProviderPlaid, filter)
	if err != nil {
		return nil, err
	}
	countryCodes := p.countryCodes
	if country != "" {
		countryCodes = []string{country}
	}
	var payload institutionsResponse
	if err := p.post(ctx, "/institutions/get", map[string]any{
		"count":         institutionsPageSize,
		"offset":        0,
		"country_codes": countryCodes,
		"options":       map[string]any{"include_optional_metadata": true},
	}, &payload, "institutions"); err != nil {
		return nil, err
	}
	now := p.now()
	institutions := make([]core.Institution, 0, len(payload.Institutions))
	for _, native := range payload.Institutions {
		institutions = append(institutions, transformInstitution(native, now))
	}
	return institutions, nil
}

// GetConnectionStatus reads /item/get. An item in ITEM_LOGIN_REQUIRED is
// disconnected; any other item error is reported as an error status.
func (p *Provider) GetConnectionStatus(ctx context.Context, accessToken string) (core.ConnectionStatus, error) {
	if err := providers.RequireAccessToken(core.ProviderPlaid, accessToken); err != nil {
		return core.ConnectionError, err
	}
	item, err := p.item(ctx, accessToken)
	if err != nil {
		return providers.ConnectionStatusFromError(err)
	}
	if item.Error != nil && item.Error.ErrorCode != "" {
		if item.Error.ErrorCode == errorCodeItemLoginRequired {
			return core.ConnectionDisconnected, nil
		}
		return core.ConnectionError, nil
	}
	return core.ConnectionConnected, nil
}

func (p *Provider) DeleteConnection(ctx context.Context, accessToken string) error {
	if err := providers.RequireAccessToken(core.ProviderPlaid, accessToken); err != nil {
		return err
	}
	return p.post(ctx, "/item/remove", map[string]any{"access_token": accessToken}, nil, "item remove")
}

func (p *Provider) HealthCheck(ctx context.Context) error {
	return providers.HealthCheck(ctx, p.client, transport.Request{Method: http.MethodGet, Path: "/"})
}

var _ core.Provider = (*Provider)(nil)
