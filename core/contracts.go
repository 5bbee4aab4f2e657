package core

import (
	"context"
	"net/http"

	glog "github.com/goliatone/go-logger/glog"
)

// Provider is the capability contract every adapter satisfies. It is the
// only surface the routing layer calls.
type Provider interface {
	Name() ProviderName

	ExchangeToken(ctx context.Context, code string, redirectURI string) (TokenResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (TokenResponse, error)

	GetAccounts(ctx context.Context, accessToken string) ([]Account, error)
	GetAccountBalance(ctx context.Context, accessToken string, accountID string) (Balance, error)
	GetTransactions(ctx context.Context, accessToken string, accountID string, window DateRange) ([]Transaction, error)
	GetInstitutions(ctx context.Context, filter InstitutionFilter) ([]Institution, error)

	GetConnectionStatus(ctx context.Context, accessToken string) (ConnectionStatus, error)
	DeleteConnection(ctx context.Context, accessToken string) error

	HealthCheck(ctx context.Context) error
}

// ProviderFactory builds one adapter from the resolved configuration.
type ProviderFactory func(cfg Config, deps ProviderDeps) (Provider, error)

// ProviderDeps are the shared collaborators handed to every factory.
type ProviderDeps struct {
	Logger      Logger
	Retrier     *Retrier
	Doer        HTTPDoer
	RateLimiter RateLimiter
}

// RateLimiter gates outbound calls on throttling signals (429, Retry-After,
// x-ratelimit-* headers) seen in earlier responses from the same provider.
type RateLimiter interface {
	BeforeCall(ctx context.Context, provider ProviderName) error
	AfterCall(ctx context.Context, provider ProviderName, status int, headers http.Header) error
}

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

func ensureLogger(logger Logger) Logger {
	return glog.Ensure(logger)
}
