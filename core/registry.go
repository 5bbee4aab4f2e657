package core

import (
	"context"
	"net"
	"net/http"
	"slices"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// Registry resolves provider names to adapters. It is built once and never
// mutated afterwards, so it is safe to share across goroutines without locks.
type Registry struct {
	providers map[ProviderName]Provider
	names     []ProviderName
}

func NewRegistry(providers ...Provider) (*Registry, error) {
	registry := &Registry{
		providers: make(map[ProviderName]Provider, len(providers)),
		names:     make([]ProviderName, 0, len(providers)),
	}
	for _, provider := range providers {
		if provider == nil {
			return nil, ConfigurationError("provider is nil")
		}
		name := provider.Name()
		if strings.TrimSpace(string(name)) == "" {
			return nil, ConfigurationError("provider name is required")
		}
		if _, exists := registry.providers[name]; exists {
			return nil, ConfigurationError("provider already registered: %s", name)
		}
		registry.providers[name] = provider
		registry.names = append(registry.names, name)
	}
	slices.Sort(registry.names)
	return registry, nil
}

// Get performs a case-sensitive lookup. Unknown names are configuration
// errors and never reach the network.
func (r *Registry) Get(name string) (Provider, error) {
	if r != nil {
		if provider, ok := r.providers[ProviderName(name)]; ok {
			return provider, nil
		}
	}
	return nil, ConfigurationError("provider %q is not configured", name)
}

func (r *Registry) Has(name string) bool {
	if r == nil {
		return false
	}
	_, ok := r.providers[ProviderName(name)]
	return ok
}

func (r *Registry) Names() []ProviderName {
	if r == nil {
		return nil
	}
	return slices.Clone(r.names)
}

func (r *Registry) List() []Provider {
	if r == nil {
		return nil
	}
	out := make([]Provider, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.providers[name])
	}
	return out
}

type registryBuilder struct {
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	doer            HTTPDoer
	retrySleep      func(ctx context.Context, delay time.Duration) error
	classifier      RetryClassifier
	rateLimiter     RateLimiter
	observe         bool
}

type RegistryOption func(*registryBuilder)

func WithLogger(logger Logger) RegistryOption {
	return func(b *registryBuilder) { b.logger = logger }
}

func WithLoggerProvider(provider LoggerProvider) RegistryOption {
	return func(b *registryBuilder) { b.loggerProvider = provider }
}

func WithMetricsRecorder(recorder MetricsRecorder) RegistryOption {
	return func(b *registryBuilder) { b.metricsRecorder = recorder }
}

func WithHTTPClient(doer HTTPDoer) RegistryOption {
	return func(b *registryBuilder) { b.doer = doer }
}

func WithRetrySleep(sleep func(ctx context.Context, delay time.Duration) error) RegistryOption {
	return func(b *registryBuilder) { b.retrySleep = sleep }
}

func WithRetryClassifier(classifier RetryClassifier) RegistryOption {
	return func(b *registryBuilder) { b.classifier = classifier }
}

func WithRateLimiter(limiter RateLimiter) RegistryOption {
	return func(b *registryBuilder) { b.rateLimiter = limiter }
}

// WithObservability wraps every adapter in ObservedProvider.
func WithObservability(enabled bool) RegistryOption {
	return func(b *registryBuilder) { b.observe = enabled }
}

// BuildRegistry validates cfg and constructs every active provider through
// its factory. Any missing credential fails the whole build.
func BuildRegistry(cfg Config, factories map[ProviderName]ProviderFactory, options ...RegistryOption) (*Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	builder := &registryBuilder{observe: true}
	for _, option := range options {
		if option != nil {
			option(builder)
		}
	}

	loggerProvider, logger := glog.Resolve(cfg.ServiceName, builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	doer := builder.doer
	if doer == nil {
		doer = NewHTTPClient(cfg.HTTP)
	}
	metrics := builder.metricsRecorder
	if metrics == nil {
		metrics = NopMetricsRecorder{}
	}

	providers := []Provider{}
	for _, name := range cfg.ActiveProviders() {
		factory, ok := factories[name]
		if !ok || factory == nil {
			return nil, ConfigurationError("no factory registered for provider %q", name)
		}
		providerLogger := logger
		if loggerProvider != nil {
			if named := loggerProvider.GetLogger(cfg.ServiceName + "." + string(name)); named != nil {
				providerLogger = named
			}
		}
		retrier := NewRetrier(cfg.Retry, providerLogger)
		retrier.Sleep = builder.retrySleep
		if builder.classifier != nil {
			retrier.Classifier = builder.classifier
		}
		provider, err := factory(cfg, ProviderDeps{
			Logger:      providerLogger,
			Retrier:     retrier,
			Doer:        doer,
			RateLimiter: builder.rateLimiter,
		})
		if err != nil {
			return nil, asConfigurationError(err)
		}
		if builder.observe {
			provider = NewObservedProvider(provider, providerLogger, metrics)
		}
		providers = append(providers, provider)
	}
	return NewRegistry(providers...)
}

// NewHTTPClient builds the single shared transport client with fixed
// connect and overall timeouts.
func NewHTTPClient(cfg HTTPConfig) *http.Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	connectTimeout := cfg.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = DefaultHTTPConnectTimeout
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: connectTimeout, KeepAlive: 30 * time.Second}).DialContext
	transport.TLSHandshakeTimeout = connectTimeout
	return &http.Client{Timeout: timeout, Transport: transport}
}
