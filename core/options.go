package core

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/goliatone/go-config/cfgx"
	opts "github.com/goliatone/go-options"
	"github.com/joho/godotenv"
)

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type StaticRawConfigLoader struct {
	Values map[string]any
}

func (l StaticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil || p.Loader == nil {
		return defaults, nil
	}
	raw, err := p.Loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, ConfigurationError("load raw config: %v", err)
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, asConfigurationError(err)
	}
	return cfg, nil
}

// envBindings maps process environment variables onto config paths.
var envBindings = []struct {
	env  string
	path []string
}{
	{"SERVICE_NAME", []string{"service_name"}},
	{"ENABLED_PROVIDERS", []string{"enabled_providers"}},
	{"GOCARDLESS_SECRET_ID", []string{"gocardless", "secret_id"}},
	{"GOCARDLESS_SECRET_KEY", []string{"gocardless", "secret_key"}},
	{"GOCARDLESS_ENVIRONMENT", []string{"gocardless", "environment"}},
	{"PLAID_CLIENT_ID", []string{"plaid", "client_id"}},
	{"PLAID_SECRET", []string{"plaid", "secret"}},
	{"PLAID_ENVIRONMENT", []string{"plaid", "environment"}},
	{"PLAID_COUNTRY_CODES", []string{"plaid", "country_codes"}},
	{"TELLER_API_KEY", []string{"teller", "api_key"}},
	{"TELLER_ENVIRONMENT", []string{"teller", "environment"}},
	{"WISE_CLIENT_ID", []string{"wise", "client_id"}},
	{"WISE_SECRET", []string{"wise", "client_secret"}},
	{"WISE_ENVIRONMENT", []string{"wise", "environment"}},
	{"TRUELAYER_CLIENT_ID", []string{"truelayer", "client_id"}},
	{"TRUELAYER_SECRET", []string{"truelayer", "client_secret"}},
	{"TRUELAYER_ENVIRONMENT", []string{"truelayer", "environment"}},
}

// EnvConfigLoader reads provider credentials from the process environment,
// optionally seeded from dotenv files. Process variables win over file values.
type EnvConfigLoader struct {
	Files  []string
	Lookup func(key string) (string, bool)
}

func NewEnvConfigLoader(files ...string) *EnvConfigLoader {
	return &EnvConfigLoader{Files: files, Lookup: os.LookupEnv}
}

func (l *EnvConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	fileValues := map[string]string{}
	if l != nil && len(l.Files) > 0 {
		existing := make([]string, 0, len(l.Files))
		for _, file := range l.Files {
			if _, err := os.Stat(file); err == nil {
				existing = append(existing, file)
			}
		}
		if len(existing) > 0 {
			read, err := godotenv.Read(existing...)
			if err != nil {
				return nil, fmt.Errorf("core: read env files: %w", err)
			}
			fileValues = read
		}
	}
	lookup := os.LookupEnv
	if l != nil && l.Lookup != nil {
		lookup = l.Lookup
	}

	raw := map[string]any{}
	for _, binding := range envBindings {
		value, ok := lookup(binding.env)
		if !ok {
			value, ok = fileValues[binding.env]
		}
		value = strings.TrimSpace(value)
		if !ok || value == "" {
			continue
		}
		var decoded any = value
		if binding.env == "ENABLED_PROVIDERS" || binding.env == "PLAID_COUNTRY_CODES" {
			decoded = splitList(value)
		}
		setPath(raw, binding.path, decoded)
	}
	return raw, nil
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func setPath(target map[string]any, path []string, value any) {
	current := target
	for _, segment := range path[:len(path)-1] {
		next, ok := current[segment].(map[string]any)
		if !ok {
			next = map[string]any{}
			current[segment] = next
		}
		current = next
	}
	current[path[len(path)-1]] = value
}

// GoOptionsResolver layers defaults < loaded < runtime config using go-options.
type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			configToLayerMap(defaults, true),
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			configToLayerMap(loaded, false),
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			configToLayerMap(runtime, false),
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, ConfigurationError("options stack build failed: %v", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, ConfigurationError("options merge failed: %v", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, asConfigurationError(err)
	}
	return resolved, nil
}

// LoadConfig loads through provider and layers runtime overrides on top.
func LoadConfig(ctx context.Context, provider ConfigProvider, runtime Config) (Config, error) {
	defaults := DefaultConfig()
	loaded := Config{}
	if provider != nil {
		cfg, err := provider.Load(ctx, defaults)
		if err != nil {
			return Config{}, err
		}
		loaded = cfg
	}
	return GoOptionsResolver{}.Resolve(defaults, loaded, runtime)
}

func asConfigurationError(err error) error {
	if IsKind(err, KindConfiguration) {
		return err
	}
	return ConfigurationError("%v", err)
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	put := func(path []string, value string) {
		if includeZero || strings.TrimSpace(value) != "" {
			setPath(layer, path, value)
		}
	}
	put([]string{"service_name"}, cfg.ServiceName)
	if includeZero || len(cfg.EnabledProviders) > 0 {
		layer["enabled_providers"] = append([]string(nil), cfg.EnabledProviders...)
	}
	if includeZero || cfg.Retry != (RetryPolicy{}) {
		layer["retry"] = map[string]any{
			"max_attempts":   cfg.Retry.MaxAttempts,
			"initial_delay":  cfg.Retry.InitialDelay,
			"max_delay":      cfg.Retry.MaxDelay,
			"backoff_factor": cfg.Retry.BackoffFactor,
		}
	}
	if includeZero || cfg.HTTP != (HTTPConfig{}) {
		layer["http"] = map[string]any{
			"timeout":            cfg.HTTP.Timeout,
			"connect_timeout":    cfg.HTTP.ConnectTimeout,
			"max_response_bytes": cfg.HTTP.MaxResponseBytes,
		}
	}

	put([]string{"gocardless", "secret_id"}, cfg.GoCardless.SecretID)
	put([]string{"gocardless", "secret_key"}, cfg.GoCardless.SecretKey)
	put([]string{"gocardless", "environment"}, cfg.GoCardless.Environment)
	put([]string{"gocardless", "base_url"}, cfg.GoCardless.BaseURL)

	put([]string{"plaid", "client_id"}, cfg.Plaid.ClientID)
	put([]string{"plaid", "secret"}, cfg.Plaid.Secret)
	put([]string{"plaid", "environment"}, cfg.Plaid.Environment)
	put([]string{"plaid", "base_url"}, cfg.Plaid.BaseURL)
	if includeZero || len(cfg.Plaid.CountryCodes) > 0 {
		setPath(layer, []string{"plaid", "country_codes"}, append([]string(nil), cfg.Plaid.CountryCodes...))
	}

	put([]string{"teller", "api_key"}, cfg.Teller.APIKey)
	put([]string{"teller", "environment"}, cfg.Teller.Environment)
	put([]string{"teller", "base_url"}, cfg.Teller.BaseURL)

	for name, client := range map[string]OAuthClientConfig{"wise": cfg.Wise, "truelayer": cfg.TrueLayer} {
		put([]string{name, "client_id"}, client.ClientID)
		put([]string{name, "client_secret"}, client.ClientSecret)
		put([]string{name, "environment"}, client.Environment)
		put([]string{name, "base_url"}, client.BaseURL)
		put([]string{name, "auth_url"}, client.AuthURL)
	}
	return layer
}
