package core

import (
	"slices"
	"strings"
	"time"
)

const (
	EnvironmentSandbox     = "sandbox"
	EnvironmentDevelopment = "development"
	EnvironmentProduction  = "production"
)

const (
	DefaultHTTPTimeout        = 30 * time.Second
	DefaultHTTPConnectTimeout = 10 * time.Second
	DefaultMaxResponseBytes   = int64(10 << 20)
)

type HTTPConfig struct {
	Timeout          time.Duration `koanf:"timeout" mapstructure:"timeout"`
	ConnectTimeout   time.Duration `koanf:"connect_timeout" mapstructure:"connect_timeout"`
	MaxResponseBytes int64         `koanf:"max_response_bytes" mapstructure:"max_response_bytes"`
}

type GoCardlessConfig struct {
	SecretID    string `koanf:"secret_id" mapstructure:"secret_id"`
	SecretKey   string `koanf:"secret_key" mapstructure:"secret_key"`
	Environment string `koanf:"environment" mapstructure:"environment"`
	BaseURL     string `koanf:"base_url" mapstructure:"base_url"`
}

type PlaidConfig struct {
	ClientID     string   `koanf:"client_id" mapstructure:"client_id"`
	Secret       string   `koanf:"secret" mapstructure:"secret"`
	Environment  string   `koanf:"environment" mapstructure:"environment"`
	CountryCodes []string `koanf:"country_codes" mapstructure:"country_codes"`
	BaseURL      string   `koanf:"base_url" mapstructure:"base_url"`
}

type TellerConfig struct {
	APIKey      string `koanf:"api_key" mapstructure:"api_key"`
	Environment string `koanf:"environment" mapstructure:"environment"`
	BaseURL     string `koanf:"base_url" mapstructure:"base_url"`
}

// OAuthClientConfig covers providers that use a standard OAuth2 client
// credential pair (Wise, TrueLayer).
type OAuthClientConfig struct {
	ClientID     string `koanf:"client_id" mapstructure:"client_id"`
	ClientSecret string `koanf:"client_secret" mapstructure:"client_secret"`
	Environment  string `koanf:"environment" mapstructure:"environment"`
	BaseURL      string `koanf:"base_url" mapstructure:"base_url"`
	AuthURL      string `koanf:"auth_url" mapstructure:"auth_url"`
}

type Config struct {
	ServiceName      string            `koanf:"service_name" mapstructure:"service_name"`
	EnabledProviders []string          `koanf:"enabled_providers" mapstructure:"enabled_providers"`
	Retry            RetryPolicy       `koanf:"retry" mapstructure:"retry"`
	HTTP             HTTPConfig        `koanf:"http" mapstructure:"http"`
	GoCardless       GoCardlessConfig  `koanf:"gocardless" mapstructure:"gocardless"`
	Plaid            PlaidConfig       `koanf:"plaid" mapstructure:"plaid"`
	Teller           TellerConfig      `koanf:"teller" mapstructure:"teller"`
	Wise             OAuthClientConfig `koanf:"wise" mapstructure:"wise"`
	TrueLayer        OAuthClientConfig `koanf:"truelayer" mapstructure:"truelayer"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "banking",
		Retry:       DefaultRetryPolicy(),
		HTTP: HTTPConfig{
			Timeout:          DefaultHTTPTimeout,
			ConnectTimeout:   DefaultHTTPConnectTimeout,
			MaxResponseBytes: DefaultMaxResponseBytes,
		},
		GoCardless: GoCardlessConfig{Environment: EnvironmentSandbox},
		Plaid: PlaidConfig{
			Environment:  EnvironmentSandbox,
			CountryCodes: []string{"US", "CA", "GB"},
		},
		Teller:    TellerConfig{Environment: EnvironmentSandbox},
		Wise:      OAuthClientConfig{Environment: EnvironmentSandbox},
		TrueLayer: OAuthClientConfig{Environment: EnvironmentSandbox},
	}
}

// NormalizeEnvironment lower-cases env and defaults blanks to sandbox.
func NormalizeEnvironment(env string) string {
	env = strings.ToLower(strings.TrimSpace(env))
	if env == "" {
		return EnvironmentSandbox
	}
	return env
}

func validEnvironment(env string) bool {
	switch NormalizeEnvironment(env) {
	case EnvironmentSandbox, EnvironmentDevelopment, EnvironmentProduction:
		return true
	default:
		return false
	}
}

// credentialFields returns the named required credentials of one provider.
func (c Config) credentialFields(provider ProviderName) (fields map[string]string, env string) {
	switch provider {
	case ProviderGoCardless:
		return map[string]string{"secret_id": c.GoCardless.SecretID, "secret_key": c.GoCardless.SecretKey}, c.GoCardless.Environment
	case ProviderPlaid:
		return map[string]string{"client_id": c.Plaid.ClientID, "secret": c.Plaid.Secret}, c.Plaid.Environment
	case ProviderTeller:
		return map[string]string{"api_key": c.Teller.APIKey}, c.Teller.Environment
	case ProviderWise:
		return map[string]string{"client_id": c.Wise.ClientID, "client_secret": c.Wise.ClientSecret}, c.Wise.Environment
	case ProviderTrueLayer:
		return map[string]string{"client_id": c.TrueLayer.ClientID, "client_secret": c.TrueLayer.ClientSecret}, c.TrueLayer.Environment
	default:
		return nil, ""
	}
}

// ActiveProviders resolves which adapters the registry builds. An explicit
// enabled_providers list wins; otherwise every provider with at least one
// credential field set is active.
func (c Config) ActiveProviders() []ProviderName {
	if len(c.EnabledProviders) > 0 {
		out := make([]ProviderName, 0, len(c.EnabledProviders))
		for _, name := range c.EnabledProviders {
			provider := ProviderName(strings.TrimSpace(name))
			if provider == "" || slices.Contains(out, provider) {
				continue
			}
			out = append(out, provider)
		}
		return out
	}
	out := []ProviderName{}
	for _, provider := range KnownProviders() {
		fields, _ := c.credentialFields(provider)
		for _, value := range fields {
			if strings.TrimSpace(value) != "" {
				out = append(out, provider)
				break
			}
		}
	}
	return out
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return ConfigurationError("service_name is required")
	}
	if err := c.Retry.Validate(); err != nil {
		return err
	}
	if c.HTTP.Timeout < 0 || c.HTTP.ConnectTimeout < 0 {
		return ConfigurationError("http timeouts must not be negative")
	}
	for _, provider := range c.ActiveProviders() {
		if Prefix(provider) == "" {
			return ConfigurationError("unknown provider %q", provider)
		}
		fields, env := c.credentialFields(provider)
		keys := make([]string, 0, len(fields))
		for key := range fields {
			keys = append(keys, key)
		}
		slices.Sort(keys)
		for _, key := range keys {
			if strings.TrimSpace(fields[key]) == "" {
				return ConfigurationError("%s.%s is required", provider, key)
			}
		}
		if !validEnvironment(env) {
			return ConfigurationError("%s.environment %q is not supported", provider, env)
		}
	}
	return nil
}
