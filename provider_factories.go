package banking

import (
	"github.com/goliatone/go-banking/core"
	"github.com/goliatone/go-banking/providers/gocardless"
	"github.com/goliatone/go-banking/providers/plaid"
	"github.com/goliatone/go-banking/providers/teller"
	"github.com/goliatone/go-banking/providers/truelayer"
	"github.com/goliatone/go-banking/providers/wise"
)

// DefaultFactories maps every known provider to its adapter factory.
func DefaultFactories() map[core.ProviderName]core.ProviderFactory {
	return map[core.ProviderName]core.ProviderFactory{
		core.ProviderGoCardless: gocardless.Factory,
		core.ProviderPlaid:      plaid.Factory,
		core.ProviderTeller:     teller.Factory,
		core.ProviderWise:       wise.Factory,
		core.ProviderTrueLayer:  truelayer.Factory,
	}
}

// NewRegistry builds the provider registry for cfg with the built-in
// adapters.
func NewRegistry(cfg core.Config, opts ...core.RegistryOption) (*core.Registry, error) {
	return core.BuildRegistry(cfg, DefaultFactories(), opts...)
}

func GoCardlessProvider(cfg core.GoCardlessConfig, deps core.ProviderDeps) (core.Provider, error) {
	return asProvider(gocardless.New(cfg, deps))
}

func PlaidProvider(cfg core.PlaidConfig, deps core.ProviderDeps) (core.Provider, error) {
	return asProvider(plaid.New(cfg, deps))
}

func TellerProvider(cfg core.TellerConfig, deps core.ProviderDeps) (core.Provider, error) {
	return asProvider(teller.New(cfg, deps))
}

func WiseProvider(cfg core.OAuthClientConfig, deps core.ProviderDeps) (core.Provider, error) {
	return asProvider(wise.New(cfg, deps))
}

func TrueLayerProvider(cfg core.OAuthClientConfig, deps core.ProviderDeps) (core.Provider, error) {
	return asProvider(truelayer.New(cfg, deps))
}

// asProvider keeps a failed constructor from leaking a typed nil.
func asProvider[P core.Provider](provider P, err error) (core.Provider, error) {
	if err != nil {
		return nil, err
	}
	return provider, nil
}
