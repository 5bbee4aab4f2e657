package core

import "strings"

// ExchangeTokenRequest carries an authorization code (or public token) back
// to the provider that issued it.
type ExchangeTokenRequest struct {
	Provider    ProviderName `json:"provider"`
	Code        string       `json:"code"`
	RedirectURI string       `json:"redirect_uri,omitempty"`
}

type RefreshTokenRequest struct {
	Provider     ProviderName `json:"provider"`
	RefreshToken string       `json:"refresh_token"`
}

// AccessRequest addresses a provider with a previously issued access token.
type AccessRequest struct {
	Provider    ProviderName `json:"provider"`
	AccessToken string       `json:"-"`
}

type BalanceRequest struct {
	AccessRequest
	AccountID string `json:"account_id"`
}

type TransactionsRequest struct {
	AccessRequest
	AccountID string    `json:"account_id"`
	Window    DateRange `json:"-"`
}

type InstitutionsRequest struct {
	Provider ProviderName      `json:"provider"`
	Filter   InstitutionFilter `json:"filter"`
}

// ParseProviderName trims a provider path or request value. Case is kept:
// registry lookups are exact, so "GoCardless" is not "gocardless". It does
// not check the name against KnownProviders.
func ParseProviderName(value string) ProviderName {
	return ProviderName(strings.TrimSpace(value))
}

func (p ProviderName) IsKnown() bool {
	for _, known := range KnownProviders() {
		if known == p {
			return true
		}
	}
	return false
}
