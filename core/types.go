package core

import (
	"strings"
	"time"
)

// ProviderName identifies one of the supported financial-data providers.
type ProviderName string

const (
	ProviderGoCardless ProviderName = "gocardless"
	ProviderPlaid      ProviderName = "plaid"
	ProviderTeller     ProviderName = "teller"
	ProviderWise       ProviderName = "wise"
	ProviderTrueLayer  ProviderName = "truelayer"
)

// KnownProviders lists every provider the registry can build, in a stable order.
func KnownProviders() []ProviderName {
	return []ProviderName{
		ProviderGoCardless,
		ProviderPlaid,
		ProviderTeller,
		ProviderWise,
		ProviderTrueLayer,
	}
}

func (p ProviderName) String() string { return string(p) }

type AccountType string

const (
	AccountTypeChecking   AccountType = "checking"
	AccountTypeSavings    AccountType = "savings"
	AccountTypeCredit     AccountType = "credit"
	AccountTypeInvestment AccountType = "investment"
	AccountTypeLoan       AccountType = "loan"
	AccountTypeOther      AccountType = "other"
)

// ParseAccountType maps a canonical account type string back to the enum.
// Unknown values resolve to AccountTypeOther.
func ParseAccountType(value string) AccountType {
	switch AccountType(strings.ToLower(strings.TrimSpace(value))) {
	case AccountTypeChecking:
		return AccountTypeChecking
	case AccountTypeSavings:
		return AccountTypeSavings
	case AccountTypeCredit:
		return AccountTypeCredit
	case AccountTypeInvestment:
		return AccountTypeInvestment
	case AccountTypeLoan:
		return AccountTypeLoan
	default:
		return AccountTypeOther
	}
}

type ConnectionStatus string

const (
	ConnectionConnected    ConnectionStatus = "connected"
	ConnectionDisconnected ConnectionStatus = "disconnected"
	ConnectionError        ConnectionStatus = "error"
)

type Balance struct {
	Current   float64  `json:"current"`
	Available *float64 `json:"available,omitempty"`
	Limit     *float64 `json:"limit,omitempty"`
	Currency  string   `json:"currency"`
}

type Account struct {
	ID            string       `json:"id"`
	Provider      ProviderName `json:"provider"`
	ConnectionID  string       `json:"connection_id,omitempty"`
	InstitutionID string       `json:"institution_id,omitempty"`
	Name          string       `json:"name"`
	Type          AccountType  `json:"account_type"`
	Balance       Balance      `json:"balance"`
	Currency      string       `json:"currency"`
	LastSync      time.Time    `json:"last_sync"`
}

type Transaction struct {
	ID          string       `json:"id"`
	Provider    ProviderName `json:"provider"`
	AccountID   string       `json:"account_id"`
	Amount      float64      `json:"amount"`
	Currency    string       `json:"currency"`
	Date        time.Time    `json:"date"`
	Description string       `json:"description"`
	Category    *string      `json:"category,omitempty"`
	Merchant    *string      `json:"merchant,omitempty"`
	Pending     bool         `json:"pending"`
}

type Institution struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Country      string       `json:"country"`
	Provider     ProviderName `json:"provider"`
	LogoURL      *string      `json:"logo_url,omitempty"`
	PrimaryColor *string      `json:"primary_color,omitempty"`
	URL          *string      `json:"url,omitempty"`
	OAuthSupport bool         `json:"oauth_support"`
	Products     []string     `json:"products"`
	LastUpdate   time.Time    `json:"last_update"`
}

type TokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken *string   `json:"refresh_token,omitempty"`
	ExpiresIn    int64     `json:"expires_in"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// DateRange bounds a transaction query. Nil ends are open.
type DateRange struct {
	From *time.Time
	To   *time.Time
}

// Contains reports whether t falls inside the range, inclusive on both ends.
func (r DateRange) Contains(t time.Time) bool {
	if r.From != nil && t.Before(*r.From) {
		return false
	}
	if r.To != nil && t.After(*r.To) {
		return false
	}
	return true
}

func (r DateRange) IsZero() bool {
	return r.From == nil && r.To == nil
}

// InstitutionFilter narrows get_institutions. Country is an ISO 3166 alpha-2
// code; empty means every country the provider serves.
type InstitutionFilter struct {
	Country string
}

// StringPtr returns nil for blank input so optional fields are never "".
func StringPtr(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func Float64Ptr(value float64) *float64 {
	return &value
}
