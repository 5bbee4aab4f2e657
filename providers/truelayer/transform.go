package truelayer

import (
	"strings"
	"time"

	"github.com/goliatone/go-banking/core"
	"github.com/goliatone/go-banking/normalize"
)

const defaultCurrency = "GBP"

func transformAccount(native nativeAccount, credentialsID string, balance core.Balance, now time.Time) core.Account {
	currency := normalize.Currency(native.Currency, defaultCurrency)
	balance.Currency = normalize.Currency(balance.Currency, currency)
	account := core.Account{
		ID:       core.PrefixID(core.ProviderTrueLayer, native.AccountID),
		Provider: core.ProviderTrueLayer,
		Name:     strings.TrimSpace(native.DisplayName),
		Type:     normalize.TrueLayerAccountTypes.Map(native.AccountType),
		Balance:  balance,
		Currency: currency,
		LastSync: now.UTC(),
	}
	if credentialsID != "" {
		account.ConnectionID = core.PrefixID(core.ProviderTrueLayer, credentialsID)
	}
	if native.Provider.ProviderID != "" {
		account.InstitutionID = core.PrefixID(core.ProviderTrueLayer, native.Provider.ProviderID)
	}
	return account
}

// transformBalance reports the overdraft as the limit.
func transformBalance(native nativeBalance) core.Balance {
	return core.Balance{
		Current:   native.Current,
		Available: native.Available,
		Limit:     native.Overdraft,
		Currency:  normalize.Currency(native.Currency, defaultCurrency),
	}
}

// transformTransaction prefers the classification hierarchy over the flat
// transaction_category.
func transformTransaction(native nativeTransaction, nativeAccountID string, pending bool, now time.Time) core.Transaction {
	category := normalize.JoinCategory(native.TransactionClassification)
	if category == nil {
		category = core.StringPtr(strings.ToLower(native.TransactionCategory))
	}
	var merchant *string
	if native.MerchantName != nil {
		merchant = core.StringPtr(*native.MerchantName)
	}
	return core.Transaction{
		ID:          core.PrefixID(core.ProviderTrueLayer, native.TransactionID),
		Provider:    core.ProviderTrueLayer,
		AccountID:   core.PrefixID(core.ProviderTrueLayer, nativeAccountID),
		Amount:      native.Amount,
		Currency:    normalize.Currency(native.Currency, defaultCurrency),
		Date:        normalize.ParseTimestamp(native.Timestamp, now),
		Description: strings.TrimSpace(native.Description),
		Category:    category,
		Merchant:    merchant,
		Pending:     pending,
	}
}

// institutionCountry maps TrueLayer's "uk" onto ISO 3166 "GB".
func institutionCountry(raw string) string {
	code := normalize.CountryCode(raw)
	if code == "UK" {
		return "GB"
	}
	return code
}

func transformInstitution(native nativeInstitution, now time.Time) core.Institution {
	products := make([]string, 0, len(native.Scopes))
	products = append(products, native.Scopes...)
	return core.Institution{
		ID:           core.PrefixID(core.ProviderTrueLayer, native.ProviderID),
		Name:         strings.TrimSpace(native.DisplayName),
		Country:      institutionCountry(native.Country),
		Provider:     core.ProviderTrueLayer,
		LogoURL:      normalize.LogoFallback(core.StringPtr(native.LogoURL), native.ProviderID),
		OAuthSupport: true,
		Products:     products,
		LastUpdate:   now.UTC(),
	}
}
