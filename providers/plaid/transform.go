package plaid

import (
	"strings"
	"time"

	"github.com/goliatone/go-banking/core"
	"github.com/goliatone/go-banking/normalize"
)

func transformAccount(native nativeAccount, itemID string, institutionID string, now time.Time) core.Account {
	balance := transformBalance(native.Balances)
	account := core.Account{
		ID:       core.PrefixID(core.ProviderPlaid, native.AccountID),
		Provider: core.ProviderPlaid,
		Name:     strings.TrimSpace(native.Name),
		Type:     normalize.PlaidAccountTypes.Map(native.Type),
		Balance:  balance,
		Currency: balance.Currency,
		LastSync: now.UTC(),
	}
	if itemID != "" {
		account.ConnectionID = core.PrefixID(core.ProviderPlaid, itemID)
	}
	if institutionID != "" {
		account.InstitutionID = core.PrefixID(core.ProviderPlaid, institutionID)
	}
	return account
}

// transformBalance treats a null current balance as zero.
func transformBalance(native nativeBalances) core.Balance {
	current := 0.0
	if native.Current != nil {
		current = *native.Current
	}
	currency := normalize.DefaultCurrency
	if native.ISOCurrencyCode != nil {
		currency = normalize.Currency(*native.ISOCurrencyCode, normalize.DefaultCurrency)
	}
	return core.Balance{
		Current:   current,
		Available: native.Available,
		Limit:     native.Limit,
		Currency:  currency,
	}
}

func transformTransaction(native nativeTransaction, now time.Time) core.Transaction {
	currency := normalize.DefaultCurrency
	if native.ISOCurrencyCode != nil {
		currency = normalize.Currency(*native.ISOCurrencyCode, normalize.DefaultCurrency)
	}
	var merchant *string
	if native.MerchantName != nil {
		merchant = core.StringPtr(*native.MerchantName)
	}
	return core.Transaction{
		ID:          core.PrefixID(core.ProviderPlaid, native.TransactionID),
		Provider:    core.ProviderPlaid,
		AccountID:   core.PrefixID(core.ProviderPlaid, native.AccountID),
		Amount:      native.Amount,
		Currency:    currency,
		Date:        normalize.ParseTimestamp(native.Date, now),
		Description: strings.TrimSpace(native.Name),
		Category:    normalize.JoinCategory(native.Category),
		Merchant:    merchant,
		Pending:     native.Pending,
	}
}

func transformInstitution(native nativeInstitution, now time.Time) core.Institution {
	country := "US"
	if len(native.CountryCodes) > 0 {
		country = normalize.CountryCode(native.CountryCodes[0])
	}
	products := make([]string, 0, len(native.Products))
	products = append(products, native.Products...)
	var color, link *string
	if native.PrimaryColor != nil {
		color = core.StringPtr(*native.PrimaryColor)
	}
	if native.URL != nil {
		link = core.StringPtr(*native.URL)
	}
	return core.Institution{
		ID:           core.PrefixID(core.ProviderPlaid, native.InstitutionID),
		Name:         strings.TrimSpace(native.Name),
		Country:      country,
		Provider:     core.ProviderPlaid,
		LogoURL:      normalize.LogoFallback(logoURL(native.Logo), native.InstitutionID),
		PrimaryColor: color,
		URL:          link,
		OAuthSupport: native.OAuth,
		Products:     products,
		LastUpdate:   now.UTC(),
	}
}

// logoURL passes URLs through and wraps Plaid's base64 PNG payloads in a
// data URL.
func logoURL(logo *string) *string {
	if logo == nil {
		return nil
	}
	value := strings.TrimSpace(*logo)
	switch {
	case value == "":
		return nil
	case strings.HasPrefix(value, "http://"), strings.HasPrefix(value, "https://"), strings.HasPrefix(value, "data:"):
		return &value
	default:
		value = "data:image/png;base64," + value
		return &value
	}
}
