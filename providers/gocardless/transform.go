package gocardless

import (
	"strings"
	"time"

	"github.com/goliatone/go-banking/core"
	"github.com/goliatone/go-banking/normalize"
)

func transformAccount(native nativeAccount, now time.Time) core.Account {
	currency := normalize.Currency(native.Currency, "EUR")
	account := core.Account{
		ID:       core.PrefixID(core.ProviderGoCardless, native.ID),
		Provider: core.ProviderGoCardless,
		Name:     strings.TrimSpace(native.Name),
		Type:     normalize.GoCardlessAccountTypes.Map(native.AccountType),
		Balance:  transformBalance(native.Balance, currency),
		Currency: currency,
		LastSync: now.UTC(),
	}
	if native.ConnectionID != "" {
		account.ConnectionID = core.PrefixID(core.ProviderGoCardless, native.ConnectionID)
	}
	if native.InstitutionID != "" {
		account.InstitutionID = core.PrefixID(core.ProviderGoCardless, native.InstitutionID)
	}
	return account
}

func transformBalance(native nativeBalance, currency string) core.Balance {
	return core.Balance{
		Current:   native.Current,
		Available: native.Available,
		Limit:     native.Limit,
		Currency:  currency,
	}
}

// transformTransaction falls back to accountID when the payload omits it.
func transformTransaction(native nativeTransaction, accountID string, now time.Time) core.Transaction {
	nativeAccountID := native.AccountID
	if nativeAccountID == "" {
		nativeAccountID = accountID
	}
	return core.Transaction{
		ID:          core.PrefixID(core.ProviderGoCardless, native.ID),
		Provider:    core.ProviderGoCardless,
		AccountID:   core.PrefixID(core.ProviderGoCardless, nativeAccountID),
		Amount:      native.Amount,
		Currency:    normalize.Currency(native.Currency, "EUR"),
		Date:        normalize.ParseTimestamp(native.Date, now),
		Description: strings.TrimSpace(native.Description),
		Category:    optional(native.Category),
		Merchant:    optional(native.MerchantName),
		Pending:     normalize.IsPending(native.Status),
	}
}

func transformInstitution(native nativeInstitution, now time.Time) core.Institution {
	products := make([]string, 0, len(native.Capabilities))
	products = append(products, native.Capabilities...)
	return core.Institution{
		ID:           core.PrefixID(core.ProviderGoCardless, native.ID),
		Name:         strings.TrimSpace(native.Name),
		Country:      normalize.CountryCode(native.Country),
		Provider:     core.ProviderGoCardless,
		LogoURL:      normalize.LogoFallback(optional(native.LogoURL), native.ID),
		PrimaryColor: optional(native.Color),
		URL:          optional(native.URL),
		OAuthSupport: native.OAuthEnabled,
		Products:     products,
		LastUpdate:   now.UTC(),
	}
}

func optional(value *string) *string {
	if value == nil {
		return nil
	}
	return core.StringPtr(*value)
}
