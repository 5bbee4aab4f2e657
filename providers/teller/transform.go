package teller

import (
	"strings"
	"time"

	"github.com/goliatone/go-banking/core"
	"github.com/goliatone/go-banking/normalize"
)

func transformAccount(native nativeAccount, balance core.Balance, now time.Time) core.Account {
	currency := normalize.Currency(native.Currency, normalize.DefaultCurrency)
	balance.Currency = currency
	account := core.Account{
		ID:       core.PrefixID(core.ProviderTeller, native.ID),
		Provider: core.ProviderTeller,
		Name:     strings.TrimSpace(native.Name),
		Type:     normalize.TellerAccountTypes.Map(native.Type),
		Balance:  balance,
		Currency: currency,
		LastSync: now.UTC(),
	}
	if native.EnrollmentID != "" {
		account.ConnectionID = core.PrefixID(core.ProviderTeller, native.EnrollmentID)
	}
	if native.Institution.ID != "" {
		account.InstitutionID = core.PrefixID(core.ProviderTeller, native.Institution.ID)
	}
	return account
}

// transformBalance uses the ledger as the current balance.
func transformBalance(native nativeBalances, currency string) (core.Balance, error) {
	balance := core.Balance{Currency: normalize.Currency(currency, normalize.DefaultCurrency)}
	if native.Ledger != nil {
		current, err := normalize.ParseAmount(*native.Ledger)
		if err != nil {
			return core.Balance{}, err
		}
		balance.Current = current
	}
	available, err := normalize.ParseOptionalAmount(native.Available)
	if err != nil {
		return core.Balance{}, err
	}
	balance.Available = available
	return balance, nil
}

func transformTransaction(native nativeTransaction, accountID string, currency string, now time.Time) (core.Transaction, error) {
	amount, err := normalize.ParseAmount(native.Amount)
	if err != nil {
		return core.Transaction{}, err
	}
	nativeAccountID := native.AccountID
	if nativeAccountID == "" {
		nativeAccountID = accountID
	}
	var category, merchant *string
	if native.Details.Category != nil {
		category = core.StringPtr(*native.Details.Category)
	}
	if native.Details.Counterparty != nil {
		merchant = core.StringPtr(native.Details.Counterparty.Name)
	}
	return core.Transaction{
		ID:          core.PrefixID(core.ProviderTeller, native.ID),
		Provider:    core.ProviderTeller,
		AccountID:   core.PrefixID(core.ProviderTeller, nativeAccountID),
		Amount:      amount,
		Currency:    normalize.Currency(currency, normalize.DefaultCurrency),
		Date:        normalize.ParseTimestamp(native.Date, now),
		Description: strings.TrimSpace(native.Description),
		Category:    category,
		Merchant:    merchant,
		Pending:     normalize.IsPending(native.Status),
	}, nil
}

// transformInstitution assumes US coverage and OAuth-style enrollment for
// every Teller institution.
func transformInstitution(native nativeInstitution, now time.Time) core.Institution {
	products := make([]string, 0, len(native.Products))
	products = append(products, native.Products...)
	return core.Institution{
		ID:           core.PrefixID(core.ProviderTeller, native.ID),
		Name:         strings.TrimSpace(native.Name),
		Country:      "US",
		Provider:     core.ProviderTeller,
		LogoURL:      normalize.LogoFallback(nil, native.ID),
		OAuthSupport: true,
		Products:     products,
		LastUpdate:   now.UTC(),
	}
}
