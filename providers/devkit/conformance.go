package devkit

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-banking/core"
)

// ValidateAccounts checks canonical account invariants: provider-prefixed
// ids, matching provider field and a currency on every balance.
func ValidateAccounts(provider core.ProviderName, accounts []core.Account) error {
	for _, account := range accounts {
		if !core.HasPrefix(provider, account.ID) {
			return fmt.Errorf("devkit: account id %q is missing the %s prefix", account.ID, provider)
		}
		if account.Provider != provider {
			return fmt.Errorf("devkit: account %q reports provider %q", account.ID, account.Provider)
		}
		if strings.TrimSpace(account.Currency) == "" {
			return fmt.Errorf("devkit: account %q has no currency", account.ID)
		}
	}
	return nil
}

func ValidateTransactions(provider core.ProviderName, transactions []core.Transaction) error {
	for _, tx := range transactions {
		if !core.HasPrefix(provider, tx.ID) || !core.HasPrefix(provider, tx.AccountID) {
			return fmt.Errorf("devkit: transaction %q / account %q is missing the %s prefix", tx.ID, tx.AccountID, provider)
		}
		if tx.Category != nil && *tx.Category == "" {
			return fmt.Errorf("devkit: transaction %q has an empty category", tx.ID)
		}
		if tx.Date.IsZero() {
			return fmt.Errorf("devkit: transaction %q has no date", tx.ID)
		}
	}
	return nil
}

func ValidateInstitutions(provider core.ProviderName, institutions []core.Institution) error {
	for _, institution := range institutions {
		if !core.HasPrefix(provider, institution.ID) {
			return fmt.Errorf("devkit: institution id %q is missing the %s prefix", institution.ID, provider)
		}
		if institution.Provider != provider {
			return fmt.Errorf("devkit: institution %q reports provider %q", institution.ID, institution.Provider)
		}
	}
	return nil
}

// ValidateProviderConformance exercises the read surface of an adapter wired
// to a scripted doer and checks the canonical invariants. Blank tokens must be
// rejected as validation errors before any request is issued.
func ValidateProviderConformance(ctx context.Context, provider core.Provider, accessToken string, doer *FakeDoer) error {
	if provider == nil {
		return fmt.Errorf("devkit: provider is required")
	}
	name := provider.Name()
	if core.Prefix(name) == "" {
		return fmt.Errorf("devkit: provider %q has no id prefix", name)
	}

	before := 0
	if doer != nil {
		before = len(doer.Requests())
	}
	if _, err := provider.GetAccounts(ctx, " "); !core.IsKind(err, core.KindValidation) {
		return fmt.Errorf("devkit: blank access token should be a validation error, got %v", err)
	}
	if doer != nil && len(doer.Requests()) != before {
		return fmt.Errorf("devkit: blank access token reached the network")
	}

	accounts, err := provider.GetAccounts(ctx, accessToken)
	if err != nil {
		return fmt.Errorf("devkit: get accounts: %w", err)
	}
	if err := ValidateAccounts(name, accounts); err != nil {
		return err
	}
	for _, account := range accounts {
		transactions, err := provider.GetTransactions(ctx, accessToken, account.ID, core.DateRange{})
		if err != nil {
			return fmt.Errorf("devkit: get transactions for %s: %w", account.ID, err)
		}
		if err := ValidateTransactions(name, transactions); err != nil {
			return err
		}
	}

	institutions, err := provider.GetInstitutions(ctx, core.InstitutionFilter{})
	if err != nil {
		return fmt.Errorf("devkit: get institutions: %w", err)
	}
	return ValidateInstitutions(name, institutions)
}
