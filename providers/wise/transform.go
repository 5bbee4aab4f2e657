package wise

import (
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-banking/core"
	"github.com/goliatone/go-banking/normalize"
)

const (
	institutionKey     = "wise"
	institutionCountry = "GB"
)

// accountKey joins a profile and balance id into the native account id.
func accountKey(profileID int64, balanceID int64) string {
	return strconv.FormatInt(profileID, 10) + "-" + strconv.FormatInt(balanceID, 10)
}

// splitAccountKey reverses accountKey.
func splitAccountKey(native string) (string, string, bool) {
	profileID, balanceID, ok := strings.Cut(native, "-")
	if !ok || profileID == "" || balanceID == "" {
		return "", "", false
	}
	if _, err := strconv.ParseInt(profileID, 10, 64); err != nil {
		return "", "", false
	}
	if _, err := strconv.ParseInt(balanceID, 10, 64); err != nil {
		return "", "", false
	}
	return profileID, balanceID, true
}

func transformAccount(profile nativeProfile, native nativeBalance, now time.Time) core.Account {
	balance := transformBalance(native)
	name := balance.Currency + " balance"
	if native.Name != nil && strings.TrimSpace(*native.Name) != "" {
		name = strings.TrimSpace(*native.Name)
	}
	accountType := core.AccountTypeChecking
	if strings.EqualFold(native.Type, "SAVINGS") {
		accountType = core.AccountTypeSavings
	}
	return core.Account{
		ID:            core.PrefixID(core.ProviderWise, accountKey(profile.ID, native.ID)),
		Provider:      core.ProviderWise,
		ConnectionID:  core.PrefixID(core.ProviderWise, strconv.FormatInt(profile.ID, 10)),
		InstitutionID: core.PrefixID(core.ProviderWise, institutionKey),
		Name:          name,
		Type:          accountType,
		Balance:       balance,
		Currency:      balance.Currency,
		LastSync:      now.UTC(),
	}
}

// transformBalance reports the cash amount as available when Wise sends it.
func transformBalance(native nativeBalance) core.Balance {
	currency := normalize.Currency(native.Currency, normalize.Currency(native.Amount.Currency, "EUR"))
	balance := core.Balance{
		Current:  native.Amount.Value,
		Currency: currency,
	}
	if native.CashAmount != nil {
		balance.Available = core.Float64Ptr(native.CashAmount.Value)
	}
	return balance
}

// transformTransaction signs the amount by entry type: DEBIT entries are
// negative. Statement entries are always settled.
func transformTransaction(native nativeTransaction, nativeAccountID string, now time.Time) core.Transaction {
	amount := native.Amount.Value
	if strings.EqualFold(native.Type, "DEBIT") && amount > 0 {
		amount = -amount
	}
	var category, merchant *string
	if native.Details.Category != nil {
		category = core.StringPtr(*native.Details.Category)
	}
	if native.Details.Merchant != nil {
		merchant = core.StringPtr(native.Details.Merchant.Name)
		if category == nil {
			category = core.StringPtr(native.Details.Merchant.Category)
		}
	}
	return core.Transaction{
		ID:          core.PrefixID(core.ProviderWise, native.ReferenceNumber),
		Provider:    core.ProviderWise,
		AccountID:   core.PrefixID(core.ProviderWise, nativeAccountID),
		Amount:      amount,
		Currency:    normalize.Currency(native.Amount.Currency, "EUR"),
		Date:        normalize.ParseTimestamp(native.Date, now),
		Description: strings.TrimSpace(native.Details.Description),
		Category:    category,
		Merchant:    merchant,
		Pending:     false,
	}
}

func wiseInstitution(now time.Time) core.Institution {
	return core.Institution{
		ID:           core.PrefixID(core.ProviderWise, institutionKey),
		Name:         "Wise",
		Country:      institutionCountry,
		Provider:     core.ProviderWise,
		LogoURL:      normalize.LogoFallback(nil, institutionKey),
		URL:          core.StringPtr("https://wise.com"),
		OAuthSupport: true,
		Products:     []string{"accounts", "balances", "transactions"},
		LastUpdate:   now.UTC(),
	}
}
