package normalize

import (
	"strings"

	"github.com/goliatone/go-banking/core"
)

// AccountTypeTable maps native account type strings onto canonical types.
// Lookup is total: anything unknown is AccountTypeOther.
type AccountTypeTable struct {
	entries map[string]core.AccountType
}

func NewAccountTypeTable(entries map[string]core.AccountType) AccountTypeTable {
	copied := make(map[string]core.AccountType, len(entries))
	for native, canonical := range entries {
		copied[strings.ToLower(strings.TrimSpace(native))] = canonical
	}
	return AccountTypeTable{entries: copied}
}

func (t AccountTypeTable) Map(native string) core.AccountType {
	if canonical, ok := t.entries[strings.ToLower(strings.TrimSpace(native))]; ok {
		return canonical
	}
	return core.AccountTypeOther
}

var (
	GoCardlessAccountTypes = NewAccountTypeTable(map[string]core.AccountType{
		"current":     core.AccountTypeChecking,
		"savings":     core.AccountTypeSavings,
		"credit_card": core.AccountTypeCredit,
	})

	PlaidAccountTypes = NewAccountTypeTable(map[string]core.AccountType{
		"depository": core.AccountTypeChecking,
		"credit":     core.AccountTypeCredit,
		"loan":       core.AccountTypeLoan,
		"investment": core.AccountTypeInvestment,
	})

	TellerAccountTypes = NewAccountTypeTable(map[string]core.AccountType{
		"depository": core.AccountTypeChecking,
		"credit":     core.AccountTypeCredit,
	})

	TrueLayerAccountTypes = NewAccountTypeTable(map[string]core.AccountType{
		"TRANSACTION":          core.AccountTypeChecking,
		"BUSINESS_TRANSACTION": core.AccountTypeChecking,
		"SAVINGS":              core.AccountTypeSavings,
		"BUSINESS_SAVINGS":     core.AccountTypeSavings,
	})
)
