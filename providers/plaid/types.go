package plaid

type exchangeResponse struct {
	AccessToken string `json:"access_token"`
	ItemID      string `json:"item_id"`
	RequestID   string `json:"request_id"`
}

type itemResponse struct {
	Item nativeItem `json:"item"`
}

type nativeItem struct {
	ItemID        string          `json:"item_id"`
	InstitutionID string          `json:"institution_id"`
	Error         *nativeAPIError `json:"error"`
}

type nativeAPIError struct {
	ErrorType      string `json:"error_type"`
	ErrorCode      string `json:"error_code"`
	ErrorMessage   string `json:"error_message"`
	DisplayMessage string `json:"display_message"`
}

type accountsResponse struct {
	Accounts []nativeAccount `json:"accounts"`
	Item     nativeItem      `json:"item"`
}

type nativeAccount struct {
	AccountID string         `json:"account_id"`
	Name      string         `json:"name"`
	Type      string         `json:"type"`
	Subtype   string         `json:"subtype"`
	Balances  nativeBalances `json:"balances"`
}

type nativeBalances struct {
	Current         *float64 `json:"current"`
	Available       *float64 `json:"available"`
	Limit           *float64 `json:"limit"`
	ISOCurrencyCode *string  `json:"iso_currency_code"`
}

type transactionsResponse struct {
	Accounts          []nativeAccount     `json:"accounts"`
	Transactions      []nativeTransaction `json:"transactions"`
	TotalTransactions int                 `json:"total_transactions"`
}

type nativeTransaction struct {
	TransactionID   string   `json:"transaction_id"`
	AccountID       string   `json:"account_id"`
	Date            string   `json:"date"`
	Name            string   `json:"name"`
	Amount          float64  `json:"amount"`
	ISOCurrencyCode *string  `json:"iso_currency_code"`
	Category        []string `json:"category"`
	MerchantName    *string  `json:"merchant_name"`
	Pending         bool     `json:"pending"`
}

type institutionsResponse struct {
	Institutions []nativeInstitution `json:"institutions"`
	Total        int                 `json:"total"`
}

type nativeInstitution struct {
	InstitutionID string   `json:"institution_id"`
	Name          string   `json:"name"`
	CountryCodes  []string `json:"country_codes"`
	Products      []string `json:"products"`
	Logo          *string  `json:"logo"`
	PrimaryColor  *string  `json:"primary_color"`
	URL           *string  `json:"url"`
	OAuth         bool     `json:"oauth"`
}
