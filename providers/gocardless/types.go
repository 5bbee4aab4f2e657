package gocardless

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

type accountsResponse struct {
	Accounts []nativeAccount `json:"accounts"`
}

type nativeAccount struct {
	ID            string        `json:"id"`
	ConnectionID  string        `json:"connection_id"`
	InstitutionID string        `json:"institution_id"`
	Name          string        `json:"name"`
	AccountType   string        `json:"account_type"`
	Currency      string        `json:"currency"`
	Balance       nativeBalance `json:"balance"`
}

type nativeBalance struct {
	Current   float64  `json:"current"`
	Available *float64 `json:"available"`
	Limit     *float64 `json:"limit"`
}

type transactionsResponse struct {
	Transactions []nativeTransaction `json:"transactions"`
}

type nativeTransaction struct {
	ID           string  `json:"id"`
	AccountID    string  `json:"account_id"`
	Date         string  `json:"date"`
	Description  string  `json:"description"`
	Amount       float64 `json:"amount"`
	Currency     string  `json:"currency"`
	Status       string  `json:"status"`
	Category     *string `json:"category"`
	MerchantName *string `json:"merchant_name"`
}

type nativeInstitution struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Country      string   `json:"country"`
	LogoURL      *string  `json:"logo_url"`
	Color        *string  `json:"color"`
	URL          *string  `json:"url"`
	OAuthEnabled bool     `json:"oauth_enabled"`
	Capabilities []string `json:"capabilities"`
}
