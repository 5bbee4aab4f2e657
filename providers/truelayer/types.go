package truelayer

// resultsEnvelope wraps every data API response.
type resultsEnvelope[T any] struct {
	Results []T    `json:"results"`
	Status  string `json:"status"`
}

type nativeMe struct {
	ClientID      string         `json:"client_id"`
	CredentialsID string         `json:"credentials_id"`
	Provider      nativeProvider `json:"provider"`
}

type nativeProvider struct {
	ProviderID  string `json:"provider_id"`
	DisplayName string `json:"display_name"`
	LogoURI     string `json:"logo_uri"`
}

type nativeAccount struct {
	AccountID   string         `json:"account_id"`
	AccountType string         `json:"account_type"`
	DisplayName string         `json:"display_name"`
	Currency    string         `json:"currency"`
	Provider    nativeProvider `json:"provider"`
}

type nativeBalance struct {
	Currency  string   `json:"currency"`
	Available *float64 `json:"available"`
	Current   float64  `json:"current"`
	Overdraft *float64 `json:"overdraft"`
}

type nativeTransaction struct {
	TransactionID             string   `json:"transaction_id"`
	Timestamp                 string   `json:"timestamp"`
	Description               string   `json:"description"`
	Amount                    float64  `json:"amount"`
	Currency                  string   `json:"currency"`
	TransactionType           string   `json:"transaction_type"`
	TransactionCategory       string   `json:"transaction_category"`
	TransactionClassification []string `json:"transaction_classification"`
	MerchantName              *string  `json:"merchant_name"`
}

type nativeInstitution struct {
	ProviderID   string   `json:"provider_id"`
	DisplayName  string   `json:"display_name"`
	Country      string   `json:"country"`
	LogoURL      string   `json:"logo_url"`
	Scopes       []string `json:"scopes"`
	ReleaseStage string   `json:"release_stage"`
}
