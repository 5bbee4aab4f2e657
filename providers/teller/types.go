package teller

type enrollmentResponse struct {
	AccessToken  string `json:"access_token"`
	EnrollmentID string `json:"enrollment_id"`
}

type nativeAccount struct {
	ID           string            `json:"id"`
	EnrollmentID string            `json:"enrollment_id"`
	Name         string            `json:"name"`
	Type         string            `json:"type"`
	Subtype      string            `json:"subtype"`
	Currency     string            `json:"currency"`
	LastFour     string            `json:"last_four"`
	Status       string            `json:"status"`
	Institution  nativeInstitution `json:"institution"`
}

// nativeBalances carries Teller's decimal strings.
type nativeBalances struct {
	AccountID string  `json:"account_id"`
	Ledger    *string `json:"ledger"`
	Available *string `json:"available"`
}

type nativeTransaction struct {
	ID          string        `json:"id"`
	AccountID   string        `json:"account_id"`
	Amount      string        `json:"amount"`
	Date        string        `json:"date"`
	Description string        `json:"description"`
	Status      string        `json:"status"`
	Type        string        `json:"type"`
	Details     nativeDetails `json:"details"`
}

type nativeDetails struct {
	Category         *string             `json:"category"`
	ProcessingStatus string              `json:"processing_status"`
	Counterparty     *nativeCounterparty `json:"counterparty"`
}

type nativeCounterparty struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type nativeInstitution struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Products []string `json:"products"`
}
