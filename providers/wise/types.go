package wise

type nativeProfile struct {
	ID       int64  `json:"id"`
	Type     string `json:"type"`
	FullName string `json:"fullName"`
}

type nativeMoney struct {
	Value    float64 `json:"value"`
	Currency string  `json:"currency"`
}

type nativeBalance struct {
	ID             int64        `json:"id"`
	Currency       string       `json:"currency"`
	Type           string       `json:"type"`
	Name           *string      `json:"name"`
	Amount         nativeMoney  `json:"amount"`
	ReservedAmount *nativeMoney `json:"reservedAmount"`
	CashAmount     *nativeMoney `json:"cashAmount"`
}

type statementResponse struct {
	Transactions []nativeTransaction `json:"transactions"`
}

type nativeTransaction struct {
	Type            string        `json:"type"`
	Date            string        `json:"date"`
	Amount          nativeMoney   `json:"amount"`
	ReferenceNumber string        `json:"referenceNumber"`
	Details         nativeDetails `json:"details"`
}

type nativeDetails struct {
	Type        string          `json:"type"`
	Description string          `json:"description"`
	Category    *string         `json:"category"`
	Merchant    *nativeMerchant `json:"merchant"`
}

type nativeMerchant struct {
	Name     string `json:"name"`
	Category string `json:"category"`
}
