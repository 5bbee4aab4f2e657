package query

import (
	"strings"

	"github.com/goliatone/go-banking/core"
)

const (
	TypeListAccounts        = "banking.query.accounts.list"
	TypeGetBalance          = "banking.query.accounts.balance"
	TypeListTransactions    = "banking.query.transactions.list"
	TypeListInstitutions    = "banking.query.institutions.list"
	TypeGetConnectionStatus = "banking.query.connection.status"
	TypeCheckHealth         = "banking.query.health.check"
	TypeGetSyncJob          = "banking.query.sync_job.get"
)

type ListAccountsMessage struct {
	Request core.AccessRequest
}

func (ListAccountsMessage) Type() string { return TypeListAccounts }

func (m ListAccountsMessage) Validate() error {
	return validateAccess(m.Request)
}

type GetBalanceMessage struct {
	Request core.BalanceRequest
}

func (GetBalanceMessage) Type() string { return TypeGetBalance }

func (m GetBalanceMessage) Validate() error {
	if err := validateAccess(m.Request.AccessRequest); err != nil {
		return err
	}
	if strings.TrimSpace(m.Request.AccountID) == "" {
		return queryValidationError("account_id", "account id is required")
	}
	return nil
}

type ListTransactionsMessage struct {
	Request core.TransactionsRequest
}

func (ListTransactionsMessage) Type() string { return TypeListTransactions }

func (m ListTransactionsMessage) Validate() error {
	if err := validateAccess(m.Request.AccessRequest); err != nil {
		return err
	}
	if strings.TrimSpace(m.Request.AccountID) == "" {
		return queryValidationError("account_id", "account id is required")
	}
	window := m.Request.Window
	if window.From != nil && window.To != nil && window.From.After(*window.To) {
		return queryValidationError("window", "from must not be after to")
	}
	return nil
}

type ListInstitutionsMessage struct {
	Request core.InstitutionsRequest
}

func (ListInstitutionsMessage) Type() string { return TypeListInstitutions }

func (m ListInstitutionsMessage) Validate() error {
	return validateProvider(m.Request.Provider)
}

type GetConnectionStatusMessage struct {
	Request core.AccessRequest
}

func (GetConnectionStatusMessage) Type() string { return TypeGetConnectionStatus }

func (m GetConnectionStatusMessage) Validate() error {
	return validateAccess(m.Request)
}

// CheckHealthMessage checks the named providers, or every registered one
// when Providers is empty.
type CheckHealthMessage struct {
	Providers []core.ProviderName
}

func (CheckHealthMessage) Type() string { return TypeCheckHealth }

func (m CheckHealthMessage) Validate() error {
	for _, provider := range m.Providers {
		if err := validateProvider(provider); err != nil {
			return err
		}
	}
	return nil
}

type GetSyncJobMessage struct {
	JobID string
}

func (GetSyncJobMessage) Type() string { return TypeGetSyncJob }

func (m GetSyncJobMessage) Validate() error {
	if strings.TrimSpace(m.JobID) == "" {
		return queryValidationError("job_id", "job id is required")
	}
	return nil
}

func validateAccess(req core.AccessRequest) error {
	if err := validateProvider(req.Provider); err != nil {
		return err
	}
	if strings.TrimSpace(req.AccessToken) == "" {
		return queryValidationError("access_token", "access token is required")
	}
	return nil
}

func validateProvider(provider core.ProviderName) error {
	if strings.TrimSpace(string(provider)) == "" {
		return queryValidationError("provider", "provider is required")
	}
	if !core.ParseProviderName(string(provider)).IsKnown() {
		return queryValidationError("provider", "provider is not supported")
	}
	return nil
}
