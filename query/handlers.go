package query

import (
	"context"

	"github.com/goliatone/go-banking/core"
	bankingsync "github.com/goliatone/go-banking/sync"
)

type ProviderReader interface {
	GetAccounts(ctx context.Context, req core.AccessRequest) ([]core.Account, error)
	GetAccountBalance(ctx context.Context, req core.BalanceRequest) (core.Balance, error)
	GetTransactions(ctx context.Context, req core.TransactionsRequest) ([]core.Transaction, error)
	GetInstitutions(ctx context.Context, req core.InstitutionsRequest) ([]core.Institution, error)
	GetConnectionStatus(ctx context.Context, req core.AccessRequest) (core.ConnectionStatus, error)
}

type HealthReader interface {
	Providers() []core.ProviderName
	HealthCheck(ctx context.Context, provider core.ProviderName) error
}

type SyncJobReader interface {
	GetSyncJob(ctx context.Context, jobID string) (bankingsync.Job, error)
}

// HealthStatus is one provider's health check outcome. Error is already redacted.
type HealthStatus struct {
	Provider core.ProviderName `json:"provider"`
	Healthy  bool              `json:"healthy"`
	Error    string            `json:"error,omitempty"`
}

type ListAccountsQuery struct {
	reader ProviderReader
}

func NewListAccountsQuery(reader ProviderReader) *ListAccountsQuery {
	return &ListAccountsQuery{reader: reader}
}

func (q *ListAccountsQuery) Query(ctx context.Context, msg ListAccountsMessage) ([]core.Account, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: provider reader is required")
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return q.reader.GetAccounts(ctx, msg.Request)
}

type GetBalanceQuery struct {
	reader ProviderReader
}

func NewGetBalanceQuery(reader ProviderReader) *GetBalanceQuery {
	return &GetBalanceQuery{reader: reader}
}

func (q *GetBalanceQuery) Query(ctx context.Context, msg GetBalanceMessage) (core.Balance, error) {
	if q == nil || q.reader == nil {
		return core.Balance{}, queryDependencyError("query: provider reader is required")
	}
	if err := msg.Validate(); err != nil {
		return core.Balance{}, err
	}
	return q.reader.GetAccountBalance(ctx, msg.Request)
}

type ListTransactionsQuery struct {
	reader ProviderReader
}

func NewListTransactionsQuery(reader ProviderReader) *ListTransactionsQuery {
	return &ListTransactionsQuery{reader: reader}
}

func (q *ListTransactionsQuery) Query(ctx context.Context, msg ListTransactionsMessage) ([]core.Transaction, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: provider reader is required")
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return q.reader.GetTransactions(ctx, msg.Request)
}

type ListInstitutionsQuery struct {
	reader ProviderReader
}

func NewListInstitutionsQuery(reader ProviderReader) *ListInstitutionsQuery {
	return &ListInstitutionsQuery{reader: reader}
}

func (q *ListInstitutionsQuery) Query(ctx context.Context, msg ListInstitutionsMessage) ([]core.Institution, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: provider reader is required")
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return q.reader.GetInstitutions(ctx, msg.Request)
}

type GetConnectionStatusQuery struct {
	reader ProviderReader
}

func NewGetConnectionStatusQuery(reader ProviderReader) *GetConnectionStatusQuery {
	return &GetConnectionStatusQuery{reader: reader}
}

func (q *GetConnectionStatusQuery) Query(ctx context.Context, msg GetConnectionStatusMessage) (core.ConnectionStatus, error) {
	if q == nil || q.reader == nil {
		return "", queryDependencyError("query: provider reader is required")
	}
	if err := msg.Validate(); err != nil {
		return "", err
	}
	return q.reader.GetConnectionStatus(ctx, msg.Request)
}

type CheckHealthQuery struct {
	reader HealthReader
}

func NewCheckHealthQuery(reader HealthReader) *CheckHealthQuery {
	return &CheckHealthQuery{reader: reader}
}

// Query never fails on an unhealthy provider; the failure is reported in
// the provider's HealthStatus.
func (q *CheckHealthQuery) Query(ctx context.Context, msg CheckHealthMessage) ([]HealthStatus, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: health reader is required")
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	providers := msg.Providers
	if len(providers) == 0 {
		providers = q.reader.Providers()
	}
	out := make([]HealthStatus, 0, len(providers))
	for _, provider := range providers {
		status := HealthStatus{Provider: provider, Healthy: true}
		if err := q.reader.HealthCheck(ctx, provider); err != nil {
			status.Healthy = false
			status.Error = core.RedactSecrets(err.Error())
		}
		out = append(out, status)
	}
	return out, nil
}

type GetSyncJobQuery struct {
	reader SyncJobReader
}

func NewGetSyncJobQuery(reader SyncJobReader) *GetSyncJobQuery {
	return &GetSyncJobQuery{reader: reader}
}

func (q *GetSyncJobQuery) Query(ctx context.Context, msg GetSyncJobMessage) (bankingsync.Job, error) {
	if q == nil || q.reader == nil {
		return bankingsync.Job{}, queryDependencyError("query: sync job reader is required")
	}
	if err := msg.Validate(); err != nil {
		return bankingsync.Job{}, err
	}
	return q.reader.GetSyncJob(ctx, msg.JobID)
}
