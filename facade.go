package banking

import (
	"fmt"

	bankingcommand "github.com/goliatone/go-banking/command"
	bankingquery "github.com/goliatone/go-banking/query"
)

type CommandQueryService interface {
	bankingcommand.MutatingService
	bankingcommand.SyncService
	bankingquery.ProviderReader
	bankingquery.HealthReader
}

type Commands struct {
	ExchangeToken    *bankingcommand.ExchangeTokenCommand
	RefreshToken     *bankingcommand.RefreshTokenCommand
	DeleteConnection *bankingcommand.DeleteConnectionCommand
	SyncConnection   *bankingcommand.SyncConnectionCommand
	ResumeSyncJob    *bankingcommand.ResumeSyncJobCommand
}

type Queries struct {
	ListAccounts        *bankingquery.ListAccountsQuery
	GetBalance          *bankingquery.GetBalanceQuery
	ListTransactions    *bankingquery.ListTransactionsQuery
	ListInstitutions    *bankingquery.ListInstitutionsQuery
	GetConnectionStatus *bankingquery.GetConnectionStatusQuery
	CheckHealth         *bankingquery.CheckHealthQuery
	GetSyncJob          *bankingquery.GetSyncJobQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	jobReader bankingquery.SyncJobReader
}

// WithSyncJobReader overrides the job reader. By default the service is used
// when it implements bankingquery.SyncJobReader.
func WithSyncJobReader(reader bankingquery.SyncJobReader) FacadeOption {
	return func(options *facadeOptions) {
		options.jobReader = reader
	}
}

func NewFacade(service CommandQueryService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("banking: command/query service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	reader := cfg.jobReader
	if reader == nil {
		reader, _ = service.(bankingquery.SyncJobReader)
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		ExchangeToken:    bankingcommand.NewExchangeTokenCommand(service),
		RefreshToken:     bankingcommand.NewRefreshTokenCommand(service),
		DeleteConnection: bankingcommand.NewDeleteConnectionCommand(service),
		SyncConnection:   bankingcommand.NewSyncConnectionCommand(service),
		ResumeSyncJob:    bankingcommand.NewResumeSyncJobCommand(service),
	}
	facade.queries = Queries{
		ListAccounts:        bankingquery.NewListAccountsQuery(service),
		GetBalance:          bankingquery.NewGetBalanceQuery(service),
		ListTransactions:    bankingquery.NewListTransactionsQuery(service),
		ListInstitutions:    bankingquery.NewListInstitutionsQuery(service),
		GetConnectionStatus: bankingquery.NewGetConnectionStatusQuery(service),
		CheckHealth:         bankingquery.NewCheckHealthQuery(service),
		GetSyncJob:          bankingquery.NewGetSyncJobQuery(reader),
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}

var _ CommandQueryService = (*Service)(nil)
