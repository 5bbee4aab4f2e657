package query

import (
	"github.com/goliatone/go-banking/core"
	bankingsync "github.com/goliatone/go-banking/sync"
	gocmd "github.com/goliatone/go-command"
)

var (
	_ gocmd.Querier[ListAccountsMessage, []core.Account]               = (*ListAccountsQuery)(nil)
	_ gocmd.Querier[GetBalanceMessage, core.Balance]                   = (*GetBalanceQuery)(nil)
	_ gocmd.Querier[ListTransactionsMessage, []core.Transaction]       = (*ListTransactionsQuery)(nil)
	_ gocmd.Querier[ListInstitutionsMessage, []core.Institution]       = (*ListInstitutionsQuery)(nil)
	_ gocmd.Querier[GetConnectionStatusMessage, core.ConnectionStatus] = (*GetConnectionStatusQuery)(nil)
	_ gocmd.Querier[CheckHealthMessage, []HealthStatus]                = (*CheckHealthQuery)(nil)
	_ gocmd.Querier[GetSyncJobMessage, bankingsync.Job]                = (*GetSyncJobQuery)(nil)
)
