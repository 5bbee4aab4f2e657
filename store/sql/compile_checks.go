package sqlstore

import bankingsync "github.com/goliatone/go-banking/sync"

var (
	_ bankingsync.ConnectionStore  = (*ConnectionStore)(nil)
	_ bankingsync.AccountStore     = (*AccountStore)(nil)
	_ bankingsync.TransactionStore = (*TransactionStore)(nil)
	_ bankingsync.JobStore         = (*SyncJobStore)(nil)
)
