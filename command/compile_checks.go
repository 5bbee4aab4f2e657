package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[ExchangeTokenMessage]    = (*ExchangeTokenCommand)(nil)
	_ gocmd.Commander[RefreshTokenMessage]     = (*RefreshTokenCommand)(nil)
	_ gocmd.Commander[DeleteConnectionMessage] = (*DeleteConnectionCommand)(nil)
	_ gocmd.Commander[SyncConnectionMessage]   = (*SyncConnectionCommand)(nil)
	_ gocmd.Commander[ResumeSyncJobMessage]    = (*ResumeSyncJobCommand)(nil)
)
