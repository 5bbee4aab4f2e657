package command

import (
	"strings"

	"github.com/goliatone/go-banking/core"
	bankingsync "github.com/goliatone/go-banking/sync"
)

const (
	TypeExchangeToken    = "banking.command.token.exchange"
	TypeRefreshToken     = "banking.command.token.refresh"
	TypeDeleteConnection = "banking.command.connection.delete"
	TypeSyncConnection   = "banking.command.sync.run"
	TypeResumeSyncJob    = "banking.command.sync.resume"
)

type ExchangeTokenMessage struct {
	Request core.ExchangeTokenRequest
}

func (ExchangeTokenMessage) Type() string { return TypeExchangeToken }

func (m ExchangeTokenMessage) Validate() error {
	if err := validateProvider(m.Request.Provider); err != nil {
		return err
	}
	if strings.TrimSpace(m.Request.Code) == "" {
		return commandValidationError("code", "authorization code is required")
	}
	return nil
}

type RefreshTokenMessage struct {
	Request core.RefreshTokenRequest
}

func (RefreshTokenMessage) Type() string { return TypeRefreshToken }

func (m RefreshTokenMessage) Validate() error {
	if err := validateProvider(m.Request.Provider); err != nil {
		return err
	}
	if strings.TrimSpace(m.Request.RefreshToken) == "" {
		return commandValidationError("refresh_token", "refresh token is required")
	}
	return nil
}

// DeleteConnectionMessage revokes the provider side of a connection.
type DeleteConnectionMessage struct {
	Request core.AccessRequest
}

func (DeleteConnectionMessage) Type() string { return TypeDeleteConnection }

func (m DeleteConnectionMessage) Validate() error {
	if err := validateProvider(m.Request.Provider); err != nil {
		return err
	}
	if strings.TrimSpace(m.Request.AccessToken) == "" {
		return commandValidationError("access_token", "access token is required")
	}
	return nil
}

type SyncConnectionMessage struct {
	Request bankingsync.Request
}

func (SyncConnectionMessage) Type() string { return TypeSyncConnection }

func (m SyncConnectionMessage) Validate() error {
	if strings.TrimSpace(m.Request.ConnectionID) == "" {
		return commandValidationError("connection_id", "connection id is required")
	}
	switch m.Request.Mode {
	case "", bankingsync.JobModeFull, bankingsync.JobModeIncremental:
	default:
		return commandValidationError("mode", "mode must be full or incremental")
	}
	window := m.Request.Window
	if window.From != nil && window.To != nil && window.From.After(*window.To) {
		return commandValidationError("window", "window start must not be after its end")
	}
	return nil
}

type ResumeSyncJobMessage struct {
	JobID string
}

func (ResumeSyncJobMessage) Type() string { return TypeResumeSyncJob }

func (m ResumeSyncJobMessage) Validate() error {
	if strings.TrimSpace(m.JobID) == "" {
		return commandValidationError("job_id", "job id is required")
	}
	return nil
}

func validateProvider(provider core.ProviderName) error {
	if strings.TrimSpace(string(provider)) == "" {
		return commandValidationError("provider", "provider is required")
	}
	if !core.ParseProviderName(string(provider)).IsKnown() {
		return commandValidationError("provider", "provider is not supported")
	}
	return nil
}
