package command

import (
	"context"

	"github.com/goliatone/go-banking/core"
	bankingsync "github.com/goliatone/go-banking/sync"
	gocmd "github.com/goliatone/go-command"
)

type MutatingService interface {
	ExchangeToken(ctx context.Context, req core.ExchangeTokenRequest) (core.TokenResponse, error)
	RefreshToken(ctx context.Context, req core.RefreshTokenRequest) (core.TokenResponse, error)
	DeleteConnection(ctx context.Context, req core.AccessRequest) error
}

type SyncService interface {
	SyncConnection(ctx context.Context, req bankingsync.Request) (bankingsync.Job, error)
	ResumeSyncJob(ctx context.Context, jobID string) (bankingsync.Job, error)
}

type ExchangeTokenCommand struct {
	service MutatingService
}

func NewExchangeTokenCommand(service MutatingService) *ExchangeTokenCommand {
	return &ExchangeTokenCommand{service: service}
}

func (c *ExchangeTokenCommand) Execute(ctx context.Context, msg ExchangeTokenMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: token exchange service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	out, err := c.service.ExchangeToken(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RefreshTokenCommand struct {
	service MutatingService
}

func NewRefreshTokenCommand(service MutatingService) *RefreshTokenCommand {
	return &RefreshTokenCommand{service: service}
}

func (c *RefreshTokenCommand) Execute(ctx context.Context, msg RefreshTokenMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: token refresh service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	out, err := c.service.RefreshToken(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DeleteConnectionCommand struct {
	service MutatingService
}

func NewDeleteConnectionCommand(service MutatingService) *DeleteConnectionCommand {
	return &DeleteConnectionCommand{service: service}
}

func (c *DeleteConnectionCommand) Execute(ctx context.Context, msg DeleteConnectionMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: connection service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	return c.service.DeleteConnection(ctx, msg.Request)
}

type SyncConnectionCommand struct {
	service SyncService
}

func NewSyncConnectionCommand(service SyncService) *SyncConnectionCommand {
	return &SyncConnectionCommand{service: service}
}

func (c *SyncConnectionCommand) Execute(ctx context.Context, msg SyncConnectionMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: sync service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	out, err := c.service.SyncConnection(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ResumeSyncJobCommand struct {
	service SyncService
}

func NewResumeSyncJobCommand(service SyncService) *ResumeSyncJobCommand {
	return &ResumeSyncJobCommand{service: service}
}

func (c *ResumeSyncJobCommand) Execute(ctx context.Context, msg ResumeSyncJobMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: sync service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	out, err := c.service.ResumeSyncJob(ctx, msg.JobID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
