package gocommand

import (
	"context"
	"fmt"

	banking "github.com/goliatone/go-banking"
	bankingcommand "github.com/goliatone/go-banking/command"
	bankingsync "github.com/goliatone/go-banking/sync"
	"github.com/goliatone/go-command/runner"
)

// RegisterFacade subscribes every banking command and query exposed by the
// facade on bus. On failure nothing stays subscribed.
func RegisterFacade(bus *Bus, facade *banking.Facade, runnerOpts ...runner.Option) error {
	if bus == nil {
		return fmt.Errorf("gocommand: bus is required")
	}
	if facade == nil {
		return fmt.Errorf("gocommand: facade is required")
	}
	commands := facade.Commands()
	queries := facade.Queries()

	steps := []func() error{
		func() error { return RegisterCommand(bus, commands.ExchangeToken, runnerOpts...) },
		func() error { return RegisterCommand(bus, commands.RefreshToken, runnerOpts...) },
		func() error { return RegisterCommand(bus, commands.DeleteConnection, runnerOpts...) },
		func() error { return RegisterCommand(bus, commands.SyncConnection, runnerOpts...) },
		func() error { return RegisterCommand(bus, commands.ResumeSyncJob, runnerOpts...) },
		func() error { return RegisterQuery(bus, queries.ListAccounts, runnerOpts...) },
		func() error { return RegisterQuery(bus, queries.GetBalance, runnerOpts...) },
		func() error { return RegisterQuery(bus, queries.ListTransactions, runnerOpts...) },
		func() error { return RegisterQuery(bus, queries.ListInstitutions, runnerOpts...) },
		func() error { return RegisterQuery(bus, queries.GetConnectionStatus, runnerOpts...) },
		func() error { return RegisterQuery(bus, queries.CheckHealth, runnerOpts...) },
		func() error { return RegisterQuery(bus, queries.GetSyncJob, runnerOpts...) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			bus.Close()
			return err
		}
	}
	return nil
}

// SyncDispatcher runs syncs by dispatching banking sync commands on the
// bus. It satisfies the gojob SyncRunner contract, so queued syncs go
// through the same handlers as direct callers.
type SyncDispatcher struct{}

func (SyncDispatcher) Sync(ctx context.Context, req bankingsync.Request) (bankingsync.Job, error) {
	return DispatchWithResult[bankingcommand.SyncConnectionMessage, bankingsync.Job](ctx, bankingcommand.SyncConnectionMessage{Request: req})
}

func (SyncDispatcher) Resume(ctx context.Context, jobID string) (bankingsync.Job, error) {
	return DispatchWithResult[bankingcommand.ResumeSyncJobMessage, bankingsync.Job](ctx, bankingcommand.ResumeSyncJobMessage{JobID: jobID})
}
