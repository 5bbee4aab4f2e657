package sync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-banking/core"
	"github.com/goliatone/go-banking/providers"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultConcurrency        = 4
	DefaultIncrementalOverlap = 72 * time.Hour
	DefaultRefreshSkew        = 5 * time.Minute
)

// Orchestrator pulls accounts and transactions for a stored connection and
// hands the canonical values to the stores. Provider calls go through the
// lookup, so registry decoration (retry, observability) applies.
type Orchestrator struct {
	Providers    ProviderLookup
	Connections  ConnectionStore
	Accounts     AccountStore
	Transactions TransactionStore
	Jobs         JobStore
	Logger       core.Logger

	// Concurrency bounds per-account transaction fetches.
	Concurrency int
	// IncrementalOverlap is subtracted from the last sync time when an
	// incremental job has no explicit start.
	IncrementalOverlap time.Duration
	RefreshSkew        time.Duration
	Now                func() time.Time
}

type Option func(*Orchestrator)

func WithLogger(logger core.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.Logger = logger
		}
	}
}

func WithConcurrency(limit int) Option {
	return func(o *Orchestrator) {
		if limit > 0 {
			o.Concurrency = limit
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.Now = now
		}
	}
}

func NewOrchestrator(
	lookup ProviderLookup,
	connections ConnectionStore,
	accounts AccountStore,
	transactions TransactionStore,
	jobs JobStore,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		Providers:          lookup,
		Connections:        connections,
		Accounts:           accounts,
		Transactions:       transactions,
		Jobs:               jobs,
		Logger:             glog.Nop(),
		Concurrency:        DefaultConcurrency,
		IncrementalOverlap: DefaultIncrementalOverlap,
		RefreshSkew:        DefaultRefreshSkew,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// Start records a queued job for the connection without running it.
func (o *Orchestrator) Start(ctx context.Context, req Request) (Job, error) {
	if err := o.ready(); err != nil {
		return Job{}, err
	}
	connectionID := strings.TrimSpace(req.ConnectionID)
	if connectionID == "" {
		return Job{}, fmt.Errorf("sync: connection id is required")
	}
	conn, err := o.Connections.Get(ctx, connectionID)
	if err != nil {
		return Job{}, err
	}
	mode := req.Mode
	if mode == "" {
		mode = JobModeIncremental
	}
	now := o.now()
	return o.Jobs.Create(ctx, Job{
		ID:           uuid.NewString(),
		ConnectionID: conn.ID,
		Provider:     conn.Provider,
		Mode:         mode,
		Status:       JobStatusQueued,
		From:         utcPointer(req.Window.From),
		To:           utcPointer(req.Window.To),
		CreatedAt:    now,
		UpdatedAt:    now,
	})
}

// Sync starts a job and runs it to completion.
func (o *Orchestrator) Sync(ctx context.Context, req Request) (Job, error) {
	job, err := o.Start(ctx, req)
	if err != nil {
		return Job{}, err
	}
	return o.Run(ctx, job.ID)
}

// Resume reruns a failed or queued job. Succeeded jobs are returned as is.
func (o *Orchestrator) Resume(ctx context.Context, jobID string) (Job, error) {
	return o.Run(ctx, jobID)
}

// Run executes a stored job. A failed run is recorded on the job and the
// connection and also returned.
func (o *Orchestrator) Run(ctx context.Context, jobID string) (Job, error) {
	if err := o.ready(); err != nil {
		return Job{}, err
	}
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return Job{}, fmt.Errorf("sync: job id is required")
	}
	job, err := o.Jobs.Get(ctx, jobID)
	if err != nil {
		return Job{}, err
	}
	if job.Status == JobStatusSucceeded {
		return job, nil
	}

	job.Status = JobStatusRunning
	job.Attempts++
	job.Error = ""
	job.UpdatedAt = o.now()
	if job, err = o.Jobs.Update(ctx, job); err != nil {
		return Job{}, err
	}

	accounts, transactions, runErr := o.execute(ctx, job)
	finished := o.now()
	job.UpdatedAt = finished
	job.FinishedAt = &finished
	if runErr != nil {
		job.Status = JobStatusFailed
		job.Error = core.RedactSecrets(runErr.Error())
		o.Logger.Error("sync failed",
			"job_id", job.ID,
			"connection_id", job.ConnectionID,
			"provider", string(job.Provider),
			"attempt", job.Attempts,
			"error", job.Error,
		)
		if _, err := o.Jobs.Update(ctx, job); err != nil {
			return job, err
		}
		return job, runErr
	}

	job.Status = JobStatusSucceeded
	job.Accounts = accounts
	job.Transactions = transactions
	o.Logger.Info("sync completed",
		"job_id", job.ID,
		"connection_id", job.ConnectionID,
		"provider", string(job.Provider),
		"accounts", accounts,
		"transactions", transactions,
	)
	return o.Jobs.Update(ctx, job)
}

func (o *Orchestrator) execute(ctx context.Context, job Job) (int, int, error) {
	conn, err := o.Connections.Get(ctx, job.ConnectionID)
	if err != nil {
		return 0, 0, err
	}
	provider, err := o.Providers.Get(string(conn.Provider))
	if err != nil {
		return 0, 0, err
	}

	accessToken, err := o.freshToken(ctx, provider, conn)
	if err != nil {
		return 0, 0, o.markFailed(ctx, conn.ID, err)
	}

	accounts, err := provider.GetAccounts(ctx, accessToken)
	if err != nil {
		return 0, 0, o.markFailed(ctx, conn.ID, err)
	}
	if err := o.Accounts.UpsertAccounts(ctx, conn.ID, accounts); err != nil {
		return 0, 0, err
	}

	window := o.window(job, conn)
	perAccount := make([][]core.Transaction, len(accounts))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(o.concurrency())
	for i, account := range accounts {
		group.Go(func() error {
			transactions, err := provider.GetTransactions(groupCtx, accessToken, account.ID, window)
			if err != nil {
				return fmt.Errorf("sync: transactions for %s: %w", account.ID, err)
			}
			perAccount[i] = transactions
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return 0, 0, o.markFailed(ctx, conn.ID, err)
	}

	all := make([]core.Transaction, 0)
	for _, transactions := range perAccount {
		all = append(all, transactions...)
	}
	written, err := o.Transactions.UpsertTransactions(ctx, all)
	if err != nil {
		return 0, 0, err
	}

	syncedAt := o.now()
	if err := o.Connections.UpdateStatus(ctx, conn.ID, core.ConnectionConnected, "", &syncedAt); err != nil {
		return 0, 0, err
	}
	return len(accounts), written, nil
}

// freshToken refreshes the access token when it is within RefreshSkew of
// expiring and a refresh token is stored.
func (o *Orchestrator) freshToken(ctx context.Context, provider core.Provider, conn Connection) (string, error) {
	if conn.TokenExpiresAt == nil || conn.RefreshToken == nil || strings.TrimSpace(*conn.RefreshToken) == "" {
		return conn.AccessToken, nil
	}
	if o.now().Add(o.RefreshSkew).Before(*conn.TokenExpiresAt) {
		return conn.AccessToken, nil
	}
	token, err := provider.RefreshToken(ctx, *conn.RefreshToken)
	if err != nil {
		return "", err
	}
	if err := o.Connections.UpdateTokens(ctx, conn.ID, token); err != nil {
		return "", err
	}
	o.Logger.Debug("access token refreshed", "connection_id", conn.ID, "provider", string(conn.Provider))
	return token.AccessToken, nil
}

func (o *Orchestrator) window(job Job, conn Connection) core.DateRange {
	window := job.Window()
	if job.Mode != JobModeIncremental || window.From != nil || conn.LastSyncedAt == nil {
		return window
	}
	from := conn.LastSyncedAt.Add(-o.IncrementalOverlap).UTC()
	window.From = &from
	return window
}

// markFailed records the connection state implied by err and returns err.
func (o *Orchestrator) markFailed(ctx context.Context, connectionID string, err error) error {
	status, statusErr := providers.ConnectionStatusFromError(err)
	if statusErr != nil {
		status = core.ConnectionError
	}
	if updateErr := o.Connections.UpdateStatus(ctx, connectionID, status, core.RedactSecrets(err.Error()), nil); updateErr != nil {
		o.Logger.Warn("connection status update failed", "connection_id", connectionID, "error", updateErr.Error())
	}
	return err
}

func (o *Orchestrator) ready() error {
	if o == nil || o.Providers == nil || o.Connections == nil || o.Accounts == nil || o.Transactions == nil || o.Jobs == nil {
		return fmt.Errorf("sync: orchestrator requires providers and stores")
	}
	if o.Logger == nil {
		o.Logger = glog.Nop()
	}
	return nil
}

func (o *Orchestrator) concurrency() int {
	if o.Concurrency > 0 {
		return o.Concurrency
	}
	return DefaultConcurrency
}

func (o *Orchestrator) now() time.Time {
	if o != nil && o.Now != nil {
		return o.Now().UTC()
	}
	return time.Now().UTC()
}

func utcPointer(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	utc := value.UTC()
	return &utc
}
