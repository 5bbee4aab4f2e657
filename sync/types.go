package sync

import (
	"context"
	"time"

	"github.com/goliatone/go-banking/core"
)

// Connection is a stored provider linkage with its tokens.
type Connection struct {
	ID             string
	Provider       core.ProviderName
	AccessToken    string
	RefreshToken   *string
	TokenExpiresAt *time.Time
	Status         core.ConnectionStatus
	LastError      string
	LastSyncedAt   *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type JobMode string

const (
	JobModeFull        JobMode = "full"
	JobModeIncremental JobMode = "incremental"
)

type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

type Job struct {
	ID           string
	ConnectionID string
	Provider     core.ProviderName
	Mode         JobMode
	Status       JobStatus
	Attempts     int
	From         *time.Time
	To           *time.Time
	Accounts     int
	Transactions int
	Error        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	FinishedAt   *time.Time
}

// Window returns the job's transaction range.
func (j Job) Window() core.DateRange {
	return core.DateRange{From: j.From, To: j.To}
}

type Request struct {
	ConnectionID string
	Mode         JobMode
	Window       core.DateRange
}

type ProviderLookup interface {
	Get(name string) (core.Provider, error)
}

type ConnectionStore interface {
	Get(ctx context.Context, id string) (Connection, error)
	UpdateTokens(ctx context.Context, id string, token core.TokenResponse) error
	UpdateStatus(ctx context.Context, id string, status core.ConnectionStatus, reason string, syncedAt *time.Time) error
}

type AccountStore interface {
	UpsertAccounts(ctx context.Context, connectionID string, accounts []core.Account) error
}

type TransactionStore interface {
	UpsertTransactions(ctx context.Context, transactions []core.Transaction) (int, error)
}

type JobStore interface {
	Create(ctx context.Context, job Job) (Job, error)
	Get(ctx context.Context, id string) (Job, error)
	Update(ctx context.Context, job Job) (Job, error)
}
