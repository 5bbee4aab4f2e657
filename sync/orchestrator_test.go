package sync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	gosync "sync"
	"testing"
	"time"

	"github.com/goliatone/go-banking/core"
)

func TestOrchestrator_SyncPersistsAccountsAndTransactions(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	fixture := newFixture(now)
	fixture.connections.put(Connection{ID: "conn_1", Provider: core.ProviderTeller, AccessToken: "tok"})

	job, err := fixture.orchestrator.Sync(ctx, Request{ConnectionID: "conn_1", Mode: JobModeFull})
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if job.Status != JobStatusSucceeded || job.Accounts != 2 || job.Transactions != 3 {
		t.Fatalf("unexpected job %+v", job)
	}
	if job.Attempts != 1 || job.FinishedAt == nil {
		t.Fatalf("expected finished first attempt, got %+v", job)
	}
	if got := len(fixture.accounts.accounts["conn_1"]); got != 2 {
		t.Fatalf("expected 2 stored accounts, got %d", got)
	}
	if got := len(fixture.transactions.rows); got != 3 {
		t.Fatalf("expected 3 stored transactions, got %d", got)
	}
	conn := fixture.connections.rows["conn_1"]
	if conn.Status != core.ConnectionConnected || conn.LastSyncedAt == nil || !conn.LastSyncedAt.Equal(now) {
		t.Fatalf("unexpected connection state %+v", conn)
	}
}

func TestOrchestrator_IncrementalWindowStartsBeforeLastSync(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	lastSync := now.Add(-24 * time.Hour)
	fixture := newFixture(now)
	fixture.connections.put(Connection{ID: "conn_1", Provider: core.ProviderTeller, AccessToken: "tok", LastSyncedAt: &lastSync})

	if _, err := fixture.orchestrator.Sync(ctx, Request{ConnectionID: "conn_1"}); err != nil {
		t.Fatalf("sync: %v", err)
	}
	windows := fixture.provider.windowsSeen()
	if len(windows) != 2 {
		t.Fatalf("expected a window per account, got %d", len(windows))
	}
	want := lastSync.Add(-DefaultIncrementalOverlap)
	for _, window := range windows {
		if window.From == nil || !window.From.Equal(want) {
			t.Fatalf("expected from %s, got %+v", want, window.From)
		}
	}
}

func TestOrchestrator_ExplicitWindowWins(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	lastSync := now.Add(-24 * time.Hour)
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	fixture := newFixture(now)
	fixture.connections.put(Connection{ID: "conn_1", Provider: core.ProviderTeller, AccessToken: "tok", LastSyncedAt: &lastSync})

	if _, err := fixture.orchestrator.Sync(ctx, Request{ConnectionID: "conn_1", Window: core.DateRange{From: &from}}); err != nil {
		t.Fatalf("sync: %v", err)
	}
	for _, window := range fixture.provider.windowsSeen() {
		if window.From == nil || !window.From.Equal(from) {
			t.Fatalf("expected explicit from, got %+v", window.From)
		}
	}
}

func TestOrchestrator_RefreshesExpiringToken(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	expires := now.Add(time.Minute)
	refresh := "refresh-1"
	fixture := newFixture(now)
	fixture.connections.put(Connection{
		ID:             "conn_1",
		Provider:       core.ProviderTeller,
		AccessToken:    "stale",
		RefreshToken:   &refresh,
		TokenExpiresAt: &expires,
	})

	if _, err := fixture.orchestrator.Sync(ctx, Request{ConnectionID: "conn_1"}); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if fixture.provider.refreshed != "refresh-1" {
		t.Fatalf("expected refresh with stored token, got %q", fixture.provider.refreshed)
	}
	if got := fixture.connections.rows["conn_1"].AccessToken; got != "fresh" {
		t.Fatalf("expected stored fresh token, got %q", got)
	}
	if fixture.provider.lastToken != "fresh" {
		t.Fatalf("expected provider calls with fresh token, got %q", fixture.provider.lastToken)
	}
}

func TestOrchestrator_FailureMarksConnectionAndJob(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	fixture := newFixture(now)
	fixture.provider.accountsErr = core.ProviderError(core.ProviderTeller, http.StatusUnauthorized, "token revoked")
	fixture.connections.put(Connection{ID: "conn_1", Provider: core.ProviderTeller, AccessToken: "tok"})

	job, err := fixture.orchestrator.Sync(ctx, Request{ConnectionID: "conn_1"})
	if err == nil {
		t.Fatalf("expected sync error")
	}
	if job.Status != JobStatusFailed || !strings.Contains(job.Error, "token revoked") {
		t.Fatalf("unexpected failed job %+v", job)
	}
	conn := fixture.connections.rows["conn_1"]
	if conn.Status != core.ConnectionDisconnected || conn.LastError == "" {
		t.Fatalf("expected disconnected connection, got %+v", conn)
	}
	stored, _ := fixture.jobs.Get(ctx, job.ID)
	if stored.Status != JobStatusFailed {
		t.Fatalf("expected stored failed job, got %+v", stored)
	}
}

func TestOrchestrator_ResumeRerunsFailedJob(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	fixture := newFixture(now)
	fixture.provider.transactionsErr = core.TransportError(core.ProviderTeller, errors.New("connection reset"))
	fixture.connections.put(Connection{ID: "conn_1", Provider: core.ProviderTeller, AccessToken: "tok"})

	job, err := fixture.orchestrator.Sync(ctx, Request{ConnectionID: "conn_1"})
	if err == nil {
		t.Fatalf("expected first run to fail")
	}
	if got := fixture.connections.rows["conn_1"].Status; got != core.ConnectionError {
		t.Fatalf("expected error status, got %q", got)
	}

	fixture.provider.transactionsErr = nil
	resumed, err := fixture.orchestrator.Resume(ctx, job.ID)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if resumed.Status != JobStatusSucceeded || resumed.Attempts != 2 || resumed.Error != "" {
		t.Fatalf("unexpected resumed job %+v", resumed)
	}

	again, err := fixture.orchestrator.Resume(ctx, job.ID)
	if err != nil {
		t.Fatalf("resume succeeded job: %v", err)
	}
	if again.Attempts != 2 {
		t.Fatalf("expected succeeded job untouched, got %+v", again)
	}
}

func TestOrchestrator_ValidatesInputs(t *testing.T) {
	ctx := context.Background()
	fixture := newFixture(time.Now())
	if _, err := fixture.orchestrator.Start(ctx, Request{}); err == nil {
		t.Fatalf("expected connection id error")
	}
	if _, err := fixture.orchestrator.Run(ctx, " "); err == nil {
		t.Fatalf("expected job id error")
	}
	if _, err := fixture.orchestrator.Start(ctx, Request{ConnectionID: "missing"}); err == nil {
		t.Fatalf("expected missing connection error")
	}
	var empty *Orchestrator
	if _, err := empty.Sync(ctx, Request{ConnectionID: "conn_1"}); err == nil {
		t.Fatalf("expected nil orchestrator error")
	}
}

type fixture struct {
	provider     *stubProvider
	connections  *memoryConnectionStore
	accounts     *memoryAccountStore
	transactions *memoryTransactionStore
	jobs         *memoryJobStore
	orchestrator *Orchestrator
}

func newFixture(now time.Time) *fixture {
	f := &fixture{
		provider:     &stubProvider{name: core.ProviderTeller, now: now},
		connections:  &memoryConnectionStore{rows: map[string]Connection{}},
		accounts:     &memoryAccountStore{accounts: map[string][]core.Account{}},
		transactions: &memoryTransactionStore{rows: map[string]core.Transaction{}},
		jobs:         &memoryJobStore{rows: map[string]Job{}},
	}
	f.orchestrator = NewOrchestrator(
		stubLookup{provider: f.provider},
		f.connections,
		f.accounts,
		f.transactions,
		f.jobs,
		WithConcurrency(2),
		WithClock(func() time.Time { return now }),
	)
	return f
}

type stubLookup struct {
	provider core.Provider
}

func (l stubLookup) Get(name string) (core.Provider, error) {
	if name != string(l.provider.Name()) {
		return nil, core.ConfigurationError("provider %q is not enabled", name)
	}
	return l.provider, nil
}

type stubProvider struct {
	name            core.ProviderName
	now             time.Time
	accountsErr     error
	transactionsErr error
	refreshed       string
	lastToken       string

	mu      gosync.Mutex
	windows []core.DateRange
}

func (p *stubProvider) Name() core.ProviderName { return p.name }

func (p *stubProvider) ExchangeToken(context.Context, string, string) (core.TokenResponse, error) {
	return core.NewTokenResponse(p.now, "fresh", "", 3600), nil
}

func (p *stubProvider) RefreshToken(_ context.Context, refreshToken string) (core.TokenResponse, error) {
	p.refreshed = refreshToken
	return core.NewTokenResponse(p.now, "fresh", "refresh-2", 3600), nil
}

func (p *stubProvider) GetAccounts(_ context.Context, accessToken string) ([]core.Account, error) {
	p.lastToken = accessToken
	if p.accountsErr != nil {
		return nil, p.accountsErr
	}
	return []core.Account{
		{ID: core.PrefixID(p.name, "acc_1"), Provider: p.name, Currency: "USD"},
		{ID: core.PrefixID(p.name, "acc_2"), Provider: p.name, Currency: "USD"},
	}, nil
}

func (p *stubProvider) GetAccountBalance(context.Context, string, string) (core.Balance, error) {
	return core.Balance{Currency: "USD"}, nil
}

func (p *stubProvider) GetTransactions(_ context.Context, _ string, accountID string, window core.DateRange) ([]core.Transaction, error) {
	p.mu.Lock()
	p.windows = append(p.windows, window)
	p.mu.Unlock()
	if p.transactionsErr != nil {
		return nil, p.transactionsErr
	}
	count := 1
	if strings.HasSuffix(accountID, "acc_1") {
		count = 2
	}
	out := make([]core.Transaction, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, core.Transaction{
			ID:        core.PrefixID(p.name, fmt.Sprintf("%s_tx_%d", core.StripPrefix(p.name, accountID), i)),
			AccountID: accountID,
			Amount:    -10,
			Currency:  "USD",
			Date:      p.now,
		})
	}
	return out, nil
}

func (p *stubProvider) GetInstitutions(context.Context, core.InstitutionFilter) ([]core.Institution, error) {
	return nil, nil
}

func (p *stubProvider) GetConnectionStatus(context.Context, string) (core.ConnectionStatus, error) {
	return core.ConnectionConnected, nil
}

func (p *stubProvider) DeleteConnection(context.Context, string) error { return nil }

func (p *stubProvider) HealthCheck(context.Context) error { return nil }

func (p *stubProvider) windowsSeen() []core.DateRange {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]core.DateRange(nil), p.windows...)
}

type memoryConnectionStore struct {
	rows map[string]Connection
}

func (s *memoryConnectionStore) put(conn Connection) {
	s.rows[conn.ID] = conn
}

func (s *memoryConnectionStore) Get(_ context.Context, id string) (Connection, error) {
	conn, ok := s.rows[id]
	if !ok {
		return Connection{}, fmt.Errorf("connection %q not found", id)
	}
	return conn, nil
}

func (s *memoryConnectionStore) UpdateTokens(_ context.Context, id string, token core.TokenResponse) error {
	conn := s.rows[id]
	conn.AccessToken = token.AccessToken
	conn.RefreshToken = token.RefreshToken
	expires := token.ExpiresAt
	conn.TokenExpiresAt = &expires
	s.rows[id] = conn
	return nil
}

func (s *memoryConnectionStore) UpdateStatus(_ context.Context, id string, status core.ConnectionStatus, reason string, syncedAt *time.Time) error {
	conn := s.rows[id]
	conn.Status = status
	conn.LastError = reason
	if syncedAt != nil {
		conn.LastSyncedAt = syncedAt
	}
	s.rows[id] = conn
	return nil
}

type memoryAccountStore struct {
	accounts map[string][]core.Account
}

func (s *memoryAccountStore) UpsertAccounts(_ context.Context, connectionID string, accounts []core.Account) error {
	s.accounts[connectionID] = append([]core.Account(nil), accounts...)
	return nil
}

type memoryTransactionStore struct {
	rows map[string]core.Transaction
}

func (s *memoryTransactionStore) UpsertTransactions(_ context.Context, transactions []core.Transaction) (int, error) {
	for _, tx := range transactions {
		s.rows[tx.ID] = tx
	}
	return len(transactions), nil
}

type memoryJobStore struct {
	rows map[string]Job
}

func (s *memoryJobStore) Create(_ context.Context, job Job) (Job, error) {
	s.rows[job.ID] = job
	return job, nil
}

func (s *memoryJobStore) Get(_ context.Context, id string) (Job, error) {
	job, ok := s.rows[id]
	if !ok {
		return Job{}, fmt.Errorf("job %q not found", id)
	}
	return job, nil
}

func (s *memoryJobStore) Update(_ context.Context, job Job) (Job, error) {
	s.rows[job.ID] = job
	return job, nil
}
