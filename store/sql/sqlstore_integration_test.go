package sqlstore_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"testing"
	"time"

	"github.com/goliatone/go-banking/core"
	bankingmigrations "github.com/goliatone/go-banking/migrations"
	"github.com/goliatone/go-banking/security"
	sqlstore "github.com/goliatone/go-banking/store/sql"
	bankingsync "github.com/goliatone/go-banking/sync"
	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

type testPersistenceConfig struct {
	driver string
	server string
}

func (c testPersistenceConfig) GetDebug() bool {
	return false
}

func (c testPersistenceConfig) GetDriver() string {
	return c.driver
}

func (c testPersistenceConfig) GetServer() string {
	return c.server
}

func (c testPersistenceConfig) GetPingTimeout() time.Duration {
	return time.Second
}

func (c testPersistenceConfig) GetOtelIdentifier() string {
	return "go-banking-tests"
}

func TestMigrationSmokeApplySQLite(t *testing.T) {
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	for _, table := range []string{"banking_connections", "banking_accounts", "banking_transactions", "banking_institutions", "banking_sync_jobs"} {
		var tableName string
		if err := client.DB().NewRaw(
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?",
			table,
		).Scan(context.Background(), &tableName); err != nil {
			t.Fatalf("query sqlite master for %s: %v", table, err)
		}
		if tableName != table {
			t.Fatalf("expected %s table, got %q", table, tableName)
		}
	}
}

func TestOpenSQLite_AppliesMigrations(t *testing.T) {
	ctx := context.Background()
	dsn := fmt.Sprintf("file:banking-open-%d?mode=memory&cache=shared&_foreign_keys=on", time.Now().UnixNano())
	client, err := sqlstore.OpenSQLite(ctx, dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer func() { _ = client.Close() }()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	if _, err := factory.ConnectionStore().List(ctx, ""); err != nil {
		t.Fatalf("list connections: %v", err)
	}
	if _, err := sqlstore.OpenSQLite(ctx, " "); err == nil {
		t.Fatalf("expected blank dsn error")
	}
}

func TestConnectionStore_SealsTokensAndTracksStatus(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	cipher, err := security.NewAppKeyCipherFromString("integration-app-key")
	if err != nil {
		t.Fatalf("new cipher: %v", err)
	}
	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client, sqlstore.WithCipher(cipher))
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	store := factory.ConnectionStore()

	issued := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	conn, err := store.Create(ctx, sqlstore.CreateConnectionInput{
		Provider: core.ProviderTrueLayer,
		Token:    core.NewTokenResponse(issued, "access-1", "refresh-1", 3600),
	})
	if err != nil {
		t.Fatalf("create connection: %v", err)
	}
	if conn.AccessToken != "access-1" || conn.RefreshToken == nil || *conn.RefreshToken != "refresh-1" {
		t.Fatalf("expected opened tokens, got %+v", conn)
	}
	if conn.Status != core.ConnectionConnected || conn.TokenExpiresAt == nil {
		t.Fatalf("unexpected connection %+v", conn)
	}

	var stored string
	if err := client.DB().NewRaw("SELECT access_token FROM banking_connections WHERE id = ?", conn.ID).Scan(ctx, &stored); err != nil {
		t.Fatalf("read raw token: %v", err)
	}
	if stored == "access-1" || !security.IsEnvelope([]byte(stored)) {
		t.Fatalf("expected sealed access token at rest, got %q", stored)
	}

	if err := store.UpdateTokens(ctx, conn.ID, core.NewTokenResponse(issued, "access-2", "", 3600)); err != nil {
		t.Fatalf("update tokens: %v", err)
	}
	reloaded, err := store.Get(ctx, conn.ID)
	if err != nil {
		t.Fatalf("get connection: %v", err)
	}
	if reloaded.AccessToken != "access-2" || reloaded.RefreshToken == nil || *reloaded.RefreshToken != "refresh-1" {
		t.Fatalf("expected new access and kept refresh token, got %+v", reloaded)
	}

	syncedAt := issued.Add(time.Hour)
	if err := store.UpdateStatus(ctx, conn.ID, core.ConnectionError, "boom", &syncedAt); err != nil {
		t.Fatalf("update status: %v", err)
	}
	reloaded, err = store.Get(ctx, conn.ID)
	if err != nil {
		t.Fatalf("get after status: %v", err)
	}
	if reloaded.Status != core.ConnectionError || reloaded.LastError != "boom" || reloaded.LastSyncedAt == nil || !reloaded.LastSyncedAt.Equal(syncedAt) {
		t.Fatalf("unexpected status state %+v", reloaded)
	}

	listed, err := store.List(ctx, core.ProviderTrueLayer)
	if err != nil {
		t.Fatalf("list connections: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("expected one truelayer connection, got %d", len(listed))
	}

	if err := store.Delete(ctx, conn.ID); err != nil {
		t.Fatalf("delete connection: %v", err)
	}
	if _, err := store.Get(ctx, conn.ID); !errors.Is(err, sqlstore.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if err := store.UpdateStatus(ctx, conn.ID, core.ConnectionConnected, "", nil); !errors.Is(err, sqlstore.ErrNotFound) {
		t.Fatalf("expected not found status update after delete, got %v", err)
	}
}

func TestAccountAndTransactionStores_UpsertAndPage(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	conn := createConnection(t, factory, core.ProviderTeller)

	available := 90.0
	accounts := []core.Account{
		{ID: "tel_acc_1", Provider: core.ProviderTeller, Name: "Checking", Type: core.AccountTypeChecking, Currency: "USD", Balance: core.Balance{Current: 100, Available: &available, Currency: "USD"}},
		{ID: "tel_acc_2", Provider: core.ProviderTeller, Name: "Savings", Type: core.AccountTypeSavings, Currency: "USD", Balance: core.Balance{Current: 500, Currency: "USD"}},
	}
	if err := factory.AccountStore().UpsertAccounts(ctx, conn.ID, accounts); err != nil {
		t.Fatalf("upsert accounts: %v", err)
	}
	accounts[0].Balance.Current = 75
	if err := factory.AccountStore().UpsertAccounts(ctx, conn.ID, accounts[:1]); err != nil {
		t.Fatalf("re-upsert account: %v", err)
	}
	listed, err := factory.AccountStore().ListByConnection(ctx, conn.ID)
	if err != nil {
		t.Fatalf("list accounts: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(listed))
	}
	checking, err := factory.AccountStore().Get(ctx, "tel_acc_1")
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if checking.Balance.Current != 75 || checking.Balance.Available == nil || checking.ConnectionID != conn.ID {
		t.Fatalf("unexpected stored account %+v", checking)
	}

	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	transactions := make([]core.Transaction, 0, 5)
	for i := 0; i < 5; i++ {
		transactions = append(transactions, core.Transaction{
			ID:        fmt.Sprintf("tel_tx_%d", i),
			Provider:  core.ProviderTeller,
			AccountID: "tel_acc_1",
			Amount:    float64(-(i + 1)),
			Currency:  "USD",
			Date:      base.AddDate(0, 0, i),
			Pending:   i == 4,
		})
	}
	written, err := factory.TransactionStore().UpsertTransactions(ctx, transactions)
	if err != nil {
		t.Fatalf("upsert transactions: %v", err)
	}
	if written != 5 {
		t.Fatalf("expected 5 written, got %d", written)
	}

	transactions[4].Pending = false
	if _, err := factory.TransactionStore().UpsertTransactions(ctx, transactions[4:]); err != nil {
		t.Fatalf("re-upsert booked transaction: %v", err)
	}

	page, err := factory.TransactionStore().List(ctx, sqlstore.TransactionFilter{
		AccountID: "tel_acc_1",
		Page:      core.PageRequest{Page: 1, Limit: 2},
	})
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if page.TotalItems != 5 || page.TotalPages != 3 || !page.HasMore || len(page.Data) != 2 {
		t.Fatalf("unexpected page %+v", page)
	}
	if page.Data[0].ID != "tel_tx_4" || page.Data[0].Pending {
		t.Fatalf("expected newest booked transaction first, got %+v", page.Data[0])
	}

	from := base.AddDate(0, 0, 1)
	to := base.AddDate(0, 0, 2)
	windowed, err := factory.TransactionStore().List(ctx, sqlstore.TransactionFilter{
		AccountID: "tel_acc_1",
		Window:    core.DateRange{From: &from, To: &to},
	})
	if err != nil {
		t.Fatalf("list windowed transactions: %v", err)
	}
	if windowed.TotalItems != 2 {
		t.Fatalf("expected 2 transactions in window, got %+v", windowed)
	}

	if _, err := factory.TransactionStore().List(ctx, sqlstore.TransactionFilter{AccountID: "tel_acc_1", Page: core.PageRequest{Page: 1, Limit: 500}}); !core.IsKind(err, core.KindValidation) {
		t.Fatalf("expected validation error for oversized page, got %v", err)
	}
}

func TestInstitutionStore_UpsertAndFilter(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	store := factory.InstitutionStore()
	if err := store.UpsertInstitutions(ctx, []core.Institution{
		{ID: "gc_REVOLUT", Name: "Revolut", Country: "gb", Provider: core.ProviderGoCardless, Products: []string{"accounts"}},
		{ID: "gc_N26", Name: "N26", Country: "DE", Provider: core.ProviderGoCardless},
		{ID: "tel_chase", Name: "Chase", Country: "US", Provider: core.ProviderTeller, OAuthSupport: true},
	}); err != nil {
		t.Fatalf("upsert institutions: %v", err)
	}

	gb, err := store.ListInstitutions(ctx, core.ProviderGoCardless, "GB")
	if err != nil {
		t.Fatalf("list gb institutions: %v", err)
	}
	if len(gb) != 1 || gb[0].ID != "gc_REVOLUT" || len(gb[0].Products) != 1 {
		t.Fatalf("unexpected gb institutions %+v", gb)
	}
	all, err := store.ListInstitutions(ctx, "", "")
	if err != nil {
		t.Fatalf("list all institutions: %v", err)
	}
	if len(all) != 3 || all[0].Name != "Chase" {
		t.Fatalf("expected 3 institutions ordered by name, got %+v", all)
	}
	chase, err := store.GetInstitution(ctx, "tel_chase")
	if err != nil {
		t.Fatalf("get institution: %v", err)
	}
	if !chase.OAuthSupport || chase.Country != "US" {
		t.Fatalf("unexpected institution %+v", chase)
	}
	if _, err := store.GetInstitution(ctx, "tel_missing"); !errors.Is(err, sqlstore.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestOrchestrator_RunsAgainstSQLStores(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	conn := createConnection(t, factory, core.ProviderTeller)
	registry, err := core.NewRegistry(&storeProvider{})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	orchestrator := bankingsync.NewOrchestrator(
		registry,
		factory.ConnectionStore(),
		factory.AccountStore(),
		factory.TransactionStore(),
		factory.SyncJobStore(),
	)

	job, err := orchestrator.Sync(ctx, bankingsync.Request{ConnectionID: conn.ID, Mode: bankingsync.JobModeFull})
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if job.Status != bankingsync.JobStatusSucceeded || job.Accounts != 1 || job.Transactions != 2 {
		t.Fatalf("unexpected job %+v", job)
	}
	stored, err := factory.SyncJobStore().Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if stored.Status != bankingsync.JobStatusSucceeded || stored.FinishedAt == nil {
		t.Fatalf("unexpected stored job %+v", stored)
	}
	jobs, err := factory.SyncJobStore().ListByConnection(ctx, conn.ID, 5)
	if err != nil {
		t.Fatalf("list jobs: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected one job, got %d", len(jobs))
	}
	reloaded, err := factory.ConnectionStore().Get(ctx, conn.ID)
	if err != nil {
		t.Fatalf("get connection: %v", err)
	}
	if reloaded.LastSyncedAt == nil || reloaded.Status != core.ConnectionConnected {
		t.Fatalf("expected synced connection, got %+v", reloaded)
	}
}

func createConnection(t *testing.T, factory *sqlstore.RepositoryFactory, provider core.ProviderName) bankingsync.Connection {
	t.Helper()
	conn, err := factory.ConnectionStore().Create(context.Background(), sqlstore.CreateConnectionInput{
		Provider: provider,
		Token:    core.NewSyntheticTokenResponse(time.Now().UTC(), "access-token"),
	})
	if err != nil {
		t.Fatalf("create connection: %v", err)
	}
	return conn
}

type storeProvider struct{}

func (storeProvider) Name() core.ProviderName { return core.ProviderTeller }

func (storeProvider) ExchangeToken(context.Context, string, string) (core.TokenResponse, error) {
	return core.TokenResponse{}, nil
}

func (storeProvider) RefreshToken(_ context.Context, token string) (core.TokenResponse, error) {
	return core.NewSyntheticTokenResponse(time.Now().UTC(), token), nil
}

func (storeProvider) GetAccounts(context.Context, string) ([]core.Account, error) {
	return []core.Account{{ID: "tel_acc_sync", Provider: core.ProviderTeller, Name: "Checking", Type: core.AccountTypeChecking, Currency: "USD", Balance: core.Balance{Current: 10, Currency: "USD"}}}, nil
}

func (storeProvider) GetAccountBalance(context.Context, string, string) (core.Balance, error) {
	return core.Balance{Currency: "USD"}, nil
}

func (storeProvider) GetTransactions(_ context.Context, _ string, accountID string, _ core.DateRange) ([]core.Transaction, error) {
	now := time.Now().UTC()
	return []core.Transaction{
		{ID: "tel_tx_sync_1", Provider: core.ProviderTeller, AccountID: accountID, Amount: -5, Currency: "USD", Date: now},
		{ID: "tel_tx_sync_2", Provider: core.ProviderTeller, AccountID: accountID, Amount: 12, Currency: "USD", Date: now},
	}, nil
}

func (storeProvider) GetInstitutions(context.Context, core.InstitutionFilter) ([]core.Institution, error) {
	return nil, nil
}

func (storeProvider) GetConnectionStatus(context.Context, string) (core.ConnectionStatus, error) {
	return core.ConnectionConnected, nil
}

func (storeProvider) DeleteConnection(context.Context, string) error { return nil }

func (storeProvider) HealthCheck(context.Context) error { return nil }

func newSQLiteClient(t *testing.T) (*persistence.Client, func()) {
	t.Helper()

	dsn := fmt.Sprintf(
		"file:banking-test-%d?mode=memory&cache=shared&_foreign_keys=on",
		time.Now().UnixNano(),
	)
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	cfg := testPersistenceConfig{
		driver: "sqlite3",
		server: dsn,
	}
	client, err := persistence.New(cfg, sqlDB, sqlitedialect.New())
	if err != nil {
		_ = sqlDB.Close()
		t.Fatalf("new persistence client: %v", err)
	}

	ctx := context.Background()
	_, err = bankingmigrations.Register(ctx, func(_ context.Context, dialect string, _ string, fsys fs.FS) error {
		if dialect != bankingmigrations.DialectSQLite {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	}, bankingmigrations.WithDialects(bankingmigrations.DialectSQLite))
	if err != nil {
		_ = client.Close()
		t.Fatalf("register migrations: %v", err)
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		t.Fatalf("migrate: %v", err)
	}

	return client, func() {
		_ = client.Close()
	}
}
