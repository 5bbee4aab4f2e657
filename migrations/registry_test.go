package migrations

import (
	"context"
	"database/sql"
	"io/fs"
	"path/filepath"
	"testing"
	"testing/fstest"

	banking "github.com/goliatone/go-banking"
	_ "github.com/mattn/go-sqlite3"
)

func TestSources_ReturnsPostgresAndSQLite(t *testing.T) {
	sources, err := Sources(nil)
	if err != nil {
		t.Fatalf("sources: %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(sources))
	}

	found := map[string][]string{}
	for _, entry := range sources {
		versions, err := Versions(entry.FS)
		if err != nil {
			t.Fatalf("versions %s: %v", entry.Dialect, err)
		}
		found[entry.Dialect] = versions
	}
	postgres, sqlite := found[DialectPostgres], found[DialectSQLite]
	if len(postgres) == 0 || len(sqlite) == 0 {
		t.Fatalf("expected both dialects, got %v", found)
	}
	if len(postgres) != len(sqlite) {
		t.Fatalf("expected matching migration sets, got postgres=%v sqlite=%v", postgres, sqlite)
	}
	for i := range postgres {
		if postgres[i] != sqlite[i] {
			t.Fatalf("dialect migration mismatch at %d: %q vs %q", i, postgres[i], sqlite[i])
		}
	}
}

func TestSources_RejectsMissingDownMigration(t *testing.T) {
	broken := fstest.MapFS{
		"data/sql/migrations/00001_x.up.sql":        {Data: []byte("SELECT 1;")},
		"data/sql/migrations/00001_x.down.sql":      {Data: []byte("SELECT 1;")},
		"data/sql/migrations/sqlite/00001_x.up.sql": {Data: []byte("SELECT 1;")},
	}
	if _, err := Sources(broken); err == nil {
		t.Fatalf("expected missing down migration error")
	}
}

func TestSources_RejectsDialectDrift(t *testing.T) {
	drifted := fstest.MapFS{
		"00001_x.up.sql":          {Data: []byte("SELECT 1;")},
		"00001_x.down.sql":        {Data: []byte("SELECT 1;")},
		"00002_y.up.sql":          {Data: []byte("SELECT 1;")},
		"00002_y.down.sql":        {Data: []byte("SELECT 1;")},
		"sqlite/00001_x.up.sql":   {Data: []byte("SELECT 1;")},
		"sqlite/00001_x.down.sql": {Data: []byte("SELECT 1;")},
	}
	if _, err := Sources(drifted); err == nil {
		t.Fatalf("expected version drift between dialects to be rejected")
	}
}

func TestRegister_UsesValidationTargets(t *testing.T) {
	var calls []string
	plan, err := Register(context.Background(), func(_ context.Context, dialect string, label string, _ fs.FS) error {
		if label != "go-banking" {
			t.Fatalf("unexpected source label %q", label)
		}
		calls = append(calls, dialect)
		return nil
	}, WithDialects(DialectSQLite))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(calls) != 1 || calls[0] != DialectSQLite {
		t.Fatalf("expected single sqlite registration, got %v", calls)
	}
	if len(plan.Sources) != 2 {
		t.Fatalf("expected both sources recorded, got %d", len(plan.Sources))
	}
	if _, err := Register(context.Background(), func(context.Context, string, string, fs.FS) error { return nil }, WithDialects("mysql")); err == nil {
		t.Fatalf("expected unknown dialect error")
	}
	if _, err := Register(context.Background(), nil); err == nil {
		t.Fatalf("expected missing register function error")
	}
}

func TestDialectForDriver(t *testing.T) {
	cases := map[string]string{"postgres": DialectPostgres, "pgx": DialectPostgres, "sqlite3": DialectSQLite}
	for driver, want := range cases {
		got, err := DialectForDriver(driver)
		if err != nil || got != want {
			t.Fatalf("driver %s: got %q %v", driver, got, err)
		}
	}
	if _, err := DialectForDriver("mysql"); err == nil {
		t.Fatalf("expected unsupported driver error")
	}
}

func TestSQLiteCoreSchemaMigration_ApplyAndRollback(t *testing.T) {
	ctx := context.Background()
	db, err := sql.Open("sqlite3", "file:migrations-banking-core?mode=memory&cache=shared&_foreign_keys=on")
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	defer func() { _ = db.Close() }()

	sqliteMigrations, err := fs.Sub(banking.GetMigrationsFS(), "data/sql/migrations/sqlite")
	if err != nil {
		t.Fatalf("resolve sqlite migrations: %v", err)
	}
	versions, err := Versions(sqliteMigrations)
	if err != nil {
		t.Fatalf("versions: %v", err)
	}
	for _, version := range versions {
		if err := execSQLMigration(ctx, db, sqliteMigrations, version+".up.sql"); err != nil {
			t.Fatalf("apply %s: %v", version, err)
		}
	}

	for _, table := range []string{"banking_connections", "banking_accounts", "banking_transactions", "banking_institutions", "banking_sync_jobs"} {
		if count := tableCount(t, db, table); count != 1 {
			t.Fatalf("expected table %s after up migrations", table)
		}
	}

	if _, err := db.ExecContext(ctx,
		`INSERT INTO banking_accounts (id, provider, connection_id, account_type, currency, last_sync) VALUES (?, ?, ?, ?, ?, ?)`,
		"tel_acc_1", "teller", "missing-connection", "checking", "USD", "2024-01-01T00:00:00Z",
	); err == nil {
		t.Fatalf("expected foreign key violation for unknown connection")
	}

	for i := len(versions) - 1; i >= 0; i-- {
		if err := execSQLMigration(ctx, db, sqliteMigrations, versions[i]+".down.sql"); err != nil {
			t.Fatalf("rollback %s: %v", versions[i], err)
		}
	}
	if count := tableCount(t, db, "banking_connections"); count != 0 {
		t.Fatalf("expected banking_connections dropped after rollback")
	}
}

func TestSQLiteSyncJobRunningIndex_AllowsOneRunningJob(t *testing.T) {
	ctx := context.Background()
	db, err := sql.Open("sqlite3", "file:migrations-banking-sync-jobs?mode=memory&cache=shared&_foreign_keys=on")
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	defer func() { _ = db.Close() }()

	sqliteMigrations, err := fs.Sub(banking.GetMigrationsFS(), "data/sql/migrations/sqlite")
	if err != nil {
		t.Fatalf("resolve sqlite migrations: %v", err)
	}
	for _, migration := range []string{
		"00001_banking_core_schema.up.sql",
		"00002_banking_institutions.up.sql",
		"00003_banking_sync_jobs.up.sql",
	} {
		if err := execSQLMigration(ctx, db, sqliteMigrations, migration); err != nil {
			t.Fatalf("apply %s: %v", migration, err)
		}
	}

	if _, err := db.ExecContext(ctx,
		`INSERT INTO banking_connections (id, provider, access_token, status) VALUES (?, ?, ?, ?)`,
		"conn_1", "teller", "sealed", "connected",
	); err != nil {
		t.Fatalf("insert connection: %v", err)
	}
	insertJob := `INSERT INTO banking_sync_jobs (id, connection_id, provider, mode, status) VALUES (?, ?, ?, ?, ?)`
	if _, err := db.ExecContext(ctx, insertJob, "job_1", "conn_1", "teller", "full", "running"); err != nil {
		t.Fatalf("insert running job: %v", err)
	}
	if _, err := db.ExecContext(ctx, insertJob, "job_2", "conn_1", "teller", "full", "queued"); err != nil {
		t.Fatalf("insert queued job: %v", err)
	}
	if _, err := db.ExecContext(ctx, insertJob, "job_3", "conn_1", "teller", "full", "running"); err == nil {
		t.Fatalf("expected unique running job violation")
	}
}

func tableCount(t *testing.T, db *sql.DB, name string) int {
	t.Helper()
	var count int
	if err := db.QueryRowContext(
		context.Background(),
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`,
		name,
	).Scan(&count); err != nil {
		t.Fatalf("query sqlite_master for %s: %v", name, err)
	}
	return count
}

func execSQLMigration(ctx context.Context, db *sql.DB, fsys fs.FS, filename string) error {
	content, err := fs.ReadFile(fsys, filepath.Clean(filename))
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, string(content))
	return err
}
