package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/goliatone/go-banking/migrations"
	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

// PersistenceConfig satisfies the go-persistence-bun client config.
type PersistenceConfig struct {
	Driver         string
	DSN            string
	Debug          bool
	PingTimeout    time.Duration
	OtelIdentifier string
}

func (c PersistenceConfig) GetDebug() bool { return c.Debug }

func (c PersistenceConfig) GetDriver() string { return c.Driver }

func (c PersistenceConfig) GetServer() string { return c.DSN }

func (c PersistenceConfig) GetPingTimeout() time.Duration {
	if c.PingTimeout <= 0 {
		return 5 * time.Second
	}
	return c.PingTimeout
}

func (c PersistenceConfig) GetOtelIdentifier() string {
	if strings.TrimSpace(c.OtelIdentifier) == "" {
		return "go-banking"
	}
	return c.OtelIdentifier
}

// OpenSQLite opens dsn with mattn/go-sqlite3, registers the embedded sqlite
// migrations and applies them.
func OpenSQLite(ctx context.Context, dsn string) (*persistence.Client, error) {
	return open(ctx, PersistenceConfig{Driver: "sqlite3", DSN: dsn}, sqlitedialect.New(), 1)
}

// OpenPostgres opens dsn with lib/pq, registers the embedded postgres
// migrations and applies them.
func OpenPostgres(ctx context.Context, dsn string) (*persistence.Client, error) {
	return open(ctx, PersistenceConfig{Driver: "postgres", DSN: dsn}, pgdialect.New(), 0)
}

func open(ctx context.Context, cfg PersistenceConfig, dialect schema.Dialect, maxOpen int) (*persistence.Client, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("sqlstore: dsn is required")
	}
	target, err := migrations.DialectForDriver(cfg.Driver)
	if err != nil {
		return nil, err
	}
	sqlDB, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", cfg.Driver, err)
	}
	if maxOpen > 0 {
		sqlDB.SetMaxOpenConns(maxOpen)
	}

	client, err := persistence.New(cfg, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("sqlstore: new persistence client: %w", err)
	}
	_, err = migrations.Register(ctx, func(_ context.Context, _ string, _ string, fsys fs.FS) error {
		client.RegisterSQLMigrations(fsys)
		return nil
	}, migrations.WithDialects(target))
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("sqlstore: migrate: %w", err)
	}
	return client, nil
}
