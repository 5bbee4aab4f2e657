// Command bankingd serves the banking provider API over HTTP and runs the
// periodic connection sync.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	banking "github.com/goliatone/go-banking"
	"github.com/goliatone/go-banking/adapters/gocommand"
	"github.com/goliatone/go-banking/adapters/gojob"
	"github.com/goliatone/go-banking/adapters/gologger"
	"github.com/goliatone/go-banking/core"
	"github.com/goliatone/go-banking/httpapi"
	"github.com/goliatone/go-banking/ratelimit"
	"github.com/goliatone/go-banking/security"
	sqlstore "github.com/goliatone/go-banking/store/sql"
	bankingsync "github.com/goliatone/go-banking/sync"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/joho/godotenv"
)

type settings struct {
	Addr          string
	APIKey        string
	DatabaseURL   string
	EncryptionKey string
	LogLevel      string
	LogFormat     string
	SyncSchedule  string
	CacheTTL      time.Duration
}

func loadSettings() settings {
	ttl, err := time.ParseDuration(getEnv("INSTITUTION_CACHE_TTL", "1h"))
	if err != nil || ttl <= 0 {
		ttl = time.Hour
	}
	return settings{
		Addr:          getEnv("BANKING_ADDR", ":8080"),
		APIKey:        os.Getenv("API_SECRET_KEY"),
		DatabaseURL:   getEnv("DATABASE_URL", "file:banking.db?cache=shared&_foreign_keys=on"),
		EncryptionKey: os.Getenv("BANKING_ENCRYPTION_KEY"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "json"),
		SyncSchedule:  getEnv("SYNC_SCHEDULE", gojob.DefaultSyncSchedule),
		CacheTTL:      ttl,
	}
}

// validate rejects settings the daemon must not start with.
func (s settings) validate() error {
	if strings.TrimSpace(s.APIKey) == "" {
		return fmt.Errorf("bankingd: API_SECRET_KEY is required")
	}
	return nil
}

func main() {
	_ = godotenv.Load()
	cfg := loadSettings()

	logs, err := gologger.NewLogrusProvider(gologger.LogrusOptions{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		fmt.Fprintf(os.Stderr, "bankingd: %v\n", err)
		os.Exit(1)
	}
	logger := gologger.Component(logs, "daemon")

	if err := run(cfg, logs); err != nil {
		logger.Error("bankingd stopped", "error", core.RedactSecrets(err.Error()))
		os.Exit(1)
	}
}

func run(cfg settings, logs *gologger.LogrusProvider) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	logger := gologger.Component(logs, "daemon")

	bankingCfg, err := core.LoadConfig(ctx, core.NewCfgxConfigProvider(core.NewEnvConfigLoader(".env")), core.Config{})
	if err != nil {
		return err
	}
	registry, err := banking.NewRegistry(bankingCfg,
		core.WithLoggerProvider(logs),
		core.WithRateLimiter(ratelimit.NewAdaptivePolicy(ratelimit.NewMemoryStateStore())),
	)
	if err != nil {
		return err
	}

	client, err := openStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer client.Close()

	var factoryOpts []sqlstore.FactoryOption
	if strings.TrimSpace(cfg.EncryptionKey) != "" {
		ring, err := buildKeyRing(cfg.EncryptionKey)
		if err != nil {
			return err
		}
		factoryOpts = append(factoryOpts, sqlstore.WithCipher(ring))
	} else {
		logger.Warn("BANKING_ENCRYPTION_KEY is not set; connection tokens are stored unencrypted")
	}
	stores, err := sqlstore.NewRepositoryFactoryFromPersistence(client, factoryOpts...)
	if err != nil {
		return err
	}

	cacheCfg := repositorycache.DefaultConfig()
	cacheCfg.TTL = cfg.CacheTTL
	cacheService, err := repositorycache.NewCacheService(cacheCfg)
	if err != nil {
		return fmt.Errorf("bankingd: institution cache: %w", err)
	}
	institutions, err := sqlstore.NewCachedInstitutionStore(stores.InstitutionStore(), cacheService)
	if err != nil {
		return err
	}

	orchestrator := bankingsync.NewOrchestrator(
		registry,
		stores.ConnectionStore(),
		stores.AccountStore(),
		stores.TransactionStore(),
		stores.SyncJobStore(),
		bankingsync.WithLogger(gologger.Component(logs, "sync")),
	)
	service, err := banking.NewService(registry,
		banking.WithSyncOrchestrator(orchestrator),
		banking.WithInstitutionCatalog(institutions),
		banking.WithServiceLogger(gologger.Component(logs, "service")),
	)
	if err != nil {
		return err
	}
	facade, err := banking.NewFacade(service)
	if err != nil {
		return err
	}

	bus := gocommand.NewBus(nil)
	defer bus.Close()
	if err := gocommand.RegisterFacade(bus, facade); err != nil {
		return err
	}
	if err := bus.Initialize(); err != nil {
		return err
	}

	scheduler, err := gojob.NewScheduler(cfg.SyncSchedule, stores.ConnectionStore(), inlineSyncEnqueuer{runner: gocommand.SyncDispatcher{}},
		gojob.WithSchedulerLogger(gologger.Component(logs, "scheduler")),
	)
	if err != nil {
		return err
	}
	if err := scheduler.Start(); err != nil {
		return err
	}
	defer func() { <-scheduler.Stop().Done() }()

	api, err := httpapi.NewServer(facade,
		httpapi.WithAPIKey(cfg.APIKey),
		httpapi.WithLogger(gologger.Component(logs, "http")),
	)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.Addr, "providers", len(registry.Names()), "next_sync", scheduler.Next())
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// openStore picks the driver from the DSN: postgres:// URLs use lib/pq and
// everything else is treated as a sqlite DSN.
func openStore(ctx context.Context, dsn string) (*persistence.Client, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return sqlstore.OpenPostgres(ctx, dsn)
	}
	return sqlstore.OpenSQLite(ctx, dsn)
}

// inlineSyncEnqueuer runs scheduled syncs in-process. A go-job queue
// enqueuer can replace it when a queue backend is deployed.
type inlineSyncEnqueuer struct {
	runner gojob.SyncRunner
}

func (e inlineSyncEnqueuer) EnqueueSync(ctx context.Context, msg gojob.SyncMessage) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	var err error
	if msg.JobID != "" {
		_, err = e.runner.Resume(ctx, msg.JobID)
	} else {
		_, err = e.runner.Sync(ctx, bankingsync.Request{ConnectionID: msg.ConnectionID, Mode: msg.Mode})
	}
	return err
}

// buildKeyRing parses BANKING_ENCRYPTION_KEY. A single value is key version
// 1. A comma separated list of "<version>:<key>" pairs keeps older versions
// for decryption; the last pair encrypts new tokens.
func buildKeyRing(value string) (*security.KeyRing, error) {
	ring := security.NewKeyRing(nil)
	parts := strings.Split(value, ",")
	for i, part := range parts {
		part = strings.TrimSpace(part)
		version, key := 1, part
		if head, tail, ok := strings.Cut(part, ":"); ok && len(parts) > 1 {
			parsed, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(head), "v"))
			if err != nil {
				return nil, fmt.Errorf("bankingd: encryption key %d has an invalid version", i+1)
			}
			version, key = parsed, strings.TrimSpace(tail)
		}
		cipher, err := security.NewAppKeyCipherFromString(key, security.WithVersion(version))
		if err != nil {
			return nil, fmt.Errorf("bankingd: encryption key %d: %w", i+1, err)
		}
		if err := ring.Add(cipher, security.KeyRotationWindow{}); err != nil {
			return nil, err
		}
	}
	return ring, nil
}

func getEnv(key string, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}
