package banking

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-banking/core"
	bankingsync "github.com/goliatone/go-banking/sync"
	glog "github.com/goliatone/go-logger/glog"
)

// ProviderLookup is satisfied by *core.Registry.
type ProviderLookup interface {
	Get(name string) (core.Provider, error)
	Names() []core.ProviderName
}

// DefaultInstitutionCatalogMaxAge bounds how long stored institution rows
// are served before the provider is asked again.
const DefaultInstitutionCatalogMaxAge = 24 * time.Hour

// InstitutionCatalog is satisfied by the sqlstore institution stores,
// including the cached one.
type InstitutionCatalog interface {
	ListInstitutions(ctx context.Context, provider core.ProviderName, country string) ([]core.Institution, error)
	UpsertInstitutions(ctx context.Context, institutions []core.Institution) error
}

// Service routes canonical requests to the provider named in each request.
// Sync operations are available when an orchestrator is configured.
type Service struct {
	providers    ProviderLookup
	syncer       *bankingsync.Orchestrator
	jobs         bankingsync.JobStore
	institutions InstitutionCatalog
	catalogAge   time.Duration
	now          func() time.Time
	logger       core.Logger
}

type ServiceOption func(*Service)

func WithSyncOrchestrator(orchestrator *bankingsync.Orchestrator) ServiceOption {
	return func(s *Service) {
		if orchestrator == nil {
			return
		}
		s.syncer = orchestrator
		if s.jobs == nil {
			s.jobs = orchestrator.Jobs
		}
	}
}

func WithJobStore(jobs bankingsync.JobStore) ServiceOption {
	return func(s *Service) {
		if jobs != nil {
			s.jobs = jobs
		}
	}
}

// WithInstitutionCatalog makes institution listings read-through: stored
// rows are served while every row is younger than the catalog max age, and
// provider results are written back.
func WithInstitutionCatalog(catalog InstitutionCatalog) ServiceOption {
	return func(s *Service) {
		if catalog != nil {
			s.institutions = catalog
		}
	}
}

// WithInstitutionCatalogMaxAge overrides DefaultInstitutionCatalogMaxAge.
// Rows whose LastUpdate is older are refreshed from the provider.
func WithInstitutionCatalogMaxAge(maxAge time.Duration) ServiceOption {
	return func(s *Service) {
		if maxAge > 0 {
			s.catalogAge = maxAge
		}
	}
}

func WithServiceLogger(logger core.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewService(providers ProviderLookup, opts ...ServiceOption) (*Service, error) {
	if providers == nil {
		return nil, core.ConfigurationError("banking: provider lookup is required")
	}
	service := &Service{
		providers:  providers,
		catalogAge: DefaultInstitutionCatalogMaxAge,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(service)
		}
	}
	service.logger = glog.Ensure(service.logger)
	return service, nil
}

func (s *Service) ExchangeToken(ctx context.Context, req core.ExchangeTokenRequest) (core.TokenResponse, error) {
	provider, err := s.provider(req.Provider)
	if err != nil {
		return core.TokenResponse{}, err
	}
	return provider.ExchangeToken(ctx, req.Code, req.RedirectURI)
}

func (s *Service) RefreshToken(ctx context.Context, req core.RefreshTokenRequest) (core.TokenResponse, error) {
	provider, err := s.provider(req.Provider)
	if err != nil {
		return core.TokenResponse{}, err
	}
	return provider.RefreshToken(ctx, req.RefreshToken)
}

func (s *Service) DeleteConnection(ctx context.Context, req core.AccessRequest) error {
	provider, err := s.provider(req.Provider)
	if err != nil {
		return err
	}
	if err := provider.DeleteConnection(ctx, req.AccessToken); err != nil {
		return err
	}
	s.logger.Info("provider connection deleted", "provider", string(provider.Name()))
	return nil
}

func (s *Service) GetAccounts(ctx context.Context, req core.AccessRequest) ([]core.Account, error) {
	provider, err := s.provider(req.Provider)
	if err != nil {
		return nil, err
	}
	return provider.GetAccounts(ctx, req.AccessToken)
}

func (s *Service) GetAccountBalance(ctx context.Context, req core.BalanceRequest) (core.Balance, error) {
	provider, err := s.provider(req.Provider)
	if err != nil {
		return core.Balance{}, err
	}
	return provider.GetAccountBalance(ctx, req.AccessToken, req.AccountID)
}

func (s *Service) GetTransactions(ctx context.Context, req core.TransactionsRequest) ([]core.Transaction, error) {
	provider, err := s.provider(req.Provider)
	if err != nil {
		return nil, err
	}
	return provider.GetTransactions(ctx, req.AccessToken, req.AccountID, req.Window)
}

func (s *Service) GetInstitutions(ctx context.Context, req core.InstitutionsRequest) ([]core.Institution, error) {
	provider, err := s.provider(req.Provider)
	if err != nil {
		return nil, err
	}
	if s.institutions == nil {
		return provider.GetInstitutions(ctx, req.Filter)
	}

	name := provider.Name()
	stored, err := s.institutions.ListInstitutions(ctx, name, req.Filter.Country)
	if err != nil {
		s.logger.Warn("institution catalog read failed", "provider", string(name), "error", core.RedactSecrets(err.Error()))
		stored = nil
	} else if len(stored) > 0 && !s.catalogStale(stored) {
		return stored, nil
	}

	fetched, err := provider.GetInstitutions(ctx, req.Filter)
	if err != nil {
		if len(stored) > 0 {
			s.logger.Warn("serving stale institution catalog", "provider", string(name), "error", core.RedactSecrets(err.Error()))
			return stored, nil
		}
		return nil, err
	}
	if len(fetched) > 0 {
		if err := s.institutions.UpsertInstitutions(ctx, fetched); err != nil {
			s.logger.Warn("institution catalog write failed", "provider", string(name), "error", core.RedactSecrets(err.Error()))
		}
	}
	return fetched, nil
}

// catalogStale reports whether any stored row is older than the max age.
func (s *Service) catalogStale(rows []core.Institution) bool {
	cutoff := s.now().Add(-s.catalogAge)
	for _, row := range rows {
		if row.LastUpdate.Before(cutoff) {
			return true
		}
	}
	return false
}

func (s *Service) GetConnectionStatus(ctx context.Context, req core.AccessRequest) (core.ConnectionStatus, error) {
	provider, err := s.provider(req.Provider)
	if err != nil {
		return "", err
	}
	return provider.GetConnectionStatus(ctx, req.AccessToken)
}

func (s *Service) Providers() []core.ProviderName {
	if s == nil || s.providers == nil {
		return nil
	}
	return s.providers.Names()
}

func (s *Service) HealthCheck(ctx context.Context, name core.ProviderName) error {
	provider, err := s.provider(name)
	if err != nil {
		return err
	}
	return provider.HealthCheck(ctx)
}

func (s *Service) SyncConnection(ctx context.Context, req bankingsync.Request) (bankingsync.Job, error) {
	if s == nil || s.syncer == nil {
		return bankingsync.Job{}, core.ConfigurationError("banking: sync orchestrator is not configured")
	}
	return s.syncer.Sync(ctx, req)
}

func (s *Service) ResumeSyncJob(ctx context.Context, jobID string) (bankingsync.Job, error) {
	if s == nil || s.syncer == nil {
		return bankingsync.Job{}, core.ConfigurationError("banking: sync orchestrator is not configured")
	}
	return s.syncer.Resume(ctx, jobID)
}

func (s *Service) GetSyncJob(ctx context.Context, jobID string) (bankingsync.Job, error) {
	if s == nil || s.jobs == nil {
		return bankingsync.Job{}, core.ConfigurationError("banking: sync job store is not configured")
	}
	return s.jobs.Get(ctx, strings.TrimSpace(jobID))
}

func (s *Service) provider(name core.ProviderName) (core.Provider, error) {
	if s == nil || s.providers == nil {
		return nil, core.ConfigurationError("banking: provider lookup is required")
	}
	return s.providers.Get(string(core.ParseProviderName(string(name))))
}
