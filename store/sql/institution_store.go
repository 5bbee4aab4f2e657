package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-banking/core"
	"github.com/goliatone/go-banking/normalize"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// InstitutionCatalog is the read/write surface shared by the bun store and
// its cached decorator.
type InstitutionCatalog interface {
	GetInstitution(ctx context.Context, id string) (core.Institution, error)
	ListInstitutions(ctx context.Context, provider core.ProviderName, country string) ([]core.Institution, error)
	UpsertInstitutions(ctx context.Context, institutions []core.Institution) error
}

type InstitutionStore struct {
	db   *bun.DB
	repo repository.Repository[*institutionRecord]
	now  func() time.Time
}

func NewInstitutionStore(db *bun.DB) (*InstitutionStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*institutionRecord](db, institutionHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid institution repository wiring: %w", err)
		}
	}
	return &InstitutionStore{
		db:   db,
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *InstitutionStore) UpsertInstitutions(ctx context.Context, institutions []core.Institution) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: institution store is not configured")
	}
	if len(institutions) == 0 {
		return nil
	}
	now := s.now()
	records := make([]*institutionRecord, 0, len(institutions))
	for _, institution := range institutions {
		if strings.TrimSpace(institution.ID) == "" {
			return fmt.Errorf("sqlstore: institution id is required")
		}
		institution.Country = normalize.CountryCode(institution.Country)
		records = append(records, newInstitutionRecord(institution, now))
	}
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for start := 0; start < len(records); start += upsertBatchSize {
			batch := records[start:min(start+upsertBatchSize, len(records))]
			_, err := tx.NewInsert().
				Model(&batch).
				On("CONFLICT (id) DO UPDATE").
				Set("name = EXCLUDED.name").
				Set("country = EXCLUDED.country").
				Set("logo_url = EXCLUDED.logo_url").
				Set("primary_color = EXCLUDED.primary_color").
				Set("url = EXCLUDED.url").
				Set("oauth_support = EXCLUDED.oauth_support").
				Set("products = EXCLUDED.products").
				Set("last_update = EXCLUDED.last_update").
				Set("updated_at = EXCLUDED.updated_at").
				Exec(ctx)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *InstitutionStore) GetInstitution(ctx context.Context, id string) (core.Institution, error) {
	if s == nil || s.db == nil {
		return core.Institution{}, fmt.Errorf("sqlstore: institution store is not configured")
	}
	trimmedID := strings.TrimSpace(id)
	record := &institutionRecord{}
	err := s.db.NewSelect().Model(record).Where("?TableAlias.id = ?", trimmedID).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Institution{}, fmt.Errorf("%w: institution %q", ErrNotFound, trimmedID)
		}
		return core.Institution{}, err
	}
	return record.toDomain(), nil
}

// ListInstitutions filters by provider and country; blank values match all.
func (s *InstitutionStore) ListInstitutions(ctx context.Context, provider core.ProviderName, country string) ([]core.Institution, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: institution store is not configured")
	}
	selectors := []repository.SelectCriteria{repository.OrderBy("name ASC"), repository.OrderBy("id ASC")}
	if trimmed := strings.TrimSpace(string(provider)); trimmed != "" {
		selectors = append(selectors, repository.SelectBy("provider", "=", trimmed))
	}
	if code := normalize.CountryCode(country); code != "" {
		selectors = append(selectors, repository.SelectBy("country", "=", code))
	}
	records, _, err := s.repo.List(ctx, selectors...)
	if err != nil {
		return nil, err
	}
	out := make([]core.Institution, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}
