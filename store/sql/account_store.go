package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-banking/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type AccountStore struct {
	db   *bun.DB
	repo repository.Repository[*accountRecord]
	now  func() time.Time
}

func NewAccountStore(db *bun.DB) (*AccountStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*accountRecord](db, accountHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid account repository wiring: %w", err)
		}
	}
	return &AccountStore{
		db:   db,
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

// UpsertAccounts writes accounts under connectionID, replacing balances and
// metadata of accounts already stored.
func (s *AccountStore) UpsertAccounts(ctx context.Context, connectionID string, accounts []core.Account) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: account store is not configured")
	}
	connectionID = strings.TrimSpace(connectionID)
	if connectionID == "" {
		return fmt.Errorf("sqlstore: connection id is required")
	}
	if len(accounts) == 0 {
		return nil
	}
	now := s.now()
	records := make([]*accountRecord, 0, len(accounts))
	for _, account := range accounts {
		if strings.TrimSpace(account.ID) == "" {
			return fmt.Errorf("sqlstore: account id is required")
		}
		records = append(records, newAccountRecord(connectionID, account, now))
	}
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().
			Model(&records).
			On("CONFLICT (id) DO UPDATE").
			Set("connection_id = EXCLUDED.connection_id").
			Set("institution_id = EXCLUDED.institution_id").
			Set("name = EXCLUDED.name").
			Set("account_type = EXCLUDED.account_type").
			Set("balance_current = EXCLUDED.balance_current").
			Set("balance_available = EXCLUDED.balance_available").
			Set("balance_limit = EXCLUDED.balance_limit").
			Set("currency = EXCLUDED.currency").
			Set("last_sync = EXCLUDED.last_sync").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		return err
	})
}

func (s *AccountStore) Get(ctx context.Context, id string) (core.Account, error) {
	if s == nil || s.db == nil {
		return core.Account{}, fmt.Errorf("sqlstore: account store is not configured")
	}
	trimmedID := strings.TrimSpace(id)
	record := &accountRecord{}
	err := s.db.NewSelect().Model(record).Where("?TableAlias.id = ?", trimmedID).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Account{}, fmt.Errorf("%w: account %q", ErrNotFound, trimmedID)
		}
		return core.Account{}, err
	}
	return record.toDomain(), nil
}

func (s *AccountStore) ListByConnection(ctx context.Context, connectionID string) ([]core.Account, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: account store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("connection_id", "=", strings.TrimSpace(connectionID)),
		repository.OrderBy("name ASC"),
		repository.OrderBy("id ASC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.Account, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}
