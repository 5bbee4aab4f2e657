package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-banking/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// upsertBatchSize keeps a single insert under sqlite's bound parameter limit.
const upsertBatchSize = 200

type TransactionFilter struct {
	AccountID   string
	Window      core.DateRange
	PendingOnly bool
	Page        core.PageRequest
}

type TransactionStore struct {
	db   *bun.DB
	repo repository.Repository[*transactionRecord]
	now  func() time.Time
}

func NewTransactionStore(db *bun.DB) (*TransactionStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*transactionRecord](db, transactionHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid transaction repository wiring: %w", err)
		}
	}
	return &TransactionStore{
		db:   db,
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

// UpsertTransactions writes transactions keyed by canonical id. A pending
// transaction that later books is updated in place.
func (s *TransactionStore) UpsertTransactions(ctx context.Context, transactions []core.Transaction) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: transaction store is not configured")
	}
	if len(transactions) == 0 {
		return 0, nil
	}
	now := s.now()
	records := make([]*transactionRecord, 0, len(transactions))
	seen := make(map[string]int, len(transactions))
	for _, tx := range transactions {
		if strings.TrimSpace(tx.ID) == "" || strings.TrimSpace(tx.AccountID) == "" {
			return 0, fmt.Errorf("sqlstore: transaction and account ids are required")
		}
		record := newTransactionRecord(tx, now)
		if index, ok := seen[tx.ID]; ok {
			records[index] = record
			continue
		}
		seen[tx.ID] = len(records)
		records = append(records, record)
	}

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for start := 0; start < len(records); start += upsertBatchSize {
			end := min(start+upsertBatchSize, len(records))
			batch := records[start:end]
			_, err := tx.NewInsert().
				Model(&batch).
				On("CONFLICT (id) DO UPDATE").
				Set("amount = EXCLUDED.amount").
				Set("currency = EXCLUDED.currency").
				Set("booked_at = EXCLUDED.booked_at").
				Set("description = EXCLUDED.description").
				Set("category = EXCLUDED.category").
				Set("merchant = EXCLUDED.merchant").
				Set("pending = EXCLUDED.pending").
				Set("updated_at = EXCLUDED.updated_at").
				Exec(ctx)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// List pages an account's transactions newest first.
func (s *TransactionStore) List(ctx context.Context, filter TransactionFilter) (core.Page[core.Transaction], error) {
	if s == nil || s.repo == nil {
		return core.Page[core.Transaction]{}, fmt.Errorf("sqlstore: transaction store is not configured")
	}
	accountID := strings.TrimSpace(filter.AccountID)
	if accountID == "" {
		return core.Page[core.Transaction]{}, core.ValidationError("", "account id is required")
	}
	page := filter.Page.WithDefaults()
	if err := page.Validate(); err != nil {
		return core.Page[core.Transaction]{}, err
	}

	selectors := []repository.SelectCriteria{
		repository.SelectBy("account_id", "=", accountID),
		repository.OrderBy("booked_at DESC"),
		repository.OrderBy("id ASC"),
		repository.SelectPaginate(page.Limit, page.Offset()),
	}
	if filter.Window.From != nil {
		selectors = append(selectors, repository.SelectByTimetz("booked_at", ">=", filter.Window.From.UTC()))
	}
	if filter.Window.To != nil {
		selectors = append(selectors, repository.SelectByTimetz("booked_at", "<=", filter.Window.To.UTC()))
	}
	if filter.PendingOnly {
		selectors = append(selectors, repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.pending = ?", true)
		}))
	}

	records, total, err := s.repo.List(ctx, selectors...)
	if err != nil {
		return core.Page[core.Transaction]{}, err
	}
	items := make([]core.Transaction, 0, len(records))
	for _, record := range records {
		items = append(items, record.toDomain())
	}
	return core.NewPage(items, page, total), nil
}
