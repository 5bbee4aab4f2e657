package sqlstore

import (
	"time"

	"github.com/goliatone/go-banking/core"
	bankingsync "github.com/goliatone/go-banking/sync"
	"github.com/uptrace/bun"
)

type connectionRecord struct {
	bun.BaseModel `bun:"table:banking_connections,alias:bc"`

	ID             string     `bun:"id,pk"`
	Provider       string     `bun:"provider,notnull"`
	AccessToken    string     `bun:"access_token,notnull"`
	RefreshToken   string     `bun:"refresh_token,notnull"`
	TokenExpiresAt *time.Time `bun:"token_expires_at,nullzero"`
	Status         string     `bun:"status,notnull"`
	LastError      string     `bun:"last_error,notnull"`
	LastSyncedAt   *time.Time `bun:"last_synced_at,nullzero"`
	CreatedAt      time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
	DeletedAt      *time.Time `bun:"deleted_at,soft_delete"`
}

// toDomain returns the connection with sealed token values. Callers open
// them through the store's cipher.
func (r *connectionRecord) toDomain() bankingsync.Connection {
	if r == nil {
		return bankingsync.Connection{}
	}
	conn := bankingsync.Connection{
		ID:             r.ID,
		Provider:       core.ProviderName(r.Provider),
		AccessToken:    r.AccessToken,
		TokenExpiresAt: cloneTimePointer(r.TokenExpiresAt),
		Status:         core.ConnectionStatus(r.Status),
		LastError:      r.LastError,
		LastSyncedAt:   cloneTimePointer(r.LastSyncedAt),
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
	if r.RefreshToken != "" {
		refresh := r.RefreshToken
		conn.RefreshToken = &refresh
	}
	return conn
}

type accountRecord struct {
	bun.BaseModel `bun:"table:banking_accounts,alias:ba"`

	ID               string    `bun:"id,pk"`
	Provider         string    `bun:"provider,notnull"`
	ConnectionID     string    `bun:"connection_id,notnull"`
	InstitutionID    string    `bun:"institution_id,notnull"`
	Name             string    `bun:"name,notnull"`
	AccountType      string    `bun:"account_type,notnull"`
	BalanceCurrent   float64   `bun:"balance_current,notnull"`
	BalanceAvailable *float64  `bun:"balance_available"`
	BalanceLimit     *float64  `bun:"balance_limit"`
	Currency         string    `bun:"currency,notnull"`
	LastSync         time.Time `bun:"last_sync,notnull"`
	CreatedAt        time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt        time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func newAccountRecord(connectionID string, account core.Account, now time.Time) *accountRecord {
	lastSync := account.LastSync.UTC()
	if account.LastSync.IsZero() {
		lastSync = now
	}
	return &accountRecord{
		ID:               account.ID,
		Provider:         string(account.Provider),
		ConnectionID:     connectionID,
		InstitutionID:    account.InstitutionID,
		Name:             account.Name,
		AccountType:      string(account.Type),
		BalanceCurrent:   account.Balance.Current,
		BalanceAvailable: cloneFloatPointer(account.Balance.Available),
		BalanceLimit:     cloneFloatPointer(account.Balance.Limit),
		Currency:         account.Currency,
		LastSync:         lastSync,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func (r *accountRecord) toDomain() core.Account {
	if r == nil {
		return core.Account{}
	}
	return core.Account{
		ID:            r.ID,
		Provider:      core.ProviderName(r.Provider),
		ConnectionID:  r.ConnectionID,
		InstitutionID: r.InstitutionID,
		Name:          r.Name,
		Type:          core.AccountType(r.AccountType),
		Balance: core.Balance{
			Current:   r.BalanceCurrent,
			Available: cloneFloatPointer(r.BalanceAvailable),
			Limit:     cloneFloatPointer(r.BalanceLimit),
			Currency:  r.Currency,
		},
		Currency: r.Currency,
		LastSync: r.LastSync.UTC(),
	}
}

type transactionRecord struct {
	bun.BaseModel `bun:"table:banking_transactions,alias:bt"`

	ID          string    `bun:"id,pk"`
	Provider    string    `bun:"provider,notnull"`
	AccountID   string    `bun:"account_id,notnull"`
	Amount      float64   `bun:"amount,notnull"`
	Currency    string    `bun:"currency,notnull"`
	BookedAt    time.Time `bun:"booked_at,notnull"`
	Description string    `bun:"description,notnull"`
	Category    *string   `bun:"category"`
	Merchant    *string   `bun:"merchant"`
	Pending     bool      `bun:"pending,notnull"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt   time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func newTransactionRecord(tx core.Transaction, now time.Time) *transactionRecord {
	return &transactionRecord{
		ID:          tx.ID,
		Provider:    string(tx.Provider),
		AccountID:   tx.AccountID,
		Amount:      tx.Amount,
		Currency:    tx.Currency,
		BookedAt:    tx.Date.UTC(),
		Description: tx.Description,
		Category:    cloneStringPointer(tx.Category),
		Merchant:    cloneStringPointer(tx.Merchant),
		Pending:     tx.Pending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (r *transactionRecord) toDomain() core.Transaction {
	if r == nil {
		return core.Transaction{}
	}
	return core.Transaction{
		ID:          r.ID,
		Provider:    core.ProviderName(r.Provider),
		AccountID:   r.AccountID,
		Amount:      r.Amount,
		Currency:    r.Currency,
		Date:        r.BookedAt.UTC(),
		Description: r.Description,
		Category:    cloneStringPointer(r.Category),
		Merchant:    cloneStringPointer(r.Merchant),
		Pending:     r.Pending,
	}
}

type institutionRecord struct {
	bun.BaseModel `bun:"table:banking_institutions,alias:bi"`

	ID           string    `bun:"id,pk"`
	Provider     string    `bun:"provider,notnull"`
	Name         string    `bun:"name,notnull"`
	Country      string    `bun:"country,notnull"`
	LogoURL      *string   `bun:"logo_url"`
	PrimaryColor *string   `bun:"primary_color"`
	URL          *string   `bun:"url"`
	OAuthSupport bool      `bun:"oauth_support,notnull"`
	Products     []string  `bun:"products,type:jsonb,notnull"`
	LastUpdate   time.Time `bun:"last_update,notnull"`
	CreatedAt    time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt    time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func newInstitutionRecord(institution core.Institution, now time.Time) *institutionRecord {
	lastUpdate := institution.LastUpdate.UTC()
	if institution.LastUpdate.IsZero() {
		lastUpdate = now
	}
	products := append([]string{}, institution.Products...)
	return &institutionRecord{
		ID:           institution.ID,
		Provider:     string(institution.Provider),
		Name:         institution.Name,
		Country:      institution.Country,
		LogoURL:      cloneStringPointer(institution.LogoURL),
		PrimaryColor: cloneStringPointer(institution.PrimaryColor),
		URL:          cloneStringPointer(institution.URL),
		OAuthSupport: institution.OAuthSupport,
		Products:     products,
		LastUpdate:   lastUpdate,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (r *institutionRecord) toDomain() core.Institution {
	if r == nil {
		return core.Institution{}
	}
	return core.Institution{
		ID:           r.ID,
		Name:         r.Name,
		Country:      r.Country,
		Provider:     core.ProviderName(r.Provider),
		LogoURL:      cloneStringPointer(r.LogoURL),
		PrimaryColor: cloneStringPointer(r.PrimaryColor),
		URL:          cloneStringPointer(r.URL),
		OAuthSupport: r.OAuthSupport,
		Products:     append([]string{}, r.Products...),
		LastUpdate:   r.LastUpdate.UTC(),
	}
}

type syncJobRecord struct {
	bun.BaseModel `bun:"table:banking_sync_jobs,alias:bsj"`

	ID           string     `bun:"id,pk"`
	ConnectionID string     `bun:"connection_id,notnull"`
	Provider     string     `bun:"provider,notnull"`
	Mode         string     `bun:"mode,notnull"`
	Status       string     `bun:"status,notnull"`
	Attempts     int        `bun:"attempts,notnull"`
	WindowFrom   *time.Time `bun:"window_from,nullzero"`
	WindowTo     *time.Time `bun:"window_to,nullzero"`
	Accounts     int        `bun:"accounts,notnull"`
	Transactions int        `bun:"transactions,notnull"`
	Error        string     `bun:"error,notnull"`
	CreatedAt    time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt    time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
	FinishedAt   *time.Time `bun:"finished_at,nullzero"`
}

func newSyncJobRecord(job bankingsync.Job) *syncJobRecord {
	return &syncJobRecord{
		ID:           job.ID,
		ConnectionID: job.ConnectionID,
		Provider:     string(job.Provider),
		Mode:         string(job.Mode),
		Status:       string(job.Status),
		Attempts:     job.Attempts,
		WindowFrom:   cloneTimePointer(job.From),
		WindowTo:     cloneTimePointer(job.To),
		Accounts:     job.Accounts,
		Transactions: job.Transactions,
		Error:        job.Error,
		CreatedAt:    job.CreatedAt.UTC(),
		UpdatedAt:    job.UpdatedAt.UTC(),
		FinishedAt:   cloneTimePointer(job.FinishedAt),
	}
}

func (r *syncJobRecord) toDomain() bankingsync.Job {
	if r == nil {
		return bankingsync.Job{}
	}
	return bankingsync.Job{
		ID:           r.ID,
		ConnectionID: r.ConnectionID,
		Provider:     core.ProviderName(r.Provider),
		Mode:         bankingsync.JobMode(r.Mode),
		Status:       bankingsync.JobStatus(r.Status),
		Attempts:     r.Attempts,
		From:         cloneTimePointer(r.WindowFrom),
		To:           cloneTimePointer(r.WindowTo),
		Accounts:     r.Accounts,
		Transactions: r.Transactions,
		Error:        r.Error,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
		FinishedAt:   cloneTimePointer(r.FinishedAt),
	}
}

func cloneTimePointer(input *time.Time) *time.Time {
	if input == nil || input.IsZero() {
		return nil
	}
	value := input.UTC()
	return &value
}

func cloneStringPointer(input *string) *string {
	if input == nil {
		return nil
	}
	value := *input
	return &value
}

func cloneFloatPointer(input *float64) *float64 {
	if input == nil {
		return nil
	}
	value := *input
	return &value
}
