package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-banking/core"
	"github.com/goliatone/go-banking/security"
	bankingsync "github.com/goliatone/go-banking/sync"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var ErrNotFound = errors.New("sqlstore: record not found")

type CreateConnectionInput struct {
	Provider core.ProviderName
	Token    core.TokenResponse
	Status   core.ConnectionStatus
}

// ConnectionStore persists connections with their tokens sealed by the
// configured cipher.
type ConnectionStore struct {
	db     *bun.DB
	repo   repository.Repository[*connectionRecord]
	cipher security.Cipher
	now    func() time.Time
}

func NewConnectionStore(db *bun.DB, cipher security.Cipher) (*ConnectionStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*connectionRecord](db, connectionHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid connection repository wiring: %w", err)
		}
	}
	if cipher == nil {
		cipher = security.PlaintextCipher{}
	}
	return &ConnectionStore{
		db:     db,
		repo:   repo,
		cipher: cipher,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *ConnectionStore) Create(ctx context.Context, in CreateConnectionInput) (bankingsync.Connection, error) {
	if s == nil || s.repo == nil {
		return bankingsync.Connection{}, fmt.Errorf("sqlstore: connection store is not configured")
	}
	provider := core.ParseProviderName(string(in.Provider))
	if provider == "" {
		return bankingsync.Connection{}, fmt.Errorf("sqlstore: provider is required")
	}
	if strings.TrimSpace(in.Token.AccessToken) == "" {
		return bankingsync.Connection{}, fmt.Errorf("sqlstore: access token is required")
	}
	status := in.Status
	if status == "" {
		status = core.ConnectionConnected
	}

	now := s.now()
	record := &connectionRecord{
		ID:        uuid.NewString(),
		Provider:  string(provider),
		Status:    string(status),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.sealToken(ctx, record, in.Token); err != nil {
		return bankingsync.Connection{}, err
	}

	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return bankingsync.Connection{}, err
	}
	return s.open(ctx, created)
}

func (s *ConnectionStore) Get(ctx context.Context, id string) (bankingsync.Connection, error) {
	if s == nil || s.db == nil {
		return bankingsync.Connection{}, fmt.Errorf("sqlstore: connection store is not configured")
	}
	record, err := s.find(ctx, s.db, id)
	if err != nil {
		return bankingsync.Connection{}, err
	}
	return s.open(ctx, record)
}

// List returns live connections, optionally for one provider, oldest first.
func (s *ConnectionStore) List(ctx context.Context, provider core.ProviderName) ([]bankingsync.Connection, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: connection store is not configured")
	}
	selectors := []repository.SelectCriteria{
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.deleted_at IS NULL")
		}),
		repository.OrderBy("created_at ASC"),
	}
	if trimmed := strings.TrimSpace(string(provider)); trimmed != "" {
		selectors = append(selectors, repository.SelectBy("provider", "=", trimmed))
	}
	records, _, err := s.repo.List(ctx, selectors...)
	if err != nil {
		return nil, err
	}
	out := make([]bankingsync.Connection, 0, len(records))
	for _, record := range records {
		conn, err := s.open(ctx, record)
		if err != nil {
			return nil, err
		}
		out = append(out, conn)
	}
	return out, nil
}

// UpdateTokens stores a refreshed token. A response without a refresh token
// keeps the stored one.
func (s *ConnectionStore) UpdateTokens(ctx context.Context, id string, token core.TokenResponse) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: connection store is not configured")
	}
	if strings.TrimSpace(token.AccessToken) == "" {
		return fmt.Errorf("sqlstore: access token is required")
	}
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := s.find(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := s.sealToken(ctx, record, token); err != nil {
			return err
		}
		record.UpdatedAt = s.now()
		_, err = tx.NewUpdate().
			Model(record).
			Column("access_token", "refresh_token", "token_expires_at", "updated_at").
			Where("?TableAlias.id = ?", record.ID).
			Exec(ctx)
		return err
	})
}

func (s *ConnectionStore) UpdateStatus(
	ctx context.Context,
	id string,
	status core.ConnectionStatus,
	reason string,
	syncedAt *time.Time,
) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: connection store is not configured")
	}
	trimmedID := strings.TrimSpace(id)
	if trimmedID == "" {
		return fmt.Errorf("sqlstore: connection id is required")
	}
	columns := []string{"status", "last_error", "updated_at"}
	record := &connectionRecord{
		ID:        trimmedID,
		Status:    string(status),
		LastError: strings.TrimSpace(reason),
		UpdatedAt: s.now(),
	}
	if syncedAt != nil {
		record.LastSyncedAt = cloneTimePointer(syncedAt)
		columns = append(columns, "last_synced_at")
	}
	res, err := s.db.NewUpdate().
		Model(record).
		Column(columns...).
		Where("?TableAlias.id = ?", trimmedID).
		Where("?TableAlias.deleted_at IS NULL").
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireAffected(res, "connection", trimmedID)
}

// Delete soft deletes the connection. Its accounts and transactions stay
// until the row is purged.
func (s *ConnectionStore) Delete(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: connection store is not configured")
	}
	trimmedID := strings.TrimSpace(id)
	res, err := s.db.NewDelete().
		Model((*connectionRecord)(nil)).
		Where("?TableAlias.id = ?", trimmedID).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireAffected(res, "connection", trimmedID)
}

func (s *ConnectionStore) find(ctx context.Context, db bun.IDB, id string) (*connectionRecord, error) {
	trimmedID := strings.TrimSpace(id)
	if trimmedID == "" {
		return nil, fmt.Errorf("sqlstore: connection id is required")
	}
	record := &connectionRecord{}
	err := db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", trimmedID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: connection %q", ErrNotFound, trimmedID)
		}
		return nil, err
	}
	return record, nil
}

func (s *ConnectionStore) sealToken(ctx context.Context, record *connectionRecord, token core.TokenResponse) error {
	access, err := security.EncryptString(ctx, s.cipher, strings.TrimSpace(token.AccessToken))
	if err != nil {
		return fmt.Errorf("sqlstore: seal access token: %w", err)
	}
	record.AccessToken = access
	if token.RefreshToken != nil && strings.TrimSpace(*token.RefreshToken) != "" {
		refresh, err := security.EncryptString(ctx, s.cipher, strings.TrimSpace(*token.RefreshToken))
		if err != nil {
			return fmt.Errorf("sqlstore: seal refresh token: %w", err)
		}
		record.RefreshToken = refresh
	}
	record.TokenExpiresAt = nil
	if !token.ExpiresAt.IsZero() {
		expires := token.ExpiresAt.UTC()
		record.TokenExpiresAt = &expires
	}
	return nil
}

func (s *ConnectionStore) open(ctx context.Context, record *connectionRecord) (bankingsync.Connection, error) {
	conn := record.toDomain()
	access, err := security.DecryptString(ctx, s.cipher, conn.AccessToken)
	if err != nil {
		return bankingsync.Connection{}, fmt.Errorf("sqlstore: open access token: %w", err)
	}
	conn.AccessToken = access
	if conn.RefreshToken != nil {
		refresh, err := security.DecryptString(ctx, s.cipher, *conn.RefreshToken)
		if err != nil {
			return bankingsync.Connection{}, fmt.Errorf("sqlstore: open refresh token: %w", err)
		}
		conn.RefreshToken = &refresh
	}
	return conn, nil
}

func requireAffected(res sql.Result, what string, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return nil
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s %q", ErrNotFound, what, id)
	}
	return nil
}
