package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	bankingsync "github.com/goliatone/go-banking/sync"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type SyncJobStore struct {
	db   *bun.DB
	repo repository.Repository[*syncJobRecord]
}

func NewSyncJobStore(db *bun.DB) (*SyncJobStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*syncJobRecord](db, syncJobHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid sync job repository wiring: %w", err)
		}
	}
	return &SyncJobStore{db: db, repo: repo}, nil
}

func (s *SyncJobStore) Create(ctx context.Context, job bankingsync.Job) (bankingsync.Job, error) {
	if s == nil || s.db == nil {
		return bankingsync.Job{}, fmt.Errorf("sqlstore: sync job store is not configured")
	}
	job.ConnectionID = strings.TrimSpace(job.ConnectionID)
	if job.ConnectionID == "" || strings.TrimSpace(string(job.Provider)) == "" {
		return bankingsync.Job{}, fmt.Errorf("sqlstore: connection id and provider are required")
	}
	if strings.TrimSpace(job.ID) == "" {
		job.ID = uuid.NewString()
	}
	if job.Mode == "" {
		job.Mode = bankingsync.JobModeIncremental
	}
	if job.Status == "" {
		job.Status = bankingsync.JobStatusQueued
	}
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	if job.UpdatedAt.IsZero() {
		job.UpdatedAt = now
	}

	record := newSyncJobRecord(job)
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return bankingsync.Job{}, err
	}
	return record.toDomain(), nil
}

func (s *SyncJobStore) Get(ctx context.Context, id string) (bankingsync.Job, error) {
	if s == nil || s.db == nil {
		return bankingsync.Job{}, fmt.Errorf("sqlstore: sync job store is not configured")
	}
	trimmedID := strings.TrimSpace(id)
	record := &syncJobRecord{}
	err := s.db.NewSelect().Model(record).Where("?TableAlias.id = ?", trimmedID).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return bankingsync.Job{}, fmt.Errorf("%w: sync job %q", ErrNotFound, trimmedID)
		}
		return bankingsync.Job{}, err
	}
	return record.toDomain(), nil
}

func (s *SyncJobStore) Update(ctx context.Context, job bankingsync.Job) (bankingsync.Job, error) {
	if s == nil || s.repo == nil {
		return bankingsync.Job{}, fmt.Errorf("sqlstore: sync job store is not configured")
	}
	trimmedID := strings.TrimSpace(job.ID)
	if trimmedID == "" {
		return bankingsync.Job{}, fmt.Errorf("sqlstore: sync job id is required")
	}
	if job.UpdatedAt.IsZero() {
		job.UpdatedAt = time.Now().UTC()
	}
	record := newSyncJobRecord(job)
	updated, err := s.repo.Update(ctx, record, repository.UpdateByID(trimmedID))
	if err != nil {
		return bankingsync.Job{}, err
	}
	return updated.toDomain(), nil
}

// ListByConnection returns the newest jobs first, at most limit of them.
func (s *SyncJobStore) ListByConnection(ctx context.Context, connectionID string, limit int) ([]bankingsync.Job, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: sync job store is not configured")
	}
	if limit <= 0 {
		limit = 20
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("connection_id", "=", strings.TrimSpace(connectionID)),
		repository.OrderBy("created_at DESC"),
		repository.SelectPaginate(limit, 0),
	)
	if err != nil {
		return nil, err
	}
	out := make([]bankingsync.Job, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}
