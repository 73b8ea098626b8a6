package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-carriers/core"
)

// BatchStore persists batch bookkeeping rows.
type BatchStore struct {
	db   *bun.DB
	repo repository.Repository[*batchRecord]
}

func NewBatchStore(db *bun.DB) (*BatchStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*batchRecord](db, batchHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid batch repository wiring: %w", err)
		}
	}
	return &BatchStore{db: db, repo: repo}, nil
}

func (s *BatchStore) Create(ctx context.Context, batch core.Batch) (core.Batch, error) {
	if s == nil || s.db == nil {
		return core.Batch{}, fmt.Errorf("sqlstore: batch store is not configured")
	}
	batch.CarrierID = strings.ToLower(strings.TrimSpace(batch.CarrierID))
	if batch.CarrierID == "" {
		return core.Batch{}, fmt.Errorf("sqlstore: carrier id is required")
	}

	now := time.Now().UTC()
	if strings.TrimSpace(batch.ID) == "" {
		batch.ID = uuid.NewString()
	}
	if batch.CreatedAt.IsZero() {
		batch.CreatedAt = now
	}

	record := &batchRecord{
		ID:        batch.ID,
		CreatedAt: batch.CreatedAt.UTC(),
		UpdatedAt: now,
	}
	record.applyDomain(batch)

	var saved *batchRecord
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().
			Model((*batchRecord)(nil)).
			Where("?TableAlias.id = ?", record.ID).
			Exists(ctx)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("sqlstore: batch already exists: %s", record.ID)
		}
		if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
			return err
		}
		saved = record
		return nil
	})
	if err != nil {
		return core.Batch{}, err
	}
	return saved.toDomain(), nil
}

func (s *BatchStore) Get(ctx context.Context, id string) (core.Batch, error) {
	if s == nil || s.db == nil {
		return core.Batch{}, fmt.Errorf("sqlstore: batch store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return core.Batch{}, fmt.Errorf("sqlstore: batch id is required")
	}

	record := &batchRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Batch{}, fmt.Errorf("sqlstore: batch %q: %w", id, core.ErrBatchNotFound)
		}
		return core.Batch{}, err
	}
	return record.toDomain(), nil
}

func (s *BatchStore) Update(ctx context.Context, batch core.Batch) (core.Batch, error) {
	if s == nil || s.db == nil {
		return core.Batch{}, fmt.Errorf("sqlstore: batch store is not configured")
	}
	id := strings.TrimSpace(batch.ID)
	if id == "" {
		return core.Batch{}, fmt.Errorf("sqlstore: batch id is required")
	}
	batch.CarrierID = strings.ToLower(strings.TrimSpace(batch.CarrierID))

	now := time.Now().UTC()
	var saved *batchRecord
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record := &batchRecord{}
		err := tx.NewSelect().
			Model(record).
			Where("?TableAlias.id = ?", id).
			Limit(1).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("sqlstore: batch %q: %w", id, core.ErrBatchNotFound)
			}
			return err
		}
		record.applyDomain(batch)
		record.UpdatedAt = now
		if _, err := tx.NewUpdate().Model(record).WherePK().Exec(ctx); err != nil {
			return err
		}
		saved = record
		return nil
	})
	if err != nil {
		return core.Batch{}, err
	}
	return saved.toDomain(), nil
}

func (s *BatchStore) ListByCarrier(ctx context.Context, carrierID string, limit int) ([]core.Batch, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: batch store is not configured")
	}
	carrierID = strings.ToLower(strings.TrimSpace(carrierID))
	if carrierID == "" {
		return nil, fmt.Errorf("sqlstore: carrier id is required")
	}

	var records []*batchRecord
	query := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.carrier_id = ?", carrierID).
		OrderExpr("?TableAlias.created_at DESC, ?TableAlias.id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Scan(ctx); err != nil {
		return nil, err
	}
	batches := make([]core.Batch, 0, len(records))
	for _, record := range records {
		batches = append(batches, record.toDomain())
	}
	return batches, nil
}
