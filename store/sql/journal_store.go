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

// JournalStore persists the per-shipment delivery journal. One row per
// (carrier, shipment); re-running a batch upserts into the same row so a
// delivered shipment stays delivered.
type JournalStore struct {
	db   *bun.DB
	repo repository.Repository[*shipmentJournalRecord]
}

func NewJournalStore(db *bun.DB) (*JournalStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*shipmentJournalRecord](db, journalHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid journal repository wiring: %w", err)
		}
	}
	return &JournalStore{db: db, repo: repo}, nil
}

func (s *JournalStore) Get(ctx context.Context, carrierID string, shipmentID string) (core.JournalEntry, error) {
	if s == nil || s.db == nil {
		return core.JournalEntry{}, fmt.Errorf("sqlstore: journal store is not configured")
	}
	carrierID = strings.ToLower(strings.TrimSpace(carrierID))
	shipmentID = strings.TrimSpace(shipmentID)
	if carrierID == "" || shipmentID == "" {
		return core.JournalEntry{}, fmt.Errorf("sqlstore: carrier id and shipment id are required")
	}

	record := &shipmentJournalRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.carrier_id = ?", carrierID).
		Where("?TableAlias.shipment_id = ?", shipmentID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.JournalEntry{}, fmt.Errorf("sqlstore: shipment %s/%s: %w", carrierID, shipmentID, core.ErrJournalEntryNotFound)
		}
		return core.JournalEntry{}, err
	}
	return record.toDomain(), nil
}

func (s *JournalStore) Upsert(ctx context.Context, in core.UpsertJournalEntryInput) (core.JournalEntry, error) {
	if s == nil || s.db == nil {
		return core.JournalEntry{}, fmt.Errorf("sqlstore: journal store is not configured")
	}
	carrierID := strings.ToLower(strings.TrimSpace(in.CarrierID))
	shipmentID := strings.TrimSpace(in.ShipmentID)
	if carrierID == "" || shipmentID == "" {
		return core.JournalEntry{}, fmt.Errorf("sqlstore: carrier id and shipment id are required")
	}

	now := time.Now().UTC()
	var saved *shipmentJournalRecord
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record := &shipmentJournalRecord{}
		err := tx.NewSelect().
			Model(record).
			Where("?TableAlias.carrier_id = ?", carrierID).
			Where("?TableAlias.shipment_id = ?", shipmentID).
			Limit(1).
			Scan(ctx)
		created := false
		if err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				return err
			}
			created = true
			record = &shipmentJournalRecord{
				ID:         uuid.NewString(),
				CarrierID:  carrierID,
				ShipmentID: shipmentID,
				CreatedAt:  now,
			}
		}

		record.BatchID = strings.TrimSpace(in.BatchID)
		record.Category = strings.TrimSpace(in.Category)
		record.Status = string(in.Status)
		record.Attempts = in.Attempts
		record.DocumentIDs = append([]string(nil), in.DocumentIDs...)
		record.LastError = in.LastError
		if in.Acknowledged && record.AcknowledgedAt == nil {
			acknowledged := now
			record.AcknowledgedAt = &acknowledged
		}
		record.UpdatedAt = now

		if created {
			if _, insertErr := tx.NewInsert().Model(record).Exec(ctx); insertErr != nil {
				return insertErr
			}
		} else {
			if _, updateErr := tx.NewUpdate().Model(record).WherePK().Exec(ctx); updateErr != nil {
				return updateErr
			}
		}
		saved = record
		return nil
	})
	if err != nil {
		return core.JournalEntry{}, err
	}
	return saved.toDomain(), nil
}

func (s *JournalStore) ListByBatch(ctx context.Context, batchID string) ([]core.JournalEntry, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: journal store is not configured")
	}
	batchID = strings.TrimSpace(batchID)
	if batchID == "" {
		return nil, fmt.Errorf("sqlstore: batch id is required")
	}

	var records []*shipmentJournalRecord
	err := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.batch_id = ?", batchID).
		OrderExpr("?TableAlias.shipment_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]core.JournalEntry, 0, len(records))
	for _, record := range records {
		entries = append(entries, record.toDomain())
	}
	return entries, nil
}
