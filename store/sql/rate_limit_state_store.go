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

	"github.com/goliatone/go-carriers/ratelimit"
)

// RateLimitStateStore mirrors limiter snapshots to SQL so replacement
// processes can seed their limiters from the last observed state. The
// in-process limiter stays authoritative; this store never gates requests.
type RateLimitStateStore struct {
	db   *bun.DB
	repo repository.Repository[*rateLimitStateRecord]
}

func NewRateLimitStateStore(db *bun.DB) (*RateLimitStateStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*rateLimitStateRecord](db, rateLimitStateHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid rate-limit state repository wiring: %w", err)
		}
	}
	return &RateLimitStateStore{db: db, repo: repo}, nil
}

func (s *RateLimitStateStore) Get(ctx context.Context, carrierID string) (ratelimit.State, error) {
	if s == nil || s.db == nil {
		return ratelimit.State{}, fmt.Errorf("sqlstore: rate-limit state store is not configured")
	}
	carrierID = strings.ToLower(strings.TrimSpace(carrierID))
	if carrierID == "" {
		return ratelimit.State{}, fmt.Errorf("sqlstore: carrier id is required")
	}

	record := &rateLimitStateRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.carrier_id = ?", carrierID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ratelimit.State{}, ratelimit.ErrStateNotFound
		}
		return ratelimit.State{}, err
	}
	return record.toDomain(), nil
}

func (s *RateLimitStateStore) Upsert(ctx context.Context, state ratelimit.State) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: rate-limit state store is not configured")
	}
	carrierID := strings.ToLower(strings.TrimSpace(state.CarrierID))
	if carrierID == "" {
		return fmt.Errorf("sqlstore: state carrier id is required")
	}
	updatedAt := state.UpdatedAt.UTC()
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record := &rateLimitStateRecord{}
		err := tx.NewSelect().
			Model(record).
			Where("?TableAlias.carrier_id = ?", carrierID).
			Limit(1).
			Scan(ctx)
		created := false
		if err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				return err
			}
			created = true
			record = &rateLimitStateRecord{
				ID:        uuid.NewString(),
				CarrierID: carrierID,
				CreatedAt: updatedAt,
			}
		}

		record.Ceiling = state.Ceiling
		record.LimitValue = state.Limit
		record.InFlight = state.InFlight
		record.SuccessStreak = state.SuccessStreak
		record.ThrottleStreak = state.ThrottleStreak
		record.BackoffUntil = copyTimePointer(state.BackoffUntil)
		record.UpdatedAt = updatedAt

		if created {
			_, insertErr := tx.NewInsert().Model(record).Exec(ctx)
			return insertErr
		}
		_, updateErr := tx.NewUpdate().Model(record).WherePK().Exec(ctx)
		return updateErr
	})
}

func (s *RateLimitStateStore) List(ctx context.Context) ([]ratelimit.State, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: rate-limit state store is not configured")
	}

	var records []*rateLimitStateRecord
	err := s.db.NewSelect().
		Model(&records).
		OrderExpr("?TableAlias.carrier_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	states := make([]ratelimit.State, 0, len(records))
	for _, record := range records {
		states = append(states, record.toDomain())
	}
	return states, nil
}
