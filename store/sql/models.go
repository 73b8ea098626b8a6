package sqlstore

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-carriers/core"
	"github.com/goliatone/go-carriers/ratelimit"
)

type shipmentJournalRecord struct {
	bun.BaseModel `bun:"table:carrier_shipments,alias:cs"`

	ID             string     `bun:"id,pk"`
	CarrierID      string     `bun:"carrier_id,notnull"`
	ShipmentID     string     `bun:"shipment_id,notnull"`
	BatchID        string     `bun:"batch_id"`
	Category       string     `bun:"category"`
	Status         string     `bun:"status,notnull"`
	Attempts       int        `bun:"attempts,notnull"`
	DocumentIDs    []string   `bun:"document_ids,type:jsonb,notnull"`
	LastError      string     `bun:"last_error"`
	AcknowledgedAt *time.Time `bun:"acknowledged_at,nullzero"`
	CreatedAt      time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func (r *shipmentJournalRecord) toDomain() core.JournalEntry {
	if r == nil {
		return core.JournalEntry{}
	}
	entry := core.JournalEntry{
		ID:          r.ID,
		CarrierID:   r.CarrierID,
		ShipmentID:  r.ShipmentID,
		BatchID:     r.BatchID,
		Category:    r.Category,
		Status:      core.JournalStatus(r.Status),
		Attempts:    r.Attempts,
		DocumentIDs: append([]string(nil), r.DocumentIDs...),
		LastError:   r.LastError,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	entry.AcknowledgedAt = copyTimePointer(r.AcknowledgedAt)
	return entry
}

type batchRecord struct {
	bun.BaseModel `bun:"table:carrier_batches,alias:cb"`

	ID         string     `bun:"id,pk"`
	CarrierID  string     `bun:"carrier_id,notnull"`
	Status     string     `bun:"status,notnull"`
	Shipments  int        `bun:"shipments,notnull"`
	Succeeded  int        `bun:"succeeded,notnull"`
	Failed     int        `bun:"failed,notnull"`
	Cancelled  int        `bun:"cancelled,notnull"`
	Skipped    int        `bun:"skipped,notnull"`
	LastError  string     `bun:"last_error"`
	StartedAt  time.Time  `bun:"started_at,nullzero"`
	FinishedAt *time.Time `bun:"finished_at,nullzero"`
	CreatedAt  time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt  time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func (r *batchRecord) toDomain() core.Batch {
	if r == nil {
		return core.Batch{}
	}
	return core.Batch{
		ID:         r.ID,
		CarrierID:  r.CarrierID,
		Status:     core.BatchStatus(r.Status),
		Shipments:  r.Shipments,
		Succeeded:  r.Succeeded,
		Failed:     r.Failed,
		Cancelled:  r.Cancelled,
		Skipped:    r.Skipped,
		LastError:  r.LastError,
		StartedAt:  r.StartedAt,
		FinishedAt: copyTimePointer(r.FinishedAt),
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

func (r *batchRecord) applyDomain(batch core.Batch) {
	r.CarrierID = batch.CarrierID
	r.Status = string(batch.Status)
	r.Shipments = batch.Shipments
	r.Succeeded = batch.Succeeded
	r.Failed = batch.Failed
	r.Cancelled = batch.Cancelled
	r.Skipped = batch.Skipped
	r.LastError = batch.LastError
	r.StartedAt = batch.StartedAt
	r.FinishedAt = copyTimePointer(batch.FinishedAt)
}

type rateLimitStateRecord struct {
	bun.BaseModel `bun:"table:carrier_rate_limit_state,alias:crls"`

	ID             string     `bun:"id,pk"`
	CarrierID      string     `bun:"carrier_id,notnull,unique"`
	Ceiling        int        `bun:"ceiling,notnull"`
	LimitValue     int        `bun:"limit_value,notnull"`
	InFlight       int        `bun:"in_flight,notnull"`
	SuccessStreak  int        `bun:"success_streak,notnull"`
	ThrottleStreak int        `bun:"throttle_streak,notnull"`
	BackoffUntil   *time.Time `bun:"backoff_until,nullzero"`
	CreatedAt      time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func (r *rateLimitStateRecord) toDomain() ratelimit.State {
	if r == nil {
		return ratelimit.State{}
	}
	return ratelimit.State{
		CarrierID:      r.CarrierID,
		Ceiling:        r.Ceiling,
		Limit:          r.LimitValue,
		InFlight:       r.InFlight,
		SuccessStreak:  r.SuccessStreak,
		ThrottleStreak: r.ThrottleStreak,
		BackoffUntil:   copyTimePointer(r.BackoffUntil),
		UpdatedAt:      r.UpdatedAt,
	}
}

type activityEntryRecord struct {
	bun.BaseModel `bun:"table:carrier_activity,alias:ca"`

	ID        string         `bun:"id,pk"`
	CarrierID string         `bun:"carrier_id,notnull"`
	BatchID   string         `bun:"batch_id"`
	Action    string         `bun:"action,notnull"`
	Status    string         `bun:"status,notnull"`
	Metadata  map[string]any `bun:"metadata,type:jsonb,notnull"`
	CreatedAt time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func (r *activityEntryRecord) toDomain() core.ActivityEntry {
	if r == nil {
		return core.ActivityEntry{}
	}
	return core.ActivityEntry{
		ID:        r.ID,
		CarrierID: r.CarrierID,
		BatchID:   r.BatchID,
		Action:    r.Action,
		Status:    core.ActivityStatus(r.Status),
		Metadata:  copyAnyMap(r.Metadata),
		CreatedAt: r.CreatedAt,
	}
}

func copyTimePointer(input *time.Time) *time.Time {
	if input == nil {
		return nil
	}
	value := input.UTC()
	return &value
}

func copyAnyMap(input map[string]any) map[string]any {
	if input == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(input))
	for key, value := range input {
		out[key] = value
	}
	return out
}
