package query

import (
	"context"

	"github.com/goliatone/go-carriers/core"
)

type BatchReader interface {
	Batch(ctx context.Context, batchID string) (core.Batch, error)
	Batches(ctx context.Context, carrierID string, limit int) ([]core.Batch, error)
}

type JournalReader interface {
	BatchJournal(ctx context.Context, batchID string) ([]core.JournalEntry, error)
	DeliveryStatus(ctx context.Context, carrierID string, shipmentID string) (core.JournalEntry, error)
}

type ProfileReader interface {
	Profiles(ctx context.Context) ([]core.CarrierProfile, error)
}

type ActivityReader interface {
	Activity(ctx context.Context, filter core.ActivityFilter) (core.ActivityPage, error)
}

type BatchStatusQuery struct {
	reader BatchReader
}

func NewBatchStatusQuery(reader BatchReader) *BatchStatusQuery {
	return &BatchStatusQuery{reader: reader}
}

func (q *BatchStatusQuery) Query(ctx context.Context, msg BatchStatusMessage) (core.Batch, error) {
	if q == nil || q.reader == nil {
		return core.Batch{}, queryDependencyError("query: batch reader is required")
	}
	return q.reader.Batch(ctx, msg.BatchID)
}

type ListBatchesQuery struct {
	reader BatchReader
}

func NewListBatchesQuery(reader BatchReader) *ListBatchesQuery {
	return &ListBatchesQuery{reader: reader}
}

func (q *ListBatchesQuery) Query(ctx context.Context, msg ListBatchesMessage) ([]core.Batch, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: batch reader is required")
	}
	return q.reader.Batches(ctx, msg.CarrierID, msg.Limit)
}

type ShipmentJournalQuery struct {
	reader JournalReader
}

func NewShipmentJournalQuery(reader JournalReader) *ShipmentJournalQuery {
	return &ShipmentJournalQuery{reader: reader}
}

func (q *ShipmentJournalQuery) Query(ctx context.Context, msg ShipmentJournalMessage) ([]core.JournalEntry, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: journal reader is required")
	}
	return q.reader.BatchJournal(ctx, msg.BatchID)
}

type DeliveryStatusQuery struct {
	reader JournalReader
}

func NewDeliveryStatusQuery(reader JournalReader) *DeliveryStatusQuery {
	return &DeliveryStatusQuery{reader: reader}
}

func (q *DeliveryStatusQuery) Query(ctx context.Context, msg DeliveryStatusMessage) (core.JournalEntry, error) {
	if q == nil || q.reader == nil {
		return core.JournalEntry{}, queryDependencyError("query: journal reader is required")
	}
	return q.reader.DeliveryStatus(ctx, msg.CarrierID, msg.ShipmentID)
}

type ListCarrierProfilesQuery struct {
	reader ProfileReader
}

func NewListCarrierProfilesQuery(reader ProfileReader) *ListCarrierProfilesQuery {
	return &ListCarrierProfilesQuery{reader: reader}
}

func (q *ListCarrierProfilesQuery) Query(ctx context.Context, _ ListCarrierProfilesMessage) ([]core.CarrierProfile, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: profile reader is required")
	}
	return q.reader.Profiles(ctx)
}

type ListActivityQuery struct {
	reader ActivityReader
}

func NewListActivityQuery(reader ActivityReader) *ListActivityQuery {
	return &ListActivityQuery{reader: reader}
}

func (q *ListActivityQuery) Query(ctx context.Context, msg ListActivityMessage) (core.ActivityPage, error) {
	if q == nil || q.reader == nil {
		return core.ActivityPage{}, queryDependencyError("query: activity reader is required")
	}
	return q.reader.Activity(ctx, msg.Filter)
}
