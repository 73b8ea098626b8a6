package query

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/goliatone/go-carriers/core"
)

type stubBatchReader struct {
	batch   core.Batch
	batches []core.Batch
	err     error
}

func (s stubBatchReader) Batch(_ context.Context, batchID string) (core.Batch, error) {
	if s.err != nil {
		return core.Batch{}, s.err
	}
	if s.batch.ID != batchID {
		return core.Batch{}, fmt.Errorf("batch %q: %w", batchID, core.ErrBatchNotFound)
	}
	return s.batch, nil
}

func (s stubBatchReader) Batches(_ context.Context, _ string, limit int) ([]core.Batch, error) {
	if s.err != nil {
		return nil, s.err
	}
	if limit > 0 && len(s.batches) > limit {
		return s.batches[:limit], nil
	}
	return s.batches, nil
}

type stubJournalReader struct {
	entries map[string][]core.JournalEntry
}

func (s stubJournalReader) BatchJournal(_ context.Context, batchID string) ([]core.JournalEntry, error) {
	return s.entries[batchID], nil
}

func (s stubJournalReader) DeliveryStatus(_ context.Context, carrierID string, shipmentID string) (core.JournalEntry, error) {
	for _, entries := range s.entries {
		for _, entry := range entries {
			if entry.CarrierID == carrierID && entry.ShipmentID == shipmentID {
				return entry, nil
			}
		}
	}
	return core.JournalEntry{}, core.ErrJournalEntryNotFound
}

func TestBatchStatusQuery_ReturnsBatch(t *testing.T) {
	reader := stubBatchReader{batch: core.Batch{
		ID:        "batch-1",
		CarrierID: "acme",
		Status:    core.BatchStatusSucceeded,
		Succeeded: 4,
	}}
	q := NewBatchStatusQuery(reader)

	batch, err := q.Query(context.Background(), BatchStatusMessage{BatchID: "batch-1"})
	if err != nil {
		t.Fatalf("query batch status: %v", err)
	}
	if batch.Status != core.BatchStatusSucceeded || batch.Succeeded != 4 {
		t.Fatalf("unexpected batch: %+v", batch)
	}
}

func TestListBatchesQuery_AppliesLimit(t *testing.T) {
	reader := stubBatchReader{batches: []core.Batch{
		{ID: "batch-2", CarrierID: "acme"},
		{ID: "batch-1", CarrierID: "acme"},
	}}
	q := NewListBatchesQuery(reader)

	batches, err := q.Query(context.Background(), ListBatchesMessage{CarrierID: "acme", Limit: 1})
	if err != nil {
		t.Fatalf("query batches: %v", err)
	}
	if len(batches) != 1 || batches[0].ID != "batch-2" {
		t.Fatalf("unexpected batches: %+v", batches)
	}
}

func TestShipmentJournalQuery_ReturnsBatchEntries(t *testing.T) {
	reader := stubJournalReader{entries: map[string][]core.JournalEntry{
		"batch-1": {
			{CarrierID: "acme", ShipmentID: "ship-1", BatchID: "batch-1", Status: core.JournalStatusDelivered},
			{CarrierID: "acme", ShipmentID: "ship-2", BatchID: "batch-1", Status: core.JournalStatusFailed},
		},
	}}
	q := NewShipmentJournalQuery(reader)

	entries, err := q.Query(context.Background(), ShipmentJournalMessage{BatchID: "batch-1"})
	if err != nil {
		t.Fatalf("query journal: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
}

func TestDeliveryStatusQuery_FindsEntry(t *testing.T) {
	ackAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	reader := stubJournalReader{entries: map[string][]core.JournalEntry{
		"batch-1": {
			{CarrierID: "acme", ShipmentID: "ship-1", Status: core.JournalStatusDelivered, AcknowledgedAt: &ackAt},
		},
	}}
	q := NewDeliveryStatusQuery(reader)

	entry, err := q.Query(context.Background(), DeliveryStatusMessage{CarrierID: "acme", ShipmentID: "ship-1"})
	if err != nil {
		t.Fatalf("query delivery status: %v", err)
	}
	if !entry.Delivered() || entry.AcknowledgedAt == nil {
		t.Fatalf("unexpected entry: %+v", entry)
	}
}

func TestListCarrierProfilesQuery_DelegatesToRegistry(t *testing.T) {
	registry := core.NewProfileRegistry()
	profile := core.CarrierProfile{
		ID:          "acme",
		Name:        "Acme Mutual",
		TokenURL:    "https://sts.acme.example/token",
		TransferURL: "https://transfer.acme.example/soap",
	}
	if err := registry.Register(profile); err != nil {
		t.Fatalf("register profile: %v", err)
	}

	q := NewListCarrierProfilesQuery(registry)
	profiles, err := q.Query(context.Background(), ListCarrierProfilesMessage{})
	if err != nil {
		t.Fatalf("query profiles: %v", err)
	}
	if len(profiles) != 1 || profiles[0].ID != "acme" {
		t.Fatalf("unexpected profiles: %+v", profiles)
	}
}

func TestListActivityQuery_DelegatesFilter(t *testing.T) {
	sink := core.NewMemoryActivitySink()
	if err := sink.Record(context.Background(), core.ActivityEntry{
		CarrierID: "acme",
		Action:    "batch.download",
		Status:    core.ActivityStatusOK,
	}); err != nil {
		t.Fatalf("record activity: %v", err)
	}

	q := NewListActivityQuery(activityReaderFunc(sink.List))
	page, err := q.Query(context.Background(), ListActivityMessage{Filter: core.ActivityFilter{CarrierID: "acme"}})
	if err != nil {
		t.Fatalf("query activity: %v", err)
	}
	if page.Total != 1 {
		t.Fatalf("expected 1 activity entry, got %d", page.Total)
	}
}

type activityReaderFunc func(ctx context.Context, filter core.ActivityFilter) (core.ActivityPage, error)

func (f activityReaderFunc) Activity(ctx context.Context, filter core.ActivityFilter) (core.ActivityPage, error) {
	return f(ctx, filter)
}
