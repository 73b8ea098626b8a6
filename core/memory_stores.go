package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryJournalStore keeps delivery journal entries per carrier and shipment.
// It backs tests and single-process deployments; store/sql carries the
// durable version.
type MemoryJournalStore struct {
	mu      sync.Mutex
	entries map[string]JournalEntry
	Now     func() time.Time
}

func NewMemoryJournalStore() *MemoryJournalStore {
	return &MemoryJournalStore{entries: map[string]JournalEntry{}}
}

func (s *MemoryJournalStore) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func journalKey(carrierID, shipmentID string) string {
	return strings.ToLower(strings.TrimSpace(carrierID)) + "/" + strings.TrimSpace(shipmentID)
}

func (s *MemoryJournalStore) Get(_ context.Context, carrierID string, shipmentID string) (JournalEntry, error) {
	if s == nil {
		return JournalEntry{}, fmt.Errorf("core: journal store is not configured")
	}
	if strings.TrimSpace(carrierID) == "" || strings.TrimSpace(shipmentID) == "" {
		return JournalEntry{}, fmt.Errorf("core: carrier id and shipment id are required")
	}
	s.mu.Lock()
	entry, ok := s.entries[journalKey(carrierID, shipmentID)]
	s.mu.Unlock()
	if !ok {
		return JournalEntry{}, fmt.Errorf("core: journal entry %s/%s: %w", carrierID, shipmentID, ErrJournalEntryNotFound)
	}
	return cloneJournalEntry(entry), nil
}

func (s *MemoryJournalStore) Upsert(_ context.Context, in UpsertJournalEntryInput) (JournalEntry, error) {
	if s == nil {
		return JournalEntry{}, fmt.Errorf("core: journal store is not configured")
	}
	carrierID := strings.ToLower(strings.TrimSpace(in.CarrierID))
	shipmentID := strings.TrimSpace(in.ShipmentID)
	if carrierID == "" || shipmentID == "" {
		return JournalEntry{}, fmt.Errorf("core: carrier id and shipment id are required")
	}

	now := s.now()
	key := journalKey(carrierID, shipmentID)

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		entry = JournalEntry{
			ID:         uuid.NewString(),
			CarrierID:  carrierID,
			ShipmentID: shipmentID,
			CreatedAt:  now,
		}
	}
	entry.BatchID = in.BatchID
	entry.Category = in.Category
	entry.Status = in.Status
	entry.Attempts = in.Attempts
	entry.DocumentIDs = append([]string(nil), in.DocumentIDs...)
	entry.LastError = in.LastError
	if in.Acknowledged && entry.AcknowledgedAt == nil {
		acknowledged := now
		entry.AcknowledgedAt = &acknowledged
	}
	entry.UpdatedAt = now

	s.entries[key] = entry
	return cloneJournalEntry(entry), nil
}

func (s *MemoryJournalStore) ListByBatch(_ context.Context, batchID string) ([]JournalEntry, error) {
	if s == nil {
		return nil, fmt.Errorf("core: journal store is not configured")
	}
	batchID = strings.TrimSpace(batchID)
	if batchID == "" {
		return nil, fmt.Errorf("core: batch id is required")
	}
	s.mu.Lock()
	matched := make([]JournalEntry, 0)
	for _, entry := range s.entries {
		if entry.BatchID == batchID {
			matched = append(matched, cloneJournalEntry(entry))
		}
	}
	s.mu.Unlock()
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].ShipmentID < matched[j].ShipmentID
	})
	return matched, nil
}

func cloneJournalEntry(entry JournalEntry) JournalEntry {
	cloned := entry
	cloned.DocumentIDs = append([]string(nil), entry.DocumentIDs...)
	if entry.AcknowledgedAt != nil {
		acknowledged := *entry.AcknowledgedAt
		cloned.AcknowledgedAt = &acknowledged
	}
	return cloned
}

// MemoryBatchStore keeps batch records for tests and single-process use.
type MemoryBatchStore struct {
	mu      sync.Mutex
	batches map[string]Batch
	Now     func() time.Time
}

func NewMemoryBatchStore() *MemoryBatchStore {
	return &MemoryBatchStore{batches: map[string]Batch{}}
}

func (s *MemoryBatchStore) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *MemoryBatchStore) Create(_ context.Context, batch Batch) (Batch, error) {
	if s == nil {
		return Batch{}, fmt.Errorf("core: batch store is not configured")
	}
	if strings.TrimSpace(batch.CarrierID) == "" {
		return Batch{}, fmt.Errorf("core: carrier id is required")
	}
	now := s.now()
	if strings.TrimSpace(batch.ID) == "" {
		batch.ID = uuid.NewString()
	}
	if batch.CreatedAt.IsZero() {
		batch.CreatedAt = now
	}
	batch.UpdatedAt = now

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.batches[batch.ID]; exists {
		return Batch{}, fmt.Errorf("core: batch already exists: %s", batch.ID)
	}
	s.batches[batch.ID] = cloneBatch(batch)
	return cloneBatch(batch), nil
}

func (s *MemoryBatchStore) Get(_ context.Context, id string) (Batch, error) {
	if s == nil {
		return Batch{}, fmt.Errorf("core: batch store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return Batch{}, fmt.Errorf("core: batch id is required")
	}
	s.mu.Lock()
	batch, ok := s.batches[id]
	s.mu.Unlock()
	if !ok {
		return Batch{}, fmt.Errorf("core: batch %q: %w", id, ErrBatchNotFound)
	}
	return cloneBatch(batch), nil
}

func (s *MemoryBatchStore) Update(_ context.Context, batch Batch) (Batch, error) {
	if s == nil {
		return Batch{}, fmt.Errorf("core: batch store is not configured")
	}
	id := strings.TrimSpace(batch.ID)
	if id == "" {
		return Batch{}, fmt.Errorf("core: batch id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.batches[id]; !ok {
		return Batch{}, fmt.Errorf("core: batch %q: %w", id, ErrBatchNotFound)
	}
	batch.UpdatedAt = s.now()
	s.batches[id] = cloneBatch(batch)
	return cloneBatch(batch), nil
}

func (s *MemoryBatchStore) ListByCarrier(_ context.Context, carrierID string, limit int) ([]Batch, error) {
	if s == nil {
		return nil, fmt.Errorf("core: batch store is not configured")
	}
	carrierID = strings.ToLower(strings.TrimSpace(carrierID))
	if carrierID == "" {
		return nil, fmt.Errorf("core: carrier id is required")
	}
	s.mu.Lock()
	matched := make([]Batch, 0)
	for _, batch := range s.batches {
		if batch.CarrierID == carrierID {
			matched = append(matched, cloneBatch(batch))
		}
	}
	s.mu.Unlock()
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func cloneBatch(batch Batch) Batch {
	cloned := batch
	if batch.FinishedAt != nil {
		finished := *batch.FinishedAt
		cloned.FinishedAt = &finished
	}
	return cloned
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

var (
	_ JournalStore = (*MemoryJournalStore)(nil)
	_ BatchStore   = (*MemoryBatchStore)(nil)
)
