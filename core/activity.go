package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultActivityPerPage = 50

type ActivityStatus string

const (
	ActivityStatusOK    ActivityStatus = "ok"
	ActivityStatusWarn  ActivityStatus = "warn"
	ActivityStatusError ActivityStatus = "error"
)

// ActivityEntry is one audit row: what ran against which carrier and how it
// ended. Metadata carries operation-specific detail such as shipment counts.
type ActivityEntry struct {
	ID        string
	CarrierID string
	BatchID   string
	Action    string
	Status    ActivityStatus
	Metadata  map[string]any
	CreatedAt time.Time
}

type ActivityFilter struct {
	CarrierID string
	BatchID   string
	Action    string
	Status    ActivityStatus
	From      *time.Time
	To        *time.Time
	Page      int
	PerPage   int
}

type ActivityPage struct {
	Items   []ActivityEntry
	Page    int
	PerPage int
	Total   int
	HasNext bool
}

type MemoryActivitySink struct {
	mu      sync.Mutex
	entries []ActivityEntry
	Now     func() time.Time
}

func NewMemoryActivitySink() *MemoryActivitySink {
	return &MemoryActivitySink{}
}

func (s *MemoryActivitySink) Record(_ context.Context, entry ActivityEntry) error {
	if s == nil {
		return fmt.Errorf("core: activity sink is not configured")
	}
	if strings.TrimSpace(entry.Action) == "" {
		return fmt.Errorf("core: activity action is required")
	}
	now := time.Now().UTC()
	if s.Now != nil {
		now = s.Now().UTC()
	}
	if strings.TrimSpace(entry.ID) == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	if entry.Status == "" {
		entry.Status = ActivityStatusOK
	}
	entry.Metadata = copyAnyMap(entry.Metadata)

	s.mu.Lock()
	s.entries = append(s.entries, entry)
	s.mu.Unlock()
	return nil
}

func (s *MemoryActivitySink) List(_ context.Context, filter ActivityFilter) (ActivityPage, error) {
	if s == nil {
		return ActivityPage{}, fmt.Errorf("core: activity sink is not configured")
	}

	s.mu.Lock()
	matched := make([]ActivityEntry, 0, len(s.entries))
	for _, entry := range s.entries {
		if activityEntryMatches(entry, filter) {
			matched = append(matched, cloneActivityEntry(entry))
		}
	}
	s.mu.Unlock()

	page := filter.Page
	if page <= 0 {
		page = 1
	}
	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = defaultActivityPerPage
	}

	total := len(matched)
	start := (page - 1) * perPage
	if start > total {
		start = total
	}
	end := start + perPage
	if end > total {
		end = total
	}

	return ActivityPage{
		Items:   matched[start:end],
		Page:    page,
		PerPage: perPage,
		Total:   total,
		HasNext: end < total,
	}, nil
}

func activityEntryMatches(entry ActivityEntry, filter ActivityFilter) bool {
	if carrierID := strings.TrimSpace(filter.CarrierID); carrierID != "" && !strings.EqualFold(entry.CarrierID, carrierID) {
		return false
	}
	if batchID := strings.TrimSpace(filter.BatchID); batchID != "" && entry.BatchID != batchID {
		return false
	}
	if action := strings.TrimSpace(filter.Action); action != "" && !strings.EqualFold(entry.Action, action) {
		return false
	}
	if filter.Status != "" && entry.Status != filter.Status {
		return false
	}
	if filter.From != nil && entry.CreatedAt.Before(filter.From.UTC()) {
		return false
	}
	if filter.To != nil && entry.CreatedAt.After(filter.To.UTC()) {
		return false
	}
	return true
}

func cloneActivityEntry(entry ActivityEntry) ActivityEntry {
	cloned := entry
	cloned.Metadata = copyAnyMap(entry.Metadata)
	return cloned
}

var _ ActivitySink = (*MemoryActivitySink)(nil)
