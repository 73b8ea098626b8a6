package ratelimit

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

var ErrStateNotFound = errors.New("ratelimit: state not found")

// State is an observability snapshot of one carrier's limiter. The in-process
// limiter is the authority; stores only mirror what it publishes.
type State struct {
	CarrierID      string
	Ceiling        int
	Limit          int
	InFlight       int
	SuccessStreak  int
	ThrottleStreak int
	BackoffUntil   *time.Time
	UpdatedAt      time.Time
}

func (s State) Clone() State {
	out := s
	if s.BackoffUntil != nil {
		until := *s.BackoffUntil
		out.BackoffUntil = &until
	}
	return out
}

type StateStore interface {
	Get(ctx context.Context, carrierID string) (State, error)
	Upsert(ctx context.Context, state State) error
	List(ctx context.Context) ([]State, error)
}

// MemoryStateStore keeps snapshots in process, mainly for tests and
// single-node deployments.
type MemoryStateStore struct {
	mu     sync.RWMutex
	states map[string]State
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{states: map[string]State{}}
}

func (s *MemoryStateStore) Get(_ context.Context, carrierID string) (State, error) {
	if s == nil {
		return State{}, ErrStateNotFound
	}
	id := normalizeCarrierID(carrierID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[id]
	if !ok {
		return State{}, ErrStateNotFound
	}
	return state.Clone(), nil
}

func (s *MemoryStateStore) Upsert(_ context.Context, state State) error {
	if s == nil {
		return errors.New("ratelimit: memory state store is nil")
	}
	id := normalizeCarrierID(state.CarrierID)
	if id == "" {
		return errors.New("ratelimit: state carrier id is required")
	}
	state.CarrierID = id
	s.mu.Lock()
	if s.states == nil {
		s.states = map[string]State{}
	}
	s.states[id] = state.Clone()
	s.mu.Unlock()
	return nil
}

func (s *MemoryStateStore) List(context.Context) ([]State, error) {
	if s == nil {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.states))
	for id := range s.states {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]State, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.states[id].Clone())
	}
	return out, nil
}

var _ StateStore = (*MemoryStateStore)(nil)
