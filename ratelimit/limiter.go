package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-carriers/core"
)

const metricThrottled = "carriers.ratelimit.throttled"

const (
	defaultSuccessStreakThreshold = 5
	defaultThrottleBackoff        = time.Second
	defaultThrottleMaxBackoff     = time.Minute
)

// AdaptiveLimiter is the per-carrier concurrency controller. A throttle
// outcome halves the carrier's allowance down to a floor of one slot and
// opens an exponential backoff window; a sustained success streak raises the
// allowance by one slot up to the profile ceiling. Each carrier has its own
// lock; Permit waits happen outside it so one stalled carrier never blocks
// another's bookkeeping.
type AdaptiveLimiter struct {
	Config  core.ThrottleConfig
	Store   StateStore
	Logger  core.Logger
	Metrics core.MetricsRecorder
	Now     func() time.Time

	mu       sync.RWMutex
	carriers map[string]*carrierState
}

type carrierState struct {
	mu             sync.Mutex
	ceiling        int
	limit          int
	inFlight       int
	successStreak  int
	throttleStreak int
	backoffUntil   time.Time
	// changed is closed and replaced whenever state moves, waking Permit
	// waiters without holding the lock across the wait.
	changed chan struct{}
}

func NewAdaptiveLimiter(cfg core.ThrottleConfig) *AdaptiveLimiter {
	return &AdaptiveLimiter{
		Config: cfg,
		Now: func() time.Time {
			return time.Now().UTC()
		},
		carriers: map[string]*carrierState{},
	}
}

// RegisterProfile records the carrier's concurrency ceiling. Safe to call
// repeatedly; the orchestrator registers before every batch.
func (l *AdaptiveLimiter) RegisterProfile(profile core.CarrierProfile) {
	if l == nil {
		return
	}
	st := l.state(profile.ID)
	if st == nil {
		return
	}
	ceiling := profile.MaxConcurrency
	if ceiling < 1 {
		ceiling = core.DefaultMaxConcurrency
	}
	st.mu.Lock()
	st.ceiling = ceiling
	if st.limit == 0 || st.limit > ceiling {
		st.limit = ceiling
	}
	st.signalLocked()
	st.mu.Unlock()
}

// Prepare sizes the carrier's allowance for a batch of the given length. The
// backoff window survives across batches; a carrier that throttled the last
// run stays slowed until the window elapses.
func (l *AdaptiveLimiter) Prepare(carrierID string, shipmentCount int) {
	if l == nil {
		return
	}
	st := l.state(carrierID)
	if st == nil {
		return
	}
	st.mu.Lock()
	if st.ceiling < 1 {
		st.ceiling = core.DefaultMaxConcurrency
	}
	limit := st.ceiling
	if shipmentCount > 0 && shipmentCount < limit {
		limit = shipmentCount
	}
	st.limit = limit
	st.successStreak = 0
	st.throttleStreak = 0
	st.signalLocked()
	st.mu.Unlock()
}

// Permit blocks until a slot is free and any backoff window has elapsed.
func (l *AdaptiveLimiter) Permit(ctx context.Context, carrierID string) error {
	if l == nil {
		return fmt.Errorf("ratelimit: limiter is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	st := l.state(carrierID)
	if st == nil {
		return fmt.Errorf("ratelimit: carrier id is required")
	}
	for {
		st.mu.Lock()
		if st.ceiling < 1 {
			st.ceiling = core.DefaultMaxConcurrency
		}
		if st.limit < 1 {
			st.limit = st.ceiling
		}
		now := l.now()
		var wait time.Duration
		if !st.backoffUntil.IsZero() && now.Before(st.backoffUntil) {
			wait = st.backoffUntil.Sub(now)
		} else if st.inFlight < st.limit {
			st.inFlight++
			st.mu.Unlock()
			return nil
		}
		changed := st.changed
		st.mu.Unlock()

		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			case <-changed:
				timer.Stop()
			}
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}
}

// Release returns a permit slot.
func (l *AdaptiveLimiter) Release(carrierID string) {
	if l == nil {
		return
	}
	st := l.state(carrierID)
	if st == nil {
		return
	}
	st.mu.Lock()
	if st.inFlight > 0 {
		st.inFlight--
	}
	st.signalLocked()
	st.mu.Unlock()
}

// OnResult feeds one call outcome into the state machine and mirrors the new
// state into the snapshot store.
func (l *AdaptiveLimiter) OnResult(ctx context.Context, carrierID string, outcome core.CallOutcome) {
	if l == nil {
		return
	}
	st := l.state(carrierID)
	if st == nil {
		return
	}
	now := l.now()

	st.mu.Lock()
	if st.ceiling < 1 {
		st.ceiling = core.DefaultMaxConcurrency
	}
	if st.limit < 1 {
		st.limit = st.ceiling
	}
	switch outcome {
	case core.CallOutcomeThrottled:
		st.limit = st.limit / 2
		if st.limit < 1 {
			st.limit = 1
		}
		st.successStreak = 0
		st.throttleStreak++
		st.backoffUntil = now.Add(l.backoffFor(st.throttleStreak))
	case core.CallOutcomeSuccess:
		st.throttleStreak = 0
		st.successStreak++
		if st.successStreak >= l.successThreshold() {
			if st.limit < st.ceiling {
				st.limit++
			}
			st.successStreak = 0
		}
	default:
		st.mu.Unlock()
		return
	}
	st.signalLocked()
	snapshot := snapshotLocked(normalizeCarrierID(carrierID), st, now)
	st.mu.Unlock()

	if outcome == core.CallOutcomeThrottled && l.Metrics != nil {
		l.Metrics.IncCounter(ctx, metricThrottled, 1, map[string]string{"carrier_id": snapshot.CarrierID})
	}
	l.publish(ctx, snapshot)
}

// Allowance reports the carrier's current concurrency limit, zero when the
// carrier has not been prepared yet.
func (l *AdaptiveLimiter) Allowance(carrierID string) int {
	if l == nil {
		return 0
	}
	id := normalizeCarrierID(carrierID)
	if id == "" {
		return 0
	}
	l.mu.RLock()
	st := l.carriers[id]
	l.mu.RUnlock()
	if st == nil {
		return 0
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.limit
}

// Snapshot reports the carrier's current state for observability.
func (l *AdaptiveLimiter) Snapshot(carrierID string) (State, bool) {
	if l == nil {
		return State{}, false
	}
	id := normalizeCarrierID(carrierID)
	l.mu.RLock()
	st := l.carriers[id]
	l.mu.RUnlock()
	if st == nil {
		return State{}, false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return snapshotLocked(id, st, l.now()), true
}

func (l *AdaptiveLimiter) state(carrierID string) *carrierState {
	id := normalizeCarrierID(carrierID)
	if id == "" {
		return nil
	}
	l.mu.RLock()
	st := l.carriers[id]
	l.mu.RUnlock()
	if st != nil {
		return st
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if st = l.carriers[id]; st != nil {
		return st
	}
	st = &carrierState{changed: make(chan struct{})}
	if l.carriers == nil {
		l.carriers = map[string]*carrierState{}
	}
	l.carriers[id] = st
	return st
}

func (l *AdaptiveLimiter) publish(ctx context.Context, snapshot State) {
	if l == nil || l.Store == nil {
		return
	}
	if err := l.Store.Upsert(ctx, snapshot); err != nil && l.Logger != nil {
		l.Logger.Warn("rate limit snapshot publish failed", "carrier_id", snapshot.CarrierID, "error", err)
	}
}

func (l *AdaptiveLimiter) backoffFor(throttleStreak int) time.Duration {
	initial := l.Config.InitialBackoff
	if initial <= 0 {
		initial = defaultThrottleBackoff
	}
	maximum := l.Config.MaxBackoff
	if maximum <= 0 {
		maximum = defaultThrottleMaxBackoff
	}
	delay := initial
	for i := 1; i < throttleStreak; i++ {
		delay *= 2
		if delay >= maximum {
			return maximum
		}
	}
	if delay > maximum {
		return maximum
	}
	return delay
}

func (l *AdaptiveLimiter) successThreshold() int {
	if l.Config.SuccessStreakThreshold > 0 {
		return l.Config.SuccessStreakThreshold
	}
	return defaultSuccessStreakThreshold
}

func (l *AdaptiveLimiter) now() time.Time {
	if l != nil && l.Now != nil {
		return l.Now().UTC()
	}
	return time.Now().UTC()
}

func (st *carrierState) signalLocked() {
	close(st.changed)
	st.changed = make(chan struct{})
}

func snapshotLocked(carrierID string, st *carrierState, now time.Time) State {
	snapshot := State{
		CarrierID:      carrierID,
		Ceiling:        st.ceiling,
		Limit:          st.limit,
		InFlight:       st.inFlight,
		SuccessStreak:  st.successStreak,
		ThrottleStreak: st.throttleStreak,
		UpdatedAt:      now,
	}
	if !st.backoffUntil.IsZero() && now.Before(st.backoffUntil) {
		until := st.backoffUntil
		snapshot.BackoffUntil = &until
	}
	return snapshot
}

func normalizeCarrierID(carrierID string) string {
	return strings.TrimSpace(strings.ToLower(carrierID))
}

var _ core.ConcurrencyGate = (*AdaptiveLimiter)(nil)
