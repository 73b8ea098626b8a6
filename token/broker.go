package token

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-carriers/core"
	"golang.org/x/sync/singleflight"
)

const metricNegotiations = "carriers.token.negotiations"

const (
	defaultNegotiationAttempts   = 3
	defaultNegotiationBackoff    = 500 * time.Millisecond
	defaultNegotiationMaxBackoff = 5 * time.Second
)

// Broker caches one security token per carrier and renews it once the safety
// margin is reached. Concurrent Acquire calls for the same carrier share a
// single in-flight negotiation; the result lands in the cache before waiters
// resume. A negotiation that exhausts its attempts surfaces as an auth
// failure, which aborts the batch that needed the token.
type Broker struct {
	Negotiator core.TokenNegotiator
	Profiles   core.ProfileSource
	Config     core.TokenConfig
	Backoff    core.BackoffScheduler
	Logger     core.Logger
	Metrics    core.MetricsRecorder
	Now        func() time.Time

	group  singleflight.Group
	mu     sync.RWMutex
	tokens map[string]core.SecurityToken
}

// NewBroker wires a broker over a negotiator and profile source. Zero config
// fields fall back to the package defaults.
func NewBroker(negotiator core.TokenNegotiator, profiles core.ProfileSource, cfg core.TokenConfig) *Broker {
	return &Broker{
		Negotiator: negotiator,
		Profiles:   profiles,
		Config:     cfg,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Acquire returns a token valid past the safety margin, negotiating a fresh
// one when the cache cannot serve.
func (b *Broker) Acquire(ctx context.Context, carrierID string) (core.SecurityToken, error) {
	if b == nil || b.Negotiator == nil {
		return core.SecurityToken{}, fmt.Errorf("token: broker requires a negotiator")
	}
	id := normalizeCarrierID(carrierID)
	if id == "" {
		return core.SecurityToken{}, fmt.Errorf("token: carrier id is required")
	}
	if cached, ok := b.cachedToken(id); ok {
		return cached, nil
	}

	fresh, err, _ := b.group.Do(id, func() (any, error) {
		if cached, ok := b.cachedToken(id); ok {
			return cached, nil
		}
		negotiated, negotiateErr := b.negotiate(ctx, id)
		if negotiateErr != nil {
			return nil, negotiateErr
		}
		b.storeToken(id, negotiated)
		return negotiated, nil
	})
	if err != nil {
		return core.SecurityToken{}, err
	}
	return fresh.(core.SecurityToken), nil
}

// Invalidate drops the cached token so the next Acquire negotiates again.
// Called after a carrier rejects a token that looked valid locally.
func (b *Broker) Invalidate(carrierID string) {
	if b == nil {
		return
	}
	id := normalizeCarrierID(carrierID)
	if id == "" {
		return
	}
	b.mu.Lock()
	delete(b.tokens, id)
	b.mu.Unlock()
}

func (b *Broker) negotiate(ctx context.Context, carrierID string) (core.SecurityToken, error) {
	if b.Profiles == nil {
		return core.SecurityToken{}, fmt.Errorf("token: broker requires a profile source")
	}
	profile, err := b.Profiles.Profile(ctx, carrierID)
	if err != nil {
		return core.SecurityToken{}, fmt.Errorf("token: resolve carrier %q: %w", carrierID, err)
	}

	attempts := b.attempts()
	scheduler := b.scheduler()
	made := 0
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if waitErr := core.WaitWithContext(ctx, scheduler.NextDelay(attempt-1)); waitErr != nil {
				return core.SecurityToken{}, waitErr
			}
		}
		negotiated, negotiateErr := b.Negotiator.Negotiate(ctx, profile)
		made++
		if negotiateErr == nil && !negotiated.ValidAt(b.now(), b.safetyMargin()) {
			negotiateErr = core.NewMalformedResponseError(
				carrierID,
				fmt.Sprintf("issued token expires %s, inside the %s safety margin",
					negotiated.ExpiresAt.Format(time.RFC3339), b.safetyMargin()),
				nil,
			)
		}
		b.recordNegotiation(ctx, carrierID, negotiateErr)
		if negotiateErr == nil {
			return negotiated, nil
		}
		lastErr = negotiateErr
		b.logAttemptFailure(ctx, carrierID, attempt, negotiateErr)
		if ctx.Err() != nil {
			return core.SecurityToken{}, fmt.Errorf("token: negotiation interrupted: %w", ctx.Err())
		}
		if core.IsAuthError(negotiateErr) {
			break
		}
	}
	return core.SecurityToken{}, core.NewAuthError(
		carrierID,
		fmt.Sprintf("token negotiation failed after %d attempt(s)", made),
		lastErr,
	)
}

func (b *Broker) cachedToken(carrierID string) (core.SecurityToken, bool) {
	b.mu.RLock()
	cached, ok := b.tokens[carrierID]
	b.mu.RUnlock()
	if !ok || !cached.ValidAt(b.now(), b.safetyMargin()) {
		return core.SecurityToken{}, false
	}
	return cached, true
}

func (b *Broker) storeToken(carrierID string, token core.SecurityToken) {
	b.mu.Lock()
	if b.tokens == nil {
		b.tokens = map[string]core.SecurityToken{}
	}
	b.tokens[carrierID] = token
	b.mu.Unlock()
}

func (b *Broker) safetyMargin() time.Duration {
	if b.Config.SafetyMargin > 0 {
		return b.Config.SafetyMargin
	}
	return core.DefaultTokenSafetyMargin
}

func (b *Broker) attempts() int {
	if b.Config.NegotiationAttempts >= 1 {
		return b.Config.NegotiationAttempts
	}
	return defaultNegotiationAttempts
}

func (b *Broker) scheduler() core.BackoffScheduler {
	if b.Backoff != nil {
		return b.Backoff
	}
	initial := b.Config.NegotiationBackoff
	if initial <= 0 {
		initial = defaultNegotiationBackoff
	}
	maximum := b.Config.NegotiationMaxBackoff
	if maximum <= 0 {
		maximum = defaultNegotiationMaxBackoff
	}
	return core.ExponentialBackoffScheduler{Initial: initial, Max: maximum}
}

func (b *Broker) now() time.Time {
	if b.Now != nil {
		return b.Now().UTC()
	}
	return time.Now().UTC()
}

func (b *Broker) recordNegotiation(ctx context.Context, carrierID string, err error) {
	if b.Metrics == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	b.Metrics.IncCounter(ctx, metricNegotiations, 1, map[string]string{
		"carrier_id": carrierID,
		"outcome":    outcome,
	})
}

func (b *Broker) logAttemptFailure(ctx context.Context, carrierID string, attempt int, err error) {
	if b.Logger == nil {
		return
	}
	logger := b.Logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	logger.Warn("token negotiation attempt failed",
		"carrier_id", carrierID,
		"attempt", attempt,
		"error", err.Error(),
	)
}

func normalizeCarrierID(carrierID string) string {
	return strings.TrimSpace(strings.ToLower(carrierID))
}

var _ core.TokenSource = (*Broker)(nil)
