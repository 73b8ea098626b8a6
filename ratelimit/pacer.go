package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/goliatone/go-carriers/core"
)

// Pacer spaces requests to honor a carrier's requests-per-second ceiling on
// top of the concurrency gate. Carriers without a configured rate pass
// through unpaced.
type Pacer struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
}

func NewPacer() *Pacer {
	return &Pacer{limiters: map[string]*rate.Limiter{}}
}

// RegisterProfile installs or clears the carrier's pacing rate.
func (p *Pacer) RegisterProfile(profile core.CarrierProfile) {
	if p == nil {
		return
	}
	id := normalizeCarrierID(profile.ID)
	if id == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.limiters == nil {
		p.limiters = map[string]*rate.Limiter{}
	}
	if profile.RequestsPerSecond <= 0 {
		delete(p.limiters, id)
		return
	}
	burst := int(profile.RequestsPerSecond)
	if burst < 1 {
		burst = 1
	}
	p.limiters[id] = rate.NewLimiter(rate.Limit(profile.RequestsPerSecond), burst)
}

func (p *Pacer) Wait(ctx context.Context, carrierID string) error {
	if p == nil {
		return nil
	}
	id := normalizeCarrierID(carrierID)
	p.mu.RLock()
	limiter := p.limiters[id]
	p.mu.RUnlock()
	if limiter == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return limiter.Wait(ctx)
}

var _ core.RequestPacer = (*Pacer)(nil)
