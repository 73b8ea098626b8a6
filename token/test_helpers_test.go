package token

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goliatone/go-carriers/core"
)

func testProfile(id string) core.CarrierProfile {
	return core.CarrierProfile{
		ID:          id,
		TokenURL:    "https://sts.example.test/token",
		TransferURL: "https://transfer.example.test/soap",
	}.Normalize()
}

func testToken(value string, ttl time.Duration) core.SecurityToken {
	now := time.Now().UTC()
	return core.SecurityToken{
		Value:     value,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(start time.Time) *testClock {
	return &testClock{now: start.UTC()}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type scriptedNegotiator struct {
	mu    sync.Mutex
	calls int
	gate  chan struct{}
	fn    func(call int, profile core.CarrierProfile) (core.SecurityToken, error)
}

func (n *scriptedNegotiator) Negotiate(ctx context.Context, profile core.CarrierProfile) (core.SecurityToken, error) {
	n.mu.Lock()
	n.calls++
	call := n.calls
	gate := n.gate
	fn := n.fn
	n.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return core.SecurityToken{}, ctx.Err()
		}
	}
	if fn != nil {
		return fn(call, profile)
	}
	return testToken(fmt.Sprintf("tok-%d", call), time.Hour), nil
}

func (n *scriptedNegotiator) callCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls
}

type staticProfileSource struct {
	mu      sync.Mutex
	profile core.CarrierProfile
	err     error
	calls   int
}

func (s *staticProfileSource) Profile(_ context.Context, carrierID string) (core.CarrierProfile, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.err != nil {
		return core.CarrierProfile{}, s.err
	}
	profile := s.profile
	if profile.ID == "" {
		profile = testProfile(carrierID)
	}
	return profile, nil
}

func (s *staticProfileSource) Profiles(context.Context) ([]core.CarrierProfile, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []core.CarrierProfile{s.profile}, nil
}

type captureMetrics struct {
	mu       sync.Mutex
	counters map[string]int64
}

func (m *captureMetrics) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counters == nil {
		m.counters = map[string]int64{}
	}
	m.counters[name+"|"+tags["outcome"]] += value
}

func (m *captureMetrics) ObserveHistogram(context.Context, string, float64, map[string]string) {}

func (m *captureMetrics) counter(name, outcome string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[name+"|"+outcome]
}

type transportScript struct {
	resp core.TransportResponse
	err  error
}

type scriptedTransport struct {
	mu       sync.Mutex
	requests []core.TransportRequest
	scripts  []transportScript
}

func (t *scriptedTransport) Kind() string { return "soap" }

func (t *scriptedTransport) Do(_ context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.requests = append(t.requests, req)
	if len(t.scripts) == 0 {
		return core.TransportResponse{StatusCode: 200}, nil
	}
	next := t.scripts[0]
	if len(t.scripts) > 1 {
		t.scripts = t.scripts[1:]
	}
	return next.resp, next.err
}

type staticCredentials struct {
	creds core.Credentials
	err   error
}

func (s staticCredentials) Credentials(context.Context, string) (core.Credentials, error) {
	if s.err != nil {
		return core.Credentials{}, s.err
	}
	return s.creds, nil
}
