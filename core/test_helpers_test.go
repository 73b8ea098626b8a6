package core

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"
)

func testProfile(id string) CarrierProfile {
	return CarrierProfile{
		ID:          id,
		Name:        strings.ToUpper(id),
		TokenURL:    "https://sts.example.test/token",
		TransferURL: "https://transfer.example.test/soap",
	}.Normalize()
}

func testToken(value string, ttl time.Duration) SecurityToken {
	now := time.Now().UTC()
	return SecurityToken{
		Value:     value,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
}

type stubTokenSource struct {
	mu          sync.Mutex
	tokens      []SecurityToken
	acquires    int
	invalidated int
	err         error
}

func (s *stubTokenSource) Acquire(context.Context, string) (SecurityToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acquires++
	if s.err != nil {
		return SecurityToken{}, s.err
	}
	if len(s.tokens) == 0 {
		return testToken("token-default", time.Hour), nil
	}
	token := s.tokens[0]
	if len(s.tokens) > 1 {
		s.tokens = s.tokens[1:]
	}
	return token, nil
}

func (s *stubTokenSource) Invalidate(string) {
	s.mu.Lock()
	s.invalidated++
	s.mu.Unlock()
}

type stubTransferService struct {
	listFn func(ctx context.Context, token SecurityToken, profile CarrierProfile) ([]ShipmentDescriptor, error)
	getFn  func(ctx context.Context, token SecurityToken, profile CarrierProfile, shipmentID string) ([]byte, string, error)
	ackFn  func(ctx context.Context, token SecurityToken, profile CarrierProfile, shipmentID string) error
}

func (s stubTransferService) ListShipments(ctx context.Context, token SecurityToken, profile CarrierProfile) ([]ShipmentDescriptor, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, token, profile)
}

func (s stubTransferService) GetShipment(ctx context.Context, token SecurityToken, profile CarrierProfile, shipmentID string) ([]byte, string, error) {
	if s.getFn == nil {
		return nil, "", nil
	}
	return s.getFn(ctx, token, profile, shipmentID)
}

func (s stubTransferService) AcknowledgeShipment(ctx context.Context, token SecurityToken, profile CarrierProfile, shipmentID string) error {
	if s.ackFn == nil {
		return nil
	}
	return s.ackFn(ctx, token, profile, shipmentID)
}

type stubBatchRunner struct {
	mu       sync.Mutex
	requests []BatchRunRequest
	runFn    func(ctx context.Context, req BatchRunRequest) (BatchResult, error)
}

func (r *stubBatchRunner) Run(ctx context.Context, req BatchRunRequest) (BatchResult, error) {
	r.mu.Lock()
	r.requests = append(r.requests, req)
	r.mu.Unlock()
	if r.runFn == nil {
		result := BatchResult{BatchID: req.BatchID, CarrierID: req.Profile.ID}
		result.Finalize(false)
		return result, nil
	}
	return r.runFn(ctx, req)
}

type stubCompletionHandler struct {
	mu      sync.Mutex
	results []BatchResult
	err     error
}

func (h *stubCompletionHandler) OnBatchComplete(_ context.Context, result BatchResult) error {
	h.mu.Lock()
	h.results = append(h.results, result)
	h.mu.Unlock()
	return h.err
}

type testSecretProvider struct{}

func (testSecretProvider) Encrypt(_ context.Context, plaintext []byte) ([]byte, error) {
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("test secret provider: plaintext is required")
	}
	encoded := base64.StdEncoding.EncodeToString(plaintext)
	return []byte("enc:" + encoded), nil
}

func (testSecretProvider) Decrypt(_ context.Context, ciphertext []byte) ([]byte, error) {
	value := strings.TrimSpace(string(ciphertext))
	if value == "" || !strings.HasPrefix(value, "enc:") {
		return nil, fmt.Errorf("test secret provider: invalid ciphertext")
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, "enc:"))
	if err != nil {
		return nil, fmt.Errorf("test secret provider: decode ciphertext: %w", err)
	}
	return decoded, nil
}

type stubLogger struct{}

func (stubLogger) Trace(string, ...any) {}
func (stubLogger) Debug(string, ...any) {}
func (stubLogger) Info(string, ...any)  {}
func (stubLogger) Warn(string, ...any)  {}
func (stubLogger) Error(string, ...any) {}
func (stubLogger) Fatal(string, ...any) {}
func (s stubLogger) WithContext(context.Context) Logger {
	return s
}

type stubLoggerProvider struct {
	logger Logger
}

func (s stubLoggerProvider) GetLogger(string) Logger {
	return s.logger
}

type mapRawLoader struct {
	values map[string]any
}

func (l mapRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.values))
	for key, value := range l.values {
		out[key] = value
	}
	return out, nil
}
