package core

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

func TestCarrierErrorConstructors_Classification(t *testing.T) {
	auth := NewAuthError("acme", "token negotiation exhausted", stderrors.New("401"))
	if !IsAuthError(auth) {
		t.Fatalf("expected auth classification")
	}
	if auth.TextCode != CarrierErrorAuthFailed {
		t.Fatalf("expected auth text code, got %q", auth.TextCode)
	}
	if auth.Metadata["carrier_id"] != "acme" {
		t.Fatalf("expected carrier id metadata, got %#v", auth.Metadata)
	}

	// A rich cause must not leak its own category through the wrapper.
	rewrapped := NewAuthError("acme", "token negotiation exhausted",
		NewMalformedResponseError("acme", "token lifetime too short", nil))
	if !IsAuthError(rewrapped) {
		t.Fatalf("expected auth classification over a rich cause, got category %v", rewrapped.Category)
	}
	if rewrapped.TextCode != CarrierErrorAuthFailed {
		t.Fatalf("expected auth text code, got %q", rewrapped.TextCode)
	}
	if !strings.Contains(rewrapped.Message, "token lifetime too short") {
		t.Fatalf("expected cause detail preserved in message, got %q", rewrapped.Message)
	}

	rejected := NewTokenRejectedError("acme", http.StatusForbidden)
	if !IsTokenRejected(rejected) {
		t.Fatalf("expected token rejection classification")
	}
	if !IsAuthError(rejected) {
		t.Fatalf("token rejection is an auth-category error")
	}
	if rejected.Code != http.StatusForbidden {
		t.Fatalf("expected status code carried over, got %d", rejected.Code)
	}

	throttled := NewThrottledError("acme", http.StatusTooManyRequests, 2*time.Second)
	if !IsThrottled(throttled) {
		t.Fatalf("expected throttle classification")
	}
	if IsTransient(throttled) {
		t.Fatalf("throttle must not count as transient")
	}

	transient := NewTransientError("acme", "list shipments", stderrors.New("connection reset"))
	if !IsTransient(transient) {
		t.Fatalf("expected transient classification")
	}
	if !strings.Contains(transient.Message, "list shipments") {
		t.Fatalf("expected operation in message, got %q", transient.Message)
	}

	malformed := NewMalformedResponseError("acme", "missing multipart boundary", nil)
	if !IsMalformed(malformed) {
		t.Fatalf("expected malformed classification")
	}

	fault := NewSOAPFaultError("acme", "soap:Client", "unknown shipment")
	if fault.TextCode != CarrierErrorSOAPFault {
		t.Fatalf("expected soap fault text code, got %q", fault.TextCode)
	}
	if fault.Metadata["fault_code"] != "soap:Client" {
		t.Fatalf("expected fault code metadata, got %#v", fault.Metadata)
	}

	ack := NewAckError("acme", "ship-9", stderrors.New("boom"))
	if ack.TextCode != CarrierErrorAckFailed {
		t.Fatalf("expected ack text code, got %q", ack.TextCode)
	}
	if ack.Metadata["shipment_id"] != "ship-9" {
		t.Fatalf("expected shipment id metadata, got %#v", ack.Metadata)
	}
}

func TestRetryAfter_ReadsHintFromMetadata(t *testing.T) {
	if got := RetryAfter(NewThrottledError("acme", 429, 1500*time.Millisecond)); got != 1500*time.Millisecond {
		t.Fatalf("expected parsed retry hint, got %v", got)
	}
	if got := RetryAfter(NewThrottledError("acme", 503, 0)); got != 0 {
		t.Fatalf("expected zero hint when absent, got %v", got)
	}
	if got := RetryAfter(stderrors.New("plain")); got != 0 {
		t.Fatalf("expected zero hint for plain errors, got %v", got)
	}

	direct := goerrors.New("throttled", goerrors.CategoryRateLimit).
		WithMetadata(map[string]any{"retry_after": 3 * time.Second})
	if got := RetryAfter(direct); got != 3*time.Second {
		t.Fatalf("expected duration metadata honored, got %v", got)
	}
}

func TestRetryAfter_SurvivesWrapping(t *testing.T) {
	wrapped := fmt.Errorf("dispatch shipment: %w", NewThrottledError("acme", 429, 2*time.Second))
	if !IsThrottled(wrapped) {
		t.Fatalf("expected throttle classification through wrapping")
	}
	if got := RetryAfter(wrapped); got != 2*time.Second {
		t.Fatalf("expected retry hint through wrapping, got %v", got)
	}
}

func TestCarrierErrorMapper_SniffsPlainErrors(t *testing.T) {
	cases := []struct {
		name         string
		err          error
		wantTextCode string
		wantCode     int
	}{
		{
			name:         "profile not found",
			err:          stderrors.New("core: carrier profile not found"),
			wantTextCode: CarrierErrorProfileNotFound,
			wantCode:     http.StatusNotFound,
		},
		{
			name:         "throttle keyword",
			err:          stderrors.New("request throttled by upstream"),
			wantTextCode: CarrierErrorThrottled,
			wantCode:     http.StatusTooManyRequests,
		},
		{
			name:         "network timeout",
			err:          stderrors.New("dial tcp: i/o timeout"),
			wantTextCode: CarrierErrorTransientNetwork,
			wantCode:     http.StatusBadGateway,
		},
		{
			name:         "multipart damage",
			err:          stderrors.New("multipart boundary missing"),
			wantTextCode: CarrierErrorMalformedResponse,
			wantCode:     http.StatusBadGateway,
		},
		{
			name:         "unauthorized",
			err:          stderrors.New("unauthorized"),
			wantTextCode: CarrierErrorTokenRejected,
			wantCode:     http.StatusUnauthorized,
		},
		{
			name:         "validation",
			err:          stderrors.New("carrier id is required"),
			wantTextCode: CarrierErrorBadInput,
			wantCode:     http.StatusBadRequest,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mapped := carrierErrorMapper(tc.err)
			if mapped == nil {
				t.Fatalf("expected mapped error")
			}
			if mapped.TextCode != tc.wantTextCode {
				t.Fatalf("expected text code %q, got %q", tc.wantTextCode, mapped.TextCode)
			}
			if mapped.Code != tc.wantCode {
				t.Fatalf("expected status %d, got %d", tc.wantCode, mapped.Code)
			}
		})
	}
}

func TestCarrierErrorMapper_KeepsRichClassification(t *testing.T) {
	original := NewThrottledError("acme", 429, time.Second)
	mapped := carrierErrorMapper(fmt.Errorf("wrapped: %w", original))
	if mapped.TextCode != CarrierErrorThrottled {
		t.Fatalf("expected throttle classification preserved, got %q", mapped.TextCode)
	}
	if mapped.Category != goerrors.CategoryRateLimit {
		t.Fatalf("expected rate limit category preserved, got %q", mapped.Category)
	}

	if carrierErrorMapper(nil) != nil {
		t.Fatalf("expected nil for nil input")
	}
}

func TestCarrierErrorEnvelope_FillsDefaults(t *testing.T) {
	bare := carrierErrorEnvelope(goerrors.New("", goerrors.CategoryInternal))
	if bare.Code != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", bare.Code)
	}
	if bare.TextCode != CarrierErrorInternal {
		t.Fatalf("expected internal text code, got %q", bare.TextCode)
	}
	if bare.Message == "" {
		t.Fatalf("expected placeholder message for blank internal errors")
	}

	external := carrierErrorEnvelope(goerrors.New("upstream down", goerrors.CategoryExternal))
	if external.Code != http.StatusBadGateway {
		t.Fatalf("expected bad gateway for external category, got %d", external.Code)
	}
	if external.TextCode != CarrierErrorExternalFailure {
		t.Fatalf("expected external text code, got %q", external.TextCode)
	}
}
