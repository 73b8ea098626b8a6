package core

import (
	"context"
	"fmt"
	"strings"
)

// CarrierSession binds one carrier profile to the shared token source and
// transfer service. All calls attach a valid token and absorb a mid-session
// token rejection by invalidating the cache and retrying the identical
// request once with a fresh token.
type CarrierSession struct {
	profile  CarrierProfile
	tokens   TokenSource
	transfer TransferService
}

func NewCarrierSession(profile CarrierProfile, tokens TokenSource, transfer TransferService) *CarrierSession {
	return &CarrierSession{
		profile:  profile,
		tokens:   tokens,
		transfer: transfer,
	}
}

func (s *CarrierSession) Profile() CarrierProfile {
	if s == nil {
		return CarrierProfile{}
	}
	return s.profile
}

func (s *CarrierSession) Token(ctx context.Context) (SecurityToken, error) {
	if s == nil || s.tokens == nil {
		return SecurityToken{}, fmt.Errorf("core: carrier session is not initialized")
	}
	return s.tokens.Acquire(ctx, s.profile.ID)
}

func (s *CarrierSession) InvalidateToken() {
	if s == nil || s.tokens == nil {
		return
	}
	s.tokens.Invalidate(s.profile.ID)
}

func (s *CarrierSession) ListShipments(ctx context.Context) ([]ShipmentDescriptor, error) {
	var shipments []ShipmentDescriptor
	err := s.withToken(ctx, func(token SecurityToken) error {
		listed, callErr := s.transfer.ListShipments(ctx, token, s.profile)
		if callErr != nil {
			return callErr
		}
		shipments = listed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return shipments, nil
}

func (s *CarrierSession) FetchShipment(ctx context.Context, shipmentID string) ([]byte, string, error) {
	shipmentID = strings.TrimSpace(shipmentID)
	if shipmentID == "" {
		return nil, "", fmt.Errorf("core: shipment id is required")
	}
	var (
		raw      []byte
		boundary string
	)
	err := s.withToken(ctx, func(token SecurityToken) error {
		body, bodyBoundary, callErr := s.transfer.GetShipment(ctx, token, s.profile, shipmentID)
		if callErr != nil {
			return callErr
		}
		raw = body
		boundary = bodyBoundary
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return raw, boundary, nil
}

func (s *CarrierSession) Acknowledge(ctx context.Context, shipmentID string) error {
	shipmentID = strings.TrimSpace(shipmentID)
	if shipmentID == "" {
		return fmt.Errorf("core: shipment id is required")
	}
	return s.withToken(ctx, func(token SecurityToken) error {
		return s.transfer.AcknowledgeShipment(ctx, token, s.profile, shipmentID)
	})
}

// withToken acquires a token and runs the call. A token rejection invalidates
// the cached token and retries exactly once with a fresh one; a second
// rejection escalates to an authentication failure, which aborts the batch.
func (s *CarrierSession) withToken(ctx context.Context, call func(SecurityToken) error) error {
	if s == nil || s.tokens == nil || s.transfer == nil {
		return fmt.Errorf("core: carrier session is not initialized")
	}
	token, err := s.tokens.Acquire(ctx, s.profile.ID)
	if err != nil {
		return err
	}
	err = call(token)
	if err == nil || !IsTokenRejected(err) {
		return err
	}

	s.tokens.Invalidate(s.profile.ID)
	fresh, acquireErr := s.tokens.Acquire(ctx, s.profile.ID)
	if acquireErr != nil {
		return acquireErr
	}
	retryErr := call(fresh)
	if retryErr == nil {
		return nil
	}
	if IsTokenRejected(retryErr) {
		return NewAuthError(s.profile.ID, "carrier rejected a freshly negotiated token", retryErr)
	}
	return retryErr
}
