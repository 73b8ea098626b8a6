package token

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-carriers/core"
	"github.com/goliatone/go-carriers/soap"
)

// STSClient performs one WS-Trust issue exchange against a carrier security
// token service. Credentials come from the credential source at call time so
// rotations apply without restarts.
type STSClient struct {
	Transport   core.TransportAdapter
	Credentials core.CredentialSource
	Now         func() time.Time
}

func NewSTSClient(transport core.TransportAdapter, credentials core.CredentialSource) *STSClient {
	return &STSClient{
		Transport:   transport,
		Credentials: credentials,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (c *STSClient) Negotiate(ctx context.Context, profile core.CarrierProfile) (core.SecurityToken, error) {
	if c == nil || c.Transport == nil {
		return core.SecurityToken{}, fmt.Errorf("token: sts client requires a transport adapter")
	}
	if c.Credentials == nil {
		return core.SecurityToken{}, fmt.Errorf("token: sts client requires a credential source")
	}
	creds, err := c.Credentials.Credentials(ctx, profile.ID)
	if err != nil {
		return core.SecurityToken{}, fmt.Errorf("token: resolve credentials for carrier %q: %w", profile.ID, err)
	}

	envelope := soap.RequestSecurityTokenEnvelope(creds.Username, creds.Password)
	resp, err := c.Transport.Do(ctx, core.TransportRequest{
		URL:                  profile.TokenURL,
		Headers:              map[string]string{"SOAPAction": soap.ActionIssueToken},
		Body:                 []byte(envelope),
		Timeout:              profile.RequestTimeout,
		MaxResponseBodyBytes: profile.MaxResponseBytes,
	})
	if err != nil {
		return core.SecurityToken{}, core.NewTransientError(profile.ID, "token negotiation", err)
	}
	return c.decodeIssueResponse(profile, resp)
}

func (c *STSClient) decodeIssueResponse(profile core.CarrierProfile, resp core.TransportResponse) (core.SecurityToken, error) {
	if fault, ok := soap.ExtractFault(resp.Body); ok {
		if fault.IsClientFault() {
			return core.SecurityToken{}, core.NewAuthError(
				profile.ID,
				fmt.Sprintf("token service rejected credentials: %s", fault.Reason),
				fault,
			)
		}
		return core.SecurityToken{}, core.NewTransientError(profile.ID, "token negotiation", fault)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return core.SecurityToken{}, core.NewAuthError(
			profile.ID,
			fmt.Sprintf("token service returned status %d", resp.StatusCode),
			nil,
		)
	case resp.StatusCode == http.StatusTooManyRequests:
		return core.SecurityToken{}, core.NewThrottledError(profile.ID, resp.StatusCode, retryAfterHint(resp.Headers))
	case resp.StatusCode != http.StatusOK:
		return core.SecurityToken{}, core.NewTransientError(
			profile.ID,
			"token negotiation",
			fmt.Errorf("unexpected status %d", resp.StatusCode),
		)
	}

	doc, err := soap.Parse(resp.Body)
	if err != nil {
		return core.SecurityToken{}, core.NewMalformedResponseError(profile.ID, "token response is not valid xml", err)
	}
	value := strings.TrimSpace(doc.FirstText("BinarySecurityToken"))
	if value == "" {
		return core.SecurityToken{}, core.NewMalformedResponseError(profile.ID, "token response carries no security token", nil)
	}
	expires, err := time.Parse(time.RFC3339, doc.FirstText("Expires"))
	if err != nil {
		return core.SecurityToken{}, core.NewMalformedResponseError(profile.ID, "token response carries no usable lifetime", err)
	}

	issued := c.now()
	if createdText := doc.FirstText("Created"); createdText != "" {
		if created, parseErr := time.Parse(time.RFC3339, createdText); parseErr == nil {
			issued = created.UTC()
		}
	}
	return core.SecurityToken{
		Value:     value,
		IssuedAt:  issued,
		ExpiresAt: expires.UTC(),
	}, nil
}

func (c *STSClient) now() time.Time {
	if c != nil && c.Now != nil {
		return c.Now().UTC()
	}
	return time.Now().UTC()
}

func retryAfterHint(headers map[string]string) time.Duration {
	for name, value := range headers {
		if !strings.EqualFold(strings.TrimSpace(name), "Retry-After") {
			continue
		}
		if seconds, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return 0
}

var _ core.TokenNegotiator = (*STSClient)(nil)
