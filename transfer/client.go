package transfer

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-carriers/core"
	"github.com/goliatone/go-carriers/soap"
)

// Client speaks the transfer dialect of the carrier-integration protocol.
// One client serves every carrier; all per-carrier variation rides in the
// profile passed per call.
type Client struct {
	Transport core.TransportAdapter
}

func NewClient(transport core.TransportAdapter) *Client {
	return &Client{Transport: transport}
}

// ListShipments asks the carrier for the deliveries waiting for pickup.
func (c *Client) ListShipments(ctx context.Context, token core.SecurityToken, profile core.CarrierProfile) ([]core.ShipmentDescriptor, error) {
	envelope := soap.ListShipmentsEnvelope(token.Value, "", soap.DialectForProfile(profile))
	resp, err := c.call(ctx, profile, soap.ActionListShipments, envelope)
	if err != nil {
		return nil, core.NewTransientError(profile.ID, "list shipments", err)
	}
	if err := classifyResponse(profile, resp); err != nil {
		return nil, err
	}

	doc, err := soap.Parse(resp.Body)
	if err != nil {
		return nil, core.NewMalformedResponseError(profile.ID, "list response is not valid xml", err)
	}
	var shipments []core.ShipmentDescriptor
	for _, node := range doc.All("Shipment") {
		descriptor := core.ShipmentDescriptor{
			ID:       strings.TrimSpace(node.FirstText("ShipmentID")),
			Category: strings.TrimSpace(node.FirstText("Category")),
		}
		if sizeText := strings.TrimSpace(node.FirstText("SizeBytes")); sizeText != "" {
			if size, parseErr := strconv.ParseInt(sizeText, 10, 64); parseErr == nil && size >= 0 {
				descriptor.SizeHint = size
			}
		}
		if descriptor.ID == "" {
			return nil, core.NewMalformedResponseError(profile.ID, "shipment entry without id", nil)
		}
		shipments = append(shipments, descriptor)
	}
	return shipments, nil
}

// GetShipment fetches one shipment's raw multipart body plus the boundary
// declared in the response Content-Type. The caller hands both to the MTOM
// parser; this method does not interpret the payload.
func (c *Client) GetShipment(ctx context.Context, token core.SecurityToken, profile core.CarrierProfile, shipmentID string) ([]byte, string, error) {
	shipmentID = strings.TrimSpace(shipmentID)
	if shipmentID == "" {
		return nil, "", fmt.Errorf("transfer: shipment id is required")
	}
	envelope := soap.GetShipmentEnvelope(token.Value, shipmentID, soap.DialectForProfile(profile))
	resp, err := c.call(ctx, profile, soap.ActionGetShipment, envelope)
	if err != nil {
		return nil, "", core.NewTransientError(profile.ID, "get shipment", err)
	}
	if err := classifyResponse(profile, resp); err != nil {
		return nil, "", err
	}

	contentType := headerValue(resp.Headers, "Content-Type")
	mediaType, params, parseErr := mime.ParseMediaType(contentType)
	if parseErr != nil {
		return nil, "", core.NewMalformedResponseError(profile.ID, fmt.Sprintf("unparseable content type %q", contentType), parseErr)
	}
	if !strings.HasPrefix(mediaType, "multipart/") {
		return nil, "", core.NewMalformedResponseError(profile.ID, fmt.Sprintf("shipment response is %q, not multipart", mediaType), nil)
	}
	boundary := strings.TrimSpace(params["boundary"])
	if boundary == "" {
		return nil, "", core.NewMalformedResponseError(profile.ID, "multipart response without boundary", nil)
	}
	return resp.Body, boundary, nil
}

// AcknowledgeShipment confirms receipt so the carrier stops offering the
// shipment. Acknowledging twice is not an error; carriers that fault with an
// already-acknowledged detail are mapped to success.
func (c *Client) AcknowledgeShipment(ctx context.Context, token core.SecurityToken, profile core.CarrierProfile, shipmentID string) error {
	shipmentID = strings.TrimSpace(shipmentID)
	if shipmentID == "" {
		return fmt.Errorf("transfer: shipment id is required")
	}
	envelope := soap.AcknowledgeShipmentEnvelope(token.Value, shipmentID, soap.DialectForProfile(profile))
	resp, err := c.call(ctx, profile, soap.ActionAcknowledgeShipment, envelope)
	if err != nil {
		return core.NewAckError(profile.ID, shipmentID, err)
	}
	if fault, ok := soap.ExtractFault(resp.Body); ok {
		if alreadyAcknowledged(fault) {
			return nil
		}
		return core.NewAckError(profile.ID, shipmentID, fault)
	}
	if err := classifyResponse(profile, resp); err != nil {
		if core.IsTokenRejected(err) || core.IsThrottled(err) {
			return err
		}
		return core.NewAckError(profile.ID, shipmentID, err)
	}
	return nil
}

func (c *Client) call(ctx context.Context, profile core.CarrierProfile, action string, envelope string) (core.TransportResponse, error) {
	if c == nil || c.Transport == nil {
		return core.TransportResponse{}, fmt.Errorf("transfer: client requires a transport adapter")
	}
	return c.Transport.Do(ctx, core.TransportRequest{
		URL:                  profile.TransferURL,
		Headers:              map[string]string{"SOAPAction": action},
		Body:                 []byte(envelope),
		Timeout:              profile.RequestTimeout,
		MaxResponseBodyBytes: profile.MaxResponseBytes,
	})
}

// classifyResponse maps transport-level outcomes onto the carrier error
// taxonomy. SOAP faults take precedence because some carriers fault with a
// 200 status.
func classifyResponse(profile core.CarrierProfile, resp core.TransportResponse) error {
	if !strings.HasPrefix(headerValue(resp.Headers, "Content-Type"), "multipart/") {
		if fault, ok := soap.ExtractFault(resp.Body); ok {
			if fault.IsClientFault() && looksLikeTokenFault(fault) {
				return core.NewTokenRejectedError(profile.ID, resp.StatusCode)
			}
			return core.NewSOAPFaultError(profile.ID, fault.Code, fault.Reason)
		}
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return core.NewTokenRejectedError(profile.ID, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable:
		return core.NewThrottledError(profile.ID, resp.StatusCode, retryAfterHint(resp.Headers))
	case resp.StatusCode >= 500:
		return core.NewTransientError(profile.ID, "transfer call", fmt.Errorf("carrier returned status %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return core.NewMalformedResponseError(profile.ID, fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}
	return nil
}

func looksLikeTokenFault(fault *soap.Fault) bool {
	needle := strings.ToLower(fault.Reason + " " + fault.Detail)
	return strings.Contains(needle, "token") || strings.Contains(needle, "unauthorized") || strings.Contains(needle, "security context")
}

func alreadyAcknowledged(fault *soap.Fault) bool {
	needle := strings.ToLower(fault.Reason + " " + fault.Detail)
	return strings.Contains(needle, "already acknowledged") || strings.Contains(needle, "already confirmed")
}

func headerValue(headers map[string]string, name string) string {
	for key, value := range headers {
		if strings.EqualFold(strings.TrimSpace(key), name) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func retryAfterHint(headers map[string]string) time.Duration {
	if value := headerValue(headers, "Retry-After"); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return 0
}

var _ core.TransferService = (*Client)(nil)
