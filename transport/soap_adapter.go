package transport

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-carriers/core"
)

const KindSOAP = "soap"

// SOAPAdapter dresses the HTTP adapter for SOAP 1.1 exchanges: always POST,
// text/xml by default, and an Accept that admits multipart/MTOM shipment
// responses. Per-request headers still win so callers can set SOAPAction.
type SOAPAdapter struct {
	defaultHeader map[string]string
	http          *HTTPAdapter
}

func NewSOAPAdapter(client HTTPDoer) *SOAPAdapter {
	return &SOAPAdapter{
		defaultHeader: map[string]string{
			"Content-Type": "text/xml; charset=utf-8",
			"Accept":       "text/xml, multipart/related",
		},
		http: NewHTTPAdapter(client),
	}
}

func (a *SOAPAdapter) Kind() string {
	return KindSOAP
}

func (a *SOAPAdapter) Do(ctx context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	if a == nil || a.http == nil {
		return core.TransportResponse{}, fmt.Errorf("transport: soap adapter is nil")
	}
	resolved := req
	resolved.Method = "POST"
	headers := cloneHeaders(a.defaultHeader)
	for key, value := range req.Headers {
		trimmed := strings.TrimSpace(key)
		if trimmed == "" {
			continue
		}
		headers[trimmed] = strings.TrimSpace(value)
	}
	resolved.Headers = headers
	response, err := a.http.Do(ctx, resolved)
	if err != nil {
		return core.TransportResponse{}, err
	}
	response.Metadata = cloneMetadata(response.Metadata)
	response.Metadata["kind"] = KindSOAP
	return response, nil
}

func cloneHeaders(input map[string]string) map[string]string {
	if len(input) == 0 {
		return map[string]string{}
	}
	out := make(map[string]string, len(input))
	for key, value := range input {
		trimmed := strings.TrimSpace(key)
		if trimmed == "" {
			continue
		}
		out[trimmed] = strings.TrimSpace(value)
	}
	return out
}

func cloneMetadata(input map[string]any) map[string]any {
	if len(input) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(input))
	for key, value := range input {
		out[key] = value
	}
	return out
}

var _ core.TransportAdapter = (*SOAPAdapter)(nil)
