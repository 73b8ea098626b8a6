package devkit

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-carriers/core"
	"github.com/goliatone/go-carriers/soap"
)

// ProfileFixture returns a valid carrier profile pointed at example
// endpoints. Callers override fields as needed.
func ProfileFixture(carrierID string) core.CarrierProfile {
	id := strings.TrimSpace(strings.ToLower(carrierID))
	if id == "" {
		id = "acme"
	}
	return core.CarrierProfile{
		ID:             id,
		Name:           strings.ToUpper(id[:1]) + id[1:],
		TokenURL:       fmt.Sprintf("https://%s.example.com/sts", id),
		TransferURL:    fmt.Sprintf("https://%s.example.com/transfer", id),
		MaxConcurrency: 2,
		RequestTimeout: 5 * time.Second,
	}.Normalize()
}

// TokenFixture returns a security token valid for one hour from now.
func TokenFixture(value string) core.SecurityToken {
	if strings.TrimSpace(value) == "" {
		value = "fixture-token"
	}
	now := time.Now().UTC()
	return core.SecurityToken{
		Value:     value,
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	}
}

// STSIssueResponse renders a WS-Trust issue response carrying the given
// token value and lifetime, shaped the way the token negotiator decodes it.
func STSIssueResponse(tokenValue string, issued, expires time.Time) []byte {
	body := `<?xml version="1.0" encoding="UTF-8"?>` +
		`<s:Envelope xmlns:s="` + soap.NamespaceEnvelope + `" xmlns:trust="` + soap.NamespaceTrust + `">` +
		`<s:Body><trust:RequestSecurityTokenResponse>` +
		`<trust:Lifetime>` +
		`<Created>` + issued.UTC().Format(time.RFC3339) + `</Created>` +
		`<Expires>` + expires.UTC().Format(time.RFC3339) + `</Expires>` +
		`</trust:Lifetime>` +
		`<trust:RequestedSecurityToken>` +
		`<BinarySecurityToken>` + tokenValue + `</BinarySecurityToken>` +
		`</trust:RequestedSecurityToken>` +
		`</trust:RequestSecurityTokenResponse></s:Body></s:Envelope>`
	return []byte(body)
}

// ListShipmentsResponse renders a transfer list response enumerating the
// given shipments.
func ListShipmentsResponse(shipments ...core.ShipmentDescriptor) []byte {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	sb.WriteString(`<s:Envelope xmlns:s="` + soap.NamespaceEnvelope + `" xmlns:tns="` + soap.NamespaceTransfer + `">`)
	sb.WriteString(`<s:Body><tns:ListShipmentsResponse>`)
	for _, shipment := range shipments {
		sb.WriteString(`<tns:Shipment>`)
		sb.WriteString(`<tns:ShipmentID>` + shipment.ID + `</tns:ShipmentID>`)
		if shipment.Category != "" {
			sb.WriteString(`<tns:Category>` + shipment.Category + `</tns:Category>`)
		}
		if shipment.SizeHint > 0 {
			sb.WriteString(fmt.Sprintf(`<tns:SizeBytes>%d</tns:SizeBytes>`, shipment.SizeHint))
		}
		sb.WriteString(`</tns:Shipment>`)
	}
	sb.WriteString(`</tns:ListShipmentsResponse></s:Body></s:Envelope>`)
	return []byte(sb.String())
}

// AcknowledgeResponse renders a minimal acknowledge confirmation body.
func AcknowledgeResponse(shipmentID string) []byte {
	body := `<?xml version="1.0" encoding="UTF-8"?>` +
		`<s:Envelope xmlns:s="` + soap.NamespaceEnvelope + `" xmlns:tns="` + soap.NamespaceTransfer + `">` +
		`<s:Body><tns:AcknowledgeShipmentResponse>` +
		`<tns:ShipmentID>` + shipmentID + `</tns:ShipmentID>` +
		`<tns:Status>acknowledged</tns:Status>` +
		`</tns:AcknowledgeShipmentResponse></s:Body></s:Envelope>`
	return []byte(body)
}

// FaultResponse renders a SOAP 1.1 fault body. Use a "soap:Client" code for
// caller-blamed faults.
func FaultResponse(code, reason, detail string) []byte {
	body := `<?xml version="1.0" encoding="UTF-8"?>` +
		`<s:Envelope xmlns:s="` + soap.NamespaceEnvelope + `">` +
		`<s:Body><s:Fault>` +
		`<faultcode>` + code + `</faultcode>` +
		`<faultstring>` + reason + `</faultstring>` +
		`<detail>` + detail + `</detail>` +
		`</s:Fault></s:Body></s:Envelope>`
	return []byte(body)
}

// MultipartPart is one part of a scripted MTOM body.
type MultipartPart struct {
	ContentID   string
	ContentType string
	Filename    string
	Encoding    string
	Content     []byte
}

// MultipartShipment assembles a multipart/related MTOM body from a root XML
// document and its binary parts. Parts with Encoding "base64" are encoded
// on the way in; the parser is expected to decode them back.
func MultipartShipment(boundary string, root []byte, parts ...MultipartPart) []byte {
	var sb strings.Builder
	sb.WriteString("--" + boundary + "\r\n")
	sb.WriteString(`Content-Type: application/xop+xml; charset=UTF-8; type="text/xml"` + "\r\n")
	sb.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	sb.WriteString("Content-ID: <root.message@carrier.example>\r\n")
	sb.WriteString("\r\n")
	sb.Write(root)
	sb.WriteString("\r\n")
	for _, part := range parts {
		sb.WriteString("--" + boundary + "\r\n")
		contentType := part.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		sb.WriteString("Content-Type: " + contentType + "\r\n")
		if part.Encoding != "" {
			sb.WriteString("Content-Transfer-Encoding: " + part.Encoding + "\r\n")
		}
		sb.WriteString("Content-ID: <" + part.ContentID + ">\r\n")
		if part.Filename != "" {
			sb.WriteString(`Content-Disposition: attachment; filename="` + part.Filename + `"` + "\r\n")
		}
		sb.WriteString("\r\n")
		if strings.EqualFold(part.Encoding, "base64") {
			sb.WriteString(base64.StdEncoding.EncodeToString(part.Content))
		} else {
			sb.Write(part.Content)
		}
		sb.WriteString("\r\n")
	}
	sb.WriteString("--" + boundary + "--\r\n")
	return []byte(sb.String())
}

// MultipartContentType renders the Content-Type header value a carrier sends
// alongside a multipart shipment body.
func MultipartContentType(boundary string) string {
	return fmt.Sprintf(`multipart/related; type="application/xop+xml"; boundary="%s"`, boundary)
}

// ShipmentRootDocument renders a GetShipment root XML referencing the given
// content ids through xop includes.
func ShipmentRootDocument(contentIDs ...string) []byte {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	sb.WriteString(`<s:Envelope xmlns:s="` + soap.NamespaceEnvelope + `" xmlns:tns="` + soap.NamespaceTransfer + `" xmlns:xop="http://www.w3.org/2004/08/xop/include">`)
	sb.WriteString(`<s:Body><tns:GetShipmentResponse>`)
	for _, contentID := range contentIDs {
		sb.WriteString(`<tns:Document><xop:Include href="cid:` + contentID + `"/></tns:Document>`)
	}
	sb.WriteString(`</tns:GetShipmentResponse></s:Body></s:Envelope>`)
	return []byte(sb.String())
}
