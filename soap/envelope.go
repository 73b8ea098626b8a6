package soap

import (
	"strings"

	"github.com/goliatone/go-carriers/core"
)

// Namespaces used across carrier envelopes. The transfer namespace is shared
// by every carrier; dialect differences show up as optional elements, never
// as different namespaces.
const (
	NamespaceEnvelope = "http://schemas.xmlsoap.org/soap/envelope/"
	NamespaceSecurity = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-secext-1.0.xsd"
	NamespaceUtility  = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-utility-1.0.xsd"
	NamespaceTrust    = "http://docs.oasis-open.org/ws-sx/ws-trust/200512"
	NamespaceTransfer = "urn:carrier:transfer:v1"
)

// SOAPAction values for the operations the transfer endpoint exposes.
const (
	ActionListShipments       = "urn:carrier:transfer:v1/ListShipments"
	ActionGetShipment         = "urn:carrier:transfer:v1/GetShipment"
	ActionAcknowledgeShipment = "urn:carrier:transfer:v1/AcknowledgeShipment"
	ActionIssueToken          = "http://docs.oasis-open.org/ws-sx/ws-trust/200512/RST/Issue"
)

const (
	tokenTypeSession = "urn:carrier:transfer:v1:SessionToken"
	requestTypeIssue = "http://docs.oasis-open.org/ws-sx/ws-trust/200512/Issue"
)

const xmlDeclaration = `<?xml version="1.0" encoding="UTF-8"?>`

// Attr is a rendered XML attribute. Values are escaped during rendering.
type Attr struct {
	Name  string
	Value string
}

// Element is one node of an envelope under construction. Text and Children
// are mutually exclusive; when both are set the children win.
type Element struct {
	Tag      string
	Attrs    []Attr
	Text     string
	Children []Element
}

// Elem builds an element with child elements.
func Elem(tag string, children ...Element) Element {
	return Element{Tag: tag, Children: children}
}

// Text builds a leaf element carrying escaped character data.
func Text(tag, value string) Element {
	return Element{Tag: tag, Text: value}
}

// Envelope is a SOAP 1.1 envelope ready to render. Namespace declarations go
// on the envelope element so child elements stay compact.
type Envelope struct {
	Namespaces []Attr
	Header     []Element
	Body       []Element
}

// Render serializes the envelope without whitespace between elements. The
// output is deterministic for a given input.
func (e Envelope) Render() string {
	var sb strings.Builder
	sb.WriteString(xmlDeclaration)
	sb.WriteString("<soapenv:Envelope")
	writeAttr(&sb, Attr{Name: "xmlns:soapenv", Value: NamespaceEnvelope})
	for _, ns := range e.Namespaces {
		writeAttr(&sb, ns)
	}
	sb.WriteString(">")
	if len(e.Header) > 0 {
		sb.WriteString("<soapenv:Header>")
		for _, child := range e.Header {
			writeElement(&sb, child)
		}
		sb.WriteString("</soapenv:Header>")
	}
	sb.WriteString("<soapenv:Body>")
	for _, child := range e.Body {
		writeElement(&sb, child)
	}
	sb.WriteString("</soapenv:Body>")
	sb.WriteString("</soapenv:Envelope>")
	return sb.String()
}

func writeElement(sb *strings.Builder, el Element) {
	sb.WriteString("<")
	sb.WriteString(el.Tag)
	for _, attr := range el.Attrs {
		writeAttr(sb, attr)
	}
	sb.WriteString(">")
	if len(el.Children) > 0 {
		for _, child := range el.Children {
			writeElement(sb, child)
		}
	} else {
		sb.WriteString(EscapeText(el.Text))
	}
	sb.WriteString("</")
	sb.WriteString(el.Tag)
	sb.WriteString(">")
}

func writeAttr(sb *strings.Builder, attr Attr) {
	sb.WriteString(" ")
	sb.WriteString(attr.Name)
	sb.WriteString(`="`)
	sb.WriteString(EscapeText(attr.Value))
	sb.WriteString(`"`)
}

// Dialect captures the per-carrier variations that change envelope shape.
// All variation funnels through here; the builders never branch on carrier
// identity directly.
type Dialect struct {
	ConfirmDelivery bool
	ConsumerID      string
}

// DialectForProfile derives the envelope dialect from a carrier profile.
func DialectForProfile(profile core.CarrierProfile) Dialect {
	dialect := Dialect{ConfirmDelivery: profile.RequiresConfirmFlag}
	if profile.RequiresConsumerID {
		dialect.ConsumerID = profile.ConsumerID
	}
	return dialect
}

func (d Dialect) elements() []Element {
	var extra []Element
	if d.ConfirmDelivery {
		extra = append(extra, Text("tns:ConfirmDelivery", "true"))
	}
	if d.ConsumerID != "" {
		extra = append(extra, Text("tns:ConsumerID", d.ConsumerID))
	}
	return extra
}

// ListShipmentsEnvelope builds the request that lists shipments waiting for
// pickup. The optional category narrows the listing when non-empty.
func ListShipmentsEnvelope(token, category string, dialect Dialect) string {
	request := Elem("tns:ListShipmentsRequest")
	if category != "" {
		request.Children = append(request.Children, Text("tns:Category", category))
	}
	request.Children = append(request.Children, dialect.elements()...)
	return transferEnvelope(token, request)
}

// GetShipmentEnvelope builds the request that fetches one shipment payload.
func GetShipmentEnvelope(token, shipmentID string, dialect Dialect) string {
	request := Elem("tns:GetShipmentRequest", Text("tns:ShipmentID", shipmentID))
	request.Children = append(request.Children, dialect.elements()...)
	return transferEnvelope(token, request)
}

// AcknowledgeShipmentEnvelope builds the request that confirms delivery of a
// shipment so the carrier stops offering it.
func AcknowledgeShipmentEnvelope(token, shipmentID string, dialect Dialect) string {
	request := Elem("tns:AcknowledgeShipmentRequest", Text("tns:ShipmentID", shipmentID))
	request.Children = append(request.Children, dialect.elements()...)
	return transferEnvelope(token, request)
}

func transferEnvelope(token string, request Element) string {
	return Envelope{
		Namespaces: []Attr{{Name: "xmlns:tns", Value: NamespaceTransfer}},
		Header: []Element{
			Elem("tns:SecurityContext", Text("tns:Token", token)),
		},
		Body: []Element{request},
	}.Render()
}

// RequestSecurityTokenEnvelope builds the WS-Trust issue request the token
// endpoint expects. The credentials ride in a WS-Security username token
// header; the token endpoint is dialect free.
func RequestSecurityTokenEnvelope(username, password string) string {
	return Envelope{
		Namespaces: []Attr{
			{Name: "xmlns:wsse", Value: NamespaceSecurity},
			{Name: "xmlns:wst", Value: NamespaceTrust},
		},
		Header: []Element{
			Elem("wsse:Security",
				Elem("wsse:UsernameToken",
					Text("wsse:Username", username),
					Text("wsse:Password", password),
				),
			),
		},
		Body: []Element{
			Elem("wst:RequestSecurityToken",
				Text("wst:TokenType", tokenTypeSession),
				Text("wst:RequestType", requestTypeIssue),
			),
		},
	}.Render()
}
