package soap

import (
	"strings"
	"testing"
)

const faultDoc = `<?xml version="1.0" encoding="UTF-8"?>
<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/">
  <soapenv:Body>
    <soapenv:Fault>
      <faultcode>soapenv:Client</faultcode>
      <faultstring>shipment already acknowledged</faultstring>
      <detail>ack repeated for ship-7</detail>
    </soapenv:Fault>
  </soapenv:Body>
</soapenv:Envelope>`

func TestExtractFault_ReadsCodeReasonDetail(t *testing.T) {
	fault, ok := ExtractFault([]byte(faultDoc))
	if !ok {
		t.Fatal("expected fault to be detected")
	}
	if fault.Code != "soapenv:Client" {
		t.Fatalf("expected code, got %q", fault.Code)
	}
	if fault.Reason != "shipment already acknowledged" {
		t.Fatalf("expected reason, got %q", fault.Reason)
	}
	if fault.Detail != "ack repeated for ship-7" {
		t.Fatalf("expected detail, got %q", fault.Detail)
	}
	if !fault.IsClientFault() {
		t.Fatal("expected client fault classification")
	}
	if !strings.Contains(fault.Error(), "shipment already acknowledged") {
		t.Fatalf("expected reason in error text, got %q", fault.Error())
	}
}

func TestExtractFault_ServerFault(t *testing.T) {
	doc := strings.Replace(faultDoc, "soapenv:Client", "soapenv:Server", 1)

	fault, ok := ExtractFault([]byte(doc))
	if !ok {
		t.Fatal("expected fault to be detected")
	}
	if fault.IsClientFault() {
		t.Fatal("expected server fault classification")
	}
}

func TestExtractFault_UnprefixedCode(t *testing.T) {
	doc := strings.Replace(faultDoc, "soapenv:Client", "Client", 1)

	fault, ok := ExtractFault([]byte(doc))
	if !ok {
		t.Fatal("expected fault to be detected")
	}
	if !fault.IsClientFault() {
		t.Fatal("expected bare Client code to classify as client fault")
	}
}

func TestExtractFault_NoFaultInBody(t *testing.T) {
	if _, ok := ExtractFault([]byte(listResponseDoc)); ok {
		t.Fatal("expected no fault in list response")
	}
}

func TestExtractFault_MalformedBody(t *testing.T) {
	if _, ok := ExtractFault([]byte("this is not xml")); ok {
		t.Fatal("expected no fault from malformed body")
	}
	if _, ok := ExtractFault(nil); ok {
		t.Fatal("expected no fault from empty body")
	}
}

func TestFault_ErrorWithoutReason(t *testing.T) {
	fault := &Fault{Code: "soapenv:Server"}
	if got := fault.Error(); got != "soap fault soapenv:Server" {
		t.Fatalf("expected bare code error, got %q", got)
	}
}
