package soap

import (
	"fmt"
	"strings"
)

// Fault is a SOAP 1.1 fault decoded from a response body.
type Fault struct {
	Code   string
	Reason string
	Detail string
}

// Error renders the fault for logs and error chains.
func (f *Fault) Error() string {
	if f.Reason == "" {
		return fmt.Sprintf("soap fault %s", f.Code)
	}
	return fmt.Sprintf("soap fault %s: %s", f.Code, f.Reason)
}

// IsClientFault reports whether the carrier blamed the caller for the fault.
func (f *Fault) IsClientFault() bool {
	_, local := splitFaultCode(f.Code)
	return strings.EqualFold(local, "Client")
}

// ExtractFault returns the fault carried in a response body, if any. Bodies
// that do not parse or carry no Fault element report false; callers handle
// undecodable payloads separately.
func ExtractFault(raw []byte) (*Fault, bool) {
	root, err := Parse(raw)
	if err != nil {
		return nil, false
	}
	node := root.First("Fault")
	if node == nil {
		return nil, false
	}
	fault := &Fault{
		Code:   node.FirstText("faultcode"),
		Reason: node.FirstText("faultstring"),
		Detail: node.FirstText("detail"),
	}
	return fault, true
}

func splitFaultCode(code string) (prefix, local string) {
	if idx := strings.LastIndex(code, ":"); idx >= 0 {
		return code[:idx], code[idx+1:]
	}
	return "", code
}
