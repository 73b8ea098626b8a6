// Package soap renders and decodes the SOAP 1.1 envelopes the carrier
// protocol speaks. Rendering is deterministic: element order is fixed by the
// caller and every supplied string is escaped before insertion, so request
// bodies can be compared byte for byte. Decoding matches on local element
// names because carriers vary their namespace prefixes.
package soap
