// Package token negotiates and caches the short-lived security tokens
// carriers require on every transfer call. The broker holds one token per
// carrier, renews inside the safety margin, and collapses concurrent
// acquisitions into a single negotiation. The STS client speaks the WS-Trust
// issue operation over the transport adapter.
package token
