// Package security keeps carrier credentials encrypted at rest. It ships an
// AES-256-GCM secret provider keyed by an application key, a failover chain
// for key rollover, and a credential source that decrypts carrier passwords
// on demand during token negotiation.
package security
