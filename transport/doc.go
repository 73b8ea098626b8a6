// Package transport carries the HTTP machinery carrier calls run on: a
// hardened HTTP adapter, the SOAP dressing on top of it, and a registry that
// resolves adapters by kind.
package transport
