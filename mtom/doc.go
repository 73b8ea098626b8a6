// Package mtom extracts binary documents from multipart/MTOM response
// bodies. Parse is a pure function over the supplied bytes: no I/O, no
// shared state, and identical inputs always produce identical payloads, so
// saved documents are byte-exact and reparsing is safe.
package mtom
