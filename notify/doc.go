// Package notify announces finished batches to an external endpoint. The
// HTTP binding posts the batch result as JSON with an HMAC-SHA256 signature
// header, so the receiver can authenticate the payload without a shared
// session.
package notify
