// Package ratelimit adapts per-carrier request concurrency to the signals
// the carrier sends back. Throttle outcomes halve the allowance and open an
// exponential backoff window; sustained success raises the allowance one
// slot at a time. The in-process controller is authoritative; state stores
// only mirror snapshots for observability. An optional pacer adds a
// requests-per-second ceiling on top of the concurrency gate.
package ratelimit
