// Package download runs carrier batches: a bounded worker pool fans out over
// the shipment list under the adaptive rate limiter, each task fetching,
// parsing, archiving, and acknowledging one shipment. Failures stay confined
// to their shipment; only authentication exhaustion or an unreachable
// listing aborts a run.
package download
