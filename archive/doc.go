// Package archive binds the document-archive collaborator contract to a
// blob bucket. The archive system itself lives elsewhere; this package only
// writes downloaded shipment documents into the bucket the archive ingests
// from, under a deterministic key layout.
package archive
