// Package transfer implements the SOAP transfer surface of a carrier
// backend: listing waiting shipments, fetching their multipart payloads, and
// acknowledging delivery. Envelope shape is driven by the carrier profile's
// dialect flags; the client itself never branches on carrier identity.
package transfer
