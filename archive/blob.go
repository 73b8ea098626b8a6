package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"gocloud.dev/blob"

	"github.com/goliatone/go-carriers/core"
)

// BlobArchive stores shipment documents in a gocloud blob bucket. The
// returned document id is the object key, so callers can resolve a journal
// entry back to the stored bytes with nothing but the bucket URL.
type BlobArchive struct {
	bucket *blob.Bucket
	prefix string
	now    func() time.Time
}

type BlobOption func(*BlobArchive)

// WithPrefix puts every object under the given key prefix.
func WithPrefix(prefix string) BlobOption {
	return func(a *BlobArchive) {
		a.prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	}
}

// WithClock overrides the timestamp source. Tests use this to get stable
// object keys.
func WithClock(now func() time.Time) BlobOption {
	return func(a *BlobArchive) {
		if now != nil {
			a.now = now
		}
	}
}

func NewBlobArchive(bucket *blob.Bucket, opts ...BlobOption) *BlobArchive {
	a := &BlobArchive{
		bucket: bucket,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// OpenBlobArchive opens the bucket behind a gocloud URL (s3://, gs://,
// azblob://, file://, mem:// with the matching driver imported) and wraps it.
// The caller owns closing the returned bucket.
func OpenBlobArchive(ctx context.Context, bucketURL string, opts ...BlobOption) (*BlobArchive, *blob.Bucket, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, nil, fmt.Errorf("archive: open bucket %q: %w", bucketURL, err)
	}
	return NewBlobArchive(bucket, opts...), bucket, nil
}

// Store writes one document and returns its object key. Keys follow
// <prefix>/<carrier>/<date>/<batch>/<shipment>/<filename> so a bucket
// listing groups naturally by carrier and day.
func (a *BlobArchive) Store(ctx context.Context, binary []byte, meta core.DocumentMeta) (string, error) {
	if a == nil || a.bucket == nil {
		return "", fmt.Errorf("archive: blob archive is not configured")
	}
	if len(binary) == 0 {
		return "", fmt.Errorf("archive: refusing to store an empty document")
	}
	key, err := a.objectKey(meta)
	if err != nil {
		return "", err
	}

	writer, err := a.bucket.NewWriter(ctx, key, &blob.WriterOptions{
		ContentType: meta.ContentType,
		Metadata:    objectMetadata(meta),
	})
	if err != nil {
		return "", fmt.Errorf("archive: create writer for %q: %w", key, err)
	}
	if _, err := io.Copy(writer, bytes.NewReader(binary)); err != nil {
		writer.Close()
		return "", fmt.Errorf("archive: write %q: %w", key, err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("archive: close writer for %q: %w", key, err)
	}
	return key, nil
}

func (a *BlobArchive) objectKey(meta core.DocumentMeta) (string, error) {
	carrierID := strings.TrimSpace(meta.CarrierID)
	shipmentID := strings.TrimSpace(meta.ShipmentID)
	if carrierID == "" || shipmentID == "" {
		return "", fmt.Errorf("archive: document metadata needs carrier and shipment ids")
	}
	batchID := strings.TrimSpace(meta.BatchID)
	if batchID == "" {
		batchID = "adhoc"
	}
	filename := strings.TrimSpace(meta.Filename)
	if filename == "" {
		filename = strings.TrimSpace(meta.ContentID)
	}
	if filename == "" {
		filename = "document.bin"
	}
	segments := []string{
		sanitizeSegment(carrierID),
		a.now().Format("2006/01/02"),
		sanitizeSegment(batchID),
		sanitizeSegment(shipmentID),
		sanitizeSegment(filename),
	}
	key := path.Join(segments...)
	if a.prefix != "" {
		key = path.Join(a.prefix, key)
	}
	return key, nil
}

func objectMetadata(meta core.DocumentMeta) map[string]string {
	out := map[string]string{
		"carrier_id":  meta.CarrierID,
		"shipment_id": meta.ShipmentID,
	}
	if meta.BatchID != "" {
		out["batch_id"] = meta.BatchID
	}
	if meta.Category != "" {
		out["category"] = meta.Category
	}
	if meta.ContentID != "" {
		out["content_id"] = meta.ContentID
	}
	return out
}

// sanitizeSegment keeps object keys portable across blob backends; anything
// outside the safe set collapses to a dash.
func sanitizeSegment(value string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '_', r == '-':
			return r
		default:
			return '-'
		}
	}, value)
}

var _ core.DocumentArchive = (*BlobArchive)(nil)
