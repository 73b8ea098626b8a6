package devkit

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/goliatone/go-carriers/core"
)

// ArchivedDocument is one Store call captured by the memory archive.
type ArchivedDocument struct {
	Location string
	Binary   []byte
	Meta     core.DocumentMeta
}

// MemoryArchive is an in-memory core.DocumentArchive for tests and local
// wiring. Locations follow mem://<carrier>/<shipment>/<filename>.
type MemoryArchive struct {
	mu        sync.Mutex
	documents []ArchivedDocument
	failWith  error
}

func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{}
}

// FailWith makes every subsequent Store call return err. Pass nil to clear.
func (a *MemoryArchive) FailWith(err error) {
	if a == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failWith = err
}

func (a *MemoryArchive) Store(_ context.Context, binary []byte, meta core.DocumentMeta) (string, error) {
	if a == nil {
		return "", fmt.Errorf("devkit: memory archive is nil")
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.failWith != nil {
		return "", a.failWith
	}

	filename := strings.TrimSpace(meta.Filename)
	if filename == "" {
		filename = strings.TrimSpace(meta.ContentID)
	}
	if filename == "" {
		filename = fmt.Sprintf("part-%d", len(a.documents)+1)
	}
	location := fmt.Sprintf("mem://%s/%s/%s",
		strings.TrimSpace(strings.ToLower(meta.CarrierID)),
		strings.TrimSpace(meta.ShipmentID),
		filename,
	)
	a.documents = append(a.documents, ArchivedDocument{
		Location: location,
		Binary:   append([]byte(nil), binary...),
		Meta:     meta,
	})
	return location, nil
}

// Documents returns a copy of every stored document in store order.
func (a *MemoryArchive) Documents() []ArchivedDocument {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]ArchivedDocument, 0, len(a.documents))
	for _, doc := range a.documents {
		out = append(out, ArchivedDocument{
			Location: doc.Location,
			Binary:   append([]byte(nil), doc.Binary...),
			Meta:     doc.Meta,
		})
	}
	return out
}

func (a *MemoryArchive) Count() int {
	if a == nil {
		return 0
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.documents)
}

var _ core.DocumentArchive = (*MemoryArchive)(nil)
