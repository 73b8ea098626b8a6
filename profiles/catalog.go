package profiles

import (
	"context"
	"fmt"
	"os"

	"github.com/goliatone/go-carriers/core"
)

// Catalog is the profile source used at wiring time. It wraps the core
// registry with YAML loading so deployments describe their carriers in a
// file instead of code.
type Catalog struct {
	registry *core.ProfileRegistry
}

func NewCatalog() *Catalog {
	return &Catalog{registry: core.NewProfileRegistry()}
}

// Register adds one profile. The registry normalizes and validates it and
// rejects duplicate carrier ids.
func (c *Catalog) Register(profile core.CarrierProfile) error {
	if c == nil || c.registry == nil {
		return fmt.Errorf("profiles: catalog is not configured")
	}
	return c.registry.Register(profile)
}

// LoadFile reads a YAML profile document from disk and registers every
// carrier it declares. Loading is all-or-nothing per call: the first invalid
// profile aborts with the file and carrier named in the error.
func (c *Catalog) LoadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("profiles: read %q: %w", path, err)
	}
	if err := c.LoadBytes(raw); err != nil {
		return fmt.Errorf("profiles: load %q: %w", path, err)
	}
	return nil
}

// LoadBytes registers every carrier declared in a YAML document.
func (c *Catalog) LoadBytes(raw []byte) error {
	if c == nil || c.registry == nil {
		return fmt.Errorf("profiles: catalog is not configured")
	}
	parsed, err := parseDocument(raw)
	if err != nil {
		return err
	}
	for _, profile := range parsed {
		if err := c.registry.Register(profile); err != nil {
			return err
		}
	}
	return nil
}

func (c *Catalog) Profile(ctx context.Context, carrierID string) (core.CarrierProfile, error) {
	if c == nil {
		return core.CarrierProfile{}, fmt.Errorf("profiles: catalog is not configured")
	}
	return c.registry.Profile(ctx, carrierID)
}

func (c *Catalog) Profiles(ctx context.Context) ([]core.CarrierProfile, error) {
	if c == nil {
		return nil, fmt.Errorf("profiles: catalog is not configured")
	}
	return c.registry.Profiles(ctx)
}

var _ core.ProfileSource = (*Catalog)(nil)
