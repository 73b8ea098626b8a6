package carriers

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-carriers/core"
)

// ProfilePack is a named group of carrier profiles a host registers in one
// shot, typically one pack per upstream aggregator contract.
type ProfilePack struct {
	Name     string
	Profiles []core.CarrierProfile
}

// ProfileRegistrar is the sink ApplyProfilePacks feeds; both
// core.ProfileRegistry and profiles.Catalog satisfy it.
type ProfileRegistrar interface {
	Register(profile core.CarrierProfile) error
}

type CommandQueryBundleFactory func(service CommandQueryService) (any, error)

// ExtensionHooks collects host-contributed profile packs and command/query
// bundles before the service is assembled.
type ExtensionHooks struct {
	mu sync.RWMutex

	profilePacks map[string]ProfilePack
	bundles      map[string]CommandQueryBundleFactory
}

func NewExtensionHooks() *ExtensionHooks {
	return &ExtensionHooks{
		profilePacks: map[string]ProfilePack{},
		bundles:      map[string]CommandQueryBundleFactory{},
	}
}

func (h *ExtensionHooks) RegisterProfilePack(pack ProfilePack) error {
	if h == nil {
		return fmt.Errorf("carriers: extension hooks are nil")
	}
	name := strings.TrimSpace(pack.Name)
	if name == "" {
		return fmt.Errorf("carriers: profile pack name is required")
	}
	if len(pack.Profiles) == 0 {
		return fmt.Errorf("carriers: profile pack %q has no profiles", name)
	}
	for _, profile := range pack.Profiles {
		if err := profile.Normalize().Validate(); err != nil {
			return fmt.Errorf("carriers: profile pack %q: %w", name, err)
		}
	}

	normalized := ProfilePack{
		Name:     name,
		Profiles: append([]core.CarrierProfile(nil), pack.Profiles...),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.profilePacks[name]; exists {
		return fmt.Errorf("carriers: profile pack %q already registered", name)
	}
	h.profilePacks[name] = normalized
	return nil
}

func (h *ExtensionHooks) RegisterCommandQueryBundle(
	name string,
	factory CommandQueryBundleFactory,
) error {
	if h == nil {
		return fmt.Errorf("carriers: extension hooks are nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("carriers: command/query bundle name is required")
	}
	if factory == nil {
		return fmt.Errorf("carriers: command/query bundle %q factory is required", name)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.bundles[name]; exists {
		return fmt.Errorf("carriers: command/query bundle %q already registered", name)
	}
	h.bundles[name] = factory
	return nil
}

// ApplyProfilePacks registers every pack's profiles, pack name order first,
// profile order within a pack preserved.
func (h *ExtensionHooks) ApplyProfilePacks(registrar ProfileRegistrar) error {
	if h == nil {
		return nil
	}
	if registrar == nil {
		return fmt.Errorf("carriers: profile registrar is required")
	}

	for _, pack := range h.ProfilePacks() {
		for _, profile := range pack.Profiles {
			if err := registrar.Register(profile); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *ExtensionHooks) BuildCommandQueryBundles(
	service CommandQueryService,
) (map[string]any, error) {
	if h == nil {
		return map[string]any{}, nil
	}
	if service == nil {
		return nil, fmt.Errorf("carriers: command/query service is required")
	}

	h.mu.RLock()
	names := make([]string, 0, len(h.bundles))
	for name := range h.bundles {
		names = append(names, name)
	}
	sort.Strings(names)
	factories := make(map[string]CommandQueryBundleFactory, len(h.bundles))
	for name, factory := range h.bundles {
		factories[name] = factory
	}
	h.mu.RUnlock()

	result := make(map[string]any, len(names))
	for _, name := range names {
		bundle, err := factories[name](service)
		if err != nil {
			return nil, err
		}
		result[name] = bundle
	}
	return result, nil
}

func (h *ExtensionHooks) ProfilePacks() []ProfilePack {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.profilePacks))
	for name := range h.profilePacks {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]ProfilePack, 0, len(names))
	for _, name := range names {
		pack := h.profilePacks[name]
		out = append(out, ProfilePack{
			Name:     pack.Name,
			Profiles: append([]core.CarrierProfile(nil), pack.Profiles...),
		})
	}
	return out
}

func (h *ExtensionHooks) BundleNames() []string {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.bundles))
	for name := range h.bundles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
