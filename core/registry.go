package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ProfileRegistry is the in-memory ProfileSource. Profiles register once at
// wiring time; lookups normalize the carrier id the same way Register does.
type ProfileRegistry struct {
	mu       sync.RWMutex
	profiles map[string]CarrierProfile
}

func NewProfileRegistry() *ProfileRegistry {
	return &ProfileRegistry{profiles: make(map[string]CarrierProfile)}
}

func (r *ProfileRegistry) Register(profile CarrierProfile) error {
	if r == nil {
		return fmt.Errorf("core: profile registry is not configured")
	}
	profile = profile.Normalize()
	if err := profile.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.profiles[profile.ID]; exists {
		return fmt.Errorf("core: carrier profile already registered: %s", profile.ID)
	}
	r.profiles[profile.ID] = profile
	return nil
}

func (r *ProfileRegistry) Profile(_ context.Context, carrierID string) (CarrierProfile, error) {
	if r == nil {
		return CarrierProfile{}, fmt.Errorf("core: profile registry is not configured")
	}
	id := strings.ToLower(strings.TrimSpace(carrierID))
	if id == "" {
		return CarrierProfile{}, fmt.Errorf("core: carrier id is required")
	}
	r.mu.RLock()
	profile, ok := r.profiles[id]
	r.mu.RUnlock()
	if !ok {
		return CarrierProfile{}, fmt.Errorf("core: carrier %q: %w", id, ErrProfileNotFound)
	}
	return profile, nil
}

func (r *ProfileRegistry) Profiles(_ context.Context) ([]CarrierProfile, error) {
	if r == nil {
		return nil, fmt.Errorf("core: profile registry is not configured")
	}
	r.mu.RLock()
	keys := make([]string, 0, len(r.profiles))
	for id := range r.profiles {
		keys = append(keys, id)
	}
	profiles := make([]CarrierProfile, 0, len(keys))
	sort.Strings(keys)
	for _, id := range keys {
		profiles = append(profiles, r.profiles[id])
	}
	r.mu.RUnlock()
	return profiles, nil
}

var _ ProfileSource = (*ProfileRegistry)(nil)
