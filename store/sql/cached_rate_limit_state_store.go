package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/goliatone/go-carriers/ratelimit"
)

const rateLimitStateCacheKeyPrefix = "go-carriers::ratelimit_state::v1"

// CachedRateLimitStateStore is a read-through cache over a StateStore.
// Upserts write to the base store and invalidate the cached snapshot so
// the next read observes the fresh row.
type CachedRateLimitStateStore struct {
	base  ratelimit.StateStore
	cache repositorycache.CacheService
}

func NewCachedRateLimitStateStore(
	base ratelimit.StateStore,
	cacheService repositorycache.CacheService,
) (*CachedRateLimitStateStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base rate-limit state store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: rate-limit cache service is required")
	}
	return &CachedRateLimitStateStore{base: base, cache: cacheService}, nil
}

// RateLimitStateCacheKey returns the deterministic cache key contract for
// rate-limit state reads: go-carriers::ratelimit_state::v1::<carrier_id>
// with the carrier segment URL-path escaped after normalization.
func RateLimitStateCacheKey(carrierID string) (string, error) {
	carrierID = strings.ToLower(strings.TrimSpace(carrierID))
	if carrierID == "" {
		return "", fmt.Errorf("sqlstore: carrier id is required")
	}
	return rateLimitStateCacheKeyPrefix + "::" + url.PathEscape(carrierID), nil
}

func (s *CachedRateLimitStateStore) Get(ctx context.Context, carrierID string) (ratelimit.State, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return ratelimit.State{}, fmt.Errorf("sqlstore: cached rate-limit state store is not configured")
	}
	cacheKey, err := RateLimitStateCacheKey(carrierID)
	if err != nil {
		return ratelimit.State{}, err
	}

	state, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (ratelimit.State, error) {
		fetched, fetchErr := s.base.Get(ctx, carrierID)
		if fetchErr != nil {
			return ratelimit.State{}, fetchErr
		}
		return fetched.Clone(), nil
	})
	if err != nil {
		return ratelimit.State{}, err
	}
	return state.Clone(), nil
}

func (s *CachedRateLimitStateStore) Upsert(ctx context.Context, state ratelimit.State) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached rate-limit state store is not configured")
	}
	cacheKey, err := RateLimitStateCacheKey(state.CarrierID)
	if err != nil {
		return err
	}

	if err := s.base.Upsert(ctx, state); err != nil {
		return err
	}
	if err := s.cache.Delete(ctx, cacheKey); err != nil {
		return err
	}
	return nil
}

func (s *CachedRateLimitStateStore) List(ctx context.Context) ([]ratelimit.State, error) {
	if s == nil || s.base == nil {
		return nil, fmt.Errorf("sqlstore: cached rate-limit state store is not configured")
	}
	return s.base.List(ctx)
}

var _ ratelimit.StateStore = (*CachedRateLimitStateStore)(nil)
