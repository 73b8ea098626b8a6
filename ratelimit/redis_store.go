package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "carriers:ratelimit:"

// RedisStateStore mirrors limiter snapshots into Redis so operators can watch
// carrier throttling across a fleet. Snapshots expire on their own; the
// in-process limiter never reads them back for decisions.
type RedisStateStore struct {
	Client redis.UniversalClient
	TTL    time.Duration
}

func NewRedisStateStore(client redis.UniversalClient) *RedisStateStore {
	return &RedisStateStore{
		Client: client,
		TTL:    24 * time.Hour,
	}
}

func (s *RedisStateStore) Get(ctx context.Context, carrierID string) (State, error) {
	if s == nil || s.Client == nil {
		return State{}, errors.New("ratelimit: redis state store requires a client")
	}
	id := normalizeCarrierID(carrierID)
	if id == "" {
		return State{}, errors.New("ratelimit: state carrier id is required")
	}
	raw, err := s.Client.Get(ctx, redisKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return State{}, ErrStateNotFound
	}
	if err != nil {
		return State{}, fmt.Errorf("ratelimit: redis get %q: %w", id, err)
	}
	var state State
	if err := json.Unmarshal(raw, &state); err != nil {
		return State{}, fmt.Errorf("ratelimit: decode redis state %q: %w", id, err)
	}
	return state, nil
}

func (s *RedisStateStore) Upsert(ctx context.Context, state State) error {
	if s == nil || s.Client == nil {
		return errors.New("ratelimit: redis state store requires a client")
	}
	id := normalizeCarrierID(state.CarrierID)
	if id == "" {
		return errors.New("ratelimit: state carrier id is required")
	}
	state.CarrierID = id
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("ratelimit: encode redis state %q: %w", id, err)
	}
	ttl := s.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if err := s.Client.Set(ctx, redisKeyPrefix+id, raw, ttl).Err(); err != nil {
		return fmt.Errorf("ratelimit: redis set %q: %w", id, err)
	}
	return nil
}

func (s *RedisStateStore) List(ctx context.Context) ([]State, error) {
	if s == nil || s.Client == nil {
		return nil, errors.New("ratelimit: redis state store requires a client")
	}
	var (
		cursor uint64
		states []State
	)
	for {
		keys, next, err := s.Client.Scan(ctx, cursor, redisKeyPrefix+"*", 64).Result()
		if err != nil {
			return nil, fmt.Errorf("ratelimit: redis scan: %w", err)
		}
		for _, key := range keys {
			state, getErr := s.Get(ctx, key[len(redisKeyPrefix):])
			if errors.Is(getErr, ErrStateNotFound) {
				continue
			}
			if getErr != nil {
				return nil, getErr
			}
			states = append(states, state)
		}
		if next == 0 {
			return states, nil
		}
		cursor = next
	}
}

var _ StateStore = (*RedisStateStore)(nil)
