package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisIdempotency implements Idempotency on Redis. Reservation uses SETNX
// so that concurrent replicas agree on which request owns a key.
type RedisIdempotency struct {
	rdb *redis.Client
}

// NewRedisIdempotency creates a Redis-backed key store.
func NewRedisIdempotency(rdb *redis.Client) *RedisIdempotency {
	return &RedisIdempotency{rdb: rdb}
}

var pendingRecord, _ = json.Marshal(Recorded{Pending: true})

func (s *RedisIdempotency) Reserve(ctx context.Context, key string, ttl time.Duration) (Recorded, bool, error) {
	ok, err := s.rdb.SetNX(ctx, idempotencyKey(key), pendingRecord, ttl).Result()
	if err != nil {
		return Recorded{}, false, fmt.Errorf("reserve %s: %w", key, err)
	}
	if ok {
		return Recorded{}, true, nil
	}

	data, err := s.rdb.Get(ctx, idempotencyKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		// Expired between SETNX and GET; treat as in flight.
		return Recorded{Pending: true}, false, nil
	}
	if err != nil {
		return Recorded{}, false, fmt.Errorf("lookup %s: %w", key, err)
	}
	var rec Recorded
	if err := json.Unmarshal(data, &rec); err != nil {
		return Recorded{}, false, fmt.Errorf("decode %s: %w", key, err)
	}
	return rec, false, nil
}

func (s *RedisIdempotency) Complete(ctx context.Context, key string, rec Recorded, ttl time.Duration) error {
	rec.Pending = false
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, idempotencyKey(key), data, ttl).Err()
}

func (s *RedisIdempotency) Release(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, idempotencyKey(key)).Err()
}

func idempotencyKey(k string) string { return fmt.Sprintf("vault:idem:%s", k) }
