package cache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "dental:cache:"

// RedisStore keeps entries in redis. Each key carries a redis TTL equal to
// the entry's purge horizon, so redis evicts most stale data on its own;
// Sweep removes the remainder.
type RedisStore struct {
	client *redis.Client
	prefix string
}

type redisEnvelope struct {
	Payload    json.RawMessage `json:"payload"`
	WrittenAt  time.Time       `json:"written_at"`
	TTL        time.Duration   `json:"ttl"`
	PurgeAfter time.Duration   `json:"purge_after"`
}

// NewRedisStore wraps a redis client. An empty prefix uses "dental:cache:".
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if client == nil {
		panic("cache: redis client required")
	}
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Get(ctx context.Context, key string) (Entry, error) {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, ErrMiss
	}
	if err != nil {
		return Entry{}, fmt.Errorf("cache: redis get %s: %w", key, err)
	}
	var env redisEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Entry{}, fmt.Errorf("cache: decode %s: %w", key, err)
	}
	return Entry{
		Payload:    []byte(env.Payload),
		WrittenAt:  env.WrittenAt,
		TTL:        env.TTL,
		PurgeAfter: env.PurgeAfter,
	}, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, e Entry) error {
	data, err := json.Marshal(redisEnvelope{
		Payload:    json.RawMessage(e.Payload),
		WrittenAt:  e.WrittenAt.UTC(),
		TTL:        e.TTL,
		PurgeAfter: e.PurgeAfter,
	})
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", key, err)
	}
	expiry := e.PurgeAfter
	if expiry < e.TTL {
		expiry = e.TTL
	}
	if err := s.client.Set(ctx, s.prefix+key, data, expiry).Err(); err != nil {
		return fmt.Errorf("cache: redis set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("cache: redis del %s: %w", key, err)
	}
	return nil
}

// Keys scans the store prefix for keys starting with prefix.
func (s *RedisStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, s.prefix+prefix+"*", 200).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val()[len(s.prefix):])
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("cache: redis scan: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

// Sweep scans the prefix and deletes envelopes past their purge horizon.
func (s *RedisStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	purged := 0
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 200).Iterator()
	for iter.Next(ctx) {
		full := iter.Val()
		e, err := s.Get(ctx, full[len(s.prefix):])
		if errors.Is(err, ErrMiss) {
			continue
		}
		if err != nil || e.Expired(now) {
			if delErr := s.client.Del(ctx, full).Err(); delErr != nil {
				return purged, fmt.Errorf("cache: redis sweep del: %w", delErr)
			}
			purged++
		}
	}
	if err := iter.Err(); err != nil {
		return purged, fmt.Errorf("cache: redis scan: %w", err)
	}
	return purged, nil
}
