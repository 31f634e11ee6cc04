package cache

import (
	"context"
	"errors"
	"hash/fnv"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrMiss is returned for keys that are absent or no longer fresh.
var ErrMiss = errors.New("cache: miss")

// Entry is one stored record. It is fresh while now-WrittenAt < TTL and is
// eligible for physical removal once now-WrittenAt >= PurgeAfter.
type Entry struct {
	Payload    []byte
	WrittenAt  time.Time
	TTL        time.Duration
	PurgeAfter time.Duration
}

// Fresh reports whether the entry may still be served.
func (e Entry) Fresh(now time.Time) bool {
	return now.Sub(e.WrittenAt) < e.TTL
}

// Expired reports whether the entry should be purged.
func (e Entry) Expired(now time.Time) bool {
	purge := e.PurgeAfter
	if purge < e.TTL {
		purge = e.TTL
	}
	return now.Sub(e.WrittenAt) >= purge
}

// Store persists entries. Implementations must be safe for concurrent use
// and return ErrMiss from Get for absent keys.
type Store interface {
	Get(ctx context.Context, key string) (Entry, error)
	Set(ctx context.Context, key string, e Entry) error
	Delete(ctx context.Context, key string) error
	// Keys lists stored keys starting with prefix, fresh or not.
	Keys(ctx context.Context, prefix string) ([]string, error)
	Sweep(ctx context.Context, now time.Time) (int, error)
}

const memoryShards = 16

// MemoryStore is an in-process Store split into independently locked shards
// so requests touching different keys do not contend.
type MemoryStore struct {
	shards [memoryShards]memoryShard
}

type memoryShard struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{}
	for i := range s.shards {
		s.shards[i].entries = make(map[string]Entry)
	}
	return s
}

func (s *MemoryStore) shard(key string) *memoryShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &s.shards[h.Sum32()%memoryShards]
}

func (s *MemoryStore) Get(_ context.Context, key string) (Entry, error) {
	sh := s.shard(key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	e, ok := sh.entries[key]
	if !ok {
		return Entry{}, ErrMiss
	}
	e.Payload = append([]byte(nil), e.Payload...)
	return e, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, e Entry) error {
	e.Payload = append([]byte(nil), e.Payload...)
	sh := s.shard(key)
	sh.mu.Lock()
	sh.entries[key] = e
	sh.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	sh := s.shard(key)
	sh.mu.Lock()
	delete(sh.entries, key)
	sh.mu.Unlock()
	return nil
}

// Keys returns the stored keys with prefix in sorted order.
func (s *MemoryStore) Keys(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		for key := range sh.entries {
			if strings.HasPrefix(key, prefix) {
				keys = append(keys, key)
			}
		}
		sh.mu.RUnlock()
	}
	sort.Strings(keys)
	return keys, nil
}

// Sweep removes every expired entry and returns how many were removed.
func (s *MemoryStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	purged := 0
	for i := range s.shards {
		if err := ctx.Err(); err != nil {
			return purged, err
		}
		sh := &s.shards[i]
		sh.mu.Lock()
		for key, e := range sh.entries {
			if e.Expired(now) {
				delete(sh.entries, key)
				purged++
			}
		}
		sh.mu.Unlock()
	}
	return purged, nil
}

// Len returns the number of stored entries, fresh or not.
func (s *MemoryStore) Len() int {
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		n += len(sh.entries)
		sh.mu.RUnlock()
	}
	return n
}
