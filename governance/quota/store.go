// Copyright 2025 AxonFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package quota

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// Store records executions in a sliding window.
type Store interface {
	// Hit records one execution for key at now and returns how many
	// executions, including this one, fall inside (now-window, now].
	Hit(ctx context.Context, key string, now time.Time, window time.Duration) (int64, error)

	// Count returns the executions inside the window without recording one.
	Count(ctx context.Context, key string, now time.Time, window time.Duration) (int64, error)

	// Reset forgets every execution recorded for key.
	Reset(ctx context.Context, key string) error
}

// Dial parses a redis:// URL and verifies the server answers.
func Dial(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// RedisStore keeps one sorted set per key, scored by execution time in
// milliseconds.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// DefaultKeyPrefix namespaces quota keys.
const DefaultKeyPrefix = "sqlguard:quota:"

// NewRedisStore creates a store over client. An empty prefix uses
// DefaultKeyPrefix.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(k string) string {
	return s.prefix + k
}

func windowFloor(now time.Time, window time.Duration) string {
	return fmt.Sprintf("%d", now.Add(-window).UnixMilli())
}

// Hit implements Store. The trim, insert, count and expiry run in one
// pipeline.
func (s *RedisStore) Hit(ctx context.Context, key string, now time.Time, window time.Duration) (int64, error) {
	k := s.key(key)
	pipe := s.client.Pipeline()

	pipe.ZRemRangeByScore(ctx, k, "-inf", windowFloor(now, window))
	pipe.ZAdd(ctx, k, &redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: fmt.Sprintf("%d-%s", now.UnixNano(), uuid.NewString()),
	})
	card := pipe.ZCard(ctx, k)
	pipe.Expire(ctx, k, 2*window)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("quota pipeline failed: %w", err)
	}
	return card.Val(), nil
}

// Count implements Store.
func (s *RedisStore) Count(ctx context.Context, key string, now time.Time, window time.Duration) (int64, error) {
	n, err := s.client.ZCount(ctx, s.key(key), "("+windowFloor(now, window), "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read quota: %w", err)
	}
	return n, nil
}

// Reset implements Store.
func (s *RedisStore) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to reset quota: %w", err)
	}
	return nil
}

// MemoryStore is a process-local Store used when no Redis is configured.
type MemoryStore struct {
	mu   sync.Mutex
	hits map[string][]time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{hits: make(map[string][]time.Time)}
}

func (s *MemoryStore) prune(key string, now time.Time, window time.Duration) []time.Time {
	floor := now.Add(-window)
	kept := s.hits[key][:0]
	for _, at := range s.hits[key] {
		if at.After(floor) {
			kept = append(kept, at)
		}
	}
	if len(kept) == 0 {
		delete(s.hits, key)
		return nil
	}
	s.hits[key] = kept
	return kept
}

// Hit implements Store.
func (s *MemoryStore) Hit(_ context.Context, key string, now time.Time, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hits[key] = append(s.prune(key, now, window), now)
	return int64(len(s.hits[key])), nil
}

// Count implements Store.
func (s *MemoryStore) Count(_ context.Context, key string, now time.Time, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.prune(key, now, window))), nil
}

// Reset implements Store.
func (s *MemoryStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.hits, key)
	return nil
}
