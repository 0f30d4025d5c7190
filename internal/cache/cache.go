// Package cache stores scalar query results in Redis. The stored tables only
// change through bulk loads, which flush the cache when they commit.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/EmpoweredVote/EV-Geo/internal/metrics"
	"github.com/redis/go-redis/v9"
)

// Prefix namespaces every key this service writes.
const Prefix = "evgeo:"

type Cache interface {
	// Get decodes the cached value for key into dst and reports a hit.
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any) error
	// Flush drops every key under Prefix.
	Flush(ctx context.Context) error
}

// Key joins parts into a cache key under Prefix.
func Key(parts ...any) string {
	s := make([]string, len(parts))
	for i, p := range parts {
		s[i] = fmt.Sprint(p)
	}
	return Prefix + strings.Join(s, ":")
}

// Open returns a client for addr, or nil when addr is empty.
func Open(addr, password string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
}

// New wraps client, or returns a no-op cache when client is nil.
func New(client *redis.Client, ttl time.Duration) Cache {
	if client == nil {
		return Nop{}
	}
	return &Redis{client: client, ttl: ttl}
}

type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func (r *Redis) Get(ctx context.Context, key string, dst any) (bool, error) {
	b, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.CacheMissesTotal.Inc()
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	metrics.CacheHitsTotal.Inc()
	return true, nil
}

func (r *Redis) Set(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, b, r.ttl).Err()
}

func (r *Redis) Flush(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, Prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

// Nop never hits.
type Nop struct{}

func (Nop) Get(context.Context, string, any) (bool, error) { return false, nil }
func (Nop) Set(context.Context, string, any) error         { return nil }
func (Nop) Flush(context.Context) error                    { return nil }
