package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrCacheNotAvailable = errors.New("cache not available")
	ErrCacheNotFound     = errors.New("cache not found")
)

// Helper provides JSON caching under a fixed key prefix. A Helper with a nil
// client is valid and behaves as a permanent miss.
type Helper struct {
	client *redis.Client
	prefix string
}

func NewHelper(client *redis.Client, prefix string) *Helper {
	return &Helper{
		client: client,
		prefix: prefix,
	}
}

// Enabled reports whether the helper is backed by Redis.
func (h *Helper) Enabled() bool {
	return h != nil && h.client != nil
}

func (h *Helper) Key(key string) string {
	return h.prefix + key
}

// Get retrieves and unmarshals data from cache
func (h *Helper) Get(ctx context.Context, key string, dest interface{}) error {
	if !h.Enabled() {
		return ErrCacheNotAvailable
	}

	data, err := h.client.Get(ctx, h.Key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheNotFound
		}
		return fmt.Errorf("cache get error: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("cache unmarshal error: %w", err)
	}
	return nil
}

// Set marshals and stores data in cache
func (h *Helper) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !h.Enabled() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal error: %w", err)
	}
	return h.client.Set(ctx, h.Key(key), data, ttl).Err()
}

// Delete removes keys in a single round trip
func (h *Helper) Delete(ctx context.Context, keys ...string) error {
	if !h.Enabled() || len(keys) == 0 {
		return nil
	}

	full := make([]string, len(keys))
	for i, key := range keys {
		full[i] = h.Key(key)
	}
	return h.client.Del(ctx, full...).Err()
}

func (h *Helper) Exists(ctx context.Context, key string) (bool, error) {
	if !h.Enabled() {
		return false, ErrCacheNotAvailable
	}

	count, err := h.client.Exists(ctx, h.Key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("cache exists error: %w", err)
	}
	return count > 0, nil
}

// InvalidatePattern removes all keys matching a pattern using SCAN instead of KEYS
func (h *Helper) InvalidatePattern(ctx context.Context, pattern string) error {
	if !h.Enabled() {
		return nil
	}

	fullPattern := h.Key(pattern)
	var (
		cursor uint64
		keys   []string
	)
	for {
		batch, next, err := h.client.Scan(ctx, cursor, fullPattern, 100).Result()
		if err != nil {
			return fmt.Errorf("cache scan pattern error: %w", err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}

	if len(keys) == 0 {
		return nil
	}

	pipe := h.client.Pipeline()
	const batchSize = 100
	for i := 0; i < len(keys); i += batchSize {
		end := i + batchSize
		if end > len(keys) {
			end = len(keys)
		}
		pipe.Del(ctx, keys[i:end]...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache pipeline delete error: %w", err)
	}
	return nil
}

// CacheOrExecute implements cache-aside: on a miss fetch is called and its
// result stored before returning. Cache failures never fail the read.
func (h *Helper) CacheOrExecute(ctx context.Context, key string, dest interface{}, ttl time.Duration, fetch func() (interface{}, error)) error {
	err := h.Get(ctx, key, dest)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrCacheNotFound) && !errors.Is(err, ErrCacheNotAvailable) {
		slog.WarnContext(ctx, "Cache get error, proceeding to fetch", "error", err, "key", h.Key(key))
	}

	value, err := fetch()
	if err != nil {
		return err
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal result error: %w", err)
	}

	if h.Enabled() {
		setCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		if err := h.client.Set(setCtx, h.Key(key), data, ttl).Err(); err != nil {
			slog.ErrorContext(ctx, "Cache set error", "error", err, "key", h.Key(key))
		}
		cancel()
	}

	return json.Unmarshal(data, dest)
}
