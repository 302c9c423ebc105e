package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Config struct {
	TTL    time.Duration
	Prefix string
}

var (
	CourseCacheConfig = Config{
		TTL:    5 * time.Minute,
		Prefix: "lms:course:",
	}

	CatalogCacheConfig = Config{
		TTL:    2 * time.Minute,
		Prefix: "lms:catalog:",
	}

	UserCacheConfig = Config{
		TTL:    5 * time.Minute,
		Prefix: "lms:user:",
	}

	ForumCacheConfig = Config{
		TTL:    10 * time.Minute,
		Prefix: "lms:forum:",
	}

	StatsCacheConfig = Config{
		TTL:    1 * time.Minute,
		Prefix: "lms:stats:",
	}
)

// Manager groups the helpers used by the repositories.
type Manager struct {
	client *redis.Client

	Course  *Helper
	Catalog *Helper
	User    *Helper
	Forum   *Helper
	Stats   *Helper
}

// NewManager returns a manager whose helpers are no-ops when client is nil.
func NewManager(client *redis.Client) *Manager {
	return &Manager{
		client:  client,
		Course:  NewHelper(client, CourseCacheConfig.Prefix),
		Catalog: NewHelper(client, CatalogCacheConfig.Prefix),
		User:    NewHelper(client, UserCacheConfig.Prefix),
		Forum:   NewHelper(client, ForumCacheConfig.Prefix),
		Stats:   NewHelper(client, StatsCacheConfig.Prefix),
	}
}

func (m *Manager) Enabled() bool {
	return m.client != nil
}

// HealthCheck verifies cache connectivity
func (m *Manager) HealthCheck(ctx context.Context) error {
	if m.client == nil {
		return ErrCacheNotAvailable
	}
	if err := m.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("cache health check failed: %w", err)
	}
	return nil
}

// KeyCounts reports the number of keys per prefix for the health endpoint.
func (m *Manager) KeyCounts(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int)
	if m.client == nil {
		return counts, nil
	}

	for _, h := range []*Helper{m.Course, m.Catalog, m.User, m.Forum, m.Stats} {
		var (
			cursor uint64
			n      int
		)
		for {
			keys, next, err := m.client.Scan(ctx, cursor, h.prefix+"*", 100).Result()
			if err != nil {
				return counts, fmt.Errorf("failed to scan %s: %w", h.prefix, err)
			}
			n += len(keys)
			cursor = next
			if cursor == 0 {
				break
			}
		}
		counts[h.prefix] = n
	}
	return counts, nil
}
