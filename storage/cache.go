package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"pinky-api/domain"
)

// Cache wraps a Store with Redis-backed caching for organization microtask
// listings. Mutations that can change a listing evict the affected keys; a
// store-wide restore bumps a generation counter instead so stale keys simply
// age out.
type Cache struct {
	*Store
	redis *redis.Client
	ttl   time.Duration
}

const cacheGenKey = "microtasks:gen"

// NewCache creates a caching wrapper using the provided Redis client and TTL.
func NewCache(base *Store, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base store is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{Store: base, redis: client, ttl: ttl}
}

// ListMicroTasksForOrganization reads the listing through the cache. The
// context covers only the Redis round trips; the store itself never blocks on
// I/O. Shadows the store method of the same name with a context-aware one.
func (c *Cache) ListMicroTasksForOrganization(ctx context.Context, organizationID string, status domain.MicroTaskStatus) []domain.MicroTask {
	key, ok := c.listKey(ctx, organizationID, status)
	if ok {
		if tasks, hit := c.loadListing(ctx, key); hit {
			return tasks
		}
	}

	tasks := c.Store.ListMicroTasksForOrganization(organizationID, status)
	if ok {
		c.storeListing(ctx, key, tasks)
	}
	return tasks
}

// CreateMicroTask writes through to the store and evicts the organization's
// cached listings.
func (c *Cache) CreateMicroTask(p CreateMicroTaskParams) (domain.MicroTask, error) {
	mt, err := c.Store.CreateMicroTask(p)
	if err != nil {
		return mt, err
	}
	c.evictOrg(context.Background(), p.OrganizationID)
	return mt, nil
}

// EnsureSeedMicroTasksForUser seeds through the store, then evicts the
// listings of every organization the user belongs to.
func (c *Cache) EnsureSeedMicroTasksForUser(userID string) {
	c.Store.EnsureSeedMicroTasksForUser(userID)
	ctx := context.Background()
	for _, m := range c.Store.ListMembershipsForUser(userID) {
		c.evictOrg(ctx, m.OrganizationID)
	}
}

// ImportAll restores the store and invalidates every cached listing.
func (c *Cache) ImportAll(snap domain.Snapshot) {
	c.Store.ImportAll(snap)
	c.bumpGeneration(context.Background())
}

// Reset clears the store and invalidates every cached listing.
func (c *Cache) Reset() {
	c.Store.Reset()
	c.bumpGeneration(context.Background())
}

func (c *Cache) listKey(ctx context.Context, organizationID string, status domain.MicroTaskStatus) (string, bool) {
	if c.redis == nil || c.ttl == 0 {
		return "", false
	}
	gen, err := c.redis.Get(ctx, cacheGenKey).Int64()
	if err != nil && err != redis.Nil {
		return "", false
	}
	return fmt.Sprintf("microtasks:%d:%s:%s", gen, organizationID, status), true
}

func (c *Cache) loadListing(ctx context.Context, key string) ([]domain.MicroTask, bool) {
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the store without failing.
			_ = c.redis.Del(ctx, key).Err()
		}
		return nil, false
	}
	var tasks []domain.MicroTask
	if err := json.Unmarshal(data, &tasks); err != nil {
		_ = c.redis.Del(ctx, key).Err()
		return nil, false
	}
	return tasks, true
}

func (c *Cache) storeListing(ctx context.Context, key string, tasks []domain.MicroTask) {
	data, err := json.Marshal(tasks)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.ttl).Err()
}

func (c *Cache) evictOrg(ctx context.Context, organizationID string) {
	if c.redis == nil {
		return
	}
	statuses := []domain.MicroTaskStatus{"", domain.MicroTaskOpen, domain.MicroTaskAssigned, domain.MicroTaskDone}
	keys := make([]string, 0, len(statuses))
	for _, st := range statuses {
		if key, ok := c.listKey(ctx, organizationID, st); ok {
			keys = append(keys, key)
		}
	}
	if len(keys) > 0 {
		_, _ = c.redis.Del(ctx, keys...).Result()
	}
}

func (c *Cache) bumpGeneration(ctx context.Context) {
	if c.redis == nil {
		return
	}
	_ = c.redis.Incr(ctx, cacheGenKey).Err()
}
