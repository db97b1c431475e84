package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jmehdipour/restaurant-crm/internal/model"
)

// Cache holds recently read tenants. Entries expire after a TTL, which bounds
// how stale a directory read can be on instances that missed an invalidation.
type Cache interface {
	Get(ctx context.Context, id string) (model.Tenant, bool, error)
	Set(ctx context.Context, t model.Tenant) error
	Delete(ctx context.Context, id string) error
}

// NopCache never stores anything.
type NopCache struct{}

func (NopCache) Get(context.Context, string) (model.Tenant, bool, error) {
	return model.Tenant{}, false, nil
}
func (NopCache) Set(context.Context, model.Tenant) error { return nil }
func (NopCache) Delete(context.Context, string) error { return nil }

const keyTenant = "tenant:%s"

// RedisCache stores tenants as JSON under tenant:{id}.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisCache{rdb: rdb, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, id string) (model.Tenant, bool, error) {
	b, err := c.rdb.Get(ctx, fmt.Sprintf(keyTenant, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.Tenant{}, false, nil
	}
	if err != nil {
		return model.Tenant{}, false, err
	}
	var t model.Tenant
	if err := json.Unmarshal(b, &t); err != nil {
		return model.Tenant{}, false, fmt.Errorf("decode cached tenant %s: %w", id, err)
	}
	return t, true, nil
}

func (c *RedisCache) Set(ctx context.Context, t model.Tenant) error {
	b, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, fmt.Sprintf(keyTenant, t.ID), b, c.ttl).Err()
}

func (c *RedisCache) Delete(ctx context.Context, id string) error {
	return c.rdb.Del(ctx, fmt.Sprintf(keyTenant, id)).Err()
}
