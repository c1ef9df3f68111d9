package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/robertarktes/event-admissions/internal/domain"
)

// Cache is a read-through cache of registrations keyed by code. Lifecycle
// writes invalidate; the store stays authoritative.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) Client() *redis.Client {
	return c.client
}

func (c *Cache) GetRegistration(ctx context.Context, code string) (*domain.Registration, error) {
	val, err := c.client.Get(ctx, "reg:"+code).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var reg domain.Registration
	if err := json.Unmarshal(val, &reg); err != nil {
		return nil, err
	}
	return &reg, nil
}

func (c *Cache) SetRegistration(ctx context.Context, reg *domain.Registration) error {
	data, err := json.Marshal(reg)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, "reg:"+reg.Code, data, c.ttl).Err()
}

func (c *Cache) InvalidateRegistration(ctx context.Context, code string) error {
	return c.client.Del(ctx, "reg:"+code).Err()
}
