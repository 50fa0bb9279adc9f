package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned when a key is absent.
var ErrMiss = errors.New("cache: miss")

// FigureCache stores derived figures as JSON. A nil client disables it.
type FigureCache struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to the Redis instance at url. An empty url yields a disabled cache.
func New(ctx context.Context, url string, ttl time.Duration) (*FigureCache, error) {
	if url == "" {
		return &FigureCache{}, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewWithClient(client, ttl), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, ttl time.Duration) *FigureCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &FigureCache{client: client, ttl: ttl}
}

// Enabled reports whether a backend is configured.
func (c *FigureCache) Enabled() bool {
	return c != nil && c.client != nil
}

// Get decodes the value at key into dest.
func (c *FigureCache) Get(ctx context.Context, key string, dest any) error {
	if !c.Enabled() {
		return ErrMiss
	}
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(val, dest)
}

// Set stores value at key for the configured ttl.
func (c *FigureCache) Set(ctx context.Context, key string, value any) error {
	if !c.Enabled() {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

// Close releases the client.
func (c *FigureCache) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Close()
}
