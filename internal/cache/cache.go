// internal/cache/cache.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ===============================
// CACHE INTERFACE
// ===============================

// Cache defines the caching interface. Values round-trip through JSON so
// both providers behave identically.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeletePattern(ctx context.Context, pattern string) error
	Health(ctx context.Context) error
	Close() error
}

// Config holds cache configuration
type Config struct {
	Provider        string        // "memory", "redis"
	TTL             time.Duration // default TTL
	MaxKeys         int           // memory provider key cap
	CleanupInterval time.Duration // memory provider sweep interval

	RedisURL      string
	RedisDB       int
	RedisPassword string
	PoolSize      int
}

// DefaultConfig returns a default cache configuration
func DefaultConfig() *Config {
	return &Config{
		Provider:        "memory",
		TTL:             15 * time.Minute,
		MaxKeys:         10000,
		CleanupInterval: 5 * time.Minute,
		PoolSize:        10,
	}
}

// New builds the configured cache provider.
func New(cfg *Config, logger *zap.Logger) (Cache, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	switch cfg.Provider {
	case "redis":
		return NewRedisCache(cfg, logger)
	case "", "memory":
		return NewMemoryCache(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unsupported cache provider %q", cfg.Provider)
	}
}

// ===============================
// MEMORY CACHE IMPLEMENTATION
// ===============================

// memoryCache implements Cache using in-memory storage
type memoryCache struct {
	mu              sync.RWMutex
	items           map[string]*cacheItem
	maxKeys         int
	cleanupInterval time.Duration
	logger          *zap.Logger
	stopCh          chan struct{}
	stopOnce        sync.Once
}

// cacheItem represents a cached item
type cacheItem struct {
	Data       []byte
	ExpiresAt  time.Time
	AccessedAt time.Time
}

// NewMemoryCache creates a new in-memory cache
func NewMemoryCache(cfg *Config, logger *zap.Logger) Cache {
	defaults := DefaultConfig()
	if cfg.MaxKeys <= 0 {
		cfg.MaxKeys = defaults.MaxKeys
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = defaults.CleanupInterval
	}

	c := &memoryCache{
		items:           make(map[string]*cacheItem),
		maxKeys:         cfg.MaxKeys,
		cleanupInterval: cfg.CleanupInterval,
		logger:          logger,
		stopCh:          make(chan struct{}),
	}

	go c.cleanup()

	return c
}

// Get retrieves a value from the cache into dest.
func (c *memoryCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	c.mu.Lock()
	item, exists := c.items[key]
	if exists && time.Now().After(item.ExpiresAt) {
		delete(c.items, key)
		exists = false
	}
	var data []byte
	if exists {
		item.AccessedAt = time.Now()
		data = item.Data
	}
	c.mu.Unlock()

	if !exists {
		return false, nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("cache unmarshal for key %q: %w", key, err)
	}
	return true, nil
}

// Set stores a value in the cache
func (c *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal for key %q: %w", key, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.items) >= c.maxKeys {
		c.evictLRU()
	}

	now := time.Now()
	c.items[key] = &cacheItem{
		Data:       data,
		ExpiresAt:  now.Add(ttl),
		AccessedAt: now,
	}
	return nil
}

// Delete removes a value from the cache
func (c *memoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
	return nil
}

// DeletePattern removes all keys matching a glob-style prefix pattern
// ("feeds:*" deletes every key starting with "feeds:").
func (c *memoryCache) DeletePattern(ctx context.Context, pattern string) error {
	prefix := pattern
	if n := len(pattern); n > 0 && pattern[n-1] == '*' {
		prefix = pattern[:n-1]
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.items {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(c.items, key)
		}
	}
	return nil
}

// Health always succeeds for the in-memory provider.
func (c *memoryCache) Health(ctx context.Context) error {
	return nil
}

// Close stops the cleanup goroutine.
func (c *memoryCache) Close() error {
	c.stopOnce.Do(func() { close(c.stopCh) })
	return nil
}

// evictLRU drops the least recently accessed item. Caller holds the lock.
func (c *memoryCache) evictLRU() {
	var oldestKey string
	var oldestAccess time.Time
	for key, item := range c.items {
		if oldestKey == "" || item.AccessedAt.Before(oldestAccess) {
			oldestKey = key
			oldestAccess = item.AccessedAt
		}
	}
	if oldestKey != "" {
		delete(c.items, oldestKey)
	}
}

// cleanup periodically sweeps expired items.
func (c *memoryCache) cleanup() {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			for key, item := range c.items {
				if now.After(item.ExpiresAt) {
					delete(c.items, key)
				}
			}
			c.mu.Unlock()
		case <-c.stopCh:
			return
		}
	}
}

// ===============================
// REDIS CACHE IMPLEMENTATION
// ===============================

// redisCache implements Cache backed by Redis
type redisCache struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisCache creates a Redis-backed cache and verifies connectivity.
func NewRedisCache(cfg *Config, logger *zap.Logger) (Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis cache connected", zap.String("addr", cfg.RedisURL), zap.Int("db", cfg.RedisDB))

	return &redisCache{client: client, logger: logger}, nil
}

// Get retrieves a value from Redis into dest.
func (c *redisCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get %q: %w", key, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("cache unmarshal for key %q: %w", key, err)
	}
	return true, nil
}

// Set stores a value in Redis.
func (c *redisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal for key %q: %w", key, err)
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

// Delete removes a key from Redis.
func (c *redisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete %q: %w", key, err)
	}
	return nil
}

// DeletePattern removes all keys matching a glob pattern using SCAN to
// avoid blocking the server on large keyspaces.
func (c *redisCache) DeletePattern(ctx context.Context, pattern string) error {
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) >= 500 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis delete pattern %q: %w", pattern, err)
			}
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan %q: %w", pattern, err)
	}
	if len(keys) > 0 {
		if err := c.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("redis delete pattern %q: %w", pattern, err)
		}
	}
	return nil
}

// Health pings Redis.
func (c *redisCache) Health(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (c *redisCache) Close() error {
	return c.client.Close()
}
