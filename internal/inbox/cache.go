package inbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"design-desk/request-portal/request-portal-backend/internal/identity"
)

// Cache holds computed inbox projections per (user, role).
type Cache interface {
	Get(ctx context.Context, userID uuid.UUID, role identity.Role) (*Inbox, bool)
	Set(ctx context.Context, userID uuid.UUID, role identity.Role, inbox *Inbox) error
	DeleteUser(ctx context.Context, userID uuid.UUID) error
}

// MemoryCache provides in-memory caching for inbox projections
type MemoryCache struct {
	data    map[string]*cacheEntry
	ttl     time.Duration
	mu      sync.RWMutex
	cleanup *time.Ticker
	done    chan struct{}
}

// cacheEntry represents a cache entry with expiration
type cacheEntry struct {
	value      *Inbox
	expiration time.Time
}

// NewMemoryCache creates a cache and starts its cleanup loop. Call Stop to
// release it.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	cache := &MemoryCache{
		data:    make(map[string]*cacheEntry),
		ttl:     ttl,
		cleanup: time.NewTicker(time.Minute),
		done:    make(chan struct{}),
	}

	go cache.cleanupLoop()

	return cache
}

func memoryKey(userID uuid.UUID, role identity.Role) string {
	return userID.String() + ":" + string(role)
}

func (c *MemoryCache) Get(ctx context.Context, userID uuid.UUID, role identity.Role) (*Inbox, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.data[memoryKey(userID, role)]
	if !ok || time.Now().After(entry.expiration) {
		return nil, false
	}
	return entry.value, true
}

func (c *MemoryCache) Set(ctx context.Context, userID uuid.UUID, role identity.Role, inbox *Inbox) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[memoryKey(userID, role)] = &cacheEntry{
		value:      inbox,
		expiration: time.Now().Add(c.ttl),
	}
	return nil
}

// DeleteUser removes every entry of userID.
func (c *MemoryCache) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	prefix := userID.String() + ":"
	for key := range c.data {
		if strings.HasPrefix(key, prefix) {
			delete(c.data, key)
		}
	}
	return nil
}

// Size returns the number of entries in the cache
func (c *MemoryCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.data)
}

func (c *MemoryCache) cleanupLoop() {
	for {
		select {
		case <-c.cleanup.C:
			c.removeExpired()
		case <-c.done:
			return
		}
	}
}

func (c *MemoryCache) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, entry := range c.data {
		if now.After(entry.expiration) {
			delete(c.data, key)
		}
	}
}

// Stop stops the cleanup goroutine
func (c *MemoryCache) Stop() {
	c.cleanup.Stop()
	close(c.done)
}

// RedisCache keeps one hash per user, one field per role.
type RedisCache struct {
	redis  *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{redis: client, prefix: "inbox:v1", ttl: ttl}
}

func (c *RedisCache) hashKey(userID uuid.UUID) string {
	return fmt.Sprintf("%s:{%s}", c.prefix, userID.String())
}

func (c *RedisCache) Get(ctx context.Context, userID uuid.UUID, role identity.Role) (*Inbox, bool) {
	result, err := c.redis.HGet(ctx, c.hashKey(userID), string(role)).Result()
	if err != nil {
		return nil, false
	}
	var inbox Inbox
	if err := json.Unmarshal([]byte(result), &inbox); err != nil {
		return nil, false
	}
	return &inbox, true
}

func (c *RedisCache) Set(ctx context.Context, userID uuid.UUID, role identity.Role, inbox *Inbox) error {
	payload, err := json.Marshal(inbox)
	if err != nil {
		return err
	}
	key := c.hashKey(userID)
	pipe := c.redis.TxPipeline()
	pipe.HSet(ctx, key, string(role), payload)
	pipe.Expire(ctx, key, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache inbox: %w", err)
	}
	return nil
}

func (c *RedisCache) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	if err := c.redis.Del(ctx, c.hashKey(userID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to drop cached inbox: %w", err)
	}
	return nil
}
