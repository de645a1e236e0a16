package mpesa

import (
	"context"
	"errors"
	"sync"
	"time"

	"geranium/pkg/logger"

	"github.com/redis/go-redis/v9"
)

const tokenCacheKey = "mpesa:access_token"

// TokenCache stores the Daraja OAuth token between requests.
type TokenCache interface {
	Get(ctx context.Context) (string, bool)
	Set(ctx context.Context, token string, ttl time.Duration)
}

type memoryTokenCache struct {
	mu      sync.Mutex
	token   string
	expires time.Time
	now     func() time.Time
}

func NewMemoryTokenCache() TokenCache {
	return &memoryTokenCache{now: time.Now}
}

func (c *memoryTokenCache) Get(context.Context) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == "" || !c.now().Before(c.expires) {
		return "", false
	}
	return c.token, true
}

func (c *memoryTokenCache) Set(_ context.Context, token string, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
	c.expires = c.now().Add(ttl)
}

type redisTokenCache struct {
	rdb redis.Cmdable
	log *logger.Logger
}

// NewRedisTokenCache shares one token across server instances.
func NewRedisTokenCache(rdb redis.Cmdable, log *logger.Logger) TokenCache {
	return &redisTokenCache{rdb: rdb, log: log}
}

func (c *redisTokenCache) Get(ctx context.Context) (string, bool) {
	token, err := c.rdb.Get(ctx, tokenCacheKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("M-Pesa token cache read failed", "error", err)
		}
		return "", false
	}
	return token, token != ""
}

func (c *redisTokenCache) Set(ctx context.Context, token string, ttl time.Duration) {
	if err := c.rdb.Set(ctx, tokenCacheKey, token, ttl).Err(); err != nil {
		c.log.Warn("M-Pesa token cache write failed", "error", err)
	}
}
