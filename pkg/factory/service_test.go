package factory

import (
	"testing"
	"time"

	"github.com/akeren/lasting-loves-waitlist/pkg/ratelimit"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
)

type redisBackedCache struct{ client *redis.Client }

func (c *redisBackedCache) GetClient() *redis.Client { return c.client }

func TestRateLimiterFactory_InMemoryWithoutCache(t *testing.T) {
	f := NewRateLimiterFactory(nil, "join:", nil)

	limiter := f.CreateRateLimiter(30, time.Minute)

	assert.False(t, f.Distributed())
	assert.IsType(t, &ratelimit.InMemoryRateLimiter{}, limiter)
}

func TestRateLimiterFactory_RedisWhenCacheExposesClient(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()

	f := NewRateLimiterFactory(&redisBackedCache{client: client}, "join:", nil)
	limiter := f.CreateRateLimiter(30, time.Minute)

	assert.True(t, f.Distributed())
	assert.IsType(t, &ratelimit.RedisRateLimiter{}, limiter)

	requests, window := limiter.Limits()
	assert.Equal(t, 30, requests)
	assert.Equal(t, time.Minute, window)
}
