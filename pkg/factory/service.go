package factory

import (
	"time"

	"github.com/akeren/lasting-loves-waitlist/pkg/ratelimit"
	"github.com/go-redis/redis/v8"
)

// RedisClientProvider is implemented by caches that expose their Redis client.
type RedisClientProvider interface {
	GetClient() *redis.Client
}

// RateLimiterFactory builds per-route limiters that share the application's
// limiter backend.
type RateLimiterFactory interface {
	CreateRateLimiter(requests int, window time.Duration) ratelimit.RateLimiter
}

type DefaultRateLimiterFactory struct {
	redis     *redis.Client
	keyPrefix string
	logger    ratelimit.Logger
}

// NewRateLimiterFactory uses Redis when cache exposes a client and falls back to
// in-memory buckets otherwise. keyPrefix keeps per-route windows apart in Redis.
func NewRateLimiterFactory(cache any, keyPrefix string, logger ratelimit.Logger) *DefaultRateLimiterFactory {
	f := &DefaultRateLimiterFactory{keyPrefix: keyPrefix, logger: logger}

	if provider, ok := cache.(RedisClientProvider); ok && provider != nil {
		f.redis = provider.GetClient()
	}

	return f
}

func (f *DefaultRateLimiterFactory) CreateRateLimiter(requests int, window time.Duration) ratelimit.RateLimiter {
	return ratelimit.New(&ratelimit.Config{
		Requests:  requests,
		Window:    window,
		Redis:     f.redis,
		KeyPrefix: f.keyPrefix,
		Logger:    f.logger,
	})
}

// Distributed reports whether limiters built here are shared across instances.
func (f *DefaultRateLimiterFactory) Distributed() bool {
	return f.redis != nil
}
