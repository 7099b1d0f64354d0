package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	limiterRedis "github.com/ulule/limiter/v3/drivers/store/redis"
)

func rateLimitMiddleware(store limiter.Store, perMinute int) gin.HandlerFunc {
	instance := limiter.New(store, limiter.Rate{
		Period: time.Minute,
		Limit:  int64(perMinute),
	})
	return mgin.NewMiddleware(instance, mgin.WithLimitReachedHandler(func(c *gin.Context) {
		c.JSON(http.StatusTooManyRequests, gin.H{
			"success": false,
			"error":   "RATE_LIMITED",
			"message": "Too many requests. Please try again later.",
		})
		c.Abort()
	}))
}

// NewMemoryRateLimiter limits requests per client IP using in-process state.
// Suitable for a single instance only; counters are not shared across pods.
func NewMemoryRateLimiter(perMinute int) (gin.HandlerFunc, error) {
	return rateLimitMiddleware(memory.NewStore(), perMinute), nil
}

// NewRedisRateLimiter limits requests per client IP with counters in Redis,
// so the limit holds across instances.
func NewRedisRateLimiter(perMinute int, addr, password string, db int) (gin.HandlerFunc, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}

	store, err := limiterRedis.NewStoreWithOptions(client, limiter.StoreOptions{
		Prefix:          "ratelimit",
		CleanUpInterval: 5 * time.Minute,
	})
	if err != nil {
		return nil, fmt.Errorf("creating redis rate limit store: %w", err)
	}
	return rateLimitMiddleware(store, perMinute), nil
}
