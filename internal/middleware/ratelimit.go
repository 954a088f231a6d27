// Package middleware provides HTTP middleware for the capital engine API.
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/tradementor/capitalengine/internal/logging"
)

// RateLimitConfig controls request throttling for the API.
type RateLimitConfig struct {
	// Requests allowed per window.
	Requests int
	// Window duration.
	Window time.Duration
	// KeyFunc extracts the throttling key from the request.
	KeyFunc func(*gin.Context) string
	// SkipFunc bypasses rate limiting for matching requests.
	SkipFunc func(*gin.Context) bool
}

// DefaultRateLimitConfig allows 120 requests per minute per client IP and
// leaves health probes unthrottled.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Requests: 120,
		Window:   time.Minute,
		KeyFunc: func(c *gin.Context) string {
			return c.ClientIP()
		},
		SkipFunc: func(c *gin.Context) bool {
			path := c.Request.URL.Path
			return path == "/health" || path == "/live"
		},
	}
}

// RateLimiter throttles requests, counting in Redis when a client is
// available and in process memory otherwise. The in-memory fallback is
// per-instance; only the Redis path limits across replicas.
type RateLimiter struct {
	cfg   RateLimitConfig
	redis *redis.Client
	log   *logging.StandardLogger

	mu      sync.Mutex
	windows map[string]*window
}

type window struct {
	count   int
	resetAt time.Time
}

func NewRateLimiter(cfg RateLimitConfig, redisClient *redis.Client, log *logging.StandardLogger) *RateLimiter {
	return &RateLimiter{
		cfg:     cfg,
		redis:   redisClient,
		log:     log.WithComponent("rate_limiter"),
		windows: make(map[string]*window),
	}
}

// counterScript atomically increments the per-key counter and starts the
// window's expiry on first hit.
const counterScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
	redis.call("EXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("TTL", KEYS[1])
return {current, ttl}
`

// Middleware returns the gin handler enforcing the limit. Counter failures
// fail open: a broken limiter must not take the API down with it.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.cfg.SkipFunc != nil && rl.cfg.SkipFunc(c) {
			c.Next()
			return
		}

		key := rl.cfg.KeyFunc(c)

		count, resetAt, err := rl.hit(c.Request.Context(), key)
		if err != nil {
			rl.log.WithError(err).Warn("rate limit counter failed, allowing request")
			c.Next()
			return
		}

		remaining := rl.cfg.Requests - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.cfg.Requests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

		if count > rl.cfg.Requests {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"status":      "error",
				"error":       "rate limit exceeded",
				"retry_after": resetAt.Unix() - time.Now().Unix(),
			})
			return
		}

		c.Next()
	}
}

func (rl *RateLimiter) hit(ctx context.Context, key string) (int, time.Time, error) {
	if rl.redis != nil {
		return rl.hitRedis(ctx, key)
	}
	return rl.hitLocal(key)
}

func (rl *RateLimiter) hitRedis(ctx context.Context, key string) (int, time.Time, error) {
	windowSeconds := int(rl.cfg.Window.Seconds())

	result, err := rl.redis.Eval(ctx, counterScript, []string{"ratelimit:" + key}, windowSeconds).Int64Slice()
	if err != nil {
		return 0, time.Time{}, err
	}
	if len(result) != 2 {
		return 0, time.Time{}, fmt.Errorf("unexpected counter script result length %d", len(result))
	}

	count := int(result[0])
	resetAt := time.Now().Add(time.Duration(result[1]) * time.Second)
	return count, resetAt, nil
}

func (rl *RateLimiter) hitLocal(key string) (int, time.Time, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()

	if len(rl.windows) > 1000 {
		for k, w := range rl.windows {
			if now.After(w.resetAt) {
				delete(rl.windows, k)
			}
		}
	}

	w, ok := rl.windows[key]
	if !ok || now.After(w.resetAt) {
		w = &window{resetAt: now.Add(rl.cfg.Window)}
		rl.windows[key] = w
	}
	w.count++

	return w.count, w.resetAt, nil
}
