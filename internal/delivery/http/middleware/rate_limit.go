package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"agribid-backend/internal/delivery/http/response"
	"agribid-backend/pkg/security"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// RateLimitConfig holds configuration for one rate-limited route group.
type RateLimitConfig struct {
	// Requests per window
	Limit  int
	Window time.Duration
	// Default: client IP
	KeyFunc   func(*gin.Context) string
	KeyPrefix string
	// Reject instead of falling back to memory when Redis errors.
	FailClosed bool
}

func clientIPKey(c *gin.Context) string {
	return c.ClientIP()
}

// GlobalRateLimitConfig applies to every API route.
func GlobalRateLimitConfig(limit int, window time.Duration) RateLimitConfig {
	return RateLimitConfig{
		Limit:     limit,
		Window:    window,
		KeyPrefix: "agribid:rl:ip:",
		KeyFunc:   clientIPKey,
	}
}

// AuthRateLimitConfig is the strict limit for login, registration and
// confirmation resends.
func AuthRateLimitConfig(limit int, window time.Duration) RateLimitConfig {
	return RateLimitConfig{
		Limit:      limit,
		Window:     window,
		KeyPrefix:  "agribid:rl:auth:",
		KeyFunc:    clientIPKey,
		FailClosed: true,
	}
}

// Lua script for atomic increment with TTL on first set
// KEYS[1] = counter key
// ARGV[1] = TTL in seconds
// Returns: [current_count, ttl_remaining]
const rateLimitLuaScript = `
local count = redis.call('INCR', KEYS[1])
if count == 1 then
    redis.call('EXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('TTL', KEYS[1])
return {count, ttl}
`

type localLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter counts requests in Redis when a client is configured and falls
// back to per-key token buckets in memory otherwise.
type RateLimiter struct {
	client *goredis.Client
	logger *security.SecurityLogger

	mu    sync.Mutex
	local map[string]*localLimiter

	cleanupInterval time.Duration
	stopCh          chan struct{}
	stopOnce        sync.Once
	wg              sync.WaitGroup
}

// NewRateLimiter starts the background cleanup of idle in-memory limiters.
// Call Stop on shutdown.
func NewRateLimiter(client *goredis.Client, logger *security.SecurityLogger) *RateLimiter {
	rl := &RateLimiter{
		client:          client,
		logger:          logger,
		local:           make(map[string]*localLimiter),
		cleanupInterval: 5 * time.Minute,
		stopCh:          make(chan struct{}),
	}
	rl.wg.Add(1)
	go rl.cleanupLoop()
	return rl
}

func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.stopCh)
	})
	rl.wg.Wait()
}

// Middleware enforces config on the routes it is attached to.
func (rl *RateLimiter) Middleware(config RateLimitConfig) gin.HandlerFunc {
	if config.KeyFunc == nil {
		config.KeyFunc = clientIPKey
	}
	if config.Limit <= 0 {
		config.Limit = 1
	}
	if config.Window <= 0 {
		config.Window = time.Minute
	}

	return func(c *gin.Context) {
		key := config.KeyPrefix + config.KeyFunc(c)

		allowed, remaining, resetAt, err := rl.allow(c.Request.Context(), key, config)
		if err != nil {
			if config.FailClosed {
				rl.logError(c, err)
				response.Error(c, http.StatusServiceUnavailable, "Service temporarily unavailable. Please try again.", nil)
				c.Abort()
				return
			}
			allowed, remaining, resetAt = rl.allowLocal(key, config)
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(config.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", resetAt.UTC().Format(time.RFC3339))

		if !allowed {
			retryAfter := int(math.Ceil(time.Until(resetAt).Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			rl.logger.LogRateLimitTriggered(c.Request.Context(), c.ClientIP(), c.GetHeader("User-Agent"), requestID(c), c.FullPath())
			response.Error(c, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.", nil)
			c.Abort()
			return
		}

		c.Next()
	}
}

func (rl *RateLimiter) allow(ctx context.Context, key string, config RateLimitConfig) (bool, int, time.Time, error) {
	if rl.client == nil {
		allowed, remaining, resetAt := rl.allowLocal(key, config)
		return allowed, remaining, resetAt, nil
	}

	result, err := rl.client.Eval(ctx, rateLimitLuaScript, []string{key}, int(config.Window.Seconds())).Result()
	if err != nil {
		return false, 0, time.Time{}, fmt.Errorf("redis rate limit eval failed: %w", err)
	}
	arr, ok := result.([]interface{})
	if !ok || len(arr) < 2 {
		return false, 0, time.Time{}, fmt.Errorf("unexpected redis result format")
	}
	count, _ := arr[0].(int64)
	ttl, _ := arr[1].(int64)

	remaining := config.Limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return int(count) <= config.Limit, remaining, time.Now().Add(time.Duration(ttl) * time.Second), nil
}

// allowLocal refills Limit tokens evenly over Window with a burst of Limit.
func (rl *RateLimiter) allowLocal(key string, config RateLimitConfig) (bool, int, time.Time) {
	now := time.Now()
	every := rate.Every(config.Window / time.Duration(config.Limit))

	rl.mu.Lock()
	entry, ok := rl.local[key]
	if !ok {
		entry = &localLimiter{limiter: rate.NewLimiter(every, config.Limit)}
		rl.local[key] = entry
	}
	entry.lastAccess = now
	rl.mu.Unlock()

	allowed := entry.limiter.AllowN(now, 1)
	tokens := entry.limiter.TokensAt(now)
	remaining := int(math.Max(0, math.Floor(tokens)))

	// Time until one token is available again.
	wait := time.Duration(0)
	if tokens < 1 {
		wait = time.Duration((1 - tokens) * float64(time.Second) / float64(every))
	}
	return allowed, remaining, now.Add(wait)
}

func (rl *RateLimiter) cleanupLoop() {
	defer rl.wg.Done()
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.cleanup(time.Now())
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup drops limiters idle for more than two cleanup intervals.
func (rl *RateLimiter) cleanup(now time.Time) {
	ttl := rl.cleanupInterval * 2
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, entry := range rl.local {
		if now.Sub(entry.lastAccess) > ttl {
			delete(rl.local, key)
		}
	}
}

func (rl *RateLimiter) localCount() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.local)
}

func (rl *RateLimiter) logError(c *gin.Context, err error) {
	rl.logger.Log(c.Request.Context(), security.SecurityEvent{
		Event:       security.EventRateLimitTriggered,
		SubjectType: "system",
		IP:          c.ClientIP(),
		RequestID:   requestID(c),
		Details: map[string]any{
			"error_type": "redis_error",
			"error":      err.Error(),
		},
	})
}
