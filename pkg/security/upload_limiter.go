package security

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// UploadLimiter caps listing image uploads per IP per minute and per seller
// per day using a Redis sliding window.
type UploadLimiter struct {
	client       *goredis.Client
	maxPerMinute int
	maxPerDay    int
}

// KEYS[1] = window key, ARGV = limit, window seconds, now (unix).
// Returns 1 when allowed, 0 when the window is full.
const uploadRateLimitScript = `
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, 0, now - window)
if redis.call('ZCARD', key) >= limit then
    return 0
end
redis.call('ZADD', key, now, now .. '-' .. math.random(1000000))
redis.call('EXPIRE', key, window)
return 1
`

// NewUploadLimiter defaults to 10 uploads/min per IP and 50/day per seller.
// A nil client allows every upload.
func NewUploadLimiter(client *goredis.Client, perMin, perDay int) *UploadLimiter {
	if perMin <= 0 {
		perMin = 10
	}
	if perDay <= 0 {
		perDay = 50
	}
	return &UploadLimiter{client: client, maxPerMinute: perMin, maxPerDay: perDay}
}

// AllowUpload returns whether the upload may proceed and, when it may not,
// the number of seconds to wait. Redis errors deny the upload.
func (ul *UploadLimiter) AllowUpload(ctx context.Context, ip, userID string) (bool, int, error) {
	if ul.client == nil {
		return true, 0, nil
	}
	now := time.Now().Unix()

	allowed, err := ul.checkLimit(ctx, "agribid:ratelimit:upload:ip:"+ip, ul.maxPerMinute, 60, now)
	if err != nil {
		return false, 60, fmt.Errorf("upload limit check: %w", err)
	}
	if !allowed {
		return false, 60, nil
	}

	if userID != "" {
		allowed, err = ul.checkLimit(ctx, "agribid:ratelimit:upload:user:"+userID, ul.maxPerDay, 86400, now)
		if err != nil {
			return false, 3600, fmt.Errorf("upload limit check: %w", err)
		}
		if !allowed {
			return false, 3600, nil
		}
	}
	return true, 0, nil
}

func (ul *UploadLimiter) checkLimit(ctx context.Context, key string, limit, window int, now int64) (bool, error) {
	result, err := ul.client.Eval(ctx, uploadRateLimitScript, []string{key}, limit, window, now).Result()
	if err != nil {
		return false, err
	}
	allowed, ok := result.(int64)
	if !ok {
		return false, fmt.Errorf("unexpected result type from rate limit script")
	}
	return allowed == 1, nil
}
