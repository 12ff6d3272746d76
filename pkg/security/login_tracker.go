package security

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var ErrTrackerUnavailable = errors.New("login tracker: redis not available")

type LoginTrackerConfig struct {
	MaxAttempts   int           // failed attempts before a block
	AttemptWindow time.Duration // window the failures are counted in
	BlockDuration time.Duration
	UseIPTracking bool
}

func DefaultLoginTrackerConfig() LoginTrackerConfig {
	return LoginTrackerConfig{
		MaxAttempts:   5,
		AttemptWindow: 15 * time.Minute,
		BlockDuration: 15 * time.Minute,
		UseIPTracking: true,
	}
}

// LoginTracker counts failed logins per email (and IP) in Redis and blocks
// the subject once MaxAttempts is reached. A nil client disables tracking.
type LoginTracker struct {
	client *goredis.Client
	config LoginTrackerConfig
	logger *SecurityLogger
}

func NewLoginTracker(client *goredis.Client, config LoginTrackerConfig, logger *SecurityLogger) *LoginTracker {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultLoginTrackerConfig().MaxAttempts
	}
	if logger == nil {
		logger = DefaultLogger()
	}
	return &LoginTracker{client: client, config: config, logger: logger}
}

const (
	failLoginUserPrefix    = "agribid:fail:login:user:"
	failLoginIPPrefix      = "agribid:fail:login:ip:"
	blockedLoginUserPrefix = "agribid:blocked:login:user:"
	blockedLoginIPPrefix   = "agribid:blocked:login:ip:"
)

// KEYS[1] = counter key, ARGV[1] = TTL seconds. Returns the new count.
const incrWithTTLScript = `
local count = redis.call('INCR', KEYS[1])
if count == 1 then
    redis.call('EXPIRE', KEYS[1], ARGV[1])
end
return count
`

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsBlocked fails open when Redis is not configured.
func (lt *LoginTracker) IsBlocked(ctx context.Context, email, ip string) (bool, error) {
	if lt.client == nil {
		return false, nil
	}

	exists, err := lt.client.Exists(ctx, blockedLoginUserPrefix+normalizeEmail(email)).Result()
	if err != nil {
		return false, fmt.Errorf("check user block: %w", err)
	}
	if exists > 0 {
		return true, nil
	}

	if lt.config.UseIPTracking && ip != "" {
		exists, err := lt.client.Exists(ctx, blockedLoginIPPrefix+ip).Result()
		if err != nil {
			return false, fmt.Errorf("check IP block: %w", err)
		}
		if exists > 0 {
			return true, nil
		}
	}
	return false, nil
}

// RecordFailedAttempt returns whether the subject is now blocked and the
// current failure count.
func (lt *LoginTracker) RecordFailedAttempt(ctx context.Context, email, ip, userAgent, requestID, reason string) (bool, int, error) {
	lt.logger.LogLoginFailed(ctx, email, ip, userAgent, requestID, reason)
	if lt.client == nil {
		return false, 0, ErrTrackerUnavailable
	}

	email = normalizeEmail(email)
	ttlSeconds := int(lt.config.AttemptWindow.Seconds())

	count, err := lt.increment(ctx, failLoginUserPrefix+email, ttlSeconds)
	if err != nil {
		return false, 0, fmt.Errorf("increment user counter: %w", err)
	}
	if lt.config.UseIPTracking && ip != "" {
		_, _ = lt.increment(ctx, failLoginIPPrefix+ip, ttlSeconds)
	}

	if count < lt.config.MaxAttempts {
		return false, count, nil
	}
	if err := lt.createBlock(ctx, email, ip, requestID); err != nil {
		return true, count, fmt.Errorf("create block: %w", err)
	}
	return true, count, nil
}

func (lt *LoginTracker) increment(ctx context.Context, key string, ttlSeconds int) (int, error) {
	result, err := lt.client.Eval(ctx, incrWithTTLScript, []string{key}, ttlSeconds).Result()
	if err != nil {
		return 0, err
	}
	count, ok := result.(int64)
	if !ok {
		return 0, errors.New("unexpected result type from Lua script")
	}
	return int(count), nil
}

func (lt *LoginTracker) createBlock(ctx context.Context, email, ip, requestID string) error {
	if err := lt.client.Set(ctx, blockedLoginUserPrefix+email, "1", lt.config.BlockDuration).Err(); err != nil {
		return fmt.Errorf("set user block: %w", err)
	}
	if lt.config.UseIPTracking && ip != "" {
		if err := lt.client.Set(ctx, blockedLoginIPPrefix+ip, "1", lt.config.BlockDuration).Err(); err != nil {
			lt.logger.zapLogger.Warn("failed to set IP block", zap.Error(err))
		}
	}
	lt.logger.LogBlockCreated(ctx, "email", email, ip, requestID, int(lt.config.BlockDuration.Minutes()))
	return nil
}

// ClearAttempts resets the counters after a successful login.
func (lt *LoginTracker) ClearAttempts(ctx context.Context, email, ip string) error {
	if lt.client == nil {
		return nil
	}
	if err := lt.client.Del(ctx, failLoginUserPrefix+normalizeEmail(email)).Err(); err != nil {
		return fmt.Errorf("clear user attempts: %w", err)
	}
	if lt.config.UseIPTracking && ip != "" {
		_ = lt.client.Del(ctx, failLoginIPPrefix+ip).Err()
	}
	return nil
}

// GetBlockTTL returns how long until the block on email expires.
func (lt *LoginTracker) GetBlockTTL(ctx context.Context, email string) (time.Duration, bool, error) {
	if lt.client == nil {
		return 0, false, nil
	}
	ttl, err := lt.client.TTL(ctx, blockedLoginUserPrefix+normalizeEmail(email)).Result()
	if err != nil {
		return 0, false, fmt.Errorf("get block TTL: %w", err)
	}
	if ttl < 0 {
		return 0, false, nil
	}
	return ttl, true, nil
}
