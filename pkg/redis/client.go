// Package redis owns the process-wide Upstash/Redis client used for rate
// limiting, login tracking and CLI session storage.
package redis

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrNotConfigured = errors.New("redis: UPSTASH_REDIS_URL not configured")

var (
	client     *redis.Client
	clientOnce sync.Once
	clientErr  error
)

type Config struct {
	URL      string // redis://host:port or rediss://host:port for TLS
	Password string // overrides the password in URL when set
}

// Client returns the shared client, or nil when Initialize failed or was not called.
func Client() *redis.Client {
	return client
}

// Initialize connects once. Later calls return the first call's result.
func Initialize(cfg Config) error {
	clientOnce.Do(func() {
		opts, err := Options(cfg)
		if err != nil {
			clientErr = err
			return
		}

		c := redis.NewClient(opts)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.Ping(ctx).Err(); err != nil {
			_ = c.Close()
			clientErr = fmt.Errorf("redis: connection failed: %w", err)
			return
		}
		client = c
	})
	return clientErr
}

// Options builds client options from cfg. A rediss:// URL enables TLS.
func Options(cfg Config) (*redis.Options, error) {
	if cfg.URL == "" {
		return nil, ErrNotConfigured
	}
	parsed, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis: invalid URL: %w", err)
	}
	if parsed.Scheme != "redis" && parsed.Scheme != "rediss" {
		return nil, fmt.Errorf("redis: unsupported scheme %q", parsed.Scheme)
	}

	addr := parsed.Host
	if parsed.Port() == "" {
		addr = parsed.Hostname() + ":6379"
	}

	password := cfg.Password
	if password == "" && parsed.User != nil {
		password, _ = parsed.User.Password()
	}
	username := ""
	if parsed.User != nil {
		username = parsed.User.Username()
	}

	opts := &redis.Options{
		Addr:         addr,
		Username:     username,
		Password:     password,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	}
	if parsed.Scheme == "rediss" {
		opts.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
			ServerName: parsed.Hostname(),
		}
	}
	return opts, nil
}

// Ping implements the health check contract.
type Ping struct{}

func (Ping) Ping(ctx context.Context) error {
	return HealthCheck(ctx)
}

func HealthCheck(ctx context.Context) error {
	if client == nil {
		return errors.New("redis: client not initialized")
	}
	return client.Ping(ctx).Err()
}

func Close() error {
	if client != nil {
		return client.Close()
	}
	return nil
}
