package sessionstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"agribid-backend/internal/domain"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "agribid:session:"

type redisStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisStore keeps the session under agribid:session:<name>. The key expires
// ttl after the last save; ttl <= 0 means no expiry.
func NewRedisStore(client *redis.Client, name string, ttl time.Duration) domain.SessionStore {
	return &redisStore{client: client, key: keyPrefix + name, ttl: ttl}
}

func (s *redisStore) Load(ctx context.Context) (*domain.Session, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get session: %w", err)
	}
	var session domain.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &session, nil
}

func (s *redisStore) Save(ctx context.Context, session *domain.Session) error {
	if session == nil {
		return s.Clear(ctx)
	}
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	ttl := s.ttl
	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, s.key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}
	return nil
}

func (s *redisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("redis del session: %w", err)
	}
	return nil
}
