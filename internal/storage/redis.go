package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgellow/line-relay/internal/log"
	"github.com/redis/go-redis/v9"
)

// redisClient is the subset of *redis.Client the store uses
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Close() error
}

var _ TokenStore = (*RedisTokenStore)(nil)

// RedisTokenStore keeps the relay token under a single Redis key
type RedisTokenStore struct {
	client redisClient
	key    string
}

// NewRedisTokenStore connects to addr. A failed ping is logged, not fatal,
// so the relay can still start while Redis comes up.
func NewRedisTokenStore(ctx context.Context, addr, password string, db int, key string) *RedisTokenStore {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.LogWarnWithFields("storage", "Failed to connect to Redis", map[string]any{
			"addr":  addr,
			"error": err.Error(),
		})
	}

	return &RedisTokenStore{client: rdb, key: key}
}

func (s *RedisTokenStore) GetAccessToken(ctx context.Context) (string, error) {
	token, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrTokenNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get token from Redis: %w", err)
	}
	if token == "" {
		return "", ErrTokenNotFound
	}
	return token, nil
}

func (s *RedisTokenStore) SetAccessToken(ctx context.Context, token string) error {
	// No expiry: LINE Notify tokens are valid until revoked
	if err := s.client.Set(ctx, s.key, token, 0).Err(); err != nil {
		return fmt.Errorf("failed to store token in Redis: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (s *RedisTokenStore) Close() error {
	return s.client.Close()
}
