package cache

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/zatekoja/furniturefinder/internal/domain/providers"
	redisclient "github.com/zatekoja/furniturefinder/internal/infrastructure/clients/redis"
	apperrors "github.com/zatekoja/furniturefinder/pkg/errors"
)

// RedisKeyValueStore persists string values in Redis without expiry
type RedisKeyValueStore struct {
	client *redisclient.Client
}

// NewRedisKeyValueStore creates a Redis-backed key-value store
func NewRedisKeyValueStore(client *redisclient.Client) providers.KeyValueStore {
	return &RedisKeyValueStore{client: client}
}

// Get retrieves the value under key
func (s *RedisKeyValueStore) Get(ctx context.Context, key string) (string, error) {
	value, err := s.client.Client().Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", providers.ErrKeyNotFound
	}
	if err != nil {
		return "", apperrors.NewPersistenceError("failed to read key "+key, err)
	}
	return value, nil
}

// Set stores value under key
func (s *RedisKeyValueStore) Set(ctx context.Context, key string, value string) error {
	if err := s.client.Client().Set(ctx, key, value, 0).Err(); err != nil {
		return apperrors.NewPersistenceError("failed to write key "+key, err)
	}
	return nil
}

// Remove deletes key
func (s *RedisKeyValueStore) Remove(ctx context.Context, key string) error {
	if err := s.client.Client().Del(ctx, key).Err(); err != nil {
		return apperrors.NewPersistenceError("failed to remove key "+key, err)
	}
	return nil
}
