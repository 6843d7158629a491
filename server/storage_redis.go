package server

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	config "github.com/inference-gateway/menu-agents/server/config"
	redis "github.com/redis/go-redis/v9"
	zap "go.uber.org/zap"
)

// RedisRepositoryFactory implements RepositoryFactory for Redis
type RedisRepositoryFactory struct{}

// SupportedProvider returns the provider name
func (f *RedisRepositoryFactory) SupportedProvider() string {
	return "redis"
}

// ValidateConfig validates the configuration for Redis
func (f *RedisRepositoryFactory) ValidateConfig(config config.StorageConfig) error {
	if config.URL == "" {
		return fmt.Errorf("URL is required for Redis repository provider")
	}
	return nil
}

// CreateRepository connects to Redis and returns a repository over it
func (f *RedisRepositoryFactory) CreateRepository(ctx context.Context, config config.StorageConfig, logger *zap.Logger) (Repository, error) {
	opt, err := redis.ParseURL(config.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}

	if dbStr, exists := config.Options["db"]; exists {
		if db, err := strconv.Atoi(dbStr); err == nil {
			opt.DB = db
		}
	}

	if maxRetriesStr, exists := config.Options["max_retries"]; exists {
		if maxRetries, err := strconv.Atoi(maxRetriesStr); err == nil {
			opt.MaxRetries = maxRetries
		}
	}

	if timeoutStr, exists := config.Options["timeout"]; exists {
		if timeout, err := time.ParseDuration(timeoutStr); err == nil {
			opt.DialTimeout = timeout
			opt.ReadTimeout = timeout
			opt.WriteTimeout = timeout
		}
	}

	if username, exists := config.Credentials["username"]; exists {
		opt.Username = username
	}
	if password, exists := config.Credentials["password"]; exists {
		opt.Password = password
	}

	client := redis.NewClient(opt)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("connected to Redis",
		zap.String("addr", opt.Addr),
		zap.Int("db", opt.DB))

	return NewRedisRepository(client, config.KeyPrefix, logger), nil
}

// RedisRepository implements Repository with plain Redis string keys
type RedisRepository struct {
	client    *redis.Client
	keyPrefix string
	logger    *zap.Logger
}

var _ Repository = (*RedisRepository)(nil)

// scanBatchSize is the COUNT hint passed to SCAN
const scanBatchSize = 100

// NewRedisRepository wraps an existing client; every key is stored under keyPrefix
func NewRedisRepository(client *redis.Client, keyPrefix string, logger *zap.Logger) *RedisRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisRepository{
		client:    client,
		keyPrefix: keyPrefix,
		logger:    logger,
	}
}

// Get returns the value stored under key
func (r *RedisRepository) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := r.client.Get(ctx, r.keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	return value, nil
}

// Set stores value under key without expiry
func (r *RedisRepository) Set(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, r.keyPrefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	r.logger.Debug("repository key stored", zap.String("key", key), zap.Int("size", len(value)))
	return nil
}

// List scans the keyspace under prefix and fetches the matching values
func (r *RedisRepository) List(ctx context.Context, prefix string) ([]Entry, error) {
	pattern := escapeRedisPattern(r.keyPrefix+prefix) + "*"

	var keys []string
	iter := r.client.Scan(ctx, 0, pattern, scanBatchSize).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan keys with prefix %s: %w", prefix, err)
	}

	entries := make([]Entry, 0, len(keys))
	if len(keys) == 0 {
		return entries, nil
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch keys with prefix %s: %w", prefix, err)
	}

	for i, raw := range values {
		value, ok := raw.(string)
		if !ok {
			// deleted between SCAN and MGET
			continue
		}
		entries = append(entries, Entry{
			Key:   strings.TrimPrefix(keys[i], r.keyPrefix),
			Value: []byte(value),
		})
	}

	sortEntries(entries)
	return entries, nil
}

// Delete removes key
func (r *RedisRepository) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

// Close closes the Redis client
func (r *RedisRepository) Close() error {
	return r.client.Close()
}

// escapeRedisPattern escapes glob metacharacters so a prefix matches literally
func escapeRedisPattern(s string) string {
	var b strings.Builder
	for _, ch := range s {
		switch ch {
		case '*', '?', '[', ']', '\\':
			b.WriteRune('\\')
		}
		b.WriteRune(ch)
	}
	return b.String()
}
