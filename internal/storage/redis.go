package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/dreamware/runwaymesh/internal/traffic"
)

// DefaultRedisKey is where RedisStore keeps the summary when no key is given.
const DefaultRedisKey = "runwaymesh:summary:latest"

// RedisConfig configures a RedisStore.
type RedisConfig struct {
	Address  string        `mapstructure:"address" yaml:"address"`
	Password string        `mapstructure:"password" yaml:"password"`
	DB       int           `mapstructure:"db" yaml:"db"`
	Key      string        `mapstructure:"key" yaml:"key"`
	TTL      time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

// RedisStore implements SummaryStore on a Redis string key.
type RedisStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisStore connects to Redis and verifies the connection with PING.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Address, err)
	}
	return NewRedisStoreWithClient(client, cfg.Key, cfg.TTL), nil
}

// NewRedisStoreWithClient wraps an existing client. An empty key selects
// DefaultRedisKey; a zero ttl keeps the summary until overwritten.
func NewRedisStoreWithClient(client *redis.Client, key string, ttl time.Duration) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{client: client, key: key, ttl: ttl}
}

// Set stores s as JSON.
func (r *RedisStore) Set(ctx context.Context, s traffic.Summary) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	if err := r.client.Set(ctx, r.key, payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("store summary: %w", err)
	}
	return nil
}

// Get loads the summary. A missing key yields ErrNotReady.
func (r *RedisStore) Get(ctx context.Context) (traffic.Summary, error) {
	payload, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return traffic.Summary{}, ErrNotReady
	}
	if err != nil {
		return traffic.Summary{}, fmt.Errorf("load summary: %w", err)
	}

	var s traffic.Summary
	if err := json.Unmarshal(payload, &s); err != nil {
		return traffic.Summary{}, fmt.Errorf("decode summary: %w", err)
	}
	return s, nil
}

// Ping checks the connection.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
