package mirror

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisOptions configures a RedisMirror.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string // Prepended to every key
}

// RedisMirror stores the map as plain string keys in Redis, so several server
// instances can share one mirror.
type RedisMirror struct {
	client *redis.Client
	prefix string
}

// NewRedisMirror connects and pings the server.
func NewRedisMirror(ctx context.Context, opts RedisOptions) (*RedisMirror, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	log.Info().Str("addr", opts.Addr).Int("db", opts.DB).Msg("connected redis mirror")
	return &RedisMirror{client: client, prefix: opts.Prefix}, nil
}

func (m *RedisMirror) key(k string) string { return m.prefix + k }

// Get returns the value stored at key.
func (m *RedisMirror) Get(ctx context.Context, key string) (string, error) {
	v, err := m.client.Get(ctx, m.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrKeyNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, nil
}

// Set stores value at key without expiry.
func (m *RedisMirror) Set(ctx context.Context, key, value string) error {
	if err := m.client.Set(ctx, m.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (m *RedisMirror) Delete(ctx context.Context, key string) error {
	if err := m.client.Del(ctx, m.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// Clear removes every key under the prefix.
func (m *RedisMirror) Clear(ctx context.Context) error {
	iter := m.client.Scan(ctx, 0, m.prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := m.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis clear: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (m *RedisMirror) Close() error {
	return m.client.Close()
}
