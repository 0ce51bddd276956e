// Package mirror is the Local Mirror: a small durable string map that keeps the last
// known catalog, user directory and session across restarts and store outages.
package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"researchhub/config"
)

// Well-known keys.
const (
	KeyPapers       = "researchPapers"
	KeyUsers        = "users"
	KeyCurrentUser  = "currentUser"
	KeyFactoryReset = "factoryReset"
)

// ErrKeyNotFound is returned by Get for a missing key.
var ErrKeyNotFound = errors.New("mirror key not found")

// Mirror is a durable string-to-string map.
type Mirror interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	// Clear removes every key.
	Clear(ctx context.Context) error
	Close() error
}

// Open builds the mirror selected by cfg.MirrorBackend.
func Open(ctx context.Context, cfg *config.Config) (Mirror, error) {
	switch cfg.MirrorBackend {
	case "redis":
		return NewRedisMirror(ctx, RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		})
	case "file", "":
		return NewFileMirror(cfg.MirrorFilePath, cfg.SaveInterval, cfg.EnableBackup)
	default:
		return nil, fmt.Errorf("unknown mirror backend '%s'", cfg.MirrorBackend)
	}
}

// GetJSON decodes the value at key into v. It returns false when the key is absent.
func GetJSON(ctx context.Context, m Mirror, key string, v any) (bool, error) {
	raw, err := m.Get(ctx, key)
	if errors.Is(err, ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, fmt.Errorf("decode mirror key %s: %w", key, err)
	}
	return true, nil
}

// SetJSON encodes v and stores it at key.
func SetJSON(ctx context.Context, m Mirror, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode mirror key %s: %w", key, err)
	}
	return m.Set(ctx, key, string(data))
}

// RequestFactoryReset flags the mirror to be wiped on the next startup.
func RequestFactoryReset(ctx context.Context, m Mirror) error {
	return m.Set(ctx, KeyFactoryReset, "true")
}

// ConsumeFactoryReset wipes the mirror if a reset was requested and reports whether it did.
// The flag itself is removed along with everything else.
func ConsumeFactoryReset(ctx context.Context, m Mirror) (bool, error) {
	flag, err := m.Get(ctx, KeyFactoryReset)
	if errors.Is(err, ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if flag != "true" {
		return false, nil
	}

	log.Warn().Msg("factory reset requested, clearing local mirror")
	if err := m.Clear(ctx); err != nil {
		return false, fmt.Errorf("factory reset: %w", err)
	}
	return true, nil
}
