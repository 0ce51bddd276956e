package objstore

import (
	"context"
	"fmt"

	"researchhub/config"
	"researchhub/models"
)

// Buckets groups the three logical buckets the application uses.
type Buckets struct {
	Documents   Bucket
	Credentials Bucket
	Stats       Bucket
}

// Open builds the buckets for the configured store backend. Every bucket is instrumented.
// The "none" backend returns models.ErrStoreUnavailable so callers run against the mirror alone.
func Open(ctx context.Context, cfg *config.Config) (*Buckets, error) {
	var mk func(name string) (Bucket, error)

	switch cfg.StoreBackend {
	case "none", "":
		return nil, models.ErrStoreUnavailable
	case "memory":
		mk = func(name string) (Bucket, error) { return NewMemoryBucket(name), nil }
	case "fs":
		mk = func(name string) (Bucket, error) { return NewFSBucket(cfg.StoreDataDir, name) }
	case "s3":
		client, err := NewS3Client(ctx, S3Options{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			PathStyle: cfg.S3PathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
		}
		mk = func(name string) (Bucket, error) { return NewS3Bucket(client, name), nil }
	default:
		return nil, fmt.Errorf("unknown store backend '%s'", cfg.StoreBackend)
	}

	metrics := InitStoreMetrics(nil)
	open := func(name string) (Bucket, error) {
		b, err := mk(name)
		if err != nil {
			return nil, fmt.Errorf("open bucket %s: %w", name, err)
		}
		return Instrument(b, metrics), nil
	}

	docs, err := open(cfg.DocumentsBucket)
	if err != nil {
		return nil, err
	}
	creds, err := open(cfg.CredentialsBucket)
	if err != nil {
		return nil, err
	}
	stats, err := open(cfg.StatsBucket)
	if err != nil {
		return nil, err
	}
	return &Buckets{Documents: docs, Credentials: creds, Stats: stats}, nil
}
