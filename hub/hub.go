// Package hub wires the mirror, the buckets and the reconcilers into one application state.
package hub

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"researchhub/catalog"
	"researchhub/config"
	"researchhub/mirror"
	"researchhub/models"
	"researchhub/objstore"
	"researchhub/session"
	"researchhub/stats"
	"researchhub/users"
)

// Hub is the application state shared by every request.
type Hub struct {
	Config   *config.Config
	Mirror   mirror.Mirror
	Buckets  *objstore.Buckets // nil when running from the mirror alone
	Catalog  *catalog.Catalog
	Stats    *stats.Synchronizer
	Users    *users.Directory
	Sessions *session.Store

	reloadMu sync.Mutex
}

// Open opens the configured mirror and store, applies a pending factory reset and loads the catalog.
func Open(ctx context.Context, cfg *config.Config) (*Hub, error) {
	m, err := mirror.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open mirror: %w", err)
	}

	if _, err := mirror.ConsumeFactoryReset(ctx, m); err != nil {
		_ = m.Close()
		return nil, err
	}

	buckets, err := objstore.Open(ctx, cfg)
	switch {
	case errors.Is(err, models.ErrStoreUnavailable):
		log.Warn().Err(err).Msg("object store not configured, running from the local mirror only")
		buckets = nil
	case err != nil:
		_ = m.Close()
		return nil, fmt.Errorf("open object store: %w", err)
	}

	h := New(cfg, m, buckets)
	h.Reload(ctx)
	return h, nil
}

// New assembles a hub from already opened dependencies. buckets may be nil.
func New(cfg *config.Config, m mirror.Mirror, buckets *objstore.Buckets) *Hub {
	var docs, creds, statsBucket objstore.Bucket
	if buckets != nil {
		docs, creds, statsBucket = buckets.Documents, buckets.Credentials, buckets.Stats
	}

	cat := catalog.New(docs, statsBucket, m, catalog.Options{
		ListLimit:      cfg.DocumentListLimit,
		StatsListLimit: cfg.StatsListLimit,
		PublicBaseURL:  cfg.PublicBaseURL,
		MaxUploadSize:  cfg.MaxUploadSize,
	})

	return &Hub{
		Config:  cfg,
		Mirror:  m,
		Buckets: buckets,
		Catalog: cat,
		Stats: stats.New(statsBucket, cat, stats.Options{
			QueueSize: cfg.StatQueueSize,
			ListLimit: cfg.StatsListLimit,
		}),
		Users: users.New(creds, m, users.Options{
			AdminEmail:        cfg.AdminEmail,
			AdminPasswordHash: cfg.AdminPasswordHash,
			ListLimit:         cfg.UserListLimit,
		}),
		Sessions: session.NewStore(cfg.MaxSessions, cfg.TokenLifetime),
	}
}

// Online reports whether an object store is configured.
func (h *Hub) Online() bool { return h.Buckets != nil }

// Reload rebuilds the catalog from the store, or from the mirror when offline.
func (h *Hub) Reload(ctx context.Context) []models.Paper {
	h.reloadMu.Lock()
	defer h.reloadMu.Unlock()
	return h.Catalog.Load(ctx)
}

// Close drains pending stat pushes and flushes the mirror.
func (h *Hub) Close() error {
	h.Stats.Close()
	return h.Mirror.Close()
}
