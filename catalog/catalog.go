// Package catalog reconciles the documents bucket, metadata sidecars and stat records
// into the list of papers the service exposes, and keeps that list mirrored locally.
package catalog

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"researchhub/mirror"
	"researchhub/models"
	"researchhub/objstore"
)

const (
	defaultListLimit      = 200
	defaultStatsListLimit = 100
	defaultMaxUploadSize  = 25 * 1024 * 1024
	defaultFetchWorkers   = 8
)

// Options configures a Catalog.
type Options struct {
	ListLimit      int    // Max objects listed from the documents bucket
	StatsListLimit int    // Max stat records read for the overlay
	PublicBaseURL  string // Prefix for file URLs: <base>/<bucket>/<name>
	MaxUploadSize  int64
	FetchWorkers   int // Concurrent sidecar downloads during Load
	Now            func() time.Time
}

// Catalog owns the in-memory paper list. Buckets may be nil, which means the
// service runs from the mirror alone.
type Catalog struct {
	docs   objstore.Bucket
	stats  objstore.Bucket
	mirror mirror.Mirror
	opts   Options

	papers []models.Paper // Newest first
	mu     sync.RWMutex
}

// New creates an empty catalog. Call Load or LoadLocal to populate it.
func New(docs, stats objstore.Bucket, m mirror.Mirror, opts Options) *Catalog {
	if opts.ListLimit <= 0 {
		opts.ListLimit = defaultListLimit
	}
	if opts.StatsListLimit <= 0 {
		opts.StatsListLimit = defaultStatsListLimit
	}
	if opts.MaxUploadSize <= 0 {
		opts.MaxUploadSize = defaultMaxUploadSize
	}
	if opts.FetchWorkers <= 0 {
		opts.FetchWorkers = defaultFetchWorkers
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	opts.PublicBaseURL = strings.TrimSuffix(opts.PublicBaseURL, "/")

	return &Catalog{
		docs:   docs,
		stats:  stats,
		mirror: m,
		opts:   opts,
		papers: []models.Paper{},
	}
}

// Online reports whether a documents bucket is configured.
func (c *Catalog) Online() bool { return c.docs != nil }

func (c *Catalog) now() time.Time { return c.opts.Now().UTC() }

// fileURL is the public link for a document object.
func (c *Catalog) fileURL(name string) string {
	return fmt.Sprintf("%s/%s/%s", c.opts.PublicBaseURL, c.docs.Name(), url.PathEscape(name))
}

// Papers returns a copy of the catalog, newest first.
func (c *Catalog) Papers() []models.Paper {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return clonePapers(c.papers)
}

// Len returns the number of papers.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.papers)
}

// Get finds a paper by ID.
func (c *Catalog) Get(id string) (models.Paper, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i := c.indexOf(id); i >= 0 {
		return clonePaper(c.papers[i]), true
	}
	return models.Paper{}, false
}

// Download returns the bytes of a paper's document.
func (c *Catalog) Download(ctx context.Context, id string) (models.Paper, []byte, error) {
	p, ok := c.Get(id)
	if !ok {
		return models.Paper{}, nil, fmt.Errorf("paper %s: %w", id, models.ErrNotFound)
	}
	if !p.HasFile() {
		return p, nil, fmt.Errorf("paper %s has no file: %w", id, models.ErrNotFound)
	}
	if c.docs == nil {
		return p, nil, models.ErrStoreUnavailable
	}
	data, err := c.docs.Download(ctx, p.FileName)
	if err != nil {
		return p, nil, err
	}
	return p, data, nil
}

// indexOf must be called with mu held.
func (c *Catalog) indexOf(id string) int {
	for i := range c.papers {
		if c.papers[i].ID == id {
			return i
		}
	}
	return -1
}

// replace swaps in a new list and mirrors it. Must be called with mu held.
func (c *Catalog) replace(ctx context.Context, papers []models.Paper) {
	c.papers = papers
	c.persist(ctx)
}

// persist writes the list to the mirror. Must be called with mu held.
func (c *Catalog) persist(ctx context.Context) {
	if c.mirror == nil {
		return
	}
	if err := mirror.SetJSON(ctx, c.mirror, mirror.KeyPapers, c.papers); err != nil {
		log.Error().Err(err).Msg("failed to mirror catalog")
	}
}

// LoadLocal replaces the catalog with the mirrored copy.
func (c *Catalog) LoadLocal(ctx context.Context) []models.Paper {
	var papers []models.Paper
	if c.mirror != nil {
		if _, err := mirror.GetJSON(ctx, c.mirror, mirror.KeyPapers, &papers); err != nil {
			log.Warn().Err(err).Msg("mirrored catalog unreadable, starting empty")
			papers = nil
		}
	}
	if papers == nil {
		papers = []models.Paper{}
	}

	now := c.now()
	for i := range papers {
		normalize(&papers[i], now)
	}

	c.mu.Lock()
	c.papers = papers
	c.mu.Unlock()

	log.Info().Int("papers", len(papers)).Msg("loaded catalog from local mirror")
	return clonePapers(papers)
}

// Bump adds to a paper's counters and mirrors the catalog synchronously.
func (c *Catalog) Bump(ctx context.Context, paperID string, views, downloads int) (models.StatRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(paperID)
	if i < 0 {
		return models.StatRecord{}, fmt.Errorf("paper %s: %w", paperID, models.ErrNotFound)
	}
	p := &c.papers[i]
	p.Views += views
	p.Downloads += downloads
	c.persist(ctx)

	return models.StatRecord{
		PaperID:     p.ID,
		Views:       p.Views,
		Downloads:   p.Downloads,
		LastUpdated: c.now(),
	}, nil
}

// StatRecord returns the current counters of a paper.
func (c *Catalog) StatRecord(paperID string) (models.StatRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	i := c.indexOf(paperID)
	if i < 0 {
		return models.StatRecord{}, false
	}
	p := c.papers[i]
	return models.StatRecord{
		PaperID:     p.ID,
		Views:       p.Views,
		Downloads:   p.Downloads,
		LastUpdated: c.now(),
	}, true
}

// ResetCounters zeroes views and downloads on every paper.
func (c *Catalog) ResetCounters(ctx context.Context) []models.StatRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	records := make([]models.StatRecord, 0, len(c.papers))
	for i := range c.papers {
		c.papers[i].Views = 0
		c.papers[i].Downloads = 0
		records = append(records, models.StatRecord{PaperID: c.papers[i].ID, LastUpdated: now})
	}
	c.persist(ctx)
	return records
}

func clonePaper(p models.Paper) models.Paper {
	p.Authors = slices.Clone(p.Authors)
	p.Keywords = slices.Clone(p.Keywords)
	return p
}

func clonePapers(papers []models.Paper) []models.Paper {
	out := make([]models.Paper, len(papers))
	for i, p := range papers {
		out[i] = clonePaper(p)
	}
	return out
}
