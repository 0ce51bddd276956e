// Package stats keeps view and download counters in step between the catalog,
// the local mirror and the stats bucket.
package stats

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"researchhub/models"
	"researchhub/objstore"
	"researchhub/session"
)

// Counters is the local, mirrored counter state. Catalog implements it.
type Counters interface {
	// Bump adds to a paper's counters, mirrors the catalog and returns the new totals.
	Bump(ctx context.Context, paperID string, views, downloads int) (models.StatRecord, error)
	// ResetCounters zeroes every paper and returns the zeroed records.
	ResetCounters(ctx context.Context) []models.StatRecord
	// StatRecord returns the current totals for a paper.
	StatRecord(paperID string) (models.StatRecord, bool)
}

const (
	defaultQueueSize = 256
	pushTimeout      = 30 * time.Second
)

// Options tunes a Synchronizer.
type Options struct {
	QueueSize int
	ListLimit int // Max records read by Load
	Metrics   *SyncMetrics
}

// Synchronizer applies counter changes locally right away and pushes the paper's
// StatRecord to the stats bucket from a single background worker. The worker reads the
// totals when it pushes, so a later push never carries an older count than an earlier one.
// Pushes overwrite the whole record, so concurrent instances can lose updates.
type Synchronizer struct {
	bucket    objstore.Bucket // nil when no store is configured
	counters  Counters
	listLimit int
	metrics   *SyncMetrics

	queue    chan string // Paper IDs
	failures atomic.Int64
	pushed   atomic.Int64

	closed bool
	mu     sync.RWMutex // Guards closed against sends on queue
	wg     sync.WaitGroup
}

// New starts the background worker. bucket may be nil, in which case changes stay local.
func New(bucket objstore.Bucket, counters Counters, opts Options) *Synchronizer {
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.Metrics == nil {
		opts.Metrics = InitSyncMetrics(nil)
	}

	s := &Synchronizer{
		bucket:    bucket,
		counters:  counters,
		listLimit: opts.ListLimit,
		metrics:   opts.Metrics,
		queue:     make(chan string, opts.QueueSize),
	}
	s.wg.Add(1)
	go s.worker()
	return s
}

// RecordView counts a view once per session. It returns false when the session had
// already viewed the paper, in which case nothing changes.
func (s *Synchronizer) RecordView(ctx context.Context, sess *session.Session, paperID string) (models.StatRecord, bool, error) {
	if !sess.MarkViewed(paperID) {
		return models.StatRecord{}, false, nil
	}

	rec, err := s.counters.Bump(ctx, paperID, 1, 0)
	if err != nil {
		sess.UnmarkViewed(paperID)
		return models.StatRecord{}, false, err
	}

	s.enqueue(paperID)
	return rec, true, nil
}

// RecordDownload counts every download.
func (s *Synchronizer) RecordDownload(ctx context.Context, paperID string) (models.StatRecord, error) {
	rec, err := s.counters.Bump(ctx, paperID, 0, 1)
	if err != nil {
		return models.StatRecord{}, err
	}

	s.enqueue(paperID)
	return rec, nil
}

// ResetAll zeroes every counter locally and queues the zeroed records. It returns the paper count.
func (s *Synchronizer) ResetAll(ctx context.Context) int {
	records := s.counters.ResetCounters(ctx)
	for _, rec := range records {
		s.enqueue(rec.PaperID)
	}
	log.Info().Int("papers", len(records)).Msg("reset all statistics")
	return len(records)
}

// Load reads every stat record from the stats bucket.
func (s *Synchronizer) Load(ctx context.Context) (map[string]models.StatRecord, error) {
	return LoadRecords(ctx, s.bucket, s.listLimit)
}

// Failures is the number of pushes that failed or were dropped.
func (s *Synchronizer) Failures() int64 { return s.failures.Load() }

// Pushed is the number of records successfully written to the stats bucket.
func (s *Synchronizer) Pushed() int64 { return s.pushed.Load() }

// enqueue never blocks. A full queue drops the push and counts a failure.
func (s *Synchronizer) enqueue(paperID string) {
	if s.bucket == nil {
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.fail()
		return
	}

	select {
	case s.queue <- paperID:
		s.metrics.QueueDepth.Inc()
	default:
		log.Warn().Str("paper_id", paperID).Msg("stat queue full, dropping push")
		s.metrics.Dropped.Inc()
		s.fail()
	}
}

func (s *Synchronizer) worker() {
	defer s.wg.Done()
	for paperID := range s.queue {
		s.metrics.QueueDepth.Dec()
		rec, ok := s.counters.StatRecord(paperID)
		if !ok {
			log.Debug().Str("paper_id", paperID).Msg("paper gone before stat sync, skipping")
			continue
		}
		s.push(rec)
	}
}

func (s *Synchronizer) push(rec models.StatRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
	defer cancel()

	data, err := json.Marshal(rec)
	if err != nil {
		log.Error().Err(err).Str("paper_id", rec.PaperID).Msg("failed to encode stat record")
		s.fail()
		return
	}

	if _, err := s.bucket.Upload(ctx, RecordKey(rec.PaperID), data, "application/json", true); err != nil {
		log.Warn().Err(err).Str("paper_id", rec.PaperID).Msg("stat sync failed")
		s.fail()
		return
	}

	s.pushed.Add(1)
	s.metrics.Pushes.Inc()
	log.Debug().Str("paper_id", rec.PaperID).Int("views", rec.Views).Int("downloads", rec.Downloads).Msg("stat record synced")
}

func (s *Synchronizer) fail() {
	s.failures.Add(1)
	s.metrics.Failures.Inc()
}

// Close stops accepting pushes and waits for the queue to drain.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	s.wg.Wait()
}
