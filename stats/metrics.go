package stats

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	syncMetricsOnce     sync.Once
	syncMetricsInstance *SyncMetrics
)

// SyncMetrics are the observable side of the background stat pushes.
type SyncMetrics struct {
	Pushes     prometheus.Counter // researchhub_stat_sync_pushes_total
	Failures   prometheus.Counter // researchhub_stat_sync_failures_total
	Dropped    prometheus.Counter // researchhub_stat_sync_dropped_total
	QueueDepth prometheus.Gauge   // researchhub_stat_sync_queue_depth
}

// InitSyncMetrics registers the metrics once on registry (default registerer when nil).
func InitSyncMetrics(registry prometheus.Registerer) *SyncMetrics {
	syncMetricsOnce.Do(func() {
		if registry == nil {
			registry = prometheus.DefaultRegisterer
		}
		f := promauto.With(registry)
		syncMetricsInstance = &SyncMetrics{
			Pushes: f.NewCounter(prometheus.CounterOpts{
				Name: "researchhub_stat_sync_pushes_total",
				Help: "Stat records pushed to the stats bucket",
			}),
			Failures: f.NewCounter(prometheus.CounterOpts{
				Name: "researchhub_stat_sync_failures_total",
				Help: "Stat record pushes that failed or were dropped",
			}),
			Dropped: f.NewCounter(prometheus.CounterOpts{
				Name: "researchhub_stat_sync_dropped_total",
				Help: "Stat record pushes dropped because the queue was full",
			}),
			QueueDepth: f.NewGauge(prometheus.GaugeOpts{
				Name: "researchhub_stat_sync_queue_depth",
				Help: "Stat records waiting to be pushed",
			}),
		}
	})
	return syncMetricsInstance
}
