package objstore

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// storeMetricsOnce ensures metrics are only registered once.
var storeMetricsOnce sync.Once

// storeMetricsInstance is the singleton instance of store metrics.
var storeMetricsInstance *StoreMetrics

// StoreMetrics holds the Prometheus metrics for remote bucket calls.
type StoreMetrics struct {
	RequestsTotal   *prometheus.CounterVec   // researchhub_store_requests_total{bucket,operation,status}
	RequestDuration *prometheus.HistogramVec // researchhub_store_request_duration_seconds{bucket,operation}
	BytesUploaded   prometheus.Counter       // researchhub_store_bytes_uploaded_total
	BytesDownloaded prometheus.Counter       // researchhub_store_bytes_downloaded_total
}

// InitStoreMetrics registers the store metrics on registry (default registerer when nil).
// Subsequent calls return the same instance.
func InitStoreMetrics(registry prometheus.Registerer) *StoreMetrics {
	storeMetricsOnce.Do(func() {
		if registry == nil {
			registry = prometheus.DefaultRegisterer
		}
		storeMetricsInstance = &StoreMetrics{
			RequestsTotal: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
				Name: "researchhub_store_requests_total",
				Help: "Object store requests by bucket, operation and status",
			}, []string{"bucket", "operation", "status"}),

			RequestDuration: promauto.With(registry).NewHistogramVec(prometheus.HistogramOpts{
				Name:    "researchhub_store_request_duration_seconds",
				Help:    "Object store request duration in seconds",
				Buckets: prometheus.DefBuckets,
			}, []string{"bucket", "operation"}),

			BytesUploaded: promauto.With(registry).NewCounter(prometheus.CounterOpts{
				Name: "researchhub_store_bytes_uploaded_total",
				Help: "Total bytes uploaded to the object store",
			}),

			BytesDownloaded: promauto.With(registry).NewCounter(prometheus.CounterOpts{
				Name: "researchhub_store_bytes_downloaded_total",
				Help: "Total bytes downloaded from the object store",
			}),
		}
	})
	return storeMetricsInstance
}

func (m *StoreMetrics) record(bucket, op string, start time.Time, err error) {
	status := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrObjectNotFound):
		status = "not_found"
	case errors.Is(err, ErrObjectExists):
		status = "exists"
	default:
		status = "error"
	}
	m.RequestsTotal.WithLabelValues(bucket, op, status).Inc()
	m.RequestDuration.WithLabelValues(bucket, op).Observe(time.Since(start).Seconds())
}

// Instrumented wraps a Bucket and records every call in StoreMetrics.
type Instrumented struct {
	Bucket
	metrics *StoreMetrics
}

// Instrument wraps b. A nil metrics uses the registered singleton.
func Instrument(b Bucket, metrics *StoreMetrics) *Instrumented {
	if metrics == nil {
		metrics = InitStoreMetrics(nil)
	}
	return &Instrumented{Bucket: b, metrics: metrics}
}

func (i *Instrumented) List(ctx context.Context, prefix string, opts ListOptions) ([]Entry, error) {
	start := time.Now()
	entries, err := i.Bucket.List(ctx, prefix, opts)
	i.metrics.record(i.Name(), OpList, start, err)
	return entries, err
}

func (i *Instrumented) Upload(ctx context.Context, key string, data []byte, contentType string, upsert bool) (UploadResult, error) {
	start := time.Now()
	res, err := i.Bucket.Upload(ctx, key, data, contentType, upsert)
	i.metrics.record(i.Name(), OpUpload, start, err)
	if err == nil {
		i.metrics.BytesUploaded.Add(float64(len(data)))
	}
	return res, err
}

func (i *Instrumented) Download(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	data, err := i.Bucket.Download(ctx, key)
	i.metrics.record(i.Name(), OpDownload, start, err)
	if err == nil {
		i.metrics.BytesDownloaded.Add(float64(len(data)))
	}
	return data, err
}

func (i *Instrumented) Remove(ctx context.Context, keys []string) error {
	start := time.Now()
	err := i.Bucket.Remove(ctx, keys)
	i.metrics.record(i.Name(), OpRemove, start, err)
	return err
}
