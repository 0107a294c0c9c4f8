package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Index metrics
	IndexesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "strata_indexes_total",
			Help: "Total number of indexes",
		},
	)

	DocumentsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "strata_documents_total",
			Help: "Total number of documents by index",
		},
		[]string{"index_uid"},
	)

	IndexSizeBytes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "strata_index_size_bytes",
			Help: "On-disk size of an index in bytes",
		},
		[]string{"index_uid"},
	)

	// Task queue metrics
	TasksTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "strata_tasks_total",
			Help: "Total number of tasks by status",
		},
		[]string{"status"},
	)

	TasksEnqueuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strata_tasks_enqueued_total",
			Help: "Total number of tasks enqueued by kind",
		},
		[]string{"kind"},
	)

	TasksFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strata_tasks_failed_total",
			Help: "Total number of tasks that failed by kind",
		},
		[]string{"kind"},
	)

	// Batch / scheduler metrics
	BatchLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "strata_batch_latency_seconds",
			Help:    "Time taken to process a batch of tasks in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	BatchesProcessedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "strata_batches_processed_total",
			Help: "Total number of batches processed",
		},
	)

	BatchSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "strata_batch_size_tasks",
			Help:    "Number of tasks per processed batch",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 500},
		},
	)

	// Indexing pipeline metrics
	IndexingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "strata_indexing_duration_seconds",
			Help:    "Time taken for an indexing pipeline stage in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	DocumentsIndexedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strata_documents_indexed_total",
			Help: "Total number of documents indexed by index",
		},
		[]string{"index_uid"},
	)

	// Search / query metrics
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strata_search_requests_total",
			Help: "Total number of search requests by index and status",
		},
		[]string{"index_uid", "status"},
	)

	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "strata_search_duration_seconds",
			Help:    "Search request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"index_uid"},
	)

	SearchRejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "strata_search_rejected_total",
			Help: "Total number of search requests rejected by admission control",
		},
	)

	// Snapshot / dump metrics
	SnapshotDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "strata_snapshot_duration_seconds",
			Help:    "Time taken to create a snapshot in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
	)

	DumpDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "strata_dump_duration_seconds",
			Help:    "Time taken to create a dump in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
	)
)

func init() {
	prometheus.MustRegister(IndexesTotal)
	prometheus.MustRegister(DocumentsTotal)
	prometheus.MustRegister(IndexSizeBytes)
	prometheus.MustRegister(TasksTotal)
	prometheus.MustRegister(TasksEnqueuedTotal)
	prometheus.MustRegister(TasksFailedTotal)
	prometheus.MustRegister(BatchLatency)
	prometheus.MustRegister(BatchesProcessedTotal)
	prometheus.MustRegister(BatchSize)
	prometheus.MustRegister(IndexingDuration)
	prometheus.MustRegister(DocumentsIndexedTotal)
	prometheus.MustRegister(SearchRequestsTotal)
	prometheus.MustRegister(SearchDuration)
	prometheus.MustRegister(SearchRejectedTotal)
	prometheus.MustRegister(SnapshotDuration)
	prometheus.MustRegister(DumpDuration)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
