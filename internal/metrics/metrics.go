// Package metrics exposes Prometheus instruments for digest runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "dida_digest"

var (
	// Runs by outcome: delivered, skipped, dry_run, reminded, failed
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total number of digest runs by outcome",
		},
		[]string{"status"},
	)

	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a digest run in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		},
	)

	LastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last completed run",
		},
	)

	// Tasks per bucket in the last digest
	BucketTasks = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bucket_tasks",
			Help:      "Number of tasks in each bucket of the last digest",
		},
		[]string{"bucket"}, // bucket: today, week, nodue
	)

	FetchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_failures_total",
			Help:      "Task source requests that failed",
		},
		[]string{"op"}, // op: list_projects, project, inbox
	)

	DuplicateTasks = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicate_tasks_total",
			Help:      "Tasks dropped because they were already collected",
		},
	)

	DeliveryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "delivery_duration_seconds",
			Help:      "Notification delivery duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~5s
		},
		[]string{"status"}, // status: success, failed
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)
)

// RecordRun records the outcome and duration of one run.
func RecordRun(status string, duration time.Duration, finished time.Time) {
	RunsTotal.WithLabelValues(status).Inc()
	RunDuration.Observe(duration.Seconds())
	LastRunTimestamp.Set(float64(finished.Unix()))
}

// RecordBuckets sets the bucket gauges from a count map.
func RecordBuckets(counts map[string]int) {
	for bucket, n := range counts {
		BucketTasks.WithLabelValues(bucket).Set(float64(n))
	}
}

// IncrementFetchFailures adds n failures for op.
func IncrementFetchFailures(op string, n int) {
	if n > 0 {
		FetchFailures.WithLabelValues(op).Add(float64(n))
	}
}

// IncrementDuplicates adds n de-duplicated tasks.
func IncrementDuplicates(n int) {
	if n > 0 {
		DuplicateTasks.Add(float64(n))
	}
}

// RecordDelivery records one delivery attempt.
func RecordDelivery(err error, duration time.Duration) {
	status := "success"
	if err != nil {
		status = "failed"
	}
	DeliveryDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordHTTPRequestDuration records one served HTTP request.
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}
