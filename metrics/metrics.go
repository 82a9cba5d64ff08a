// Package metrics defines the Prometheus collectors exported on /metrics.
// Collectors are registered with the default registry at init.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "adal"

var (
	retrievalDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_duration_seconds",
			Help:      "Time spent in adaptive retrieval.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"intent"},
	)
	retrievalResults = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_results",
			Help:      "Number of documents returned per retrieval.",
			Buckets:   []float64{0, 1, 3, 6, 10, 25, 50},
		},
		[]string{"intent"},
	)
	retrievalFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_failures_total",
			Help:      "Retrieval failures by stage.",
		},
		[]string{"stage"},
	)
	streamsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streams_total",
			Help:      "Answer streams by outcome.",
		},
		[]string{"outcome"},
	)
	streamChunks = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stream_chunks",
			Help:      "Chunks emitted per answer stream.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		},
	)
	streamDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stream_duration_seconds",
			Help:      "Wall time of answer streams.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
	)
	sinkTasks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_tasks_total",
			Help:      "Persistence tasks by result.",
		},
		[]string{"result"},
	)
	sinkQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sink_queue_depth",
			Help:      "Transcripts waiting to be persisted.",
		},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		},
		[]string{"method", "route", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "anomaly_notifications_total",
			Help:      "Notifications raised by anomaly scans.",
		},
		[]string{"kind"},
	)
	feedbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feedback_total",
			Help:      "Answer ratings by value.",
		},
		[]string{"rating"},
	)
)

func init() {
	prometheus.MustRegister(
		retrievalDuration,
		retrievalResults,
		retrievalFailures,
		streamsTotal,
		streamChunks,
		streamDuration,
		sinkTasks,
		sinkQueueDepth,
		httpRequests,
		httpDuration,
		notifications,
		feedbackTotal,
	)
}

// ObserveRetrieval records one adaptive retrieval.
func ObserveRetrieval(intent string, elapsed time.Duration, results int) {
	retrievalDuration.WithLabelValues(intent).Observe(elapsed.Seconds())
	retrievalResults.WithLabelValues(intent).Observe(float64(results))
}

// RetrievalFailed counts a failure at the given stage.
func RetrievalFailed(stage string) {
	retrievalFailures.WithLabelValues(stage).Inc()
}

// ObserveStream records a finished answer stream. outcome is "completed",
// a warning code or an error category.
func ObserveStream(outcome string, chunks int, elapsed time.Duration) {
	if outcome == "" {
		outcome = "unknown"
	}
	streamsTotal.WithLabelValues(outcome).Inc()
	streamChunks.Observe(float64(chunks))
	streamDuration.Observe(elapsed.Seconds())
}

// SinkTask counts a persistence task result: completed, failed or rejected.
func SinkTask(result string) {
	sinkTasks.WithLabelValues(result).Inc()
}

// SetSinkQueueDepth reports the persistence backlog.
func SetSinkQueueDepth(n int) {
	sinkQueueDepth.Set(float64(n))
}

// ObserveHTTP records one HTTP request.
func ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	httpRequests.WithLabelValues(method, route, statusClass(status)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// NotificationRaised counts an anomaly notification.
func NotificationRaised(kind string) {
	notifications.WithLabelValues(kind).Inc()
}

// FeedbackReceived counts one answer rating.
func FeedbackReceived(rating int) {
	feedbackTotal.WithLabelValues(strconv.Itoa(rating)).Inc()
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
