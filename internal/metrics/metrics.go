// Package metrics registers the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal requests served, by route template and status
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datashare_http_requests_total",
			Help: "Total HTTP requests handled",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration request latency, by route template
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "datashare_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// UploadsTotal staged uploads by pipeline and outcome
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datashare_uploads_total",
			Help: "Uploads processed by the intake pipeline",
		},
		[]string{"policy", "result"},
	)

	// UploadedBytesTotal bytes accepted by the intake pipeline
	UploadedBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "datashare_uploaded_bytes_total",
			Help: "Bytes accepted by the intake pipeline",
		},
	)

	// DownloadsTotal payloads served
	DownloadsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "datashare_downloads_total",
			Help: "Dataset payloads served",
		},
	)

	// DownloadedBytesTotal payload bytes served
	DownloadedBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "datashare_downloaded_bytes_total",
			Help: "Dataset payload bytes served",
		},
	)

	// BestEffortFailures side effects that failed without failing the request
	BestEffortFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datashare_best_effort_failures_total",
			Help: "Failed best-effort side effects, by operation",
		},
		[]string{"operation"},
	)
)
