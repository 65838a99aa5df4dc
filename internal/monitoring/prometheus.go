// Package monitoring exports Prometheus metrics for the service.
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts handled HTTP requests
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vessel_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"path", "method"},
	)

	// RequestDuration tracks HTTP request latency
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vessel_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"path", "method"},
	)

	// RecordsIngested counts telemetry records accepted by the pipeline
	RecordsIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vessel_records_ingested_total",
			Help: "Total number of telemetry records ingested",
		},
	)

	// RecordsInvalid counts records that failed validation during ingest
	RecordsInvalid = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vessel_records_invalid_total",
			Help: "Total number of ingested records that failed validation",
		},
	)

	// RowsSkipped counts malformed rows dropped by the parser
	RowsSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vessel_rows_skipped_total",
			Help: "Total number of malformed input rows dropped",
		},
	)

	// BatchesFlushed counts persisted ingest batches
	BatchesFlushed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vessel_batches_flushed_total",
			Help: "Total number of ingest batches flushed to storage",
		},
	)

	// OutliersDetected counts outlier issues created by the detector
	OutliersDetected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vessel_outliers_detected_total",
			Help: "Total number of outlier issues created",
		},
	)
)
