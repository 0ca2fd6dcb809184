// Package metrics defines prometheus metrics to expose
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_relay_request_duration_seconds",
			Help:    "Total time taken for chat relays in seconds",
			Buckets: []float64{.5, 1, 2.5, 5, 10, 15, 20, 25, 30, 40, 50, 75, 100, 150, 200, 350, 600},
		},
		[]string{"model"},
	)

	TimeToFirstToken = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_relay_time_to_first_token_seconds",
			Help:    "Time to first relayed token in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 15, 20, 30, 60},
		},
		[]string{"model"},
	)

	InferenceAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_relay_inference_attempts_total",
			Help: "Inference attempts made against the backend",
		},
		[]string{"model", "result"},
	)

	ChunksRelayed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_relay_chunks_total",
			Help: "Text chunks written to clients",
		},
		[]string{"model"},
	)

	RequestCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_relay_request_count_total",
			Help: "Total number of chat relays processed",
		},
		[]string{"model", "status"},
	)

	InflightRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_relay_inflight_requests",
			Help: "Current Inflight Relays",
		},
	)

	ModelCatalogCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_relay_model_catalog_cache_total",
			Help: "Model catalog cache lookups",
		},
		[]string{"result"},
	)

	ErrorCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_relay_error_count",
			Help: "Error count",
		},
		[]string{"model", "from"},
	)

	ResponseCodes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_relay_status_code",
			Help: "Status Codes",
		},
		[]string{"path", "status_code"},
	)
)
