package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nutrigood_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nutrigood_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Analysis metrics
	analysisRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nutrigood_analysis_requests_total",
			Help: "Total number of label analyses",
		},
		[]string{"type", "outcome"}, // type: image, text, websocket_image, websocket_text; outcome: complete, partial, not_found, error
	)

	analysisDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nutrigood_analysis_duration_seconds",
			Help:    "Label analysis duration in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"type"},
	)

	analysisTextLength = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nutrigood_analysis_text_length",
			Help:    "Length of the normalized label text",
			Buckets: []float64{0, 10, 50, 100, 250, 500, 1000, 5000},
		},
		[]string{"type"},
	)

	textBlocksDetected = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nutrigood_text_blocks_detected",
			Help:    "Number of text blocks segmented per image",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		},
	)

	historyWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nutrigood_history_writes_total",
			Help: "Total number of scan history writes",
		},
		[]string{"status"}, // status: success, error
	)

	// Rate limiting metrics
	rateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nutrigood_rate_limit_hits_total",
			Help: "Total number of rate limit hits",
		},
		[]string{"type"}, // type: minute, hour, requests, data
	)

	// File upload metrics
	uploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nutrigood_upload_size_bytes",
			Help:    "Size of uploaded label images in bytes",
			Buckets: []float64{1024, 10 * 1024, 100 * 1024, 1024 * 1024, 5 * 1024 * 1024, 10 * 1024 * 1024, 50 * 1024 * 1024},
		},
	)

	// WebSocket metrics
	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nutrigood_websocket_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	websocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nutrigood_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"}, // direction: sent, received
	)
)
