package server

import (
	"context"
	"errors"
	"image"
	"io"
	"net/http"

	"github.com/MeKo-Tech/nutrigood/internal/classifier"
	"github.com/MeKo-Tech/nutrigood/internal/history"
	"github.com/MeKo-Tech/nutrigood/internal/report"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Analyzer defines the methods needed by the server from a pipeline.
type Analyzer interface {
	Process(ctx context.Context, img image.Image, attrs classifier.Attributes) (*report.Report, error)
	ProcessText(ctx context.Context, text string, attrs classifier.Attributes) (*report.Report, error)
}

// HistoryStore is the scan history used by the history routes.
type HistoryStore interface {
	Save(ctx context.Context, r *report.Report) (history.Record, error)
	Get(ctx context.Context, id string) (history.Record, error)
	List(ctx context.Context, limit int) ([]history.Record, error)
	ExportXLSX(ctx context.Context, w io.Writer) (int, error)
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	analyzer    Analyzer
	history     HistoryStore // nil when history is disabled
	corsOrigin  string
	maxUploadMB int64
	timeoutSec  int
	rateLimiter *RateLimiter
}

// RateLimitConfig holds per-client limits. Zero disables a limit.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	RequestsPerHour   int
	MaxRequestsPerDay int
	MaxDataPerDay     int64 // bytes
}

// Config holds server configuration.
type Config struct {
	Host        string
	Port        int
	CORSOrigin  string
	MaxUploadMB int64
	TimeoutSec  int
	RateLimit   RateLimitConfig
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
	History bool   `json:"history"`
}

// ErrorResponse is the body of every non-report error.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// TextRequest is the body of POST /api/v1/analyze/text.
type TextRequest struct {
	Text   string   `json:"text"`
	Age    *float64 `json:"age,omitempty"`
	Weight *float64 `json:"weight,omitempty"`
}

// HistoryResponse lists stored scans.
type HistoryResponse struct {
	Records []history.Record `json:"records"`
	Count   int              `json:"count"`
}

// NewServer creates a server around analyzer. store may be nil.
func NewServer(config Config, analyzer Analyzer, store HistoryStore) (*Server, error) {
	if analyzer == nil {
		return nil, errors.New("analyzer is required")
	}
	s := &Server{
		analyzer:    analyzer,
		history:     store,
		corsOrigin:  config.CORSOrigin,
		maxUploadMB: config.MaxUploadMB,
		timeoutSec:  config.TimeoutSec,
	}
	if s.maxUploadMB <= 0 {
		s.maxUploadMB = 10
	}
	if s.timeoutSec <= 0 {
		s.timeoutSec = 30
	}
	if rl := config.RateLimit; rl.Enabled {
		s.rateLimiter = NewRateLimiter(rl.RequestsPerMinute, rl.RequestsPerHour, rl.MaxRequestsPerDay, rl.MaxDataPerDay)
	}
	return s, nil
}

// Close releases the analyzer and history store when they hold resources.
func (s *Server) Close() error {
	var errs []error
	if c, ok := s.analyzer.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	if c, ok := s.history.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/api/v1/schema", s.corsMiddleware(s.schemaHandler))
	mux.HandleFunc("/api/v1/analyze", s.chain(s.analyzeImageHandler))
	mux.HandleFunc("/api/v1/analyze/text", s.chain(s.analyzeTextHandler))
	mux.HandleFunc("/ws/analyze", s.loggingMiddleware(s.rateLimitMiddleware(s.analyzeWebSocketHandler)))

	mux.HandleFunc("/api/v1/history", s.chain(s.historyListHandler))
	mux.HandleFunc("/api/v1/history/export.xlsx", s.chain(s.historyExportHandler))
	mux.HandleFunc("/api/v1/history/{id}", s.chain(s.historyGetHandler))
}

// Handler returns a mux with all routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return mux
}

func (s *Server) chain(h http.HandlerFunc) http.HandlerFunc {
	return s.corsMiddleware(s.loggingMiddleware(s.rateLimitMiddleware(h)))
}
