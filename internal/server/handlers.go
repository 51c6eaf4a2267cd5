package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/nutrigood/internal/classifier"
	"github.com/MeKo-Tech/nutrigood/internal/history"
	"github.com/MeKo-Tech/nutrigood/internal/preprocess"
	"github.com/MeKo-Tech/nutrigood/internal/report"
	"github.com/MeKo-Tech/nutrigood/internal/utils"
	"github.com/MeKo-Tech/nutrigood/internal/version"
)

const (
	formatText = "text"

	defaultHistoryLimit = 50
	maxTextBytes        = 1 << 20
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:  "healthy",
		Version: version.Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
		History: s.history != nil,
	}
	writeJSON(w, http.StatusOK, response)
}

// schemaHandler serves the JSON schema every report conforms to.
func (s *Server) schemaHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/schema+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(report.Schema()))
}

// analyzeImageHandler analyzes an uploaded label image.
func (s *Server) analyzeImageHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limit := s.maxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeErrorResponse(w, "File too large", http.StatusRequestEntityTooLarge)
		} else {
			s.writeErrorResponse(w, "Failed to parse form data", http.StatusBadRequest)
		}
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		s.writeErrorResponse(w, "No image file provided", http.StatusBadRequest)
		return
	}
	defer func() { _ = file.Close() }()
	uploadSizeBytes.Observe(float64(header.Size))

	attrs, err := parseAttributes(r.FormValue("age"), r.FormValue("weight"))
	if err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	imageData, err := io.ReadAll(file)
	if err != nil {
		s.writeErrorResponse(w, "Failed to read image data", http.StatusInternalServerError)
		return
	}
	img, meta, err := utils.DecodeImage(bytes.NewReader(imageData))
	if err != nil {
		s.rejectUpload(w, r, header.Filename, "unsupported image format", err)
		return
	}
	if err := utils.ValidateImageConstraints(img, utils.DefaultImageConstraints()); err != nil {
		s.rejectUpload(w, r, header.Filename, "image too small", err)
		return
	}
	slog.Debug("Decoded upload", "filename", header.Filename, "format", meta.Format, "width", meta.Width, "height", meta.Height)

	ctx, cancel := s.requestContext(r)
	defer cancel()
	rep, err := s.analyzeImage(ctx, "image", header.Filename, img, attrs)
	s.writeReport(w, r, rep, err)
}

// analyzeTextHandler analyzes already-recognized label text.
func (s *Server) analyzeTextHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req TextRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTextBytes)).Decode(&req); err != nil {
		s.writeErrorResponse(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	attrs := classifier.Attributes{Age: req.Age, Weight: req.Weight}
	if err := validateAttributes(attrs); err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()
	rep, err := s.analyzeText(ctx, "text", req.Text, attrs)
	s.writeReport(w, r, rep, err)
}

// rejectUpload answers an unusable upload with a failed report, the same
// shape a failed analysis has.
func (s *Server) rejectUpload(w http.ResponseWriter, r *http.Request, source, reason string, cause error) {
	analysisRequestsTotal.WithLabelValues("image", "error").Inc()
	err := &preprocess.InvalidImageError{Reason: reason, Err: cause}
	slog.Debug("Rejected upload", "filename", source, "error", err)
	s.writeReport(w, r, report.Failed(source, err, 0), err)
}

func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), time.Duration(s.timeoutSec)*time.Second)
}

// analyzeImage runs the pipeline, records metrics and stores the scan.
func (s *Server) analyzeImage(ctx context.Context, kind, source string, img image.Image,
	attrs classifier.Attributes) (*report.Report, error) {
	start := time.Now()
	rep, err := s.analyzer.Process(ctx, img, attrs)
	if rep != nil && source != "" {
		rep.Source = source
	}
	if err == nil && rep != nil {
		textBlocksDetected.Observe(float64(rep.Blocks))
	}
	s.afterAnalysis(ctx, kind, start, rep, err)
	return rep, err
}

func (s *Server) analyzeText(ctx context.Context, kind, text string, attrs classifier.Attributes) (*report.Report, error) {
	start := time.Now()
	rep, err := s.analyzer.ProcessText(ctx, text, attrs)
	s.afterAnalysis(ctx, kind, start, rep, err)
	return rep, err
}

func (s *Server) afterAnalysis(ctx context.Context, kind string, start time.Time, rep *report.Report, err error) {
	analysisDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	if err != nil || rep == nil || rep.Fatal() {
		analysisRequestsTotal.WithLabelValues(kind, "error").Inc()
		slog.Warn("Analysis failed", "type", kind, "error", err)
		return
	}
	analysisRequestsTotal.WithLabelValues(kind, string(rep.Outcome)).Inc()
	analysisTextLength.WithLabelValues(kind).Observe(float64(len(rep.Text)))

	if s.history == nil {
		return
	}
	if _, err := s.history.Save(context.WithoutCancel(ctx), rep); err != nil {
		historyWritesTotal.WithLabelValues("error").Inc()
		slog.Error("Failed to record scan", "id", rep.ID, "error", err)
		return
	}
	historyWritesTotal.WithLabelValues("success").Inc()
}

// writeReport writes rep as JSON, or as text when format=text is requested.
// Fatal reports are sent with 422 Unprocessable Entity.
func (s *Server) writeReport(w http.ResponseWriter, r *http.Request, rep *report.Report, err error) {
	if rep == nil {
		msg := "analysis failed"
		if err != nil {
			msg = err.Error()
		}
		s.writeErrorResponse(w, msg, http.StatusInternalServerError)
		return
	}
	status := http.StatusOK
	if rep.Fatal() {
		status = http.StatusUnprocessableEntity
	}

	if requestFormat(r) == formatText {
		out, err := report.ToText(rep)
		if err != nil {
			s.writeErrorResponse(w, fmt.Sprintf("formatting failed: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(out))
		return
	}
	writeJSON(w, status, rep)
}

func requestFormat(r *http.Request) string {
	if f := r.URL.Query().Get("format"); f != "" {
		return f
	}
	if r.MultipartForm != nil {
		return r.FormValue("format")
	}
	return ""
}

// historyListHandler lists recent scans. ?limit=N bounds the result.
func (s *Server) historyListHandler(w http.ResponseWriter, r *http.Request) {
	if !s.historyRequest(w, r) {
		return
	}
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeErrorResponse(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	recs, err := s.history.List(r.Context(), limit)
	if err != nil {
		slog.Error("Failed to list history", "error", err)
		s.writeErrorResponse(w, "Failed to list history", http.StatusInternalServerError)
		return
	}
	if recs == nil {
		recs = []history.Record{}
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Records: recs, Count: len(recs)})
}

// historyGetHandler returns one scan.
func (s *Server) historyGetHandler(w http.ResponseWriter, r *http.Request) {
	if !s.historyRequest(w, r) {
		return
	}
	rec, err := s.history.Get(r.Context(), r.PathValue("id"))
	switch {
	case errors.Is(err, history.ErrNotFound):
		s.writeErrorResponse(w, "Scan not found", http.StatusNotFound)
	case err != nil:
		slog.Error("Failed to load scan", "id", r.PathValue("id"), "error", err)
		s.writeErrorResponse(w, "Failed to load scan", http.StatusInternalServerError)
	default:
		writeJSON(w, http.StatusOK, rec)
	}
}

// historyExportHandler streams the history as an XLSX workbook.
func (s *Server) historyExportHandler(w http.ResponseWriter, r *http.Request) {
	if !s.historyRequest(w, r) {
		return
	}
	var buf bytes.Buffer
	if _, err := s.history.ExportXLSX(r.Context(), &buf); err != nil {
		slog.Error("Failed to export history", "error", err)
		s.writeErrorResponse(w, "Failed to export history", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="nutrigood-history-%s.xlsx"`, time.Now().UTC().Format("20060102")))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = buf.WriteTo(w)
}

func (s *Server) historyRequest(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	if s.history == nil {
		s.writeErrorResponse(w, "History is disabled", http.StatusServiceUnavailable)
		return false
	}
	return true
}

// parseAttributes reads the optional age and weight form values.
func parseAttributes(age, weight string) (classifier.Attributes, error) {
	var attrs classifier.Attributes
	parse := func(name, v string) (*float64, error) {
		v = strings.TrimSpace(v)
		if v == "" {
			return nil, nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %q", name, v)
		}
		return &f, nil
	}
	var err error
	if attrs.Age, err = parse("age", age); err != nil {
		return attrs, err
	}
	if attrs.Weight, err = parse("weight", weight); err != nil {
		return attrs, err
	}
	return attrs, validateAttributes(attrs)
}

func validateAttributes(attrs classifier.Attributes) error {
	if attrs.Age != nil && *attrs.Age < 0 {
		return errors.New("invalid age: must not be negative")
	}
	if attrs.Weight != nil && *attrs.Weight < 0 {
		return errors.New("invalid weight: must not be negative")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, statusCode, ErrorResponse{Success: false, Error: message})
}
