package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MeKo-Tech/nutrigood/internal/history"
	"github.com/MeKo-Tech/nutrigood/internal/nutrition"
	"github.com/MeKo-Tech/nutrigood/internal/ocr"
	"github.com/MeKo-Tech/nutrigood/internal/pipeline"
	"github.com/MeKo-Tech/nutrigood/internal/report"
	"github.com/MeKo-Tech/nutrigood/internal/testutil"
	"github.com/MeKo-Tech/nutrigood/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const labelText = "Sajian per kemasan: 3\nSugars: 5g"

func newTestPipeline(t *testing.T, text string) *pipeline.Pipeline {
	t.Helper()
	p, err := pipeline.NewBuilder().WithRecognizer(ocr.NewStatic(text)).WithCache(0, 0).Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func newTestStore(t *testing.T) *history.Store {
	t.Helper()
	s, err := history.Open(context.Background(),
		history.Config{Driver: history.DriverSQLite, DSN: filepath.Join(t.TempDir(), "history.db")}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestServer(t *testing.T, store HistoryStore) *Server {
	t.Helper()
	s, err := NewServer(Config{CORSOrigin: "*", MaxUploadMB: 1, TimeoutSec: 5}, newTestPipeline(t, labelText), store)
	require.NoError(t, err)
	return s
}

func labelPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	img := testutil.RenderLabel(strings.Split(labelText, "\n"), testutil.DefaultLabelOptions())
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func multipartRequest(t *testing.T, target string, image []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if image != nil {
		fw, err := mw.CreateFormFile("image", "label.png")
		require.NoError(t, err)
		_, err = fw.Write(image)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeReport(t *testing.T, rec *httptest.ResponseRecorder) report.Report {
	t.Helper()
	var r report.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r))
	return r
}

func TestNewServer_RequiresAnalyzer(t *testing.T) {
	_, err := NewServer(Config{}, nil, nil)
	require.Error(t, err)
}

func TestNewServer_Defaults(t *testing.T) {
	s, err := NewServer(Config{}, newTestPipeline(t, ""), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(10), s.maxUploadMB)
	assert.Equal(t, 30, s.timeoutSec)
	assert.Nil(t, s.rateLimiter)
}

func TestHealthHandler(t *testing.T) {
	s := newTestServer(t, nil)
	h := s.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.False(t, resp.History)
	assert.NotEmpty(t, resp.Time)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestSchemaHandler(t *testing.T) {
	h := newTestServer(t, nil).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/schema", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/schema+json", rec.Header().Get("Content-Type"))

	var doc map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	props, ok := doc["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "nutrition_info")
	assert.Contains(t, props, "ocr_confidence")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/schema", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestAnalyzeImageHandler(t *testing.T) {
	store := newTestStore(t)
	s := newTestServer(t, store)

	req := multipartRequest(t, "/api/v1/analyze", labelPNG(t), map[string]string{"age": "30", "weight": "60"})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	r := decodeReport(t, rec)
	assert.Equal(t, nutrition.OutcomeComplete, r.Outcome)
	assert.Equal(t, "label.png", r.Source)
	require.NotNil(t, r.NutritionInfo.TotalSugar)
	assert.InDelta(t, 15, *r.NutritionInfo.TotalSugar, 0.01)

	recs, err := store.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, r.ID, recs[0].ID)
}

func tinyPNG(t *testing.T) []byte {
	t.Helper()
	data, err := utils.EncodePNG(image.NewGray(image.Rect(0, 0, 4, 4)))
	require.NoError(t, err)
	return data
}

func TestAnalyzeImageHandler_Errors(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name    string
		req     *http.Request
		status  int
		message string
	}{
		{
			name:    "missing image",
			req:     multipartRequest(t, "/api/v1/analyze", nil, map[string]string{"age": "30"}),
			status:  http.StatusBadRequest,
			message: "No image file provided",
		},
		{
			name:    "bad age",
			req:     multipartRequest(t, "/api/v1/analyze", labelPNG(t), map[string]string{"age": "old"}),
			status:  http.StatusBadRequest,
			message: "invalid age",
		},
		{
			name:    "negative weight",
			req:     multipartRequest(t, "/api/v1/analyze", labelPNG(t), map[string]string{"weight": "-1"}),
			status:  http.StatusBadRequest,
			message: "invalid weight",
		},
		{
			name:    "not multipart",
			req:     httptest.NewRequest(http.MethodPost, "/api/v1/analyze", strings.NewReader("x")),
			status:  http.StatusBadRequest,
			message: "Failed to parse form data",
		},
		{
			name:    "too large",
			req:     multipartRequest(t, "/api/v1/analyze", bytes.Repeat([]byte{0}, 2<<20), nil),
			status:  http.StatusRequestEntityTooLarge,
			message: "File too large",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, tt.req)
			assert.Equal(t, tt.status, rec.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.Contains(t, resp.Error, tt.message)
		})
	}

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analyze", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestAnalyzeImageHandler_UnusableUploadIsFailedReport(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name    string
		data    []byte
		message string
	}{
		{name: "undecodable", data: []byte("not an image"), message: "unsupported image format"},
		{name: "too small", data: tinyPNG(t), message: "image too small"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, multipartRequest(t, "/api/v1/analyze", tt.data, nil))
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

			var raw map[string]json.RawMessage
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
			assert.JSONEq(t, `{}`, string(raw["nutrition_info"]))

			r := decodeReport(t, rec)
			assert.Equal(t, report.MessageError, r.Message)
			assert.True(t, r.Fatal())
			assert.Contains(t, r.Error, tt.message)
			assert.Equal(t, "label.png", r.Source)
		})
	}
}

func postText(t *testing.T, s *Server, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestAnalyzeTextHandler(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name    string
		text    string
		outcome nutrition.OutcomeKind
		total   *float64
	}{
		{name: "complete", text: labelText, outcome: nutrition.OutcomeComplete, total: ptr(15)},
		{name: "servings defaulted", text: "Sugars: 5g", outcome: nutrition.OutcomePartial, total: ptr(5)},
		{name: "not found", text: "", outcome: nutrition.OutcomeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, err := json.Marshal(TextRequest{Text: tt.text, Age: ptr(25)})
			require.NoError(t, err)

			rec := postText(t, s, "/api/v1/analyze/text", string(body))
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			r := decodeReport(t, rec)
			assert.Equal(t, tt.outcome, r.Outcome)
			if tt.total == nil {
				assert.Nil(t, r.NutritionInfo.TotalSugar)
			} else {
				require.NotNil(t, r.NutritionInfo.TotalSugar)
				assert.InDelta(t, *tt.total, *r.NutritionInfo.TotalSugar, 0.01)
			}
		})
	}
}

func TestAnalyzeTextHandler_TextFormat(t *testing.T) {
	s := newTestServer(t, nil)
	rec := postText(t, s, "/api/v1/analyze/text?format=text", `{"text":"Sajian per kemasan: 3\nSugars: 5g"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "complete")
}

func TestAnalyzeTextHandler_Errors(t *testing.T) {
	s := newTestServer(t, nil)

	rec := postText(t, s, "/api/v1/analyze/text", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid JSON body")

	rec = postText(t, s, "/api/v1/analyze/text", `{"text":"Sugars: 5g","age":-3}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid age")
}

func TestAnalyzeTextHandler_CanceledIsUnprocessable(t *testing.T) {
	s := newTestServer(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze/text", strings.NewReader(`{"text":"Sugars: 5g"}`)).WithContext(ctx)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	r := decodeReport(t, rec)
	assert.Equal(t, report.MessageError, r.Message)
	assert.NotEmpty(t, r.Error)
}

func TestHistoryHandlers(t *testing.T) {
	store := newTestStore(t)
	s := newTestServer(t, store)
	h := s.Handler()

	var ids []string
	for _, text := range []string{labelText, "Sugars: 5g"} {
		body, err := json.Marshal(TextRequest{Text: text})
		require.NoError(t, err)
		rec := postText(t, s, "/api/v1/analyze/text", string(body))
		require.Equal(t, http.StatusOK, rec.Code)
		ids = append(ids, decodeReport(t, rec).ID)
	}

	t.Run("list", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/history", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var resp HistoryResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 2, resp.Count)
		assert.ElementsMatch(t, ids, []string{resp.Records[0].ID, resp.Records[1].ID})
	})

	t.Run("list with limit", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/history?limit=1", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var resp HistoryResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 1, resp.Count)
	})

	t.Run("invalid limit", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/history?limit=abc", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("get", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/history/"+ids[0], nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var got history.Record
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, ids[0], got.ID)
		assert.Equal(t, nutrition.OutcomeComplete, got.Outcome)
		require.NotNil(t, got.TotalSugar)
		assert.InDelta(t, 15, *got.TotalSugar, 0.01)
	})

	t.Run("get unknown", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/history/does-not-exist", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("export", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/history/export.xlsx", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "nutrigood-history-")
		// XLSX files are zip archives.
		assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))
	})

	t.Run("method not allowed", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/history", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestHistoryHandlers_Disabled(t *testing.T) {
	s := newTestServer(t, nil)
	for _, path := range []string{"/api/v1/history", "/api/v1/history/abc", "/api/v1/history/export.xlsx"} {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, path)
		assert.Contains(t, rec.Body.String(), "History is disabled")
	}
}

func TestParseAttributes(t *testing.T) {
	attrs, err := parseAttributes(" 42 ", "")
	require.NoError(t, err)
	require.NotNil(t, attrs.Age)
	assert.InDelta(t, 42, *attrs.Age, 1e-9)
	assert.Nil(t, attrs.Weight)

	_, err = parseAttributes("", "heavy")
	require.ErrorContains(t, err, `invalid weight: "heavy"`)
}

func ptr(v float64) *float64 { return &v }
