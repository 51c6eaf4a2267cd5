package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockConn records every message written to it.
type mockConn struct {
	mu       sync.Mutex
	messages []WebSocketAnalyzeResponse
	err      error
}

func (m *mockConn) WriteMessage(_ int, data []byte) error {
	if m.err != nil {
		return m.err
	}
	var resp WebSocketAnalyzeResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, resp)
	return nil
}

func (m *mockConn) last(t *testing.T) WebSocketAnalyzeResponse {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.messages)
	return m.messages[len(m.messages)-1]
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func TestHandleWebSocketMessage_Text(t *testing.T) {
	s := newTestServer(t, nil)
	conn := &mockConn{}

	s.handleWebSocketMessage(context.Background(), conn, mustJSON(t, WebSocketAnalyzeRequest{Type: "text", Text: labelText}))

	require.Len(t, conn.messages, 2)
	assert.Equal(t, "processing", conn.messages[0].Status)
	assert.NotEmpty(t, conn.messages[0].RequestID)

	done := conn.last(t)
	assert.Equal(t, wsResponseType, done.Type)
	assert.Equal(t, "completed", done.Status)
	assert.InDelta(t, 1.0, done.Progress, 1e-9)
	assert.Equal(t, conn.messages[0].RequestID, done.RequestID)

	result, ok := done.Result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "complete", result["outcome"])
}

func TestHandleWebSocketMessage_Image(t *testing.T) {
	s := newTestServer(t, nil)
	conn := &mockConn{}

	s.handleWebSocketMessage(context.Background(), conn,
		mustJSON(t, WebSocketAnalyzeRequest{Type: "image", Image: labelPNG(t), Filename: "scan.png"}))

	require.Len(t, conn.messages, 3)
	assert.InDelta(t, 0.5, conn.messages[1].Progress, 1e-9)
	done := conn.last(t)
	assert.Equal(t, "completed", done.Status)
	result, ok := done.Result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "scan.png", result["source"])
}

func TestHandleWebSocketMessage_Errors(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name      string
		data      []byte
		errorType string
		message   string
	}{
		{name: "invalid json", data: []byte("{"), errorType: "invalid_request", message: "Failed to parse request"},
		{name: "negative age", data: []byte(`{"type":"text","age":-1}`), errorType: "invalid_request", message: "invalid age"},
		{name: "unknown type", data: []byte(`{"type":"video"}`), errorType: "invalid_request", message: "Unsupported request type: video"},
		{name: "empty image", data: []byte(`{"type":"image"}`), errorType: "invalid_request", message: "No image data provided"},
		{
			name:      "undecodable image",
			data:      mustJSON(t, WebSocketAnalyzeRequest{Type: "image", Image: []byte("nope")}),
			errorType: "processing_error",
			message:   "unsupported image format",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := &mockConn{}
			s.handleWebSocketMessage(context.Background(), conn, tt.data)

			resp := conn.last(t)
			assert.Equal(t, "error", resp.Status)
			assert.Equal(t, tt.errorType, resp.ErrorType)
			assert.Contains(t, resp.Error, tt.message)
		})
	}
}

func TestHandleWebSocketMessage_UndecodableImageCarriesReport(t *testing.T) {
	s := newTestServer(t, nil)
	conn := &mockConn{}
	s.handleWebSocketMessage(context.Background(), conn,
		mustJSON(t, WebSocketAnalyzeRequest{Type: "image", Image: []byte("nope"), Filename: "bad.png"}))

	resp := conn.last(t)
	result, ok := resp.Result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Error", result["message"])
	assert.Equal(t, "bad.png", result["source"])
	assert.Equal(t, map[string]any{}, result["nutrition_info"])
}

func TestHandleWebSocketMessage_Canceled(t *testing.T) {
	s := newTestServer(t, nil)
	conn := &mockConn{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.handleWebSocketMessage(ctx, conn, mustJSON(t, WebSocketAnalyzeRequest{Type: "text", Text: labelText}))

	resp := conn.last(t)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "processing_error", resp.ErrorType)
	result, ok := resp.Result.(map[string]any)
	require.True(t, ok, "the fatal report is attached")
	assert.Equal(t, "Error", result["message"])
}

func TestSendWebSocketResponse_WriteFailure(t *testing.T) {
	s := newTestServer(t, nil)
	conn := &mockConn{err: errors.New("broken pipe")}
	s.sendWebSocketError(conn, "id", "invalid_request", "x")
	assert.Empty(t, conn.messages)
}

func TestAnalyzeWebSocketHandler(t *testing.T) {
	s := newTestServer(t, nil)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/analyze"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	_ = resp.Body.Close()

	require.NoError(t, conn.WriteJSON(WebSocketAnalyzeRequest{Type: "text", Text: "Takaran saji 2\nGula 10g"}))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(10*time.Second)))

	var got []WebSocketAnalyzeResponse
	for len(got) == 0 || got[len(got)-1].Status == "processing" {
		var msg WebSocketAnalyzeResponse
		require.NoError(t, conn.ReadJSON(&msg))
		got = append(got, msg)
	}
	done := got[len(got)-1]
	assert.Equal(t, "completed", done.Status)
	result, ok := done.Result.(map[string]any)
	require.True(t, ok)
	info, ok := result["nutrition_info"].(map[string]any)
	require.True(t, ok)
	assert.InDelta(t, 20.0, info["total_sugar"], 0.01)
}
