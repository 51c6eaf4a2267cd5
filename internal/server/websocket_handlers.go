package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/MeKo-Tech/nutrigood/internal/classifier"
	"github.com/MeKo-Tech/nutrigood/internal/preprocess"
	"github.com/MeKo-Tech/nutrigood/internal/report"
	"github.com/MeKo-Tech/nutrigood/internal/utils"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// WebSocket upgrader with reasonable defaults.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketAnalyzeRequest is one analysis request over the socket. Image is
// base64 in JSON.
type WebSocketAnalyzeRequest struct {
	Type     string   `json:"type"` // "text" or "image"
	Text     string   `json:"text,omitempty"`
	Image    []byte   `json:"image,omitempty"`
	Filename string   `json:"filename,omitempty"`
	Age      *float64 `json:"age,omitempty"`
	Weight   *float64 `json:"weight,omitempty"`
}

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// WebSocketAnalyzeResponse is sent for every state change of a request.
type WebSocketAnalyzeResponse struct {
	Type      string  `json:"type"`
	Status    string  `json:"status"` // "processing", "completed", "error"
	Progress  float64 `json:"progress,omitempty"`
	Result    any     `json:"result,omitempty"`
	Error     string  `json:"error,omitempty"`
	ErrorType string  `json:"error_type,omitempty"`
	RequestID string  `json:"request_id,omitempty"`
}

const wsResponseType = "analysis_response"

// analyzeWebSocketHandler handles WebSocket connections for streaming analysis.
func (s *Server) analyzeWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	slog.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)
	s.handleWebSocketConnection(r.Context(), conn)
}

// handleWebSocketConnection processes messages until the client disconnects.
func (s *Server) handleWebSocketConnection(ctx context.Context, conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Error("WebSocket error", "error", err)
			}
			return
		}
		websocketMessagesTotal.WithLabelValues("received").Inc()
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))

		if messageType == websocket.TextMessage {
			s.handleWebSocketMessage(ctx, conn, data)
		}
	}
}

// handleWebSocketMessage analyzes one request and answers on conn.
func (s *Server) handleWebSocketMessage(ctx context.Context, conn WebSocketConnWriter, data []byte) {
	var req WebSocketAnalyzeRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendWebSocketError(conn, "", "invalid_request", fmt.Sprintf("Failed to parse request: %v", err))
		return
	}
	attrs := classifier.Attributes{Age: req.Age, Weight: req.Weight}
	if err := validateAttributes(attrs); err != nil {
		s.sendWebSocketError(conn, "", "invalid_request", err.Error())
		return
	}

	requestID := uuid.NewString()
	s.sendWebSocketResponse(conn, WebSocketAnalyzeResponse{
		Type:      wsResponseType,
		Status:    "processing",
		RequestID: requestID,
	})

	ctx, cancel := context.WithTimeout(ctx, time.Duration(s.timeoutSec)*time.Second)
	defer cancel()

	switch req.Type {
	case "text":
		rep, err := s.analyzeText(ctx, "websocket_text", req.Text, attrs)
		s.completeWebSocketRequest(conn, requestID, rep, err)
	case "image":
		if len(req.Image) == 0 {
			s.sendWebSocketError(conn, requestID, "invalid_request", "No image data provided")
			return
		}
		if int64(len(req.Image)) > s.maxUploadMB*1024*1024 {
			s.sendWebSocketError(conn, requestID, "invalid_request", "Image too large")
			return
		}
		img, _, err := utils.DecodeImage(bytes.NewReader(req.Image))
		if err != nil {
			analysisRequestsTotal.WithLabelValues("websocket_image", "error").Inc()
			err = &preprocess.InvalidImageError{Reason: "unsupported image format", Err: err}
			s.completeWebSocketRequest(conn, requestID, report.Failed(req.Filename, err, 0), err)
			return
		}
		s.sendWebSocketResponse(conn, WebSocketAnalyzeResponse{
			Type:      wsResponseType,
			Status:    "processing",
			Progress:  0.5,
			RequestID: requestID,
		})
		rep, err := s.analyzeImage(ctx, "websocket_image", req.Filename, img, attrs)
		s.completeWebSocketRequest(conn, requestID, rep, err)
	default:
		s.sendWebSocketError(conn, requestID, "invalid_request", "Unsupported request type: "+req.Type)
	}
}

func (s *Server) completeWebSocketRequest(conn WebSocketConnWriter, requestID string, rep *report.Report, err error) {
	if err != nil {
		resp := WebSocketAnalyzeResponse{
			Type:      wsResponseType,
			Status:    "error",
			Error:     err.Error(),
			ErrorType: "processing_error",
			RequestID: requestID,
		}
		if rep != nil {
			resp.Result = rep
		}
		s.sendWebSocketResponse(conn, resp)
		return
	}
	s.sendWebSocketResponse(conn, WebSocketAnalyzeResponse{
		Type:      wsResponseType,
		Status:    "completed",
		Progress:  1.0,
		Result:    rep,
		RequestID: requestID,
	})
}

// sendWebSocketResponse sends a response message over WebSocket.
func (s *Server) sendWebSocketResponse(conn WebSocketConnWriter, response WebSocketAnalyzeResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		slog.Error("Failed to marshal WebSocket response", "error", err)
		return
	}

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Error("Failed to send WebSocket message", "error", err)
		return
	}

	websocketMessagesTotal.WithLabelValues("sent").Inc()
}

// sendWebSocketError sends an error message over WebSocket.
func (s *Server) sendWebSocketError(conn WebSocketConnWriter, requestID, errorType, message string) {
	s.sendWebSocketResponse(conn, WebSocketAnalyzeResponse{
		Type:      "error",
		Status:    "error",
		Error:     message,
		ErrorType: errorType,
		RequestID: requestID,
	})
}
