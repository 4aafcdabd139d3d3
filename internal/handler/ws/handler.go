// Package ws serves the chat pipeline over a WebSocket, reporting the
// "working" state of each turn before its result.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	chatmodel "github.com/zhouzirui/kids-tutor/backend/internal/model/chat"
	chatservice "github.com/zhouzirui/kids-tutor/backend/internal/service/chat"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	writeTimeout = 10 * time.Second
)

// Handler upgrades session connections and runs one turn per inbound frame.
type Handler struct {
	chatSvc  *chatservice.Service
	upgrader websocket.Upgrader
}

// New 创建WebSocket处理器
func New(chatSvc *chatservice.Service) *Handler {
	return &Handler{
		chatSvc: chatSvc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/sessions/{sessionID}/ws", h.handleWebSocket)
}

type inboundMessage struct {
	Text string `json:"text"`
}

// Frame is every message the server sends.
type Frame struct {
	Event     string           `json:"event"`
	SessionID string           `json:"sessionId,omitempty"`
	State     string           `json:"state,omitempty"`
	Turns     []chatmodel.Turn `json:"turns,omitempty"`
	Kind      string           `json:"kind,omitempty"`
	Error     string           `json:"error,omitempty"`
	Timestamp int64            `json:"timestamp"`
}

const (
	EventConnected  = "connected"
	EventStatus     = "status"
	EventTranscript = "transcript"
	EventError      = "error"
)

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	logger := zerolog.Ctx(r.Context()).With().Str("session", sessionID).Logger()

	transcript, err := h.chatSvc.LoadTranscript(r.Context(), sessionID)
	if err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	out := &frameWriter{conn: conn, sessionID: sessionID, logger: logger}

	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})
	go out.pingLoop(ctx)

	out.send(Frame{Event: EventConnected, Turns: transcript})
	logger.Info().Msg("websocket connected")

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn().Err(err).Msg("websocket read failed")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Debug().Err(err).Msg("malformed websocket frame")
			out.send(Frame{
				Event: EventError,
				Kind:  string(chatservice.KindInputRejected),
				Error: "invalid message: " + err.Error(),
			})
			continue
		}

		// The renderer already delivered the outcome, success or failure.
		_, _ = h.chatSvc.Submit(ctx, sessionID, msg.Text, out)
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	}
}

// frameWriter renders turn progress onto the connection.
type frameWriter struct {
	mu        sync.Mutex
	conn      *websocket.Conn
	sessionID string
	logger    zerolog.Logger
}

func (f *frameWriter) Working(state chatservice.State) {
	f.send(Frame{Event: EventStatus, State: string(state)})
}

func (f *frameWriter) Render(turns []chatmodel.Turn) {
	f.send(Frame{Event: EventTranscript, Turns: turns})
}

func (f *frameWriter) Fail(err error) {
	f.send(Frame{Event: EventError, Kind: string(chatservice.Classify(err)), Error: err.Error()})
}

func (f *frameWriter) send(frame Frame) {
	frame.SessionID = f.sessionID
	frame.Timestamp = time.Now().Unix()

	f.mu.Lock()
	defer f.mu.Unlock()
	_ = f.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := f.conn.WriteJSON(frame); err != nil {
		f.logger.Warn().Err(err).Str("event", frame.Event).Msg("websocket write failed")
	}
}

func (f *frameWriter) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.mu.Lock()
			err := f.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
			f.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
