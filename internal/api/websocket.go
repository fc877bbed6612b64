package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/ashureev/lexrelay/internal/chat"
	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
)

const wsWriteTimeout = 10 * time.Second

// TurnSocketHandler runs turns over a WebSocket bound to one chat.
// Frames are handled one at a time, so turns on a connection never overlap.
type TurnSocketHandler struct {
	svc            *chat.Service
	sockets        *SocketRegistry
	allowedOrigins []string
	readLimit      int64
	detailMaxLen   int
}

// NewTurnSocketHandler creates a WebSocket turn handler.
func NewTurnSocketHandler(svc *chat.Service, sockets *SocketRegistry, allowedOrigins []string, readLimit int64, detailMaxLen int) *TurnSocketHandler {
	return &TurnSocketHandler{
		svc:            svc,
		sockets:        sockets,
		allowedOrigins: allowedOrigins,
		readLimit:      readLimit,
		detailMaxLen:   detailMaxLen,
	}
}

// wsFrame is both the client and the server frame shape.
type wsFrame struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *TurnSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")
	slog.Info("WebSocket connection request", "chat_id", chatID, "ip", r.RemoteAddr)

	if !h.checkOrigin(r) {
		Error(w, http.StatusForbidden, "origin not allowed")
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "chat_id", chatID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "chat_id", chatID)
		}
	}()
	if h.readLimit > 0 {
		ws.SetReadLimit(h.readLimit)
	}

	connID := h.sockets.Register(chatID, ws)
	defer h.sockets.Unregister(chatID, connID)

	h.readLoop(r.Context(), ws, chatID)
	slog.Info("WebSocket session ended", "chat_id", chatID)
}

func (h *TurnSocketHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || slices.Contains(h.allowedOrigins, "*") || slices.Contains(h.allowedOrigins, origin) {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin)
	return false
}

func (h *TurnSocketHandler) readLoop(ctx context.Context, ws *websocket.Conn, chatID string) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client", "chat_id", chatID)
			} else {
				slog.Warn("WebSocket read error", "error", err, "chat_id", chatID)
			}
			return
		}

		var frame wsFrame
		if err := json.Unmarshal(data, &frame); err != nil || frame.Type != "message" {
			if err := h.writeJSON(ws, wsFrame{Type: "error", Error: "invalid_argument", Detail: "expected a message frame"}); err != nil {
				return
			}
			continue
		}

		reply := wsFrame{Type: "reply"}
		res, err := h.svc.SubmitTurn(ctx, chatID, frame.Content)
		if err != nil {
			reply = wsFrame{Type: "error", Error: errorCode(err), Detail: errorDetail(err, h.detailMaxLen)}
			if reply.Error == "server_error" {
				slog.Error("WebSocket turn failed", "chat_id", chatID, "error", err)
			}
		} else {
			reply.Content = res.Reply
		}

		if err := h.writeJSON(ws, reply); err != nil {
			slog.Debug("Failed to write WebSocket frame", "error", err, "chat_id", chatID)
			return
		}
	}
}

func (h *TurnSocketHandler) writeJSON(ws *websocket.Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), wsWriteTimeout)
	defer cancel()
	return ws.Write(ctx, websocket.MessageText, data)
}
