package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/ashureev/lexrelay/internal/chat"
	"github.com/go-chi/chi/v5"
)

// ChatHandler serves chat and message endpoints.
type ChatHandler struct {
	svc          *chat.Service
	maxBodyBytes int64
	detailMaxLen int
	socket       *TurnSocketHandler
	sockets      *SocketRegistry
}

// NewChatHandler creates a chat handler.
func NewChatHandler(svc *chat.Service, maxBodyBytes int64, detailMaxLen int) *ChatHandler {
	return &ChatHandler{svc: svc, maxBodyBytes: maxBodyBytes, detailMaxLen: detailMaxLen}
}

// RegisterRoutes registers chat routes.
func (h *ChatHandler) RegisterRoutes(r chi.Router) {
	r.Route("/chats", func(r chi.Router) {
		r.Get("/", h.ListChats)
		r.Post("/", h.CreateChat)
		r.Route("/{chatID}", func(r chi.Router) {
			r.Patch("/", h.RenameChat)
			r.Delete("/", h.DeleteChat)
			r.Get("/messages", h.ListMessages)
			r.Post("/messages", h.SendMessage)
			if h.socket != nil {
				r.Get("/ws", h.socket.ServeHTTP)
			}
		})
	})
}

type createChatRequest struct {
	Name     string  `json:"nombre_chat"`
	UserID   *string `json:"user_id"`
	UserName *string `json:"nombre"`
	Email    *string `json:"email"`
	Context  *string `json:"contexto"`
}

type renameChatRequest struct {
	Name string `json:"nombre_chat"`
}

type sendMessageRequest struct {
	Message string `json:"message"`
}

// ListChats returns the chats owned by ?user_id=.
func (h *ChatHandler) ListChats(w http.ResponseWriter, r *http.Request) {
	chats, err := h.svc.ListChats(r.Context(), r.URL.Query().Get("user_id"))
	if err != nil {
		writeServiceError(w, r, err, h.detailMaxLen)
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"chats": chats})
}

// CreateChat creates a chat, resolving or creating its owner.
func (h *ChatHandler) CreateChat(w http.ResponseWriter, r *http.Request) {
	var req createChatRequest
	if !decodeJSON(w, r, h.maxBodyBytes, &req) {
		return
	}

	created, userID, err := h.svc.CreateChat(r.Context(), chat.CreateChatInput{
		Name:        req.Name,
		UserID:      req.UserID,
		DisplayName: req.UserName,
		Email:       req.Email,
		Context:     req.Context,
	})
	if err != nil {
		writeServiceError(w, r, err, h.detailMaxLen)
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"chat": created, "user_id": userID})
}

// RenameChat updates a chat's name.
func (h *ChatHandler) RenameChat(w http.ResponseWriter, r *http.Request) {
	var req renameChatRequest
	if !decodeJSON(w, r, h.maxBodyBytes, &req) {
		return
	}

	renamed, err := h.svc.RenameChat(r.Context(), chi.URLParam(r, "chatID"), req.Name)
	if err != nil {
		writeServiceError(w, r, err, h.detailMaxLen)
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"chat": renamed})
}

// DeleteChat removes a chat and its messages.
func (h *ChatHandler) DeleteChat(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")
	if err := h.svc.DeleteChat(r.Context(), chatID); err != nil {
		writeServiceError(w, r, err, h.detailMaxLen)
		return
	}
	if h.sockets != nil {
		h.sockets.CloseChat(chatID)
	}
	JSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// ListMessages returns the chat history window selected by ?limit=.
func (h *ChatHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	var limit *int
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			Error(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = &n
	}

	msgs, err := h.svc.ReadMessages(r.Context(), chi.URLParam(r, "chatID"), limit)
	if err != nil {
		writeServiceError(w, r, err, h.detailMaxLen)
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"messages": msgs})
}

// SendMessage runs one turn and returns the reply text.
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if !decodeJSON(w, r, h.maxBodyBytes, &req) {
		return
	}

	chatID := chi.URLParam(r, "chatID")
	res, err := h.svc.SubmitTurn(r.Context(), chatID, req.Message)
	if err != nil {
		writeServiceError(w, r, err, h.detailMaxLen)
		return
	}
	if res.Fallback {
		slog.Info("Replied with demo fallback", "chat_id", chatID)
	}
	JSON(w, http.StatusOK, map[string]string{"respuesta": res.Reply})
}
