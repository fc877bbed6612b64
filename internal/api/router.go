package api

import (
	"net/http"

	"github.com/ashureev/lexrelay/internal/chat"
	"github.com/ashureev/lexrelay/internal/config"
	"github.com/ashureev/lexrelay/internal/middleware"
	"github.com/ashureev/lexrelay/internal/store"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// NewRouter wires every route and the global middleware chain.
func NewRouter(cfg *config.Config, repo store.Repository, svc *chat.Service) http.Handler {
	maxLen := cfg.Turns.DiagnosticMaxLen

	r := chi.NewRouter()

	// CORS runs outside Recover so panics still carry CORS headers.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(middleware.Recover(maxLen))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		Error(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		Error(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	NewHealthHandler(repo, svc, cfg).RegisterRoutes(r)
	sockets := NewSocketRegistry()
	chats := NewChatHandler(svc, cfg.MaxRequestBodySize, maxLen)
	chats.sockets = sockets
	chats.socket = NewTurnSocketHandler(svc, sockets, cfg.AllowedOrigins, cfg.MaxRequestBodySize, maxLen)
	chats.RegisterRoutes(r)

	return r
}
