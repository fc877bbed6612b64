package middleware

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/ashureev/lexrelay/internal/shared"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// Recover turns a panic into the JSON 500 shape used by every handler.
// Headers already set upstream, such as CORS, are kept.
func Recover(detailMaxLen int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				//nolint:errorlint,err113 // http.ErrAbortHandler must keep aborting the connection.
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				slog.Error("Handler panicked",
					"panic", rec,
					"path", r.URL.Path,
					"request_id", chiMiddleware.GetReqID(r.Context()),
					"stack", string(debug.Stack()))

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"error":  "server_error",
					"detail": shared.Truncate(fmt.Sprint(rec), detailMaxLen),
				})
			}()

			next.ServeHTTP(w, r)
		})
	}
}
