// Package api provides HTTP handlers for the relay API.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ashureev/lexrelay/internal/domain"
	"github.com/ashureev/lexrelay/internal/shared"
	"github.com/go-chi/chi/v5/middleware"
)

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// errorWithDetail writes {"error": code, "detail": detail}.
func errorWithDetail(w http.ResponseWriter, status int, code, detail string) {
	JSON(w, status, map[string]string{"error": code, "detail": detail})
}

// decodeJSON reads a size-limited JSON body into v. It writes the error
// response itself and reports whether decoding succeeded.
func decodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		Error(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// writeServiceError maps domain errors onto HTTP status codes.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, detailMaxLen int) {
	var (
		validation *domain.ValidationError
		notFound   *domain.NotFoundError
		generation *domain.GenerationError
	)

	switch {
	case errors.As(err, &validation):
		Error(w, http.StatusBadRequest, validation.Error())
	case errors.As(err, &notFound):
		Error(w, http.StatusNotFound, notFound.Error())
	case errors.Is(err, domain.ErrNotFound):
		Error(w, http.StatusNotFound, "not found")
	case errors.As(err, &generation):
		errorWithDetail(w, http.StatusBadGateway, "generation_failed", generation.Detail)
	case errors.Is(err, domain.ErrInvalidArgument):
		Error(w, http.StatusBadRequest, "invalid argument")
	default:
		slog.Error("Request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err)
		errorWithDetail(w, http.StatusInternalServerError, "server_error", shared.Truncate(err.Error(), detailMaxLen))
	}
}

// errorCode returns the short error code used in WebSocket error frames.
func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrGenerationFailed):
		return "generation_failed"
	default:
		return "server_error"
	}
}

// errorDetail returns the client-facing description of err.
func errorDetail(err error, maxLen int) string {
	var generation *domain.GenerationError
	if errors.As(err, &generation) {
		return generation.Detail
	}
	var validation *domain.ValidationError
	if errors.As(err, &validation) {
		return validation.Error()
	}
	var notFound *domain.NotFoundError
	if errors.As(err, &notFound) {
		return notFound.Error()
	}
	return shared.Truncate(err.Error(), maxLen)
}
