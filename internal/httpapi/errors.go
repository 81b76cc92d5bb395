package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"scoped/internal/manager"
	"scoped/internal/session"
	"scoped/pkg/types"
)

// errPipelineNotLoaded is returned to offers made while no pipeline is loaded.
const errPipelineNotLoaded = "Pipeline not loaded. Please load pipeline first."

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	var he HTTPError
	switch {
	case manager.IsNotFound(err), session.IsSessionNotFound(err):
		return http.StatusNotFound
	case session.IsNegotiationFailure(err):
		return http.StatusBadRequest
	case manager.IsResourceUnavailable(err),
		errors.Is(err, manager.ErrClosed),
		errors.Is(err, session.ErrShuttingDown):
		return http.StatusServiceUnavailable
	case errors.As(err, &he):
		return he.StatusCode()
	}
	return http.StatusInternalServerError
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
