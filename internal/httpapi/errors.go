package httpapi

import (
	"encoding/json"
	"net/http"

	"localllm/internal/completer"
	"localllm/internal/engine"
	"localllm/pkg/types"
)

// statusFor maps completer and engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case completer.IsNotLoaded(err), engine.IsDependencyUnavailable(err):
		return http.StatusServiceUnavailable
	case completer.IsTooBusy(err):
		return http.StatusTooManyRequests
	case completer.IsInvalidRequest(err):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}
