// Package handlers provides the REST surface of the player server.
package handlers

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/retroplay/backend/internal/errors"
	"github.com/retroplay/backend/internal/logging"
)

// errorResponse is the uniform error body.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		if err := json.NewEncoder(w).Encode(body); err != nil {
			logging.Error("failed to encode response", err)
		}
	}
}

// writeError maps the error taxonomy onto HTTP statuses. Raw storage errors
// never reach here; the repository wraps everything it returns.
func writeError(w http.ResponseWriter, err error) {
	code := apperrors.CodeOf(err)
	status := http.StatusInternalServerError
	switch code {
	case apperrors.ErrInvalid, apperrors.ErrImportFailed:
		status = http.StatusBadRequest
	case apperrors.ErrNotFound:
		status = http.StatusNotFound
	case apperrors.ErrStorageUnavailable:
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		logging.Error("request failed", err)
	}
	writeJSON(w, status, errorResponse{Code: string(code), Message: err.Error()})
}
