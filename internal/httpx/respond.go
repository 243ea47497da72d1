// Package httpx holds the JSON response helpers and middleware shared by the
// order, menu and auth handlers.
package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"restaurant-system/internal/logger"
	"restaurant-system/internal/models"
)

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error     string `json:"error"`
	Field     string `json:"field,omitempty"`
	Timestamp string `json:"timestamp"`
	RequestID string `json:"request_id"`
}

// WriteJSON writes v with the given status code
func WriteJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// WriteError writes an error response in JSON format
func WriteError(w http.ResponseWriter, r *http.Request, statusCode int, message string) {
	WriteJSON(w, statusCode, ErrorResponse{
		Error:     message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		RequestID: RequestID(r.Context()),
	})
}

// WriteValidationError maps a models.ValidationError to 400 and keeps its field.
// Other errors become 500 with a generic message and are logged.
func WriteValidationError(w http.ResponseWriter, r *http.Request, log *logger.Logger, err error) {
	var verr models.ValidationError
	if errors.As(err, &verr) {
		WriteJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:     verr.Message,
			Field:     verr.Field,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			RequestID: RequestID(r.Context()),
		})
		return
	}
	log.Error("request_failed", "Unhandled error", RequestID(r.Context()), err, map[string]interface{}{
		"path": r.URL.Path,
	})
	WriteError(w, r, http.StatusInternalServerError, "Internal server error")
}

// DecodeJSON decodes a JSON body, rejecting unknown fields
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return models.ValidationError{Message: "Invalid JSON format"}
	}
	return nil
}
