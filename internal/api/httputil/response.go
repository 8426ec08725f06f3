// Package httputil writes the JSON envelopes shared by handlers and middleware.
package httputil

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/Fantasim/hdwallet/internal/models"
)

// JSON writes data in the standard {"data": ...} envelope.
func JSON(w http.ResponseWriter, status int, data any) {
	write(w, status, models.APIResponse{Data: data})
}

// JSONList writes a page of data with pagination metadata.
func JSONList(w http.ResponseWriter, data any, page, pageSize int, total int64, elapsedMs int64) {
	write(w, http.StatusOK, models.APIResponse{
		Data: data,
		Meta: &models.APIMeta{
			Page:          page,
			PageSize:      pageSize,
			Total:         total,
			ExecutionTime: elapsedMs,
		},
	})
}

// Error writes an error response with the given status code, error code, and message.
func Error(w http.ResponseWriter, status int, code, message string) {
	write(w, status, models.APIError{
		Error: models.APIErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

func write(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}
