package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/duybaohuynhtan/CareerAgent/internal/ai"
	"github.com/duybaohuynhtan/CareerAgent/internal/document"
	"github.com/duybaohuynhtan/CareerAgent/internal/jobs"
	"github.com/duybaohuynhtan/CareerAgent/internal/session"
	"github.com/duybaohuynhtan/CareerAgent/internal/tools"
)

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := errorResponse{Message: message}
	if err != nil {
		resp.Error = err.Error()
	}
	writeJSON(w, status, resp)
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, ai.ErrUnsupportedModel):
		return http.StatusBadRequest
	case errors.Is(err, document.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, document.ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, document.ErrUnreadableDocument), errors.Is(err, document.ErrEmptyDocument):
		return http.StatusUnprocessableEntity
	case errors.Is(err, tools.ErrAnalysisFailed),
		errors.Is(err, ai.ErrBackendUnavailable),
		errors.Is(err, jobs.ErrBackendUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
