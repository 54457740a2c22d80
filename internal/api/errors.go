package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"gwi.com/support-chatbot/internal/domain"
)

type errorResponse struct {
	Error          string `json:"error"`
	ConversationID int64  `json:"conversation_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// statusFor maps the error taxonomy onto HTTP. The message is safe to show
// to clients: stage errors render without their provider cause.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrTenantIsolationViolation):
		return http.StatusInternalServerError, "internal server error"
	case errors.Is(err, domain.ErrUnsupportedFormat),
		errors.Is(err, domain.ErrInvalidDocument),
		errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrConversationNotFound),
		errors.Is(err, domain.ErrDocumentNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrConversationClosed),
		errors.Is(err, domain.ErrNothingToRetry):
		return http.StatusConflict, err.Error()
	case errors.Is(err, domain.ErrEmbedding),
		errors.Is(err, domain.ErrRetrieval),
		errors.Is(err, domain.ErrGeneration):
		if domain.IsTimeout(err) {
			return http.StatusGatewayTimeout, err.Error()
		}
		return http.StatusBadGateway, err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "request timed out"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// writeError logs server-side failures with their full cause and writes
// the client-safe rendering.
func writeError(w http.ResponseWriter, r *http.Request, err error, conversationID int64) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Printf("[%s] %s %s failed: %s", middleware.GetReqID(r.Context()), r.Method, r.URL.Path, domain.Describe(err))
	}
	writeJSON(w, status, errorResponse{Error: msg, ConversationID: conversationID})
}
