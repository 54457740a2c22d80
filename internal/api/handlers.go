package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"gwi.com/support-chatbot/internal/auth"
	"gwi.com/support-chatbot/internal/core"
	"gwi.com/support-chatbot/internal/domain"
)

type APIHandler struct {
	chatService      *core.ChatService
	documentService  *core.DocumentService
	analyticsService *core.AnalyticsService
	tokens           *auth.TokenIssuer
	maxUploadBytes   int64
}

func NewAPIHandler(cs *core.ChatService, ds *core.DocumentService, as *core.AnalyticsService, tokens *auth.TokenIssuer, maxUploadBytes int64) *APIHandler {
	return &APIHandler{
		chatService:      cs,
		documentService:  ds,
		analyticsService: as,
		tokens:           tokens,
		maxUploadBytes:   maxUploadBytes,
	}
}

type contextKey struct{}

var identityKey = contextKey{}

// IdentityFrom returns the verified caller stored by JWTAuthMiddleware.
func IdentityFrom(ctx context.Context) (domain.Identity, bool) {
	id, ok := ctx.Value(identityKey).(domain.Identity)
	return id, ok
}

func (h *APIHandler) JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeMessage(w, http.StatusUnauthorized, "Authorization header is required")
			return
		}

		tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok {
			writeMessage(w, http.StatusUnauthorized, "Authorization header must use the Bearer scheme")
			return
		}
		id, err := h.tokens.ValidateJWT(tokenString)
		if err != nil {
			writeMessage(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), identityKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func identity(r *http.Request) domain.Identity {
	id, _ := IdentityFrom(r.Context())
	return id
}

func idParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeMessage(w, http.StatusBadRequest, "Invalid "+name)
		return 0, false
	}
	return id, true
}

const maxPageSize = 200

func queryInt(r *http.Request, name string, def int) int {
	if v, err := strconv.Atoi(r.URL.Query().Get(name)); err == nil && v >= 0 {
		return v
	}
	return def
}

// pageLimit reads ?limit, clamped to maxPageSize.
func pageLimit(r *http.Request) int {
	return min(queryInt(r, "limit", 50), maxPageSize)
}

func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Chat

func (h *APIHandler) ChatMessageHandler(w http.ResponseWriter, r *http.Request) {
	var req core.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeMessage(w, http.StatusBadRequest, "Message cannot be empty")
		return
	}

	resp, err := h.chatService.ProcessMessage(r.Context(), identity(r), req)
	if err != nil {
		var convID int64
		if resp != nil {
			convID = resp.ConversationID
		}
		writeError(w, r, err, convID)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// RetryMessageHandler answers the conversation's last unanswered message
// again after a failed attempt.
func (h *APIHandler) RetryMessageHandler(w http.ResponseWriter, r *http.Request) {
	convID, ok := idParam(w, r, "conversationID")
	if !ok {
		return
	}
	resp, err := h.chatService.RetryLastMessage(r.Context(), identity(r), convID)
	if err != nil {
		writeError(w, r, err, convID)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *APIHandler) ListConversationsHandler(w http.ResponseWriter, r *http.Request) {
	convs, err := h.chatService.ListConversations(r.Context(), identity(r), pageLimit(r), queryInt(r, "offset", 0))
	if err != nil {
		writeError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, convs)
}

func (h *APIHandler) ConversationMessagesHandler(w http.ResponseWriter, r *http.Request) {
	convID, ok := idParam(w, r, "conversationID")
	if !ok {
		return
	}
	messages, err := h.chatService.GetMessages(r.Context(), identity(r), convID)
	if err != nil {
		writeError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

func (h *APIHandler) CloseConversationHandler(w http.ResponseWriter, r *http.Request) {
	convID, ok := idParam(w, r, "conversationID")
	if !ok {
		return
	}
	if err := h.chatService.CloseConversation(r.Context(), identity(r), convID); err != nil {
		writeError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Conversation closed"})
}

func (h *APIHandler) ArchiveConversationHandler(w http.ResponseWriter, r *http.Request) {
	convID, ok := idParam(w, r, "conversationID")
	if !ok {
		return
	}
	if err := h.chatService.ArchiveConversation(r.Context(), identity(r), convID); err != nil {
		writeError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Conversation archived"})
}

type RatingRequest struct {
	Rating int `json:"rating"`
}

func (h *APIHandler) RateConversationHandler(w http.ResponseWriter, r *http.Request) {
	convID, ok := idParam(w, r, "conversationID")
	if !ok {
		return
	}
	var req RatingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.chatService.RateConversation(r.Context(), identity(r), convID, req.Rating); err != nil {
		writeError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Rating saved"})
}

// Documents

type UploadResponse struct {
	Message       string `json:"message"`
	DocumentID    int64  `json:"document_id"`
	ChunksCreated int    `json:"chunks_created"`
}

func (h *APIHandler) UploadDocumentHandler(w http.ResponseWriter, r *http.Request) {
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+1<<20) // room for multipart framing
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeMessage(w, http.StatusRequestEntityTooLarge, "File is too large")
			return
		}
		writeMessage(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Form field 'file' is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		log.Printf("Error reading upload %s: %v", header.Filename, err)
		writeMessage(w, http.StatusBadRequest, "Failed to read uploaded file")
		return
	}

	doc, err := h.documentService.Ingest(r.Context(), identity(r), header.Filename, r.FormValue("file_type"), data)
	if err != nil {
		writeError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusCreated, UploadResponse{
		Message:       "Document uploaded and processed successfully",
		DocumentID:    doc.ID,
		ChunksCreated: doc.ChunkCount,
	})
}

func (h *APIHandler) ListDocumentsHandler(w http.ResponseWriter, r *http.Request) {
	docs, err := h.documentService.ListDocuments(r.Context(), identity(r))
	if err != nil {
		writeError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

func (h *APIHandler) DeleteDocumentHandler(w http.ResponseWriter, r *http.Request) {
	docID, ok := idParam(w, r, "documentID")
	if !ok {
		return
	}
	if err := h.documentService.DeleteDocument(r.Context(), identity(r), docID); err != nil {
		writeError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Document deleted"})
}

// Analytics

func (h *APIHandler) DashboardHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := h.analyticsService.Dashboard(r.Context(), identity(r))
	if err != nil {
		writeError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *APIHandler) ConversationAnalyticsHandler(w http.ResponseWriter, r *http.Request) {
	convID, ok := idParam(w, r, "conversationID")
	if !ok {
		return
	}
	stats, err := h.analyticsService.Conversation(r.Context(), identity(r), convID)
	if err != nil {
		writeError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
