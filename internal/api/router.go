package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(apiHandler *APIHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)       // Basic request logging
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling

	r.Get("/health", apiHandler.HealthHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", apiHandler.HealthHandler)

		r.Group(func(r chi.Router) {
			r.Use(apiHandler.JWTAuthMiddleware)

			r.Route("/chat", func(r chi.Router) {
				r.Post("/message", apiHandler.ChatMessageHandler)
				r.Get("/conversations", apiHandler.ListConversationsHandler)
				r.Get("/conversation/{conversationID}/messages", apiHandler.ConversationMessagesHandler)
				r.Post("/conversation/{conversationID}/retry", apiHandler.RetryMessageHandler)
				r.Post("/conversation/{conversationID}/close", apiHandler.CloseConversationHandler)
				r.Post("/conversation/{conversationID}/archive", apiHandler.ArchiveConversationHandler)
				r.Post("/conversation/{conversationID}/rating", apiHandler.RateConversationHandler)
			})

			r.Route("/documents", func(r chi.Router) {
				r.Post("/upload", apiHandler.UploadDocumentHandler)
				r.Get("/list", apiHandler.ListDocumentsHandler)
				r.Delete("/{documentID}", apiHandler.DeleteDocumentHandler)
			})

			r.Route("/analytics", func(r chi.Router) {
				r.Get("/dashboard", apiHandler.DashboardHandler)
				r.Get("/conversation/{conversationID}", apiHandler.ConversationAnalyticsHandler)
			})
		})
	})

	return r
}
