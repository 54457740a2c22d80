package core

import (
	"context"

	"gwi.com/support-chatbot/internal/store"
)

// ConversationStore is the persistence the chat flow needs. Every call is
// scoped by tenant.
type ConversationStore interface {
	CreateConversation(ctx context.Context, conv *store.Conversation) error
	GetConversation(ctx context.Context, tenantID, id int64) (*store.Conversation, error)
	ListConversations(ctx context.Context, tenantID int64, limit, offset int) ([]store.Conversation, error)
	UpdateConversationStatus(ctx context.Context, tenantID, id int64, status string) error
	SetSatisfactionRating(ctx context.Context, tenantID, id int64, rating int) error
	CreateMessage(ctx context.Context, msg *store.Message) error
	ListMessages(ctx context.Context, tenantID, conversationID int64) ([]store.Message, error)
}

// DocumentStore persists document records.
type DocumentStore interface {
	CreateDocument(ctx context.Context, doc *store.Document) error
	GetDocument(ctx context.Context, tenantID, id int64) (*store.Document, error)
	ListDocuments(ctx context.Context, tenantID int64) ([]store.Document, error)
	DeactivateDocument(ctx context.Context, tenantID, id int64) error
}

// AnalyticsStore aggregates tenant activity.
type AnalyticsStore interface {
	DashboardStats(ctx context.Context, tenantID int64) (*store.DashboardStats, error)
	ConversationStats(ctx context.Context, tenantID, id int64) (*store.ConversationStats, error)
}

var (
	_ ConversationStore = (*store.SQLiteStore)(nil)
	_ DocumentStore     = (*store.SQLiteStore)(nil)
	_ AnalyticsStore    = (*store.SQLiteStore)(nil)
)
