package store

import (
	"time"

	"gwi.com/support-chatbot/internal/domain"
)

const (
	StatusActive   = "active"
	StatusClosed   = "closed"
	StatusArchived = "archived"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Conversation struct {
	ID                 int64      `json:"id"`
	TenantID           int64      `json:"tenant_id"`
	UserID             *int64     `json:"user_id"`        // Nil for guest conversations
	CustomerName       *string    `json:"customer_name"`  // Guest contact
	CustomerEmail      *string    `json:"customer_email"` // Guest contact
	Status             string     `json:"status"`
	SatisfactionRating *int       `json:"satisfaction_rating"`
	CreatedAt          time.Time  `json:"created_at"`
	ClosedAt           *time.Time `json:"closed_at"`
}

type Message struct {
	ID             int64           `json:"id"`
	ConversationID int64           `json:"conversation_id"`
	Role           string          `json:"role"` // "user" or "assistant"
	Content        string          `json:"content"`
	SourcesUsed    []domain.Source `json:"sources_used,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

type Document struct {
	ID         int64     `json:"id"`
	TenantID   int64     `json:"tenant_id"`
	UploadID   string    `json:"upload_id"`
	Filename   string    `json:"filename"`
	FileType   string    `json:"file_type"`
	FilePath   string    `json:"-"` // Internal path, never returned to clients
	ChunkCount int       `json:"chunk_count"`
	VectorIDs  []string  `json:"-"`
	IsActive   bool      `json:"is_active"`
	UploadedBy int64     `json:"uploaded_by"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type DashboardStats struct {
	TotalConversations    int      `json:"total_conversations"`
	ActiveConversations   int      `json:"active_conversations"`
	ClosedConversations   int      `json:"closed_conversations"`
	TotalMessages         int      `json:"total_messages"`
	AvgMessagesPerConv    float64  `json:"avg_messages_per_conversation"`
	AvgSatisfactionRating *float64 `json:"avg_satisfaction_rating"`
	TotalDocuments        int      `json:"total_documents"`
}

type ConversationStats struct {
	ConversationID     int64    `json:"conversation_id"`
	MessageCount       int      `json:"message_count"`
	DurationMinutes    *float64 `json:"duration_minutes"` // Only for closed conversations
	SatisfactionRating *int     `json:"satisfaction_rating"`
	Status             string   `json:"status"`
}
