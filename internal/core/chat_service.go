package core

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"gwi.com/support-chatbot/internal/domain"
	"gwi.com/support-chatbot/internal/store"
)

// Answerer produces a grounded answer for a tenant.
type Answerer interface {
	Answer(ctx context.Context, tenantID int64, question string, history []domain.Turn) (*domain.Answer, error)
}

type ChatRequest struct {
	Message        string  `json:"message"`
	ConversationID *int64  `json:"conversation_id,omitempty"`
	CustomerName   *string `json:"customer_name,omitempty"`
	CustomerEmail  *string `json:"customer_email,omitempty"`
}

type ChatResponse struct {
	ConversationID int64           `json:"conversation_id"`
	Message        string          `json:"message"`
	Sources        []domain.Source `json:"sources"`
	CreatedAt      time.Time       `json:"created_at"`
}

type ChatService struct {
	conversations ConversationStore
	answerer      Answerer
	historyTurns  int
	locks         *conversationLocks
}

func NewChatService(conversations ConversationStore, answerer Answerer, historyTurns int) *ChatService {
	return &ChatService{
		conversations: conversations,
		answerer:      answerer,
		historyTurns:  historyTurns,
		locks:         newConversationLocks(),
	}
}

// ProcessMessage appends the user's message to a conversation (creating one
// when req has no id), answers it and appends the reply. Exchanges on the
// same conversation never interleave.
//
// If answering fails the user message stays persisted and the returned
// response carries only the conversation id; RetryLastMessage answers it
// again without resubmitting the question.
func (s *ChatService) ProcessMessage(ctx context.Context, id domain.Identity, req ChatRequest) (*ChatResponse, error) {
	question := strings.TrimSpace(req.Message)
	if question == "" {
		return nil, fmt.Errorf("%w: message is empty", domain.ErrInvalidInput)
	}

	conv, unlock, err := s.lockConversation(ctx, id, req)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if conv.Status != store.StatusActive {
		return nil, domain.ErrConversationClosed
	}

	messages, err := s.conversations.ListMessages(ctx, id.TenantID, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation history: %w", err)
	}
	history := BuildHistory(messages, s.historyTurns)

	userMsg := store.Message{ConversationID: conv.ID, Role: store.RoleUser, Content: question}
	if err := s.conversations.CreateMessage(ctx, &userMsg); err != nil {
		return nil, fmt.Errorf("failed to store user message: %w", err)
	}

	return s.reply(ctx, id, conv.ID, userMsg.ID, question, history)
}

// RetryLastMessage answers the conversation's trailing unanswered user
// message again, for example after a generation timeout. Only the assistant
// reply is appended; the question is not stored a second time.
func (s *ChatService) RetryLastMessage(ctx context.Context, id domain.Identity, conversationID int64) (*ChatResponse, error) {
	unlock, err := s.locks.Lock(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	conv, err := s.conversations.GetConversation(ctx, id.TenantID, conversationID)
	if err != nil {
		return nil, store.NotFound(err, domain.ErrConversationNotFound)
	}
	if conv.Status != store.StatusActive {
		return nil, domain.ErrConversationClosed
	}

	messages, err := s.conversations.ListMessages(ctx, id.TenantID, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation history: %w", err)
	}
	if len(messages) == 0 || messages[len(messages)-1].Role != store.RoleUser {
		return nil, fmt.Errorf("%w: conversation has no unanswered message", domain.ErrNothingToRetry)
	}
	last := messages[len(messages)-1]
	history := BuildHistory(messages[:len(messages)-1], s.historyTurns)

	log.Printf("Retrying message %d in conversation %d (tenant %d)", last.ID, conv.ID, id.TenantID)
	return s.reply(ctx, id, conv.ID, last.ID, last.Content, history)
}

// reply answers question and appends the assistant message. Callers hold
// the conversation lock.
func (s *ChatService) reply(ctx context.Context, id domain.Identity, conversationID, userMsgID int64, question string, history []domain.Turn) (*ChatResponse, error) {
	answer, err := s.answerer.Answer(ctx, id.TenantID, question, history)
	if err != nil {
		log.Printf("Answering message %d in conversation %d (tenant %d) failed: %s", userMsgID, conversationID, id.TenantID, domain.Describe(err))
		return &ChatResponse{ConversationID: conversationID}, err
	}

	assistantMsg := store.Message{
		ConversationID: conversationID,
		Role:           store.RoleAssistant,
		Content:        answer.Text,
		SourcesUsed:    answer.Sources,
	}
	if err := s.conversations.CreateMessage(context.WithoutCancel(ctx), &assistantMsg); err != nil {
		return &ChatResponse{ConversationID: conversationID}, fmt.Errorf("failed to store assistant message: %w", err)
	}

	return &ChatResponse{
		ConversationID: conversationID,
		Message:        answer.Text,
		Sources:        answer.Sources,
		CreatedAt:      assistantMsg.CreatedAt,
	}, nil
}

// lockConversation resolves the target conversation under its lock. An
// existing conversation is re-read after the lock is taken so a concurrent
// close is observed.
func (s *ChatService) lockConversation(ctx context.Context, id domain.Identity, req ChatRequest) (*store.Conversation, func(), error) {
	if req.ConversationID != nil && *req.ConversationID > 0 {
		unlock, err := s.locks.Lock(ctx, *req.ConversationID)
		if err != nil {
			return nil, nil, err
		}
		conv, err := s.conversations.GetConversation(ctx, id.TenantID, *req.ConversationID)
		if err != nil {
			unlock()
			return nil, nil, store.NotFound(err, domain.ErrConversationNotFound)
		}
		return conv, unlock, nil
	}

	conv := &store.Conversation{
		TenantID:      id.TenantID,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
	}
	if id.UserID > 0 {
		userID := id.UserID
		conv.UserID = &userID
	}
	if err := s.conversations.CreateConversation(ctx, conv); err != nil {
		return nil, nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	log.Printf("Created conversation %d for tenant %d", conv.ID, id.TenantID)
	unlock, err := s.locks.Lock(ctx, conv.ID)
	if err != nil {
		return nil, nil, err
	}
	return conv, unlock, nil
}

func (s *ChatService) ListConversations(ctx context.Context, id domain.Identity, limit, offset int) ([]store.Conversation, error) {
	return s.conversations.ListConversations(ctx, id.TenantID, limit, offset)
}

// GetMessages returns the conversation's messages in creation order.
// Conversations of other tenants are reported as not found.
func (s *ChatService) GetMessages(ctx context.Context, id domain.Identity, conversationID int64) ([]store.Message, error) {
	if _, err := s.conversations.GetConversation(ctx, id.TenantID, conversationID); err != nil {
		return nil, store.NotFound(err, domain.ErrConversationNotFound)
	}
	return s.conversations.ListMessages(ctx, id.TenantID, conversationID)
}

// CloseConversation marks an active conversation closed.
func (s *ChatService) CloseConversation(ctx context.Context, id domain.Identity, conversationID int64) error {
	return s.transition(ctx, id, conversationID, store.StatusClosed)
}

// ArchiveConversation archives a conversation in any state.
func (s *ChatService) ArchiveConversation(ctx context.Context, id domain.Identity, conversationID int64) error {
	return s.transition(ctx, id, conversationID, store.StatusArchived)
}

func (s *ChatService) transition(ctx context.Context, id domain.Identity, conversationID int64, status string) error {
	unlock, err := s.locks.Lock(ctx, conversationID)
	if err != nil {
		return err
	}
	defer unlock()

	conv, err := s.conversations.GetConversation(ctx, id.TenantID, conversationID)
	if err != nil {
		return store.NotFound(err, domain.ErrConversationNotFound)
	}
	if status == store.StatusClosed && conv.Status != store.StatusActive {
		return domain.ErrConversationClosed
	}
	if err := s.conversations.UpdateConversationStatus(ctx, id.TenantID, conversationID, status); err != nil {
		return store.NotFound(err, domain.ErrConversationNotFound)
	}
	log.Printf("Conversation %d of tenant %d is now %s", conversationID, id.TenantID, status)
	return nil
}

// RateConversation stores a satisfaction rating between 1 and 5.
func (s *ChatService) RateConversation(ctx context.Context, id domain.Identity, conversationID int64, rating int) error {
	if rating < 1 || rating > 5 {
		return fmt.Errorf("%w: rating must be between 1 and 5", domain.ErrInvalidInput)
	}
	err := s.conversations.SetSatisfactionRating(ctx, id.TenantID, conversationID, rating)
	return store.NotFound(err, domain.ErrConversationNotFound)
}
