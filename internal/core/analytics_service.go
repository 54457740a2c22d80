package core

import (
	"context"

	"gwi.com/support-chatbot/internal/domain"
	"gwi.com/support-chatbot/internal/store"
)

type AnalyticsService struct {
	stats AnalyticsStore
}

func NewAnalyticsService(stats AnalyticsStore) *AnalyticsService {
	return &AnalyticsService{stats: stats}
}

func (s *AnalyticsService) Dashboard(ctx context.Context, id domain.Identity) (*store.DashboardStats, error) {
	return s.stats.DashboardStats(ctx, id.TenantID)
}

func (s *AnalyticsService) Conversation(ctx context.Context, id domain.Identity, conversationID int64) (*store.ConversationStats, error) {
	stats, err := s.stats.ConversationStats(ctx, id.TenantID, conversationID)
	if err != nil {
		return nil, store.NotFound(err, domain.ErrConversationNotFound)
	}
	return stats, nil
}
