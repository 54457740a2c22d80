package core

import (
	"gwi.com/support-chatbot/internal/domain"
	"gwi.com/support-chatbot/internal/store"
)

// BuildHistory pairs each user message with the assistant message that
// follows it, in creation order. A user message followed by another user
// message, an assistant message with no preceding user message, and a
// trailing unanswered user message are all left out. When maxTurns > 0 only
// the most recent maxTurns pairs are kept.
func BuildHistory(messages []store.Message, maxTurns int) []domain.Turn {
	turns := []domain.Turn{}
	var pending *store.Message
	for i := range messages {
		msg := &messages[i]
		switch msg.Role {
		case store.RoleUser:
			pending = msg
		case store.RoleAssistant:
			if pending == nil {
				continue
			}
			turns = append(turns, domain.Turn{User: pending.Content, Assistant: msg.Content})
			pending = nil
		}
	}
	if maxTurns > 0 && len(turns) > maxTurns {
		turns = turns[len(turns)-maxTurns:]
	}
	return turns
}
