package core

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"gwi.com/support-chatbot/internal/domain"
	"gwi.com/support-chatbot/internal/store"
)

func msgs(roleContent ...string) []store.Message {
	out := make([]store.Message, 0, len(roleContent)/2)
	for i := 0; i+1 < len(roleContent); i += 2 {
		out = append(out, store.Message{ID: int64(i/2 + 1), Role: roleContent[i], Content: roleContent[i+1]})
	}
	return out
}

const (
	usr = store.RoleUser
	bot = store.RoleAssistant
)

func TestBuildHistory_PairsAndDropsTrailingUser(t *testing.T) {
	got := BuildHistory(msgs(usr, "u1", bot, "a1", usr, "u2", bot, "a2", usr, "u3"), 0)
	assert.Equal(t, []domain.Turn{{User: "u1", Assistant: "a1"}, {User: "u2", Assistant: "a2"}}, got)
}

func TestBuildHistory_Empty(t *testing.T) {
	got := BuildHistory(nil, 10)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestBuildHistory_SkipsAnomalies(t *testing.T) {
	got := BuildHistory(msgs(bot, "orphan", usr, "retry-1", usr, "retry-2", bot, "answer", bot, "extra", usr, "u3", bot, "a3"), 0)
	assert.Equal(t, []domain.Turn{
		{User: "retry-2", Assistant: "answer"},
		{User: "u3", Assistant: "a3"},
	}, got)
}

func TestBuildHistory_KeepsMostRecentTurns(t *testing.T) {
	got := BuildHistory(msgs(usr, "u1", bot, "a1", usr, "u2", bot, "a2", usr, "u3", bot, "a3"), 2)
	assert.Equal(t, []domain.Turn{{User: "u2", Assistant: "a2"}, {User: "u3", Assistant: "a3"}}, got)
}
