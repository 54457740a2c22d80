package core

import (
	"fmt"
	"strings"

	"gwi.com/support-chatbot/internal/domain"
)

const supportSystemInstruction = "You are a customer support assistant for this company. " +
	"Answer the customer's question using only the information in the provided context. " +
	"If the context does not contain the answer, say that you don't know and offer to connect them with a human agent. " +
	"Do not make up information. Keep answers concise and friendly."

const (
	noContextPlaceholder = "(no relevant documents were found)"
	noHistoryPlaceholder = "(this is the start of the conversation)"
)

// PromptSlots are the named inputs of a PromptTemplate. Context and History
// must be non-nil (empty is allowed); Question must not be blank.
type PromptSlots struct {
	Context  []string
	History  []domain.Turn
	Question string
}

// PromptTemplate renders the grounded prompt sent to the generator.
type PromptTemplate struct {
	SystemInstruction string
}

func DefaultPromptTemplate() PromptTemplate {
	return PromptTemplate{SystemInstruction: supportSystemInstruction}
}

func (p PromptSlots) validate() error {
	if p.Context == nil {
		return fmt.Errorf("%w: prompt context slot is unset", domain.ErrInvalidInput)
	}
	if p.History == nil {
		return fmt.Errorf("%w: prompt history slot is unset", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(p.Question) == "" {
		return fmt.Errorf("%w: prompt question slot is empty", domain.ErrInvalidInput)
	}
	return nil
}

// Compose validates every slot and renders the prompt. Context passages keep
// their ranked order and history keeps turn order.
func (t PromptTemplate) Compose(slots PromptSlots) (string, error) {
	if err := slots.validate(); err != nil {
		return "", err
	}
	if strings.TrimSpace(t.SystemInstruction) == "" {
		return "", fmt.Errorf("%w: prompt system instruction is empty", domain.ErrInvalidInput)
	}

	var sb strings.Builder
	sb.WriteString(t.SystemInstruction)
	sb.WriteString("\n\n--- CONTEXT START ---\n")
	if len(slots.Context) == 0 {
		sb.WriteString(noContextPlaceholder)
		sb.WriteString("\n")
	}
	for i, passage := range slots.Context {
		fmt.Fprintf(&sb, "[%d] %s\n\n", i+1, strings.TrimSpace(passage))
	}
	sb.WriteString("--- CONTEXT END ---\n\n--- CONVERSATION HISTORY ---\n")
	if len(slots.History) == 0 {
		sb.WriteString(noHistoryPlaceholder)
		sb.WriteString("\n")
	}
	for _, turn := range slots.History {
		fmt.Fprintf(&sb, "Customer: %s\nAssistant: %s\n", turn.User, turn.Assistant)
	}
	sb.WriteString("--- END HISTORY ---\n\n")
	fmt.Fprintf(&sb, "Customer question: %s\nAnswer:", strings.TrimSpace(slots.Question))
	return sb.String(), nil
}
