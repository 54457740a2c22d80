package core

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gwi.com/support-chatbot/internal/config"
	"gwi.com/support-chatbot/internal/domain"
	"gwi.com/support-chatbot/internal/embedding"
	"gwi.com/support-chatbot/internal/utils"
)

type recordingGenerator struct {
	prompts []string
	reply   string
}

func (g *recordingGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	return g.reply, nil
}

func blockingGenerator(err error) domain.GeneratorFunc {
	return func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		if err != nil {
			return "", err
		}
		return "", ctx.Err()
	}
}

func TestAnswer_GroundsPromptAndCitesSources(t *testing.T) {
	gen := &recordingGenerator{reply: "Please include your receipt number."}
	h := newHarness(t, harnessOptions{generator: gen})
	ctx := context.Background()

	_, err := h.docs.Ingest(ctx, tenant1, "faq.txt", "txt", []byte(threeTopicDocument()))
	require.NoError(t, err)

	history := []domain.Turn{{User: "hi", Assistant: "hello, how can I help?"}}
	answer, err := h.rag.Answer(ctx, 1, "what do refund requests need?", history)
	require.NoError(t, err)

	assert.Equal(t, "Please include your receipt number.", answer.Text)
	require.Len(t, answer.Sources, 3)
	assert.Contains(t, answer.Sources[0].Content, "refund requests")
	assert.EqualValues(t, 1, answer.Sources[0].Metadata["chunk_index"])
	assert.Equal(t, "faq.txt", answer.Sources[0].Metadata["filename"])

	require.Len(t, gen.prompts, 1)
	prompt := gen.prompts[0]
	assert.True(t, strings.HasPrefix(prompt, supportSystemInstruction))
	assert.Contains(t, prompt, "don't know")
	assert.Contains(t, prompt, "[1] ----------refund requests need receipt numbers")
	assert.Contains(t, prompt, "Customer: hi\nAssistant: hello, how can I help?")
	assert.True(t, strings.HasSuffix(prompt, "Customer question: what do refund requests need?\nAnswer:"))
}

func TestAnswer_TopKAndSnippetLength(t *testing.T) {
	h := newHarness(t, harnessOptions{rag: func(r *config.RAGConfig) {
		r.TopK = 2
		r.SnippetLength = 12
	}})
	ctx := context.Background()
	_, err := h.docs.Ingest(ctx, tenant1, "faq.txt", "txt", []byte(threeTopicDocument()))
	require.NoError(t, err)

	answer, err := h.rag.Answer(ctx, 1, "password reset", []domain.Turn{})
	require.NoError(t, err)
	require.Len(t, answer.Sources, 2)
	for _, src := range answer.Sources {
		assert.Len(t, []rune(src.Content), 12)
	}
	assert.Equal(t, utils.TruncateRunes("----------password reset uses email links", 12), answer.Sources[0].Content)
}

func TestAnswer_EmptyIndexYieldsEmptySources(t *testing.T) {
	gen := &recordingGenerator{reply: "I don't know."}
	h := newHarness(t, harnessOptions{generator: gen})

	answer, err := h.rag.Answer(context.Background(), 1, "anything?", nil)
	require.NoError(t, err)
	assert.NotNil(t, answer.Sources)
	assert.Empty(t, answer.Sources)
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], noContextPlaceholder)
	assert.Contains(t, gen.prompts[0], noHistoryPlaceholder)
}

func TestAnswer_NeverUsesAnotherTenantsChunks(t *testing.T) {
	gen := &recordingGenerator{reply: "ok"}
	h := newHarness(t, harnessOptions{generator: gen})
	ctx := context.Background()
	_, err := h.docs.Ingest(ctx, tenant1, "faq.txt", "txt", []byte(threeTopicDocument()))
	require.NoError(t, err)

	answer, err := h.rag.Answer(ctx, 2, "refund receipt", nil)
	require.NoError(t, err)
	assert.Empty(t, answer.Sources)
	assert.NotContains(t, gen.prompts[0], "refund requests")
}

func TestAnswer_RetrievalFailureSkipsGeneration(t *testing.T) {
	var failQueries atomic.Bool
	hashing := embedding.NewHashing(1024)
	embedder := domain.EmbedderFunc(func(ctx context.Context, text string) ([]float32, error) {
		if failQueries.Load() {
			return nil, errors.New("connection reset by peer")
		}
		return hashing.Embed(ctx, text)
	})
	var generated atomic.Int32
	gen := domain.GeneratorFunc(func(context.Context, string) (string, error) {
		generated.Add(1)
		return "should not happen", nil
	})
	h := newHarness(t, harnessOptions{embedder: embedder, generator: gen})
	ctx := context.Background()
	_, err := h.docs.Ingest(ctx, tenant1, "faq.txt", "txt", []byte(threeTopicDocument()))
	require.NoError(t, err)

	failQueries.Store(true)
	_, err = h.rag.Answer(ctx, 1, "refund", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRetrieval)
	assert.NotContains(t, err.Error(), "connection reset")
	assert.Zero(t, generated.Load())
}

func TestAnswer_GenerationTimeout(t *testing.T) {
	h := newHarness(t, harnessOptions{
		generator: blockingGenerator(nil),
		rag:       func(r *config.RAGConfig) { r.GenerationTimeout = 20 * time.Millisecond },
	})

	_, err := h.rag.Answer(context.Background(), 1, "hello?", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrGeneration)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, domain.IsTimeout(err))
	assert.Contains(t, err.Error(), "(timeout)")
}

func TestAnswer_GenerationTimeoutWithProviderError(t *testing.T) {
	h := newHarness(t, harnessOptions{
		generator: blockingGenerator(errors.New("rpc error: code = Unavailable")),
		rag:       func(r *config.RAGConfig) { r.GenerationTimeout = 20 * time.Millisecond },
	})

	_, err := h.rag.Answer(context.Background(), 1, "hello?", nil)
	assert.ErrorIs(t, err, domain.ErrGeneration)
	assert.True(t, domain.IsTimeout(err))
	assert.NotContains(t, err.Error(), "rpc error")
	assert.Contains(t, domain.Describe(err), "rpc error")
}

func TestAnswer_GenerationFailure(t *testing.T) {
	h := newHarness(t, harnessOptions{generator: domain.GeneratorFunc(func(context.Context, string) (string, error) {
		return "", errors.New("safety block")
	})})

	_, err := h.rag.Answer(context.Background(), 1, "hello?", nil)
	assert.ErrorIs(t, err, domain.ErrGeneration)
	assert.False(t, domain.IsTimeout(err))
}

func TestAnswer_EmptyQuestion(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	_, err := h.rag.Answer(context.Background(), 1, "  ", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
