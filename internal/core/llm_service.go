package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"gwi.com/support-chatbot/internal/config"
	"gwi.com/support-chatbot/internal/domain"
)

var errEmptyResponse = errors.New("gemini returned no text")

// LLMService talks to Gemini. It is both the embedding function and the
// text-generation function of the pipeline.
type LLMService struct {
	client         *genai.Client
	chatModel      string
	embeddingModel string
	temperature    float32
}

var (
	_ domain.Embedder  = (*LLMService)(nil)
	_ domain.Generator = (*LLMService)(nil)
)

func NewLLMService(ctx context.Context, apiKey string, rag config.RAGConfig) (*LLMService, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &LLMService{
		client:         client,
		chatModel:      rag.ChatModel,
		embeddingModel: rag.EmbeddingModel,
		temperature:    rag.Temperature,
	}, nil
}

func (s *LLMService) Close() {
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			log.Printf("Error closing GenAI client: %v", err)
		} else {
			log.Println("GenAI client closed.")
		}
	}
}

func (s *LLMService) Embed(ctx context.Context, text string) ([]float32, error) {
	em := s.client.EmbeddingModel(s.embeddingModel)
	res, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("gemini embedding request failed: %w", err)
	}
	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("no embedding data received from gemini")
	}
	return res.Embedding.Values, nil
}

// Generate sends a fully composed prompt as a single user turn.
func (s *LLMService) Generate(ctx context.Context, prompt string) (string, error) {
	model := s.client.GenerativeModel(s.chatModel)
	temp := s.temperature
	model.GenerationConfig = genai.GenerationConfig{
		Temperature: &temp,
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generation request failed: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errEmptyResponse
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			responseText.WriteString(string(txt))
		} else {
			log.Printf("Gemini response part was not text: %T", part)
		}
	}
	if strings.TrimSpace(responseText.String()) == "" {
		return "", errEmptyResponse
	}
	return responseText.String(), nil
}
