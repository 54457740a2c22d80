package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"gwi.com/support-chatbot/internal/config"
	"gwi.com/support-chatbot/internal/domain"
	"gwi.com/support-chatbot/internal/utils"
	"gwi.com/support-chatbot/internal/vectorindex"
)

// RAGService answers a question from a tenant's indexed documents.
type RAGService struct {
	vectors           *vectorindex.Store
	generator         domain.Generator
	template          PromptTemplate
	topK              int
	snippetLength     int
	searchTimeout     time.Duration
	generationTimeout time.Duration
}

func NewRAGService(vectors *vectorindex.Store, generator domain.Generator, rag config.RAGConfig) *RAGService {
	return &RAGService{
		vectors:           vectors,
		generator:         generator,
		template:          DefaultPromptTemplate(),
		topK:              rag.TopK,
		snippetLength:     rag.SnippetLength,
		searchTimeout:     rag.SearchTimeout,
		generationTimeout: rag.GenerationTimeout,
	}
}

// Answer retrieves the top-k chunks of the tenant's index, composes the
// grounded prompt and generates a reply. A retrieval failure never reaches
// the generator. Nothing is retried here.
func (s *RAGService) Answer(ctx context.Context, tenantID int64, question string, history []domain.Turn) (*domain.Answer, error) {
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("%w: question is empty", domain.ErrInvalidInput)
	}
	if history == nil {
		history = []domain.Turn{}
	}

	hits, err := s.retrieve(ctx, tenantID, question)
	if err != nil {
		return nil, err
	}

	passages := make([]string, len(hits))
	for i, hit := range hits {
		passages[i] = hit.Chunk.Text
	}
	prompt, err := s.template.Compose(PromptSlots{Context: passages, History: history, Question: question})
	if err != nil {
		return nil, err
	}

	text, err := s.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	return &domain.Answer{Text: text, Sources: s.sources(hits)}, nil
}

func (s *RAGService) retrieve(ctx context.Context, tenantID int64, question string) ([]domain.ScoredChunk, error) {
	searchCtx, cancel := withTimeout(ctx, s.searchTimeout)
	defer cancel()

	hits, err := s.vectors.ForTenant(tenantID).Search(searchCtx, question, s.topK)
	if err != nil {
		if errors.Is(err, domain.ErrTenantIsolationViolation) {
			return nil, err
		}
		return nil, domain.Stage(domain.ErrRetrieval, "search tenant index", deadlineCause(searchCtx, err))
	}
	log.Printf("Retrieved %d chunks for tenant %d", len(hits), tenantID)
	return hits, nil
}

func (s *RAGService) generate(ctx context.Context, prompt string) (string, error) {
	genCtx, cancel := withTimeout(ctx, s.generationTimeout)
	defer cancel()

	text, err := s.generator.Generate(genCtx, prompt)
	if err != nil {
		return "", domain.Stage(domain.ErrGeneration, "generate answer", deadlineCause(genCtx, err))
	}
	return text, nil
}

// sources builds the persisted view of the retrieved chunks. It is never nil.
func (s *RAGService) sources(hits []domain.ScoredChunk) []domain.Source {
	sources := make([]domain.Source, 0, len(hits))
	for _, hit := range hits {
		sources = append(sources, domain.Source{
			Content:  utils.TruncateRunes(hit.Chunk.Text, s.snippetLength),
			Metadata: hit.Chunk.Metadata,
		})
	}
	return sources
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// deadlineCause makes sure an expired deadline stays visible through
// errors.Is even when the provider returns its own error type.
func deadlineCause(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
	}
	return err
}
