package core

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"gwi.com/support-chatbot/internal/config"
	"gwi.com/support-chatbot/internal/domain"
	"gwi.com/support-chatbot/internal/embedding"
	"gwi.com/support-chatbot/internal/loader"
	"gwi.com/support-chatbot/internal/store"
	"gwi.com/support-chatbot/internal/vectorindex"
)

var (
	tenant1 = domain.Identity{TenantID: 1, UserID: 10}
	tenant2 = domain.Identity{TenantID: 2, UserID: 20}
)

type harness struct {
	store     *store.SQLiteStore
	vectors   *vectorindex.Store
	docs      *DocumentService
	rag       *RAGService
	chat      *ChatService
	analytics *AnalyticsService
	uploadDir string
}

type harnessOptions struct {
	embedder  domain.Embedder
	generator domain.Generator
	docStore  func(*store.SQLiteStore) DocumentStore
	rag       func(*config.RAGConfig)
}

// echoGenerator answers with the question found at the end of the prompt.
var echoGenerator = domain.GeneratorFunc(func(_ context.Context, prompt string) (string, error) {
	return "echo: " + questionOf(prompt), nil
})

func questionOf(prompt string) string {
	const marker = "Customer question: "
	q := prompt[strings.LastIndex(prompt, marker)+len(marker):]
	return strings.TrimSuffix(q, "\nAnswer:")
}

func newHarness(t *testing.T, opts harnessOptions) *harness {
	t.Helper()
	dir := t.TempDir()

	rag := config.DefaultRAG()
	rag.ChunkSize = 60
	rag.ChunkOverlap = 10
	if opts.rag != nil {
		opts.rag(&rag)
	}
	if opts.embedder == nil {
		opts.embedder = embedding.NewHashing(1024)
	}
	if opts.generator == nil {
		opts.generator = echoGenerator
	}

	db, err := store.NewSQLiteStore(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	vectors, err := vectorindex.Open(filepath.Join(dir, "vectors.db"), opts.embedder)
	require.NoError(t, err)
	t.Cleanup(func() { vectors.Close() })

	var docStore DocumentStore = db
	if opts.docStore != nil {
		docStore = opts.docStore(db)
	}

	uploadDir := filepath.Join(dir, "uploads")
	ragService := NewRAGService(vectors, opts.generator, rag)
	return &harness{
		store:     db,
		vectors:   vectors,
		docs:      NewDocumentService(docStore, vectors, loader.NewRegistry(), uploadDir, rag),
		rag:       ragService,
		chat:      NewChatService(db, ragService, rag.HistoryTurns),
		analytics: NewAnalyticsService(db),
		uploadDir: uploadDir,
	}
}

// threeTopicDocument is exactly three chunks at size 60 / overlap 10. Every
// 50-rune segment starts with 10 runes of punctuation so the overlap carries
// no words into the neighbouring chunk.
func threeTopicDocument() string {
	segment := func(words string) string {
		return "----------" + words + strings.Repeat(" ", 40-len(words))
	}
	return segment("shipping parcels arrive within days") +
		segment("refund requests need receipt numbers") +
		segment("password reset uses email links")
}
