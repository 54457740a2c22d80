package main

import (
	"context"
	"fmt"
	"log"

	"gwi.com/support-chatbot/internal/config"
	"gwi.com/support-chatbot/internal/core"
	"gwi.com/support-chatbot/internal/domain"
	"gwi.com/support-chatbot/internal/embedding"
	"gwi.com/support-chatbot/internal/loader"
	"gwi.com/support-chatbot/internal/store"
	"gwi.com/support-chatbot/internal/vectorindex"
)

// components holds the storage and provider handles shared by the commands.
type components struct {
	llm       *core.LLMService
	db        *store.SQLiteStore
	vectors   *vectorindex.Store
	documents *core.DocumentService
}

// openComponents wires storage and the embedding provider. The Gemini client
// is created when embeddings use it or when withGenerator is set.
func openComponents(ctx context.Context, cfg *config.Config, withGenerator bool) (*components, error) {
	c := &components{}
	if cfg.EmbeddingProvider == config.ProviderGemini || withGenerator {
		if err := cfg.RequireGemini(); err != nil {
			return nil, err
		}
		llm, err := core.NewLLMService(ctx, cfg.GeminiAPIKey, cfg.RAG)
		if err != nil {
			return nil, err
		}
		c.llm = llm
	}

	var embedder domain.Embedder
	switch cfg.EmbeddingProvider {
	case config.ProviderHash:
		log.Printf("Using offline hashing embedder (dimension %d)", embedding.DefaultDimension)
		embedder = embedding.NewHashing(embedding.DefaultDimension)
	default:
		embedder = embedding.NewRateLimited(
			embedding.NewTimeout(c.llm, cfg.RAG.EmbedTimeout),
			cfg.RAG.EmbedRatePerSecond,
			cfg.RAG.EmbedBurst,
		)
	}

	db, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	c.db = db

	vectors, err := vectorindex.Open(cfg.VectorDBPath, embedder)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.vectors = vectors

	c.documents = core.NewDocumentService(db, vectors, loader.NewRegistry(), cfg.UploadDir, cfg.RAG)
	return c, nil
}

func (c *components) Close() {
	if c.vectors != nil {
		if err := c.vectors.Close(); err != nil {
			log.Printf("Error closing vector index: %v", err)
		}
	}
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}
	if c.llm != nil {
		c.llm.Close()
	}
}
