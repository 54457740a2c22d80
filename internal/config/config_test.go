package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("GEMINI_API_KEY", "key")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("RAG_CONFIG_FILE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "key", cfg.GeminiAPIKey)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, ProviderGemini, cfg.EmbeddingProvider)
	assert.Equal(t, DefaultRAG(), cfg.RAG)
	assert.Equal(t, 1000, cfg.RAG.ChunkSize)
	assert.Equal(t, 200, cfg.RAG.ChunkOverlap)
	assert.Equal(t, 4, cfg.RAG.TopK)
	assert.NoError(t, cfg.RequireGemini())
	assert.NoError(t, cfg.RequireJWTSecret())
	assert.False(t, cfg.Debug())
}

func TestLoad_YAMLOverlay(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := filepath.Join(dir, "rag.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rag:
  chunk_size: 500
  chunk_overlap: 100
  top_k: 6
  generation_timeout: 5s
  chat_model: gemini-test
`), 0o644))
	t.Setenv("RAG_CONFIG_FILE", path)
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.RAG.ChunkSize)
	assert.Equal(t, 100, cfg.RAG.ChunkOverlap)
	assert.Equal(t, 6, cfg.RAG.TopK)
	assert.Equal(t, 5*time.Second, cfg.RAG.GenerationTimeout)
	assert.Equal(t, "gemini-test", cfg.RAG.ChatModel)
	assert.Equal(t, 200, cfg.RAG.SnippetLength)
	assert.True(t, cfg.Debug())
}

func TestLoad_InvalidOverlap(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := filepath.Join(dir, "rag.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rag:\n  chunk_size: 100\n  chunk_overlap: 100\n"), 0o644))
	t.Setenv("RAG_CONFIG_FILE", path)

	_, err := Load()
	assert.ErrorContains(t, err, "chunk_overlap")
}

func TestLoad_MissingRAGFile(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("RAG_CONFIG_FILE", "/does/not/exist.yaml")
	_, err := Load()
	assert.Error(t, err)
}

func TestValidate_UnknownProvider(t *testing.T) {
	cfg := &Config{EmbeddingProvider: "word2vec", RAG: DefaultRAG()}
	assert.ErrorContains(t, cfg.Validate(), "EMBEDDING_PROVIDER")
}

func TestRequireSecrets(t *testing.T) {
	cfg := &Config{}
	assert.Error(t, cfg.RequireGemini())
	assert.Error(t, cfg.RequireJWTSecret())
}
