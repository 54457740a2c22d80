// Package domain holds the types shared by the retrieval pipeline and the
// contracts of its external collaborators.
package domain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// Identity is the verified caller supplied by the identity provider.
type Identity struct {
	TenantID int64
	UserID   int64
}

// Metadata is attached to every chunk and passed through to answer sources.
type Metadata map[string]any

// UnmarshalJSON keeps integral numbers as int64 so ids and indexes survive
// a storage round trip exactly. Other numbers decode as float64.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	if raw == nil {
		*m = nil
		return nil
	}
	for k, v := range raw {
		raw[k] = fromJSONNumbers(v)
	}
	*m = raw
	return nil
}

func fromJSONNumbers(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		f, _ := val.Float64()
		return f
	case map[string]any:
		for k, inner := range val {
			val[k] = fromJSONNumbers(inner)
		}
		return val
	case []any:
		for i, inner := range val {
			val[i] = fromJSONNumbers(inner)
		}
		return val
	default:
		return v
	}
}

// Chunk is an immutable slice of document text stored in a tenant index.
type Chunk struct {
	ID             string   `json:"id"`
	TenantID       int64    `json:"tenant_id"`
	SourceDocument string   `json:"source_document"`
	SequenceIndex  int      `json:"sequence_index"`
	Text           string   `json:"text"`
	Metadata       Metadata `json:"metadata"`
}

// ChunkInput is a chunk that has not been embedded and stored yet.
type ChunkInput struct {
	Text           string
	SourceDocument string
	SequenceIndex  int
	Metadata       Metadata
}

// ScoredChunk is a search hit. Score is cosine similarity; higher is more relevant.
type ScoredChunk struct {
	Chunk Chunk
	Score float32
}

// Source is the persisted, truncated view of a retrieved chunk.
type Source struct {
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata"`
}

// Turn is one paired exchange of conversation memory.
type Turn struct {
	User      string
	Assistant string
}

// Answer is the result of a grounded generation.
type Answer struct {
	Text    string
	Sources []Source
}

// Embedder turns text into a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EmbedderFunc adapts a function to Embedder.
type EmbedderFunc func(ctx context.Context, text string) ([]float32, error)

func (f EmbedderFunc) Embed(ctx context.Context, text string) ([]float32, error) {
	return f(ctx, text)
}

// Generator produces text for a fully composed prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// TenantNamespace is the index namespace that holds a tenant's chunks.
func TenantNamespace(tenantID int64) string {
	return fmt.Sprintf("tenant_%d", tenantID)
}
