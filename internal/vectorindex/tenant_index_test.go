package vectorindex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"

	"gwi.com/support-chatbot/internal/domain"
	"gwi.com/support-chatbot/internal/embedding"
)

func openTestStore(t *testing.T, embedder domain.Embedder) *Store {
	t.Helper()
	if embedder == nil {
		embedder = embedding.NewHashing(128)
	}
	s, err := Open(filepath.Join(t.TempDir(), "vectors.db"), embedder)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func inputs(doc string, texts ...string) []domain.ChunkInput {
	out := make([]domain.ChunkInput, len(texts))
	for i, text := range texts {
		out[i] = domain.ChunkInput{
			Text:           text,
			SourceDocument: doc,
			SequenceIndex:  i,
			Metadata:       domain.Metadata{"filename": doc, "chunk_index": i},
		}
	}
	return out
}

var corpus = []string{
	"Shipping takes three to five business days within the country.",
	"Refunds are issued to the original payment method within fourteen days.",
	"Our support team is available on weekdays from nine to five.",
	"Warranty claims require the serial number printed under the battery.",
	"Gift cards never expire and can be combined with promotions.",
}

func TestOpen_RequiresEmbedder(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "v.db"), nil)
	assert.Error(t, err)
}

func TestAddChunks_ReturnsIDsInOrder(t *testing.T) {
	s := openTestStore(t, nil)
	ix := s.ForTenant(1)

	ids, err := ix.AddChunks(context.Background(), inputs("faq.txt", corpus...))
	require.NoError(t, err)
	require.Len(t, ids, len(corpus))

	for i, id := range ids {
		chunk, ok, err := ix.get(id)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, corpus[i], chunk.Text)
		assert.Equal(t, i, chunk.SequenceIndex)
		assert.Equal(t, int64(1), chunk.TenantID)
		assert.Equal(t, "faq.txt", chunk.SourceDocument)
	}

	n, err := ix.Count()
	require.NoError(t, err)
	assert.Equal(t, len(corpus), n)
	assert.Equal(t, "tenant_1", ix.Namespace())
}

func TestAddChunks_MetadataSurvivesStorage(t *testing.T) {
	const tenantID = int64(1)<<55 + 3
	ix := openTestStore(t, nil).ForTenant(tenantID)
	ids, err := ix.AddChunks(context.Background(), []domain.ChunkInput{{
		Text:           "Refunds are issued within fourteen days.",
		SourceDocument: "faq.txt",
		Metadata:       domain.Metadata{"filename": "faq.txt", "chunk_index": 0, "tenant_id": tenantID},
	}})
	require.NoError(t, err)

	chunk, ok, err := ix.get(ids[0])
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, tenantID, chunk.TenantID)
	assert.Equal(t, tenantID, chunk.Metadata["tenant_id"])
	assert.Equal(t, int64(0), chunk.Metadata["chunk_index"])

	hits, err := ix.Search(context.Background(), "refunds", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, tenantID, hits[0].Chunk.Metadata["tenant_id"])
}

func TestAddChunks_Empty(t *testing.T) {
	ids, err := openTestStore(t, nil).ForTenant(1).AddChunks(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestAddChunks_EmbeddingErrorWritesNothing(t *testing.T) {
	var calls atomic.Int32
	failing := domain.EmbedderFunc(func(ctx context.Context, text string) ([]float32, error) {
		if calls.Add(1) == 3 {
			return nil, errors.New("provider quota exhausted")
		}
		return []float32{1, 0}, nil
	})
	s := openTestStore(t, failing)
	ix := s.ForTenant(7)

	ids, err := ix.AddChunks(context.Background(), inputs("doc", "a", "b", "c", "d"))
	assert.Nil(t, ids)
	require.ErrorIs(t, err, domain.ErrEmbedding)
	assert.Contains(t, err.Error(), "embed chunk 3 of 4")
	assert.NotContains(t, err.Error(), "quota")

	n, err := ix.Count()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSearch_EmptyTenantDoesNotEmbed(t *testing.T) {
	var calls atomic.Int32
	counting := domain.EmbedderFunc(func(ctx context.Context, text string) ([]float32, error) {
		calls.Add(1)
		return []float32{1}, nil
	})
	results, err := openTestStore(t, counting).ForTenant(3).Search(context.Background(), "anything", 4)
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
	assert.Zero(t, calls.Load())
}

func TestSearch_OrderingAndLimit(t *testing.T) {
	s := openTestStore(t, nil)
	ix := s.ForTenant(1)
	_, err := ix.AddChunks(context.Background(), inputs("faq.txt", corpus...))
	require.NoError(t, err)

	for k := 1; k <= len(corpus)+2; k++ {
		results, err := ix.Search(context.Background(), "refunds payment method", k)
		require.NoError(t, err)
		want := k
		if want > len(corpus) {
			want = len(corpus)
		}
		require.Len(t, results, want)
		assert.Equal(t, corpus[1], results[0].Chunk.Text)
		for i := 1; i < len(results); i++ {
			assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
		}
	}

	results, err := ix.Search(context.Background(), "refunds", 0)
	require.NoError(t, err)
	assert.Len(t, results, DefaultTopK)
}

func TestSearch_TenantIsolation(t *testing.T) {
	s := openTestStore(t, nil)
	a, b := s.ForTenant(1), s.ForTenant(2)

	_, err := a.AddChunks(context.Background(), inputs("a.txt", corpus...))
	require.NoError(t, err)

	for _, q := range append([]string{"", "refunds"}, corpus...) {
		for k := 1; k <= 10; k++ {
			results, err := b.Search(context.Background(), q, k)
			require.NoError(t, err)
			assert.Empty(t, results)
		}
	}

	_, err = b.AddChunks(context.Background(), inputs("b.txt", "Tenant two sells refunds insurance"))
	require.NoError(t, err)
	results, err := b.Search(context.Background(), "refunds payment method", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(2), results[0].Chunk.TenantID)

	ids, err := s.Tenants()
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{1, 2}, ids)
}

func TestGet_OtherTenantsChunkIsInvisible(t *testing.T) {
	s := openTestStore(t, nil)
	ids, err := s.ForTenant(1).AddChunks(context.Background(), inputs("a.txt", "secret"))
	require.NoError(t, err)

	_, ok, err := s.ForTenant(2).get(ids[0])
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSearch_DetectsForeignRecord(t *testing.T) {
	s := openTestStore(t, nil)
	ix := s.ForTenant(1)
	_, err := ix.AddChunks(context.Background(), inputs("a.txt", "hello world"))
	require.NoError(t, err)

	// Plant a record owned by tenant 2 inside tenant 1's bucket.
	err = s.db.Update(func(tx *bbolt.Tx) error {
		vec, _ := embedding.NewHashing(128).Embed(context.Background(), "hello")
		data, _ := json.Marshal(record{Chunk: domain.Chunk{ID: "planted", TenantID: 2, Text: "hello"}, Embedding: vec})
		return tx.Bucket([]byte("tenant_1")).Put([]byte("planted"), data)
	})
	require.NoError(t, err)

	_, err = ix.Search(context.Background(), "hello", 4)
	assert.ErrorIs(t, err, domain.ErrTenantIsolationViolation)

	_, _, err = ix.get("planted")
	assert.ErrorIs(t, err, domain.ErrTenantIsolationViolation)
}

func TestSearch_QueryEmbeddingFailure(t *testing.T) {
	fail := false
	embedder := domain.EmbedderFunc(func(ctx context.Context, text string) ([]float32, error) {
		if fail {
			return nil, fmt.Errorf("network down")
		}
		return []float32{1, 1}, nil
	})
	ix := openTestStore(t, embedder).ForTenant(1)
	_, err := ix.AddChunks(context.Background(), inputs("a.txt", "x"))
	require.NoError(t, err)

	fail = true
	_, err = ix.Search(context.Background(), "x", 1)
	assert.ErrorIs(t, err, domain.ErrEmbedding)
}

func TestDelete(t *testing.T) {
	s := openTestStore(t, nil)
	ix := s.ForTenant(1)
	ids, err := ix.AddChunks(context.Background(), inputs("a.txt", corpus...))
	require.NoError(t, err)

	removed, err := s.ForTenant(2).Delete(context.Background(), ids)
	require.NoError(t, err)
	assert.Zero(t, removed)

	removed, err = ix.Delete(context.Background(), append(ids[:2], "missing"))
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	n, err := ix.Count()
	require.NoError(t, err)
	assert.Equal(t, len(corpus)-2, n)
}
