package vectorindex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"gwi.com/support-chatbot/internal/domain"
	"gwi.com/support-chatbot/internal/utils"
)

// TenantIndex is a single tenant's view of the Store.
type TenantIndex struct {
	store    *Store
	tenantID int64
	bucket   []byte
}

// record is the persisted form of a chunk and its embedding.
type record struct {
	domain.Chunk
	Embedding []float32 `json:"embedding"`
}

// Namespace is the bucket holding this tenant's chunks.
func (ix *TenantIndex) Namespace() string { return string(ix.bucket) }

// AddChunks embeds every input and stores all of them in one transaction,
// returning generated chunk ids in input order. Embeddings are computed
// before anything is written, so an embedding failure leaves the index
// unchanged; the returned error names how many chunks were embedded.
func (ix *TenantIndex) AddChunks(ctx context.Context, inputs []domain.ChunkInput) ([]string, error) {
	if len(inputs) == 0 {
		return []string{}, nil
	}

	records := make([]record, len(inputs))
	for i, in := range inputs {
		vec, err := ix.store.embedder.Embed(ctx, in.Text)
		if err == nil && len(vec) == 0 {
			err = errors.New("empty embedding")
		}
		if err != nil {
			op := fmt.Sprintf("embed chunk %d of %d (0 written)", i+1, len(inputs))
			return nil, domain.Stage(domain.ErrEmbedding, op, err)
		}
		records[i] = record{
			Chunk: domain.Chunk{
				ID:             uuid.NewString(),
				TenantID:       ix.tenantID,
				SourceDocument: in.SourceDocument,
				SequenceIndex:  in.SequenceIndex,
				Text:           in.Text,
				Metadata:       in.Metadata,
			},
			Embedding: vec,
		}
	}

	ids := make([]string, len(records))
	err := ix.store.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(ix.bucket)
		if err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", ix.bucket, err)
		}
		for i, rec := range records {
			data, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("failed to marshal chunk %d: %w", i, err)
			}
			if err := b.Put([]byte(rec.ID), data); err != nil {
				return fmt.Errorf("failed to put chunk %d: %w", i, err)
			}
			ids[i] = rec.ID
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to write %d chunks to %s: %w", len(records), ix.bucket, err)
	}
	return ids, nil
}

// Search returns at most k chunks ordered by non-increasing cosine
// similarity to query. An empty or missing namespace yields an empty result
// without calling the embedder.
func (ix *TenantIndex) Search(ctx context.Context, query string, k int) ([]domain.ScoredChunk, error) {
	if k <= 0 {
		k = DefaultTopK
	}
	n, err := ix.Count()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return []domain.ScoredChunk{}, nil
	}

	queryVec, err := ix.store.embedder.Embed(ctx, query)
	if err != nil {
		return nil, domain.Stage(domain.ErrEmbedding, "embed query", err)
	}

	scored := make([]domain.ScoredChunk, 0, n)
	err = ix.store.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(ix.bucket)
		if b == nil {
			return nil
		}
		return b.ForEach(func(key, value []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var rec record
			if err := json.Unmarshal(value, &rec); err != nil {
				return fmt.Errorf("failed to decode chunk %s: %w", key, err)
			}
			if rec.TenantID != ix.tenantID {
				return domain.Stage(domain.ErrTenantIsolationViolation,
					fmt.Sprintf("chunk %s of tenant %d found in %s", key, rec.TenantID, ix.bucket), nil)
			}
			sim, err := utils.CosineSimilarity(queryVec, rec.Embedding)
			if err != nil {
				log.Printf("vectorindex: skipping chunk %s in %s: %v", key, ix.bucket, err)
				return nil
			}
			scored = append(scored, domain.ScoredChunk{Chunk: rec.Chunk, Score: sim})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Chunk.SourceDocument != b.Chunk.SourceDocument {
			return a.Chunk.SourceDocument < b.Chunk.SourceDocument
		}
		return a.Chunk.SequenceIndex < b.Chunk.SequenceIndex
	})
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

// get returns the stored chunk with id, or false if this tenant has no such chunk.
func (ix *TenantIndex) get(id string) (domain.Chunk, bool, error) {
	var rec record
	found := false
	err := ix.store.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(ix.bucket)
		if b == nil {
			return nil
		}
		data := b.Get([]byte(id))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &rec)
	})
	if err != nil || !found {
		return domain.Chunk{}, false, err
	}
	if rec.TenantID != ix.tenantID {
		return domain.Chunk{}, false, domain.Stage(domain.ErrTenantIsolationViolation,
			fmt.Sprintf("chunk %s of tenant %d found in %s", id, rec.TenantID, ix.bucket), nil)
	}
	return rec.Chunk, true, nil
}

// Delete removes the given chunk ids and reports how many existed.
func (ix *TenantIndex) Delete(ctx context.Context, ids []string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	removed := 0
	err := ix.store.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(ix.bucket)
		if b == nil {
			return nil
		}
		for _, id := range ids {
			if b.Get([]byte(id)) == nil {
				continue
			}
			if err := b.Delete([]byte(id)); err != nil {
				return fmt.Errorf("failed to delete chunk %s: %w", id, err)
			}
			removed++
		}
		return nil
	})
	return removed, err
}

// Count returns the number of chunks stored for the tenant.
func (ix *TenantIndex) Count() (int, error) {
	n := 0
	err := ix.store.db.View(func(tx *bbolt.Tx) error {
		if b := tx.Bucket(ix.bucket); b != nil {
			n = b.Stats().KeyN
		}
		return nil
	})
	return n, err
}
