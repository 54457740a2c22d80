// Package vectorindex keeps one nearest-neighbour index per tenant in a bbolt
// file. Every tenant owns a top-level bucket named after
// domain.TenantNamespace; the only way to reach a bucket is through
// Store.ForTenant, so no operation can span tenants.
package vectorindex

import (
	"fmt"
	"log"
	"time"

	"go.etcd.io/bbolt"

	"gwi.com/support-chatbot/internal/domain"
)

// DefaultTopK is used when Search is called with k <= 0.
const DefaultTopK = 4

// Store owns the bbolt file and the embedding function shared by all tenant indexes.
type Store struct {
	db       *bbolt.DB
	embedder domain.Embedder
}

// Open creates or opens the index file at path.
func Open(path string, embedder domain.Embedder) (*Store, error) {
	if embedder == nil {
		return nil, fmt.Errorf("vector index requires an embedder")
	}
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open vector index %s: %w", path, err)
	}
	return &Store{db: db, embedder: embedder}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// ForTenant returns the index scoped to tenantID.
func (s *Store) ForTenant(tenantID int64) *TenantIndex {
	return &TenantIndex{
		store:    s,
		tenantID: tenantID,
		bucket:   []byte(domain.TenantNamespace(tenantID)),
	}
}

// Tenants lists the ids of tenants that have a bucket, for diagnostics.
func (s *Store) Tenants() ([]int64, error) {
	var ids []int64
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bbolt.Bucket) error {
			var id int64
			if _, err := fmt.Sscanf(string(name), "tenant_%d", &id); err != nil {
				log.Printf("vectorindex: ignoring unexpected bucket %q", name)
				return nil
			}
			ids = append(ids, id)
			return nil
		})
	})
	return ids, err
}
