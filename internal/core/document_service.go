package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"gwi.com/support-chatbot/internal/chunker"
	"gwi.com/support-chatbot/internal/config"
	"gwi.com/support-chatbot/internal/domain"
	"gwi.com/support-chatbot/internal/loader"
	"gwi.com/support-chatbot/internal/store"
	"gwi.com/support-chatbot/internal/utils"
	"gwi.com/support-chatbot/internal/vectorindex"
)

var errStoreUpload = errors.New("failed to store uploaded file")

// DocumentService runs the ingestion pipeline and manages document records.
type DocumentService struct {
	docs           DocumentStore
	vectors        *vectorindex.Store
	loaders        *loader.Registry
	uploadDir      string
	chunkSize      int
	chunkOverlap   int
	maxUploadBytes int64
}

func NewDocumentService(docs DocumentStore, vectors *vectorindex.Store, loaders *loader.Registry, uploadDir string, rag config.RAGConfig) *DocumentService {
	return &DocumentService{
		docs:           docs,
		vectors:        vectors,
		loaders:        loaders,
		uploadDir:      uploadDir,
		chunkSize:      rag.ChunkSize,
		chunkOverlap:   rag.ChunkOverlap,
		maxUploadBytes: rag.MaxUploadBytes,
	}
}

// Supports reports whether Ingest accepts the declared fileType.
func (s *DocumentService) Supports(fileType string) bool {
	return s.loaders.Supports(fileType)
}

// Ingest stores the upload, extracts and chunks its text, indexes the chunks
// for the caller's tenant and records the document. An empty declaredType
// is taken from the filename extension. Any failure removes the stored
// upload; unsupported or oversized input is rejected before anything is
// written.
func (s *DocumentService) Ingest(ctx context.Context, id domain.Identity, filename, declaredType string, data []byte) (*store.Document, error) {
	if declaredType == "" {
		declaredType = utils.FileType(filename)
	}
	fileType, err := s.loaders.Resolve(declaredType)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: file is empty", domain.ErrInvalidDocument)
	}
	if s.maxUploadBytes > 0 && int64(len(data)) > s.maxUploadBytes {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", domain.ErrInvalidInput, s.maxUploadBytes)
	}

	uploadID := uuid.NewString()
	path, err := s.saveUpload(id.TenantID, uploadID, filename, data)
	if err != nil {
		return nil, err
	}
	ingested := false
	defer func() {
		if ingested {
			return
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Printf("Failed to remove upload %s after failed ingestion: %v", path, err)
		}
	}()

	text, err := s.loaders.Load(ctx, fileType, data)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: no extractable text", domain.ErrInvalidDocument)
	}

	pieces, err := chunker.Split(text, s.chunkSize, s.chunkOverlap)
	if err != nil {
		return nil, err
	}
	inputs := make([]domain.ChunkInput, len(pieces))
	for i, piece := range pieces {
		inputs[i] = domain.ChunkInput{
			Text:           piece,
			SourceDocument: uploadID,
			SequenceIndex:  i,
			Metadata: domain.Metadata{
				"filename":    filename,
				"file_type":   fileType,
				"chunk_index": i,
				"tenant_id":   id.TenantID,
				"upload_id":   uploadID,
			},
		}
	}

	idx := s.vectors.ForTenant(id.TenantID)
	vectorIDs, err := idx.AddChunks(ctx, inputs)
	if err != nil {
		log.Printf("Embedding %s for tenant %d failed: %s", filename, id.TenantID, domain.Describe(err))
		return nil, err
	}

	doc := &store.Document{
		TenantID:   id.TenantID,
		UploadID:   uploadID,
		Filename:   filename,
		FileType:   fileType,
		FilePath:   path,
		ChunkCount: len(vectorIDs),
		VectorIDs:  vectorIDs,
		UploadedBy: id.UserID,
	}
	if err := s.docs.CreateDocument(ctx, doc); err != nil {
		s.discardVectors(context.WithoutCancel(ctx), idx, vectorIDs)
		return nil, fmt.Errorf("failed to record document: %w", err)
	}

	ingested = true
	log.Printf("Ingested document %d (%s) for tenant %d: %d chunks", doc.ID, filename, id.TenantID, doc.ChunkCount)
	return doc, nil
}

// IngestFile reads path from disk and ingests it under its base name.
func (s *DocumentService) IngestFile(ctx context.Context, id domain.Identity, path, declaredType string) (*store.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return s.Ingest(ctx, id, filepath.Base(path), declaredType, data)
}

func (s *DocumentService) saveUpload(tenantID int64, uploadID, filename string, data []byte) (string, error) {
	dir := filepath.Join(s.uploadDir, strconv.FormatInt(tenantID, 10))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Printf("Failed to create upload directory %s: %v", dir, err)
		return "", errStoreUpload
	}
	path := filepath.Join(dir, uploadID+"_"+utils.SanitizeFilename(filename))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Printf("Failed to write upload %s: %v", path, err)
		os.Remove(path)
		return "", errStoreUpload
	}
	return path, nil
}

// discardVectors removes chunks whose document record could not be written.
func (s *DocumentService) discardVectors(ctx context.Context, idx *vectorindex.TenantIndex, ids []string) {
	removed, err := idx.Delete(ctx, ids)
	if err != nil {
		log.Printf("Orphaned vectors in %s after failed document insert (%d of %d removed): %v; ids=%v",
			idx.Namespace(), removed, len(ids), err, ids)
		return
	}
	log.Printf("Removed %d vectors from %s after failed document insert", removed, idx.Namespace())
}

func (s *DocumentService) ListDocuments(ctx context.Context, id domain.Identity) ([]store.Document, error) {
	return s.docs.ListDocuments(ctx, id.TenantID)
}

// DeleteDocument soft-deletes the record and purges its chunks from the
// tenant index. The record keeps its vector ids.
func (s *DocumentService) DeleteDocument(ctx context.Context, id domain.Identity, documentID int64) error {
	doc, err := s.docs.GetDocument(ctx, id.TenantID, documentID)
	if err != nil {
		return store.NotFound(err, domain.ErrDocumentNotFound)
	}
	if !doc.IsActive {
		return domain.ErrDocumentNotFound
	}
	if err := s.docs.DeactivateDocument(ctx, id.TenantID, documentID); err != nil {
		return store.NotFound(err, domain.ErrDocumentNotFound)
	}

	idx := s.vectors.ForTenant(id.TenantID)
	removed, err := idx.Delete(context.WithoutCancel(ctx), doc.VectorIDs)
	if err != nil {
		log.Printf("Document %d deactivated but vector purge failed (%d of %d removed): %v", doc.ID, removed, len(doc.VectorIDs), err)
		return nil
	}
	log.Printf("Document %d deactivated for tenant %d, %d vectors purged", doc.ID, id.TenantID, removed)
	return nil
}
