// Package loader extracts plain text from uploaded documents. One Loader
// exists per supported file type; unknown types are rejected before any
// loader runs.
package loader

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"gwi.com/support-chatbot/internal/domain"
)

// Loader extracts text from the raw bytes of one document format.
type Loader interface {
	Load(ctx context.Context, data []byte) (string, error)
}

// Registry dispatches to a Loader by declared file type.
type Registry struct {
	loaders map[string]Loader
}

// NewRegistry returns a registry with the pdf, docx, txt and md loaders.
func NewRegistry() *Registry {
	r := &Registry{loaders: make(map[string]Loader)}
	r.Register("pdf", NewPDFLoader())
	r.Register("docx", NewDOCXLoader())
	r.Register("txt", NewTextLoader())
	r.Register("md", NewTextLoader())
	return r
}

// Register adds or replaces the loader for fileType.
func (r *Registry) Register(fileType string, l Loader) {
	r.loaders[normalize(fileType)] = l
}

// Supports reports whether fileType has a loader.
func (r *Registry) Supports(fileType string) bool {
	_, ok := r.loaders[normalize(fileType)]
	return ok
}

// Types returns the supported file types in sorted order.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.loaders))
	for t := range r.loaders {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Resolve normalizes fileType and fails with ErrUnsupportedFormat when no
// loader handles it.
func (r *Registry) Resolve(fileType string) (string, error) {
	t := normalize(fileType)
	if _, ok := r.loaders[t]; !ok {
		return "", fmt.Errorf("%w: %q (allowed: %s)", domain.ErrUnsupportedFormat, fileType, strings.Join(r.Types(), ", "))
	}
	return t, nil
}

// Load extracts text from data using the loader for fileType.
func (r *Registry) Load(ctx context.Context, fileType string, data []byte) (string, error) {
	t, err := r.Resolve(fileType)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return r.loaders[t].Load(ctx, data)
}

func normalize(fileType string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(fileType)), ".")
}
