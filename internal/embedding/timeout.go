package embedding

import (
	"context"
	"time"

	"gwi.com/support-chatbot/internal/domain"
)

// Timeout bounds every call to the wrapped embedder.
type Timeout struct {
	inner   domain.Embedder
	timeout time.Duration
}

var _ domain.Embedder = (*Timeout)(nil)

// NewTimeout wraps inner. A non-positive d leaves calls unbounded.
func NewTimeout(inner domain.Embedder, d time.Duration) *Timeout {
	return &Timeout{inner: inner, timeout: d}
}

func (t *Timeout) Embed(ctx context.Context, text string) ([]float32, error) {
	if t.timeout <= 0 {
		return t.inner.Embed(ctx, text)
	}
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.inner.Embed(ctx, text)
}
