package embedding

import (
	"context"

	"golang.org/x/time/rate"

	"gwi.com/support-chatbot/internal/domain"
)

// RateLimited throttles calls to an embedding provider with a token bucket.
type RateLimited struct {
	inner   domain.Embedder
	limiter *rate.Limiter
}

var _ domain.Embedder = (*RateLimited)(nil)

// NewRateLimited wraps inner. A non-positive rps disables throttling.
func NewRateLimited(inner domain.Embedder, rps float64, burst int) *RateLimited {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimited{inner: inner, limiter: rate.NewLimiter(limit, burst)}
}

// Embed blocks until the limiter admits the call or ctx is done.
func (r *RateLimited) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.Embed(ctx, text)
}
