// Package llm provides decorators shared by the generative service
// adapters.
package llm

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/docstash-cli/internal/core/ports/driven"
)

// Ensure RateLimited implements the interface.
var _ driven.GenerativeService = (*RateLimited)(nil)

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate limit.
	RequestsPerSecond float64

	// BurstSize is the maximum burst size.
	BurstSize int
}

// DefaultRateLimit keeps a long ingest well below typical provider
// quotas.
var DefaultRateLimit = RateLimitConfig{RequestsPerSecond: 1.0, BurstSize: 2}

// RateLimited wraps a generative service with a token bucket so a
// multi-hundred-page ingest doesn't trip provider rate limits.
type RateLimited struct {
	inner   driven.GenerativeService
	limiter *rate.Limiter
}

// NewRateLimited wraps svc with the given rate limit configuration.
func NewRateLimited(svc driven.GenerativeService, cfg RateLimitConfig) *RateLimited {
	if cfg.RequestsPerSecond <= 0 {
		cfg = DefaultRateLimit
	}
	if cfg.BurstSize < 1 {
		cfg.BurstSize = 1
	}
	return &RateLimited{
		inner:   svc,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.BurstSize),
	}
}

// Complete waits for a token, then delegates.
func (r *RateLimited) Complete(ctx context.Context, messages []driven.Message) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return r.inner.Complete(ctx, messages)
}

// CompleteStream waits for a token, then delegates.
func (r *RateLimited) CompleteStream(ctx context.Context, messages []driven.Message, onChunk func(string)) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return r.inner.CompleteStream(ctx, messages, onChunk)
}

// SupportsVision delegates to the wrapped service.
func (r *RateLimited) SupportsVision() bool {
	return r.inner.SupportsVision()
}

// ModelName delegates to the wrapped service.
func (r *RateLimited) ModelName() string {
	return r.inner.ModelName()
}

// Close delegates to the wrapped service.
func (r *RateLimited) Close() error {
	return r.inner.Close()
}
