// Package embedding turns query text into vectors through the configured providers.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/hybridex/internal/domain"
	"github.com/kailas-cloud/hybridex/internal/metrics"
)

// InstrumentedEmbedder wraps the provider of one encoder with metrics, logging and a
// dimensionality check against the indexed schema.
type InstrumentedEmbedder struct {
	inner      domain.Embedder
	encoder    string
	model      string
	dimensions int
	logger     *zap.Logger
}

// NewInstrumentedEmbedder wraps an embedder. dimensions 0 skips the length check.
func NewInstrumentedEmbedder(
	inner domain.Embedder, encoder, model string, dimensions int, logger *zap.Logger,
) *InstrumentedEmbedder {
	return &InstrumentedEmbedder{
		inner:      inner,
		encoder:    encoder,
		model:      model,
		dimensions: dimensions,
		logger:     logger,
	}
}

// Embed delegates to the provider and records the outcome.
func (p *InstrumentedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	start := time.Now()

	result, err := p.inner.Embed(ctx, text)

	duration := time.Since(start)

	if err != nil {
		p.fail(errorType(err))
		p.logger.Error("Embedding request failed",
			zap.String("encoder", p.encoder),
			zap.String("model", p.model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}

	if p.dimensions > 0 && len(result.Embedding) != p.dimensions {
		p.fail("dimensions")
		return domain.EmbeddingResult{}, fmt.Errorf("encoder %s returned %d dimensions, index has %d: %w",
			p.encoder, len(result.Embedding), p.dimensions, domain.ErrEmbeddingProviderError)
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(p.encoder, p.model, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(p.encoder, p.model).Observe(duration.Seconds())
	if result.TotalTokens > 0 {
		metrics.EmbeddingTokensTotal.WithLabelValues(p.encoder, p.model).Add(float64(result.TotalTokens))
	}

	p.logger.Debug("Embedding request completed",
		zap.String("encoder", p.encoder),
		zap.String("model", p.model),
		zap.Duration("duration", duration),
		zap.Int("dimensions", len(result.Embedding)),
		zap.Int("total_tokens", result.TotalTokens),
	)
	return result, nil
}

func (p *InstrumentedEmbedder) fail(kind string) {
	metrics.EmbeddingRequestsTotal.WithLabelValues(p.encoder, p.model, "error").Inc()
	metrics.EmbeddingErrorsTotal.WithLabelValues(p.encoder, p.model, kind).Inc()
}

func errorType(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "timeout"
	case errors.Is(err, domain.ErrEmbeddingProviderError):
		return "api_error"
	default:
		return "unknown"
	}
}
