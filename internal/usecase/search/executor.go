package search

import (
	"context"
	"time"

	"github.com/kailas-cloud/hybridex/internal/domain"
	"github.com/kailas-cloud/hybridex/internal/domain/search/match"
	"github.com/kailas-cloud/hybridex/internal/domain/search/plan"
	"github.com/kailas-cloud/hybridex/internal/metrics"
)

// Executor issues fused plans against the backing store. It never retries.
type Executor struct {
	backend Backend
	timeout time.Duration
}

// NewExecutor creates an Executor. A zero timeout leaves the caller's deadline in charge.
func NewExecutor(b Backend, timeout time.Duration) *Executor {
	return &Executor{backend: b, timeout: timeout}
}

// Execute runs p and returns at most topK raw hits.
func (e *Executor) Execute(ctx context.Context, p plan.Plan, topK int) ([]match.Hit, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	hits, err := e.backend.Search(ctx, p, topK)
	if err != nil {
		err = domain.BackingStoreError("search", err)
		metrics.ObserveBackendError("search", err)
		return nil, err
	}
	return hits, nil
}
