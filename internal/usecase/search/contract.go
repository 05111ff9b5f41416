package search

import (
	"context"

	"github.com/kailas-cloud/hybridex/internal/domain/search/match"
	"github.com/kailas-cloud/hybridex/internal/domain/search/plan"
	"github.com/kailas-cloud/hybridex/internal/domain/search/query"
)

// Backend executes fused plans against the backing store.
type Backend interface {
	Search(ctx context.Context, p plan.Plan, topK int) ([]match.Hit, error)
}

// CurationResolver resolves the curation rule stored for a query text into document ids.
type CurationResolver interface {
	Pinned(ctx context.Context, queryText string) ([]string, error)
}

// QueryEncoder fills in query vectors that the caller did not supply.
type QueryEncoder interface {
	Encode(ctx context.Context, q query.Query) (query.Query, error)
}
