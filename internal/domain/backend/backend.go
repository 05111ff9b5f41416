// Package backend declares the capability interface every backing store implements.
package backend

import (
	"context"

	"github.com/kailas-cloud/hybridex/internal/domain/document"
	"github.com/kailas-cloud/hybridex/internal/domain/search/filter"
	"github.com/kailas-cloud/hybridex/internal/domain/search/match"
	"github.com/kailas-cloud/hybridex/internal/domain/search/plan"
)

// Driver names a backend implementation selected once at startup.
type Driver string

// Known drivers.
const (
	DriverEmbedded Driver = "embedded"
	DriverRedis    Driver = "redis"
	DriverValkey   Driver = "valkey"
)

// Backend stores documents and executes fused plans.
// Errors are wrapped with domain.BackingStoreError unless they signal caller misuse.
type Backend interface {
	// Index stores documents, fully replacing any previous version with the same id.
	Index(ctx context.Context, docs []document.Document) error
	// Delete removes documents by id and, when f is non-empty, every document matching f.
	// It returns the ids that were removed.
	Delete(ctx context.Context, ids []string, f filter.Expression) ([]string, error)
	// Search executes p and returns at most topK hits, pinned hits first.
	Search(ctx context.Context, p plan.Plan, topK int) ([]match.Hit, error)
	// List returns documents ordered by id, without embeddings. limit 0 means no bound.
	List(ctx context.Context, offset, limit int) ([]document.Document, error)
	// Count returns the number of stored documents.
	Count(ctx context.Context) (int, error)
	Ping(ctx context.Context) error
	Close() error
}
