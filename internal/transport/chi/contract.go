package chi

import (
	"context"

	dombatch "github.com/kailas-cloud/hybridex/internal/domain/batch"
	"github.com/kailas-cloud/hybridex/internal/domain/auth"
	"github.com/kailas-cloud/hybridex/internal/domain/curation"
	"github.com/kailas-cloud/hybridex/internal/domain/document"
	"github.com/kailas-cloud/hybridex/internal/domain/search/match"
	"github.com/kailas-cloud/hybridex/internal/domain/search/request"
	"github.com/kailas-cloud/hybridex/internal/domain/value"
	accessuc "github.com/kailas-cloud/hybridex/internal/usecase/access"
	healthuc "github.com/kailas-cloud/hybridex/internal/usecase/health"
)

// Searcher runs hybrid searches.
type Searcher interface {
	Search(ctx context.Context, req request.Request) ([]match.Match, error)
}

// Indexer writes documents.
type Indexer interface {
	Index(ctx context.Context, docs []document.Document) ([]dombatch.Result, error)
	Update(ctx context.Context, docs []document.Document) ([]dombatch.Result, error)
	Delete(ctx context.Context, ids []string, f value.Value) (int, error)
}

// Catalog reads the tag cache.
type Catalog interface {
	List(offset, limit int, f value.Value) ([]document.Document, error)
	Count(offset, limit int, f value.Value) (int, error)
	GetTags() map[string][]document.TagCount
}

// Curator manages curation rules.
type Curator interface {
	Curate(ctx context.Context, entries map[string][]map[string]value.Value) error
	Rules() []curation.Rule
}

// Access is the authorization gate and allow-list manager.
type Access interface {
	Authorize(ctx context.Context, level auth.Level, creds auth.Credentials) (auth.Decision, error)
	Replace(ctx context.Context, lists auth.AllowLists) error
	Summary() accessuc.Summary
}

// HealthChecker reports readiness.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}
