package curation

import (
	"context"

	"github.com/kailas-cloud/hybridex/internal/domain/curation"
	"github.com/kailas-cloud/hybridex/internal/domain/document"
	"github.com/kailas-cloud/hybridex/internal/domain/search/filter"
)

// Store persists curation rules.
type Store interface {
	Load(ctx context.Context) ([]curation.Rule, error)
	Save(ctx context.Context, rules []curation.Rule) error
}

// DocumentLister resolves a filter to stored documents in id order.
type DocumentLister interface {
	List(offset, limit int, f filter.Expression) []document.Document
}
