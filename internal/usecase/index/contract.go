package index

import (
	"context"

	"github.com/kailas-cloud/hybridex/internal/domain/document"
	"github.com/kailas-cloud/hybridex/internal/domain/search/filter"
)

// Backend is the write side of the backing store.
type Backend interface {
	Index(ctx context.Context, docs []document.Document) error
	Delete(ctx context.Context, ids []string, f filter.Expression) ([]string, error)
}

// Cache mirrors ids and tags of stored documents. It is only touched after a confirmed write.
type Cache interface {
	Put(docs []document.Document)
	Remove(ids []string)
}

// Materializer resolves a URI to its bytes and content type.
type Materializer interface {
	Fetch(ctx context.Context, uri string) (data []byte, contentType string, err error)
}
