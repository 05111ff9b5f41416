package catalog

import (
	"github.com/kailas-cloud/hybridex/internal/domain/document"
	"github.com/kailas-cloud/hybridex/internal/domain/search/filter"
)

// Cache is the read side of the tag cache.
type Cache interface {
	List(offset, limit int, f filter.Expression) []document.Document
	Count(offset, limit int, f filter.Expression) int
	TopValues(n int) map[string][]document.TagCount
}
