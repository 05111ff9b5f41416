package hybridex

import "github.com/kailas-cloud/hybridex/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrNotFound               = domain.ErrNotFound
	ErrSchemaMismatch         = domain.ErrSchemaMismatch
	ErrUnsupportedOperator    = domain.ErrUnsupportedOperator
	ErrFilterRequired         = domain.ErrFilterRequired
	ErrInvalidDocument        = domain.ErrInvalidDocument
	ErrInvalidQuery           = domain.ErrInvalidQuery
	ErrBackingStore           = domain.ErrBackingStore
	ErrBackingStoreTimeout    = domain.ErrBackingStoreTimeout
	ErrMaterialize            = domain.ErrMaterialize
	ErrEmbeddingProviderError = domain.ErrEmbeddingProviderError
)
