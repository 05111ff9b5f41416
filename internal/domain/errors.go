package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrAuthDenied signals a missing, invalid or insufficient credential.
	ErrAuthDenied = errors.New("unauthorized")
	// ErrSchemaMismatch signals a query or document that does not fit the indexed schema.
	ErrSchemaMismatch = errors.New("schema mismatch")
	// ErrUnsupportedOperator signals a filter operator outside eq/lt/lte/gt/gte.
	ErrUnsupportedOperator = errors.New("unsupported filter operator")
	// ErrFilterRequired signals a delete call with neither ids nor a filter.
	ErrFilterRequired = errors.New("ids or filter required")
	// ErrInvalidDocument signals a document that failed validation.
	ErrInvalidDocument = errors.New("invalid document")
	// ErrInvalidQuery signals a malformed search request.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrBackingStore signals a backing store failure.
	ErrBackingStore = errors.New("backing store unavailable")
	// ErrBackingStoreTimeout signals a backing store call that ran out of time.
	ErrBackingStoreTimeout = errors.New("backing store timeout")
	// ErrMaterialize signals a URI that could not be resolved to bytes.
	ErrMaterialize = errors.New("materialization failed")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
)

// BackingStoreError classifies an error returned by a backend call.
// Deadline and cancellation map to ErrBackingStoreTimeout, everything else to ErrBackingStore.
// Caller misuse errors (schema, filter, query) pass through untouched.
func BackingStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrSchemaMismatch) || errors.Is(err, ErrUnsupportedOperator) ||
		errors.Is(err, ErrInvalidQuery) ||
		errors.Is(err, ErrBackingStore) || errors.Is(err, ErrBackingStoreTimeout) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w: %w", op, ErrBackingStoreTimeout, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrBackingStore, err)
}
