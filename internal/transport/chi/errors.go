package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kailas-cloud/hybridex/internal/domain"
	"github.com/kailas-cloud/hybridex/internal/domain/auth"
)

// ErrorCode is the machine-readable part of an error response.
type ErrorCode string

// Error codes returned to clients.
const (
	CodeBadRequest          ErrorCode = "bad_request"
	CodeUnauthorized        ErrorCode = "unauthorized"
	CodeValidationFailed    ErrorCode = "validation_failed"
	CodeBackingStore        ErrorCode = "backing_store_unavailable"
	CodeBackingStoreTimeout ErrorCode = "backing_store_timeout"
	CodeEmbeddingProvider   ErrorCode = "embedding_provider_error"
	CodeInternal            ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// defaultErrorHandlers are consulted in order; the first match writes the response.
func defaultErrorHandlers() []errorHandler {
	return []errorHandler{
		sentinelHandler(domain.ErrAuthDenied, http.StatusUnauthorized, CodeUnauthorized),
		sentinelHandler(domain.ErrSchemaMismatch, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrUnsupportedOperator, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrFilterRequired, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrInvalidDocument, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrBackingStoreTimeout, http.StatusGatewayTimeout, CodeBackingStoreTimeout),
		sentinelHandler(domain.ErrBackingStore, http.StatusServiceUnavailable, CodeBackingStore),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, CodeEmbeddingProvider),
	}
}

// safeMessages are the only texts a client ever sees. Refinements come before their parents.
var safeMessages = []error{
	auth.ErrMissingCredentials,
	auth.ErrInvalidAPIKey,
	auth.ErrInvalidToken,
	auth.ErrUnknownIdentity,
	auth.ErrInsufficientLevel,
	domain.ErrAuthDenied,
	domain.ErrSchemaMismatch,
	domain.ErrUnsupportedOperator,
	domain.ErrFilterRequired,
	domain.ErrInvalidDocument,
	domain.ErrInvalidQuery,
	domain.ErrBackingStoreTimeout,
	domain.ErrBackingStore,
	domain.ErrEmbeddingProviderError,
	domain.ErrMaterialize,
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	for _, s := range safeMessages {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}
