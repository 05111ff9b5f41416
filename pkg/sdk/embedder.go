package hybridex

import "context"

// Embedder converts query text to a vector for one encoder.
// Optional: queries may carry their own vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// EmbeddingResult carries the embedding vector and token count.
type EmbeddingResult struct {
	Embedding   []float32
	TotalTokens int
}
