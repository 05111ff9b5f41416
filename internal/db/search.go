package db

import "github.com/kailas-cloud/hybridex/internal/domain/search/filter"

// KNNQuery is the input for vector similarity search over one vector attribute.
type KNNQuery struct {
	IndexName string
	// Field is the vector attribute (alias) searched.
	Field   string
	Filters filter.Expression
	Vector  []float32
	K       int
}

// TextQuery is the input for BM25 text search over one TEXT attribute.
type TextQuery struct {
	IndexName string
	Field     string
	Query     string
	Filters   filter.Expression
	TopK      int
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search. Fields hold every hash field.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
