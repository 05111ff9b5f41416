// Package match holds search results: raw backend hits and caller-facing matches.
package match

import (
	"sort"

	"github.com/kailas-cloud/hybridex/internal/domain/document"
	"github.com/kailas-cloud/hybridex/internal/domain/metric"
)

// Hit is one document returned by a backend for a plan.
type Hit struct {
	Document document.Document
	Score    metric.Score
	// Lexical is the raw lexical score the backend computed, zero for match-all plans.
	Lexical float64
	Pinned  bool
}

// Match is the per-request, read-only result returned to callers.
type Match struct {
	// ID is the parent document id the hit was aggregated under.
	ID string
	// ChunkID is the id of the representative chunk, equal to ID for unchunked documents.
	ChunkID   string
	Score     metric.Score
	Breakdown map[string]float64
	Document  document.Document
	Pinned    bool
	// Chunks is how many chunks of the parent matched.
	Chunks int
}

// FromHit builds a Match for a hit, keyed by its group.
func FromHit(h Hit) Match {
	return Match{
		ID:       h.Document.GroupKey(),
		ChunkID:  h.Document.ID(),
		Score:    h.Score,
		Document: h.Document,
		Pinned:   h.Pinned,
		Chunks:   1,
	}
}

// SortHits orders hits best first by their score direction, ties by document id.
func SortHits(hits []Hit) {
	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.Score.Better(b.Score) {
			return true
		}
		if b.Score.Better(a.Score) {
			return false
		}
		return a.Document.ID() < b.Document.ID()
	})
}
