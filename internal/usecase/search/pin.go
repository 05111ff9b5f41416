package search

import "github.com/kailas-cloud/hybridex/internal/domain/search/match"

// applyPins places pinned matches first, in pin order, followed by the organic matches
// that do not duplicate a pinned document, truncated to limit.
func applyPins(pinnedIDs []string, pinned, organic []match.Match, limit int) []match.Match {
	byID := make(map[string]match.Match, len(pinned))
	for _, m := range pinned {
		byID[m.ChunkID] = m
	}

	out := make([]match.Match, 0, limit)
	taken := make(map[string]struct{}, len(pinnedIDs)*2)
	for _, id := range pinnedIDs {
		m, ok := byID[id]
		if !ok {
			continue
		}
		if _, dup := taken[m.ID]; dup {
			continue
		}
		m.Pinned = true
		out = append(out, m)
		taken[m.ID] = struct{}{}
		taken[m.ChunkID] = struct{}{}
	}

	for _, m := range organic {
		if len(out) >= limit {
			break
		}
		_, dupParent := taken[m.ID]
		_, dupChunk := taken[m.ChunkID]
		if dupParent || dupChunk {
			continue
		}
		out = append(out, m)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
