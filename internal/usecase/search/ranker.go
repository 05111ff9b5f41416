package search

import (
	"sort"

	"github.com/kailas-cloud/hybridex/internal/domain/metric"
	"github.com/kailas-cloud/hybridex/internal/domain/search/match"
)

type parentGroup struct {
	key      string
	first    match.Hit
	count    int
	scoreSum float64
}

// Merge aggregates chunk-level hits into at most limit parent-level matches.
// Parents with more matching chunks always come first. Within a tier the summed score decides,
// in the metric's direction, then the parent id ascending. The representative chunk of a parent
// is the first of its hits encountered. Each parent appears once.
func Merge(hits []match.Hit, dir metric.Direction, limit int) []match.Match {
	groups := make(map[string]*parentGroup)
	order := make([]*parentGroup, 0, len(hits))
	for _, h := range hits {
		key := h.Document.GroupKey()
		g, ok := groups[key]
		if !ok {
			g = &parentGroup{key: key, first: h}
			groups[key] = g
			order = append(order, g)
		}
		g.count++
		g.scoreSum += h.Score.Value
	}

	sort.SliceStable(order, func(i, j int) bool {
		a, b := order[i], order[j]
		if a.count != b.count {
			return a.count > b.count
		}
		if a.scoreSum != b.scoreSum {
			return metric.Score{Value: a.scoreSum, Direction: dir}.Better(
				metric.Score{Value: b.scoreSum, Direction: dir})
		}
		return a.key < b.key
	})

	if limit > 0 && len(order) > limit {
		order = order[:limit]
	}
	out := make([]match.Match, len(order))
	for i, g := range order {
		m := match.FromHit(g.first)
		m.Chunks = g.count
		out[i] = m
	}
	return out
}
