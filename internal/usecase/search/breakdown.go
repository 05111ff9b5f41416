package search

import (
	"github.com/kailas-cloud/hybridex/internal/domain/metric"
	"github.com/kailas-cloud/hybridex/internal/domain/search/match"
	"github.com/kailas-cloud/hybridex/internal/domain/search/plan"
)

// Breakdown labels for the lexical part of the fused score.
const (
	LabelLexicalNormalized = "lexical_normalized"
	LabelLexicalRaw        = "lexical_raw"
)

// Breakdown recomputes every term's contribution from the embeddings on the query and the hit,
// independent of how the backing store scored it. The lexical sub-scores are derived from
// what remains of the hit's total. Terms the hit has no embedding for are left out.
func Breakdown(p plan.Plan, hit match.Hit) map[string]float64 {
	out := make(map[string]float64, len(p.Terms())+2)
	vectorSum := 0.0
	for _, t := range p.Terms() {
		vec, ok := hit.Document.Embedding(t.DocumentField, t.Encoder)
		if !ok {
			continue
		}
		sim, err := p.Metric().Compare(t.Vector, vec)
		if err != nil {
			continue
		}
		c := t.Weight * sim
		out[t.Label()] = c
		vectorSum += c
	}

	normalized := 0.0
	if !p.MatchAll() {
		normalized = hit.Score.Value - vectorSum
		if p.Direction() == metric.Distance {
			normalized = vectorSum - hit.Score.Value
		}
		if normalized < 0 {
			normalized = 0
		}
	}
	out[LabelLexicalNormalized] = normalized
	out[LabelLexicalRaw] = plan.RawLexical(normalized)
	return out
}
