// Package plan holds the fused query: the single object a backend executes to rank documents.
package plan

import (
	"math"

	"github.com/kailas-cloud/hybridex/internal/domain/document"
	"github.com/kailas-cloud/hybridex/internal/domain/metric"
	"github.com/kailas-cloud/hybridex/internal/domain/search/filter"
	"github.com/kailas-cloud/hybridex/internal/domain/search/term"
)

// LexicalNormalization bounds the lexical contribution into [0, 1): lex / (lex + 10).
const LexicalNormalization = 10.0

// VectorTerm is a resolved ScoreTerm carrying the query vector it compares with.
type VectorTerm struct {
	term.ScoreTerm
	Vector []float32
}

// Plan is the fused query. An empty lexical text means the base clause matches everything.
type Plan struct {
	lexical string
	terms   []VectorTerm
	filter  filter.Expression
	pinned  []string
	metric  metric.Metric
}

// New creates a Plan. Validation is the builder's job.
func New(lexical string, terms []VectorTerm, f filter.Expression, pinned []string, m metric.Metric) Plan {
	return Plan{lexical: lexical, terms: terms, filter: f, pinned: pinned, metric: m}
}

// Lexical returns the text of the lexical base clause.
func (p Plan) Lexical() string { return p.lexical }

// MatchAll reports whether the base clause accepts every document.
func (p Plan) MatchAll() bool { return p.lexical == "" }

// Terms returns the vector terms.
func (p Plan) Terms() []VectorTerm { return p.terms }

// Filter returns the hard filter.
func (p Plan) Filter() filter.Expression { return p.filter }

// Pinned returns ids forced to the front, in order.
func (p Plan) Pinned() []string { return p.pinned }

// Metric returns the vector metric.
func (p Plan) Metric() metric.Metric { return p.metric }

// Direction returns the direction fused scores rank in.
func (p Plan) Direction() metric.Direction { return p.metric.Direction() }

// WithoutPinned returns the organic part of the plan.
func (p Plan) WithoutPinned() Plan {
	p.pinned = nil
	return p
}

// WithFilter returns a copy with a different filter.
func (p Plan) WithFilter(f filter.Expression) Plan {
	p.filter = f
	return p
}

// NormalizeLexical maps a raw lexical score into [0, 1).
func NormalizeLexical(raw float64) float64 {
	if raw <= 0 {
		return 0
	}
	return raw / (raw + LexicalNormalization)
}

// RawLexical inverts NormalizeLexical.
func RawLexical(normalized float64) float64 {
	switch {
	case normalized <= 0:
		return 0
	case normalized >= 1:
		return math.Inf(1)
	default:
		return LexicalNormalization * normalized / (1 - normalized)
	}
}

// Contributions returns weight * similarity for every term, in term order.
// ok is false when the document lacks an embedding some term compares against.
func (p Plan) Contributions(doc document.Document) ([]float64, bool) {
	out := make([]float64, len(p.terms))
	for i, t := range p.terms {
		vec, ok := doc.Embedding(t.DocumentField, t.Encoder)
		if !ok {
			return nil, false
		}
		sim, err := p.metric.Compare(t.Vector, vec)
		if err != nil {
			return nil, false
		}
		out[i] = t.Weight * sim
	}
	return out, true
}

// Score evaluates Σ w·sim ± lex/(lex+10). The lexical part is zero for match-all plans and is
// subtracted for distance metrics, so a stronger text match always ranks a document higher.
func (p Plan) Score(doc document.Document, rawLexical float64) (metric.Score, bool) {
	parts, ok := p.Contributions(doc)
	if !ok {
		return metric.Score{}, false
	}
	total := 0.0
	if !p.MatchAll() {
		total = NormalizeLexical(rawLexical)
		if p.Direction() == metric.Distance {
			total = -total
		}
	}
	for _, c := range parts {
		total += c
	}
	return metric.Score{Value: total, Direction: p.Direction()}, true
}
