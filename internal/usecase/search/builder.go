package search

import (
	"fmt"

	"github.com/kailas-cloud/hybridex/internal/domain"
	"github.com/kailas-cloud/hybridex/internal/domain/metric"
	"github.com/kailas-cloud/hybridex/internal/domain/search/filter"
	"github.com/kailas-cloud/hybridex/internal/domain/search/plan"
	"github.com/kailas-cloud/hybridex/internal/domain/search/query"
	"github.com/kailas-cloud/hybridex/internal/domain/search/term"
	"github.com/kailas-cloud/hybridex/internal/domain/value"
)

// BuildInput is everything the builder fuses into one plan.
type BuildInput struct {
	Query        query.Query
	Terms        []term.ScoreTerm
	Filter       value.Value
	Pinned       []string
	ApplyLexical bool
	LexicalQuery string
}

// Builder turns a query, its score terms, filters and curation pins into a fused plan.
// It performs no I/O.
type Builder struct {
	metric metric.Metric
}

// NewBuilder creates a Builder for the index metric.
func NewBuilder(m metric.Metric) *Builder {
	return &Builder{metric: m}
}

// Build produces the plan. The base clause is lexical when a custom lexical query is given or
// ApplyLexical is set and the query has text; otherwise it matches everything.
func (b *Builder) Build(in BuildInput) (plan.Plan, error) {
	lexical := in.LexicalQuery
	if lexical == "" && in.ApplyLexical {
		lexical = in.Query.LexicalText()
	}

	vterms := make([]plan.VectorTerm, 0, len(in.Terms))
	for _, t := range in.Terms {
		qf, ok := in.Query.Field(t.QueryField)
		if !ok {
			return plan.Plan{}, fmt.Errorf("%w: term %s: query has no field %q",
				domain.ErrSchemaMismatch, t.Label(), t.QueryField)
		}
		vec, ok := qf.Embedding(t.Encoder)
		if !ok {
			return plan.Plan{}, fmt.Errorf("%w: term %s: query field has no %q embedding",
				domain.ErrSchemaMismatch, t.Label(), t.Encoder)
		}
		vterms = append(vterms, plan.VectorTerm{ScoreTerm: t, Vector: vec})
	}

	expr, err := filter.ParseValue(in.Filter)
	if err != nil {
		return plan.Plan{}, fmt.Errorf("filter: %w", err)
	}

	return plan.New(lexical, vterms, expr, dedupe(in.Pinned), b.metric), nil
}

func dedupe(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
