package search

import (
	"fmt"
	"math"

	"github.com/kailas-cloud/hybridex/internal/domain"
	"github.com/kailas-cloud/hybridex/internal/domain/schema"
	"github.com/kailas-cloud/hybridex/internal/domain/search/query"
	"github.com/kailas-cloud/hybridex/internal/domain/search/term"
)

// Resolver derives comparable score terms from the fields present on a query.
type Resolver struct {
	schema schema.Schema
}

// NewResolver creates a Resolver over the indexed schema.
func NewResolver(s schema.Schema) *Resolver {
	return &Resolver{schema: s}
}

// Generate emits one term per (query field, indexed field, encoder) pair. A query field pairs
// with an indexed field of the same name, or, for flat queries, with every indexed field of its
// modality. Only encoders the query field carries a vector for are compared.
func (r *Resolver) Generate(q query.Query) ([]term.ScoreTerm, error) {
	var terms []term.ScoreTerm
	for _, qf := range q.Fields() {
		for enc, vec := range qf.Embeddings() {
			e, ok := r.schema.Encoder(enc)
			if !ok {
				return nil, fmt.Errorf("%w: query field %q uses unknown encoder %q",
					domain.ErrSchemaMismatch, qf.Name(), enc)
			}
			if len(vec) != e.Dimensions() {
				return nil, fmt.Errorf("%w: query field %q has %d dimensions for encoder %q, index has %d",
					domain.ErrSchemaMismatch, qf.Name(), len(vec), enc, e.Dimensions())
			}
		}
	}

	for _, qf := range q.Fields() {
		modality := q.FieldModality(qf)
		for _, e := range r.schema.Encoders() {
			if _, ok := qf.Embedding(e.Name()); !ok {
				continue
			}
			for _, indexed := range e.Fields() {
				if !pairs(q.Flat(), qf.Name(), modality, indexed) {
					continue
				}
				t, err := term.New(qf.Name(), indexed.Name, e.Name(), term.DefaultWeight)
				if err != nil {
					return nil, fmt.Errorf("%w: %w", domain.ErrSchemaMismatch, err)
				}
				terms = append(terms, t)
			}
		}
	}
	return terms, nil
}

// Validate checks caller-supplied terms against the query and the schema.
// Comparing vectors from different encoders or dimensions is rejected here.
func (r *Resolver) Validate(q query.Query, terms []term.ScoreTerm) error {
	for _, t := range terms {
		e, ok := r.schema.Encoder(t.Encoder)
		if !ok {
			return fmt.Errorf("%w: term %s: unknown encoder %q", domain.ErrSchemaMismatch, t.Label(), t.Encoder)
		}
		if _, ok := e.Field(t.DocumentField); !ok {
			return fmt.Errorf("%w: term %s: encoder %q does not index field %q",
				domain.ErrSchemaMismatch, t.Label(), t.Encoder, t.DocumentField)
		}
		qf, ok := q.Field(t.QueryField)
		if !ok {
			return fmt.Errorf("%w: term %s: query has no field %q", domain.ErrSchemaMismatch, t.Label(), t.QueryField)
		}
		vec, ok := qf.Embedding(t.Encoder)
		if !ok {
			return fmt.Errorf("%w: term %s: query field %q has no %q embedding",
				domain.ErrSchemaMismatch, t.Label(), t.QueryField, t.Encoder)
		}
		if len(vec) != e.Dimensions() {
			return fmt.Errorf("%w: term %s: %d dimensions, encoder %q has %d",
				domain.ErrSchemaMismatch, t.Label(), len(vec), t.Encoder, e.Dimensions())
		}
		if math.IsNaN(t.Weight) || math.IsInf(t.Weight, 0) {
			return fmt.Errorf("%w: term %s: weight must be finite", domain.ErrInvalidQuery, t.Label())
		}
	}
	return nil
}

func pairs(flat bool, queryField, modality string, indexed schema.IndexedField) bool {
	if indexed.Name == queryField {
		return true
	}
	return flat && modality != "" && indexed.Modality == modality
}
