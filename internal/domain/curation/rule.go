// Package curation models manual overrides that pin documents to the top for a literal query.
package curation

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/hybridex/internal/domain"
	"github.com/kailas-cloud/hybridex/internal/domain/search/filter"
	"github.com/kailas-cloud/hybridex/internal/domain/value"
)

// MaxFiltersPerRule bounds how many documents one rule can pin.
const MaxFiltersPerRule = 50

// Rule maps a literal query text to an ordered list of document filters.
// Each filter is resolved to document ids at search time, in order.
type Rule struct {
	query   string
	filters []map[string]value.Value
}

// NormalizeQuery returns the lookup key for a query text.
func NormalizeQuery(text string) string { return strings.TrimSpace(text) }

// NewRule validates and creates a Rule. Every filter must parse and be non-empty.
func NewRule(query string, filters []map[string]value.Value) (Rule, error) {
	q := NormalizeQuery(query)
	if q == "" {
		return Rule{}, fmt.Errorf("%w: curation query text is required", domain.ErrInvalidQuery)
	}
	if len(filters) > MaxFiltersPerRule {
		return Rule{}, fmt.Errorf("%w: curation %q has %d filters (max %d)",
			domain.ErrInvalidQuery, q, len(filters), MaxFiltersPerRule)
	}
	for i, f := range filters {
		if len(f) == 0 {
			return Rule{}, fmt.Errorf("%w: curation %q filter %d is empty", domain.ErrInvalidQuery, q, i)
		}
		if _, err := filter.Parse(f); err != nil {
			return Rule{}, fmt.Errorf("curation %q filter %d: %w", q, i, err)
		}
	}
	cp := make([]map[string]value.Value, len(filters))
	copy(cp, filters)
	return Rule{query: q, filters: cp}, nil
}

// Reconstruct hydrates a Rule from storage without validation.
func Reconstruct(query string, filters []map[string]value.Value) Rule {
	return Rule{query: query, filters: filters}
}

// Query returns the normalized query text.
func (r Rule) Query() string { return r.query }

// Filters returns the raw filters in pin order.
func (r Rule) Filters() []map[string]value.Value { return r.filters }

// Expressions parses every filter, keeping order.
func (r Rule) Expressions() ([]filter.Expression, error) {
	out := make([]filter.Expression, 0, len(r.filters))
	for i, f := range r.filters {
		expr, err := filter.Parse(f)
		if err != nil {
			return nil, fmt.Errorf("curation %q filter %d: %w", r.query, i, err)
		}
		out = append(out, expr)
	}
	return out, nil
}
