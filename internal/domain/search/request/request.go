// Package request holds a validated search request.
package request

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/hybridex/internal/domain"
	"github.com/kailas-cloud/hybridex/internal/domain/search/query"
	"github.com/kailas-cloud/hybridex/internal/domain/search/term"
	"github.com/kailas-cloud/hybridex/internal/domain/value"
)

// Search parameter limits.
const (
	// MaxLexicalQueryLength is the maximum custom lexical query length.
	MaxLexicalQueryLength = 4096
	DefaultLimit          = 10
	MaxLimit              = 1000
)

// Options toggle optional search behaviour.
type Options struct {
	// ApplyLexical adds the query's text to the base clause.
	ApplyLexical bool
	// LexicalQuery overrides the lexical text; it implies ApplyLexical.
	LexicalQuery string
	// Breakdown asks for per-term score contributions.
	Breakdown bool
	// Terms replaces the resolved score terms when non-empty.
	Terms []term.ScoreTerm
}

// Request is a validated search query.
type Request struct {
	query   query.Query
	limit   int
	filter  value.Value
	options Options
}

// New validates and normalizes search parameters. A zero limit falls back to DefaultLimit.
// The filter stays in its dictionary form; the query builder translates it.
func New(q query.Query, limit int, filter value.Value, opts Options) (Request, error) {
	if len(q.Fields()) == 0 {
		return Request{}, fmt.Errorf("%w: query needs at least one field", domain.ErrInvalidQuery)
	}
	if limit < 0 {
		return Request{}, fmt.Errorf("%w: limit must not be negative", domain.ErrInvalidQuery)
	}
	if limit == 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	opts.LexicalQuery = strings.TrimSpace(opts.LexicalQuery)
	if len(opts.LexicalQuery) > MaxLexicalQueryLength {
		return Request{}, fmt.Errorf("%w: lexical query too long (max %d chars)",
			domain.ErrInvalidQuery, MaxLexicalQueryLength)
	}
	if opts.LexicalQuery != "" {
		opts.ApplyLexical = true
	}
	if !filter.IsNull() {
		if _, ok := filter.AsMap(); !ok {
			return Request{}, fmt.Errorf("%w: filter must be an object", domain.ErrInvalidQuery)
		}
	}
	return Request{query: q, limit: limit, filter: filter, options: opts}, nil
}

// Query returns the query document.
func (r Request) Query() query.Query { return r.query }

// Limit returns the maximum number of matches.
func (r Request) Limit() int { return r.limit }

// Filter returns the raw filter, null when absent.
func (r Request) Filter() value.Value { return r.filter }

// ApplyLexical reports whether the base clause is lexical.
func (r Request) ApplyLexical() bool { return r.options.ApplyLexical }

// LexicalQuery returns the custom lexical text, if any.
func (r Request) LexicalQuery() string { return r.options.LexicalQuery }

// Breakdown reports whether per-term contributions were requested.
func (r Request) Breakdown() bool { return r.options.Breakdown }

// Terms returns caller-supplied score terms.
func (r Request) Terms() []term.ScoreTerm { return r.options.Terms }

// WithQuery returns a copy carrying q, used once missing query vectors are encoded.
func (r Request) WithQuery(q query.Query) Request {
	r.query = q
	return r
}
