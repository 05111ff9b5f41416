package document

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/hybridex/internal/db"
	"github.com/kailas-cloud/hybridex/internal/domain"
	domdoc "github.com/kailas-cloud/hybridex/internal/domain/document"
	"github.com/kailas-cloud/hybridex/internal/domain/metric"
	"github.com/kailas-cloud/hybridex/internal/domain/search/filter"
	"github.com/kailas-cloud/hybridex/internal/domain/search/match"
	"github.com/kailas-cloud/hybridex/internal/domain/search/plan"
)

// candidate is a document fetched from the store with its raw lexical score.
type candidate struct {
	doc     domdoc.Document
	lexical float64
}

// Search gathers candidates from the FT index and ranks them with the fusion formula.
// Pinned documents that pass the filter come first in pin order.
func (r *Repo) Search(ctx context.Context, p plan.Plan, topK int) ([]match.Hit, error) {
	if !p.MatchAll() && !r.store.SupportsTextSearch(ctx) {
		return nil, fmt.Errorf("%w: lexical queries need a store with text search", domain.ErrInvalidQuery)
	}

	candidates, err := r.candidates(ctx, p, topK)
	if err != nil {
		return nil, err
	}
	lexScores := make(map[string]float64, len(candidates))
	for _, c := range candidates {
		lexScores[c.doc.ID()] = c.lexical
	}

	out := make([]match.Hit, 0, topK)
	pinned := make(map[string]struct{}, len(p.Pinned()))
	if len(p.Pinned()) > 0 {
		docs, err := r.load(ctx, p.Pinned())
		if err != nil {
			return nil, err
		}
		for _, d := range docs {
			if _, dup := pinned[d.ID()]; dup || !p.Filter().Matches(target(d)) {
				continue
			}
			pinned[d.ID()] = struct{}{}
			lex := lexScores[d.ID()]
			score, ok := p.Score(d, lex)
			if !ok {
				score = metric.Score{Direction: p.Direction()}
			}
			out = append(out, match.Hit{Document: d, Score: score, Lexical: lex, Pinned: true})
		}
	}

	organic := make([]match.Hit, 0, len(candidates))
	for _, c := range candidates {
		if _, skip := pinned[c.doc.ID()]; skip || !p.Filter().Matches(target(c.doc)) {
			continue
		}
		if score, ok := p.Score(c.doc, c.lexical); ok {
			organic = append(organic, match.Hit{Document: c.doc, Score: score, Lexical: c.lexical})
		}
	}

	match.SortHits(organic)
	for _, h := range organic {
		if len(out) >= topK {
			break
		}
		out = append(out, h)
	}
	return out, nil
}

// candidates returns the documents worth scoring: lexical matches for a text base clause,
// the union of per-term nearest neighbours for a match-all plan, or every document when
// the plan has neither.
func (r *Repo) candidates(ctx context.Context, p plan.Plan, topK int) ([]candidate, error) {
	window := max(topK, r.window)

	var pushed filter.Expression
	if pushdownable(p.Filter(), r.schema) {
		pushed = p.Filter()
	} else if !p.Filter().IsEmpty() {
		r.logger.Debug("filter evaluated in process", zap.Strings("keys", p.Filter().Keys()))
	}

	switch {
	case !p.MatchAll():
		res, err := r.store.SearchText(ctx, &db.TextQuery{
			IndexName: r.indexName(),
			Field:     lexicalAttr,
			Query:     p.Lexical(),
			Filters:   pushed,
			TopK:      window,
		})
		if err != nil {
			return nil, fmt.Errorf("text search: %w", err)
		}
		return r.decodeEntries(res.Entries, true)

	case len(p.Terms()) > 0:
		return r.nearest(ctx, p, pushed, window)

	default:
		docs, err := r.all(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]candidate, len(docs))
		for i, d := range docs {
			out[i] = candidate{doc: d}
		}
		return out, nil
	}
}

// nearest runs one KNN query per vector term concurrently and merges the hits by id.
func (r *Repo) nearest(ctx context.Context, p plan.Plan, f filter.Expression, k int) ([]candidate, error) {
	var (
		mu      sync.Mutex
		seen    = make(map[string]struct{})
		entries []db.SearchEntry
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, t := range p.Terms() {
		g.Go(func() error {
			res, err := r.store.SearchKNN(gctx, &db.KNNQuery{
				IndexName: r.indexName(),
				Field:     vectorAttr(t.DocumentField, t.Encoder),
				Filters:   f,
				Vector:    t.Vector,
				K:         k,
			})
			if err != nil {
				return fmt.Errorf("knn search %s: %w", t.Label(), err)
			}
			mu.Lock()
			defer mu.Unlock()
			for _, e := range res.Entries {
				if _, dup := seen[e.Key]; dup {
					continue
				}
				seen[e.Key] = struct{}{}
				entries = append(entries, e)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return r.decodeEntries(entries, false)
}

func (r *Repo) decodeEntries(entries []db.SearchEntry, lexical bool) ([]candidate, error) {
	out := make([]candidate, 0, len(entries))
	for _, e := range entries {
		d, ok, err := decodeHash(e.Fields, r.schema)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", e.Key, err)
		}
		if !ok {
			continue
		}
		c := candidate{doc: d}
		if lexical {
			c.lexical = e.Score
		}
		out = append(out, c)
	}
	return out, nil
}
