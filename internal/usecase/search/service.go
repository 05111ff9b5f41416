package search

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/hybridex/internal/domain/schema"
	"github.com/kailas-cloud/hybridex/internal/domain/search/match"
	"github.com/kailas-cloud/hybridex/internal/domain/search/plan"
	"github.com/kailas-cloud/hybridex/internal/domain/search/request"
	"github.com/kailas-cloud/hybridex/internal/metrics"
)

// DefaultOverfetch is how many raw hits are requested per returned match,
// leaving room for chunks of the same parent.
const DefaultOverfetch = 3

// Service runs the search pipeline: resolve terms, build the fused plan, execute it,
// explain scores, aggregate chunks to parents and apply curation pins.
type Service struct {
	resolver  *Resolver
	builder   *Builder
	executor  *Executor
	curation  CurationResolver
	encoder   QueryEncoder
	overfetch int
	logger    *zap.Logger
}

// New creates a search service over the indexed schema.
func New(s schema.Schema, backend Backend, logger *zap.Logger) *Service {
	return &Service{
		resolver:  NewResolver(s),
		builder:   NewBuilder(s.Metric()),
		executor:  NewExecutor(backend, 0),
		overfetch: DefaultOverfetch,
		logger:    logger,
	}
}

// WithCuration consults r for pinned documents.
func (s *Service) WithCuration(r CurationResolver) *Service {
	s.curation = r
	return s
}

// WithEncoder encodes query fields that arrive without vectors.
func (s *Service) WithEncoder(e QueryEncoder) *Service {
	s.encoder = e
	return s
}

// WithTimeout bounds every backing store call.
func (s *Service) WithTimeout(d time.Duration) *Service {
	s.executor = NewExecutor(s.executor.backend, d)
	return s
}

// WithOverfetch sets the raw hits requested per returned match.
func (s *Service) WithOverfetch(n int) *Service {
	if n > 0 {
		s.overfetch = n
	}
	return s
}

// Search returns at most req.Limit() parent-level matches.
func (s *Service) Search(ctx context.Context, req request.Request) ([]match.Match, error) {
	start := time.Now()
	q := req.Query()
	if s.encoder != nil {
		encoded, err := s.encoder.Encode(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("encode query: %w", err)
		}
		q = encoded
	}
	metrics.ObserveStage("encode", start)

	start = time.Now()
	terms := req.Terms()
	if len(terms) > 0 {
		if err := s.resolver.Validate(q, terms); err != nil {
			return nil, err
		}
	} else {
		var err error
		if terms, err = s.resolver.Generate(q); err != nil {
			return nil, err
		}
	}
	metrics.ObserveStage("resolve", start)

	var pinnedIDs []string
	if s.curation != nil {
		if text := q.PrimaryText(); text != "" {
			ids, err := s.curation.Pinned(ctx, text)
			if err != nil {
				return nil, fmt.Errorf("resolve curation: %w", err)
			}
			pinnedIDs = ids
		}
	}

	start = time.Now()
	p, err := s.builder.Build(BuildInput{
		Query:        q,
		Terms:        terms,
		Filter:       req.Filter(),
		Pinned:       pinnedIDs,
		ApplyLexical: req.ApplyLexical(),
		LexicalQuery: req.LexicalQuery(),
	})
	if err != nil {
		return nil, err
	}
	metrics.ObserveStage("build", start)

	start = time.Now()
	topK := req.Limit()*s.overfetch + len(p.Pinned())
	hits, err := s.executor.Execute(ctx, p, topK)
	if err != nil {
		return nil, err
	}
	metrics.ObserveStage("execute", start)

	start = time.Now()
	var pinnedHits, organicHits []match.Hit
	for _, h := range hits {
		if h.Pinned {
			pinnedHits = append(pinnedHits, h)
		} else {
			organicHits = append(organicHits, h)
		}
	}

	pinned := make([]match.Match, len(pinnedHits))
	for i, h := range pinnedHits {
		pinned[i] = finish(p, match.FromHit(h), h, req.Breakdown())
	}
	organic := Merge(organicHits, p.Direction(), req.Limit()+len(pinned))
	byChunk := make(map[string]match.Hit, len(organicHits))
	for _, h := range organicHits {
		byChunk[h.Document.ID()] = h
	}
	for i := range organic {
		organic[i] = finish(p, organic[i], byChunk[organic[i].ChunkID], req.Breakdown())
	}

	out := applyPins(p.Pinned(), pinned, organic, req.Limit())
	metrics.ObserveStage("rank", start)

	var pinnedCount int
	for _, m := range out {
		if m.Pinned {
			pinnedCount++
		}
	}
	metrics.SearchResultsTotal.WithLabelValues("pinned").Add(float64(pinnedCount))
	metrics.SearchResultsTotal.WithLabelValues("organic").Add(float64(len(out) - pinnedCount))

	s.logger.Debug("search completed",
		zap.Int("terms", len(terms)),
		zap.Bool("lexical", !p.MatchAll()),
		zap.Int("pinned", pinnedCount),
		zap.Int("hits", len(hits)),
		zap.Int("matches", len(out)),
	)
	return out, nil
}

// finish attaches the breakdown of the representative hit and projects the document
// for callers: no bookkeeping tags, blobs or embeddings.
func finish(p plan.Plan, m match.Match, h match.Hit, breakdown bool) match.Match {
	if breakdown {
		m.Breakdown = Breakdown(p, h)
	}
	m.Document = m.Document.Public().WithoutEmbeddings()
	return m
}
