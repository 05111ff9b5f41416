// Package index implements the write path: index, update and delete.
package index

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/hybridex/internal/domain"
	dombatch "github.com/kailas-cloud/hybridex/internal/domain/batch"
	"github.com/kailas-cloud/hybridex/internal/domain/document"
	"github.com/kailas-cloud/hybridex/internal/domain/schema"
	"github.com/kailas-cloud/hybridex/internal/domain/search/filter"
	"github.com/kailas-cloud/hybridex/internal/domain/value"
	"github.com/kailas-cloud/hybridex/internal/metrics"
)

// Defaults for the write path.
const (
	DefaultMaxBatchSize = 500
	DefaultWorkers      = 8
)

// Service indexes, replaces and deletes documents.
// Materialization runs on a fixed-size worker pool; the backing store call is made once per batch.
// Writes are serialized so the tag cache sees them in the order the store applied them.
type Service struct {
	backend            Backend
	cache              Cache
	schema             schema.Schema
	materializer       Materializer
	pool               *ants.Pool
	limiter            *rate.Limiter
	maxBatchSize       int
	timeout            time.Duration
	materializeTimeout time.Duration
	logger             *zap.Logger

	// writeMu orders backend writes with their tag cache updates.
	writeMu sync.Mutex
}

// New creates the index service with a materialization pool of the given size.
func New(b Backend, c Cache, s schema.Schema, workers int, logger *zap.Logger) (*Service, error) {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("create materialize pool: %w", err)
	}
	return &Service{
		backend:      b,
		cache:        c,
		schema:       s,
		pool:         pool,
		maxBatchSize: DefaultMaxBatchSize,
		logger:       logger,
	}, nil
}

// WithMaterializer resolves local and remote URIs through m.
func (s *Service) WithMaterializer(m Materializer) *Service {
	s.materializer = m
	return s
}

// WithRateLimit bounds URI fetches to perSecond. Zero disables the limit.
func (s *Service) WithRateLimit(perSecond float64, burst int) *Service {
	if perSecond <= 0 {
		s.limiter = nil
		return s
	}
	if burst <= 0 {
		burst = 1
	}
	s.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	return s
}

// WithMaxBatchSize configures the maximum batch size.
func (s *Service) WithMaxBatchSize(size int) *Service {
	if size > 0 {
		s.maxBatchSize = size
	}
	return s
}

// WithTimeout bounds every backing store call.
func (s *Service) WithTimeout(d time.Duration) *Service {
	s.timeout = d
	return s
}

// WithMaterializeTimeout bounds each URI fetch.
func (s *Service) WithMaterializeTimeout(d time.Duration) *Service {
	s.materializeTimeout = d
	return s
}

// Close releases the worker pool.
func (s *Service) Close() {
	s.pool.Release()
}

// Index stores docs. Documents without an id get one. A document whose payload cannot be
// materialized is dropped and reported; the rest of the batch is written. The returned error
// is set only when the batch as a whole failed.
func (s *Service) Index(ctx context.Context, docs []document.Document) ([]dombatch.Result, error) {
	if len(docs) > s.maxBatchSize {
		return nil, fmt.Errorf("%w: batch of %d exceeds %d", domain.ErrInvalidDocument, len(docs), s.maxBatchSize)
	}

	results, valid := s.prepareBatch(ctx, docs)
	if len(valid) == 0 {
		return results, nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.index(ctx, valid); err != nil {
		return nil, err
	}
	metrics.IndexDocumentsTotal.WithLabelValues(string(dombatch.StatusOK)).Add(float64(len(valid)))
	return results, nil
}

// Update fully replaces docs. Replacements are prepared first; only those that prepared
// are deleted and re-indexed, so a dropped item keeps its stored version.
func (s *Service) Update(ctx context.Context, docs []document.Document) ([]dombatch.Result, error) {
	for i, d := range docs {
		if d.ID() == "" {
			return nil, fmt.Errorf("%w: update item %d has no id", domain.ErrInvalidDocument, i)
		}
	}
	if len(docs) > s.maxBatchSize {
		return nil, fmt.Errorf("%w: batch of %d exceeds %d", domain.ErrInvalidDocument, len(docs), s.maxBatchSize)
	}

	results, valid := s.prepareBatch(ctx, docs)
	if len(valid) == 0 {
		return results, nil
	}
	ids := make([]string, len(valid))
	for i, d := range valid {
		ids[i] = d.ID()
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.delete(ctx, ids, filter.Expression{}); err != nil {
		return nil, err
	}
	if err := s.index(ctx, valid); err != nil {
		return nil, err
	}
	metrics.IndexDocumentsTotal.WithLabelValues(string(dombatch.StatusOK)).Add(float64(len(valid)))
	return results, nil
}

// Delete removes documents by id and by filter, returning how many were removed.
// With neither ids nor a filter it fails with domain.ErrFilterRequired.
func (s *Service) Delete(ctx context.Context, ids []string, f value.Value) (int, error) {
	expr, err := filter.ParseValue(f)
	if err != nil {
		return 0, fmt.Errorf("filter: %w", err)
	}
	if len(ids) == 0 && expr.IsEmpty() {
		return 0, domain.ErrFilterRequired
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	removed, err := s.delete(ctx, ids, expr)
	if err != nil {
		return 0, err
	}
	return len(removed), nil
}

// prepareBatch materializes docs on the pool. It returns one result per input position and
// the prepared documents that can be written, in input order.
func (s *Service) prepareBatch(ctx context.Context, docs []document.Document) ([]dombatch.Result, []document.Document) {
	results := make([]dombatch.Result, len(docs))
	prepared := make([]document.Document, len(docs))
	ok := make([]bool, len(docs))

	var wg sync.WaitGroup
	for i, doc := range docs {
		if doc.ID() == "" {
			doc = doc.WithID(uuid.NewString())
		}
		wg.Add(1)
		err := s.pool.Submit(func() {
			defer wg.Done()
			p, err := s.prepare(ctx, doc)
			if err != nil {
				results[i] = dombatch.NewDropped(i, doc.ID(), err)
				return
			}
			prepared[i], ok[i] = p, true
			results[i] = dombatch.NewOK(i, doc.ID())
		})
		if err != nil {
			wg.Done()
			results[i] = dombatch.NewDropped(i, doc.ID(), fmt.Errorf("%w: submit: %w", domain.ErrMaterialize, err))
		}
	}
	wg.Wait()

	valid := make([]document.Document, 0, len(docs))
	for i := range docs {
		if ok[i] {
			valid = append(valid, prepared[i])
		}
	}
	dropped := dombatch.Dropped(results)
	for _, r := range dropped {
		s.logger.Warn("document dropped from batch",
			zap.String("id", r.ID()),
			zap.Int("position", r.Position()),
			zap.Error(r.Err()),
		)
	}
	metrics.IndexDocumentsTotal.WithLabelValues(string(dombatch.StatusDropped)).Add(float64(len(dropped)))
	return results, valid
}

// index and delete apply a confirmed backend write to the tag cache. Callers hold writeMu.
func (s *Service) index(ctx context.Context, docs []document.Document) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.backend.Index(ctx, docs); err != nil {
		err = domain.BackingStoreError("index", err)
		metrics.ObserveBackendError("index", err)
		return err
	}
	s.cache.Put(docs)
	return nil
}

func (s *Service) delete(ctx context.Context, ids []string, f filter.Expression) ([]string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	removed, err := s.backend.Delete(ctx, ids, f)
	if err != nil {
		err = domain.BackingStoreError("delete", err)
		metrics.ObserveBackendError("delete", err)
		return nil, err
	}
	s.cache.Remove(removed)
	return removed, nil
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func detectContentType(data []byte) string {
	return http.DetectContentType(data)
}
