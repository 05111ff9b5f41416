package hybridex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	dbRedis "github.com/kailas-cloud/hybridex/internal/db/redis"
	"github.com/kailas-cloud/hybridex/internal/domain"
	"github.com/kailas-cloud/hybridex/internal/domain/backend"
	dombatch "github.com/kailas-cloud/hybridex/internal/domain/batch"
	domdoc "github.com/kailas-cloud/hybridex/internal/domain/document"
	"github.com/kailas-cloud/hybridex/internal/domain/schema"
	"github.com/kailas-cloud/hybridex/internal/domain/search/match"
	"github.com/kailas-cloud/hybridex/internal/domain/search/request"
	"github.com/kailas-cloud/hybridex/internal/domain/value"
	documentrepo "github.com/kailas-cloud/hybridex/internal/repository/document"
	"github.com/kailas-cloud/hybridex/internal/repository/embedded"
	"github.com/kailas-cloud/hybridex/internal/repository/tagcache"
	"github.com/kailas-cloud/hybridex/internal/transport/materialize"
	cataloguc "github.com/kailas-cloud/hybridex/internal/usecase/catalog"
	embeddinguc "github.com/kailas-cloud/hybridex/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/hybridex/internal/usecase/health"
	indexuc "github.com/kailas-cloud/hybridex/internal/usecase/index"
	searchuc "github.com/kailas-cloud/hybridex/internal/usecase/search"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultKeyPrefix        = "hybridex:"
)

// Internal interfaces for substitution in tests.
type indexUseCase interface {
	Index(ctx context.Context, docs []domdoc.Document) ([]dombatch.Result, error)
	Update(ctx context.Context, docs []domdoc.Document) ([]dombatch.Result, error)
	Delete(ctx context.Context, ids []string, f value.Value) (int, error)
}

type searchUseCase interface {
	Search(ctx context.Context, req request.Request) ([]match.Match, error)
}

type catalogUseCase interface {
	List(offset, limit int, f value.Value) ([]domdoc.Document, error)
	Count(offset, limit int, f value.Value) (int, error)
	GetTags() map[string][]domdoc.TagCount
}

// Client is the hybridex SDK entry point.
type Client struct {
	backend   backend.Backend
	indexSvc  indexUseCase
	searchSvc searchUseCase
	catalog   catalogUseCase
	healthSvc healthUseCase
	closers   []func()
	obs       *observer
}

// Open creates a Client, connects to the backing store and loads the tag cache.
// The provided context is used for the readiness check and the initial load.
func Open(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{driver: "embedded", keyPrefix: defaultKeyPrefix}
	for _, o := range opts {
		o.apply(cfg)
	}

	sch, err := cfg.schema.build()
	if err != nil {
		return nil, fmt.Errorf("hybridex: %w", err)
	}
	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	be, err := openBackend(ctx, cfg, sch)
	if err != nil {
		return nil, err
	}
	c, err := wireClient(ctx, be, sch, cfg, obs)
	if err != nil {
		_ = be.Close()
		return nil, err
	}
	return c, nil
}

func openBackend(ctx context.Context, cfg *clientConfig, sch schema.Schema) (backend.Backend, error) {
	logger := zap.NewNop()
	switch backend.Driver(cfg.driver) {
	case backend.DriverEmbedded:
		be, err := embedded.Open(embedded.Config{Path: cfg.path}, logger)
		if err != nil {
			return nil, fmt.Errorf("hybridex: open embedded store: %w", err)
		}
		return be, nil
	case backend.DriverRedis, backend.DriverValkey:
		if len(cfg.addrs) == 0 {
			return nil, errors.New("hybridex: database address required (use WithRedis or WithValkey)")
		}
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:      cfg.addrs,
			Password:   cfg.password,
			TextSearch: cfg.driver == string(backend.DriverRedis),
		})
		if err != nil {
			return nil, fmt.Errorf("hybridex: create %s store: %w", cfg.driver, err)
		}
		if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
			store.Close()
			return nil, fmt.Errorf("hybridex: database not ready: %w", err)
		}
		repo := documentrepo.New(store, sch, cfg.keyPrefix, logger)
		if cfg.candidateWindow > 0 {
			repo = repo.WithCandidateWindow(cfg.candidateWindow)
		}
		if err := repo.EnsureIndex(ctx); err != nil {
			_ = repo.Close()
			return nil, fmt.Errorf("hybridex: ensure index: %w", err)
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("hybridex: unknown driver %q", cfg.driver)
	}
}

func wireClient(
	ctx context.Context, be backend.Backend, sch schema.Schema, cfg *clientConfig, obs *observer,
) (*Client, error) {
	logger := zap.NewNop()

	cache := tagcache.New()
	if err := cache.Rebuild(ctx, be, 0); err != nil {
		return nil, fmt.Errorf("hybridex: load tag cache: %w", err)
	}

	healthSvc := healthuc.New(be)
	embedders := make(map[string]domain.Embedder, len(cfg.embedders))
	for name, e := range cfg.embedders {
		embedders[name] = &embedderAdapter{inner: e}
		if hc, ok := e.(healthuc.ProviderChecker); ok {
			healthSvc.WithProvider(name, hc)
		}
	}

	indexSvc, err := indexuc.New(be, cache, sch, cfg.workers, logger)
	if err != nil {
		return nil, fmt.Errorf("hybridex: %w", err)
	}
	indexSvc.
		WithMaterializer(materialize.New(logger)).
		WithMaxBatchSize(cfg.maxBatchSize)

	searchSvc := searchuc.New(sch, be, logger).
		WithEncoder(embeddinguc.NewQueryEncoder(sch, embedders, logger))

	return &Client{
		backend:   be,
		indexSvc:  indexSvc,
		searchSvc: searchSvc,
		catalog:   cataloguc.New(cache),
		healthSvc: healthSvc,
		closers:   []func(){indexSvc.Close},
		obs:       obs,
	}, nil
}

// Close releases all resources.
func (c *Client) Close() error {
	for _, fn := range c.closers {
		fn()
	}
	if c.backend != nil {
		if err := c.backend.Close(); err != nil {
			return fmt.Errorf("close backend: %w", err)
		}
	}
	return nil
}

// Ping checks backing store connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", start, err) }()

	if err = c.backend.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Index stores docs, fully replacing earlier versions with the same ids. Documents without an
// id get one assigned. Invalid documents are dropped and reported per item; the rest are written.
func (c *Client) Index(ctx context.Context, docs []Document) (items []BatchItem, err error) {
	start := time.Now()
	defer func() { c.obs.observe("index", start, err) }()

	in, err := toDomainDocuments(docs)
	if err != nil {
		return nil, err
	}
	results, err := c.indexSvc.Index(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("index: %w", err)
	}
	items = fromBatchResults(results)
	c.obs.observeBatch("index", items)
	return items, nil
}

// Update deletes docs by id and indexes them again.
func (c *Client) Update(ctx context.Context, docs []Document) (items []BatchItem, err error) {
	start := time.Now()
	defer func() { c.obs.observe("update", start, err) }()

	in, err := toDomainDocuments(docs)
	if err != nil {
		return nil, err
	}
	results, err := c.indexSvc.Update(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("update: %w", err)
	}
	items = fromBatchResults(results)
	c.obs.observeBatch("update", items)
	return items, nil
}

// Delete removes documents by id and every document matching filter. It returns how many were removed.
func (c *Client) Delete(ctx context.Context, ids []string, filter map[string]any) (n int, err error) {
	start := time.Now()
	defer func() { c.obs.observe("delete", start, err) }()

	f, err := filterValue(filter)
	if err != nil {
		return 0, err
	}
	n, err = c.indexSvc.Delete(ctx, ids, f)
	if err != nil {
		return 0, fmt.Errorf("delete: %w", err)
	}
	return n, nil
}

// Search runs a fused lexical and vector search and returns hits aggregated by parent.
func (c *Client) Search(ctx context.Context, req SearchRequest) (hits []Hit, err error) {
	start := time.Now()
	defer func() { c.obs.observe("search", start, err) }()

	r, err := toRequest(req)
	if err != nil {
		return nil, err
	}
	matches, err := c.searchSvc.Search(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	hits = make([]Hit, len(matches))
	for i, m := range matches {
		hits[i] = fromMatch(m)
	}
	c.obs.observeHits(len(hits))
	return hits, nil
}

// List returns documents in id order, optionally filtered. A zero limit uses the default page size.
func (c *Client) List(ctx context.Context, offset, limit int, filter map[string]any) (docs []Document, err error) {
	start := time.Now()
	defer func() { c.obs.observe("list", start, err) }()

	if err = ctx.Err(); err != nil {
		return nil, err
	}
	f, err := filterValue(filter)
	if err != nil {
		return nil, err
	}
	found, err := c.catalog.List(offset, limit, f)
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	docs = make([]Document, len(found))
	for i, d := range found {
		docs[i] = fromDomainDocument(d)
	}
	return docs, nil
}

// Count returns how many documents in the window [offset, offset+limit) match filter.
// limit 0 means no upper bound.
func (c *Client) Count(ctx context.Context, offset, limit int, filter map[string]any) (n int, err error) {
	start := time.Now()
	defer func() { c.obs.observe("count", start, err) }()

	if err = ctx.Err(); err != nil {
		return 0, err
	}
	f, err := filterValue(filter)
	if err != nil {
		return 0, err
	}
	n, err = c.catalog.Count(offset, limit, f)
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

// Tags returns the most frequent values of every public tag key.
func (c *Client) Tags() map[string][]TagCount {
	top := c.catalog.GetTags()
	out := make(map[string][]TagCount, len(top))
	for k, counts := range top {
		tc := make([]TagCount, len(counts))
		for i, cnt := range counts {
			tc[i] = TagCount{Value: cnt.Value, Count: cnt.Count}
		}
		out[k] = tc
	}
	return out
}

// embedderAdapter wraps public Embedder to satisfy internal domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("%w: %w", domain.ErrEmbeddingProviderError, err)
	}
	return domain.EmbeddingResult{
		Embedding:   r.Embedding,
		TotalTokens: r.TotalTokens,
	}, nil
}
