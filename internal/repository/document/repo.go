// Package document stores documents as hashes in a Redis-compatible store with the search
// module and executes fused plans against its FT index.
package document

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/hybridex/internal/db"
	"github.com/kailas-cloud/hybridex/internal/domain/backend"
	domdoc "github.com/kailas-cloud/hybridex/internal/domain/document"
	"github.com/kailas-cloud/hybridex/internal/domain/schema"
	"github.com/kailas-cloud/hybridex/internal/domain/search/filter"
)

var _ backend.Backend = (*Repo)(nil)

// DefaultCandidateWindow is how many candidates each store query fetches at least.
const DefaultCandidateWindow = 200

// fetchBatch bounds the keys read per pipelined HGETALL round-trip.
const fetchBatch = 500

// store is the consumer interface for the document repository (ISP).
type store interface {
	db.Pinger
	db.HashStore
	db.IndexManager
	db.KVStore
	db.Searcher
	Close()
}

// Repo implements backend.Backend over a db.Store.
type Repo struct {
	store  store
	schema schema.Schema
	prefix string
	window int
	logger *zap.Logger
}

// New creates a document repository. Keys live under prefix+"doc:".
func New(s store, sch schema.Schema, prefix string, logger *zap.Logger) *Repo {
	return &Repo{store: s, schema: sch, prefix: prefix, window: DefaultCandidateWindow, logger: logger}
}

// WithCandidateWindow overrides the minimum number of candidates fetched per store query.
func (r *Repo) WithCandidateWindow(n int) *Repo {
	if n > 0 {
		r.window = n
	}
	return r
}

func (r *Repo) keyPrefix() string { return r.prefix + "doc:" }

func (r *Repo) indexName() string { return r.prefix + "idx" }

func (r *Repo) fingerprintKey() string { return r.prefix + "idx:fingerprint" }

func (r *Repo) docKey(id string) string { return r.keyPrefix() + id }

func (r *Repo) docID(key string) string { return strings.TrimPrefix(key, r.keyPrefix()) }

// EnsureIndex creates the FT index for the schema. An existing index whose definition
// fingerprint differs from the stored one is dropped and rebuilt; the hashes stay.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	textSearch := r.store.SupportsTextSearch(ctx)
	def, err := indexDefinition(r.indexName(), r.keyPrefix(), r.schema, textSearch)
	if err != nil {
		return fmt.Errorf("build index definition: %w", err)
	}
	fingerprint := def.Fingerprint()

	exists, err := r.store.IndexExists(ctx, r.indexName())
	if err != nil {
		return fmt.Errorf("check index %s: %w", r.indexName(), err)
	}
	if exists {
		stored, err := r.store.Get(ctx, r.fingerprintKey())
		switch {
		case err == nil && string(stored) == fingerprint:
			return nil
		case err != nil && !errors.Is(err, db.ErrKeyNotFound):
			return fmt.Errorf("read index fingerprint: %w", err)
		}
		r.logger.Warn("search index definition changed, rebuilding",
			zap.String("index", r.indexName()),
		)
		if err := r.store.DropIndex(ctx, r.indexName()); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
			return fmt.Errorf("drop index %s: %w", r.indexName(), err)
		}
	}

	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create index %s: %w", r.indexName(), err)
	}
	if err := r.store.SetWithTTL(ctx, r.fingerprintKey(), []byte(fingerprint), 0); err != nil {
		return fmt.Errorf("store index fingerprint: %w", err)
	}
	r.logger.Info("search index created",
		zap.String("index", r.indexName()),
		zap.Int("fields", len(def.Fields)),
		zap.Bool("text_search", textSearch),
	)
	return nil
}

// Index replaces every document's hash in one pipelined round-trip.
func (r *Repo) Index(ctx context.Context, docs []domdoc.Document) error {
	items := make([]db.HashSetItem, 0, len(docs))
	for _, d := range docs {
		fields, err := encodeHash(d, r.schema)
		if err != nil {
			return err
		}
		items = append(items, db.HashSetItem{Key: r.docKey(d.ID()), Fields: fields})
	}
	if err := r.store.ReplaceMulti(ctx, items); err != nil {
		return fmt.Errorf("write documents: %w", err)
	}
	return nil
}

// Delete removes ids that exist and, for a non-empty filter, every document matching it.
func (r *Repo) Delete(ctx context.Context, ids []string, f filter.Expression) ([]string, error) {
	set := make(map[string]struct{}, len(ids))

	if len(ids) > 0 {
		keys := make([]string, len(ids))
		for i, id := range ids {
			keys[i] = r.docKey(id)
		}
		hashes, err := r.fetch(ctx, keys)
		if err != nil {
			return nil, err
		}
		for i, h := range hashes {
			if len(h) > 0 {
				set[ids[i]] = struct{}{}
			}
		}
	}

	if !f.IsEmpty() {
		docs, err := r.all(ctx)
		if err != nil {
			return nil, err
		}
		for _, d := range docs {
			if f.Matches(target(d)) {
				set[d.ID()] = struct{}{}
			}
		}
	}

	removed := make([]string, 0, len(set))
	for id := range set {
		removed = append(removed, id)
	}
	sort.Strings(removed)
	if len(removed) == 0 {
		return removed, nil
	}

	keys := make([]string, len(removed))
	for i, id := range removed {
		keys[i] = r.docKey(id)
	}
	if err := r.store.DelMulti(ctx, keys); err != nil {
		return nil, fmt.Errorf("delete documents: %w", err)
	}
	return removed, nil
}

// List returns documents in id order without embeddings. limit 0 means no bound.
func (r *Repo) List(ctx context.Context, offset, limit int) ([]domdoc.Document, error) {
	ids, err := r.ids(ctx)
	if err != nil {
		return nil, err
	}
	if offset >= len(ids) {
		return nil, nil
	}
	end := len(ids)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	docs, err := r.load(ctx, ids[offset:end])
	if err != nil {
		return nil, err
	}
	out := make([]domdoc.Document, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.WithoutEmbeddings())
	}
	return out, nil
}

// Count returns the number of stored documents.
func (r *Repo) Count(ctx context.Context) (int, error) {
	ids, err := r.ids(ctx)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// Ping checks store connectivity.
func (r *Repo) Ping(ctx context.Context) error {
	return r.store.Ping(ctx)
}

// Close releases the store client.
func (r *Repo) Close() error {
	r.store.Close()
	return nil
}

// ids returns every stored document id, sorted.
func (r *Repo) ids(ctx context.Context) ([]string, error) {
	keys, err := r.store.Scan(ctx, r.keyPrefix()+"*")
	if err != nil {
		return nil, fmt.Errorf("scan documents: %w", err)
	}
	ids := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		id := r.docID(k)
		// SCAN may return a key more than once
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *Repo) all(ctx context.Context) ([]domdoc.Document, error) {
	ids, err := r.ids(ctx)
	if err != nil {
		return nil, err
	}
	return r.load(ctx, ids)
}

// load reads and decodes documents by id, preserving order and skipping missing ones.
func (r *Repo) load(ctx context.Context, ids []string) ([]domdoc.Document, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.docKey(id)
	}
	hashes, err := r.fetch(ctx, keys)
	if err != nil {
		return nil, err
	}
	out := make([]domdoc.Document, 0, len(hashes))
	for i, h := range hashes {
		d, ok, err := decodeHash(h, r.schema)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", keys[i], err)
		}
		if ok {
			out = append(out, d)
		}
	}
	return out, nil
}

// fetch reads hashes in batches; the result is aligned with keys.
func (r *Repo) fetch(ctx context.Context, keys []string) ([]map[string]string, error) {
	out := make([]map[string]string, 0, len(keys))
	for start := 0; start < len(keys); start += fetchBatch {
		end := min(start+fetchBatch, len(keys))
		hashes, err := r.store.HGetAllMulti(ctx, keys[start:end])
		if err != nil {
			return nil, fmt.Errorf("read documents: %w", err)
		}
		out = append(out, hashes...)
	}
	return out, nil
}

func target(d domdoc.Document) filter.Target {
	return filter.Target{ID: d.ID(), ParentID: d.ParentID(), Tags: d.Tags()}
}
