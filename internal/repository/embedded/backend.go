// Package embedded is an in-process backend: documents live in memory, lexical scoring runs on
// a bleve index and every confirmed write can be mirrored to badger.
package embedded

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/hybridex/internal/domain/backend"
	"github.com/kailas-cloud/hybridex/internal/domain/document"
	"github.com/kailas-cloud/hybridex/internal/domain/metric"
	"github.com/kailas-cloud/hybridex/internal/domain/search/filter"
	"github.com/kailas-cloud/hybridex/internal/domain/search/match"
	"github.com/kailas-cloud/hybridex/internal/domain/search/plan"
)

var _ backend.Backend = (*Backend)(nil)

var errClosed = errors.New("embedded backend is closed")

// Config for the embedded backend. An empty Path keeps everything in memory.
type Config struct {
	Path string
}

// Backend implements backend.Backend in process.
type Backend struct {
	mu      sync.RWMutex
	docs    map[string]document.Document
	lexical *lexicalIndex
	durable *durableLog
	closed  bool
	logger  *zap.Logger
}

// Open creates the backend and, with a data path, replays the persisted documents.
func Open(cfg Config, logger *zap.Logger) (*Backend, error) {
	lex, err := newLexicalIndex()
	if err != nil {
		return nil, err
	}
	b := &Backend{docs: make(map[string]document.Document), lexical: lex, logger: logger}
	if cfg.Path == "" {
		return b, nil
	}

	b.durable, err = openDurableLog(cfg.Path, logger)
	if err != nil {
		_ = lex.close()
		return nil, err
	}
	docs, err := b.durable.load()
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	if err := b.apply(docs); err != nil {
		_ = b.Close()
		return nil, err
	}
	logger.Info("embedded backend restored", zap.String("path", cfg.Path), zap.Int("documents", len(docs)))
	return b, nil
}

// Index stores docs, replacing earlier versions with the same id.
func (b *Backend) Index(_ context.Context, docs []document.Document) error {
	stored := make([]document.Document, len(docs))
	for i, d := range docs {
		stored[i] = stripBlobs(d)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errClosed
	}
	if b.durable != nil {
		if err := b.durable.put(stored); err != nil {
			return err
		}
	}
	return b.apply(stored)
}

func (b *Backend) apply(docs []document.Document) error {
	texts := make(map[string]string, len(docs))
	for _, d := range docs {
		texts[d.ID()] = d.LexicalText()
	}
	if err := b.lexical.put(texts); err != nil {
		return err
	}
	for _, d := range docs {
		b.docs[d.ID()] = d
	}
	return nil
}

// Delete removes ids and every document matching f.
func (b *Backend) Delete(_ context.Context, ids []string, f filter.Expression) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, errClosed
	}

	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := b.docs[id]; ok {
			set[id] = struct{}{}
		}
	}
	if !f.IsEmpty() {
		for id, d := range b.docs {
			if f.Matches(target(d)) {
				set[id] = struct{}{}
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

	if b.durable != nil {
		if err := b.durable.remove(removed); err != nil {
			return nil, err
		}
	}
	if err := b.lexical.remove(removed); err != nil {
		return nil, err
	}
	for _, id := range removed {
		delete(b.docs, id)
	}
	return removed, nil
}

// Search scores every candidate with the fusion formula. Pinned documents that pass the
// filter come first in pin order, then the best organic hits.
func (b *Backend) Search(ctx context.Context, p plan.Plan, topK int) ([]match.Hit, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, errClosed
	}

	var lexScores map[string]float64
	if !p.MatchAll() {
		var err error
		if lexScores, err = b.lexical.search(ctx, p.Lexical()); err != nil {
			return nil, err
		}
	}

	out := make([]match.Hit, 0, topK)
	pinned := make(map[string]struct{}, len(p.Pinned()))
	for _, id := range p.Pinned() {
		d, ok := b.docs[id]
		if !ok || !p.Filter().Matches(target(d)) {
			continue
		}
		if _, dup := pinned[id]; dup {
			continue
		}
		pinned[id] = struct{}{}
		score, ok := p.Score(d, lexScores[id])
		if !ok {
			score = metric.Score{Direction: p.Direction()}
		}
		out = append(out, match.Hit{Document: d, Score: score, Lexical: lexScores[id], Pinned: true})
	}

	var organic []match.Hit
	consider := func(d document.Document, lex float64) {
		if _, skip := pinned[d.ID()]; skip || !p.Filter().Matches(target(d)) {
			return
		}
		if score, ok := p.Score(d, lex); ok {
			organic = append(organic, match.Hit{Document: d, Score: score, Lexical: lex})
		}
	}
	if p.MatchAll() {
		for _, d := range b.docs {
			consider(d, 0)
		}
	} else {
		for id, lex := range lexScores {
			if d, ok := b.docs[id]; ok {
				consider(d, lex)
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
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

// List returns documents in id order without embeddings.
func (b *Backend) List(_ context.Context, offset, limit int) ([]document.Document, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, errClosed
	}

	ids := make([]string, 0, len(b.docs))
	for id := range b.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	if offset >= len(ids) {
		return nil, nil
	}
	end := len(ids)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	out := make([]document.Document, 0, end-offset)
	for _, id := range ids[offset:end] {
		out = append(out, b.docs[id].WithoutEmbeddings())
	}
	return out, nil
}

// Count returns the number of stored documents.
func (b *Backend) Count(_ context.Context) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return 0, errClosed
	}
	return len(b.docs), nil
}

// Ping fails once the backend is closed.
func (b *Backend) Ping(_ context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return errClosed
	}
	return nil
}

// Close releases the lexical index and the badger store.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	errs := []error{b.lexical.close()}
	if b.durable != nil {
		errs = append(errs, b.durable.close())
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("close embedded backend: %w", err)
	}
	return nil
}

func target(d document.Document) filter.Target {
	return filter.Target{ID: d.ID(), ParentID: d.ParentID(), Tags: d.Tags()}
}

func stripBlobs(d document.Document) document.Document {
	fields := make([]document.Field, len(d.Fields()))
	for i, f := range d.Fields() {
		fields[i] = f.WithoutBlob()
	}
	return d.WithFields(fields)
}
