// Package curation manages curation rules and resolves them to pinned document ids.
package curation

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/hybridex/internal/domain/curation"
	"github.com/kailas-cloud/hybridex/internal/domain/value"
)

// DefaultIDsPerFilter bounds how many documents one curation filter pins.
const DefaultIDsPerFilter = 1

// Service holds the rules in memory, mirrored to the store on every change.
type Service struct {
	store     Store
	docs      DocumentLister
	perFilter int
	logger    *zap.Logger

	writeMu sync.Mutex
	mu      sync.RWMutex
	rules   map[string]curation.Rule
}

// New creates a curation service with no rules loaded.
func New(store Store, docs DocumentLister, logger *zap.Logger) *Service {
	return &Service{
		store:     store,
		docs:      docs,
		perFilter: DefaultIDsPerFilter,
		logger:    logger,
		rules:     make(map[string]curation.Rule),
	}
}

// WithIDsPerFilter sets how many matching documents each filter pins.
func (s *Service) WithIDsPerFilter(n int) *Service {
	if n > 0 {
		s.perFilter = n
	}
	return s
}

// Load reads the persisted rules. A failure degrades to an empty rule set.
func (s *Service) Load(ctx context.Context) {
	rules, err := s.store.Load(ctx)
	if err != nil {
		s.logger.Warn("curation rules unavailable, starting empty", zap.Error(err))
		rules = nil
	}
	loaded := make(map[string]curation.Rule, len(rules))
	for _, r := range rules {
		loaded[r.Query()] = r
	}
	s.mu.Lock()
	s.rules = loaded
	s.mu.Unlock()
	s.logger.Info("curation rules loaded", zap.Int("rules", len(loaded)))
}

// Curate merges entries into the rule set, replacing each key. An empty filter list removes
// the key. The rule set is persisted before it becomes visible.
func (s *Service) Curate(ctx context.Context, entries map[string][]map[string]value.Value) error {
	updates := make([]curation.Rule, 0, len(entries))
	for q, filters := range entries {
		r, err := curation.NewRule(q, filters)
		if err != nil {
			return err
		}
		updates = append(updates, r)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	next := make(map[string]curation.Rule, len(s.rules)+len(updates))
	for k, r := range s.rules {
		next[k] = r
	}
	s.mu.RUnlock()

	for _, r := range updates {
		if len(r.Filters()) == 0 {
			delete(next, r.Query())
			continue
		}
		next[r.Query()] = r
	}

	if err := s.store.Save(ctx, sortedRules(next)); err != nil {
		return fmt.Errorf("persist curation: %w", err)
	}

	s.mu.Lock()
	s.rules = next
	s.mu.Unlock()
	return nil
}

// Rules returns every rule ordered by query text.
func (s *Service) Rules() []curation.Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedRules(s.rules)
}

// Pinned resolves the rule for queryText into document ids, in filter order, deduplicated.
func (s *Service) Pinned(_ context.Context, queryText string) ([]string, error) {
	s.mu.RLock()
	r, ok := s.rules[curation.NormalizeQuery(queryText)]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	exprs, err := r.Expressions()
	if err != nil {
		return nil, err
	}
	var ids []string
	seen := make(map[string]struct{})
	for _, expr := range exprs {
		for _, d := range s.docs.List(0, s.perFilter, expr) {
			if _, dup := seen[d.ID()]; dup {
				continue
			}
			seen[d.ID()] = struct{}{}
			ids = append(ids, d.ID())
		}
	}
	return ids, nil
}

func sortedRules(m map[string]curation.Rule) []curation.Rule {
	out := make([]curation.Rule, 0, len(m))
	for _, r := range m {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Query() < out[j].Query() })
	return out
}
