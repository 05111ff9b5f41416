// Package curation persists curation rules as a JSON object mapping query text to filters.
package curation

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	domcur "github.com/kailas-cloud/hybridex/internal/domain/curation"
	"github.com/kailas-cloud/hybridex/internal/domain/value"
	"github.com/kailas-cloud/hybridex/internal/repository/filestore"
)

// Store reads and rewrites the curation file.
type Store struct {
	file *filestore.File
}

// New creates a Store backed by path.
func New(path string) *Store {
	return &Store{file: filestore.New(path)}
}

// Load returns every stored rule. A missing file yields no rules.
func (s *Store) Load(_ context.Context) ([]domcur.Rule, error) {
	data, ok, err := s.file.Read()
	if err != nil || !ok {
		return nil, err
	}
	var raw map[string][]map[string]value.Value
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode curation file %s: %w", s.file.Path(), err)
	}
	rules := make([]domcur.Rule, 0, len(raw))
	for q, filters := range raw {
		rules = append(rules, domcur.Reconstruct(q, filters))
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].Query() < rules[j].Query() })
	return rules, nil
}

// Save rewrites the file with exactly rules.
func (s *Store) Save(_ context.Context, rules []domcur.Rule) error {
	raw := make(map[string][]map[string]value.Value, len(rules))
	for _, r := range rules {
		raw[r.Query()] = r.Filters()
	}
	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("encode curation rules: %w", err)
	}
	if err := s.file.Write(data); err != nil {
		return fmt.Errorf("save curation rules: %w", err)
	}
	return nil
}
