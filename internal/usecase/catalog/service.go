// Package catalog serves list, count and tag statistics from the in-memory tag cache.
package catalog

import (
	"fmt"

	"github.com/kailas-cloud/hybridex/internal/domain"
	"github.com/kailas-cloud/hybridex/internal/domain/document"
	"github.com/kailas-cloud/hybridex/internal/domain/search/filter"
	"github.com/kailas-cloud/hybridex/internal/domain/value"
)

// Defaults for pagination and tag statistics.
const (
	DefaultPageSize = 100
	MaxPageSize     = 1000
	DefaultTopTags  = 10
)

// Service lists and counts documents without touching the backing store.
type Service struct {
	cache           Cache
	defaultPageSize int
	maxPageSize     int
	topTags         int
}

// New creates a catalog service.
func New(cache Cache) *Service {
	return &Service{
		cache:           cache,
		defaultPageSize: DefaultPageSize,
		maxPageSize:     MaxPageSize,
		topTags:         DefaultTopTags,
	}
}

// WithPagination overrides page size defaults.
func (s *Service) WithPagination(defaultPageSize, maxPageSize int) *Service {
	if defaultPageSize > 0 {
		s.defaultPageSize = defaultPageSize
	}
	if maxPageSize > 0 {
		s.maxPageSize = maxPageSize
	}
	return s
}

// WithTopTags sets how many values per tag key GetTags reports.
func (s *Service) WithTopTags(n int) *Service {
	if n > 0 {
		s.topTags = n
	}
	return s
}

// List returns the tags-only projection of documents ordered by id.
func (s *Service) List(offset, limit int, f value.Value) ([]document.Document, error) {
	expr, err := s.window(offset, f)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = s.defaultPageSize
	}
	if limit > s.maxPageSize {
		limit = s.maxPageSize
	}
	return s.cache.List(offset, limit, expr), nil
}

// Count returns how many documents fall in the window [offset, offset+limit).
// A zero limit counts everything from offset on.
func (s *Service) Count(offset, limit int, f value.Value) (int, error) {
	expr, err := s.window(offset, f)
	if err != nil {
		return 0, err
	}
	if limit < 0 {
		return 0, fmt.Errorf("%w: limit must not be negative", domain.ErrInvalidQuery)
	}
	return s.cache.Count(offset, limit, expr), nil
}

// GetTags returns the most frequent values of every public tag key.
func (s *Service) GetTags() map[string][]document.TagCount {
	return s.cache.TopValues(s.topTags)
}

func (s *Service) window(offset int, f value.Value) (filter.Expression, error) {
	if offset < 0 {
		return filter.Expression{}, fmt.Errorf("%w: offset must not be negative", domain.ErrInvalidQuery)
	}
	expr, err := filter.ParseValue(f)
	if err != nil {
		return filter.Expression{}, fmt.Errorf("filter: %w", err)
	}
	return expr, nil
}
