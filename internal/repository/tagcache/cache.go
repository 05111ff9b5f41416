// Package tagcache keeps an in-memory mirror of stored document ids and tags so list, count and
// tag statistics never scan the backing store.
package tagcache

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/kailas-cloud/hybridex/internal/domain/document"
	"github.com/kailas-cloud/hybridex/internal/domain/search/filter"
	"github.com/kailas-cloud/hybridex/internal/domain/value"
	"github.com/kailas-cloud/hybridex/internal/metrics"
)

// DefaultPageSize is the page size used when rebuilding from the backing store.
const DefaultPageSize = 1000

// Lister pages through stored documents in id order.
type Lister interface {
	List(ctx context.Context, offset, limit int) ([]document.Document, error)
}

type entry struct {
	parentID string
	tags     map[string]value.Value
}

// Cache is safe for concurrent use. Readers never block each other; writers hold the lock
// only for the in-memory update.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ids     []string
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{entries: make(map[string]entry)}
}

// Rebuild replaces the cache contents with everything src returns.
func (c *Cache) Rebuild(ctx context.Context, src Lister, pageSize int) error {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	entries := make(map[string]entry)
	for offset := 0; ; offset += pageSize {
		page, err := src.List(ctx, offset, pageSize)
		if err != nil {
			return fmt.Errorf("rebuild tag cache at offset %d: %w", offset, err)
		}
		for _, d := range page {
			entries[d.ID()] = entry{parentID: d.ParentID(), tags: d.Tags()}
		}
		if len(page) < pageSize {
			break
		}
	}

	ids := make([]string, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	c.mu.Lock()
	c.entries, c.ids = entries, ids
	c.mu.Unlock()
	metrics.CachedDocuments.Set(float64(len(ids)))
	return nil
}

// Put records confirmed writes, replacing earlier versions.
func (c *Cache) Put(docs []document.Document) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range docs {
		if _, exists := c.entries[d.ID()]; !exists {
			i, _ := slices.BinarySearch(c.ids, d.ID())
			c.ids = slices.Insert(c.ids, i, d.ID())
		}
		c.entries[d.ID()] = entry{parentID: d.ParentID(), tags: d.Tags()}
	}
	metrics.CachedDocuments.Set(float64(len(c.ids)))
}

// Remove forgets confirmed deletes.
func (c *Cache) Remove(ids []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		if _, exists := c.entries[id]; !exists {
			continue
		}
		delete(c.entries, id)
		if i, found := slices.BinarySearch(c.ids, id); found {
			c.ids = slices.Delete(c.ids, i, i+1)
		}
	}
	metrics.CachedDocuments.Set(float64(len(c.ids)))
}

// Len returns the number of cached documents.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.ids)
}

// List returns the tags-only projection of documents matching f, ordered by id,
// windowed by offset and limit. A zero limit means no upper bound.
func (c *Cache) List(offset, limit int, f filter.Expression) []document.Document {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []document.Document
	skipped := 0
	for _, id := range c.ids {
		e := c.entries[id]
		if !c.matches(id, e, f) {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		out = append(out, document.Reconstruct(id, e.parentID, nil, document.PublicTags(e.tags)))
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Count returns how many documents matching f fall in the window [offset, offset+limit).
// A zero limit means no upper bound.
func (c *Cache) Count(offset, limit int, f filter.Expression) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	total := len(c.ids)
	if !f.IsEmpty() {
		total = 0
		for _, id := range c.ids {
			if c.matches(id, c.entries[id], f) {
				total++
			}
		}
	}
	end := total
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return max(0, end-offset)
}

// TopValues returns, per public tag key, the n most frequent values. List tags count each
// element; map values are skipped. Ties are ordered by value.
func (c *Cache) TopValues(n int) map[string][]document.TagCount {
	c.mu.RLock()
	counts := make(map[string]map[string]int)
	for _, e := range c.entries {
		for key, v := range e.tags {
			if document.IsInternalTag(key) {
				continue
			}
			values := []value.Value{v}
			if items, ok := v.AsList(); ok {
				values = items
			}
			for _, item := range values {
				text, ok := item.Text()
				if !ok {
					continue
				}
				if counts[key] == nil {
					counts[key] = make(map[string]int)
				}
				counts[key][text]++
			}
		}
	}
	c.mu.RUnlock()

	out := make(map[string][]document.TagCount, len(counts))
	for key, byValue := range counts {
		vcs := make([]document.TagCount, 0, len(byValue))
		for v, cnt := range byValue {
			vcs = append(vcs, document.TagCount{Value: v, Count: cnt})
		}
		sort.Slice(vcs, func(i, j int) bool {
			if vcs[i].Count != vcs[j].Count {
				return vcs[i].Count > vcs[j].Count
			}
			return vcs[i].Value < vcs[j].Value
		})
		if n > 0 && len(vcs) > n {
			vcs = vcs[:n]
		}
		out[key] = vcs
	}
	return out
}

func (c *Cache) matches(id string, e entry, f filter.Expression) bool {
	if f.IsEmpty() {
		return true
	}
	return f.Matches(filter.Target{ID: id, ParentID: e.parentID, Tags: e.tags})
}
