package document

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/hybridex/internal/db"
	domdoc "github.com/kailas-cloud/hybridex/internal/domain/document"
	"github.com/kailas-cloud/hybridex/internal/domain/metric"
	"github.com/kailas-cloud/hybridex/internal/domain/schema"
	"github.com/kailas-cloud/hybridex/internal/domain/schema/field"
	"github.com/kailas-cloud/hybridex/internal/domain/value"
)

// mockStore keeps hashes in memory; the Fn fields override individual calls.
type mockStore struct {
	mu         sync.Mutex
	hashes     map[string]map[string]string
	kv         map[string][]byte
	dropped    []string
	textSearch bool
	closed     bool

	createIndexFn func(ctx context.Context, def *db.IndexDefinition) error
	indexExistsFn func(ctx context.Context, name string) (bool, error)
	searchKNNFn   func(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	searchTextFn  func(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
	replaceFn     func(ctx context.Context, items []db.HashSetItem) error
	delMultiFn    func(ctx context.Context, keys []string) error
}

func newMockStore(textSearch bool) *mockStore {
	return &mockStore{
		hashes:     make(map[string]map[string]string),
		kv:         make(map[string][]byte),
		textSearch: textSearch,
	}
}

func (m *mockStore) Ping(_ context.Context) error { return nil }

func (m *mockStore) Close() { m.closed = true }

func (m *mockStore) ReplaceMulti(ctx context.Context, items []db.HashSetItem) error {
	if m.replaceFn != nil {
		return m.replaceFn(ctx, items)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range items {
		cp := make(map[string]string, len(it.Fields))
		for k, v := range it.Fields {
			cp[k] = v
		}
		m.hashes[it.Key] = cp
	}
	return nil
}

func (m *mockStore) HGetAllMulti(_ context.Context, keys []string) ([]map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]map[string]string, len(keys))
	for i, k := range keys {
		out[i] = map[string]string{}
		for f, v := range m.hashes[k] {
			out[i][f] = v
		}
	}
	return out, nil
}

func (m *mockStore) DelMulti(ctx context.Context, keys []string) error {
	if m.delMultiFn != nil {
		return m.delMultiFn(ctx, keys)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.hashes, k)
	}
	return nil
}

func (m *mockStore) Scan(_ context.Context, pattern string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	var keys []string
	for k := range m.hashes {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if m.createIndexFn != nil {
		return m.createIndexFn(ctx, def)
	}
	return nil
}

func (m *mockStore) IndexExists(ctx context.Context, name string) (bool, error) {
	if m.indexExistsFn != nil {
		return m.indexExistsFn(ctx, name)
	}
	return false, nil
}

func (m *mockStore) DropIndex(_ context.Context, name string) error {
	m.dropped = append(m.dropped, name)
	return nil
}

func (m *mockStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.kv[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *mockStore) SetWithTTL(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kv[key] = value
	return nil
}

func (m *mockStore) SupportsTextSearch(_ context.Context) bool { return m.textSearch }

func (m *mockStore) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if m.searchKNNFn != nil {
		return m.searchKNNFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) SearchText(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error) {
	if m.searchTextFn != nil {
		return m.searchTextFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

// entry returns the stored hash for id as a search entry.
func (m *mockStore) entry(id string, score float64) db.SearchEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := "t:doc:" + id
	return db.SearchEntry{Key: key, Score: score, Fields: m.hashes[key]}
}

func testSchema(t *testing.T) schema.Schema {
	t.Helper()
	clip, err := schema.NewEncoder("clip", 2, []schema.IndexedField{{Name: "title", Modality: "text"}})
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	color, _ := field.New("color", field.Tag)
	price, _ := field.New("price", field.Numeric)
	s, err := schema.New(metric.Cosine, []schema.Encoder{clip}, []field.Field{color, price})
	if err != nil {
		t.Fatalf("schema.New: %v", err)
	}
	return s
}

func newTestRepo(t *testing.T, s *mockStore) *Repo {
	t.Helper()
	return New(s, testSchema(t), "t:", zap.NewNop())
}

func testDoc(t *testing.T, id, text string, vec []float32, tags map[string]value.Value) domdoc.Document {
	t.Helper()
	var embs map[string][]float32
	if vec != nil {
		embs = map[string][]float32{"clip": vec}
	}
	f, err := domdoc.NewField("title", text, "", nil, embs)
	if err != nil {
		t.Fatalf("NewField: %v", err)
	}
	d, err := domdoc.New(id, "", []domdoc.Field{f}, tags)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d
}
