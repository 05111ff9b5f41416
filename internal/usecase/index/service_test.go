package index

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/hybridex/internal/domain"
	dombatch "github.com/kailas-cloud/hybridex/internal/domain/batch"
	"github.com/kailas-cloud/hybridex/internal/domain/document"
	"github.com/kailas-cloud/hybridex/internal/domain/metric"
	"github.com/kailas-cloud/hybridex/internal/domain/schema"
	"github.com/kailas-cloud/hybridex/internal/domain/search/filter"
	"github.com/kailas-cloud/hybridex/internal/domain/value"
)

// --- Mocks ---

type mockBackend struct {
	mu       sync.Mutex
	calls    []string
	indexed  []document.Document
	indexErr error
	deleteFn func(ids []string, f filter.Expression) ([]string, error)
}

func (m *mockBackend) Index(_ context.Context, docs []document.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "index")
	if m.indexErr != nil {
		return m.indexErr
	}
	m.indexed = append(m.indexed, docs...)
	return nil
}

func (m *mockBackend) Delete(_ context.Context, ids []string, f filter.Expression) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "delete")
	if m.deleteFn == nil {
		return ids, nil
	}
	return m.deleteFn(ids, f)
}

type mockCache struct {
	put     []document.Document
	removed []string
}

func (m *mockCache) Put(docs []document.Document) { m.put = append(m.put, docs...) }
func (m *mockCache) Remove(ids []string)          { m.removed = append(m.removed, ids...) }

type mockMaterializer struct {
	fetchFn func(ctx context.Context, uri string) ([]byte, string, error)
	mu      sync.Mutex
	fetched []string
}

func (m *mockMaterializer) Fetch(ctx context.Context, uri string) ([]byte, string, error) {
	m.mu.Lock()
	m.fetched = append(m.fetched, uri)
	m.mu.Unlock()
	return m.fetchFn(ctx, uri)
}

// --- Helpers ---

func testSchema(t *testing.T) schema.Schema {
	t.Helper()
	clip, err := schema.NewEncoder("clip", 2, []schema.IndexedField{
		{Name: "title", Modality: "text"},
		{Name: "image", Modality: "image"},
	})
	if err != nil {
		t.Fatal(err)
	}
	s, err := schema.New(metric.Cosine, []schema.Encoder{clip}, nil)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func newService(t *testing.T, b Backend, c Cache) *Service {
	t.Helper()
	svc, err := New(b, c, testSchema(t), 4, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(svc.Close)
	return svc
}

func doc(t *testing.T, id string, fields ...document.Field) document.Document {
	t.Helper()
	d, err := document.New(id, "", fields, map[string]value.Value{"price": value.Number(10)})
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func field(t *testing.T, name, text, uri string, blob []byte) document.Field {
	t.Helper()
	f, err := document.NewField(name, text, uri, blob, map[string][]float32{"clip": {1, 0}})
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func okMaterializer() *mockMaterializer {
	return &mockMaterializer{fetchFn: func(_ context.Context, uri string) ([]byte, string, error) {
		return []byte("content of " + uri), "text/plain", nil
	}}
}

// --- Tests ---

func TestIndex_AssignsIDAndBookkeeping(t *testing.T) {
	be, cache := &mockBackend{}, &mockCache{}
	svc := newService(t, be, cache)

	results, err := svc.Index(context.Background(), []document.Document{
		doc(t, "", field(t, "title", "red shoes", "", nil)),
		doc(t, "fixed", field(t, "image", "", "s3://bucket/a.png", nil)),
	})
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if len(results) != 2 || results[0].Status() != dombatch.StatusOK || results[0].ID() == "" {
		t.Fatalf("results = %+v", results)
	}
	if len(be.indexed) != 2 || len(cache.put) != 2 {
		t.Fatalf("indexed %d cached %d", len(be.indexed), len(cache.put))
	}
	if be.indexed[0].ID() != results[0].ID() {
		t.Errorf("assigned id %q not stored", results[0].ID())
	}
	if v := be.indexed[0].Tags()[document.TagHasText]; !v.Equal(value.Bool(true)) {
		t.Errorf("has_text on text doc = %v", v)
	}
	if v := be.indexed[1].Tags()[document.TagHasText]; !v.Equal(value.Bool(false)) {
		t.Errorf("has_text on image doc = %v", v)
	}
}

func TestIndex_StripsPayloads(t *testing.T) {
	be := &mockBackend{}
	mat := okMaterializer()
	svc := newService(t, be, &mockCache{}).WithMaterializer(mat)

	blob := []byte{0x89, 'P', 'N', 'G'}
	_, err := svc.Index(context.Background(), []document.Document{
		doc(t, "remote", field(t, "image", "", "https://cdn.example.com/a.png", blob)),
		doc(t, "local", field(t, "image", "", "/tmp/b.png", nil)),
		doc(t, "inline", field(t, "image", "", "", blob)),
	})
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	for _, d := range be.indexed {
		f, _ := d.Field("image")
		if len(f.Blob()) != 0 {
			t.Errorf("%s: blob not stripped", d.ID())
		}
		if document.Classify(f.URI()) != document.LocationRemote {
			t.Errorf("%s: uri %q is not durable", d.ID(), f.URI())
		}
	}
	if got, _ := be.indexed[0].Field("image"); got.URI() != "https://cdn.example.com/a.png" {
		t.Errorf("remote uri rewritten: %q", got.URI())
	}
	if got, _ := be.indexed[1].Field("image"); !strings.HasPrefix(got.URI(), "data:text/plain;base64,") {
		t.Errorf("local uri = %q", got.URI())
	}
	if len(mat.fetched) != 1 || mat.fetched[0] != "/tmp/b.png" {
		t.Errorf("fetched = %v, only the local payload should be loaded", mat.fetched)
	}
}

func TestIndex_FetchesMissingText(t *testing.T) {
	be := &mockBackend{}
	svc := newService(t, be, &mockCache{}).WithMaterializer(okMaterializer()).WithRateLimit(1000, 10)

	_, err := svc.Index(context.Background(), []document.Document{
		doc(t, "a", field(t, "title", "", "s3://bucket/a.txt", nil)),
	})
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	f, _ := be.indexed[0].Field("title")
	if f.Text() != "content of s3://bucket/a.txt" {
		t.Errorf("text = %q", f.Text())
	}
	if f.URI() != "s3://bucket/a.txt" {
		t.Errorf("uri = %q", f.URI())
	}
}

func TestIndex_DropsFailingDocument(t *testing.T) {
	be := &mockBackend{}
	mat := &mockMaterializer{fetchFn: func(_ context.Context, uri string) ([]byte, string, error) {
		if strings.Contains(uri, "broken") {
			return nil, "", errors.New("404")
		}
		return []byte("ok"), "text/plain", nil
	}}
	svc := newService(t, be, &mockCache{}).WithMaterializer(mat)

	results, err := svc.Index(context.Background(), []document.Document{
		doc(t, "good", field(t, "image", "", "/data/good.png", nil)),
		doc(t, "bad", field(t, "image", "", "/data/broken.png", nil)),
	})
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if results[1].Status() != dombatch.StatusDropped || !errors.Is(results[1].Err(), domain.ErrMaterialize) {
		t.Errorf("bad result = %+v", results[1])
	}
	if len(be.indexed) != 1 || be.indexed[0].ID() != "good" {
		t.Errorf("indexed = %v", be.indexed)
	}
}

func TestIndex_DropsWrongDimensions(t *testing.T) {
	be := &mockBackend{}
	svc := newService(t, be, &mockCache{})

	wide, err := document.NewField("title", "x", "", nil, map[string][]float32{"clip": {1, 0, 0}})
	if err != nil {
		t.Fatal(err)
	}
	foreign, err := document.NewField("title", "y", "", nil, map[string][]float32{"other": {1, 0, 0}})
	if err != nil {
		t.Fatal(err)
	}

	results, err := svc.Index(context.Background(), []document.Document{
		doc(t, "wide", wide),
		doc(t, "foreign", foreign),
	})
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if results[0].Status() != dombatch.StatusDropped || !errors.Is(results[0].Err(), domain.ErrSchemaMismatch) {
		t.Errorf("wide result = %+v", results[0])
	}
	if results[1].Status() != dombatch.StatusOK {
		t.Errorf("foreign result = %+v", results[1])
	}
	if len(be.indexed) != 1 || be.indexed[0].ID() != "foreign" {
		t.Errorf("indexed = %v", be.indexed)
	}
}

func TestIndex_LocalWithoutMaterializerDropped(t *testing.T) {
	be := &mockBackend{}
	svc := newService(t, be, &mockCache{})
	results, err := svc.Index(context.Background(), []document.Document{
		doc(t, "a", field(t, "image", "", "/data/a.png", nil)),
	})
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if results[0].Status() != dombatch.StatusDropped {
		t.Errorf("status = %s", results[0].Status())
	}
	if len(be.calls) != 0 {
		t.Errorf("backend must not be called for an empty batch, calls = %v", be.calls)
	}
}

func TestIndex_BackendFailureLeavesCacheUntouched(t *testing.T) {
	be := &mockBackend{indexErr: context.DeadlineExceeded}
	cache := &mockCache{}
	svc := newService(t, be, cache)

	_, err := svc.Index(context.Background(), []document.Document{doc(t, "a", field(t, "title", "x", "", nil))})
	if !errors.Is(err, domain.ErrBackingStoreTimeout) {
		t.Fatalf("err = %v, want ErrBackingStoreTimeout", err)
	}
	if len(cache.put) != 0 {
		t.Error("cache updated after failed write")
	}
}

func TestIndex_BatchTooLarge(t *testing.T) {
	svc := newService(t, &mockBackend{}, &mockCache{}).WithMaxBatchSize(1)
	_, err := svc.Index(context.Background(), []document.Document{
		doc(t, "a", field(t, "title", "x", "", nil)),
		doc(t, "b", field(t, "title", "y", "", nil)),
	})
	if !errors.Is(err, domain.ErrInvalidDocument) {
		t.Fatalf("err = %v", err)
	}
}

func TestUpdate_DeletesThenIndexes(t *testing.T) {
	be, cache := &mockBackend{}, &mockCache{}
	svc := newService(t, be, cache)

	_, err := svc.Update(context.Background(), []document.Document{doc(t, "a", field(t, "title", "v2", "", nil))})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if strings.Join(be.calls, ",") != "delete,index" {
		t.Errorf("calls = %v", be.calls)
	}
	if len(cache.removed) != 1 || len(cache.put) != 1 {
		t.Errorf("cache removed=%v put=%d", cache.removed, len(cache.put))
	}

	if _, err := svc.Update(context.Background(), []document.Document{doc(t, "", field(t, "title", "x", "", nil))}); !errors.Is(err, domain.ErrInvalidDocument) {
		t.Errorf("update without id: err = %v", err)
	}
}

func TestUpdate_DroppedItemKeepsStoredVersion(t *testing.T) {
	be, cache := &mockBackend{}, &mockCache{}
	mat := &mockMaterializer{fetchFn: func(_ context.Context, uri string) ([]byte, string, error) {
		if strings.Contains(uri, "nope") {
			return nil, "", errors.New("no such file")
		}
		return []byte("ok"), "image/png", nil
	}}
	svc := newService(t, be, cache).WithMaterializer(mat)

	results, err := svc.Update(context.Background(), []document.Document{
		doc(t, "a", field(t, "image", "", "/data/nope.png", nil)),
		doc(t, "b", field(t, "image", "", "/data/b.png", nil)),
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if results[0].Status() != dombatch.StatusDropped || !errors.Is(results[0].Err(), domain.ErrMaterialize) {
		t.Errorf("a result = %+v", results[0])
	}
	if results[1].Status() != dombatch.StatusOK {
		t.Errorf("b result = %+v", results[1])
	}
	if strings.Join(cache.removed, ",") != "b" {
		t.Errorf("cache removed = %v, want only b", cache.removed)
	}
	if len(be.indexed) != 1 || be.indexed[0].ID() != "b" {
		t.Errorf("indexed = %v", be.indexed)
	}
}

func TestUpdate_NothingPreparedSkipsBackend(t *testing.T) {
	be, cache := &mockBackend{}, &mockCache{}
	svc := newService(t, be, cache)

	results, err := svc.Update(context.Background(), []document.Document{
		doc(t, "a", field(t, "image", "", "/data/a.png", nil)),
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if results[0].Status() != dombatch.StatusDropped {
		t.Errorf("status = %s", results[0].Status())
	}
	if len(be.calls) != 0 || len(cache.removed) != 0 {
		t.Errorf("calls = %v removed = %v", be.calls, cache.removed)
	}
}

// orderedStore records backend writes and cache updates in one log.
type orderedStore struct {
	mu  sync.Mutex
	log []string
}

func (o *orderedStore) record(entry string) {
	o.mu.Lock()
	o.log = append(o.log, entry)
	o.mu.Unlock()
}

func (o *orderedStore) Index(_ context.Context, _ []document.Document) error {
	o.record("store:index")
	return nil
}

func (o *orderedStore) Delete(_ context.Context, ids []string, _ filter.Expression) ([]string, error) {
	o.record("store:delete")
	return ids, nil
}

func (o *orderedStore) Put(_ []document.Document) { o.record("cache:put") }
func (o *orderedStore) Remove(_ []string)         { o.record("cache:remove") }

func TestWrites_CacheFollowsStoreOrder(t *testing.T) {
	o := &orderedStore{}
	svc := newService(t, o, o)
	ctx := context.Background()
	a := doc(t, "a", field(t, "title", "x", "", nil))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = svc.Index(ctx, []document.Document{a})
		}()
		go func() {
			defer wg.Done()
			_, _ = svc.Delete(ctx, []string{"a"}, value.Value{})
		}()
	}
	wg.Wait()

	if len(o.log)%2 != 0 {
		t.Fatalf("log = %v", o.log)
	}
	for i := 0; i < len(o.log); i += 2 {
		store, cache := o.log[i], o.log[i+1]
		if (store == "store:index") != (cache == "cache:put") || !strings.HasPrefix(store, "store:") {
			t.Fatalf("entry %d: %s followed by %s", i, store, cache)
		}
	}
}

func TestDelete(t *testing.T) {
	t.Run("requires ids or filter", func(t *testing.T) {
		be := &mockBackend{}
		svc := newService(t, be, &mockCache{})
		if _, err := svc.Delete(context.Background(), nil, value.Value{}); !errors.Is(err, domain.ErrFilterRequired) {
			t.Fatalf("err = %v", err)
		}
		if len(be.calls) != 0 {
			t.Error("backend called")
		}
	})

	t.Run("by filter", func(t *testing.T) {
		cache := &mockCache{}
		be := &mockBackend{deleteFn: func(ids []string, f filter.Expression) ([]string, error) {
			if len(ids) != 0 || len(f.Must()) != 1 || f.Must()[0].Key() != "price" {
				t.Errorf("ids=%v filter=%v", ids, f)
			}
			return []string{"a", "b"}, nil
		}}
		svc := newService(t, be, cache)
		n, err := svc.Delete(context.Background(), nil, value.Map(map[string]value.Value{
			"price": value.Map(map[string]value.Value{"$gte": value.Number(0)}),
		}))
		if err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if n != 2 || len(cache.removed) != 2 {
			t.Errorf("n=%d removed=%v", n, cache.removed)
		}
	})

	t.Run("bad operator", func(t *testing.T) {
		svc := newService(t, &mockBackend{}, &mockCache{})
		_, err := svc.Delete(context.Background(), nil, value.Map(map[string]value.Value{
			"price": value.Map(map[string]value.Value{"$ne": value.Number(0)}),
		}))
		if !errors.Is(err, domain.ErrUnsupportedOperator) {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("backend failure", func(t *testing.T) {
		be := &mockBackend{deleteFn: func([]string, filter.Expression) ([]string, error) {
			return nil, errors.New("down")
		}}
		svc := newService(t, be, &mockCache{})
		if _, err := svc.Delete(context.Background(), []string{"a"}, value.Value{}); !errors.Is(err, domain.ErrBackingStore) {
			t.Fatalf("err = %v", err)
		}
	})
}
