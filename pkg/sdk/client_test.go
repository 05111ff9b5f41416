package hybridex

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kailas-cloud/hybridex/internal/domain"
	dombatch "github.com/kailas-cloud/hybridex/internal/domain/batch"
	domdoc "github.com/kailas-cloud/hybridex/internal/domain/document"
	"github.com/kailas-cloud/hybridex/internal/domain/metric"
	"github.com/kailas-cloud/hybridex/internal/domain/search/match"
	"github.com/kailas-cloud/hybridex/internal/domain/search/request"
	"github.com/kailas-cloud/hybridex/internal/domain/value"
	healthuc "github.com/kailas-cloud/hybridex/internal/usecase/health"
)

func testSchema() Schema {
	return Schema{
		Metric: Cosine,
		Encoders: []Encoder{{
			Name:       "clip",
			Dimensions: 2,
			Fields:     []IndexedField{{Name: "title", Modality: "text"}},
		}},
		Filters: []Filterable{{Name: "color"}, {Name: "price", Type: FieldNumeric}},
	}
}

func mustDomainDoc(t *testing.T, id string, tags map[string]value.Value) domdoc.Document {
	t.Helper()
	f, err := domdoc.NewField("title", "red shoe", "", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	d, err := domdoc.New(id, "", []domdoc.Field{f}, tags)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestClient_Index(t *testing.T) {
	var got []domdoc.Document
	c := &Client{indexSvc: &mockIndexUC{
		indexFn: func(_ context.Context, docs []domdoc.Document) ([]dombatch.Result, error) {
			got = docs
			return []dombatch.Result{
				dombatch.NewOK(0, "a"),
				dombatch.NewDropped(1, "b", domain.ErrMaterialize),
			}, nil
		},
	}}

	items, err := c.Index(context.Background(), []Document{
		{ID: "a", Fields: []Field{{Name: "title", Text: "x"}}, Tags: map[string]any{"color": "red", "price": 10}},
		{ID: "b", Fields: []Field{{Name: "image", URI: "/missing.png"}}},
	})
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("usecase got %d docs", len(got))
	}
	if v := got[0].Tags()["color"]; v.Any() != "red" {
		t.Errorf("color tag = %v", v.Any())
	}
	if !items[0].Indexed || items[1].Indexed {
		t.Errorf("items = %+v", items)
	}
	if !errors.Is(items[1].Err, ErrMaterialize) {
		t.Errorf("items[1].Err = %v", items[1].Err)
	}
}

func TestClient_Index_InvalidTag(t *testing.T) {
	c := &Client{indexSvc: &mockIndexUC{
		indexFn: func(context.Context, []domdoc.Document) ([]dombatch.Result, error) {
			t.Fatal("usecase must not be called")
			return nil, nil
		},
	}}
	_, err := c.Index(context.Background(), []Document{{ID: "a", Tags: map[string]any{"bad": struct{}{}}}})
	if !errors.Is(err, ErrInvalidDocument) {
		t.Fatalf("err = %v, want ErrInvalidDocument", err)
	}
}

func TestClient_Update(t *testing.T) {
	c := &Client{indexSvc: &mockIndexUC{
		updateFn: func(_ context.Context, docs []domdoc.Document) ([]dombatch.Result, error) {
			return []dombatch.Result{dombatch.NewOK(0, docs[0].ID())}, nil
		},
	}}
	items, err := c.Update(context.Background(), []Document{{ID: "a", Fields: []Field{{Name: "title", Text: "x"}}}})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(items) != 1 || items[0].ID != "a" || !items[0].Indexed {
		t.Errorf("items = %+v", items)
	}
}

func TestClient_Delete(t *testing.T) {
	var gotIDs []string
	var gotFilter value.Value
	c := &Client{indexSvc: &mockIndexUC{
		deleteFn: func(_ context.Context, ids []string, f value.Value) (int, error) {
			gotIDs, gotFilter = ids, f
			return 3, nil
		},
	}}

	n, err := c.Delete(context.Background(), []string{"a"}, map[string]any{"color": "red"})
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if n != 3 || len(gotIDs) != 1 {
		t.Errorf("n = %d, ids = %v", n, gotIDs)
	}
	m, ok := gotFilter.AsMap()
	if !ok || m["color"].Any() != "red" {
		t.Errorf("filter = %v", gotFilter.Any())
	}
}

func TestClient_Delete_NoFilter(t *testing.T) {
	c := &Client{indexSvc: &mockIndexUC{
		deleteFn: func(_ context.Context, _ []string, f value.Value) (int, error) {
			if !f.IsNull() {
				t.Errorf("filter = %v, want null", f.Any())
			}
			return 0, nil
		},
	}}
	if _, err := c.Delete(context.Background(), []string{"a"}, nil); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}

func TestClient_Search(t *testing.T) {
	var got request.Request
	c := &Client{searchSvc: &mockSearchUC{
		searchFn: func(_ context.Context, req request.Request) ([]match.Match, error) {
			got = req
			return []match.Match{{
				ID:        "p1",
				ChunkID:   "p1#0",
				Score:     metric.Score{Value: 0.9},
				Breakdown: map[string]float64{"title:clip": 0.9},
				Document:  mustDomainDoc(t, "p1#0", map[string]value.Value{"color": value.String("red")}),
				Chunks:    2,
			}}, nil
		},
	}}

	hits, err := c.Search(context.Background(), SearchRequest{
		Query:     Query{Fields: []QueryField{{Name: "title", Text: "red shoe"}}},
		Limit:     5,
		Filter:    map[string]any{"color": "red"},
		Breakdown: true,
		Terms:     []ScoreTerm{{QueryField: "title", DocumentField: "title", Encoder: "clip"}},
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got.Limit() != 5 || !got.Breakdown() || len(got.Terms()) != 1 {
		t.Errorf("request = limit %d breakdown %v terms %d", got.Limit(), got.Breakdown(), len(got.Terms()))
	}
	if len(hits) != 1 {
		t.Fatalf("hits = %d", len(hits))
	}
	h := hits[0]
	if h.ID != "p1" || h.ChunkID != "p1#0" || h.Chunks != 2 || h.Score != 0.9 {
		t.Errorf("hit = %+v", h)
	}
	if h.Breakdown["title:clip"] != 0.9 {
		t.Errorf("breakdown = %v", h.Breakdown)
	}
	if h.Document.Tags["color"] != "red" {
		t.Errorf("document tags = %v", h.Document.Tags)
	}
}

func TestClient_Search_InvalidQuery(t *testing.T) {
	c := &Client{searchSvc: &mockSearchUC{
		searchFn: func(context.Context, request.Request) ([]match.Match, error) {
			t.Fatal("usecase must not be called")
			return nil, nil
		},
	}}

	tests := []struct {
		name string
		req  SearchRequest
	}{
		{name: "no fields", req: SearchRequest{}},
		{name: "negative limit", req: SearchRequest{Query: Query{Fields: []QueryField{{Name: "title", Text: "x"}}}, Limit: -1}},
		{name: "filter not an object", req: SearchRequest{
			Query:  Query{Fields: []QueryField{{Name: "title", Text: "x"}}},
			Filter: map[string]any{"color": struct{}{}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := c.Search(context.Background(), tt.req); !errors.Is(err, ErrInvalidQuery) {
				t.Errorf("err = %v, want ErrInvalidQuery", err)
			}
		})
	}
}

func TestClient_Search_UsecaseError(t *testing.T) {
	c := &Client{searchSvc: &mockSearchUC{
		searchFn: func(context.Context, request.Request) ([]match.Match, error) {
			return nil, domain.ErrBackingStoreTimeout
		},
	}}
	_, err := c.Search(context.Background(), SearchRequest{Query: Query{Fields: []QueryField{{Name: "title", Text: "x"}}}})
	if !errors.Is(err, ErrBackingStoreTimeout) {
		t.Fatalf("err = %v", err)
	}
}

func TestClient_ListAndCount(t *testing.T) {
	c := &Client{catalog: &mockCatalogUC{
		listFn: func(offset, limit int, _ value.Value) ([]domdoc.Document, error) {
			if offset != 10 || limit != 5 {
				t.Errorf("offset/limit = %d/%d", offset, limit)
			}
			return []domdoc.Document{mustDomainDoc(t, "a", nil)}, nil
		},
		countFn: func(_, _ int, f value.Value) (int, error) {
			if f.IsNull() {
				t.Error("filter not passed")
			}
			return 7, nil
		},
	}}

	docs, err := c.List(context.Background(), 10, 5, nil)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != "a" || docs[0].Fields[0].Text != "red shoe" {
		t.Errorf("docs = %+v", docs)
	}

	n, err := c.Count(context.Background(), 0, 0, map[string]any{"color": "red"})
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 7 {
		t.Errorf("count = %d", n)
	}
}

func TestClient_List_CanceledContext(t *testing.T) {
	c := &Client{catalog: &mockCatalogUC{}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.List(ctx, 0, 0, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
}

func TestClient_Tags(t *testing.T) {
	c := &Client{catalog: &mockCatalogUC{tags: map[string][]domdoc.TagCount{
		"color": {{Value: "red", Count: 3}, {Value: "blue", Count: 1}},
	}}}
	tags := c.Tags()
	if len(tags["color"]) != 2 || tags["color"][0] != (TagCount{Value: "red", Count: 3}) {
		t.Errorf("tags = %v", tags)
	}
}

func TestClient_Health(t *testing.T) {
	c := &Client{healthSvc: &mockHealthUC{report: healthuc.Report{
		Status: healthuc.Degraded,
		Checks: map[string]healthuc.CheckResult{"backend": healthuc.CheckOK, "clip": healthuc.CheckError},
	}}}
	h := c.Health(context.Background())
	if h.Healthy() || h.Status != "degraded" || h.Checks["clip"] != "error" || h.Checks["backend"] != "ok" {
		t.Errorf("health = %+v", h)
	}
}

func TestEmbedderAdapter_WrapsErrors(t *testing.T) {
	a := &embedderAdapter{inner: &mockEmbedder{embedFn: func(context.Context, string) (EmbeddingResult, error) {
		return EmbeddingResult{}, errors.New("rate limited")
	}}}
	_, err := a.Embed(context.Background(), "x")
	if !errors.Is(err, ErrEmbeddingProviderError) {
		t.Fatalf("err = %v", err)
	}
}

func TestOpen_InvalidSchema(t *testing.T) {
	_, err := Open(context.Background(), WithSchema(Schema{Metric: "manhattan"}))
	if err == nil || !strings.Contains(err.Error(), "unknown metric") {
		t.Fatalf("err = %v", err)
	}
}

func TestOpen_RedisNeedsAddress(t *testing.T) {
	noAddr := optionFunc(func(c *clientConfig) { c.driver = "redis" })
	_, err := Open(context.Background(), WithSchema(testSchema()), noAddr)
	if err == nil || !strings.Contains(err.Error(), "address required") {
		t.Fatalf("err = %v", err)
	}
}

func TestOpen_EmbeddedEndToEnd(t *testing.T) {
	reg := prometheus.NewRegistry()
	var embedded []string
	emb := &mockEmbedder{embedFn: func(_ context.Context, text string) (EmbeddingResult, error) {
		embedded = append(embedded, text)
		return EmbeddingResult{Embedding: []float32{1, 0}, TotalTokens: 1}, nil
	}}

	c, err := Open(context.Background(),
		WithEmbedded(""),
		WithSchema(testSchema()),
		WithEmbedder("clip", emb),
		WithPrometheus(reg),
	)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	ctx := context.Background()

	items, err := c.Index(ctx, []Document{
		{
			ID:     "a",
			Fields: []Field{{Name: "title", Text: "red shoe", Embeddings: map[string][]float32{"clip": {1, 0}}}},
			Tags:   map[string]any{"color": "red"},
		},
		{
			ID:     "b",
			Fields: []Field{{Name: "title", Text: "blue hat", Embeddings: map[string][]float32{"clip": {0, 1}}}},
			Tags:   map[string]any{"color": "blue"},
		},
		{
			ID:     "c",
			Fields: []Field{{Name: "title", Text: "too wide", Embeddings: map[string][]float32{"clip": {1, 0, 0}}}},
		},
	})
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if !items[0].Indexed || !items[1].Indexed {
		t.Fatalf("items = %+v", items)
	}
	if items[2].Indexed || !errors.Is(items[2].Err, ErrSchemaMismatch) {
		t.Errorf("wrong-dimension item = %+v", items[2])
	}

	hits, err := c.Search(ctx, SearchRequest{Query: Query{Fields: []QueryField{{Name: "title", Text: "red"}}}})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 || hits[0].ID != "a" {
		t.Fatalf("hits = %+v", hits)
	}
	if len(embedded) != 1 || embedded[0] != "red" {
		t.Errorf("embedder calls = %v", embedded)
	}

	hits, err = c.Search(ctx, SearchRequest{
		Query:  Query{Fields: []QueryField{{Name: "title", Embeddings: map[string][]float32{"clip": {1, 0}}}}},
		Filter: map[string]any{"color": "blue"},
	})
	if err != nil {
		t.Fatalf("filtered Search: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != "b" {
		t.Errorf("filtered hits = %+v", hits)
	}

	n, err := c.Count(ctx, 0, 0, nil)
	if err != nil || n != 2 {
		t.Errorf("Count = %d, %v", n, err)
	}
	if tags := c.Tags(); len(tags["color"]) != 2 {
		t.Errorf("tags = %v", tags)
	}

	removed, err := c.Delete(ctx, nil, map[string]any{"color": "red"})
	if err != nil || removed != 1 {
		t.Errorf("Delete = %d, %v", removed, err)
	}
	docs, err := c.List(ctx, 0, 0, nil)
	if err != nil || len(docs) != 1 || docs[0].ID != "b" {
		t.Errorf("List = %+v, %v", docs, err)
	}

	if h := c.Health(ctx); !h.Healthy() || h.Checks["backend"] != "ok" {
		t.Errorf("health = %+v", h)
	}
	if err := c.Ping(ctx); err != nil {
		t.Errorf("Ping: %v", err)
	}

	ops := c.obs.metrics.operations
	if got := testutil.ToFloat64(ops.WithLabelValues("search", "ok")); got != 2 {
		t.Errorf("search ok = %v, want 2", got)
	}
	if got := testutil.ToFloat64(ops.WithLabelValues("index", "ok")); got != 1 {
		t.Errorf("index ok = %v, want 1", got)
	}
	docs2 := c.obs.metrics.documents
	if got := testutil.ToFloat64(docs2.WithLabelValues("index", "dropped")); got != 1 {
		t.Errorf("dropped documents = %v, want 1", got)
	}
	if got := testutil.ToFloat64(docs2.WithLabelValues("index", "indexed")); got != 2 {
		t.Errorf("indexed documents = %v, want 2", got)
	}
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, statusOK},
		{fmt.Errorf("search: %w", ErrInvalidQuery), statusInvalid},
		{ErrFilterRequired, statusInvalid},
		{fmt.Errorf("x: %w", ErrBackingStoreTimeout), statusTimeout},
		{errors.New("boom"), statusError},
	}
	for _, tt := range tests {
		if got := statusOf(tt.err); got != tt.want {
			t.Errorf("statusOf(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestOpen_SharedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	for range 2 {
		c, err := Open(context.Background(), WithSchema(testSchema()), WithPrometheus(reg))
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		_ = c.Close()
	}
}
