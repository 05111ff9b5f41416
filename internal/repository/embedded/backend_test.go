package embedded

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/hybridex/internal/domain/document"
	"github.com/kailas-cloud/hybridex/internal/domain/metric"
	"github.com/kailas-cloud/hybridex/internal/domain/search/filter"
	"github.com/kailas-cloud/hybridex/internal/domain/search/match"
	"github.com/kailas-cloud/hybridex/internal/domain/search/plan"
	"github.com/kailas-cloud/hybridex/internal/domain/search/term"
	"github.com/kailas-cloud/hybridex/internal/domain/value"
)

func newBackend(t *testing.T) *Backend {
	t.Helper()
	b, err := Open(Config{}, zap.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func doc(t *testing.T, id, parent, text string, vec []float32, price float64) document.Document {
	t.Helper()
	var embs map[string][]float32
	if vec != nil {
		embs = map[string][]float32{"clip": vec}
	}
	f, err := document.NewField("title", text, "", []byte("blob"), embs)
	if err != nil {
		t.Fatal(err)
	}
	d, err := document.New(id, parent, []document.Field{f}, map[string]value.Value{"price": value.Number(price)})
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func vectorPlan(lexical string, pinned []string, f filter.Expression) plan.Plan {
	st, _ := term.New("title", "title", "clip", 1)
	return plan.New(lexical, []plan.VectorTerm{{ScoreTerm: st, Vector: []float32{1, 0}}}, f, pinned, metric.Cosine)
}

func hitIDs(hits []match.Hit) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.Document.ID()
	}
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestIndex_ReindexReplaces(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()

	if err := b.Index(ctx, []document.Document{doc(t, "a", "", "red shoe", []float32{1, 0}, 5)}); err != nil {
		t.Fatalf("Index: %v", err)
	}
	if err := b.Index(ctx, []document.Document{doc(t, "a", "", "blue boot", []float32{0, 1}, 5)}); err != nil {
		t.Fatalf("Index: %v", err)
	}

	if n, _ := b.Count(ctx); n != 1 {
		t.Fatalf("Count = %d, want 1", n)
	}
	hits, err := b.Search(ctx, vectorPlan("red", nil, filter.Expression{}), 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("stale text still matches: %v", hitIDs(hits))
	}
	hits, _ = b.Search(ctx, vectorPlan("blue", nil, filter.Expression{}), 10)
	if len(hits) != 1 || hits[0].Lexical <= 0 {
		t.Fatalf("hits = %+v", hits)
	}
	f, _ := hits[0].Document.Field("title")
	if f.Blob() != nil {
		t.Error("blob stored")
	}
}

func TestSearch_VectorOrderingAndMissingEmbeddings(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()
	_ = b.Index(ctx, []document.Document{
		doc(t, "far", "", "x", []float32{0, 1}, 1),
		doc(t, "near", "", "x", []float32{1, 0.1}, 1),
		doc(t, "none", "", "x", nil, 1),
	})

	hits, err := b.Search(ctx, vectorPlan("", nil, filter.Expression{}), 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got := hitIDs(hits); !equalIDs(got, []string{"near", "far"}) {
		t.Errorf("order = %v", got)
	}
	for _, h := range hits {
		if h.Lexical != 0 {
			t.Errorf("match-all plan produced lexical score %v", h.Lexical)
		}
	}

	hits, _ = b.Search(ctx, vectorPlan("", nil, filter.Expression{}), 1)
	if len(hits) != 1 {
		t.Errorf("topK not honoured: %d", len(hits))
	}
}

func TestSearch_LexicalFusion(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()
	_ = b.Index(ctx, []document.Document{doc(t, "a", "", "red shoe", []float32{1, 0}, 1)})

	p := vectorPlan("red", nil, filter.Expression{})
	hits, _ := b.Search(ctx, p, 10)
	if len(hits) != 1 {
		t.Fatalf("hits = %d", len(hits))
	}
	want := plan.NormalizeLexical(hits[0].Lexical) + 1
	if diff := hits[0].Score.Value - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("score = %v, want %v", hits[0].Score.Value, want)
	}
}

func TestSearch_LexicalFusionUnderL2(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()
	_ = b.Index(ctx, []document.Document{
		doc(t, "weak", "", "red blue green yellow purple", []float32{1, 0}, 1),
		doc(t, "strong", "", "red red red red", []float32{1, 0}, 1),
	})

	st, _ := term.New("title", "title", "clip", 1)
	p := plan.New("red", []plan.VectorTerm{{ScoreTerm: st, Vector: []float32{1, 0}}}, filter.Expression{}, nil, metric.L2)
	hits, err := b.Search(ctx, p, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got := hitIDs(hits); !equalIDs(got, []string{"strong", "weak"}) {
		t.Fatalf("order = %v", got)
	}
	if hits[0].Lexical <= hits[1].Lexical {
		t.Errorf("lexical scores = %v, %v", hits[0].Lexical, hits[1].Lexical)
	}
	if hits[0].Score.Direction != metric.Distance {
		t.Error("L2 hits must carry a distance score")
	}
}

func TestSearch_PinnedFirst(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()
	_ = b.Index(ctx, []document.Document{
		doc(t, "A", "", "x", []float32{0, 1}, 1),
		doc(t, "B", "", "x", []float32{0.2, 1}, 1),
		doc(t, "C", "", "x", []float32{1, 0}, 1),
		doc(t, "D", "", "x", []float32{1, 0}, 500),
	})
	f, _ := filter.Parse(map[string]value.Value{"price": value.Map(map[string]value.Value{"$lt": value.Number(100)})})

	hits, err := b.Search(ctx, vectorPlan("", []string{"A", "B", "D", "missing"}, f), 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got := hitIDs(hits); !equalIDs(got, []string{"A", "B", "C"}) {
		t.Fatalf("order = %v", got)
	}
	if !hits[0].Pinned || !hits[1].Pinned || hits[2].Pinned {
		t.Errorf("pinned flags = %v %v %v", hits[0].Pinned, hits[1].Pinned, hits[2].Pinned)
	}
}

func TestDelete_ByFilterThenSearch(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()
	_ = b.Index(ctx, []document.Document{
		doc(t, "a", "", "red", []float32{1, 0}, 0),
		doc(t, "b", "", "red", []float32{1, 0}, 20),
	})
	f, _ := filter.Parse(map[string]value.Value{"price": value.Map(map[string]value.Value{"$gte": value.Number(0)})})

	removed, err := b.Delete(ctx, nil, f)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !equalIDs(removed, []string{"a", "b"}) {
		t.Errorf("removed = %v", removed)
	}
	hits, _ := b.Search(ctx, vectorPlan("red", nil, filter.Expression{}), 10)
	if len(hits) != 0 {
		t.Errorf("hits after delete = %v", hitIDs(hits))
	}
	if n, _ := b.Count(ctx); n != 0 {
		t.Errorf("Count = %d", n)
	}
}

func TestDelete_ByIDIgnoresUnknown(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()
	_ = b.Index(ctx, []document.Document{doc(t, "a", "", "red", nil, 0)})

	removed, err := b.Delete(ctx, []string{"a", "ghost"}, filter.Expression{})
	if err != nil || !equalIDs(removed, []string{"a"}) {
		t.Fatalf("removed = %v err = %v", removed, err)
	}
}

func TestList_Window(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()
	_ = b.Index(ctx, []document.Document{
		doc(t, "c", "", "x", []float32{1, 0}, 1),
		doc(t, "a", "", "x", []float32{1, 0}, 1),
		doc(t, "b", "", "x", []float32{1, 0}, 1),
	})

	tests := []struct {
		offset, limit int
		want          []string
	}{
		{0, 0, []string{"a", "b", "c"}},
		{1, 1, []string{"b"}},
		{2, 10, []string{"c"}},
		{5, 1, nil},
	}
	for _, tc := range tests {
		docs, err := b.List(ctx, tc.offset, tc.limit)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		got := make([]string, len(docs))
		for i, d := range docs {
			got[i] = d.ID()
			if _, ok := d.Embedding("title", "clip"); ok {
				t.Error("List returned embeddings")
			}
		}
		if !equalIDs(got, tc.want) {
			t.Errorf("List(%d, %d) = %v, want %v", tc.offset, tc.limit, got, tc.want)
		}
	}
}

func TestOpen_RestoresFromBadger(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	b, err := Open(Config{Path: dir}, zap.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = b.Index(ctx, []document.Document{
		doc(t, "a", "", "red shoe", []float32{1, 0}, 1),
		doc(t, "b", "", "blue", []float32{0, 1}, 1),
	})
	_, _ = b.Delete(ctx, []string{"b"}, filter.Expression{})
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := b.Ping(ctx); err == nil {
		t.Error("Ping after Close succeeded")
	}

	b, err = Open(Config{Path: dir}, zap.NewNop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer b.Close()

	if n, _ := b.Count(ctx); n != 1 {
		t.Fatalf("Count = %d, want 1", n)
	}
	hits, _ := b.Search(ctx, vectorPlan("shoe", nil, filter.Expression{}), 10)
	if len(hits) != 1 || hits[0].Document.ID() != "a" {
		t.Fatalf("hits = %v", hitIDs(hits))
	}
}
