package search

import (
	"context"
	"testing"

	"github.com/kailas-cloud/hybridex/internal/domain/document"
	"github.com/kailas-cloud/hybridex/internal/domain/metric"
	"github.com/kailas-cloud/hybridex/internal/domain/schema"
	"github.com/kailas-cloud/hybridex/internal/domain/search/match"
	"github.com/kailas-cloud/hybridex/internal/domain/search/plan"
	"github.com/kailas-cloud/hybridex/internal/domain/search/query"
)

type mockBackend struct {
	searchFn func(ctx context.Context, p plan.Plan, topK int) ([]match.Hit, error)
	lastPlan plan.Plan
	lastTopK int
}

func (m *mockBackend) Search(ctx context.Context, p plan.Plan, topK int) ([]match.Hit, error) {
	m.lastPlan = p
	m.lastTopK = topK
	if m.searchFn == nil {
		return nil, nil
	}
	return m.searchFn(ctx, p, topK)
}

type mockCuration struct {
	pinnedFn func(ctx context.Context, text string) ([]string, error)
}

func (m *mockCuration) Pinned(ctx context.Context, text string) ([]string, error) {
	return m.pinnedFn(ctx, text)
}

type mockEncoder struct {
	encodeFn func(ctx context.Context, q query.Query) (query.Query, error)
}

func (m *mockEncoder) Encode(ctx context.Context, q query.Query) (query.Query, error) {
	return m.encodeFn(ctx, q)
}

// testSchema indexes title (text) under clip and sbert, and image (image) under clip.
func testSchema(t *testing.T, m metric.Metric) schema.Schema {
	t.Helper()
	clip, err := schema.NewEncoder("clip", 2, []schema.IndexedField{
		{Name: "title", Modality: "text"},
		{Name: "image", Modality: "image"},
	})
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	sbert, err := schema.NewEncoder("sbert", 3, []schema.IndexedField{{Name: "title", Modality: "text"}})
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	s, err := schema.New(m, []schema.Encoder{clip, sbert}, nil)
	if err != nil {
		t.Fatalf("schema.New: %v", err)
	}
	return s
}

func qfield(t *testing.T, name, modality, text string, embs map[string][]float32) query.Field {
	t.Helper()
	f, err := query.NewField(name, modality, text, embs)
	if err != nil {
		t.Fatalf("query.NewField: %v", err)
	}
	return f
}

func mustQuery(t *testing.T, flat bool, modality string, fields ...query.Field) query.Query {
	t.Helper()
	q, err := query.New(fields, flat, modality)
	if err != nil {
		t.Fatalf("query.New: %v", err)
	}
	return q
}

// chunk builds a document whose title carries the given clip vector.
func chunk(t *testing.T, id, parent string, clip []float32) document.Document {
	t.Helper()
	var embs map[string][]float32
	if clip != nil {
		embs = map[string][]float32{"clip": clip}
	}
	f, err := document.NewField("title", "text of "+id, "", nil, embs)
	if err != nil {
		t.Fatalf("document.NewField: %v", err)
	}
	d, err := document.New(id, parent, []document.Field{f}, nil)
	if err != nil {
		t.Fatalf("document.New: %v", err)
	}
	return d
}

func hit(d document.Document, score float64, dir metric.Direction) match.Hit {
	return match.Hit{Document: d, Score: metric.Score{Value: score, Direction: dir}}
}

func ids(ms []match.Match) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.ID
	}
	return out
}
