package hybridex

import (
	"context"

	dombatch "github.com/kailas-cloud/hybridex/internal/domain/batch"
	domdoc "github.com/kailas-cloud/hybridex/internal/domain/document"
	"github.com/kailas-cloud/hybridex/internal/domain/search/match"
	"github.com/kailas-cloud/hybridex/internal/domain/search/request"
	"github.com/kailas-cloud/hybridex/internal/domain/value"
	healthuc "github.com/kailas-cloud/hybridex/internal/usecase/health"
)

type mockIndexUC struct {
	indexFn  func(ctx context.Context, docs []domdoc.Document) ([]dombatch.Result, error)
	updateFn func(ctx context.Context, docs []domdoc.Document) ([]dombatch.Result, error)
	deleteFn func(ctx context.Context, ids []string, f value.Value) (int, error)
}

func (m *mockIndexUC) Index(ctx context.Context, docs []domdoc.Document) ([]dombatch.Result, error) {
	return m.indexFn(ctx, docs)
}

func (m *mockIndexUC) Update(ctx context.Context, docs []domdoc.Document) ([]dombatch.Result, error) {
	return m.updateFn(ctx, docs)
}

func (m *mockIndexUC) Delete(ctx context.Context, ids []string, f value.Value) (int, error) {
	return m.deleteFn(ctx, ids, f)
}

type mockSearchUC struct {
	searchFn func(ctx context.Context, req request.Request) ([]match.Match, error)
}

func (m *mockSearchUC) Search(ctx context.Context, req request.Request) ([]match.Match, error) {
	return m.searchFn(ctx, req)
}

type mockCatalogUC struct {
	listFn  func(offset, limit int, f value.Value) ([]domdoc.Document, error)
	countFn func(offset, limit int, f value.Value) (int, error)
	tags    map[string][]domdoc.TagCount
}

func (m *mockCatalogUC) List(offset, limit int, f value.Value) ([]domdoc.Document, error) {
	return m.listFn(offset, limit, f)
}

func (m *mockCatalogUC) Count(offset, limit int, f value.Value) (int, error) {
	return m.countFn(offset, limit, f)
}

func (m *mockCatalogUC) GetTags() map[string][]domdoc.TagCount { return m.tags }

type mockHealthUC struct {
	report healthuc.Report
}

func (m *mockHealthUC) Check(_ context.Context) healthuc.Report { return m.report }

type mockEmbedder struct {
	embedFn func(ctx context.Context, text string) (EmbeddingResult, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	return m.embedFn(ctx, text)
}
