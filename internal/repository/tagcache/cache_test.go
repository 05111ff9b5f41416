package tagcache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/kailas-cloud/hybridex/internal/domain/document"
	"github.com/kailas-cloud/hybridex/internal/domain/search/filter"
	"github.com/kailas-cloud/hybridex/internal/domain/value"
)

type mockLister struct {
	docs    []document.Document
	err     error
	calls   int
	lastLim int
}

func (m *mockLister) List(_ context.Context, offset, limit int) ([]document.Document, error) {
	m.calls++
	m.lastLim = limit
	if m.err != nil {
		return nil, m.err
	}
	if offset >= len(m.docs) {
		return nil, nil
	}
	end := min(len(m.docs), offset+limit)
	return m.docs[offset:end], nil
}

func tagged(id string, price float64, colors ...string) document.Document {
	items := make([]value.Value, len(colors))
	for i, c := range colors {
		items[i] = value.String(c)
	}
	return document.Reconstruct(id, "", nil, map[string]value.Value{
		"price":             value.Number(price),
		"color":             value.List(items...),
		document.TagHasText: value.Bool(true),
		"meta":              value.Map(map[string]value.Value{"a": value.Number(1)}),
	})
}

func priceAtLeast(t *testing.T, n float64) filter.Expression {
	t.Helper()
	f, err := filter.Parse(map[string]value.Value{
		"price": value.Map(map[string]value.Value{"$gte": value.Number(n)}),
	})
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func TestRebuild_Pages(t *testing.T) {
	var docs []document.Document
	for i := range 5 {
		docs = append(docs, tagged(fmt.Sprintf("d%d", i), float64(i)))
	}
	src := &mockLister{docs: docs}
	c := New()
	if err := c.Rebuild(context.Background(), src, 2); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if c.Len() != 5 {
		t.Errorf("Len = %d", c.Len())
	}
	if src.calls != 3 {
		t.Errorf("calls = %d, want 3", src.calls)
	}
}

func TestRebuild_ErrorKeepsOldState(t *testing.T) {
	c := New()
	c.Put([]document.Document{tagged("a", 1)})
	if err := c.Rebuild(context.Background(), &mockLister{err: errors.New("down")}, 10); err == nil {
		t.Fatal("expected error")
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, state must survive a failed rebuild", c.Len())
	}
}

func TestPutRemove_KeepsIDOrder(t *testing.T) {
	c := New()
	c.Put([]document.Document{tagged("c", 3), tagged("a", 1), tagged("b", 2)})
	c.Put([]document.Document{tagged("a", 10)})
	c.Remove([]string{"b", "missing"})

	got := c.List(0, 0, filter.Expression{})
	if len(got) != 2 || got[0].ID() != "a" || got[1].ID() != "c" {
		t.Fatalf("List = %v", got)
	}
	if p, _ := got[0].Tags()["price"].AsNumber(); p != 10 {
		t.Errorf("Put must replace: price = %v", p)
	}
	if _, ok := got[0].Tags()[document.TagHasText]; ok {
		t.Error("List leaked a bookkeeping tag")
	}
}

func TestList_WindowAndFilter(t *testing.T) {
	c := New()
	for i := range 6 {
		c.Put([]document.Document{tagged(fmt.Sprintf("d%d", i), float64(i))})
	}
	f := priceAtLeast(t, 2)

	got := c.List(1, 2, f)
	if len(got) != 2 || got[0].ID() != "d3" || got[1].ID() != "d4" {
		t.Fatalf("List = %v", got)
	}
}

func TestCount_Window(t *testing.T) {
	c := New()
	for i := range 10 {
		c.Put([]document.Document{tagged(fmt.Sprintf("d%02d", i), float64(i))})
	}
	tests := []struct {
		name          string
		offset, limit int
		filter        filter.Expression
		want          int
	}{
		{"all", 0, 0, filter.Expression{}, 10},
		{"window inside", 2, 3, filter.Expression{}, 3},
		{"window past end", 8, 5, filter.Expression{}, 2},
		{"offset past end", 20, 5, filter.Expression{}, 0},
		{"filtered", 0, 0, priceAtLeast(t, 7), 3},
		{"filtered window", 1, 10, priceAtLeast(t, 7), 2},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := c.Count(tc.offset, tc.limit, tc.filter); got != tc.want {
				t.Errorf("Count = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestDeleteByFilterThenCount(t *testing.T) {
	c := New()
	c.Put([]document.Document{tagged("a", 0), tagged("b", 5), tagged("c", 50)})
	var removed []string
	for _, d := range c.List(0, 0, priceAtLeast(t, 0)) {
		removed = append(removed, d.ID())
	}
	c.Remove(removed)
	if n := c.Count(0, 0, filter.Expression{}); n != 0 {
		t.Errorf("Count = %d, want 0", n)
	}
}

func TestTopValues(t *testing.T) {
	c := New()
	c.Put([]document.Document{
		tagged("a", 1, "red", "blue"),
		tagged("b", 1, "red"),
		tagged("c", 2, "green", "red"),
	})
	top := c.TopValues(2)
	if _, ok := top[document.TagHasText]; ok {
		t.Error("internal tag listed")
	}
	if _, ok := top["meta"]; ok {
		t.Error("map tag listed")
	}
	colors := top["color"]
	if len(colors) != 2 || colors[0] != (document.TagCount{Value: "red", Count: 3}) || colors[1].Value != "blue" {
		t.Errorf("color = %v", colors)
	}
	if prices := top["price"]; prices[0] != (document.TagCount{Value: "1", Count: 2}) {
		t.Errorf("price = %v", prices)
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.Put([]document.Document{tagged(fmt.Sprintf("d%d", i), float64(i))})
		}()
		go func() {
			defer wg.Done()
			_ = c.Count(0, 0, filter.Expression{})
			_ = c.TopValues(3)
		}()
	}
	wg.Wait()
	if c.Len() != 8 {
		t.Errorf("Len = %d", c.Len())
	}
}
