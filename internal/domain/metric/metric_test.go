package metric

import (
	"math"
	"testing"
)

func TestCompare(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}
	c := []float32{2, 0}

	tests := []struct {
		name string
		m    Metric
		x, y []float32
		want float64
	}{
		{"cosine orthogonal", Cosine, a, b, 0},
		{"cosine parallel", Cosine, a, c, 1},
		{"dot", Dot, a, c, 2},
		{"l2", L2, a, b, math.Sqrt2},
		{"l2 same", L2, a, a, 0},
	}
	for _, tc := range tests {
		got, err := tc.m.Compare(tc.x, tc.y)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestCompare_LengthMismatch(t *testing.T) {
	if _, err := Cosine.Compare([]float32{1}, []float32{1, 2}); err == nil {
		t.Fatal("expected error")
	}
}

func TestCompare_ZeroVector(t *testing.T) {
	got, err := Cosine.Compare([]float32{0, 0}, []float32{1, 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 0 {
		t.Errorf("got %v, want 0", got)
	}
}

func TestParse(t *testing.T) {
	if m, err := Parse("COSINE"); err != nil || m != Cosine {
		t.Errorf("Parse(COSINE) = %v, %v", m, err)
	}
	if m, err := Parse(""); err != nil || m != Cosine {
		t.Errorf("Parse(\"\") = %v, %v", m, err)
	}
	if _, err := Parse("hamming"); err == nil {
		t.Error("expected error for unknown metric")
	}
}

func TestScoreBetter(t *testing.T) {
	if !(Score{Value: 0.4, Direction: Distance}).Better(Score{Value: 0.9, Direction: Distance}) {
		t.Error("lower distance must rank first")
	}
	if !(Score{Value: 0.9, Direction: Similarity}).Better(Score{Value: 0.4, Direction: Similarity}) {
		t.Error("higher similarity must rank first")
	}
	if (Score{Value: 1}).Better(Score{Value: 1}) {
		t.Error("equal scores are not strictly better")
	}
	if L2.Direction() != Distance || Cosine.Direction() != Similarity || Dot.Direction() != Similarity {
		t.Error("unexpected metric direction")
	}
}
