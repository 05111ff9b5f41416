// Package metric defines vector comparison metrics and the direction of their scores.
package metric

import (
	"fmt"
	"math"
	"strings"
)

// Direction says how a score should be ordered.
type Direction uint8

const (
	// Similarity scores rank higher-is-better.
	Similarity Direction = iota
	// Distance scores rank lower-is-better.
	Distance
)

func (d Direction) String() string {
	if d == Distance {
		return "distance"
	}
	return "similarity"
}

// Metric is a vector comparison function.
type Metric string

// Supported metrics.
const (
	Cosine Metric = "cosine"
	Dot    Metric = "dot"
	L2     Metric = "l2"
)

// Parse validates a metric name (case-insensitive).
func Parse(s string) (Metric, error) {
	switch m := Metric(strings.ToLower(strings.TrimSpace(s))); m {
	case Cosine, Dot, L2:
		return m, nil
	case "":
		return Cosine, nil
	default:
		return "", fmt.Errorf("unknown metric %q (valid: cosine, dot, l2)", s)
	}
}

// Direction returns the score direction for the metric.
func (m Metric) Direction() Direction {
	if m == L2 {
		return Distance
	}
	return Similarity
}

// Compare computes the metric between two vectors of equal length.
func (m Metric) Compare(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector length mismatch: %d vs %d", len(a), len(b))
	}
	switch m {
	case L2:
		return l2(a, b), nil
	case Dot:
		return dot(a, b), nil
	default:
		return cosine(a, b), nil
	}
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func cosine(a, b []float32) float64 {
	var ab, aa, bb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		ab += x * y
		aa += x * x
		bb += y * y
	}
	if aa == 0 || bb == 0 {
		return 0
	}
	return ab / (math.Sqrt(aa) * math.Sqrt(bb))
}

func l2(a, b []float32) float64 {
	var s float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		s += d * d
	}
	return math.Sqrt(s)
}

// Score is a value tagged with the direction it must be ranked in.
type Score struct {
	Value     float64
	Direction Direction
}

// Better reports whether s ranks strictly ahead of o.
func (s Score) Better(o Score) bool {
	if s.Direction == Distance {
		return s.Value < o.Value
	}
	return s.Value > o.Value
}
