// Package filter models hard filters over document tags: exact matches and numeric ranges
// grouped with must / should / must_not semantics.
package filter

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// MaxConditionsPerGroup is the maximum number of conditions per filter group.
const MaxConditionsPerGroup = 32

// Expression is a structured filter with must/should/must_not boolean semantics.
type Expression struct {
	must    []Condition
	should  []Condition
	mustNot []Condition
}

// NewExpression validates and creates a filter Expression.
func NewExpression(must, should, mustNot []Condition) (Expression, error) {
	for group, conds := range map[string][]Condition{"must": must, "should": should, "must_not": mustNot} {
		if len(conds) > MaxConditionsPerGroup {
			return Expression{}, fmt.Errorf("too many %s conditions (max %d)", group, MaxConditionsPerGroup)
		}
	}
	return Expression{must: must, should: should, mustNot: mustNot}, nil
}

// Must returns the must conditions.
func (e Expression) Must() []Condition { return e.must }

// Should returns the should conditions.
func (e Expression) Should() []Condition { return e.should }

// MustNot returns the must-not conditions.
func (e Expression) MustNot() []Condition { return e.mustNot }

// IsEmpty reports whether the expression has no conditions.
func (e Expression) IsEmpty() bool {
	return len(e.must) == 0 && len(e.should) == 0 && len(e.mustNot) == 0
}

// And returns an expression requiring both e and o. Should groups cannot be merged,
// so o's should group is kept only when e has none.
func (e Expression) And(o Expression) Expression {
	out := Expression{
		must:    append(append([]Condition{}, e.must...), o.must...),
		mustNot: append(append([]Condition{}, e.mustNot...), o.mustNot...),
		should:  e.should,
	}
	if len(out.should) == 0 {
		out.should = o.should
	}
	return out
}

// Keys returns every tag key the expression references, sorted and deduplicated.
func (e Expression) Keys() []string {
	set := make(map[string]struct{})
	for _, group := range [][]Condition{e.must, e.should, e.mustNot} {
		for _, c := range group {
			set[c.key] = struct{}{}
		}
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (e Expression) String() string {
	var parts []string
	for _, c := range e.must {
		parts = append(parts, c.String())
	}
	if len(e.should) > 0 {
		sub := make([]string, len(e.should))
		for i, c := range e.should {
			sub[i] = c.String()
		}
		parts = append(parts, "("+strings.Join(sub, " OR ")+")")
	}
	for _, c := range e.mustNot {
		parts = append(parts, "NOT "+c.String())
	}
	return strings.Join(parts, " AND ")
}

// Condition is a single filter clause: either an exact match or a numeric range.
type Condition struct {
	key       string
	match     string
	rangeExpr *Range
}

// NewMatch creates an exact match condition. Booleans and numbers match by canonical text.
func NewMatch(key, match string) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	if match == "" {
		return Condition{}, fmt.Errorf("match value is required for key %q", key)
	}
	return Condition{key: key, match: match}, nil
}

// NewRange creates a numeric range condition.
func NewRange(key string, r Range) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	return Condition{key: key, rangeExpr: &r}, nil
}

// Key returns the tag key.
func (c Condition) Key() string { return c.key }

// Match returns the exact match value.
func (c Condition) Match() string { return c.match }

// Range returns the numeric range expression.
func (c Condition) Range() *Range { return c.rangeExpr }

// IsMatch reports whether this is a match condition.
func (c Condition) IsMatch() bool { return c.match != "" }

// IsRange reports whether this is a range condition.
func (c Condition) IsRange() bool { return c.rangeExpr != nil }

func (c Condition) String() string {
	if c.IsRange() {
		return c.key + " in " + c.rangeExpr.String()
	}
	return c.key + " = " + strconv.Quote(c.match)
}

// Range is a numeric range with gt/gte/lt/lte boundaries.
type Range struct {
	gt  *float64
	gte *float64
	lt  *float64
	lte *float64
}

// NewRangeFilter validates and creates a Range.
// At least one boundary required. gt/gte and lt/lte are mutually exclusive.
func NewRangeFilter(gt, gte, lt, lte *float64) (Range, error) {
	if gt == nil && gte == nil && lt == nil && lte == nil {
		return Range{}, fmt.Errorf("at least one range boundary is required")
	}
	if gt != nil && gte != nil {
		return Range{}, fmt.Errorf("cannot specify both gt and gte")
	}
	if lt != nil && lte != nil {
		return Range{}, fmt.Errorf("cannot specify both lt and lte")
	}
	return Range{gt: gt, gte: gte, lt: lt, lte: lte}, nil
}

// GT returns the lower exclusive bound.
func (r Range) GT() *float64 { return r.gt }

// GTE returns the lower inclusive bound.
func (r Range) GTE() *float64 { return r.gte }

// LT returns the upper exclusive bound.
func (r Range) LT() *float64 { return r.lt }

// LTE returns the upper inclusive bound.
func (r Range) LTE() *float64 { return r.lte }

// Contains reports whether x lies inside the range.
func (r Range) Contains(x float64) bool {
	switch {
	case r.gt != nil && !(x > *r.gt):
		return false
	case r.gte != nil && !(x >= *r.gte):
		return false
	case r.lt != nil && !(x < *r.lt):
		return false
	case r.lte != nil && !(x <= *r.lte):
		return false
	}
	return true
}

func (r Range) String() string {
	lo, hi := "(-inf", "+inf)"
	if r.gt != nil {
		lo = "(" + strconv.FormatFloat(*r.gt, 'g', -1, 64)
	} else if r.gte != nil {
		lo = "[" + strconv.FormatFloat(*r.gte, 'g', -1, 64)
	}
	if r.lt != nil {
		hi = strconv.FormatFloat(*r.lt, 'g', -1, 64) + ")"
	} else if r.lte != nil {
		hi = strconv.FormatFloat(*r.lte, 'g', -1, 64) + "]"
	}
	return lo + ", " + hi
}
