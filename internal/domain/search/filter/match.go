package filter

import (
	"github.com/kailas-cloud/hybridex/internal/domain/schema/field"
	"github.com/kailas-cloud/hybridex/internal/domain/value"
)

// Target is what an expression is evaluated against in process.
type Target struct {
	ID       string
	ParentID string
	Tags     map[string]value.Value
}

// Matches evaluates the expression against a document.
func (e Expression) Matches(t Target) bool {
	for _, c := range e.must {
		if !c.matches(t) {
			return false
		}
	}
	for _, c := range e.mustNot {
		if c.matches(t) {
			return false
		}
	}
	if len(e.should) == 0 {
		return true
	}
	for _, c := range e.should {
		if c.matches(t) {
			return true
		}
	}
	return false
}

func (c Condition) matches(t Target) bool {
	switch c.key {
	case field.KeyID:
		return c.IsMatch() && c.match == t.ID
	case field.KeyParentID:
		return c.IsMatch() && c.match == t.ParentID
	}

	v, ok := t.Tags[c.key]
	if !ok {
		return false
	}
	if items, isList := v.AsList(); isList {
		for _, item := range items {
			if c.matchesScalar(item) {
				return true
			}
		}
		return false
	}
	return c.matchesScalar(v)
}

func (c Condition) matchesScalar(v value.Value) bool {
	if c.IsRange() {
		n, ok := v.AsNumber()
		return ok && c.rangeExpr.Contains(n)
	}
	text, ok := v.Text()
	return ok && text == c.match
}
