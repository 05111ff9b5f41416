package filter

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kailas-cloud/hybridex/internal/domain"
	"github.com/kailas-cloud/hybridex/internal/domain/value"
)

// Operator is a comparison accepted in the dictionary filter form.
type Operator string

// Supported operators. A leading "$" is stripped before lookup.
const (
	OpEq  Operator = "eq"
	OpLt  Operator = "lt"
	OpLte Operator = "lte"
	OpGt  Operator = "gt"
	OpGte Operator = "gte"
)

// ParseOperator normalizes and validates an operator name.
func ParseOperator(raw string) (Operator, error) {
	op := Operator(strings.TrimPrefix(raw, "$"))
	switch op {
	case OpEq, OpLt, OpLte, OpGt, OpGte:
		return op, nil
	default:
		return "", fmt.Errorf("%w: %q", domain.ErrUnsupportedOperator, raw)
	}
}

// Parse translates the dictionary form into an Expression where every clause is required:
//
//	{"color": "red", "price": {"$gte": 10, "$lt": 100}}
//
// A scalar operand is an equality. Range operators on one key collapse into one range.
func Parse(m map[string]value.Value) (Expression, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var must []Condition
	for _, key := range keys {
		conds, err := parseKey(key, m[key])
		if err != nil {
			return Expression{}, err
		}
		must = append(must, conds...)
	}

	expr, err := NewExpression(must, nil, nil)
	if err != nil {
		return Expression{}, fmt.Errorf("%w: %w", domain.ErrInvalidQuery, err)
	}
	return expr, nil
}

// ParseValue parses a filter carried as a tagged Value. Null means no filter.
func ParseValue(v value.Value) (Expression, error) {
	if v.IsNull() {
		return Expression{}, nil
	}
	m, ok := v.AsMap()
	if !ok {
		return Expression{}, fmt.Errorf("%w: filter must be an object, got %s", domain.ErrInvalidQuery, v.Kind())
	}
	return Parse(m)
}

func parseKey(key string, operand value.Value) ([]Condition, error) {
	if key == "" || strings.HasPrefix(key, "$") {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedOperator, key)
	}

	ops, isMap := operand.AsMap()
	if !isMap {
		c, err := equality(key, operand)
		if err != nil {
			return nil, err
		}
		return []Condition{c}, nil
	}
	if len(ops) == 0 {
		return nil, fmt.Errorf("%w: empty operator set for %q", domain.ErrInvalidQuery, key)
	}

	var (
		conds             []Condition
		gt, gte, lt, lte  *float64
		hasRangeOperators bool
	)
	for _, raw := range operand.Keys() {
		op, err := ParseOperator(raw)
		if err != nil {
			return nil, err
		}
		arg := ops[raw]
		if op == OpEq {
			c, err := equality(key, arg)
			if err != nil {
				return nil, err
			}
			conds = append(conds, c)
			continue
		}
		n, ok := arg.AsNumber()
		if !ok {
			return nil, fmt.Errorf("%w: %s on %q needs a number, got %s", domain.ErrInvalidQuery, raw, key, arg.Kind())
		}
		hasRangeOperators = true
		switch op {
		case OpGt:
			gt = &n
		case OpGte:
			gte = &n
		case OpLt:
			lt = &n
		case OpLte:
			lte = &n
		}
	}

	if hasRangeOperators {
		r, err := NewRangeFilter(gt, gte, lt, lte)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %w", domain.ErrInvalidQuery, key, err)
		}
		c, err := NewRange(key, r)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrInvalidQuery, err)
		}
		conds = append(conds, c)
	}
	return conds, nil
}

// equality maps eq onto the two condition kinds: numbers become a closed range,
// strings and bools an exact match.
func equality(key string, v value.Value) (Condition, error) {
	if n, ok := v.AsNumber(); ok {
		r, _ := NewRangeFilter(nil, &n, nil, &n)
		return NewRange(key, r)
	}
	text, ok := v.Text()
	if !ok || text == "" {
		return Condition{}, fmt.Errorf("%w: eq on %q needs a non-empty scalar, got %s",
			domain.ErrInvalidQuery, key, v.Kind())
	}
	return NewMatch(key, text)
}
