// Package condition evaluates declarative field/operator/value predicates
// against a flat context map. All trigger and step gating combines
// conditions with AND semantics.
package condition

import (
	"fmt"
	"strings"

	"github.com/nself-org/flowcore/pkg/models"
)

// EvaluateAll reports whether every condition holds. An empty list holds
// trivially.
func EvaluateAll(conds []models.Condition, ctx map[string]interface{}) bool {
	for _, c := range conds {
		if !Evaluate(c, ctx) {
			return false
		}
	}
	return true
}

// Evaluate checks one condition. Unknown operators never match.
func Evaluate(c models.Condition, ctx map[string]interface{}) bool {
	val, found := Lookup(ctx, c.Field)
	switch c.Operator {
	case models.OpExists:
		return found
	case models.OpNotExists:
		return !found
	}
	if !found {
		return false
	}
	switch c.Operator {
	case models.OpEquals:
		return equal(val, c.Value)
	case models.OpNotEquals:
		return !equal(val, c.Value)
	case models.OpContains:
		return contains(val, c.Value)
	case models.OpNotContains:
		return !contains(val, c.Value)
	case models.OpGreaterThan:
		a, b, ok := numbers(val, c.Value)
		return ok && a > b
	case models.OpLessThan:
		a, b, ok := numbers(val, c.Value)
		return ok && a < b
	case models.OpGreaterThanOrEquals:
		a, b, ok := numbers(val, c.Value)
		return ok && a >= b
	case models.OpLessThanOrEquals:
		a, b, ok := numbers(val, c.Value)
		return ok && a <= b
	case models.OpIn:
		return in(val, c.Value)
	}
	return false
}

// Lookup resolves a dot-path ("user.role") through nested string-keyed maps.
func Lookup(ctx map[string]interface{}, path string) (interface{}, bool) {
	parts := strings.Split(path, ".")
	var current interface{} = ctx
	for _, part := range parts {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// equal compares numerically when both sides are numbers, otherwise by
// string representation, so JSON-decoded float64s compare against ints.
func equal(a, b interface{}) bool {
	if fa, fb, ok := numbers(a, b); ok {
		return fa == fb
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func contains(val, needle interface{}) bool {
	switch v := val.(type) {
	case string:
		return strings.Contains(v, fmt.Sprintf("%v", needle))
	case []interface{}:
		for _, item := range v {
			if equal(item, needle) {
				return true
			}
		}
	case []string:
		for _, item := range v {
			if equal(item, needle) {
				return true
			}
		}
	}
	return false
}

// in holds when the condition value is a list containing the field value.
func in(val, list interface{}) bool {
	return contains(list, val)
}

func numbers(a, b interface{}) (float64, float64, bool) {
	fa, ok1 := toFloat(a)
	fb, ok2 := toFloat(b)
	return fa, fb, ok1 && ok2
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
