package query

import (
	"strings"

	"github.com/cuemby/monarch/internal/record"
)

// evalBoolExpr evaluates the "expr" operator's general expression subset
// (spec.md Glossary: eq, ne, gt, gte, lt, lte, add, subtract, multiply,
// divide, mod, cond plus $field references) against r. The first return
// value reports whether evaluation succeeded (a well-formed expression);
// the second is the resulting boolean.
func evalBoolExpr(r record.Record, expr any) (ok bool, result bool) {
	v, ok := evalExpr(r, expr)
	if !ok {
		return false, false
	}
	b, isBool := v.(bool)
	if isBool {
		return true, b
	}
	// Non-boolean results are truthy per common aggregation-expression
	// convention: nil/zero/empty-string are false, everything else true.
	return true, truthy(v)
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	default:
		if f, ok := record.AsFloat64(v); ok {
			return f != 0
		}
		return true
	}
}

// evalExpr evaluates a single expression node. A node is either:
//   - a "$field.path" string, resolved against r
//   - a literal (string/number/bool/nil)
//   - a map[string]any with exactly one key naming an operator, whose value
//     is the (positional) list of operand expressions
func evalExpr(r record.Record, node any) (any, bool) {
	switch t := node.(type) {
	case string:
		if strings.HasPrefix(t, "$") {
			v := record.Get(r, strings.TrimPrefix(t, "$"))
			if record.IsUndefined(v) {
				return nil, true
			}
			return v, true
		}
		return t, true
	case map[string]any:
		if len(t) != 1 {
			return nil, false
		}
		for op, operand := range t {
			return evalOp(r, op, operand)
		}
	case Query:
		return evalExpr(r, map[string]any(t))
	}
	return node, true
}

func evalOp(r record.Record, op string, operand any) (any, bool) {
	args, _ := operand.([]any)

	switch op {
	case "eq", "ne", "gt", "gte", "lt", "lte":
		if len(args) != 2 {
			return nil, false
		}
		a, ok1 := evalExpr(r, args[0])
		b, ok2 := evalExpr(r, args[1])
		if !ok1 || !ok2 {
			return nil, false
		}
		c := compareExprValues(a, b)
		switch op {
		case "eq":
			return c == 0, true
		case "ne":
			return c != 0, true
		case "gt":
			return c > 0, true
		case "gte":
			return c >= 0, true
		case "lt":
			return c < 0, true
		case "lte":
			return c <= 0, true
		}
	case "add", "subtract", "multiply", "divide", "mod":
		if len(args) != 2 {
			return nil, false
		}
		a, ok1 := evalExpr(r, args[0])
		b, ok2 := evalExpr(r, args[1])
		if !ok1 || !ok2 {
			return nil, false
		}
		af, ok1 := record.AsFloat64(a)
		bf, ok2 := record.AsFloat64(b)
		if !ok1 || !ok2 {
			return nil, false
		}
		switch op {
		case "add":
			return af + bf, true
		case "subtract":
			return af - bf, true
		case "multiply":
			return af * bf, true
		case "divide":
			if bf == 0 {
				return nil, false
			}
			return af / bf, true
		case "mod":
			if bf == 0 {
				return nil, false
			}
			return float64(int64(af) % int64(bf)), true
		}
	case "cond":
		if len(args) != 3 {
			return nil, false
		}
		condOK, condVal := evalBoolExpr(r, args[0])
		if !condOK {
			return nil, false
		}
		if condVal {
			return evalExpr(r, args[1])
		}
		return evalExpr(r, args[2])
	}
	return nil, false
}

// compareExprValues compares two dynamic expression values, treating any
// pair of numeric kinds as comparable regardless of exact Go type.
func compareExprValues(a, b any) int {
	if af, aok := record.AsFloat64(a); aok {
		if bf, bok := record.AsFloat64(b); bok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
	}
	if as, aok := a.(string); aok {
		if bs, bok := b.(string); bok {
			return strings.Compare(as, bs)
		}
	}
	return 2
}
