// Package query implements the engine's query matcher: evaluating a query
// expression (spec.md §4.2) against a single record.
package query

import (
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/cuemby/monarch/internal/record"
	"github.com/rs/zerolog"
)

// Query is a mapping from field path to condition, plus the boolean
// composition keywords "and", "or", "nor" (each mapping to a []Query) and
// the general "expr" predicate (mapping to an expression tree, see expr.go).
type Query map[string]any

// Matcher evaluates Queries against Records. It is stateless beyond its
// logger, so a single Matcher may be shared across collections.
type Matcher struct {
	log zerolog.Logger
}

// NewMatcher builds a Matcher. A zero zerolog.Logger discards output.
func NewMatcher(log zerolog.Logger) *Matcher {
	return &Matcher{log: log}
}

// Match reports whether r satisfies q. An empty query matches every record
// (spec.md §8 boundary behaviour).
func (m *Matcher) Match(r record.Record, q Query) bool {
	for field, cond := range q {
		switch field {
		case "and":
			subs, ok := cond.([]Query)
			if !ok {
				subs = toQueries(cond)
			}
			for _, sub := range subs {
				if !m.Match(r, sub) {
					return false
				}
			}
		case "or":
			subs := toQueries(cond)
			if len(subs) == 0 {
				continue
			}
			any := false
			for _, sub := range subs {
				if m.Match(r, sub) {
					any = true
					break
				}
			}
			if !any {
				return false
			}
		case "nor":
			subs := toQueries(cond)
			for _, sub := range subs {
				if m.Match(r, sub) {
					return false
				}
			}
		case "expr":
			ok, matched := evalBoolExpr(r, cond)
			if !ok {
				m.log.Warn().Msg("expr: could not evaluate expression")
				return false
			}
			if !matched {
				return false
			}
		default:
			val := record.Get(r, field)
			if !m.matchCondition(r, val, cond) {
				return false
			}
		}
	}
	return true
}

func toQueries(v any) []Query {
	switch t := v.(type) {
	case []Query:
		return t
	case []any:
		out := make([]Query, 0, len(t))
		for _, item := range t {
			if q, ok := item.(Query); ok {
				out = append(out, q)
			} else if m, ok := item.(map[string]any); ok {
				out = append(out, Query(m))
			}
		}
		return out
	}
	return nil
}

// matchCondition evaluates a single field's condition: either a literal
// (equality) or an operator map.
func (m *Matcher) matchCondition(r record.Record, val any, cond any) bool {
	opMap, ok := asOperatorMap(cond)
	if !ok {
		return deepEqual(val, cond)
	}
	for op, operand := range opMap {
		if !m.applyOperator(r, val, op, operand) {
			return false
		}
	}
	return true
}

func asOperatorMap(cond any) (map[string]any, bool) {
	switch t := cond.(type) {
	case map[string]any:
		if isOperatorMap(t) {
			return t, true
		}
		return nil, false
	case Query:
		return map[string]any(t), true
	}
	return nil, false
}

var knownOperators = map[string]bool{
	"eq": true, "ne": true, "gt": true, "gte": true, "lt": true, "lte": true,
	"in": true, "nin": true, "exists": true, "type": true, "regex": true,
	"size": true, "all": true, "elemMatch": true, "and": true, "or": true,
	"not": true, "nor": true, "mod": true, "bitsAllSet": true, "bitsAllClear": true,
	"bitsAnySet": true, "bitsAnyClear": true, "text": true, "expr": true,
}

// isOperatorMap reports whether m's keys look like operator names rather
// than a literal nested-record value to compare against.
func isOperatorMap(m map[string]any) bool {
	if len(m) == 0 {
		return false
	}
	for k := range m {
		if !knownOperators[k] {
			return false
		}
	}
	return true
}

func (m *Matcher) applyOperator(r record.Record, val any, op string, operand any) bool {
	switch op {
	case "eq":
		return deepEqual(val, operand)
	case "ne":
		return !deepEqual(val, operand)
	case "gt":
		c := compare(val, operand)
		return c != 2 && c > 0
	case "gte":
		c := compare(val, operand)
		return c != 2 && c >= 0
	case "lt":
		return compare(val, operand) < 0
	case "lte":
		return compare(val, operand) <= 0
	case "in":
		return inList(val, operand)
	case "nin":
		return !inList(val, operand)
	case "exists":
		want, _ := operand.(bool)
		return record.IsUndefined(val) != want
	case "type":
		want, _ := operand.(string)
		return string(record.KindOf(val)) == want
	case "regex":
		return matchRegex(val, operand)
	case "size":
		return matchSize(val, operand)
	case "all":
		return matchAll(val, operand)
	case "elemMatch":
		return m.matchElemMatch(val, operand)
	case "not":
		return !m.matchCondition(r, val, operand)
	case "mod":
		return matchMod(val, operand)
	case "bitsAllSet":
		return bitsTest(val, operand, bitsAllSetMode)
	case "bitsAllClear":
		return bitsTest(val, operand, bitsAllClearMode)
	case "bitsAnySet":
		return bitsTest(val, operand, bitsAnySetMode)
	case "bitsAnyClear":
		return bitsTest(val, operand, bitsAnyClearMode)
	case "text":
		s, _ := val.(string)
		term, _ := operand.(string)
		return term != "" && strings.Contains(strings.ToLower(s), strings.ToLower(term))
	default:
		m.log.Warn().Str("operator", op).Msg("query matcher: unknown operator")
		return false
	}
}

func deepEqual(a, b any) bool {
	return reflect.DeepEqual(normalize(a), normalize(b))
}

// normalize collapses record.Undefined to nil and widens numeric kinds so
// that e.g. int64(1) and float64(1) from differently-decoded JSON compare
// equal the way the matcher's typed comparisons do.
func normalize(v any) any {
	if record.IsUndefined(v) {
		return nil
	}
	if f, ok := record.AsFloat64(v); ok {
		if _, isFloat := v.(float64); !isFloat {
			if _, isFloat32 := v.(float32); !isFloat32 {
				return f
			}
		}
		return f
	}
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = normalize(e)
		}
		return out
	case record.Record:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = normalize(e)
		}
		return out
	}
	return v
}

// compare returns -1/0/1 comparing a to b for numbers, strings, and times.
// Incomparable kinds return a sentinel that is never >=/<= true: 2.
func compare(a, b any) int {
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
		return 2
	}
	if as, aok := a.(string); aok {
		if bs, bok := b.(string); bok {
			return strings.Compare(as, bs)
		}
		return 2
	}
	if at, aok := a.(time.Time); aok {
		if bt, bok := b.(time.Time); bok {
			switch {
			case at.Before(bt):
				return -1
			case at.After(bt):
				return 1
			default:
				return 0
			}
		}
		return 2
	}
	return 2
}

func inList(val any, operand any) bool {
	list, ok := operand.([]any)
	if !ok {
		return false
	}
	for _, item := range list {
		if deepEqual(val, item) {
			return true
		}
	}
	return false
}

func matchRegex(val any, operand any) bool {
	s, ok := val.(string)
	if !ok {
		return false
	}
	pattern, ok := operand.(string)
	if !ok {
		return false
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(s)
}

func matchSize(val any, operand any) bool {
	list, ok := val.([]any)
	if !ok {
		return false
	}
	want, ok := record.AsInt64(operand)
	if !ok {
		return false
	}
	return int64(len(list)) == want
}

func matchAll(val any, operand any) bool {
	list, ok := val.([]any)
	if !ok {
		return false
	}
	want, ok := operand.([]any)
	if !ok {
		return false
	}
	for _, w := range want {
		found := false
		for _, item := range list {
			if deepEqual(item, w) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (m *Matcher) matchElemMatch(val any, operand any) bool {
	list, ok := val.([]any)
	if !ok {
		return false
	}
	cond, ok := asOperatorMap(operand)
	if !ok {
		if q, ok := operand.(Query); ok {
			cond = map[string]any(q)
		} else if mm, ok := operand.(map[string]any); ok {
			cond = mm
		} else {
			return false
		}
	}
	for _, item := range list {
		if rec, ok := item.(map[string]any); ok {
			if m.Match(record.Record(rec), Query(cond)) {
				return true
			}
			continue
		}
		if m.matchCondition(nil, item, Query(cond)) {
			return true
		}
	}
	return false
}

func matchMod(val any, operand any) bool {
	pair, ok := operand.([]any)
	if !ok || len(pair) != 2 {
		return false
	}
	v, ok := record.AsInt64(val)
	if !ok {
		return false
	}
	divisor, ok1 := record.AsInt64(pair[0])
	remainder, ok2 := record.AsInt64(pair[1])
	if !ok1 || !ok2 || divisor == 0 {
		return false
	}
	return v%divisor == remainder
}

type bitsMode int

const (
	bitsAllSetMode bitsMode = iota
	bitsAllClearMode
	bitsAnySetMode
	bitsAnyClearMode
)

func bitsTest(val any, operand any, mode bitsMode) bool {
	v, ok := record.AsInt64(val)
	if !ok {
		return false
	}
	var mask int64
	switch t := operand.(type) {
	case []any:
		for _, pos := range t {
			p, ok := record.AsInt64(pos)
			if !ok {
				return false
			}
			mask |= 1 << uint(p)
		}
	default:
		m, ok := record.AsInt64(operand)
		if !ok {
			return false
		}
		mask = m
	}
	switch mode {
	case bitsAllSetMode:
		return v&mask == mask
	case bitsAllClearMode:
		return v&mask == 0
	case bitsAnySetMode:
		return v&mask != 0
	case bitsAnyClearMode:
		return v&mask != mask
	}
	return false
}
