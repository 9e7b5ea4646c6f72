package planner

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/cuemby/monarch/internal/monerr"
	"github.com/cuemby/monarch/internal/query"
	"github.com/cuemby/monarch/internal/record"
)

// Stage is one step of an aggregation pipeline (spec.md §4.7).
type Stage struct {
	Op   string // match, group, sort, limit, skip, project, unwind, addFields, replaceRoot
	Spec any
}

// resolveExpr evaluates an aggregation expression against r. A string
// beginning with "$" is a field reference; a single-key map whose key
// begins with "$" is an operator expression; anything else is a literal
// (spec.md §4.7 "expressions beginning with $ are treated as field
// references; nested expression operators follow the list in §4.2").
func resolveExpr(r record.Record, expr any) any {
	switch t := expr.(type) {
	case string:
		if strings.HasPrefix(t, "$") {
			v := record.Get(r, strings.TrimPrefix(t, "$"))
			if record.IsUndefined(v) {
				return nil
			}
			return v
		}
		return t
	case map[string]any:
		for op, operand := range t {
			if strings.HasPrefix(op, "$") && len(t) == 1 {
				return applyExprOp(r, strings.TrimPrefix(op, "$"), operand)
			}
		}
		out := make(map[string]any, len(t))
		for k, v := range t {
			out[k] = resolveExpr(r, v)
		}
		return out
	default:
		return expr
	}
}

func applyExprOp(r record.Record, op string, operand any) any {
	args, isList := operand.([]any)
	arg := func(i int) any {
		if !isList || i >= len(args) {
			return nil
		}
		return resolveExpr(r, args[i])
	}
	single := resolveExpr(r, operand)

	switch op {
	case "add", "subtract", "multiply", "divide", "mod":
		a, aok := record.AsFloat64(arg(0))
		b, bok := record.AsFloat64(arg(1))
		if !aok || !bok {
			return nil
		}
		switch op {
		case "add":
			return a + b
		case "subtract":
			return a - b
		case "multiply":
			return a * b
		case "divide":
			if b == 0 {
				return nil
			}
			return a / b
		case "mod":
			if b == 0 {
				return nil
			}
			ai, bi := int64(a), int64(b)
			return float64(ai % bi)
		}
	case "concat":
		var sb strings.Builder
		for i := 0; isList && i < len(args); i++ {
			s, _ := resolveExpr(r, args[i]).(string)
			sb.WriteString(s)
		}
		return sb.String()
	default:
		return single
	}
	return nil
}

// Execute runs records through an aggregation pipeline, lazily in the
// sense that limit short-circuits the remaining stage work on the result
// slice (spec.md §4.7 "limit short-circuits evaluation; sort is stable").
func Execute(records []record.Record, stages []Stage, matcher *query.Matcher) ([]record.Record, error) {
	cur := records
	for _, stage := range stages {
		var err error
		cur, err = runStage(cur, stage, matcher)
		if err != nil {
			return nil, err
		}
	}
	return cur, nil
}

func runStage(records []record.Record, stage Stage, matcher *query.Matcher) ([]record.Record, error) {
	switch stage.Op {
	case "match":
		q, ok := stage.Spec.(query.Query)
		if !ok {
			if m, ok := stage.Spec.(map[string]any); ok {
				q = query.Query(m)
			}
		}
		out := make([]record.Record, 0, len(records))
		for _, r := range records {
			if matcher.Match(r, q) {
				out = append(out, r)
			}
		}
		return out, nil
	case "group":
		spec, ok := stage.Spec.(map[string]any)
		if !ok {
			return nil, monerr.Validation("group stage requires a field map")
		}
		return runGroup(records, spec)
	case "sort":
		spec, ok := stage.Spec.(map[string]int)
		if !ok {
			return nil, monerr.Validation("sort stage requires a field->direction map")
		}
		return runSort(records, spec), nil
	case "limit":
		n, _ := stage.Spec.(int)
		if n >= 0 && n < len(records) {
			return records[:n], nil
		}
		return records, nil
	case "skip":
		n, _ := stage.Spec.(int)
		if n >= len(records) {
			return nil, nil
		}
		if n > 0 {
			return records[n:], nil
		}
		return records, nil
	case "project":
		spec, ok := stage.Spec.(map[string]any)
		if !ok {
			return nil, monerr.Validation("project stage requires a field map")
		}
		return runProject(records, spec), nil
	case "addFields":
		spec, ok := stage.Spec.(map[string]any)
		if !ok {
			return nil, monerr.Validation("addFields stage requires a field map")
		}
		return runAddFields(records, spec), nil
	case "unwind":
		return runUnwind(records, stage.Spec)
	case "replaceRoot":
		return runReplaceRoot(records, stage.Spec), nil
	default:
		return nil, monerr.Validation("unknown aggregation stage %q", stage.Op)
	}
}

func runSort(records []record.Record, spec map[string]int) []record.Record {
	out := append([]record.Record(nil), records...)
	fields := make([]string, 0, len(spec))
	for f := range spec {
		fields = append(fields, f)
	}
	sort.Strings(fields) // deterministic tie-break across equal keys
	sort.SliceStable(out, func(i, j int) bool {
		for _, f := range fields {
			vi := record.Get(out[i], f)
			vj := record.Get(out[j], f)
			c := compareAny(vi, vj)
			if c == 0 {
				continue
			}
			if spec[f] < 0 {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	return out
}

func compareAny(a, b any) int {
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
	return 0
}

func runProject(records []record.Record, spec map[string]any) []record.Record {
	out := make([]record.Record, len(records))
	for i, r := range records {
		projected := make(record.Record, len(spec)+1)
		if id := r.ID(); id != "" {
			projected[record.IDField] = id
		}
		for field, expr := range spec {
			projected[field] = resolveExpr(r, expr)
		}
		out[i] = projected
	}
	return out
}

func runAddFields(records []record.Record, spec map[string]any) []record.Record {
	out := make([]record.Record, len(records))
	for i, r := range records {
		clone := record.CloneRecord(r)
		for field, expr := range spec {
			_ = record.Set(clone, field, resolveExpr(r, expr))
		}
		out[i] = clone
	}
	return out
}

type unwindSpec struct {
	path                       string
	preserveNullAndEmptyArrays bool
}

func parseUnwindSpec(spec any) unwindSpec {
	switch t := spec.(type) {
	case string:
		return unwindSpec{path: strings.TrimPrefix(t, "$")}
	case map[string]any:
		path, _ := t["path"].(string)
		preserve, _ := t["preserveNullAndEmptyArrays"].(bool)
		return unwindSpec{path: strings.TrimPrefix(path, "$"), preserveNullAndEmptyArrays: preserve}
	}
	return unwindSpec{}
}

func runUnwind(records []record.Record, spec any) ([]record.Record, error) {
	us := parseUnwindSpec(spec)
	if us.path == "" {
		return nil, monerr.Validation("unwind stage requires a field path")
	}
	var out []record.Record
	for _, r := range records {
		v := record.Get(r, us.path)
		list, ok := v.([]any)
		if !ok || len(list) == 0 {
			if us.preserveNullAndEmptyArrays {
				out = append(out, record.CloneRecord(r))
			}
			continue
		}
		for _, item := range list {
			clone := record.CloneRecord(r)
			_ = record.Set(clone, us.path, item)
			out = append(out, clone)
		}
	}
	return out, nil
}

func runReplaceRoot(records []record.Record, spec any) []record.Record {
	newRootExpr, _ := spec.(map[string]any)["newRoot"]
	out := make([]record.Record, 0, len(records))
	for _, r := range records {
		v := resolveExpr(r, newRootExpr)
		if m, ok := v.(map[string]any); ok {
			out = append(out, record.Record(m))
			continue
		}
		if rec, ok := v.(record.Record); ok {
			out = append(out, rec)
		}
	}
	return out
}

// runGroup implements the group stage: spec["_id"] is the grouping key
// expression, every other key names an accumulator spec, e.g.
// {"avg": {"$avg": "$salary"}} (spec.md §4.7 accumulator list).
func runGroup(records []record.Record, spec map[string]any) ([]record.Record, error) {
	idExpr, hasID := spec["_id"]
	if !hasID {
		return nil, monerr.Validation("group stage requires an _id expression")
	}

	type bucket struct {
		key  any
		rows []record.Record
	}
	order := make([]any, 0)
	buckets := make(map[string]*bucket)

	keyOf := func(r record.Record) (string, any) {
		v := resolveExpr(r, idExpr)
		return stableKey(v), v
	}

	for _, r := range records {
		k, v := keyOf(r)
		b, ok := buckets[k]
		if !ok {
			b = &bucket{key: v}
			buckets[k] = b
			order = append(order, k)
		}
		b.rows = append(b.rows, r)
	}

	out := make([]record.Record, 0, len(buckets))
	for _, k := range order {
		b := buckets[k.(string)]
		result := record.Record{record.IDField: b.key}
		for field, accSpec := range spec {
			if field == "_id" {
				continue
			}
			accMap, ok := accSpec.(map[string]any)
			if !ok || len(accMap) != 1 {
				continue
			}
			for accOp, expr := range accMap {
				result[field] = applyAccumulator(accOp, expr, b.rows)
			}
		}
		out = append(out, result)
	}
	return out, nil
}

func stableKey(v any) string {
	if s, ok := v.(string); ok {
		return "s:" + s
	}
	if f, ok := record.AsFloat64(v); ok {
		return "n:" + strconv.FormatFloat(f, 'g', -1, 64)
	}
	if v == nil {
		return "nil"
	}
	return fmt.Sprintf("v:%v", v)
}

func applyAccumulator(op string, expr any, rows []record.Record) any {
	op = strings.TrimPrefix(op, "$")
	values := make([]any, len(rows))
	for i, r := range rows {
		values[i] = resolveExpr(r, expr)
	}

	switch op {
	case "sum":
		var sum float64
		for _, v := range values {
			if f, ok := record.AsFloat64(v); ok {
				sum += f
			}
		}
		return sum
	case "count":
		return float64(len(rows))
	case "avg":
		var sum float64
		var n int
		for _, v := range values {
			if f, ok := record.AsFloat64(v); ok {
				sum += f
				n++
			}
		}
		if n == 0 {
			return nil
		}
		return sum / float64(n)
	case "min":
		var min any
		for _, v := range values {
			if min == nil || compareAny(v, min) < 0 {
				min = v
			}
		}
		return min
	case "max":
		var max any
		for _, v := range values {
			if max == nil || compareAny(v, max) > 0 {
				max = v
			}
		}
		return max
	case "first":
		if len(values) == 0 {
			return nil
		}
		return values[0]
	case "last":
		if len(values) == 0 {
			return nil
		}
		return values[len(values)-1]
	case "push":
		return values
	case "addToSet":
		seen := make([]any, 0, len(values))
		for _, v := range values {
			found := false
			for _, s := range seen {
				if compareAny(v, s) == 0 && sameType(v, s) {
					found = true
					break
				}
			}
			if !found {
				seen = append(seen, v)
			}
		}
		return seen
	default:
		return nil
	}
}

func sameType(a, b any) bool {
	_, aIsStr := a.(string)
	_, bIsStr := b.(string)
	if aIsStr != bIsStr {
		return false
	}
	_, aIsNum := record.AsFloat64(a)
	_, bIsNum := record.AsFloat64(b)
	return aIsNum == bIsNum
}
