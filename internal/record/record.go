// Package record defines the engine's self-describing document type and
// its identifier allocator.
//
// A Record is an ordered-in-spirit mapping from field name to a value drawn
// from a small tagged-union of kinds (null, bool, int64, float64, string,
// timestamp, list, nested record). Go's map[string]any together with a type
// switch over the concrete dynamic type plays that role directly — the same
// document-as-map representation used throughout the corpus for embedded
// document stores.
package record

import (
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// IDField is the name of the distinguished identifier field.
const IDField = "_id"

// Record is a self-describing document. Values are one of: nil, bool,
// int64, float64, string, time.Time, []any, map[string]any.
type Record map[string]any

// ID returns the record's identifier, or "" if unset/not a string.
func (r Record) ID() string {
	v, ok := r[IDField]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// Clone returns a deep copy so stored records are never aliased with
// caller-held values (records are logically immutable after insert).
func Clone(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = Clone(vv)
		}
		return out
	case Record:
		out := make(Record, len(t))
		for k, vv := range t {
			out[k] = Clone(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = Clone(vv)
		}
		return out
	default:
		return v
	}
}

// CloneRecord deep-copies a Record.
func CloneRecord(r Record) Record {
	return Clone(r).(Record)
}

// Allocator produces lexicographically sortable, process-unique ids of the
// form "<millis>_<counter>_<random>" (spec.md §4.1).
type Allocator struct {
	counter atomic.Int64
	nowFn   func() time.Time
}

// NewAllocator constructs an id Allocator. nowFn is overridable for tests;
// a nil nowFn uses time.Now.
func NewAllocator(nowFn func() time.Time) *Allocator {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Allocator{nowFn: nowFn}
}

// Next allocates a new id.
func (a *Allocator) Next() string {
	millis := a.nowFn().UnixMilli()
	counter := a.counter.Add(1)
	suffix := uuid.New().String()[:8]
	return fmt.Sprintf("%d_%d_%s", millis, counter, suffix)
}

// FieldPath splits a dotted field path into its components.
func FieldPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

// Undefined is the matcher-visible sentinel for "no value at this path" —
// distinct from an explicit nil so operators like exists can tell them
// apart when needed, while equality treats both as JSON null.
type undefinedType struct{}

// Undefined is the singleton value returned by Get when a field path cannot
// be resolved. It is never stored in a Record.
var Undefined = undefinedType{}

// IsUndefined reports whether v is the Undefined sentinel.
func IsUndefined(v any) bool {
	_, ok := v.(undefinedType)
	return ok
}

// Get resolves a dotted field path against the record, honoring spec.md
// §9's "numeric path components may mean either list index or record key"
// resolution rule: if the current value is a list and the component is
// all-digit, index into the list; otherwise treat it as a map key.
// Resolution failures return Undefined rather than an error.
func Get(r Record, path string) any {
	parts := FieldPath(path)
	if len(parts) == 0 {
		return Undefined
	}
	var cur any = map[string]any(r)
	for _, part := range parts {
		cur = step(cur, part)
		if IsUndefined(cur) {
			return Undefined
		}
	}
	return cur
}

func step(cur any, part string) any {
	switch t := cur.(type) {
	case map[string]any:
		v, ok := t[part]
		if !ok {
			return Undefined
		}
		return v
	case Record:
		v, ok := t[part]
		if !ok {
			return Undefined
		}
		return v
	case []any:
		if !isAllDigits(part) {
			return Undefined
		}
		idx, err := strconv.Atoi(part)
		if err != nil || idx < 0 || idx >= len(t) {
			return Undefined
		}
		return t[idx]
	default:
		return Undefined
	}
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// Set writes v at the dotted field path, creating intermediate maps as
// needed. It does not support creating intermediate list elements.
func Set(r Record, path string, v any) error {
	parts := FieldPath(path)
	if len(parts) == 0 {
		return fmt.Errorf("empty field path")
	}
	cur := map[string]any(r)
	for i, part := range parts {
		if i == len(parts)-1 {
			cur[part] = v
			return nil
		}
		next, ok := cur[part]
		if !ok {
			m := make(map[string]any)
			cur[part] = m
			cur = m
			continue
		}
		switch t := next.(type) {
		case map[string]any:
			cur = t
		case Record:
			cur = t
		default:
			return fmt.Errorf("field path %q: %q is not a record", path, part)
		}
	}
	return nil
}

// Kind enumerates the tagged-union value kinds from spec.md §3, used by the
// "type" matcher operator.
type Kind string

const (
	KindNull   Kind = "null"
	KindBool   Kind = "bool"
	KindInt    Kind = "int"
	KindFloat  Kind = "float"
	KindString Kind = "string"
	KindTime   Kind = "timestamp"
	KindList   Kind = "list"
	KindRecord Kind = "record"
)

// KindOf classifies v into one of the value kinds.
func KindOf(v any) Kind {
	switch v.(type) {
	case nil:
		return KindNull
	case bool:
		return KindBool
	case int, int32, int64:
		return KindInt
	case float32, float64:
		return KindFloat
	case string:
		return KindString
	case time.Time:
		return KindTime
	case []any:
		return KindList
	case map[string]any, Record:
		return KindRecord
	default:
		return KindNull
	}
}

// AsInt64 normalizes any numeric kind to int64, for numeric comparisons.
func AsInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case int64:
		return t, true
	case int:
		return int64(t), true
	case int32:
		return int64(t), true
	case float64:
		return int64(t), true
	case float32:
		return int64(t), true
	}
	return 0, false
}

// AsFloat64 normalizes any numeric kind to float64.
func AsFloat64(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int64:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	}
	return 0, false
}
