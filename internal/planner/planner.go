// Package planner implements query plan enumeration and scoring (spec.md
// §4.7): given a collection size, a query, and the available indexes, it
// enumerates a full-scan baseline plus one index-lookup alternative per
// indexable field, scores each, and selects the cheapest.
package planner

import (
	"sort"

	"github.com/cuemby/monarch/internal/index"
	"github.com/cuemby/monarch/internal/query"
)

// StepKind names one stage of a plan.
type StepKind string

const (
	FullScan        StepKind = "fullScan"
	IndexLookup     StepKind = "indexLookup"
	Filter          StepKind = "filter"
	Sort            StepKind = "sort"
	Limit           StepKind = "limit"
	Projection      StepKind = "projection"
	AggregationStep StepKind = "aggregationStage"
)

// Step is one stage of a Plan, carrying a cost and selectivity estimate.
type Step struct {
	Kind        StepKind
	Cost        float64
	Selectivity float64
	Detail      string
}

// Plan is an ordered sequence of steps plus its aggregate score (lower is
// better) and whether it roots at a unique-index equality lookup, used for
// tie-breaking.
type Plan struct {
	Steps          []Step
	Score          float64
	UniqueEquality bool

	// Index is the index an IndexLookup step's first Step resolves to, or
	// nil for a full-scan plan. EqualityValues is the matching value tuple
	// to pass to Index.EqualityLookup.
	Index          *index.Index
	EqualityValues []any
}

// score computes Σ(step.cost × ∏ preceding selectivity) across steps
// (spec.md §4.7 selection rule).
func score(steps []Step) float64 {
	var total float64
	prefix := 1.0
	for _, st := range steps {
		total += st.Cost * prefix
		prefix *= st.Selectivity
	}
	return total
}

// indexableFields returns the top-level field/value pairs in q that are
// plain equality conditions (a literal, or an operator map containing
// only "eq") — the only conditions an equality index lookup can serve.
func indexableFields(q query.Query) map[string]any {
	out := make(map[string]any)
	for field, cond := range q {
		switch field {
		case "and", "or", "nor", "expr":
			continue
		}
		if opMap, ok := cond.(map[string]any); ok {
			if eq, ok := opMap["eq"]; ok && len(opMap) == 1 {
				out[field] = eq
			}
			continue
		}
		if opMap, ok := cond.(query.Query); ok {
			if eq, ok := opMap["eq"]; ok && len(opMap) == 1 {
				out[field] = eq
			}
			continue
		}
		out[field] = cond
	}
	return out
}

// Build enumerates candidate plans for a query over a collection of size n
// with the given indexes, and returns the lowest-scored one. Ties are
// broken by preferring a unique-indexed equality lookup, then by fewer
// steps (spec.md §4.7).
func Build(n int, q query.Query, indexes []*index.Index) Plan {
	candidates := []Plan{fullScanPlan(n)}

	eqFields := indexableFields(q)
	for _, ix := range indexes {
		if len(ix.Fields) != 1 {
			continue // composite indexes aren't considered for single-field lookups
		}
		value, ok := eqFields[ix.Fields[0]]
		if !ok {
			continue
		}
		candidates = append(candidates, indexLookupPlan(n, ix, value))
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score < candidates[j].Score
		}
		if candidates[i].UniqueEquality != candidates[j].UniqueEquality {
			return candidates[i].UniqueEquality
		}
		return len(candidates[i].Steps) < len(candidates[j].Steps)
	})
	return candidates[0]
}

func fullScanPlan(n int) Plan {
	steps := []Step{
		{Kind: FullScan, Cost: float64(n), Selectivity: 1.0, Detail: "scan every record"},
		{Kind: Filter, Cost: float64(n), Selectivity: 0.5, Detail: "apply residual predicate"},
	}
	return Plan{Steps: steps, Score: score(steps)}
}

func indexLookupPlan(n int, ix *index.Index, value any) Plan {
	keyCount := ix.KeyCount()
	if keyCount == 0 {
		keyCount = 1
	}
	selectivity := 1.0 / float64(keyCount)
	if ix.Options.Unique {
		selectivity = 1.0 / float64(max(n, 1))
	}
	lookupCost := 1.0
	residual := float64(n) * selectivity

	steps := []Step{
		{Kind: IndexLookup, Cost: lookupCost, Selectivity: selectivity, Detail: "index " + ix.Name},
		{Kind: Filter, Cost: residual, Selectivity: 1.0, Detail: "apply residual predicate"},
	}
	return Plan{
		Steps:          steps,
		Score:          score(steps),
		UniqueEquality: ix.Options.Unique,
		Index:          ix,
		EqualityValues: []any{value},
	}
}
