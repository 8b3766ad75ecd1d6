package scoring

import (
	"fmt"
	"math"
	"reflect"
	"strings"
)

// Evaluate applies a rule set to a single prediction/result pair. Rules are
// evaluated in order; every matching rule appends a breakdown item and its
// points, and the first matching rule marked exclusive stops processing.
// Non-exclusive rules are additive: several may fire for the same pair.
//
// prediction and result are generic contexts (nested maps/slices/scalars);
// paths in rules resolve against {"prediction": prediction, "result": result}.
// The prediction's "id" entry, when present, becomes the breakdown reference.
func Evaluate(rules []Rule, prediction, result map[string]any) EvaluationResult {
	ctx := map[string]any{"prediction": prediction, "result": result}

	predictionRef := ""
	if id, ok := prediction["id"]; ok {
		predictionRef = fmt.Sprint(id)
	}

	total := 0
	var breakdown []ScoreBreakdownItem

	for _, rule := range rules {
		// A rule without a condition block is unconditional
		if rule.Condition != nil && !evalCondition(*rule.Condition, ctx) {
			continue
		}

		points := evalScoring(rule.Scoring, ctx)
		total += points

		description := rule.Description
		if description == "" {
			description = "Points awarded for matching rule."
		}
		breakdown = append(breakdown, ScoreBreakdownItem{
			PredictionRef: predictionRef,
			RuleID:        rule.ID,
			Points:        points,
			Description:   description,
		})

		if rule.Exclusive {
			break
		}
	}

	return EvaluationResult{TotalScore: total, Breakdown: breakdown}
}

// MaxAndMin computes the best and worst possible totals for a rule set.
// Among exclusive rules only one can fire, so only the single best max and
// single worst min of that group contribute; non-exclusive rules sum
// unconditionally. A rule's worst case is 0 (it either fires for its value or
// contributes nothing). scaled_difference and unrecognized scoring operators
// contribute 0 to both bounds: without a declared numeric domain their
// extrema cannot be computed, so the bounds are a conservative approximation.
func MaxAndMin(rules []Rule) (int, int) {
	var exclusiveMaxes, exclusiveMins []int
	nonExclusiveMaxSum := 0
	nonExclusiveMinSum := 0

	for _, rule := range rules {
		var ruleMax, ruleMin int

		switch rule.Scoring.Operator {
		case "fixed":
			ruleMax = rule.Scoring.Value
		case "map_points":
			for _, s := range rule.Scoring.Scores {
				if s > ruleMax {
					ruleMax = s
				}
			}
		}

		if rule.Exclusive {
			exclusiveMaxes = append(exclusiveMaxes, ruleMax)
			exclusiveMins = append(exclusiveMins, ruleMin)
		} else {
			nonExclusiveMaxSum += ruleMax
			nonExclusiveMinSum += ruleMin
		}
	}

	exclusiveMax := 0
	for _, m := range exclusiveMaxes {
		if m > exclusiveMax {
			exclusiveMax = m
		}
	}
	exclusiveMin := 0
	for _, m := range exclusiveMins {
		if m < exclusiveMin {
			exclusiveMin = m
		}
	}

	return exclusiveMax + nonExclusiveMaxSum, exclusiveMin + nonExclusiveMinSum
}

// ResolvePath walks a dot-separated path through nested map contexts. A
// missing segment yields nil — never an error — so operators treat absent
// values as not-equal/not-found.
func ResolvePath(obj any, path string) any {
	current := obj
	for _, key := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current, ok = m[key]
		if !ok {
			return nil
		}
	}
	return current
}

func evalCondition(cond Condition, ctx map[string]any) bool {
	switch cond.Operator {
	case "eq":
		source := ResolvePath(ctx, cond.Source)
		target := ResolvePath(ctx, cond.Target)
		return source != nil && valuesEqual(source, target)

	case "always_true":
		return true

	case "and":
		if len(cond.Conditions) == 0 {
			return false
		}
		for _, sub := range cond.Conditions {
			if !evalCondition(sub, ctx) {
				return false
			}
		}
		return true

	case "in_list":
		source := ResolvePath(ctx, cond.Source)
		targetPath, ok := cond.TargetList.Single()
		if source == nil || !ok {
			return false
		}
		list, ok := asList(ResolvePath(ctx, targetPath))
		if !ok {
			return false
		}
		for _, item := range list {
			if cond.ListItemKey != "" {
				if valuesEqual(ResolvePath(item, cond.ListItemKey), source) {
					return true
				}
			} else if valuesEqual(item, source) {
				return true
			}
		}
		return false

	case "in_list_within_top_x":
		source := ResolvePath(ctx, cond.Source)
		targetPath, ok := cond.TargetList.Single()
		if source == nil || !ok || cond.ListItemKey == "" || cond.PositionKey == "" || cond.TopX == nil {
			return false
		}
		list, ok := asList(ResolvePath(ctx, targetPath))
		if !ok {
			return false
		}
		for _, item := range list {
			if !valuesEqual(ResolvePath(item, cond.ListItemKey), source) {
				continue
			}
			// Found the item; it matches only when its position is
			// within the threshold
			position, isInt := asInt(ResolvePath(item, cond.PositionKey))
			return isInt && position <= *cond.TopX
		}
		return false

	case "list_intersects":
		sourcePath, okS := cond.SourceList.Single()
		targetPath, okT := cond.TargetList.Single()
		if !okS || !okT {
			return false
		}
		list1, ok1 := asList(ResolvePath(ctx, sourcePath))
		list2, ok2 := asList(ResolvePath(ctx, targetPath))
		if !ok1 || !ok2 {
			return false
		}
		for _, a := range list1 {
			for _, b := range list2 {
				if valuesEqual(a, b) {
					return true
				}
			}
		}
		return false

	case "list_contains_literal":
		targetPath, ok := cond.TargetList.Single()
		if cond.SourceValue == nil || !ok {
			return false
		}
		list, ok := asList(ResolvePath(ctx, targetPath))
		if !ok {
			return false
		}
		for _, item := range list {
			if valuesEqual(item, cond.SourceValue) {
				return true
			}
		}
		return false

	case "set_equal":
		return setEqual(resolveAll(ctx, cond.SourceList), resolveAll(ctx, cond.TargetList))
	}

	return false
}

func evalScoring(scoring Scoring, ctx map[string]any) int {
	switch scoring.Operator {
	case "fixed":
		return scoring.Value

	case "map_points":
		source := ResolvePath(ctx, scoring.SourceValue)
		if source == nil || scoring.ListItemKey == "" {
			return 0
		}
		list, ok := asList(ResolvePath(ctx, scoring.TargetList))
		if !ok {
			return 0
		}
		for index, item := range list {
			if valuesEqual(ResolvePath(item, scoring.ListItemKey), source) {
				if index < len(scoring.Scores) {
					return scoring.Scores[index]
				}
				return 0 // found, but no score defined for this index
			}
		}
		return 0

	case "scaled_difference":
		v1, ok1 := asFloat(ResolvePath(ctx, scoring.Source1))
		v2, ok2 := asFloat(ResolvePath(ctx, scoring.Source2))
		if !ok1 || !ok2 || scoring.Unit == 0 {
			return 0
		}
		units := int(math.Floor(math.Abs(v1-v2) / scoring.Unit))
		return units * scoring.PointsPerUnit
	}

	return 0
}

// resolveAll resolves every path in the list, dropping nils.
func resolveAll(ctx map[string]any, paths PathList) []any {
	var values []any
	for _, path := range paths {
		if v := ResolvePath(ctx, path); v != nil {
			values = append(values, v)
		}
	}
	return values
}

// setEqual compares two value sets after nil-dropping: equal sizes and
// mutual membership, with duplicates collapsing.
func setEqual(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	contains := func(list []any, v any) bool {
		for _, item := range list {
			if valuesEqual(item, v) {
				return true
			}
		}
		return false
	}
	for _, v := range a {
		if !contains(b, v) {
			return false
		}
	}
	for _, v := range b {
		if !contains(a, v) {
			return false
		}
	}
	return true
}

// valuesEqual compares scalars with numeric widening, so an int loaded from
// the database equals the float64 json.Unmarshal produces.
func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == b
	}
	if fa, ok := asFloat(a); ok {
		fb, ok := asFloat(b)
		return ok && fa == fb
	}
	return reflect.DeepEqual(a, b)
}

// asList accepts any slice kind ([]any, []string, []map[string]any, ...)
func asList(v any) ([]any, bool) {
	if v == nil {
		return nil, false
	}
	if list, ok := v.([]any); ok {
		return list, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return nil, false
	}
	list := make([]any, rv.Len())
	for i := range list {
		list[i] = rv.Index(i).Interface()
	}
	return list, true
}

func asFloat(v any) (float64, bool) {
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

func asInt(v any) (int, bool) {
	f, ok := asFloat(v)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}
