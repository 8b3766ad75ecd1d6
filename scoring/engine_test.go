package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, doc string) *RuleSet {
	t.Helper()
	rs, err := ParseRuleSet([]byte(doc))
	require.NoError(t, err)
	return rs
}

func TestEvaluateExclusiveStopsProcessing(t *testing.T) {
	rs := mustParse(t, `{
		"rules": [
			{
				"id": "first",
				"condition": {"operator": "always_true"},
				"scoring": {"operator": "fixed", "value": 3},
				"exclusive": true
			},
			{
				"id": "second",
				"condition": {"operator": "always_true"},
				"scoring": {"operator": "fixed", "value": 1}
			}
		]
	}`)

	res := Evaluate(rs.Rules, map[string]any{"id": "p1"}, map[string]any{})
	assert.Equal(t, 3, res.TotalScore)
	require.Len(t, res.Breakdown, 1)
	assert.Equal(t, "first", res.Breakdown[0].RuleID)
	assert.Equal(t, "p1", res.Breakdown[0].PredictionRef)
}

func TestEvaluateNonExclusiveRulesAccumulate(t *testing.T) {
	rs := mustParse(t, `{
		"rules": [
			{
				"id": "base",
				"condition": {"operator": "always_true"},
				"scoring": {"operator": "fixed", "value": 2}
			},
			{
				"id": "bonus",
				"condition": {"operator": "always_true"},
				"scoring": {"operator": "fixed", "value": 1}
			}
		]
	}`)

	res := Evaluate(rs.Rules, map[string]any{}, map[string]any{})
	assert.Equal(t, 3, res.TotalScore)
	assert.Len(t, res.Breakdown, 2)
}

func TestEvaluateEqMissingPathIsNotEqual(t *testing.T) {
	rs := mustParse(t, `{
		"rules": [
			{
				"id": "winner",
				"condition": {
					"operator": "eq",
					"source": "prediction.predicted_winner_id",
					"target": "result.winner_id"
				},
				"scoring": {"operator": "fixed", "value": 1}
			}
		]
	}`)

	res := Evaluate(rs.Rules, map[string]any{}, map[string]any{"winner_id": "t1"})
	assert.Equal(t, 0, res.TotalScore)
	assert.Empty(t, res.Breakdown)
}

func TestEvaluateNumericWidening(t *testing.T) {
	// json decoding produces float64 while database rows carry int
	rs := mustParse(t, `{
		"rules": [
			{
				"id": "score",
				"condition": {
					"operator": "eq",
					"source": "prediction.score",
					"target": "result.score"
				},
				"scoring": {"operator": "fixed", "value": 1}
			}
		]
	}`)

	res := Evaluate(rs.Rules,
		map[string]any{"score": 2},
		map[string]any{"score": float64(2)})
	assert.Equal(t, 1, res.TotalScore)
}

func TestEvaluateBracketExactTierBeatsLesserTiers(t *testing.T) {
	doc, err := DefaultRuleSet("bracket")
	require.NoError(t, err)
	rs, err := ParseRuleSet(doc)
	require.NoError(t, err)

	prediction := map[string]any{
		"id":                      "p1",
		"predicted_winner_id":     "team-a",
		"predicted_loser_id":      "team-b",
		"predicted_team_a_score":  2,
		"predicted_team_b_score":  1,
		"team_a_id":               "team-a",
		"team_b_id":               "team-b",
	}
	result := map[string]any{
		"winner_id":    "team-a",
		"loser_id":     "team-b",
		"team_a_score": 2,
		"team_b_score": 1,
		"team_a_id":    "team-b", // reversed pairing still set-equal
		"team_b_id":    "team-a",
		"tags":         []any{},
	}

	res := Evaluate(rs.Rules, prediction, result)
	assert.Equal(t, 3, res.TotalScore)
	require.Len(t, res.Breakdown, 1)
	assert.Equal(t, "correct_winner_score_and_teams", res.Breakdown[0].RuleID)
}

func TestEvaluateBracketFinalBonusStacksOnTier(t *testing.T) {
	doc, err := DefaultRuleSet("bracket")
	require.NoError(t, err)
	rs, err := ParseRuleSet(doc)
	require.NoError(t, err)

	prediction := map[string]any{
		"predicted_winner_id":    "team-a",
		"predicted_team_a_score": 3,
		"predicted_team_b_score": 0,
		"team_a_id":              "team-a",
		"team_b_id":              "team-b",
	}
	result := map[string]any{
		"winner_id":    "team-a",
		"team_a_score": 3,
		"team_b_score": 0,
		"team_a_id":    "team-a",
		"team_b_id":    "team-b",
		"tags":         []any{"final"},
	}

	res := Evaluate(rs.Rules, prediction, result)
	assert.Equal(t, 4, res.TotalScore) // 1 final bonus + 3 exact tier
	assert.Len(t, res.Breakdown, 2)
}

func TestEvaluateInListWithinTopX(t *testing.T) {
	doc, err := DefaultRuleSet("stat_predictions")
	require.NoError(t, err)
	rs, err := ParseRuleSet(doc)
	require.NoError(t, err)

	results := map[string]any{
		"results": []any{
			map[string]any{"source_id": float64(101), "position": float64(1)},
			map[string]any{"source_id": float64(102), "position": float64(2)},
			map[string]any{"source_id": float64(103), "position": float64(3)},
			map[string]any{"source_id": float64(104), "position": float64(4)},
		},
	}

	top1 := Evaluate(rs.Rules, map[string]any{"player": map[string]any{"source_id": 101}}, results)
	assert.Equal(t, 2, top1.TotalScore)

	top3 := Evaluate(rs.Rules, map[string]any{"player": map[string]any{"source_id": 103}}, results)
	assert.Equal(t, 1, top3.TotalScore)

	outside := Evaluate(rs.Rules, map[string]any{"player": map[string]any{"source_id": 104}}, results)
	assert.Equal(t, 0, outside.TotalScore)

	missing := Evaluate(rs.Rules, map[string]any{"player": map[string]any{"source_id": 999}}, results)
	assert.Equal(t, 0, missing.TotalScore)
}

func TestEvaluateListIntersects(t *testing.T) {
	doc, err := DefaultRuleSet("swiss")
	require.NoError(t, err)
	rs, err := ParseRuleSet(doc)
	require.NoError(t, err)

	prediction := map[string]any{
		"predicted_record_id": "r1",
		"predicted_record":    map[string]any{"groups": []any{"advance"}},
	}
	result := map[string]any{
		"record_id": "r2",
		"record":    map[string]any{"groups": []any{"advance", "undefeated"}},
	}

	res := Evaluate(rs.Rules, prediction, result)
	assert.Equal(t, 1, res.TotalScore)
	require.Len(t, res.Breakdown, 1)
	assert.Equal(t, "group_match", res.Breakdown[0].RuleID)
}

func TestEvaluateSwissExactMatchExclusive(t *testing.T) {
	doc, err := DefaultRuleSet("swiss")
	require.NoError(t, err)
	rs, err := ParseRuleSet(doc)
	require.NoError(t, err)

	prediction := map[string]any{
		"predicted_record_id": "r1",
		"predicted_record":    map[string]any{"groups": []any{"advance"}},
	}
	result := map[string]any{
		"record_id": "r1",
		"record":    map[string]any{"groups": []any{"advance"}},
	}

	// exact match stops evaluation before the group rule can also fire
	res := Evaluate(rs.Rules, prediction, result)
	assert.Equal(t, 3, res.TotalScore)
	require.Len(t, res.Breakdown, 1)
	assert.Equal(t, "exact_match", res.Breakdown[0].RuleID)
}

func TestEvaluateMapPoints(t *testing.T) {
	rs := mustParse(t, `{
		"rules": [
			{
				"id": "placement",
				"condition": {"operator": "always_true"},
				"scoring": {
					"operator": "map_points",
					"source_value": "prediction.team_id",
					"target_list": "result.standings",
					"list_item_key": "team_id",
					"scores": [5, 3, 1]
				}
			}
		]
	}`)

	result := map[string]any{
		"standings": []any{
			map[string]any{"team_id": "t1"},
			map[string]any{"team_id": "t2"},
			map[string]any{"team_id": "t3"},
			map[string]any{"team_id": "t4"},
		},
	}

	res := Evaluate(rs.Rules, map[string]any{"team_id": "t2"}, result)
	assert.Equal(t, 3, res.TotalScore)

	// present in the list but beyond the scores array scores zero
	res = Evaluate(rs.Rules, map[string]any{"team_id": "t4"}, result)
	assert.Equal(t, 0, res.TotalScore)
}

func TestEvaluateScaledDifference(t *testing.T) {
	rs := mustParse(t, `{
		"rules": [
			{
				"id": "closeness",
				"condition": {"operator": "always_true"},
				"scoring": {
					"operator": "scaled_difference",
					"source1": "prediction.value",
					"source2": "result.value",
					"unit": 0.5,
					"points_per_unit": 2
				}
			}
		]
	}`)

	res := Evaluate(rs.Rules,
		map[string]any{"value": 1.3},
		map[string]any{"value": 2.5})
	// |1.3-2.5| = 1.2, floor(1.2/0.5) = 2 units, 4 points
	assert.Equal(t, 4, res.TotalScore)
}

func TestSetEqual(t *testing.T) {
	assert.True(t, setEqual([]any{"a", "b"}, []any{"b", "a"}))
	assert.False(t, setEqual([]any{"a"}, []any{"a", "b"}))
	assert.True(t, setEqual([]any{"a"}, []any{"a"}))
	assert.False(t, setEqual([]any{"a", "b"}, []any{"a", "c"}))
}

func TestSetEqualDropsNilEntries(t *testing.T) {
	ctx := map[string]any{
		"prediction": map[string]any{"a": "x"},
		"result":     map[string]any{"a": "x"},
	}
	cond := Condition{
		Operator:   "set_equal",
		SourceList: PathList{"prediction.a", "prediction.missing"},
		TargetList: PathList{"result.a", "result.missing"},
	}
	assert.True(t, evalCondition(cond, ctx))
}

func TestAndWithNoConditionsIsFalse(t *testing.T) {
	assert.False(t, evalCondition(Condition{Operator: "and"}, map[string]any{}))
}

func TestMaxAndMinExclusiveGroupTakesBest(t *testing.T) {
	rs := mustParse(t, `{
		"rules": [
			{
				"id": "big",
				"condition": {"operator": "always_true"},
				"scoring": {"operator": "fixed", "value": 3},
				"exclusive": true
			},
			{
				"id": "small",
				"condition": {"operator": "always_true"},
				"scoring": {"operator": "fixed", "value": 1},
				"exclusive": true
			}
		]
	}`)

	max, min := MaxAndMin(rs.Rules)
	assert.Equal(t, 3, max)
	assert.Equal(t, 0, min)
}

func TestMaxAndMinNonExclusiveRulesSum(t *testing.T) {
	doc, err := DefaultRuleSet("bracket")
	require.NoError(t, err)
	rs, err := ParseRuleSet(doc)
	require.NoError(t, err)

	// 1 (non-exclusive final bonus) + 3 (best exclusive tier)
	max, min := MaxAndMin(rs.Rules)
	assert.Equal(t, 4, max)
	assert.Equal(t, 0, min)
}

func TestMaxAndMinMapPointsUsesBestScore(t *testing.T) {
	rs := mustParse(t, `{
		"rules": [
			{
				"id": "placement",
				"condition": {"operator": "always_true"},
				"scoring": {
					"operator": "map_points",
					"source_value": "prediction.team_id",
					"target_list": "result.standings",
					"list_item_key": "team_id",
					"scores": [1, 5, 3]
				}
			}
		]
	}`)

	max, _ := MaxAndMin(rs.Rules)
	assert.Equal(t, 5, max)
}

func TestResolvePathMissingSegment(t *testing.T) {
	ctx := map[string]any{"a": map[string]any{"b": 1}}
	assert.Nil(t, ResolvePath(ctx, "a.c"))
	assert.Nil(t, ResolvePath(ctx, "a.b.c"))
	assert.Equal(t, 1, ResolvePath(ctx, "a.b"))
}

func TestPathListAcceptsStringOrArray(t *testing.T) {
	var single PathList
	require.NoError(t, single.UnmarshalJSON([]byte(`"result.tags"`)))
	assert.Equal(t, PathList{"result.tags"}, single)

	var many PathList
	require.NoError(t, many.UnmarshalJSON([]byte(`["a", "b"]`)))
	assert.Equal(t, PathList{"a", "b"}, many)

	var bad PathList
	assert.Error(t, bad.UnmarshalJSON([]byte(`42`)))
}
