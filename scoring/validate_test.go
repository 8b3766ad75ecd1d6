package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fantasy-tournament-system/models"
)

func pathsOf(errs []ValidationError) []string {
	paths := make([]string, len(errs))
	for i, e := range errs {
		paths[i] = e.Path
	}
	return paths
}

func TestValidateAcceptsDefaults(t *testing.T) {
	for _, moduleType := range models.ModuleTypes {
		doc, err := DefaultRuleSet(moduleType)
		require.NoError(t, err, moduleType)
		assert.Empty(t, Validate(doc), moduleType)
	}
}

func TestValidateEnumeratesAllViolations(t *testing.T) {
	doc := []byte(`{
		"rules": [
			{
				"condition": {"operator": "eq", "source": "a"},
				"scoring": {"operator": "fixed"}
			},
			{
				"id": "ok",
				"condition": {"operator": "always_true"},
				"scoring": {"operator": "fixed", "value": 1}
			},
			{
				"id": "bad_scoring",
				"condition": {"operator": "always_true"},
				"scoring": {"operator": "fixed"}
			}
		]
	}`)

	errs := Validate(doc)
	paths := pathsOf(errs)
	assert.Contains(t, paths, "rules[0].id")
	assert.Contains(t, paths, "rules[0].condition.target")
	assert.Contains(t, paths, "rules[0].scoring.value")
	assert.Contains(t, paths, "rules[2].scoring.value")
	assert.Len(t, errs, 4)
}

func TestValidateUnknownOperator(t *testing.T) {
	doc := []byte(`{
		"rules": [
			{
				"id": "r",
				"condition": {"operator": "approximately_eq"},
				"scoring": {"operator": "fixed", "value": 1}
			}
		]
	}`)

	errs := Validate(doc)
	require.Len(t, errs, 1)
	assert.Equal(t, "rules[0].condition.operator", errs[0].Path)
	assert.Contains(t, errs[0].Message, "approximately_eq")
}

func TestValidateNestedAndConditions(t *testing.T) {
	doc := []byte(`{
		"rules": [
			{
				"id": "r",
				"condition": {
					"operator": "and",
					"conditions": [
						{"operator": "eq", "source": "a", "target": "b"},
						{"operator": "in_list", "source": "a"}
					]
				},
				"scoring": {"operator": "fixed", "value": 1}
			}
		]
	}`)

	errs := Validate(doc)
	paths := pathsOf(errs)
	assert.Contains(t, paths, "rules[0].condition.conditions[1].target_list")
	assert.Contains(t, paths, "rules[0].condition.conditions[1].list_item_key")
	assert.Len(t, errs, 2)
}

func TestValidateMissingRulesKey(t *testing.T) {
	errs := Validate([]byte(`{}`))
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "rules")
}

func TestValidateNonObjectDocument(t *testing.T) {
	errs := Validate([]byte(`[]`))
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "object")
}

func TestValidateOperatorFieldRequirements(t *testing.T) {
	cases := []struct {
		name      string
		condition string
		missing   []string
	}{
		{
			name:      "in_list_within_top_x",
			condition: `{"operator": "in_list_within_top_x", "source": "a"}`,
			missing:   []string{"target_list", "list_item_key", "position_key", "top_x"},
		},
		{
			name:      "set_equal",
			condition: `{"operator": "set_equal"}`,
			missing:   []string{"source_list", "target_list"},
		},
		{
			name:      "list_contains_literal",
			condition: `{"operator": "list_contains_literal"}`,
			missing:   []string{"source_value", "target_list"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc := []byte(`{
				"rules": [
					{
						"id": "r",
						"condition": ` + tc.condition + `,
						"scoring": {"operator": "fixed", "value": 1}
					}
				]
			}`)
			paths := pathsOf(Validate(doc))
			for _, field := range tc.missing {
				assert.Contains(t, paths, "rules[0].condition."+field)
			}
			assert.Len(t, paths, len(tc.missing))
		})
	}
}

func TestValidateScaledDifferenceFields(t *testing.T) {
	doc := []byte(`{
		"rules": [
			{
				"id": "r",
				"condition": {"operator": "always_true"},
				"scoring": {"operator": "scaled_difference", "source1": "a", "source2": "b"}
			}
		]
	}`)

	paths := pathsOf(Validate(doc))
	assert.Contains(t, paths, "rules[0].scoring.unit")
	assert.Contains(t, paths, "rules[0].scoring.points_per_unit")
	assert.Len(t, paths, 2)
}

func TestParseRuleSetRejectsInvalidWhole(t *testing.T) {
	_, err := ParseRuleSet([]byte(`{"rules": [{"scoring": {"operator": "fixed", "value": 1}}]}`))
	require.Error(t, err)

	var invalid *InvalidConfigError
	require.ErrorAs(t, err, &invalid)
	assert.NotEmpty(t, invalid.Errors)
	assert.Contains(t, err.Error(), "validation errors")
}

func TestFormatValidationErrors(t *testing.T) {
	assert.Equal(t, "No errors", FormatValidationErrors(nil))

	out := FormatValidationErrors([]ValidationError{
		{Path: "rules[0].id", Message: "Rule must have an 'id'"},
	})
	assert.Contains(t, out, "rules[0].id")
}
