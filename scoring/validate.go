package scoring

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// ValidationError is one structural problem in a rule-set document, tagged
// with the path of the offending element (e.g. "rules[2].scoring.value").
type ValidationError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// InvalidConfigError wraps the complete list of violations found in a
// document. A malformed document is reported whole and never partially
// applied.
type InvalidConfigError struct {
	Errors []ValidationError
}

func (e *InvalidConfigError) Error() string {
	return FormatValidationErrors(e.Errors)
}

var conditionRequiredFields = map[string][]string{
	"eq":                    {"source", "target"},
	"and":                   {"conditions"},
	"in_list":               {"source", "target_list", "list_item_key"},
	"in_list_within_top_x":  {"source", "target_list", "list_item_key", "position_key", "top_x"},
	"list_intersects":       {"source_list", "target_list"},
	"always_true":           {},
	"list_contains_literal": {"source_value", "target_list"},
	"set_equal":             {"source_list", "target_list"},
}

var scoringRequiredFields = map[string][]string{
	"fixed":             {"value"},
	"map_points":        {"source_value", "target_list", "list_item_key", "scores"},
	"scaled_difference": {"source1", "source2", "unit", "points_per_unit"},
}

// Validate checks a raw rule-set document against the operator schemas and
// returns every violation found, not just the first.
func Validate(doc []byte) []ValidationError {
	var config map[string]json.RawMessage
	if err := json.Unmarshal(doc, &config); err != nil {
		return []ValidationError{{Path: "", Message: "Config must be an object"}}
	}

	rawRules, ok := config["rules"]
	if !ok {
		return []ValidationError{{Path: "", Message: "Config must have 'rules' array"}}
	}

	var rules []json.RawMessage
	if err := json.Unmarshal(rawRules, &rules); err != nil {
		return []ValidationError{{Path: "rules", Message: "Rules must be an array"}}
	}

	var errs []ValidationError
	for i, rule := range rules {
		errs = append(errs, validateRule(rule, fmt.Sprintf("rules[%d]", i))...)
	}
	return errs
}

func validateRule(raw json.RawMessage, path string) []ValidationError {
	var rule map[string]json.RawMessage
	if err := json.Unmarshal(raw, &rule); err != nil {
		return []ValidationError{{Path: path, Message: "Rule must be an object"}}
	}

	var errs []ValidationError

	if _, ok := rule["id"]; !ok {
		errs = append(errs, ValidationError{Path: path + ".id", Message: "Rule must have an 'id'"})
	}

	if rawCond, ok := rule["condition"]; ok {
		errs = append(errs, validateCondition(rawCond, path+".condition")...)
	} else {
		errs = append(errs, ValidationError{Path: path + ".condition", Message: "Rule must have a 'condition'"})
	}

	if rawScoring, ok := rule["scoring"]; ok {
		errs = append(errs, validateScoring(rawScoring, path+".scoring")...)
	} else {
		errs = append(errs, ValidationError{Path: path + ".scoring", Message: "Rule must have a 'scoring'"})
	}

	if rawExclusive, ok := rule["exclusive"]; ok {
		var b bool
		if err := json.Unmarshal(rawExclusive, &b); err != nil {
			errs = append(errs, ValidationError{Path: path + ".exclusive", Message: "exclusive must be boolean"})
		}
	}

	return errs
}

func validateCondition(raw json.RawMessage, path string) []ValidationError {
	block, operator, errs := validateOperatorBlock(raw, path, "Condition", conditionRequiredFields)
	if block == nil {
		return errs
	}

	// Nested conditions of 'and' are validated recursively
	if operator == "and" {
		if rawConds, ok := block["conditions"]; ok {
			var subs []json.RawMessage
			if err := json.Unmarshal(rawConds, &subs); err != nil {
				errs = append(errs, ValidationError{Path: path + ".conditions", Message: "conditions must be an array"})
			} else {
				for i, sub := range subs {
					errs = append(errs, validateCondition(sub, fmt.Sprintf("%s.conditions[%d]", path, i))...)
				}
			}
		}
	}

	return errs
}

func validateScoring(raw json.RawMessage, path string) []ValidationError {
	_, _, errs := validateOperatorBlock(raw, path, "Scoring", scoringRequiredFields)
	return errs
}

// validateOperatorBlock checks the shared shape of condition/scoring blocks:
// an object with a recognized 'operator' carrying that operator's required
// fields. Returns the decoded block and operator for further checks; block is
// nil when the shape was too broken to continue.
func validateOperatorBlock(raw json.RawMessage, path, kind string, requiredFields map[string][]string) (map[string]json.RawMessage, string, []ValidationError) {
	var block map[string]json.RawMessage
	if err := json.Unmarshal(raw, &block); err != nil {
		return nil, "", []ValidationError{{Path: path, Message: kind + " must be an object"}}
	}

	rawOp, ok := block["operator"]
	if !ok {
		return nil, "", []ValidationError{{Path: path + ".operator", Message: kind + " must have an 'operator'"}}
	}
	var operator string
	if err := json.Unmarshal(rawOp, &operator); err != nil {
		return nil, "", []ValidationError{{Path: path + ".operator", Message: "operator must be a string"}}
	}

	required, known := requiredFields[operator]
	if !known {
		return nil, "", []ValidationError{{
			Path:    path + ".operator",
			Message: fmt.Sprintf("Unknown operator '%s'. Valid: %s", operator, knownOperators(requiredFields)),
		}}
	}

	var errs []ValidationError
	for _, field := range required {
		if _, ok := block[field]; !ok {
			errs = append(errs, ValidationError{
				Path:    fmt.Sprintf("%s.%s", path, field),
				Message: fmt.Sprintf("Operator '%s' requires field '%s'", operator, field),
			})
		}
	}
	return block, operator, errs
}

func knownOperators(requiredFields map[string][]string) string {
	names := make([]string, 0, len(requiredFields))
	for name := range requiredFields {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// FormatValidationErrors renders violations as a human-readable report.
func FormatValidationErrors(errs []ValidationError) string {
	if len(errs) == 0 {
		return "No errors"
	}
	lines := []string{"Scoring configuration validation errors:"}
	for _, err := range errs {
		if err.Path != "" {
			lines = append(lines, fmt.Sprintf("  - %s: %s", err.Path, err.Message))
		} else {
			lines = append(lines, fmt.Sprintf("  - %s", err.Message))
		}
	}
	return strings.Join(lines, "\n")
}
