// Package scoring evaluates declarative rule sets against prediction/result
// pairs. A rule set is a JSON document of rules, each with a `condition` and a
// `scoring` block; the engine collects points from every matching rule and
// stops at the first matching rule marked exclusive. The package is pure: no
// I/O, no persistence, no clocks.
package scoring

import (
	"encoding/json"
	"fmt"
)

// ScoreBreakdownItem represents a single scoring event.
type ScoreBreakdownItem struct {
	PredictionRef string `json:"prediction_ref"`
	RuleID        string `json:"rule_id"`
	Points        int    `json:"points"`
	Description   string `json:"description"`
}

// EvaluationResult is the structured outcome of evaluating one rule set
// against one prediction/result pair. TotalScore always equals the sum of
// Breakdown points.
type EvaluationResult struct {
	TotalScore int                  `json:"total_score"`
	Breakdown  []ScoreBreakdownItem `json:"breakdown"`
}

// RuleSet is the decoded form of the persisted scoring configuration.
type RuleSet struct {
	Rules []Rule `json:"rules"`
}

// Rule is one condition+scoring pair. An exclusive rule halts further
// evaluation for the pair when it matches.
type Rule struct {
	ID          string     `json:"id"`
	Description string     `json:"description,omitempty"`
	Condition   *Condition `json:"condition,omitempty"`
	Scoring     Scoring    `json:"scoring"`
	Exclusive   bool       `json:"exclusive,omitempty"`
}

// Condition is a tagged variant selected by Operator. Field usage per
// operator matches the wire format exactly:
//
//	eq:                    source, target (paths)
//	and:                   conditions
//	in_list:               source, target_list, list_item_key
//	in_list_within_top_x:  source, target_list, list_item_key, position_key, top_x
//	list_intersects:       source_list, target_list (single paths)
//	list_contains_literal: source_value (literal), target_list
//	set_equal:             source_list, target_list (path arrays)
//	always_true:           —
type Condition struct {
	Operator    string      `json:"operator"`
	Source      string      `json:"source,omitempty"`
	Target      string      `json:"target,omitempty"`
	Conditions  []Condition `json:"conditions,omitempty"`
	SourceList  PathList    `json:"source_list,omitempty"`
	TargetList  PathList    `json:"target_list,omitempty"`
	SourceValue any         `json:"source_value,omitempty"`
	ListItemKey string      `json:"list_item_key,omitempty"`
	PositionKey string      `json:"position_key,omitempty"`
	TopX        *int        `json:"top_x,omitempty"`
}

// Scoring is a tagged variant selected by Operator:
//
//	fixed:             value
//	map_points:        source_value (path), target_list, list_item_key, scores
//	scaled_difference: source1, source2, unit, points_per_unit
type Scoring struct {
	Operator      string  `json:"operator"`
	Value         int     `json:"value,omitempty"`
	SourceValue   string  `json:"source_value,omitempty"`
	TargetList    string  `json:"target_list,omitempty"`
	ListItemKey   string  `json:"list_item_key,omitempty"`
	Scores        []int   `json:"scores,omitempty"`
	Source1       string  `json:"source1,omitempty"`
	Source2       string  `json:"source2,omitempty"`
	Unit          float64 `json:"unit,omitempty"`
	PointsPerUnit int     `json:"points_per_unit,omitempty"`
}

// PathList accepts either a single path string ("result.tags") or an array of
// paths (["prediction.team_a_id", "prediction.team_b_id"]) — list_intersects
// and list_contains_literal use the former, set_equal the latter.
type PathList []string

func (p *PathList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*p = PathList{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("path list must be a string or an array of strings")
	}
	*p = PathList(many)
	return nil
}

// Single returns the path when the list holds exactly one entry.
func (p PathList) Single() (string, bool) {
	if len(p) == 1 {
		return p[0], true
	}
	return "", false
}

// ParseRuleSet validates a raw rule-set document and decodes it. Validation
// enumerates every violation; a document with any violation is rejected
// whole, never partially applied.
func ParseRuleSet(doc []byte) (*RuleSet, error) {
	errs := Validate(doc)
	if len(errs) > 0 {
		return nil, &InvalidConfigError{Errors: errs}
	}
	var rs RuleSet
	if err := json.Unmarshal(doc, &rs); err != nil {
		return nil, fmt.Errorf("failed to decode scoring config: %w", err)
	}
	return &rs, nil
}
