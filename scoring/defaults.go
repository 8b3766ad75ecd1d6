package scoring

import (
	"fmt"

	"fantasy-tournament-system/models"
)

// Default rule-set documents seeded into new modules. Kept as raw JSON so the
// stored configuration matches what an admin would see and edit byte for byte.

const defaultSwissConfig = `{
  "rules": [
    {
      "id": "exact_match",
      "description": "Predicted record matches the final record exactly.",
      "exclusive": true,
      "condition": {
        "operator": "eq",
        "source": "prediction.predicted_record_id",
        "target": "result.record_id"
      },
      "scoring": {"operator": "fixed", "value": 3}
    },
    {
      "id": "group_match",
      "description": "Predicted record lands in the same result group.",
      "condition": {
        "operator": "list_intersects",
        "source_list": "prediction.predicted_record.groups",
        "target_list": "result.record.groups"
      },
      "scoring": {"operator": "fixed", "value": 1}
    }
  ]
}`

const defaultBracketConfig = `{
  "rules": [
    {
      "id": "correct_final_winner_bonus",
      "description": "Bonus for correctly predicting the final winner.",
      "condition": {
        "operator": "and",
        "conditions": [
          {
            "operator": "eq",
            "source": "prediction.predicted_winner_id",
            "target": "result.winner_id"
          },
          {
            "operator": "list_contains_literal",
            "source_value": "final",
            "target_list": "result.tags"
          }
        ]
      },
      "scoring": {"operator": "fixed", "value": 1},
      "exclusive": false
    },
    {
      "id": "correct_winner_score_and_teams",
      "description": "Correct winner, score, and teams (order-independent).",
      "condition": {
        "operator": "and",
        "conditions": [
          {
            "operator": "eq",
            "source": "prediction.predicted_winner_id",
            "target": "result.winner_id"
          },
          {
            "operator": "eq",
            "source": "prediction.predicted_team_a_score",
            "target": "result.team_a_score"
          },
          {
            "operator": "eq",
            "source": "prediction.predicted_team_b_score",
            "target": "result.team_b_score"
          },
          {
            "operator": "set_equal",
            "source_list": ["prediction.team_a_id", "prediction.team_b_id"],
            "target_list": ["result.team_a_id", "result.team_b_id"]
          }
        ]
      },
      "scoring": {"operator": "fixed", "value": 3},
      "exclusive": true
    },
    {
      "id": "correct_winner_and_score",
      "description": "Correct winner and score, but wrong teams.",
      "condition": {
        "operator": "and",
        "conditions": [
          {
            "operator": "eq",
            "source": "prediction.predicted_winner_id",
            "target": "result.winner_id"
          },
          {
            "operator": "eq",
            "source": "prediction.predicted_team_a_score",
            "target": "result.team_a_score"
          },
          {
            "operator": "eq",
            "source": "prediction.predicted_team_b_score",
            "target": "result.team_b_score"
          }
        ]
      },
      "scoring": {"operator": "fixed", "value": 2},
      "exclusive": true
    },
    {
      "id": "correct_loser_and_score",
      "description": "Correct loser and score, but wrong teams.",
      "condition": {
        "operator": "and",
        "conditions": [
          {
            "operator": "eq",
            "source": "prediction.predicted_loser_id",
            "target": "result.loser_id"
          },
          {
            "operator": "eq",
            "source": "prediction.predicted_team_a_score",
            "target": "result.team_a_score"
          },
          {
            "operator": "eq",
            "source": "prediction.predicted_team_b_score",
            "target": "result.team_b_score"
          }
        ]
      },
      "scoring": {"operator": "fixed", "value": 2},
      "exclusive": true
    },
    {
      "id": "correct_winner",
      "description": "Correct winner, but wrong teams and/or score.",
      "condition": {
        "operator": "eq",
        "source": "prediction.predicted_winner_id",
        "target": "result.winner_id"
      },
      "scoring": {"operator": "fixed", "value": 1},
      "exclusive": true
    },
    {
      "id": "correct_loser",
      "description": "Correct loser, but wrong teams and/or score.",
      "condition": {
        "operator": "eq",
        "source": "prediction.predicted_loser_id",
        "target": "result.loser_id"
      },
      "scoring": {"operator": "fixed", "value": 1},
      "exclusive": true
    }
  ]
}`

const defaultStatConfig = `{
  "rules": [
    {
      "id": "player_is_top_1",
      "description": "Player is ranked 1st in the results.",
      "condition": {
        "operator": "in_list_within_top_x",
        "source": "prediction.player.source_id",
        "target_list": "result.results",
        "list_item_key": "source_id",
        "position_key": "position",
        "top_x": 1
      },
      "scoring": {"operator": "fixed", "value": 2},
      "exclusive": true
    },
    {
      "id": "player_is_top_3",
      "description": "Player is ranked within top 3 in the results (but not 1st).",
      "condition": {
        "operator": "in_list_within_top_x",
        "source": "prediction.player.source_id",
        "target_list": "result.results",
        "list_item_key": "source_id",
        "position_key": "position",
        "top_x": 3
      },
      "scoring": {"operator": "fixed", "value": 1},
      "exclusive": true
    }
  ]
}`

// DefaultRuleSet returns the seed document for a module type.
func DefaultRuleSet(moduleType models.ModuleType) ([]byte, error) {
	switch moduleType {
	case models.ModuleSwiss:
		return []byte(defaultSwissConfig), nil
	case models.ModuleBracket:
		return []byte(defaultBracketConfig), nil
	case models.ModuleStatPredictions:
		return []byte(defaultStatConfig), nil
	default:
		return nil, fmt.Errorf("no default scoring config for module type '%s'", moduleType)
	}
}
