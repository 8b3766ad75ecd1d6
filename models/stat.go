package models

import (
	"gorm.io/datatypes"
)

// StatDefinition is one predictable market within a stat-predictions module
// (e.g., "Highest rated player"). A definition-level scoring rule overrides
// the module's rule set for its own predictions.
type StatDefinition struct {
	ID       string `json:"id" gorm:"primaryKey"`
	ModuleID string `json:"module_id" gorm:"not null;index"`
	Title    string `json:"title" gorm:"not null"`
	// Key linking predictions to results (e.g., "rating", "kills")
	PredictionKey string `json:"prediction_key"`

	// Leaderboard page for this stat; populated from a category template
	SourceURL string `json:"source_url"`

	// Reverse the parsed leaderboard when lower values are better
	// (e.g., "Deaths per round")
	InvertResults bool `json:"invert_results" gorm:"default:false"`

	// Optional rule-set override; nil means use the module's ScoringConfig
	ScoringRule datatypes.JSON `json:"scoring_rule,omitempty"`

	Timestamps
}

// StatPrediction is a user's pick for one definition
type StatPrediction struct {
	ID           string `json:"id" gorm:"primaryKey"`
	UserID       string `json:"user_id" gorm:"not null;index:idx_stat_pred,unique"`
	DefinitionID string `json:"definition_id" gorm:"not null;index:idx_stat_pred,unique"`

	PlayerID       *string  `json:"player_id,omitempty"`
	TeamID         *string  `json:"team_id,omitempty"`
	PredictedValue *float64 `json:"predicted_value,omitempty"`

	Player     *Player        `json:"player,omitempty" gorm:"foreignKey:PlayerID"`
	Team       *Team          `json:"team,omitempty" gorm:"foreignKey:TeamID"`
	Definition StatDefinition `json:"definition,omitempty" gorm:"foreignKey:DefinitionID"`

	Timestamps
}

// StatResult stores the parsed final leaderboard for one definition, one row
// per definition so finalization re-runs overwrite rather than append.
type StatResult struct {
	ID           string `json:"id" gorm:"primaryKey"`
	DefinitionID string `json:"definition_id" gorm:"not null;uniqueIndex"`

	// Leaderboard entries: [{"source_id":..,"name":..,"value":..,"position":..}]
	Results datatypes.JSON `json:"results"`
	IsFinal bool           `json:"is_final" gorm:"default:false"`

	Timestamps
}
