package models

import (
	"time"

	"gorm.io/datatypes"
)

// ModuleType is the closed set of module variants. Dispatch on it with an
// exhaustive switch; there is no runtime registry.
type ModuleType string

const (
	ModuleSwiss           ModuleType = "swiss"
	ModuleBracket         ModuleType = "bracket"
	ModuleStatPredictions ModuleType = "stat_predictions"
)

// ModuleTypes lists every known variant, in a stable order.
var ModuleTypes = []ModuleType{ModuleSwiss, ModuleBracket, ModuleStatPredictions}

// Valid reports whether t is one of the known module variants.
func (t ModuleType) Valid() bool {
	switch t {
	case ModuleSwiss, ModuleBracket, ModuleStatPredictions:
		return true
	}
	return false
}

// Module is one scored contest instance within a tournament stage.
type Module struct {
	ID           string     `json:"id" gorm:"primaryKey"`
	Type         ModuleType `json:"type" gorm:"not null;index"`
	TournamentID string     `json:"tournament_id" gorm:"not null;index"`
	StageID      string     `json:"stage_id" gorm:"not null;index"`
	Slug         string     `json:"slug" gorm:"index"`
	Name         string     `json:"name" gorm:"not null"`
	Description  string     `json:"description"`

	StartDate          *time.Time `json:"start_date,omitempty"`
	EndDate            *time.Time `json:"end_date,omitempty"`
	PredictionDeadline *time.Time `json:"prediction_deadline,omitempty"`

	// ScoringConfig is the persisted rule-set document. Its JSON shape is
	// external configuration and must stay wire-stable.
	ScoringConfig datatypes.JSON `json:"scoring_config"`

	IsActive    bool       `json:"is_active" gorm:"default:true"`
	IsCompleted bool       `json:"is_completed" gorm:"default:false"`
	FinalizedAt *time.Time `json:"finalized_at,omitempty"`

	// FinalizeClaimedAt is the mutual-exclusion token for finalization: a
	// worker must win a conditional write on this column before running the
	// finalize body, so two deliveries of the same task cannot both proceed.
	FinalizeClaimedAt *time.Time `json:"-"`

	FinalizationDelayMinutes int  `json:"finalization_delay_minutes" gorm:"default:60"`
	BlockingAdvancement      bool `json:"blocking_advancement" gorm:"default:true"`

	// Bounds derived from the rule set; recomputed whenever it changes
	MaxScore int `json:"max_score" gorm:"default:0"`
	MinScore int `json:"min_score" gorm:"default:0"`

	// Stat-predictions constraints (unused by other variants)
	MaxPicksPerPlayer int  `json:"max_picks_per_player,omitempty" gorm:"default:1"`
	MaxPlayersPerTeam *int `json:"max_players_per_team,omitempty"`

	Tournament Tournament `json:"tournament,omitempty" gorm:"foreignKey:TournamentID"`
	Stage      Stage      `json:"stage,omitempty" gorm:"foreignKey:StageID"`
	Teams      []Team     `json:"teams,omitempty" gorm:"many2many:module_teams"`

	Timestamps
}

// HasEnded reports whether the module's end date has passed.
func (m *Module) HasEnded(now time.Time) bool {
	return m.EndDate != nil && !m.EndDate.After(now)
}

// FinalizationDue is when the finalization task should fire.
func (m *Module) FinalizationDue() time.Time {
	if m.EndDate == nil {
		return time.Time{}
	}
	return m.EndDate.Add(time.Duration(m.FinalizationDelayMinutes) * time.Minute)
}

// EffectiveSourceURL resolves the results page for the module's stage,
// falling back to the tournament-level page.
func (m *Module) EffectiveSourceURL() string {
	if m.Stage.SourceURL != "" {
		return m.Stage.SourceURL
	}
	return m.Tournament.SourceURL
}
