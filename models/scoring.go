package models

import (
	"gorm.io/datatypes"
)

// UserModuleScore is the persisted per-user total for one module, with the
// full audit breakdown of every rule that fired. Unique per (user, module) so
// score recalculation upserts instead of duplicating rows.
type UserModuleScore struct {
	ID           string `json:"id" gorm:"primaryKey"`
	UserID       string `json:"user_id" gorm:"not null;index:idx_user_module_score,unique"`
	ModuleID     string `json:"module_id" gorm:"not null;index:idx_user_module_score,unique"`
	TournamentID string `json:"tournament_id" gorm:"not null;index"`
	Points       int    `json:"points" gorm:"default:0"`

	// Detailed breakdown of how points were scored
	ScoreBreakdown datatypes.JSON `json:"score_breakdown"`
	IsFinal        bool           `json:"is_final" gorm:"default:false"`

	Timestamps
}

// UserTournamentScore is the per-user roll-up of every module score in a
// tournament, unique per (user, tournament).
type UserTournamentScore struct {
	ID           string `json:"id" gorm:"primaryKey"`
	UserID       string `json:"user_id" gorm:"not null;index:idx_user_tournament_score,unique"`
	TournamentID string `json:"tournament_id" gorm:"not null;index:idx_user_tournament_score,unique"`
	TotalPoints  int    `json:"total_points" gorm:"default:0"`
	IsFinal      bool   `json:"is_final" gorm:"default:false"`

	Timestamps
}
