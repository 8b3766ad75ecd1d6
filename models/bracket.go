package models

import (
	"gorm.io/datatypes"
)

// BracketMatch is one slot of a single-elimination bracket. Feeder
// relationships are stored as parent-id edges (WinnerToMatchID /
// LoserToMatchID) rather than live references, so the match graph can be
// validated acyclic at construction time and traversed by id lookup.
type BracketMatch struct {
	ID       string `json:"id" gorm:"primaryKey"`
	ModuleID string `json:"module_id" gorm:"not null;index"`
	Name     string `json:"name"`
	Round    int    `json:"round" gorm:"not null"`
	BestOf   int    `json:"best_of" gorm:"default:3"`

	// Match id on the results source; the join key for finalization
	SourceMatchID *int `json:"source_match_id,omitempty" gorm:"uniqueIndex"`

	TeamAID *string `json:"team_a_id,omitempty"`
	TeamBID *string `json:"team_b_id,omitempty"`

	TeamAScore *int    `json:"team_a_score,omitempty"`
	TeamBScore *int    `json:"team_b_score,omitempty"`
	WinnerID   *string `json:"winner_id,omitempty"`

	WinnerToMatchID *string `json:"winner_to_match_id,omitempty" gorm:"index"`
	LoserToMatchID  *string `json:"loser_to_match_id,omitempty" gorm:"index"`

	// Tags for special scoring rules, e.g., ["final", "semi-final"]
	Tags datatypes.JSONSlice[string] `json:"tags"`

	TeamA  *Team `json:"team_a,omitempty" gorm:"foreignKey:TeamAID"`
	TeamB  *Team `json:"team_b,omitempty" gorm:"foreignKey:TeamBID"`
	Winner *Team `json:"winner,omitempty" gorm:"foreignKey:WinnerID"`

	Timestamps
}

// LoserID derives the losing team: the one of the pair that is not the
// winner. Nil until the match has a winner and both teams.
func (m *BracketMatch) LoserID() *string {
	if m.WinnerID == nil || m.TeamAID == nil || m.TeamBID == nil {
		return nil
	}
	if *m.WinnerID == *m.TeamAID {
		return m.TeamBID
	}
	return m.TeamAID
}

// BracketPrediction is a user's bracket sheet: one parent row owning per-match
// picks, unique per (user, module).
type BracketPrediction struct {
	ID       string `json:"id" gorm:"primaryKey"`
	UserID   string `json:"user_id" gorm:"not null;index:idx_bracket_pred,unique"`
	ModuleID string `json:"module_id" gorm:"not null;index:idx_bracket_pred,unique"`

	MatchPredictions []MatchPrediction `json:"match_predictions,omitempty" gorm:"foreignKey:BracketPredictionID"`

	Timestamps
}

// MatchPrediction is one pick within a bracket sheet
type MatchPrediction struct {
	ID                  string `json:"id" gorm:"primaryKey"`
	BracketPredictionID string `json:"bracket_prediction_id" gorm:"not null;index:idx_match_pred,unique"`
	MatchID             string `json:"match_id" gorm:"not null;index:idx_match_pred,unique"`

	TeamAID           *string `json:"team_a_id,omitempty"`
	TeamBID           *string `json:"team_b_id,omitempty"`
	PredictedWinnerID string  `json:"predicted_winner_id" gorm:"not null"`
	PredictedTeamAScore *int  `json:"predicted_team_a_score,omitempty"`
	PredictedTeamBScore *int  `json:"predicted_team_b_score,omitempty"`

	Timestamps
}

// PredictedLoserID mirrors BracketMatch.LoserID for the predicted pairing.
func (p *MatchPrediction) PredictedLoserID() *string {
	if p.PredictedWinnerID == "" || p.TeamAID == nil || p.TeamBID == nil {
		return nil
	}
	if p.PredictedWinnerID == *p.TeamAID {
		return p.TeamBID
	}
	return p.TeamAID
}
