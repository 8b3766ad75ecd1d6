package models

import (
	"time"
)

// Tournament is a competition that contains stages and prediction modules
type Tournament struct {
	ID          string    `json:"id" gorm:"primaryKey"`
	Slug        string    `json:"slug" gorm:"uniqueIndex"`
	Name        string    `json:"name" gorm:"not null"`
	Description string    `json:"description"`
	StartDate   time.Time `json:"start_date" gorm:"not null"`
	EndDate     time.Time `json:"end_date"`
	IsActive    bool      `json:"is_active" gorm:"default:true"`

	// Results source page for this tournament on the stats site
	SourceURL     string `json:"source_url"`
	SourceEventID int    `json:"source_event_id" gorm:"index"`

	// Relationships
	Stages  []Stage  `json:"stages,omitempty" gorm:"foreignKey:TournamentID"`
	Modules []Module `json:"modules,omitempty" gorm:"foreignKey:TournamentID"`

	Timestamps
}

// StatusLabel reports where the tournament sits relative to now.
func (t *Tournament) StatusLabel(now time.Time) string {
	switch {
	case t.StartDate.After(now):
		return "Upcoming"
	case !t.EndDate.IsZero() && t.EndDate.Before(now):
		return "Finished"
	default:
		return "Ongoing"
	}
}

// Stage groups modules into an ordered phase of a tournament. Stages form a
// singly-linked progression via NextStageID; advancement activates the next
// stage once every blocking module in this one completes.
type Stage struct {
	ID           string     `json:"id" gorm:"primaryKey"`
	TournamentID string     `json:"tournament_id" gorm:"not null;index"`
	Name         string     `json:"name" gorm:"not null"`
	SortOrder    int        `json:"sort_order" gorm:"column:sort_order;default:0"`
	StartDate    *time.Time `json:"start_date,omitempty"`
	EndDate      *time.Time `json:"end_date,omitempty"`
	IsActive     bool       `json:"is_active" gorm:"default:false"`
	IsCompleted  bool       `json:"is_completed" gorm:"default:false"`
	NextStageID  *string    `json:"next_stage_id,omitempty" gorm:"index"`

	// Optional stage-level source page; falls back to the tournament's
	SourceURL     string `json:"source_url"`
	SourceEventID int    `json:"source_event_id"`

	Tournament Tournament `json:"tournament,omitempty" gorm:"foreignKey:TournamentID"`
	Modules    []Module   `json:"modules,omitempty" gorm:"foreignKey:StageID"`

	Timestamps
}
