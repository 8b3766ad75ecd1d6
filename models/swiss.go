package models

import (
	"fmt"

	"gorm.io/datatypes"
)

// SwissRecordOption is one predictable final record (e.g., 3-1) within a
// Swiss module, grouped into outcome buckets like "Qualified"/"Eliminated".
type SwissRecordOption struct {
	ID           string                      `json:"id" gorm:"primaryKey"`
	ModuleID     string                      `json:"module_id" gorm:"not null;index:idx_swiss_option_record,unique"`
	Wins         int                         `json:"wins" gorm:"index:idx_swiss_option_record,unique"`
	Losses       int                         `json:"losses" gorm:"index:idx_swiss_option_record,unique"`
	Groups       datatypes.JSONSlice[string] `json:"groups"`
	LimitPerUser int                         `json:"limit_per_user" gorm:"default:3"`

	Timestamps
}

// Record renders the canonical "W-L" form used to join parsed results.
func (o *SwissRecordOption) Record() string {
	return fmt.Sprintf("%d-%d", o.Wins, o.Losses)
}

// SwissPrediction is a user's predicted final record for one team
type SwissPrediction struct {
	ID                string `json:"id" gorm:"primaryKey"`
	UserID            string `json:"user_id" gorm:"not null;index;index:idx_swiss_pred,unique"`
	ModuleID          string `json:"module_id" gorm:"not null;index:idx_swiss_pred,unique"`
	TeamID            string `json:"team_id" gorm:"not null;index:idx_swiss_pred,unique"`
	PredictedRecordID string `json:"predicted_record_id" gorm:"not null"`
	SortOrder         int    `json:"sort_order" gorm:"column:sort_order;default:0"`

	Team            Team              `json:"team,omitempty" gorm:"foreignKey:TeamID"`
	PredictedRecord SwissRecordOption `json:"predicted_record,omitempty" gorm:"foreignKey:PredictedRecordID"`

	Timestamps
}

// SwissResult is the authoritative final record for one team in the module,
// keyed by (module, team) so finalization re-runs upsert instead of append.
type SwissResult struct {
	ID       string `json:"id" gorm:"primaryKey"`
	ModuleID string `json:"module_id" gorm:"not null;index:idx_swiss_result,unique"`
	TeamID   string `json:"team_id" gorm:"not null;index:idx_swiss_result,unique"`
	RecordID string `json:"record_id" gorm:"not null"`

	Team   Team              `json:"team,omitempty" gorm:"foreignKey:TeamID"`
	Record SwissRecordOption `json:"record,omitempty" gorm:"foreignKey:RecordID"`

	Timestamps
}
