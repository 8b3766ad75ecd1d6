package models

import (
	"time"

	"gorm.io/datatypes"
)

// TaskKind is the closed set of scheduled work this service runs.
type TaskKind string

const (
	TaskFinalizeModule   TaskKind = "finalize_module"
	TaskPopulateStage    TaskKind = "populate_stage"
	TaskDeadlineReminder TaskKind = "deadline_reminder"
)

// Task statuses. Pending tasks whose RunAt has passed are picked up by the
// scheduler poll loop; delivery is at-least-once, so every handler body must
// be safely re-runnable.
const (
	TaskStatusPending = "pending"
	TaskStatusDone    = "done"
	TaskStatusFailed  = "failed"
)

// ScheduledTask is one named, one-shot unit of delayed work. Names are
// deterministic, so scheduling is upsert-by-name and cancellation is
// delete-by-name — "reschedule" and "cancel-if-exists" are naturally
// idempotent.
type ScheduledTask struct {
	ID   string   `json:"id" gorm:"primaryKey"`
	Name string   `json:"name" gorm:"uniqueIndex;not null"`
	Kind TaskKind `json:"kind" gorm:"not null;index"`

	// EntityID is the module/stage the task operates on
	EntityID string         `json:"entity_id" gorm:"not null"`
	Args     datatypes.JSON `json:"args,omitempty"`

	RunAt     time.Time  `json:"run_at" gorm:"not null;index"`
	Status    string     `json:"status" gorm:"default:'pending';index"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	LastError string     `json:"last_error,omitempty"`

	Timestamps
}
