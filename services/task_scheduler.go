package services

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"fantasy-tournament-system/models"
)

// Deterministic task names. Scheduling the same work twice upserts the same
// row, so a rescheduled finalization moves instead of duplicating.

// FinalizeTaskName is the task name for a module's finalization.
func FinalizeTaskName(moduleID string) string {
	return fmt.Sprintf("finalize_module_%s", moduleID)
}

// PopulateTaskName is the task name for a stage population run. Retries get
// distinct names so a retry never clobbers the record of the initial attempt.
func PopulateTaskName(stageID string, attempt int) string {
	if attempt == 0 {
		return fmt.Sprintf("populate_stage_%s", stageID)
	}
	return fmt.Sprintf("populate_stage_%s_retry_%d", stageID, attempt)
}

// ReminderTaskName is the task name for one deadline reminder tier.
func ReminderTaskName(moduleID string, minutesBefore int) string {
	return fmt.Sprintf("deadline_reminder_%s_%dmin", moduleID, minutesBefore)
}

// TaskRunner executes one due task. Implemented by TaskDispatcher; split out
// so scheduler tests can plug in a recorder.
type TaskRunner interface {
	Run(task *models.ScheduledTask) error
}

// TaskScheduler persists one-shot delayed work as ScheduledTask rows and runs
// a poll loop that executes rows whose RunAt has passed. Delivery is
// at-least-once: a crash between execution and the status update re-delivers,
// so every task body must be safely re-runnable.
type TaskScheduler struct {
	DB     *gorm.DB
	Runner TaskRunner

	sched gocron.Scheduler
}

func NewTaskScheduler(db *gorm.DB, runner TaskRunner) *TaskScheduler {
	return &TaskScheduler{DB: db, Runner: runner}
}

// ScheduleOnce upserts a pending task by name. Re-scheduling an existing name
// moves its RunAt and resets it to pending.
func (s *TaskScheduler) ScheduleOnce(name string, kind models.TaskKind, entityID string, args map[string]any, runAt time.Time) error {
	var argsJSON datatypes.JSON
	if args != nil {
		encoded, err := json.Marshal(args)
		if err != nil {
			return fmt.Errorf("failed to encode task args: %w", err)
		}
		argsJSON = datatypes.JSON(encoded)
	}

	task := models.ScheduledTask{
		ID:       uuid.New().String(),
		Name:     name,
		Kind:     kind,
		EntityID: entityID,
		Args:     argsJSON,
		RunAt:    runAt.UTC(),
		Status:   models.TaskStatusPending,
	}

	err := s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"kind", "entity_id", "args", "run_at", "status", "started_at", "last_error", "updated_at"}),
	}).Create(&task).Error
	if err != nil {
		return fmt.Errorf("failed to schedule task %s: %w", name, err)
	}

	log.Printf("⏰ Scheduled task %s at %s", name, runAt.UTC().Format(time.RFC3339))
	return nil
}

// Cancel removes a task by name. Cancelling a name that was never scheduled
// is a no-op.
func (s *TaskScheduler) Cancel(name string) error {
	return s.DB.Where("name = ?", name).Delete(&models.ScheduledTask{}).Error
}

// CancelByPrefix removes every task whose name starts with prefix, e.g. all
// reminder tiers of one module.
func (s *TaskScheduler) CancelByPrefix(prefix string) error {
	return s.DB.Where("name LIKE ?", prefix+"%").Delete(&models.ScheduledTask{}).Error
}

// Start launches the poll loop. Every minute it claims due pending tasks and
// runs them through the dispatcher.
func (s *TaskScheduler) Start() error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	s.sched = sched

	_, err = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(s.RunDueTasks),
	)
	if err != nil {
		return fmt.Errorf("failed to register poll job: %w", err)
	}

	sched.Start()
	log.Println("[Scheduler] Task poll loop started")
	return nil
}

// Stop shuts the poll loop down. In-flight tasks finish.
func (s *TaskScheduler) Stop() {
	if s.sched != nil {
		_ = s.sched.Shutdown()
	}
}

// RunDueTasks executes every pending task whose RunAt has passed. Exposed so
// tests can drive the loop without waiting on the clock.
func (s *TaskScheduler) RunDueTasks() {
	var tasks []models.ScheduledTask
	now := time.Now().UTC()

	err := s.DB.Where("status = ? AND run_at <= ?", models.TaskStatusPending, now).
		Order("run_at asc").
		Find(&tasks).Error
	if err != nil {
		log.Printf("[Scheduler] DB error: %v", err)
		return
	}

	for i := range tasks {
		s.runTask(&tasks[i])
	}
}

func (s *TaskScheduler) runTask(task *models.ScheduledTask) {
	started := time.Now().UTC()
	task.StartedAt = &started
	if err := s.DB.Model(task).Updates(map[string]any{"started_at": started}).Error; err != nil {
		log.Printf("[Scheduler] Failed to mark task %s started: %v", task.Name, err)
		return
	}

	if err := s.Runner.Run(task); err != nil {
		log.Printf("❌ Task %s failed: %v", task.Name, err)
		s.finishTask(task, models.TaskStatusFailed, err.Error())
		return
	}

	log.Printf("✅ Task %s completed", task.Name)
	s.finishTask(task, models.TaskStatusDone, "")
}

func (s *TaskScheduler) finishTask(task *models.ScheduledTask, status, lastError string) {
	updates := map[string]any{"status": status, "last_error": lastError}
	if err := s.DB.Model(task).Updates(updates).Error; err != nil {
		log.Printf("[Scheduler] Failed to finish task %s: %v", task.Name, err)
	}
}

// TaskDispatcher routes due tasks to their handlers with an exhaustive switch
// over the closed TaskKind set.
type TaskDispatcher struct {
	Lifecycle  *LifecycleService
	Population *PopulationService
}

func (d *TaskDispatcher) Run(task *models.ScheduledTask) error {
	switch task.Kind {
	case models.TaskFinalizeModule:
		return d.Lifecycle.FinalizeModule(task.EntityID)

	case models.TaskPopulateStage:
		attempt := 0
		if v, ok := taskArg(task, "attempt"); ok {
			if f, isNum := v.(float64); isNum {
				attempt = int(f)
			}
		}
		return d.Population.PopulateStage(task.EntityID, attempt)

	case models.TaskDeadlineReminder:
		label := ""
		if v, ok := taskArg(task, "label"); ok {
			label, _ = v.(string)
		}
		return d.Lifecycle.SendDeadlineReminder(task.EntityID, label)

	default:
		return fmt.Errorf("unknown task kind '%s'", task.Kind)
	}
}

func taskArg(task *models.ScheduledTask, key string) (any, bool) {
	if len(task.Args) == 0 {
		return nil, false
	}
	var args map[string]any
	if err := json.Unmarshal(task.Args, &args); err != nil {
		return nil, false
	}
	v, ok := args[key]
	return v, ok
}
