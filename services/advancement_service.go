package services

import (
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"fantasy-tournament-system/models"
)

// AdvancementService moves a tournament from one stage to the next once every
// blocking module in the current stage has completed. Non-blocking modules
// never hold a stage back.
type AdvancementService struct {
	DB            *gorm.DB
	Scheduler     *TaskScheduler
	Notifications *NotificationService
}

func NewAdvancementService(db *gorm.DB, scheduler *TaskScheduler, notifications *NotificationService) *AdvancementService {
	return &AdvancementService{DB: db, Scheduler: scheduler, Notifications: notifications}
}

// HandleModuleCompleted checks whether the module's stage can now advance.
// Called after every module finalization; cheap when blockers remain.
func (a *AdvancementService) HandleModuleCompleted(module *models.Module) error {
	var incomplete int64
	err := a.DB.Model(&models.Module{}).
		Where("stage_id = ? AND blocking_advancement = ? AND is_completed = ?", module.StageID, true, false).
		Count(&incomplete).Error
	if err != nil {
		return fmt.Errorf("failed to count blocking modules: %w", err)
	}
	if incomplete > 0 {
		log.Printf("Stage %s still has %d blocking module(s) incomplete", module.StageID, incomplete)
		return nil
	}

	return a.completeStage(module.StageID)
}

// completeStage marks the stage done and activates its successor. The
// conditional write on is_completed makes the transition fire exactly once no
// matter how many module completions race into it.
func (a *AdvancementService) completeStage(stageID string) error {
	result := a.DB.Model(&models.Stage{}).
		Where("id = ? AND is_completed = ?", stageID, false).
		Updates(map[string]any{"is_completed": true, "is_active": false})
	if result.Error != nil {
		return fmt.Errorf("failed to complete stage %s: %w", stageID, result.Error)
	}
	if result.RowsAffected == 0 {
		log.Printf("Stage %s already completed, skipping advancement", stageID)
		return nil
	}

	var stage models.Stage
	if err := a.DB.Preload("Tournament").First(&stage, "id = ?", stageID).Error; err != nil {
		return fmt.Errorf("stage %s not found: %w", stageID, err)
	}
	log.Printf("✅ Stage completed: %s", stage.Name)

	if stage.NextStageID == nil {
		log.Printf("Stage %s has no next stage; tournament %s progression ends here", stage.Name, stage.TournamentID)
		return nil
	}

	return a.activateNextStage(&stage, *stage.NextStageID)
}

func (a *AdvancementService) activateNextStage(previous *models.Stage, nextStageID string) error {
	var next models.Stage
	if err := a.DB.First(&next, "id = ?", nextStageID).Error; err != nil {
		return fmt.Errorf("next stage %s not found: %w", nextStageID, err)
	}

	if err := a.DB.Model(&next).Update("is_active", true).Error; err != nil {
		return fmt.Errorf("failed to activate stage %s: %w", nextStageID, err)
	}
	log.Printf("✅ Activated next stage: %s", next.Name)

	// Population runs through the task queue, immediately
	err := a.Scheduler.ScheduleOnce(
		PopulateTaskName(nextStageID, 0),
		models.TaskPopulateStage,
		nextStageID,
		map[string]any{"attempt": 0},
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule population for stage %s: %w", nextStageID, err)
	}

	a.Notifications.NotifyAll(
		"stage_advanced",
		fmt.Sprintf("New Stage Live: %s", next.Name),
		fmt.Sprintf("%s has finished. %s is now open for predictions!", previous.Name, next.Name),
	)
	return nil
}
