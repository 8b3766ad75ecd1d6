package services

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"fantasy-tournament-system/models"
)

// How long a finalization claim blocks other workers before it is considered
// abandoned and can be taken over.
const finalizeClaimTimeout = 15 * time.Minute

// Reminder tiers before the prediction deadline
var reminderTiers = []struct {
	MinutesBefore int
	Label         string
}{
	{24 * 60, "24 hours"},
	{2 * 60, "2 hours"},
	{30, "30 minutes"},
}

// LifecycleService drives a module from scheduled finalization through
// fetching, parsing, result mapping, final scoring, and completion.
type LifecycleService struct {
	DB            *gorm.DB
	Scheduler     *TaskScheduler
	Fetcher       *FetchService
	Scoring       *ScoringService
	Notifications *NotificationService
	Advancement   *AdvancementService
}

func NewLifecycleService(db *gorm.DB, scheduler *TaskScheduler, fetcher *FetchService, scoring *ScoringService, notifications *NotificationService, advancement *AdvancementService) *LifecycleService {
	return &LifecycleService{
		DB:            db,
		Scheduler:     scheduler,
		Fetcher:       fetcher,
		Scoring:       scoring,
		Notifications: notifications,
		Advancement:   advancement,
	}
}

// ScheduleFinalization upserts the module's finalization task at
// end_date + finalization delay. A module without an end date has its task
// cancelled instead.
func (l *LifecycleService) ScheduleFinalization(module *models.Module) error {
	if module.EndDate == nil {
		return l.CancelFinalization(module.ID)
	}
	return l.Scheduler.ScheduleOnce(
		FinalizeTaskName(module.ID),
		models.TaskFinalizeModule,
		module.ID,
		nil,
		module.FinalizationDue(),
	)
}

// CancelFinalization drops the module's pending finalization task.
func (l *LifecycleService) CancelFinalization(moduleID string) error {
	return l.Scheduler.Cancel(FinalizeTaskName(moduleID))
}

// ScheduleDeadlineReminders upserts one reminder task per tier, skipping
// tiers already in the past. Re-running after a deadline change moves every
// remaining tier.
func (l *LifecycleService) ScheduleDeadlineReminders(module *models.Module) error {
	if module.PredictionDeadline == nil {
		return l.CancelDeadlineReminders(module.ID)
	}

	now := time.Now().UTC()
	for _, tier := range reminderTiers {
		reminderAt := module.PredictionDeadline.Add(-time.Duration(tier.MinutesBefore) * time.Minute)
		if !reminderAt.After(now) {
			continue
		}
		err := l.Scheduler.ScheduleOnce(
			ReminderTaskName(module.ID, tier.MinutesBefore),
			models.TaskDeadlineReminder,
			module.ID,
			map[string]any{"label": tier.Label},
			reminderAt,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// CancelDeadlineReminders drops every reminder tier for a module.
func (l *LifecycleService) CancelDeadlineReminders(moduleID string) error {
	return l.Scheduler.CancelByPrefix(fmt.Sprintf("deadline_reminder_%s_", moduleID))
}

// SendDeadlineReminder broadcasts one reminder tier for a module.
func (l *LifecycleService) SendDeadlineReminder(moduleID, timeLabel string) error {
	var module models.Module
	if err := l.DB.Preload("Tournament").First(&module, "id = ?", moduleID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			log.Printf("⚠️ Module %s not found for deadline reminder", moduleID)
			return nil
		}
		return err
	}

	if module.PredictionDeadline == nil {
		return nil
	}

	l.Notifications.NotifyAll(
		"deadline_reminder",
		fmt.Sprintf("Deadline Reminder: %s", module.Name),
		fmt.Sprintf(
			"Prediction deadline in %s!\n\nModule: %s\nTournament: %s\nDeadline: %s\n\nSubmit your predictions now!",
			timeLabel,
			module.Name,
			module.Tournament.Name,
			module.PredictionDeadline.UTC().Format("2006-01-02 15:04 UTC"),
		),
	)
	log.Printf("Sent %s deadline reminder for module %s", timeLabel, moduleID)
	return nil
}

// FinalizeModule runs the full finalization flow for a module: fetch results,
// map them onto stored entities, score everything as final, mark the module
// complete, roll up the tournament, and check stage advancement.
//
// Re-runnable at every step; concurrent deliveries are excluded by a claim
// write on finalize_claimed_at.
func (l *LifecycleService) FinalizeModule(moduleID string) error {
	var module models.Module
	if err := l.DB.Preload("Tournament").Preload("Stage").First(&module, "id = ?", moduleID).Error; err != nil {
		return fmt.Errorf("module %s not found: %w", moduleID, err)
	}

	log.Printf("Starting finalization for %s module %s: %s", module.Type, module.ID, module.Name)

	if module.IsCompleted {
		log.Printf("⚠️ Module %s already completed, skipping", moduleID)
		return nil
	}

	now := time.Now().UTC()
	if !module.HasEnded(now) {
		log.Printf("⚠️ Module %s hasn't ended yet, skipping", moduleID)
		return nil
	}

	claimed, err := l.claimFinalization(&module, now)
	if err != nil {
		return err
	}
	if !claimed {
		log.Printf("⚠️ Module %s finalization already claimed by another worker, skipping", moduleID)
		return nil
	}

	if err := l.finalizeByType(&module); err != nil {
		l.releaseClaim(&module)
		return err
	}

	finalizedAt := time.Now().UTC()
	err = l.DB.Model(&module).Updates(map[string]any{
		"is_completed": true,
		"finalized_at": finalizedAt,
	}).Error
	if err != nil {
		return fmt.Errorf("failed to mark module %s completed: %w", moduleID, err)
	}
	module.IsCompleted = true
	module.FinalizedAt = &finalizedAt

	if _, err := l.Scoring.AggregateTournament(module.TournamentID); err != nil {
		log.Printf("⚠️ Failed to aggregate tournament %s: %v", module.TournamentID, err)
	}

	log.Printf("✅ Successfully finalized %s module %s", module.Type, module.ID)

	if err := l.Advancement.HandleModuleCompleted(&module); err != nil {
		log.Printf("⚠️ Stage advancement check failed for module %s: %v", module.ID, err)
	}
	return nil
}

// claimFinalization takes the mutual-exclusion token with a conditional
// write. Only the worker whose UPDATE lands proceeds; a claim older than the
// timeout is treated as abandoned and taken over.
func (l *LifecycleService) claimFinalization(module *models.Module, now time.Time) (bool, error) {
	staleBefore := now.Add(-finalizeClaimTimeout)
	result := l.DB.Model(&models.Module{}).
		Where("id = ? AND is_completed = ? AND (finalize_claimed_at IS NULL OR finalize_claimed_at < ?)",
			module.ID, false, staleBefore).
		Update("finalize_claimed_at", now)
	if result.Error != nil {
		return false, fmt.Errorf("failed to claim finalization: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (l *LifecycleService) releaseClaim(module *models.Module) {
	if err := l.DB.Model(module).Update("finalize_claimed_at", nil).Error; err != nil {
		log.Printf("⚠️ Failed to release finalization claim for module %s: %v", module.ID, err)
	}
}

func (l *LifecycleService) finalizeByType(module *models.Module) error {
	switch module.Type {
	case models.ModuleSwiss:
		return l.finalizeSwiss(module)
	case models.ModuleBracket:
		return l.finalizeBracket(module)
	case models.ModuleStatPredictions:
		return l.finalizeStats(module)
	default:
		return fmt.Errorf("no finalization handler for module type '%s'", module.Type)
	}
}

func (l *LifecycleService) finalizeSwiss(module *models.Module) error {
	sourceURL := module.EffectiveSourceURL()
	if sourceURL == "" {
		return fmt.Errorf("module %s has no results source URL", module.ID)
	}

	body, err := l.Fetcher.Fetch(sourceURL, module, false)
	if err != nil {
		return err
	}

	rows, err := ParseSwissRecords(body)
	if err != nil {
		return err
	}
	log.Printf("Parsed %d final records for module %s", len(rows), module.ID)

	teamBySourceID, err := l.teamsBySourceID()
	if err != nil {
		return err
	}

	var options []models.SwissRecordOption
	if err := l.DB.Where("module_id = ?", module.ID).Find(&options).Error; err != nil {
		return fmt.Errorf("failed to load record options: %w", err)
	}
	optionByRecord := make(map[string]*models.SwissRecordOption, len(options))
	for i := range options {
		optionByRecord[options[i].Record()] = &options[i]
	}

	saved := 0
	for _, row := range rows {
		team, ok := teamBySourceID[row.TeamSourceID]
		if !ok {
			log.Printf("⚠️ Team with source id %d in results but not in database, skipping", row.TeamSourceID)
			continue
		}
		option, ok := optionByRecord[row.Record]
		if !ok {
			log.Printf("⚠️ Record '%s' for team %s has no matching option in module %s, skipping", row.Record, team.Name, module.ID)
			continue
		}

		result := models.SwissResult{
			ID:       uuid.New().String(),
			ModuleID: module.ID,
			TeamID:   team.ID,
			RecordID: option.ID,
		}
		err := l.DB.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "module_id"}, {Name: "team_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"record_id", "updated_at"}),
		}).Create(&result).Error
		if err != nil {
			return fmt.Errorf("failed to save swiss result: %w", err)
		}
		saved++
	}
	log.Printf("Saved %d swiss results for module %s", saved, module.ID)

	_, err = l.Scoring.FinalizeScores(module)
	return err
}

func (l *LifecycleService) finalizeBracket(module *models.Module) error {
	sourceURL := module.EffectiveSourceURL()
	if sourceURL == "" {
		return fmt.Errorf("module %s has no results source URL", module.ID)
	}

	body, err := l.Fetcher.Fetch(sourceURL, module, false)
	if err != nil {
		return err
	}

	results, err := ParseBracketResults(body)
	if err != nil {
		return err
	}

	var matches []models.BracketMatch
	if err := l.DB.Where("module_id = ? AND source_match_id IS NOT NULL", module.ID).Find(&matches).Error; err != nil {
		return fmt.Errorf("failed to load bracket matches: %w", err)
	}
	matchBySourceID := make(map[int]*models.BracketMatch, len(matches))
	for i := range matches {
		matchBySourceID[*matches[i].SourceMatchID] = &matches[i]
	}

	teamBySourceID, err := l.teamsBySourceID()
	if err != nil {
		return err
	}

	updated := 0
	for _, parsed := range results {
		match, ok := matchBySourceID[parsed.SourceMatchID]
		if !ok {
			continue
		}
		if parsed.WinnerSourceID == nil {
			continue
		}
		winner, ok := teamBySourceID[*parsed.WinnerSourceID]
		if !ok {
			log.Printf("⚠️ Winner team %d not found in database", *parsed.WinnerSourceID)
			continue
		}

		err := l.DB.Model(match).Updates(map[string]any{
			"team_a_score": parsed.TeamAScore,
			"team_b_score": parsed.TeamBScore,
			"winner_id":    winner.ID,
		}).Error
		if err != nil {
			return fmt.Errorf("failed to update bracket match: %w", err)
		}
		updated++
	}
	log.Printf("Updated %d bracket matches for module %s", updated, module.ID)

	_, err = l.Scoring.FinalizeScores(module)
	return err
}

func (l *LifecycleService) finalizeStats(module *models.Module) error {
	var definitions []models.StatDefinition
	if err := l.DB.Where("module_id = ?", module.ID).Find(&definitions).Error; err != nil {
		return fmt.Errorf("failed to load stat definitions: %w", err)
	}

	processed := 0
	skipped := 0
	for i := range definitions {
		definition := &definitions[i]
		if definition.SourceURL == "" {
			log.Printf("⚠️ Definition %s (%s) has no source URL, skipping", definition.ID, definition.Title)
			skipped++
			continue
		}

		body, err := l.Fetcher.Fetch(definition.SourceURL, module, false)
		if err != nil {
			return err
		}

		leaderboard, err := ParseLeaderboard(body, definition.InvertResults)
		if err != nil {
			return err
		}
		if len(leaderboard) == 0 {
			log.Printf("⚠️ No leaderboard data parsed for %s", definition.Title)
			skipped++
			continue
		}

		encoded, err := json.Marshal(leaderboard)
		if err != nil {
			return fmt.Errorf("failed to encode leaderboard: %w", err)
		}

		result := models.StatResult{
			ID:           uuid.New().String(),
			DefinitionID: definition.ID,
			Results:      datatypes.JSON(encoded),
			IsFinal:      true,
		}
		err = l.DB.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "definition_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"results", "is_final", "updated_at"}),
		}).Create(&result).Error
		if err != nil {
			return fmt.Errorf("failed to save stat result: %w", err)
		}
		processed++
	}
	log.Printf("Processed %d definitions, skipped %d", processed, skipped)

	_, err := l.Scoring.FinalizeScores(module)
	return err
}

func (l *LifecycleService) teamsBySourceID() (map[int]*models.Team, error) {
	var teams []models.Team
	if err := l.DB.Where("source_id != 0").Find(&teams).Error; err != nil {
		return nil, fmt.Errorf("failed to load teams: %w", err)
	}
	bySourceID := make(map[int]*models.Team, len(teams))
	for i := range teams {
		bySourceID[teams[i].SourceID] = &teams[i]
	}
	return bySourceID, nil
}
