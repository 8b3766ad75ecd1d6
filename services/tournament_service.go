package services

import (
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"fantasy-tournament-system/models"
	"fantasy-tournament-system/scoring"
)

// TournamentService is the HTTP-facing CRUD layer for tournaments, stages,
// and modules. Writes that affect scheduling (end dates, deadlines, delays)
// keep the task queue in sync.
type TournamentService struct {
	DB        *gorm.DB
	Lifecycle *LifecycleService
	Scoring   *ScoringService
}

func NewTournamentService(db *gorm.DB, lifecycle *LifecycleService, scoringService *ScoringService) *TournamentService {
	return &TournamentService{DB: db, Lifecycle: lifecycle, Scoring: scoringService}
}

type tournamentInput struct {
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	StartDate     *time.Time `json:"start_date"`
	EndDate       *time.Time `json:"end_date"`
	SourceURL     string     `json:"source_url"`
	SourceEventID int        `json:"source_event_id"`
}

func (s *TournamentService) CreateTournament(c *fiber.Ctx) error {
	var input tournamentInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
	}
	if input.Name == "" || input.StartDate == nil {
		return c.Status(400).JSON(fiber.Map{"error": "name and start_date are required"})
	}

	tournament := models.Tournament{
		ID:            uuid.New().String(),
		Slug:          slug.Make(input.Name),
		Name:          input.Name,
		Description:   input.Description,
		StartDate:     *input.StartDate,
		SourceURL:     input.SourceURL,
		SourceEventID: input.SourceEventID,
		IsActive:      true,
	}
	if input.EndDate != nil {
		tournament.EndDate = *input.EndDate
	}

	if err := s.DB.Create(&tournament).Error; err != nil {
		log.Printf("❌ Failed to create tournament: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to create tournament"})
	}

	log.Printf("✅ Created tournament: %s", tournament.Name)
	return c.Status(201).JSON(tournament)
}

func (s *TournamentService) GetTournament(c *fiber.Ctx) error {
	var tournament models.Tournament
	err := s.DB.Preload("Stages", func(db *gorm.DB) *gorm.DB {
		return db.Order("sort_order asc")
	}).Preload("Modules").First(&tournament, "id = ?", c.Params("id")).Error
	if err == gorm.ErrRecordNotFound {
		return c.Status(404).JSON(fiber.Map{"error": "tournament not found"})
	}
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to load tournament"})
	}
	return c.JSON(fiber.Map{
		"tournament": tournament,
		"status":     tournament.StatusLabel(time.Now().UTC()),
	})
}

func (s *TournamentService) ListTournaments(c *fiber.Ctx) error {
	var tournaments []models.Tournament
	if err := s.DB.Order("start_date desc").Find(&tournaments).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to list tournaments"})
	}
	return c.JSON(fiber.Map{"tournaments": tournaments})
}

type stageInput struct {
	Name          string     `json:"name"`
	SortOrder     int        `json:"sort_order"`
	StartDate     *time.Time `json:"start_date"`
	EndDate       *time.Time `json:"end_date"`
	IsActive      bool       `json:"is_active"`
	NextStageID   *string    `json:"next_stage_id"`
	SourceURL     string     `json:"source_url"`
	SourceEventID int        `json:"source_event_id"`
}

func (s *TournamentService) CreateStage(c *fiber.Ctx) error {
	tournamentID := c.Params("id")
	var tournament models.Tournament
	if err := s.DB.First(&tournament, "id = ?", tournamentID).Error; err != nil {
		return c.Status(404).JSON(fiber.Map{"error": "tournament not found"})
	}

	var input stageInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
	}
	if input.Name == "" {
		return c.Status(400).JSON(fiber.Map{"error": "name is required"})
	}

	stage := models.Stage{
		ID:            uuid.New().String(),
		TournamentID:  tournamentID,
		Name:          input.Name,
		SortOrder:     input.SortOrder,
		StartDate:     input.StartDate,
		EndDate:       input.EndDate,
		IsActive:      input.IsActive,
		NextStageID:   input.NextStageID,
		SourceURL:     input.SourceURL,
		SourceEventID: input.SourceEventID,
	}
	if err := s.DB.Create(&stage).Error; err != nil {
		log.Printf("❌ Failed to create stage: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to create stage"})
	}
	return c.Status(201).JSON(stage)
}

type moduleInput struct {
	Type                     string         `json:"type"`
	StageID                  string         `json:"stage_id"`
	Name                     string         `json:"name"`
	Description              string         `json:"description"`
	StartDate                *time.Time     `json:"start_date"`
	EndDate                  *time.Time     `json:"end_date"`
	PredictionDeadline       *time.Time     `json:"prediction_deadline"`
	ScoringConfig            datatypes.JSON `json:"scoring_config"`
	FinalizationDelayMinutes *int           `json:"finalization_delay_minutes"`
	BlockingAdvancement      *bool          `json:"blocking_advancement"`
	MaxPicksPerPlayer        *int           `json:"max_picks_per_player"`
	MaxPlayersPerTeam        *int           `json:"max_players_per_team"`
}

func (s *TournamentService) CreateModule(c *fiber.Ctx) error {
	tournamentID := c.Params("id")

	var input moduleInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
	}

	moduleType := models.ModuleType(input.Type)
	if !moduleType.Valid() {
		return c.Status(400).JSON(fiber.Map{"error": fmt.Sprintf("unknown module type '%s'", input.Type)})
	}
	if input.Name == "" || input.StageID == "" {
		return c.Status(400).JSON(fiber.Map{"error": "name and stage_id are required"})
	}

	var stage models.Stage
	if err := s.DB.First(&stage, "id = ?", input.StageID).Error; err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "stage_id not found"})
	}
	if stage.TournamentID != tournamentID {
		return c.Status(400).JSON(fiber.Map{"error": "stage does not belong to this tournament"})
	}

	config := input.ScoringConfig
	if len(config) == 0 {
		seed, err := scoring.DefaultRuleSet(moduleType)
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": "failed to seed scoring config"})
		}
		config = datatypes.JSON(seed)
	}
	if errs := scoring.Validate(config); len(errs) > 0 {
		return c.Status(400).JSON(fiber.Map{"error": "invalid scoring config", "details": errs})
	}

	module := models.Module{
		ID:                 uuid.New().String(),
		Type:               moduleType,
		TournamentID:       tournamentID,
		StageID:            input.StageID,
		Slug:               slug.Make(input.Name),
		Name:               input.Name,
		Description:        input.Description,
		StartDate:          input.StartDate,
		EndDate:            input.EndDate,
		PredictionDeadline: input.PredictionDeadline,
		ScoringConfig:      config,
		IsActive:           true,
	}
	if input.FinalizationDelayMinutes != nil {
		module.FinalizationDelayMinutes = *input.FinalizationDelayMinutes
	} else {
		module.FinalizationDelayMinutes = 60
	}
	if input.BlockingAdvancement != nil {
		module.BlockingAdvancement = *input.BlockingAdvancement
	} else {
		module.BlockingAdvancement = true
	}
	if input.MaxPicksPerPlayer != nil {
		module.MaxPicksPerPlayer = *input.MaxPicksPerPlayer
	} else {
		module.MaxPicksPerPlayer = 1
	}
	module.MaxPlayersPerTeam = input.MaxPlayersPerTeam

	s.applyScoreBounds(&module)

	if err := s.DB.Create(&module).Error; err != nil {
		log.Printf("❌ Failed to create module: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to create module"})
	}

	if err := s.Lifecycle.ScheduleFinalization(&module); err != nil {
		log.Printf("⚠️ Failed to schedule finalization for module %s: %v", module.ID, err)
	}
	if err := s.Lifecycle.ScheduleDeadlineReminders(&module); err != nil {
		log.Printf("⚠️ Failed to schedule reminders for module %s: %v", module.ID, err)
	}

	log.Printf("✅ Created %s module: %s", module.Type, module.Name)
	return c.Status(201).JSON(module)
}

func (s *TournamentService) UpdateModule(c *fiber.Ctx) error {
	var module models.Module
	if err := s.DB.First(&module, "id = ?", c.Params("moduleId")).Error; err != nil {
		return c.Status(404).JSON(fiber.Map{"error": "module not found"})
	}

	var input moduleInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
	}

	endDateChanged := false
	deadlineChanged := false

	if input.Name != "" {
		module.Name = input.Name
		module.Slug = slug.Make(input.Name)
	}
	if input.Description != "" {
		module.Description = input.Description
	}
	if input.StartDate != nil {
		module.StartDate = input.StartDate
	}
	if input.EndDate != nil {
		module.EndDate = input.EndDate
		endDateChanged = true
	}
	if input.PredictionDeadline != nil {
		module.PredictionDeadline = input.PredictionDeadline
		deadlineChanged = true
	}
	if input.FinalizationDelayMinutes != nil {
		module.FinalizationDelayMinutes = *input.FinalizationDelayMinutes
		endDateChanged = true
	}
	if input.BlockingAdvancement != nil {
		module.BlockingAdvancement = *input.BlockingAdvancement
	}
	if input.MaxPicksPerPlayer != nil {
		module.MaxPicksPerPlayer = *input.MaxPicksPerPlayer
	}
	if input.MaxPlayersPerTeam != nil {
		module.MaxPlayersPerTeam = input.MaxPlayersPerTeam
	}
	if len(input.ScoringConfig) > 0 {
		if errs := scoring.Validate(input.ScoringConfig); len(errs) > 0 {
			return c.Status(400).JSON(fiber.Map{"error": "invalid scoring config", "details": errs})
		}
		module.ScoringConfig = input.ScoringConfig
		s.applyScoreBounds(&module)
	}

	if err := s.DB.Save(&module).Error; err != nil {
		log.Printf("❌ Failed to update module %s: %v", module.ID, err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to update module"})
	}

	if endDateChanged {
		if err := s.Lifecycle.ScheduleFinalization(&module); err != nil {
			log.Printf("⚠️ Failed to reschedule finalization for module %s: %v", module.ID, err)
		}
	}
	if deadlineChanged {
		if err := s.Lifecycle.ScheduleDeadlineReminders(&module); err != nil {
			log.Printf("⚠️ Failed to reschedule reminders for module %s: %v", module.ID, err)
		}
	}

	return c.JSON(module)
}

func (s *TournamentService) DeleteModule(c *fiber.Ctx) error {
	moduleID := c.Params("moduleId")
	var module models.Module
	if err := s.DB.First(&module, "id = ?", moduleID).Error; err != nil {
		return c.Status(404).JSON(fiber.Map{"error": "module not found"})
	}

	if err := s.Lifecycle.CancelFinalization(moduleID); err != nil {
		log.Printf("⚠️ Failed to cancel finalization for module %s: %v", moduleID, err)
	}
	if err := s.Lifecycle.CancelDeadlineReminders(moduleID); err != nil {
		log.Printf("⚠️ Failed to cancel reminders for module %s: %v", moduleID, err)
	}

	if err := s.DB.Delete(&module).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to delete module"})
	}

	log.Printf("🗑️ Deleted module: %s", module.Name)
	return c.JSON(fiber.Map{"status": "deleted"})
}

// RecalculateScores recomputes non-final scores for a module on demand.
func (s *TournamentService) RecalculateScores(c *fiber.Ctx) error {
	var module models.Module
	if err := s.DB.First(&module, "id = ?", c.Params("moduleId")).Error; err != nil {
		return c.Status(404).JSON(fiber.Map{"error": "module not found"})
	}

	count, err := s.Scoring.UpdateScores(&module)
	if err != nil {
		log.Printf("❌ Failed to recalculate scores for module %s: %v", module.ID, err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to recalculate scores"})
	}
	return c.JSON(fiber.Map{"status": "ok", "updated": count})
}

// RecalculateTournamentScores recomputes every module in a tournament and
// refreshes the roll-up. Modules that fail to score are reported, not fatal.
func (s *TournamentService) RecalculateTournamentScores(c *fiber.Ctx) error {
	tournamentID := c.Params("id")
	var modules []models.Module
	if err := s.DB.Where("tournament_id = ?", tournamentID).Find(&modules).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to load modules"})
	}
	if len(modules) == 0 {
		return c.Status(404).JSON(fiber.Map{"error": "tournament has no modules"})
	}

	updated := 0
	var failed []string
	for i := range modules {
		count, err := s.Scoring.UpdateScores(&modules[i])
		if err != nil {
			log.Printf("❌ Failed to recalculate scores for module %s: %v", modules[i].ID, err)
			failed = append(failed, modules[i].ID)
			continue
		}
		updated += count
	}

	if _, err := s.Scoring.AggregateTournament(tournamentID); err != nil {
		log.Printf("⚠️ Failed to aggregate tournament %s: %v", tournamentID, err)
	}

	response := fiber.Map{"status": "ok", "updated": updated}
	if len(failed) > 0 {
		response["failed_modules"] = failed
	}
	return c.JSON(response)
}

type leaderboardRow struct {
	Position    int    `json:"position"`
	UserID      string `json:"user_id"`
	TotalPoints int    `json:"total_points"`
	IsFinal     bool   `json:"is_final"`
}

// GetLeaderboard returns the tournament standings with shared positions for
// tied totals: points [10, 10, 8] rank as positions [1, 1, 2].
func (s *TournamentService) GetLeaderboard(c *fiber.Ctx) error {
	tournamentID := c.Params("id")

	var scores []models.UserTournamentScore
	if err := s.DB.Where("tournament_id = ?", tournamentID).Find(&scores).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to load leaderboard"})
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].TotalPoints > scores[j].TotalPoints
	})

	rows := make([]leaderboardRow, len(scores))
	position := 0
	for i, score := range scores {
		if i == 0 || score.TotalPoints != scores[i-1].TotalPoints {
			position++
		}
		rows[i] = leaderboardRow{
			Position:    position,
			UserID:      score.UserID,
			TotalPoints: score.TotalPoints,
			IsFinal:     score.IsFinal,
		}
	}
	return c.JSON(fiber.Map{"leaderboard": rows})
}

// GetModuleScores returns every user's score and breakdown for one module.
func (s *TournamentService) GetModuleScores(c *fiber.Ctx) error {
	var scores []models.UserModuleScore
	err := s.DB.Where("module_id = ?", c.Params("moduleId")).
		Order("points desc").
		Find(&scores).Error
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to load scores"})
	}
	return c.JSON(fiber.Map{"scores": scores})
}

// applyScoreBounds recomputes the module's possible score range from its rule
// set. Invalid or empty configs leave the bounds at zero.
func (s *TournamentService) applyScoreBounds(module *models.Module) {
	if len(module.ScoringConfig) == 0 {
		module.MaxScore, module.MinScore = 0, 0
		return
	}
	rs, err := scoring.ParseRuleSet(module.ScoringConfig)
	if err != nil {
		module.MaxScore, module.MinScore = 0, 0
		return
	}
	module.MaxScore, module.MinScore = scoring.MaxAndMin(rs.Rules)
}
