package services

import (
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"fantasy-tournament-system/models"
)

// PredictionService accepts and validates user predictions. All submission
// paths enforce the prediction deadline and reject writes to completed
// modules.
type PredictionService struct {
	DB *gorm.DB
}

func NewPredictionService(db *gorm.DB) *PredictionService {
	return &PredictionService{DB: db}
}

func (s *PredictionService) loadOpenModule(c *fiber.Ctx, moduleID string, wantType models.ModuleType) (*models.Module, error) {
	var module models.Module
	if err := s.DB.First(&module, "id = ?", moduleID).Error; err != nil {
		return nil, c.Status(404).JSON(fiber.Map{"error": "module not found"})
	}
	if module.Type != wantType {
		return nil, c.Status(400).JSON(fiber.Map{"error": fmt.Sprintf("module is not a %s module", wantType)})
	}
	if module.IsCompleted {
		return nil, c.Status(409).JSON(fiber.Map{"error": "module is already finalized"})
	}
	if module.PredictionDeadline != nil && !module.PredictionDeadline.After(time.Now().UTC()) {
		return nil, c.Status(409).JSON(fiber.Map{"error": "prediction deadline has passed"})
	}
	return &module, nil
}

type swissPredictionInput struct {
	UserID string `json:"user_id"`
	Picks  []struct {
		TeamID            string `json:"team_id"`
		PredictedRecordID string `json:"predicted_record_id"`
		SortOrder         int    `json:"sort_order"`
	} `json:"picks"`
}

// SubmitSwissPredictions replaces a user's full record sheet for a Swiss
// module, enforcing each record option's per-user limit.
func (s *PredictionService) SubmitSwissPredictions(c *fiber.Ctx) error {
	var input swissPredictionInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
	}
	if input.UserID == "" || len(input.Picks) == 0 {
		return c.Status(400).JSON(fiber.Map{"error": "user_id and picks are required"})
	}

	module, err := s.loadOpenModule(c, c.Params("moduleId"), models.ModuleSwiss)
	if module == nil {
		return err
	}

	var options []models.SwissRecordOption
	if err := s.DB.Where("module_id = ?", module.ID).Find(&options).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to load record options"})
	}
	limitByOption := make(map[string]int, len(options))
	for _, option := range options {
		limitByOption[option.ID] = option.LimitPerUser
	}

	usage := make(map[string]int)
	for _, pick := range input.Picks {
		limit, known := limitByOption[pick.PredictedRecordID]
		if !known {
			return c.Status(400).JSON(fiber.Map{"error": "unknown record option"})
		}
		usage[pick.PredictedRecordID]++
		if usage[pick.PredictedRecordID] > limit {
			return c.Status(400).JSON(fiber.Map{
				"error": fmt.Sprintf("too many teams predicted for the same record (limit %d)", limit),
			})
		}
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ? AND module_id = ?", input.UserID, module.ID).
			Delete(&models.SwissPrediction{}).Error; err != nil {
			return err
		}
		for _, pick := range input.Picks {
			prediction := models.SwissPrediction{
				ID:                uuid.New().String(),
				UserID:            input.UserID,
				ModuleID:          module.ID,
				TeamID:            pick.TeamID,
				PredictedRecordID: pick.PredictedRecordID,
				SortOrder:         pick.SortOrder,
			}
			if err := tx.Create(&prediction).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Printf("❌ Failed to save swiss predictions: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to save predictions"})
	}

	return c.Status(201).JSON(fiber.Map{"status": "ok", "picks": len(input.Picks)})
}

type bracketPredictionInput struct {
	UserID string `json:"user_id"`
	Picks  []struct {
		MatchID             string  `json:"match_id"`
		TeamAID             *string `json:"team_a_id"`
		TeamBID             *string `json:"team_b_id"`
		PredictedWinnerID   string  `json:"predicted_winner_id"`
		PredictedTeamAScore *int    `json:"predicted_team_a_score"`
		PredictedTeamBScore *int    `json:"predicted_team_b_score"`
	} `json:"picks"`
}

// SubmitBracketPredictions upserts a user's bracket sheet and replaces its
// per-match picks.
func (s *PredictionService) SubmitBracketPredictions(c *fiber.Ctx) error {
	var input bracketPredictionInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
	}
	if input.UserID == "" || len(input.Picks) == 0 {
		return c.Status(400).JSON(fiber.Map{"error": "user_id and picks are required"})
	}

	module, err := s.loadOpenModule(c, c.Params("moduleId"), models.ModuleBracket)
	if module == nil {
		return err
	}

	var matchCount int64
	if err := s.DB.Model(&models.BracketMatch{}).Where("module_id = ?", module.ID).Count(&matchCount).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to load matches"})
	}
	if matchCount == 0 {
		return c.Status(409).JSON(fiber.Map{"error": "bracket has no matches yet"})
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		sheet := models.BracketPrediction{
			ID:       uuid.New().String(),
			UserID:   input.UserID,
			ModuleID: module.ID,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "module_id"}},
			DoNothing: true,
		}).Create(&sheet).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ? AND module_id = ?", input.UserID, module.ID).
			First(&sheet).Error; err != nil {
			return err
		}

		if err := tx.Where("bracket_prediction_id = ?", sheet.ID).
			Delete(&models.MatchPrediction{}).Error; err != nil {
			return err
		}
		for _, pick := range input.Picks {
			prediction := models.MatchPrediction{
				ID:                  uuid.New().String(),
				BracketPredictionID: sheet.ID,
				MatchID:             pick.MatchID,
				TeamAID:             pick.TeamAID,
				TeamBID:             pick.TeamBID,
				PredictedWinnerID:   pick.PredictedWinnerID,
				PredictedTeamAScore: pick.PredictedTeamAScore,
				PredictedTeamBScore: pick.PredictedTeamBScore,
			}
			if err := tx.Create(&prediction).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Printf("❌ Failed to save bracket predictions: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to save predictions"})
	}

	return c.Status(201).JSON(fiber.Map{"status": "ok", "picks": len(input.Picks)})
}

type statPredictionInput struct {
	UserID string `json:"user_id"`
	Picks  []struct {
		DefinitionID   string   `json:"definition_id"`
		PlayerID       *string  `json:"player_id"`
		TeamID         *string  `json:"team_id"`
		PredictedValue *float64 `json:"predicted_value"`
	} `json:"picks"`
}

// SubmitStatPredictions replaces a user's stat picks, enforcing the module's
// pick-frequency constraints: how often one player may be picked, and how
// many picks may come from a single team.
func (s *PredictionService) SubmitStatPredictions(c *fiber.Ctx) error {
	var input statPredictionInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
	}
	if input.UserID == "" || len(input.Picks) == 0 {
		return c.Status(400).JSON(fiber.Map{"error": "user_id and picks are required"})
	}

	module, err := s.loadOpenModule(c, c.Params("moduleId"), models.ModuleStatPredictions)
	if module == nil {
		return err
	}

	var definitions []models.StatDefinition
	if err := s.DB.Where("module_id = ?", module.ID).Find(&definitions).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to load definitions"})
	}
	definitionIDs := make(map[string]bool, len(definitions))
	for _, definition := range definitions {
		definitionIDs[definition.ID] = true
	}

	playerUsage := make(map[string]int)
	teamUsage := make(map[string]int)
	for _, pick := range input.Picks {
		if !definitionIDs[pick.DefinitionID] {
			return c.Status(400).JSON(fiber.Map{"error": "unknown stat definition"})
		}
		if pick.PlayerID != nil {
			playerUsage[*pick.PlayerID]++
			if playerUsage[*pick.PlayerID] > module.MaxPicksPerPlayer {
				return c.Status(400).JSON(fiber.Map{
					"error": fmt.Sprintf("player picked more than %d time(s)", module.MaxPicksPerPlayer),
				})
			}
			var player models.Player
			if err := s.DB.First(&player, "id = ?", *pick.PlayerID).Error; err == nil && player.TeamID != nil {
				teamUsage[*player.TeamID]++
				if module.MaxPlayersPerTeam != nil && teamUsage[*player.TeamID] > *module.MaxPlayersPerTeam {
					return c.Status(400).JSON(fiber.Map{
						"error": fmt.Sprintf("more than %d pick(s) from a single team", *module.MaxPlayersPerTeam),
					})
				}
			}
		}
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		for _, pick := range input.Picks {
			prediction := models.StatPrediction{
				ID:             uuid.New().String(),
				UserID:         input.UserID,
				DefinitionID:   pick.DefinitionID,
				PlayerID:       pick.PlayerID,
				TeamID:         pick.TeamID,
				PredictedValue: pick.PredictedValue,
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "user_id"}, {Name: "definition_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"player_id", "team_id", "predicted_value", "updated_at"}),
			}).Create(&prediction).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Printf("❌ Failed to save stat predictions: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to save predictions"})
	}

	return c.Status(201).JSON(fiber.Map{"status": "ok", "picks": len(input.Picks)})
}
