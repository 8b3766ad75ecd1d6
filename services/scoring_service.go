package services

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"fantasy-tournament-system/models"
	"fantasy-tournament-system/scoring"
)

// ScoringService turns stored predictions and results into persisted user
// scores. Calculation is pure per prediction/result pair; this service owns
// the joining, the rule-set selection, and the persistence.
type ScoringService struct {
	DB            *gorm.DB
	Notifications *NotificationService
}

func NewScoringService(db *gorm.DB, notifications *NotificationService) *ScoringService {
	return &ScoringService{DB: db, Notifications: notifications}
}

// UserScore accumulates one user's points and audit breakdown for a module.
type UserScore struct {
	Points    int
	Breakdown []scoring.ScoreBreakdownItem
}

// CalculateScores evaluates the module's rule set over every prediction that
// has a matching result. A prediction without a result contributes nothing;
// nothing errors on partial results.
func (s *ScoringService) CalculateScores(module *models.Module) (map[string]*UserScore, error) {
	switch module.Type {
	case models.ModuleSwiss:
		return s.calculateSwissScores(module)
	case models.ModuleBracket:
		return s.calculateBracketScores(module)
	case models.ModuleStatPredictions:
		return s.calculateStatScores(module)
	default:
		return nil, fmt.Errorf("unknown module type '%s'", module.Type)
	}
}

// UpdateScores calculates and persists non-final scores for a module, then
// notifies users. Returns how many user scores were written.
func (s *ScoringService) UpdateScores(module *models.Module) (int, error) {
	return s.updateScores(module, false)
}

// FinalizeScores persists the module's scores marked final.
func (s *ScoringService) FinalizeScores(module *models.Module) (int, error) {
	return s.updateScores(module, true)
}

func (s *ScoringService) updateScores(module *models.Module, isFinal bool) (int, error) {
	log.Printf("Updating scores for module: %s (ID: %s)", module.Name, module.ID)

	scores, err := s.CalculateScores(module)
	if err != nil {
		return 0, err
	}

	count, err := s.persistScores(module, scores, isFinal)
	if err != nil {
		return count, err
	}
	log.Printf("Finished updating scores for module %s. Updated %d user scores.", module.Name, count)

	if count > 0 {
		s.Notifications.NotifyAll(
			"score_update",
			fmt.Sprintf("Scores Updated: %s", module.Name),
			fmt.Sprintf("Scores have been calculated for %s. Check your points!", module.Name),
		)
	}
	return count, nil
}

func (s *ScoringService) persistScores(module *models.Module, scores map[string]*UserScore, isFinal bool) (int, error) {
	count := 0
	for userID, userScore := range scores {
		breakdown, err := json.Marshal(userScore.Breakdown)
		if err != nil {
			return count, fmt.Errorf("failed to encode breakdown for user %s: %w", userID, err)
		}

		row := models.UserModuleScore{
			ID:             uuid.New().String(),
			UserID:         userID,
			ModuleID:       module.ID,
			TournamentID:   module.TournamentID,
			Points:         userScore.Points,
			ScoreBreakdown: datatypes.JSON(breakdown),
			IsFinal:        isFinal,
		}
		err = s.DB.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "module_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"tournament_id", "points", "score_breakdown", "is_final", "updated_at"}),
		}).Create(&row).Error
		if err != nil {
			return count, fmt.Errorf("failed to upsert score for user %s: %w", userID, err)
		}
		count++
	}
	return count, nil
}

// AggregateTournament rolls every user's module scores in a tournament up
// into UserTournamentScore rows. The roll-up is final once every scored
// module score is final. Safe to re-run.
func (s *ScoringService) AggregateTournament(tournamentID string) (int, error) {
	var moduleScores []models.UserModuleScore
	if err := s.DB.Where("tournament_id = ?", tournamentID).Find(&moduleScores).Error; err != nil {
		return 0, fmt.Errorf("failed to load module scores: %w", err)
	}

	totals := make(map[string]int)
	allFinal := make(map[string]bool)
	for _, score := range moduleScores {
		totals[score.UserID] += score.Points
		if seen, ok := allFinal[score.UserID]; !ok {
			allFinal[score.UserID] = score.IsFinal
		} else {
			allFinal[score.UserID] = seen && score.IsFinal
		}
	}

	count := 0
	for userID, total := range totals {
		row := models.UserTournamentScore{
			ID:           uuid.New().String(),
			UserID:       userID,
			TournamentID: tournamentID,
			TotalPoints:  total,
			IsFinal:      allFinal[userID],
		}
		err := s.DB.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "tournament_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"total_points", "is_final", "updated_at"}),
		}).Create(&row).Error
		if err != nil {
			return count, fmt.Errorf("failed to upsert tournament score for user %s: %w", userID, err)
		}
		count++
	}

	log.Printf("Aggregated %d tournament scores for tournament %s", count, tournamentID)
	return count, nil
}

func (s *ScoringService) moduleRules(module *models.Module) ([]scoring.Rule, error) {
	if len(module.ScoringConfig) == 0 {
		return nil, nil
	}
	rs, err := scoring.ParseRuleSet(module.ScoringConfig)
	if err != nil {
		return nil, fmt.Errorf("module %s has invalid scoring config: %w", module.ID, err)
	}
	return rs.Rules, nil
}

func (s *ScoringService) calculateSwissScores(module *models.Module) (map[string]*UserScore, error) {
	rules, err := s.moduleRules(module)
	if err != nil {
		return nil, err
	}
	scores := make(map[string]*UserScore)
	if len(rules) == 0 {
		return scores, nil
	}

	var predictions []models.SwissPrediction
	if err := s.DB.Preload("PredictedRecord").Where("module_id = ?", module.ID).Find(&predictions).Error; err != nil {
		return nil, fmt.Errorf("failed to load swiss predictions: %w", err)
	}

	var results []models.SwissResult
	if err := s.DB.Preload("Record").Where("module_id = ?", module.ID).Find(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to load swiss results: %w", err)
	}

	resultByTeam := make(map[string]*models.SwissResult, len(results))
	for i := range results {
		resultByTeam[results[i].TeamID] = &results[i]
	}

	for i := range predictions {
		prediction := &predictions[i]
		result, ok := resultByTeam[prediction.TeamID]
		if !ok {
			continue
		}

		predictionCtx := map[string]any{
			"id":                  prediction.ID,
			"predicted_record_id": prediction.PredictedRecordID,
			"predicted_record": map[string]any{
				"groups": []string(prediction.PredictedRecord.Groups),
			},
		}
		resultCtx := map[string]any{
			"record_id": result.RecordID,
			"record": map[string]any{
				"groups": []string(result.Record.Groups),
			},
		}

		accumulate(scores, prediction.UserID, scoring.Evaluate(rules, predictionCtx, resultCtx))
	}
	return scores, nil
}

func (s *ScoringService) calculateBracketScores(module *models.Module) (map[string]*UserScore, error) {
	rules, err := s.moduleRules(module)
	if err != nil {
		return nil, err
	}
	scores := make(map[string]*UserScore)
	if len(rules) == 0 {
		return scores, nil
	}

	var matches []models.BracketMatch
	if err := s.DB.Where("module_id = ?", module.ID).Find(&matches).Error; err != nil {
		return nil, fmt.Errorf("failed to load bracket matches: %w", err)
	}
	matchByID := make(map[string]*models.BracketMatch, len(matches))
	for i := range matches {
		matchByID[matches[i].ID] = &matches[i]
	}

	var sheets []models.BracketPrediction
	if err := s.DB.Preload("MatchPredictions").Where("module_id = ?", module.ID).Find(&sheets).Error; err != nil {
		return nil, fmt.Errorf("failed to load bracket predictions: %w", err)
	}

	for i := range sheets {
		sheet := &sheets[i]
		for j := range sheet.MatchPredictions {
			pick := &sheet.MatchPredictions[j]
			match, ok := matchByID[pick.MatchID]
			if !ok || match.WinnerID == nil {
				continue
			}

			predictionCtx := map[string]any{
				"id":                  pick.ID,
				"predicted_winner_id": pick.PredictedWinnerID,
			}
			putPtr(predictionCtx, "predicted_loser_id", pick.PredictedLoserID())
			putPtr(predictionCtx, "team_a_id", pick.TeamAID)
			putPtr(predictionCtx, "team_b_id", pick.TeamBID)
			putIntPtr(predictionCtx, "predicted_team_a_score", pick.PredictedTeamAScore)
			putIntPtr(predictionCtx, "predicted_team_b_score", pick.PredictedTeamBScore)

			resultCtx := map[string]any{
				"tags": []string(match.Tags),
			}
			putPtr(resultCtx, "winner_id", match.WinnerID)
			putPtr(resultCtx, "loser_id", match.LoserID())
			putPtr(resultCtx, "team_a_id", match.TeamAID)
			putPtr(resultCtx, "team_b_id", match.TeamBID)
			putIntPtr(resultCtx, "team_a_score", match.TeamAScore)
			putIntPtr(resultCtx, "team_b_score", match.TeamBScore)

			accumulate(scores, sheet.UserID, scoring.Evaluate(rules, predictionCtx, resultCtx))
		}
	}
	return scores, nil
}

func (s *ScoringService) calculateStatScores(module *models.Module) (map[string]*UserScore, error) {
	moduleRules, err := s.moduleRules(module)
	if err != nil {
		return nil, err
	}
	scores := make(map[string]*UserScore)

	var definitions []models.StatDefinition
	if err := s.DB.Where("module_id = ?", module.ID).Find(&definitions).Error; err != nil {
		return nil, fmt.Errorf("failed to load stat definitions: %w", err)
	}

	for i := range definitions {
		definition := &definitions[i]

		// Definition-level rule override wins over the module default;
		// neither means this definition is not scored
		rules := moduleRules
		if len(definition.ScoringRule) > 0 {
			rs, err := scoring.ParseRuleSet(definition.ScoringRule)
			if err != nil {
				return nil, fmt.Errorf("definition %s has invalid scoring rule: %w", definition.ID, err)
			}
			rules = rs.Rules
		}
		if len(rules) == 0 {
			continue
		}

		var result models.StatResult
		err := s.DB.Where("definition_id = ?", definition.ID).First(&result).Error
		if err == gorm.ErrRecordNotFound {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load stat result: %w", err)
		}

		var entries []map[string]any
		if len(result.Results) > 0 {
			if err := json.Unmarshal(result.Results, &entries); err != nil {
				return nil, fmt.Errorf("failed to decode stat results for definition %s: %w", definition.ID, err)
			}
		}
		resultCtx := map[string]any{"results": entries}

		var predictions []models.StatPrediction
		if err := s.DB.Preload("Player").Where("definition_id = ?", definition.ID).Find(&predictions).Error; err != nil {
			return nil, fmt.Errorf("failed to load stat predictions: %w", err)
		}

		for j := range predictions {
			prediction := &predictions[j]
			predictionCtx := map[string]any{"id": prediction.ID}
			if prediction.Player != nil {
				predictionCtx["player"] = map[string]any{"source_id": prediction.Player.SourceID}
			}
			if prediction.PredictedValue != nil {
				predictionCtx["predicted_value"] = *prediction.PredictedValue
			}

			accumulate(scores, prediction.UserID, scoring.Evaluate(rules, predictionCtx, resultCtx))
		}
	}
	return scores, nil
}

func accumulate(scores map[string]*UserScore, userID string, result scoring.EvaluationResult) {
	userScore, ok := scores[userID]
	if !ok {
		userScore = &UserScore{}
		scores[userID] = userScore
	}
	userScore.Points += result.TotalScore
	userScore.Breakdown = append(userScore.Breakdown, result.Breakdown...)
}

func putPtr(ctx map[string]any, key string, value *string) {
	if value != nil {
		ctx[key] = *value
	}
}

func putIntPtr(ctx map[string]any, key string, value *int) {
	if value != nil {
		ctx[key] = *value
	}
}
