package services

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"fantasy-tournament-system/models"
)

func newPredictionApp(db *gorm.DB) *fiber.App {
	service := NewPredictionService(db)
	app := fiber.New()
	app.Post("/modules/:moduleId/predictions/swiss", service.SubmitSwissPredictions)
	app.Post("/modules/:moduleId/predictions/bracket", service.SubmitBracketPredictions)
	app.Post("/modules/:moduleId/predictions/stats", service.SubmitStatPredictions)
	return app
}

func openModule(t *testing.T, db *gorm.DB, module *models.Module) {
	t.Helper()
	deadline := time.Now().UTC().Add(24 * time.Hour)
	require.NoError(t, db.Model(module).Updates(map[string]any{
		"prediction_deadline": deadline,
		"end_date":            deadline.Add(24 * time.Hour),
	}).Error)
}

func TestSubmitSwissPredictionsReplacesSheet(t *testing.T) {
	db := newTestDB(t)
	app := newPredictionApp(db)
	tournament := createTournament(t, db)
	stage := createStage(t, db, tournament.ID, "Group Stage")
	module := createModule(t, db, tournament.ID, stage.ID, models.ModuleSwiss)
	openModule(t, db, module)

	threeZero := createRecordOption(t, db, module.ID, 3, 0, []string{"Qualified"})
	threeOne := createRecordOption(t, db, module.ID, 3, 1, []string{"Qualified"})
	teamA := createTeam(t, db, 10, "Alpha")
	teamB := createTeam(t, db, 11, "Bravo")

	resp, err := app.Test(jsonRequest(t, "POST", "/modules/"+module.ID+"/predictions/swiss", map[string]any{
		"user_id": "user-1",
		"picks": []map[string]any{
			{"team_id": teamA.ID, "predicted_record_id": threeZero.ID},
			{"team_id": teamB.ID, "predicted_record_id": threeOne.ID},
		},
	}))
	require.NoError(t, err)
	require.Equal(t, 201, resp.StatusCode)

	// Resubmitting replaces rather than appends
	resp, err = app.Test(jsonRequest(t, "POST", "/modules/"+module.ID+"/predictions/swiss", map[string]any{
		"user_id": "user-1",
		"picks": []map[string]any{
			{"team_id": teamA.ID, "predicted_record_id": threeOne.ID},
		},
	}))
	require.NoError(t, err)
	require.Equal(t, 201, resp.StatusCode)

	var predictions []models.SwissPrediction
	require.NoError(t, db.Where("user_id = ?", "user-1").Find(&predictions).Error)
	require.Len(t, predictions, 1)
	assert.Equal(t, threeOne.ID, predictions[0].PredictedRecordID)
}

func TestSubmitSwissPredictionsEnforcesRecordLimit(t *testing.T) {
	db := newTestDB(t)
	app := newPredictionApp(db)
	tournament := createTournament(t, db)
	stage := createStage(t, db, tournament.ID, "Group Stage")
	module := createModule(t, db, tournament.ID, stage.ID, models.ModuleSwiss)
	openModule(t, db, module)

	threeZero := createRecordOption(t, db, module.ID, 3, 0, []string{"Qualified"})
	require.NoError(t, db.Model(threeZero).Update("limit_per_user", 1).Error)
	teamA := createTeam(t, db, 10, "Alpha")
	teamB := createTeam(t, db, 11, "Bravo")

	resp, err := app.Test(jsonRequest(t, "POST", "/modules/"+module.ID+"/predictions/swiss", map[string]any{
		"user_id": "user-1",
		"picks": []map[string]any{
			{"team_id": teamA.ID, "predicted_record_id": threeZero.ID},
			{"team_id": teamB.ID, "predicted_record_id": threeZero.ID},
		},
	}))
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)

	var count int64
	require.NoError(t, db.Model(&models.SwissPrediction{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestSubmitPredictionsAfterDeadline(t *testing.T) {
	db := newTestDB(t)
	app := newPredictionApp(db)
	tournament := createTournament(t, db)
	stage := createStage(t, db, tournament.ID, "Group Stage")
	module := createModule(t, db, tournament.ID, stage.ID, models.ModuleSwiss)
	passed := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, db.Model(module).Update("prediction_deadline", passed).Error)

	option := createRecordOption(t, db, module.ID, 3, 0, []string{"Qualified"})
	team := createTeam(t, db, 10, "Alpha")

	resp, err := app.Test(jsonRequest(t, "POST", "/modules/"+module.ID+"/predictions/swiss", map[string]any{
		"user_id": "user-1",
		"picks": []map[string]any{
			{"team_id": team.ID, "predicted_record_id": option.ID},
		},
	}))
	require.NoError(t, err)
	assert.Equal(t, 409, resp.StatusCode)
}

func TestSubmitPredictionsToFinalizedModule(t *testing.T) {
	db := newTestDB(t)
	app := newPredictionApp(db)
	tournament := createTournament(t, db)
	stage := createStage(t, db, tournament.ID, "Group Stage")
	module := createModule(t, db, tournament.ID, stage.ID, models.ModuleSwiss)
	openModule(t, db, module)
	require.NoError(t, db.Model(module).Update("is_completed", true).Error)

	option := createRecordOption(t, db, module.ID, 3, 0, []string{"Qualified"})
	team := createTeam(t, db, 10, "Alpha")

	resp, err := app.Test(jsonRequest(t, "POST", "/modules/"+module.ID+"/predictions/swiss", map[string]any{
		"user_id": "user-1",
		"picks": []map[string]any{
			{"team_id": team.ID, "predicted_record_id": option.ID},
		},
	}))
	require.NoError(t, err)
	assert.Equal(t, 409, resp.StatusCode)
}

func TestSubmitSwissPredictionsWrongModuleType(t *testing.T) {
	db := newTestDB(t)
	app := newPredictionApp(db)
	tournament := createTournament(t, db)
	stage := createStage(t, db, tournament.ID, "Playoffs")
	module := createModule(t, db, tournament.ID, stage.ID, models.ModuleBracket)
	openModule(t, db, module)

	resp, err := app.Test(jsonRequest(t, "POST", "/modules/"+module.ID+"/predictions/swiss", map[string]any{
		"user_id": "user-1",
		"picks":   []map[string]any{{"team_id": "t", "predicted_record_id": "r"}},
	}))
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestSubmitBracketPredictionsRequiresMatches(t *testing.T) {
	db := newTestDB(t)
	app := newPredictionApp(db)
	tournament := createTournament(t, db)
	stage := createStage(t, db, tournament.ID, "Playoffs")
	module := createModule(t, db, tournament.ID, stage.ID, models.ModuleBracket)
	openModule(t, db, module)

	resp, err := app.Test(jsonRequest(t, "POST", "/modules/"+module.ID+"/predictions/bracket", map[string]any{
		"user_id": "user-1",
		"picks":   []map[string]any{{"match_id": "m", "predicted_winner_id": "t"}},
	}))
	require.NoError(t, err)
	assert.Equal(t, 409, resp.StatusCode)
}

func TestSubmitBracketPredictionsReusesSheet(t *testing.T) {
	db := newTestDB(t)
	app := newPredictionApp(db)
	tournament := createTournament(t, db)
	stage := createStage(t, db, tournament.ID, "Playoffs")
	module := createModule(t, db, tournament.ID, stage.ID, models.ModuleBracket)
	openModule(t, db, module)

	teamA := createTeam(t, db, 10, "Alpha")
	teamB := createTeam(t, db, 11, "Bravo")
	match := models.BracketMatch{ID: uuid.New().String(), ModuleID: module.ID, Round: 1, TeamAID: &teamA.ID, TeamBID: &teamB.ID}
	require.NoError(t, db.Create(&match).Error)

	submit := func(winnerID string) {
		resp, err := app.Test(jsonRequest(t, "POST", "/modules/"+module.ID+"/predictions/bracket", map[string]any{
			"user_id": "user-1",
			"picks": []map[string]any{
				{"match_id": match.ID, "team_a_id": teamA.ID, "team_b_id": teamB.ID, "predicted_winner_id": winnerID},
			},
		}))
		require.NoError(t, err)
		require.Equal(t, 201, resp.StatusCode)
	}
	submit(teamA.ID)
	submit(teamB.ID)

	var sheets []models.BracketPrediction
	require.NoError(t, db.Find(&sheets).Error)
	require.Len(t, sheets, 1)

	var picks []models.MatchPrediction
	require.NoError(t, db.Where("bracket_prediction_id = ?", sheets[0].ID).Find(&picks).Error)
	require.Len(t, picks, 1)
	assert.Equal(t, teamB.ID, picks[0].PredictedWinnerID)
}

func TestSubmitStatPredictionsEnforcesTeamLimit(t *testing.T) {
	db := newTestDB(t)
	app := newPredictionApp(db)
	tournament := createTournament(t, db)
	stage := createStage(t, db, tournament.ID, "Event")
	module := createModule(t, db, tournament.ID, stage.ID, models.ModuleStatPredictions)
	openModule(t, db, module)
	one := 1
	require.NoError(t, db.Model(module).Update("max_players_per_team", one).Error)

	team := createTeam(t, db, 10, "Alpha")
	playerA := models.Player{ID: uuid.New().String(), SourceID: 101, Name: "player1", TeamID: &team.ID}
	playerB := models.Player{ID: uuid.New().String(), SourceID: 102, Name: "player2", TeamID: &team.ID}
	require.NoError(t, db.Create(&playerA).Error)
	require.NoError(t, db.Create(&playerB).Error)

	makeDefinition := func(title string) models.StatDefinition {
		definition := models.StatDefinition{ID: uuid.New().String(), ModuleID: module.ID, Title: title}
		require.NoError(t, db.Create(&definition).Error)
		return definition
	}
	first := makeDefinition("Top fragger")
	second := makeDefinition("Highest rating")

	resp, err := app.Test(jsonRequest(t, "POST", "/modules/"+module.ID+"/predictions/stats", map[string]any{
		"user_id": "user-1",
		"picks": []map[string]any{
			{"definition_id": first.ID, "player_id": playerA.ID},
			{"definition_id": second.ID, "player_id": playerB.ID},
		},
	}))
	require.NoError(t, err)
	require.Equal(t, 400, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body["error"], "single team")
}

func TestSubmitStatPredictionsUpsertsPerDefinition(t *testing.T) {
	db := newTestDB(t)
	app := newPredictionApp(db)
	tournament := createTournament(t, db)
	stage := createStage(t, db, tournament.ID, "Event")
	module := createModule(t, db, tournament.ID, stage.ID, models.ModuleStatPredictions)
	openModule(t, db, module)

	team := createTeam(t, db, 10, "Alpha")
	playerA := models.Player{ID: uuid.New().String(), SourceID: 101, Name: "player1", TeamID: &team.ID}
	playerB := models.Player{ID: uuid.New().String(), SourceID: 102, Name: "player2", TeamID: &team.ID}
	require.NoError(t, db.Create(&playerA).Error)
	require.NoError(t, db.Create(&playerB).Error)

	definition := models.StatDefinition{ID: uuid.New().String(), ModuleID: module.ID, Title: "Top fragger"}
	require.NoError(t, db.Create(&definition).Error)

	submit := func(playerID string) {
		resp, err := app.Test(jsonRequest(t, "POST", "/modules/"+module.ID+"/predictions/stats", map[string]any{
			"user_id": "user-1",
			"picks":   []map[string]any{{"definition_id": definition.ID, "player_id": playerID}},
		}))
		require.NoError(t, err)
		require.Equal(t, 201, resp.StatusCode)
	}
	submit(playerA.ID)
	submit(playerB.ID)

	var predictions []models.StatPrediction
	require.NoError(t, db.Find(&predictions).Error)
	require.Len(t, predictions, 1)
	require.NotNil(t, predictions[0].PlayerID)
	assert.Equal(t, playerB.ID, *predictions[0].PlayerID)
}
