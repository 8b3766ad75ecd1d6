package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"fantasy-tournament-system/models"
	"fantasy-tournament-system/scoring"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+uuid.New().String()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.Tournament{},
		&models.Stage{},
		&models.Module{},
		&models.Team{},
		&models.Player{},
		&models.SwissRecordOption{},
		&models.SwissPrediction{},
		&models.SwissResult{},
		&models.BracketMatch{},
		&models.BracketPrediction{},
		&models.MatchPrediction{},
		&models.StatDefinition{},
		&models.StatPrediction{},
		&models.StatResult{},
		&models.UserModuleScore{},
		&models.UserTournamentScore{},
		&models.ScheduledTask{},
		&models.CachedPage{},
	))
	return db
}

func silentNotifications() *NotificationService {
	return &NotificationService{Enabled: false}
}

func createTournament(t *testing.T, db *gorm.DB) *models.Tournament {
	t.Helper()
	tournament := &models.Tournament{
		ID:        uuid.New().String(),
		Slug:      "test-major-" + uuid.New().String()[:8],
		Name:      "Test Major",
		StartDate: time.Now().UTC().Add(-48 * time.Hour),
		IsActive:  true,
	}
	require.NoError(t, db.Create(tournament).Error)
	return tournament
}

func createStage(t *testing.T, db *gorm.DB, tournamentID string, name string) *models.Stage {
	t.Helper()
	stage := &models.Stage{
		ID:           uuid.New().String(),
		TournamentID: tournamentID,
		Name:         name,
		IsActive:     true,
	}
	require.NoError(t, db.Create(stage).Error)
	return stage
}

func createModule(t *testing.T, db *gorm.DB, tournamentID, stageID string, moduleType models.ModuleType) *models.Module {
	t.Helper()

	seed, err := scoring.DefaultRuleSet(moduleType)
	require.NoError(t, err)

	ended := time.Now().UTC().Add(-2 * time.Hour)
	module := &models.Module{
		ID:                       uuid.New().String(),
		Type:                     moduleType,
		TournamentID:             tournamentID,
		StageID:                  stageID,
		Name:                     string(moduleType) + " module",
		EndDate:                  &ended,
		ScoringConfig:            seed,
		IsActive:                 true,
		FinalizationDelayMinutes: 60,
		BlockingAdvancement:      true,
		MaxPicksPerPlayer:        1,
	}
	require.NoError(t, db.Create(module).Error)
	return module
}

func createTeam(t *testing.T, db *gorm.DB, sourceID int, name string) *models.Team {
	t.Helper()
	team := &models.Team{
		ID:       uuid.New().String(),
		SourceID: sourceID,
		Name:     name,
	}
	require.NoError(t, db.Create(team).Error)
	return team
}

func createRecordOption(t *testing.T, db *gorm.DB, moduleID string, wins, losses int, groups []string) *models.SwissRecordOption {
	t.Helper()
	option := &models.SwissRecordOption{
		ID:           uuid.New().String(),
		ModuleID:     moduleID,
		Wins:         wins,
		Losses:       losses,
		Groups:       groups,
		LimitPerUser: 3,
	}
	require.NoError(t, db.Create(option).Error)
	return option
}
