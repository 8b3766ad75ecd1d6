package workers

import (
	"context"
	"log"
	"time"

	"gorm.io/gorm"

	"fantasy-tournament-system/models"
	"fantasy-tournament-system/services"
)

// PollScoreRefresh keeps non-final scores fresh while results are still
// settling: every tick it recalculates scores for modules that have ended but
// are not finalized yet, so users see provisional points before the
// finalization task runs.
func PollScoreRefresh(ctx context.Context, db *gorm.DB, scoringService *services.ScoringService, pollInterval time.Duration) {
	log.Println("Starting score refresh polling...")

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Score refresh polling stopped.")
			return
		case <-ticker.C:
			refreshEndedModules(db, scoringService)
		}
	}
}

func refreshEndedModules(db *gorm.DB, scoringService *services.ScoringService) {
	var modules []models.Module
	now := time.Now().UTC()

	err := db.Where("is_completed = ? AND end_date IS NOT NULL AND end_date <= ?", false, now).
		Find(&modules).Error
	if err != nil {
		log.Printf("❌ Error loading ended modules: %v", err)
		return
	}

	if len(modules) == 0 {
		return
	}
	log.Printf("Refreshing scores for %d ended module(s)...", len(modules))

	for i := range modules {
		module := &modules[i]
		count, err := scoringService.UpdateScores(module)
		if err != nil {
			log.Printf("❌ Failed to refresh scores for module %s: %v", module.ID, err)
			continue
		}
		if count > 0 {
			log.Printf("✅ Refreshed %d score(s) for module %s", count, module.Name)
		}
	}
}
