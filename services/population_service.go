package services

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"fantasy-tournament-system/models"
)

// Retry delays in minutes: 1h, 2h, 4h, 6h, 12h, 24h. Indexed by the attempt
// that just came back incomplete; an attempt beyond the ladder is terminal.
var populationRetryDelays = []int{60, 120, 240, 360, 720, 1440}

// Default Swiss record options and their per-user prediction limits
var defaultSwissRecords = []struct {
	Wins, Losses int
	Group        string
	LimitPerUser int
}{
	{3, 0, "Qualified", 2},
	{3, 1, "Qualified", 3},
	{3, 2, "Qualified", 3},
	{0, 3, "Eliminated", 2},
	{1, 3, "Eliminated", 3},
	{2, 3, "Eliminated", 3},
}

// PopulationService fills a freshly activated stage's modules with source
// data: attending teams, bracket pairings, rosters. Sources often lag behind
// stage transitions, so incomplete data schedules a backoff retry instead of
// failing.
type PopulationService struct {
	DB        *gorm.DB
	Fetcher   *FetchService
	Scheduler *TaskScheduler
}

func NewPopulationService(db *gorm.DB, fetcher *FetchService, scheduler *TaskScheduler) *PopulationService {
	return &PopulationService{DB: db, Fetcher: fetcher, Scheduler: scheduler}
}

// PopulateStage fetches the stage's source page and populates every module in
// it. attempt counts completed tries; an incomplete run at attempt < ladder
// length schedules attempt+1, at the ladder's end it fails terminally.
func (p *PopulationService) PopulateStage(stageID string, attempt int) error {
	var stage models.Stage
	if err := p.DB.Preload("Tournament").Preload("Modules").First(&stage, "id = ?", stageID).Error; err != nil {
		return fmt.Errorf("stage %s not found: %w", stageID, err)
	}
	log.Printf("Populating modules for stage: %s (attempt %d)", stage.Name, attempt+1)

	sourceURL := stage.SourceURL
	if sourceURL == "" {
		sourceURL = stage.Tournament.SourceURL
	}
	if sourceURL == "" {
		return fmt.Errorf("no source URL found for stage %s or its tournament", stageID)
	}

	body, err := p.Fetcher.Fetch(sourceURL, nil, true)
	if err != nil {
		return err
	}

	needs := dataNeeds(stage.Modules)
	parsed, err := p.parseNeededData(body, needs)
	if err != nil {
		return err
	}

	populated := 0
	var incomplete []string
	for i := range stage.Modules {
		module := &stage.Modules[i]
		done, err := p.populateModule(module, parsed)
		if err != nil {
			return err
		}
		if done {
			populated++
		} else {
			incomplete = append(incomplete, module.Name)
		}
	}

	if len(incomplete) > 0 {
		if attempt < len(populationRetryDelays) {
			delay := populationRetryDelays[attempt]
			log.Printf("⚠️ Incomplete data for modules: %v. Scheduling retry in %d minutes (attempt %d)", incomplete, delay, attempt+2)
			return p.Scheduler.ScheduleOnce(
				PopulateTaskName(stageID, attempt+1),
				models.TaskPopulateStage,
				stageID,
				map[string]any{"attempt": attempt + 1},
				time.Now().UTC().Add(time.Duration(delay)*time.Minute),
			)
		}
		return fmt.Errorf("max retries reached for stage %s; incomplete modules: %v", stageID, incomplete)
	}

	log.Printf("✅ Successfully populated %d modules in stage %s", populated, stage.Name)
	return nil
}

type stageData struct {
	Teams   []TeamRow
	Players []PlayerRow
	Matches []BracketMatchResult
}

func dataNeeds(modules []models.Module) map[string]bool {
	needs := make(map[string]bool)
	for _, module := range modules {
		switch module.Type {
		case models.ModuleSwiss:
			needs["teams"] = true
		case models.ModuleBracket:
			needs["matches"] = true
			needs["teams"] = true // matches reference teams
		case models.ModuleStatPredictions:
			needs["players"] = true
			needs["teams"] = true // players belong to teams
		}
	}
	return needs
}

func (p *PopulationService) parseNeededData(body string, needs map[string]bool) (*stageData, error) {
	parsed := &stageData{}

	if needs["teams"] || needs["players"] {
		teams, players, err := ParseAttending(body)
		if err != nil {
			return nil, err
		}
		parsed.Teams = teams
		parsed.Players = players
	}

	if needs["matches"] {
		matches, err := ParseBracketResults(body)
		if err != nil {
			return nil, err
		}
		parsed.Matches = matches
	}

	return parsed, nil
}

// populateModule returns whether the module got everything it needs; false
// means the source has not published the data yet.
func (p *PopulationService) populateModule(module *models.Module, parsed *stageData) (bool, error) {
	switch module.Type {
	case models.ModuleSwiss:
		return p.populateSwiss(module, parsed)
	case models.ModuleBracket:
		return p.populateBracket(module, parsed)
	case models.ModuleStatPredictions:
		return p.populateStatPredictions(module, parsed)
	default:
		log.Printf("No population handler for module type '%s'", module.Type)
		return true, nil
	}
}

func (p *PopulationService) populateSwiss(module *models.Module, parsed *stageData) (bool, error) {
	log.Printf("Populating Swiss module: %s", module.Name)

	if len(parsed.Teams) == 0 {
		log.Printf("⚠️ No teams found for Swiss module %s", module.Name)
		return false, nil
	}

	var teams []models.Team
	for _, row := range parsed.Teams {
		var team models.Team
		err := p.DB.Where("source_id = ?", row.SourceID).First(&team).Error
		if err == gorm.ErrRecordNotFound {
			log.Printf("⚠️ Team with source id %d (%s) not found in database", row.SourceID, row.Name)
			continue
		}
		if err != nil {
			return false, fmt.Errorf("failed to look up team: %w", err)
		}
		teams = append(teams, team)
	}
	if len(teams) == 0 {
		return false, nil
	}

	if err := p.DB.Model(module).Association("Teams").Replace(teams); err != nil {
		return false, fmt.Errorf("failed to set teams on module %s: %w", module.ID, err)
	}
	log.Printf("Set %d teams on Swiss module %s", len(teams), module.Name)

	if err := p.ensureDefaultRecordOptions(module); err != nil {
		return false, err
	}
	return true, nil
}

// ensureDefaultRecordOptions seeds the standard record grid when the module
// has none yet.
func (p *PopulationService) ensureDefaultRecordOptions(module *models.Module) error {
	var existing int64
	if err := p.DB.Model(&models.SwissRecordOption{}).Where("module_id = ?", module.ID).Count(&existing).Error; err != nil {
		return fmt.Errorf("failed to count record options: %w", err)
	}
	if existing > 0 {
		return nil
	}

	for _, record := range defaultSwissRecords {
		option := models.SwissRecordOption{
			ID:           uuid.New().String(),
			ModuleID:     module.ID,
			Wins:         record.Wins,
			Losses:       record.Losses,
			Groups:       []string{record.Group},
			LimitPerUser: record.LimitPerUser,
		}
		if err := p.DB.Create(&option).Error; err != nil {
			return fmt.Errorf("failed to create record option %s: %w", option.Record(), err)
		}
	}
	log.Printf("Created %d default record options for module %s", len(defaultSwissRecords), module.ID)
	return nil
}

func (p *PopulationService) populateBracket(module *models.Module, parsed *stageData) (bool, error) {
	log.Printf("Populating Bracket module: %s", module.Name)

	if len(parsed.Matches) == 0 {
		log.Printf("⚠️ No bracket data found for module %s", module.Name)
		return false, nil
	}

	var matches []models.BracketMatch
	if err := p.DB.Where("module_id = ? AND source_match_id IS NOT NULL", module.ID).Find(&matches).Error; err != nil {
		return false, fmt.Errorf("failed to load bracket matches: %w", err)
	}
	if len(matches) == 0 {
		log.Printf("⚠️ No bracket matches with a source match id in module %s", module.Name)
		return false, nil
	}
	matchBySourceID := make(map[int]*models.BracketMatch, len(matches))
	for i := range matches {
		matchBySourceID[*matches[i].SourceMatchID] = &matches[i]
	}

	teamBySourceID := make(map[int]string)
	var teams []models.Team
	if err := p.DB.Where("source_id != 0").Find(&teams).Error; err != nil {
		return false, fmt.Errorf("failed to load teams: %w", err)
	}
	for _, team := range teams {
		teamBySourceID[team.SourceID] = team.ID
	}

	updated := 0
	for _, parsedMatch := range parsed.Matches {
		match, ok := matchBySourceID[parsedMatch.SourceMatchID]
		if !ok {
			continue
		}

		teamAID, okA := teamBySourceID[parsedMatch.TeamASourceID]
		teamBID, okB := teamBySourceID[parsedMatch.TeamBSourceID]
		if !okA || !okB {
			log.Printf("⚠️ Could not find teams for match %d: team_a=%d, team_b=%d",
				parsedMatch.SourceMatchID, parsedMatch.TeamASourceID, parsedMatch.TeamBSourceID)
			continue
		}

		err := p.DB.Model(match).Updates(map[string]any{
			"team_a_id": teamAID,
			"team_b_id": teamBID,
		}).Error
		if err != nil {
			return false, fmt.Errorf("failed to update bracket match: %w", err)
		}
		updated++
	}

	if updated == 0 {
		return false, nil
	}
	log.Printf("Updated %d bracket matches in module %s", updated, module.Name)
	return true, nil
}

func (p *PopulationService) populateStatPredictions(module *models.Module, parsed *stageData) (bool, error) {
	log.Printf("Populating StatPredictions module: %s", module.Name)

	if len(parsed.Players) == 0 {
		log.Printf("⚠️ No players found for StatPredictions module %s", module.Name)
		return false, nil
	}

	for _, row := range parsed.Teams {
		team := models.Team{
			ID:       uuid.New().String(),
			SourceID: row.SourceID,
			Name:     row.Name,
		}
		err := p.DB.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "updated_at"}),
		}).Create(&team).Error
		if err != nil {
			return false, fmt.Errorf("failed to upsert team %s: %w", row.Name, err)
		}
	}

	teamBySourceID := make(map[int]string)
	var teams []models.Team
	if err := p.DB.Where("source_id != 0").Find(&teams).Error; err != nil {
		return false, fmt.Errorf("failed to load teams: %w", err)
	}
	for _, team := range teams {
		teamBySourceID[team.SourceID] = team.ID
	}

	for _, row := range parsed.Players {
		player := models.Player{
			ID:       uuid.New().String(),
			SourceID: row.SourceID,
			Name:     row.Name,
		}
		if teamID, ok := teamBySourceID[row.TeamSourceID]; ok {
			player.TeamID = &teamID
		}
		err := p.DB.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "team_id", "updated_at"}),
		}).Create(&player).Error
		if err != nil {
			return false, fmt.Errorf("failed to upsert player %s: %w", row.Name, err)
		}
	}

	log.Printf("Upserted %d players across %d teams for module %s", len(parsed.Players), len(parsed.Teams), module.Name)
	return true, nil
}
