package handlers

import (
	"fantasy-tournament-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupTournamentRoutes(app *fiber.App, tournamentService *services.TournamentService) {
	// Tournament CRUD
	app.Post("/tournaments", tournamentService.CreateTournament)
	app.Get("/tournaments", tournamentService.ListTournaments)
	app.Get("/tournaments/:id", tournamentService.GetTournament)

	// Stages
	app.Post("/tournaments/:id/stages", tournamentService.CreateStage)

	// Modules
	app.Post("/tournaments/:id/modules", tournamentService.CreateModule)
	app.Put("/modules/:moduleId", tournamentService.UpdateModule)
	app.Delete("/modules/:moduleId", tournamentService.DeleteModule)

	// Scoring
	app.Post("/modules/:moduleId/recalculate", tournamentService.RecalculateScores)
	app.Post("/tournaments/:id/recalculate", tournamentService.RecalculateTournamentScores)
	app.Get("/modules/:moduleId/scores", tournamentService.GetModuleScores)
	app.Get("/tournaments/:id/leaderboard", tournamentService.GetLeaderboard)
}
