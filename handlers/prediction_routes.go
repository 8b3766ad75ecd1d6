package handlers

import (
	"fantasy-tournament-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupPredictionRoutes(app *fiber.App, predictionService *services.PredictionService) {
	app.Post("/modules/:moduleId/predictions/swiss", predictionService.SubmitSwissPredictions)
	app.Post("/modules/:moduleId/predictions/bracket", predictionService.SubmitBracketPredictions)
	app.Post("/modules/:moduleId/predictions/stats", predictionService.SubmitStatPredictions)
}
