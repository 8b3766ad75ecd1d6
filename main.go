package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"fantasy-tournament-system/handlers"
	"fantasy-tournament-system/middleware"
	"fantasy-tournament-system/models"
	"fantasy-tournament-system/services"
	"fantasy-tournament-system/utils"
	"fantasy-tournament-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{})

	// 🔐 Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-Service-Token",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	// R2 archival is optional; snapshots are skipped when not configured
	if err := utils.InitR2(); err != nil {
		log.Printf("⚠️  R2 archival disabled: %v", err)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
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
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	notificationService := services.NewNotificationService()
	fetchService := services.NewFetchService(db)
	scoringService := services.NewScoringService(db, notificationService)

	dispatcher := &services.TaskDispatcher{}
	taskScheduler := services.NewTaskScheduler(db, dispatcher)

	advancementService := services.NewAdvancementService(db, taskScheduler, notificationService)
	lifecycleService := services.NewLifecycleService(db, taskScheduler, fetchService, scoringService, notificationService, advancementService)
	populationService := services.NewPopulationService(db, fetchService, taskScheduler)
	dispatcher.Lifecycle = lifecycleService
	dispatcher.Population = populationService

	tournamentService := services.NewTournamentService(db, lifecycleService, scoringService)
	predictionService := services.NewPredictionService(db)

	if err := taskScheduler.Start(); err != nil {
		log.Fatal("failed to start task scheduler:", err)
	}
	defer taskScheduler.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go workers.PollScoreRefresh(ctx, db, scoringService, 30*time.Minute)

	handlers.SetupTournamentRoutes(app, tournamentService)
	handlers.SetupPredictionRoutes(app, predictionService)

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Task scheduler polling (every 1m)")
	log.Println("✅ Score refresh polling (every 30m)")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
}
