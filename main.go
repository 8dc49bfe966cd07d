package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"veteran-pitch-system/handlers"
	"veteran-pitch-system/middleware"
	"veteran-pitch-system/models"
	"veteran-pitch-system/services"
	"veteran-pitch-system/workers"

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

	// 🔐❗ GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	// Load allowed origins from environment variable
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
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-Service-Token, X-User-ID, X-User-Roles",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	siteURL := os.Getenv("SITE_URL")
	if siteURL == "" {
		log.Fatal("SITE_URL environment variable not set — share links cannot be built")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Pitch{},
		&models.Referral{},
		&models.ReferralEvent{},
		&models.SharedPitchClick{},
		&models.Endorsement{},
		&models.ResumeRequest{},
		&models.ActivityEvent{},
		&models.VeteranMirror{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	store := services.NewGormReferralStore(db)
	cache := services.NewMetricsCache()

	referralService := services.NewReferralService(store, cache, siteURL)
	recorder := services.NewEventRecorder(store, cache)
	metricsService := services.NewMetricsService(store, cache)
	analyticsService := services.NewAnalyticsService(store, referralService)
	engagementService := services.NewEngagementService(db, cache)

	// --- CONFIGURE Auth Service Details for Veteran Profile Mirroring ---
	authServiceURL := os.Getenv("AUTH_SERVICE_URL")
	if authServiceURL == "" {
		log.Fatal("AUTH_SERVICE_URL environment variable not set")
	}
	pitchServiceToken := os.Getenv("PITCH_SERVICE_TOKEN")
	if pitchServiceToken == "" {
		log.Fatal("PITCH_SERVICE_TOKEN environment variable not set")
	}
	// --- END CONFIG ---

	syncWorker := workers.NewVeteranProfileSyncWorker(db, authServiceURL, "/api/v1/public/veterans", pitchServiceToken)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Println("Starting Veteran Profile Sync Worker...")
		syncWorker.Start(ctx)
	}()

	services.StartMetricsJobs(cache, db)

	// ✅ Setup routes — enforced Gateway auth + consistent /s/ prefix for user context
	handlers.SetupReferralRoutes(app, referralService, recorder, analyticsService)
	handlers.SetupMetricsRoutes(app, metricsService)
	handlers.SetupEngagementRoutes(app, engagementService)

	port := os.Getenv("PORT")
	if port == "" {
		port = "5300"
	}

	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", port)
	log.Println("✅ Veteran Profile Sync Worker running")
	log.Println("✅ Metrics cache sweeper and click reconciliation scheduled")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
}
