package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"ckd-egfr-server/internal/archive"
	"ckd-egfr-server/internal/config"
	"ckd-egfr-server/internal/jobs"
	"ckd-egfr-server/internal/middleware"
	"ckd-egfr-server/internal/models"
	"ckd-egfr-server/internal/routes"
)

func main() {
	log := zerolog.New(zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) { w.Out = os.Stdout })).With().Timestamp().Caller().Logger()

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("No .env file loaded, using process environment")
	}

	// Initialize configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatal().Err(err).Str("level", cfg.LogLevel).Msg("Invalid LOG_LEVEL")
	}
	log = log.Level(level)

	// Initialize database connection
	db, err := models.InitDB(models.DatabaseConfig{
		Driver: cfg.Database.Driver,
		DSN:    cfg.Database.DSN,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Error connecting to database")
	}

	var archiver archive.Archiver = archive.Noop{}
	if cfg.Export.Bucket != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		s3Archiver, err := archive.NewS3(ctx, cfg.Export.Bucket, cfg.Export.Prefix)
		cancel()
		if err != nil {
			log.Fatal().Err(err).Msg("Error configuring export archive")
		}
		archiver = s3Archiver
		log.Info().Str("bucket", cfg.Export.Bucket).Msg("Exports will be archived to S3")
	}

	scheduler := cron.New()
	if cfg.History.RetentionDays > 0 {
		retention := jobs.NewRetention(db, cfg.History.RetentionDays, log)
		if _, err := retention.Schedule(scheduler, cfg.History.RetentionSchedule); err != nil {
			log.Fatal().Err(err).Msg("Error scheduling history retention")
		}
	}
	scheduler.Start()
	defer scheduler.Stop()

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize Gin router
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(log))

	// Configure CORS
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Origin}
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", middleware.HeaderUserType, middleware.HeaderUserID}
	corsConfig.ExposeHeaders = []string{"Content-Disposition"}
	router.Use(cors.New(corsConfig))

	if err := routes.SetupRoutes(router, db, cfg, log, archiver); err != nil {
		log.Fatal().Err(err).Msg("Error setting up routes")
	}

	// Start server
	serverAddr := fmt.Sprintf(":%s", cfg.Port)
	log.Info().Str("port", cfg.Port).Msg("Server running")
	if err := router.Run(serverAddr); err != nil {
		log.Fatal().Err(err).Msg("Failed to start server")
	}
}
