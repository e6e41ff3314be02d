package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"ckd-egfr-server/internal/archive"
	"ckd-egfr-server/internal/batch"
	"ckd-egfr-server/internal/config"
	"ckd-egfr-server/internal/handlers"
	"ckd-egfr-server/internal/middleware"
	"ckd-egfr-server/internal/models"
)

// SetupRoutes configures the application routes.
func SetupRoutes(router *gin.Engine, db *gorm.DB, cfg *config.Config, log zerolog.Logger, archiver archive.Archiver) error {
	defaultSchema, err := batch.ParseSchema(cfg.Batch.DefaultSchema)
	if err != nil {
		return err
	}

	// Initialize handlers
	calculatorHandler := handlers.NewCalculatorHandler(db, log)
	batchHandler := handlers.NewBatchHandler(db, log, archiver, defaultSchema, int64(cfg.Batch.MaxUploadMB)<<20)
	historyHandler := handlers.NewHistoryHandler(db)

	api := router.Group("/api/v1")
	api.Use(middleware.SessionMiddleware())
	{
		// Open to guests as well as logged-in users
		api.POST("/egfr", calculatorHandler.Calculate)
		api.GET("/stages", handlers.ListStages)

		// Batch upload is a clinician tool
		batchRoutes := api.Group("/batches")
		batchRoutes.Use(middleware.RequireUserType(models.UserTypeClinician))
		{
			batchRoutes.POST("", batchHandler.Upload)
			batchRoutes.POST("/export", batchHandler.ExportRecords)
			batchRoutes.GET("/:id", batchHandler.GetBatch)
			batchRoutes.GET("/:id/export", batchHandler.ExportBatch)
		}

		historyRoutes := api.Group("/history")
		historyRoutes.Use(middleware.RequireUserType(models.UserTypePatient, models.UserTypeClinician))
		{
			historyRoutes.GET("", historyHandler.ListHistory)
			historyRoutes.GET("/trend", historyHandler.Trend)
		}
	}

	// Simple health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "UP"})
	})

	return nil
}
