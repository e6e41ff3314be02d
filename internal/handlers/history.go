package handlers

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"ckd-egfr-server/internal/middleware"
	"ckd-egfr-server/internal/models"
	"ckd-egfr-server/internal/utils"
)

const defaultHistoryLimit = 50

// HistoryHandler serves saved calculations.
type HistoryHandler struct {
	DB *gorm.DB
}

// NewHistoryHandler creates a new HistoryHandler.
func NewHistoryHandler(db *gorm.DB) *HistoryHandler {
	return &HistoryHandler{DB: db}
}

// HistoryQuery holds the query parameters for listing history.
type HistoryQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=500"`
}

// TrendResponse is the chart series of recent results.
type TrendResponse struct {
	EGFR []float64 `json:"eGFR"`
}

// ListHistory handles GET /history, newest first.
func (h *HistoryHandler) ListHistory(c *gin.Context) {
	var q HistoryQuery
	if !utils.BindQuery(c, &q) {
		return
	}
	limit := q.Limit
	if limit == 0 {
		limit = defaultHistoryLimit
	}

	userType, userID := caller(c)
	entries, err := models.RecentHistory(h.DB, userType, userID, limit)
	if err != nil {
		utils.InternalServerError(c, "Failed to load history: "+err.Error())
		return
	}

	utils.Success(c, "History retrieved successfully", entries)
}

// Trend handles GET /history/trend, oldest first.
func (h *HistoryHandler) Trend(c *gin.Context) {
	userType, userID := caller(c)
	series, err := models.TrendSeries(h.DB, userType, userID)
	if err != nil {
		utils.InternalServerError(c, "Failed to load history: "+err.Error())
		return
	}

	utils.Success(c, "Trend retrieved successfully", TrendResponse{EGFR: series})
}

func caller(c *gin.Context) (models.UserType, string) {
	userType, _ := middleware.GetUserTypeFromContext(c)
	userID, _ := middleware.GetUserIDFromContext(c)
	return userType, userID
}
