package handlers

import (
	"github.com/gin-gonic/gin"

	"ckd-egfr-server/internal/ckd"
	"ckd-egfr-server/internal/utils"
)

// ListStages handles GET /stages.
func ListStages(c *gin.Context) {
	utils.Success(c, "Stages retrieved successfully", ckd.StageTable)
}
