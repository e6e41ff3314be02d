package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"ckd-egfr-server/internal/archive"
	"ckd-egfr-server/internal/batch"
	"ckd-egfr-server/internal/middleware"
	"ckd-egfr-server/internal/models"
	"ckd-egfr-server/internal/utils"
)

// BatchHandler handles CSV uploads and exports.
type BatchHandler struct {
	DB            *gorm.DB
	Log           zerolog.Logger
	Archiver      archive.Archiver
	DefaultSchema batch.RowSchema
	MaxUploadSize int64
	now           func() time.Time
}

// NewBatchHandler creates a new BatchHandler.
func NewBatchHandler(db *gorm.DB, log zerolog.Logger, archiver archive.Archiver, defaultSchema batch.RowSchema, maxUploadSize int64) *BatchHandler {
	if archiver == nil {
		archiver = archive.Noop{}
	}
	return &BatchHandler{
		DB:            db,
		Log:           log.With().Str("component", "batch").Logger(),
		Archiver:      archiver,
		DefaultSchema: defaultSchema,
		MaxUploadSize: maxUploadSize,
		now:           time.Now,
	}
}

// BatchResponse is a processed batch as returned to the client.
type BatchResponse struct {
	ID         string            `json:"id,omitempty"`
	Schema     string            `json:"schema"`
	FileName   string            `json:"fileName,omitempty"`
	Accepted   int               `json:"accepted"`
	Rejected   int               `json:"rejected"`
	Records    []batch.Record    `json:"records"`
	Rejections []batch.Rejection `json:"rejections"`
	CreatedAt  *time.Time        `json:"createdAt,omitempty"`
}

// ExportRequest carries records to export without storing them.
type ExportRequest struct {
	Records []batch.Record `json:"records" binding:"required"`
}

// Upload handles POST /batches. The body is either raw CSV text or a multipart form
// with the CSV in the "file" field. The schema query parameter picks the row layout.
func (h *BatchHandler) Upload(c *gin.Context) {
	schema := h.DefaultSchema
	if name := c.Query("schema"); name != "" {
		parsed, err := batch.ParseSchema(name)
		if err != nil {
			utils.BadRequest(c, err.Error())
			return
		}
		schema = parsed
	}

	raw, fileName, err := h.readUpload(c)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.RequestTooLarge(c, fmt.Sprintf("CSV file exceeds the %d byte limit", tooLarge.Limit))
			return
		}
		utils.BadRequest(c, "Failed to read the CSV file content.")
		return
	}

	result, err := batch.NewProcessor(schema, batch.WithClock(h.now)).Process(raw)
	if err != nil {
		if errors.Is(err, batch.ErrEmptyInput) {
			utils.UnprocessableEntity(c, "Please enter CSV data first.")
			return
		}
		utils.InternalServerError(c, "Failed to process the CSV data: "+err.Error())
		return
	}

	userType, _ := middleware.GetUserTypeFromContext(c)
	userID, _ := middleware.GetUserIDFromContext(c)

	run, err := models.NewBatchRun(schema.Name, userType, userID, fileName, result)
	if err != nil {
		utils.InternalServerError(c, "Failed to store batch: "+err.Error())
		return
	}
	if err := models.SaveBatchRun(h.DB, run, h.now().UTC()); err != nil {
		utils.InternalServerError(c, "Failed to store batch: "+err.Error())
		return
	}

	h.Log.Info().
		Str("batch_id", run.ID).
		Str("schema", schema.Name).
		Int("accepted", run.Accepted).
		Int("rejected", run.Rejected).
		Msg("Batch processed")
	for _, rej := range result.Rejections {
		h.Log.Debug().
			Str("batch_id", run.ID).
			Int("line", rej.Line).
			Str("patient_id", rej.PatientID).
			Str("reason", string(rej.Reason)).
			Msg("Row skipped")
	}

	utils.Created(c, "Batch processed successfully", batchResponse(run, result))
}

// GetBatch handles GET /batches/:id. Callers only see their own batches.
func (h *BatchHandler) GetBatch(c *gin.Context) {
	run, ok := h.loadRun(c)
	if !ok {
		return
	}

	result, err := run.Result()
	if err != nil {
		utils.InternalServerError(c, "Failed to read batch: "+err.Error())
		return
	}

	utils.Success(c, "Batch retrieved successfully", batchResponse(run, result))
}

// ExportBatch handles GET /batches/:id/export and streams the results as a CSV attachment.
func (h *BatchHandler) ExportBatch(c *gin.Context) {
	run, ok := h.loadRun(c)
	if !ok {
		return
	}

	result, err := run.Result()
	if err != nil {
		utils.InternalServerError(c, "Failed to read batch: "+err.Error())
		return
	}
	if len(result.Records) == 0 {
		utils.UnprocessableEntity(c, "There are no results to export.")
		return
	}

	text := batch.ExportBatch(result.Records)
	fileName := exportFileName(h.now())

	key, err := h.Archiver.Archive(c.Request.Context(), run.ID+"/"+fileName, []byte(text))
	if err != nil {
		// The download still succeeds without an archived copy.
		h.Log.Warn().Err(err).Str("batch_id", run.ID).Msg("Failed to archive export")
	} else if key != "" {
		if err := h.DB.Model(run).Update("archive_key", key).Error; err != nil {
			h.Log.Warn().Err(err).Str("batch_id", run.ID).Msg("Failed to record archive key")
		}
	}

	writeCSV(c, fileName, text)
}

// ExportRecords handles POST /batches/export for records the client already holds.
func (h *BatchHandler) ExportRecords(c *gin.Context) {
	var req ExportRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	if len(req.Records) == 0 {
		utils.UnprocessableEntity(c, "There are no results to export.")
		return
	}
	if fields := recordProblems(req.Records); fields != nil {
		utils.UnprocessableFields(c, "Some records cannot be exported", fields)
		return
	}

	writeCSV(c, exportFileName(h.now()), batch.ExportBatch(req.Records))
}

// recordProblems keys each problem as records[i].field.
func recordProblems(records []batch.Record) map[string]string {
	var fields map[string]string
	for i, r := range records {
		for field, msg := range r.Problems() {
			if fields == nil {
				fields = map[string]string{}
			}
			fields[fmt.Sprintf("records[%d].%s", i, field)] = msg
		}
	}
	return fields
}

func (h *BatchHandler) readUpload(c *gin.Context) (string, string, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadSize)

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		header, err := c.FormFile("file")
		if err != nil {
			return "", "", err
		}
		f, err := header.Open()
		if err != nil {
			return "", "", err
		}
		defer f.Close()

		data, err := io.ReadAll(f)
		if err != nil {
			return "", "", err
		}
		return string(data), header.Filename, nil
	}

	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return "", "", err
	}
	return string(data), "", nil
}

func (h *BatchHandler) loadRun(c *gin.Context) (*models.BatchRun, bool) {
	userID, _ := middleware.GetUserIDFromContext(c)

	var run models.BatchRun
	err := h.DB.Where("id = ? AND user_id = ?", c.Param("id"), userID).First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "Batch not found")
		} else {
			utils.InternalServerError(c, "Database error loading batch: "+err.Error())
		}
		return nil, false
	}
	return &run, true
}

func batchResponse(run *models.BatchRun, result *batch.Result) BatchResponse {
	createdAt := run.CreatedAt
	return BatchResponse{
		ID:         run.ID,
		Schema:     run.Schema,
		FileName:   run.FileName,
		Accepted:   len(result.Records),
		Rejected:   len(result.Rejections),
		Records:    result.Records,
		Rejections: result.Rejections,
		CreatedAt:  &createdAt,
	}
}

func exportFileName(now time.Time) string {
	return fmt.Sprintf("ckd_results_%d.csv", now.UnixMilli())
}

func writeCSV(c *gin.Context, fileName, text string) {
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, fileName))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", []byte(text))
}
