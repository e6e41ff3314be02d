package handlers

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"ckd-egfr-server/internal/batch"
	"ckd-egfr-server/internal/ckd"
	"ckd-egfr-server/internal/middleware"
	"ckd-egfr-server/internal/models"
	"ckd-egfr-server/internal/utils"
)

// EGFRUnit is the unit every eGFR value is reported in.
const EGFRUnit = "mL/min/1.73m²"

// CalculatorHandler handles single eGFR calculations.
type CalculatorHandler struct {
	DB  *gorm.DB
	Log zerolog.Logger
	now func() time.Time
}

// NewCalculatorHandler creates a new CalculatorHandler.
func NewCalculatorHandler(db *gorm.DB, log zerolog.Logger) *CalculatorHandler {
	return &CalculatorHandler{
		DB:  db,
		Log: log.With().Str("component", "calculator").Logger(),
		now: time.Now,
	}
}

// CalculateRequest represents the request body for one calculation.
type CalculateRequest struct {
	PatientID      string          `json:"patientId" binding:"omitempty,max=100"`
	Age            int             `json:"age" binding:"required,min=18,max=110"`
	Gender         string          `json:"gender" binding:"required,oneof=male female"`
	IsBlack        bool            `json:"isBlack"`
	Creatinine     float64         `json:"creatinine" binding:"required,gt=0"`
	CreatinineUnit ckd.Unit        `json:"creatinineUnit" binding:"omitempty,oneof=micromol/l mg/dL"`
	UserType       models.UserType `json:"userType" binding:"omitempty,oneof=patient clinician"`
	HCPID          string          `json:"hcpId" binding:"omitempty,max=64"`
	NHSNumber      string          `json:"nhsNumber" binding:"omitempty,numeric,len=10"`
	RememberMe     bool            `json:"rememberMe"`
}

// CalculateResponse is the outcome shown on the result screen.
type CalculateResponse struct {
	EGFR    float64   `json:"eGFR"`
	Display string    `json:"display"`
	Stage   ckd.Stage `json:"stage"`
	Band    ckd.Band  `json:"band"`
	Advice  string    `json:"advice"`
	Unit    string    `json:"unit"`
	EntryID string    `json:"entryId,omitempty"`
}

// Calculate handles POST /egfr.
// Clinician results are always saved to history; patient results only with rememberMe.
func (h *CalculatorHandler) Calculate(c *gin.Context) {
	var req CalculateRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	userType := h.effectiveUserType(c, req.UserType)
	fillIdentityFromSession(c, &req)

	fields := map[string]string{}
	if userType == models.UserTypeClinician && strings.TrimSpace(req.HCPID) == "" {
		fields["hcpId"] = utils.FieldMessage("HCPID")
	}
	if userType == models.UserTypePatient && req.RememberMe && !utils.ValidNHSNumber(req.NHSNumber) {
		fields["nhsNumber"] = utils.FieldMessage("NHSNumber")
	}
	if len(fields) > 0 {
		utils.ValidationFailed(c, fields)
		return
	}

	creatinine, err := ckd.ToMicromolPerL(req.Creatinine, req.CreatinineUnit)
	if err != nil {
		utils.ValidationFailed(c, map[string]string{"creatinineUnit": err.Error()})
		return
	}

	result, err := ckd.ComputeEGFR(creatinine, req.Age, req.Gender == "female", req.IsBlack)
	if err != nil {
		var verr *ckd.ValidationError
		if errors.As(err, &verr) {
			utils.ValidationFailed(c, map[string]string{verr.Field: engineFieldMessage(verr)})
			return
		}
		utils.InternalServerError(c, "Failed to calculate eGFR: "+err.Error())
		return
	}

	audience := ckd.AudiencePatient
	if userType == models.UserTypeClinician {
		audience = ckd.AudienceClinician
	}

	resp := CalculateResponse{
		EGFR:    result.EGFR,
		Display: batch.FormatEGFR(result.EGFR),
		Stage:   result.Stage,
		Band:    result.Stage.Band(),
		Advice:  ckd.Advice(result.Stage, audience),
		Unit:    EGFRUnit,
	}

	if entry := h.historyEntry(req, userType, creatinine, result); entry != nil {
		if err := h.DB.Create(entry).Error; err != nil {
			utils.InternalServerError(c, "Failed to save calculation: "+err.Error())
			return
		}
		resp.EntryID = entry.ID
	}

	h.Log.Debug().
		Str("user_type", string(userType)).
		Str("stage", result.Stage.String()).
		Bool("saved", resp.EntryID != "").
		Msg("eGFR calculated")

	utils.Success(c, "eGFR calculated successfully", resp)
}

// effectiveUserType lets a logged-in session decide who is calculating. Only guests
// may name a user type in the body; otherwise the caller is treated as a patient.
func (h *CalculatorHandler) effectiveUserType(c *gin.Context, requested models.UserType) models.UserType {
	if sessionType, ok := sessionIdentity(c); ok {
		return sessionType
	}
	if requested != "" {
		return requested
	}
	return models.UserTypePatient
}

// fillIdentityFromSession replaces any HCP ID or NHS number in the body with the
// logged-in identity, so history is never written under someone else's ID.
func fillIdentityFromSession(c *gin.Context, req *CalculateRequest) {
	sessionType, ok := sessionIdentity(c)
	if !ok {
		return
	}
	sessionID, _ := middleware.GetUserIDFromContext(c)
	switch sessionType {
	case models.UserTypeClinician:
		req.HCPID = sessionID
		req.NHSNumber = ""
	case models.UserTypePatient:
		req.NHSNumber = sessionID
		req.HCPID = ""
	}
}

func sessionIdentity(c *gin.Context) (models.UserType, bool) {
	sessionType, ok := middleware.GetUserTypeFromContext(c)
	if !ok || sessionType == models.UserTypeGuest {
		return "", false
	}
	return sessionType, true
}

func (h *CalculatorHandler) historyEntry(req CalculateRequest, userType models.UserType, creatinine float64, result ckd.Result) *models.CalculationEntry {
	var userID string
	switch {
	case userType == models.UserTypeClinician:
		userID = strings.TrimSpace(req.HCPID)
	case userType == models.UserTypePatient && req.RememberMe:
		userID = req.NHSNumber
	default:
		return nil
	}

	patientID := strings.TrimSpace(req.PatientID)
	if patientID == "" {
		patientID = models.AnonymousPatient
	}

	return &models.CalculationEntry{
		UserType:   userType,
		UserID:     userID,
		PatientID:  patientID,
		Age:        req.Age,
		Creatinine: creatinine,
		EGFR:       result.EGFR,
		Stage:      result.Stage,
		Source:     models.SourceCalculator,
		Date:       h.now().UTC(),
	}
}

func engineFieldMessage(verr *ckd.ValidationError) string {
	switch verr.Field {
	case "age":
		return utils.FieldMessage("Age")
	case "creatinine":
		return utils.FieldMessage("Creatinine")
	default:
		return verr.Error()
	}
}
