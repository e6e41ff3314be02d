package models

import (
	"time"

	"github.com/samber/lo"
	"gorm.io/gorm"

	"ckd-egfr-server/internal/batch"
	"ckd-egfr-server/internal/ckd"
)

// UserType identifies who ran a calculation
type UserType string

const (
	UserTypePatient   UserType = "patient"
	UserTypeClinician UserType = "clinician"
	UserTypeGuest     UserType = "guest"
)

// EntrySource says which feature produced a history entry
type EntrySource string

const (
	SourceCalculator EntrySource = "calculator"
	SourceBatch      EntrySource = "batch"
)

// AnonymousPatient is stored when no patient identifier was given
const AnonymousPatient = "Anonymous"

// TrendLength is the number of points in a history trend series
const TrendLength = 7

// CalculationEntry is one saved eGFR result
type CalculationEntry struct {
	BaseModel
	UserType   UserType    `gorm:"size:20;index:idx_history_owner" json:"userType"`
	UserID     string      `gorm:"size:64;index:idx_history_owner" json:"userId"`
	PatientID  string      `gorm:"size:100" json:"patientId"`
	Age        int         `json:"age"`
	Creatinine float64     `json:"creatinine"`
	EGFR       float64     `gorm:"column:egfr" json:"eGFR"`
	Stage      ckd.Stage   `gorm:"type:varchar(2);not null" json:"stage"`
	Source     EntrySource `gorm:"size:20" json:"source"`
	BatchRunID *string     `gorm:"size:36;index" json:"batchRunId,omitempty"`
	Date       time.Time   `gorm:"column:calculated_at;index" json:"date"`
}

// TableName keeps the table name stable across drivers
func (CalculationEntry) TableName() string {
	return "calculation_history"
}

// EntriesFromRecords builds one batch history entry per accepted record.
func EntriesFromRecords(records []batch.Record, userType UserType, userID string, at time.Time) []CalculationEntry {
	return lo.Map(records, func(r batch.Record, _ int) CalculationEntry {
		patientID := r.PatientID
		if patientID == "" {
			patientID = AnonymousPatient
		}
		return CalculationEntry{
			UserType:   userType,
			UserID:     userID,
			PatientID:  patientID,
			Age:        r.Age,
			Creatinine: r.Creatinine,
			EGFR:       r.EGFR,
			Stage:      r.Stage,
			Source:     SourceBatch,
			Date:       at,
		}
	})
}

// RecentHistory returns the newest entries for one user, newest first.
func RecentHistory(db *gorm.DB, userType UserType, userID string, limit int) ([]CalculationEntry, error) {
	var entries []CalculationEntry
	err := db.Where("user_type = ? AND user_id = ?", userType, userID).
		Order("calculated_at DESC").
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// TrendSeries returns up to TrendLength recent eGFR values for one user, oldest first.
func TrendSeries(db *gorm.DB, userType UserType, userID string) ([]float64, error) {
	entries, err := RecentHistory(db, userType, userID, TrendLength)
	if err != nil {
		return nil, err
	}
	series := lo.Map(entries, func(e CalculationEntry, _ int) float64 {
		return e.EGFR
	})
	return lo.Reverse(series), nil
}

// PurgeHistoryBefore deletes entries dated before cutoff and reports how many went.
func PurgeHistoryBefore(db *gorm.DB, cutoff time.Time) (int64, error) {
	res := db.Where("calculated_at < ?", cutoff.UTC()).Delete(&CalculationEntry{})
	return res.RowsAffected, res.Error
}
