package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"ckd-egfr-server/internal/batch"
)

// BatchRun is one processed CSV upload
type BatchRun struct {
	BaseModel
	Schema     string         `gorm:"size:20" json:"schema"`
	UserType   UserType       `gorm:"size:20" json:"userType"`
	UserID     string         `gorm:"size:64;index" json:"userId"`
	FileName   string         `gorm:"size:255" json:"fileName,omitempty"`
	Accepted   int            `json:"accepted"`
	Rejected   int            `json:"rejected"`
	Records    datatypes.JSON `json:"records"`
	Rejections datatypes.JSON `json:"rejections"`
	ArchiveKey string         `gorm:"size:512" json:"archiveKey,omitempty"`
}

// NewBatchRun captures a processing result for storage.
func NewBatchRun(schema string, userType UserType, userID, fileName string, result *batch.Result) (*BatchRun, error) {
	records, err := json.Marshal(result.Records)
	if err != nil {
		return nil, fmt.Errorf("encode records: %w", err)
	}
	rejections, err := json.Marshal(result.Rejections)
	if err != nil {
		return nil, fmt.Errorf("encode rejections: %w", err)
	}

	return &BatchRun{
		Schema:     schema,
		UserType:   userType,
		UserID:     userID,
		FileName:   fileName,
		Accepted:   len(result.Records),
		Rejected:   len(result.Rejections),
		Records:    datatypes.JSON(records),
		Rejections: datatypes.JSON(rejections),
	}, nil
}

// Result decodes the stored records and rejections.
func (r *BatchRun) Result() (*batch.Result, error) {
	result := &batch.Result{
		Records:    []batch.Record{},
		Rejections: []batch.Rejection{},
	}
	if len(r.Records) > 0 {
		if err := json.Unmarshal(r.Records, &result.Records); err != nil {
			return nil, fmt.Errorf("decode records: %w", err)
		}
	}
	if len(r.Rejections) > 0 {
		if err := json.Unmarshal(r.Rejections, &result.Rejections); err != nil {
			return nil, fmt.Errorf("decode rejections: %w", err)
		}
	}
	return result, nil
}

// SaveBatchRun stores the run and a history entry per accepted record in one transaction.
func SaveBatchRun(db *gorm.DB, run *BatchRun, at time.Time) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(run).Error; err != nil {
			return err
		}

		result, err := run.Result()
		if err != nil {
			return err
		}
		if len(result.Records) == 0 {
			return nil
		}

		entries := EntriesFromRecords(result.Records, run.UserType, run.UserID, at)
		for i := range entries {
			entries[i].BatchRunID = &run.ID
		}
		return tx.CreateInBatches(&entries, 100).Error
	})
}
