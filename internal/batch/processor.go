// Package batch turns delimited patient rows into staged eGFR records and back.
//
// Processing is tolerant: a row with any defect is dropped and processing moves on.
// Dropped rows are reported in Result.Rejections; they never abort the batch.
package batch

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"ckd-egfr-server/internal/ckd"
)

// ErrEmptyInput is returned when there is no text to process at all.
var ErrEmptyInput = errors.New("batch input is empty")

// Reason says why a row was dropped.
type Reason string

const (
	ReasonMissingField      Reason = "missing-field"
	ReasonInvalidAge        Reason = "invalid-age"
	ReasonAgeOutOfRange     Reason = "age-out-of-range"
	ReasonInvalidCreatinine Reason = "invalid-creatinine"
	ReasonRejectedByEngine  Reason = "rejected-by-engine"
)

// Record is one accepted row with its computed result.
type Record struct {
	PatientID  string    `json:"patientId"`
	Age        int       `json:"age"`
	Gender     string    `json:"gender"`
	Ethnicity  string    `json:"ethnicity"`
	Creatinine float64   `json:"creatinine"`
	EGFR       float64   `json:"eGFR"`
	Stage      ckd.Stage `json:"stage"`
}

// Rejection identifies a dropped row by its 1-based line number in the input.
type Rejection struct {
	Line      int    `json:"line"`
	PatientID string `json:"patientId,omitempty"`
	Reason    Reason `json:"reason"`
}

// Result holds accepted records in input order, plus the rows that were dropped.
type Result struct {
	Records    []Record    `json:"records"`
	Rejections []Rejection `json:"rejections"`
}

// Processor parses rows laid out according to one RowSchema.
type Processor struct {
	schema RowSchema
	now    func() time.Time
}

// Option configures a Processor.
type Option func(*Processor)

// WithClock sets the clock used to turn a year of birth into an age.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) {
		p.now = now
	}
}

// NewProcessor creates a Processor for the given schema.
func NewProcessor(schema RowSchema, opts ...Option) *Processor {
	p := &Processor{
		schema: schema,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Schema returns the schema the processor was built with.
func (p *Processor) Schema() RowSchema {
	return p.schema
}

// ProcessBatch parses raw with the given schema using the current date.
func ProcessBatch(raw string, schema RowSchema) (*Result, error) {
	return NewProcessor(schema).Process(raw)
}

// Process parses raw CSV text. The first line is always treated as a header and
// discarded, whatever it contains.
func (p *Processor) Process(raw string) (*Result, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, ErrEmptyInput
	}

	result := &Result{
		Records:    []Record{},
		Rejections: []Rejection{},
	}
	currentYear := p.now().Year()

	lines := strings.Split(raw, "\n")
	for i := 1; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}

		record, reason, ok := p.parseRow(strings.Split(line, ","), currentYear)
		if !ok {
			result.Rejections = append(result.Rejections, Rejection{
				Line:      i + 1,
				PatientID: record.PatientID,
				Reason:    reason,
			})
			continue
		}
		result.Records = append(result.Records, record)
	}

	return result, nil
}

// parseRow validates one split line. On failure the returned record carries at most
// the patient ID, for reporting.
func (p *Processor) parseRow(fields []string, currentYear int) (Record, Reason, bool) {
	layout := p.schema.Layout
	if len(fields) < layout.width() {
		var partial Record
		if layout.PatientID < len(fields) {
			partial.PatientID = fields[layout.PatientID]
		}
		return partial, ReasonMissingField, false
	}

	patientID := fields[layout.PatientID]
	genderCode := fields[layout.Gender]
	ethnicityCode := fields[layout.Ethnicity]
	ageText := fields[layout.Age]
	creatinineText := fields[layout.Creatinine]

	partial := Record{PatientID: patientID}

	// "0" is a meaningful gender code; only a literally empty field counts as missing.
	for _, f := range []string{patientID, genderCode, ethnicityCode, ageText, creatinineText} {
		if f == "" {
			return partial, ReasonMissingField, false
		}
	}

	n, err := strconv.Atoi(strings.TrimSpace(ageText))
	if err != nil {
		return partial, ReasonInvalidAge, false
	}
	age := n
	if layout.AgeSource == AgeFromYearOfBirth {
		age = currentYear - n
	}
	if age < ckd.MinAge || age > ckd.MaxAge {
		return partial, ReasonAgeOutOfRange, false
	}

	creatinine, err := strconv.ParseFloat(strings.TrimSpace(creatinineText), 64)
	if err != nil || !(creatinine > 0) || math.IsInf(creatinine, 0) {
		return partial, ReasonInvalidCreatinine, false
	}

	isFemale := p.schema.IsFemale(genderCode)
	res, err := ckd.ComputeEGFR(creatinine, age, isFemale, p.schema.IsBlack(ethnicityCode))
	if err != nil {
		return partial, ReasonRejectedByEngine, false
	}

	gender := "male"
	if isFemale {
		gender = "female"
	}

	return Record{
		PatientID:  patientID,
		Age:        age,
		Gender:     gender,
		Ethnicity:  ethnicityCode,
		Creatinine: creatinine,
		EGFR:       res.EGFR,
		Stage:      res.Stage,
	}, "", true
}
