package batch

import (
	"math"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"ckd-egfr-server/internal/ckd"
)

// ExportHeader is the first line of every export, whatever schema the input used.
const ExportHeader = "Patient ID,Age,Gender,Ethnicity,Creatinine,eGFR,CKD Stage"

// ExportBatch renders records as CSV text. Gender is written as its normalised label and
// ethnicity as the code found in the input. eGFR has exactly one decimal digit.
func ExportBatch(records []Record) string {
	lines := lo.Map(records, func(r Record, _ int) string {
		return r.exportLine()
	})
	return strings.Join(append([]string{ExportHeader}, lines...), "\n") + "\n"
}

// Problems reports why a record supplied from outside cannot be exported, keyed by
// its JSON field name. It returns nil for a record the processor could have produced.
func (r Record) Problems() map[string]string {
	problems := map[string]string{}
	text := map[string]string{"patientId": r.PatientID, "gender": r.Gender, "ethnicity": r.Ethnicity}
	for field, v := range text {
		switch {
		case v == "":
			problems[field] = field + " is required"
		case strings.ContainsAny(v, ",\r\n"):
			problems[field] = field + " must not contain commas or line breaks"
		}
	}
	if _, ok := problems["gender"]; !ok && r.Gender != "male" && r.Gender != "female" {
		problems["gender"] = "gender must be male or female"
	}
	if r.Age < ckd.MinAge || r.Age > ckd.MaxAge {
		problems["age"] = "Age must be between 18 and 110"
	}
	if !finitePositive(r.Creatinine) {
		problems["creatinine"] = "Please enter a valid creatinine value"
	}
	if !finitePositive(r.EGFR) {
		problems["eGFR"] = "eGFR must be a positive number"
	}
	switch {
	case !r.Stage.Valid():
		problems["stage"] = "stage must be one of 1, 2, 3A, 3B, 4, 5"
	case finitePositive(r.EGFR) && r.Stage != ckd.StageFor(r.EGFR):
		problems["stage"] = "stage does not match eGFR"
	}

	if len(problems) == 0 {
		return nil
	}
	return problems
}

func finitePositive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}

func (r Record) exportLine() string {
	return strings.Join([]string{
		r.PatientID,
		strconv.Itoa(r.Age),
		r.Gender,
		r.Ethnicity,
		strconv.FormatFloat(r.Creatinine, 'f', -1, 64),
		FormatEGFR(r.EGFR),
		r.Stage.String(),
	}, ",")
}

// FormatEGFR renders an eGFR value the way exports and displays show it.
func FormatEGFR(egfr float64) string {
	return strconv.FormatFloat(egfr, 'f', 1, 64)
}
