package batch

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownSchema is returned by ParseSchema for names it does not recognise.
var ErrUnknownSchema = errors.New("unknown row schema")

// AgeSource says whether a layout carries the age itself or a year of birth.
type AgeSource int

const (
	AgeDirect AgeSource = iota
	AgeFromYearOfBirth
)

// GenderConvention selects how the gender column maps to the female flag.
type GenderConvention string

const (
	// GenderNumeric treats "0" as female and anything else as male.
	GenderNumeric GenderConvention = "numeric"
	// GenderTextual treats "female" or "f" (any case) as female.
	GenderTextual GenderConvention = "textual"
)

// EthnicityConvention selects how the ethnicity column maps to the Black flag.
type EthnicityConvention string

const (
	// EthnicityLetter matches the exact code "B".
	EthnicityLetter EthnicityConvention = "letter"
	// EthnicityTextual matches any value containing "black" (any case).
	EthnicityTextual EthnicityConvention = "textual"
)

// Layout holds the zero-based column positions of the five fields a row needs.
type Layout struct {
	PatientID  int
	Gender     int
	Ethnicity  int
	Age        int
	Creatinine int
	AgeSource  AgeSource
}

// width is the number of leading columns a row must have for this layout.
func (l Layout) width() int {
	widest := 0
	for _, idx := range []int{l.PatientID, l.Gender, l.Ethnicity, l.Age, l.Creatinine} {
		if idx > widest {
			widest = idx
		}
	}
	return widest + 1
}

// RowSchema fixes the column layout and the coding conventions of one CSV file.
type RowSchema struct {
	Name      string
	Layout    Layout
	Gender    GenderConvention
	Ethnicity EthnicityConvention
}

// SchemaA is PatientID,Gender,Ethnicity,Age,Creatinine with Gender "0"/"1" and Ethnicity "B"/"O"/...
var SchemaA = RowSchema{
	Name: "A",
	Layout: Layout{
		PatientID: 0, Gender: 1, Ethnicity: 2, Age: 3, Creatinine: 4,
		AgeSource: AgeDirect,
	},
	Gender:    GenderNumeric,
	Ethnicity: EthnicityLetter,
}

// SchemaB is patientID,gender,yearOfBirth,ethnicity,creatinine with free-text gender and ethnicity.
var SchemaB = RowSchema{
	Name: "B",
	Layout: Layout{
		PatientID: 0, Gender: 1, Age: 2, Ethnicity: 3, Creatinine: 4,
		AgeSource: AgeFromYearOfBirth,
	},
	Gender:    GenderTextual,
	Ethnicity: EthnicityTextual,
}

// ExportSchema reads text produced by Export. The ethnicity column is passed through
// unchanged on export, so the caller supplies the convention of the original input.
func ExportSchema(ethnicity EthnicityConvention) RowSchema {
	return RowSchema{
		Name: "export",
		Layout: Layout{
			PatientID: 0, Age: 1, Gender: 2, Ethnicity: 3, Creatinine: 4,
			AgeSource: AgeDirect,
		},
		Gender:    GenderTextual,
		Ethnicity: ethnicity,
	}
}

// ParseSchema resolves a configured schema name. Export text is read with the letter
// ethnicity convention, which is what schema A files produce.
func ParseSchema(name string) (RowSchema, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "A":
		return SchemaA, nil
	case "B":
		return SchemaB, nil
	case "EXPORT":
		return ExportSchema(EthnicityLetter), nil
	default:
		return RowSchema{}, fmt.Errorf("%w: %q", ErrUnknownSchema, name)
	}
}

// IsFemale applies the schema's gender convention.
func (s RowSchema) IsFemale(code string) bool {
	if s.Gender == GenderTextual {
		return strings.EqualFold(code, "female") || strings.EqualFold(code, "f")
	}
	return code == "0"
}

// IsBlack applies the schema's ethnicity convention.
func (s RowSchema) IsBlack(code string) bool {
	if s.Ethnicity == EthnicityTextual {
		return strings.Contains(strings.ToLower(code), "black")
	}
	return code == "B"
}
