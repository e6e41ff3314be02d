// Package ckd estimates glomerular filtration rate with the four-variable MDRD
// equation and classifies the result into a chronic kidney disease stage.
//
// Everything in this package is pure: no I/O, no logging, no shared state.
package ckd

import (
	"fmt"
	"math"
)

// MDRD constants. Creatinine is supplied in µmol/L and converted to mg/dL
// through CreatinineFactor before the exponent is applied.
const (
	BaseCoefficient    = 186.0
	CreatinineFactor   = 88.4
	CreatinineExponent = -1.154
	AgeExponent        = -0.203
	FemaleMultiplier   = 0.742
	BlackMultiplier    = 1.210

	MinAge = 18
	MaxAge = 110
)

// Unit is the unit a creatinine value was measured in.
type Unit string

const (
	MicromolPerL Unit = "micromol/l"
	MgPerDL      Unit = "mg/dL"
)

// Result is the outcome of a single eGFR computation.
type Result struct {
	EGFR  float64 `json:"eGFR"`
	Stage Stage   `json:"stage"`
}

// ValidationError is returned when engine inputs are out of range.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("Invalid input values: %s %s", e.Field, e.Reason)
}

// ComputeEGFR returns the eGFR (ml/min/1.73m²) and CKD stage for one patient.
// Creatinine must be in µmol/L.
func ComputeEGFR(creatinine float64, age int, isFemale, isBlack bool) (Result, error) {
	// NaN fails every comparison, so test for the valid range rather than the invalid one.
	if !(creatinine > 0) || math.IsInf(creatinine, 1) {
		return Result{}, &ValidationError{Field: "creatinine", Reason: "must be a positive finite number"}
	}
	if age < MinAge || age > MaxAge {
		return Result{}, &ValidationError{Field: "age", Reason: fmt.Sprintf("must be between %d and %d", MinAge, MaxAge)}
	}

	egfr := BaseCoefficient *
		math.Pow(creatinine/CreatinineFactor, CreatinineExponent) *
		math.Pow(float64(age), AgeExponent)

	if isFemale {
		egfr *= FemaleMultiplier
	}
	if isBlack {
		egfr *= BlackMultiplier
	}

	return Result{EGFR: egfr, Stage: StageFor(egfr)}, nil
}

// ToMicromolPerL converts a creatinine value to µmol/L. Unknown units are an error.
func ToMicromolPerL(value float64, unit Unit) (float64, error) {
	switch unit {
	case MicromolPerL, "":
		return value, nil
	case MgPerDL:
		return value * CreatinineFactor, nil
	default:
		return 0, fmt.Errorf("unsupported creatinine unit %q", unit)
	}
}
