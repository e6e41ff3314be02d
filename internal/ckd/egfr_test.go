package ckd

import (
	"errors"
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	if a == b {
		return true
	}
	return math.Abs(a-b) <= 1e-9*math.Max(math.Abs(a), math.Abs(b))
}

func TestComputeEGFRFormula(t *testing.T) {
	// Creatinine equal to the conversion factor makes the creatinine term exactly 1.
	res, err := ComputeEGFR(88.4, 40, false, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := 186 * math.Pow(40, -0.203)
	if !almostEqual(res.EGFR, want) {
		t.Fatalf("eGFR = %v, want %v", res.EGFR, want)
	}
	if res.Stage != Stage2 {
		t.Errorf("stage = %v, want 2", res.Stage)
	}

	res, err = ComputeEGFR(120, 65, false, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want = 186 * math.Pow(120/88.4, -1.154) * math.Pow(65, -0.203)
	if !almostEqual(res.EGFR, want) {
		t.Errorf("eGFR = %v, want %v", res.EGFR, want)
	}
}

func TestComputeEGFRMultipliers(t *testing.T) {
	base, err := ComputeEGFR(150, 55, false, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name     string
		female   bool
		black    bool
		expected float64
	}{
		{"female", true, false, base.EGFR * 0.742},
		{"black", false, true, base.EGFR * 1.210},
		{"female and black", true, true, base.EGFR * 0.742 * 1.210},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ComputeEGFR(150, 55, tt.female, tt.black)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !almostEqual(res.EGFR, tt.expected) {
				t.Errorf("eGFR = %v, want %v", res.EGFR, tt.expected)
			}
		})
	}
}

func TestComputeEGFRMonotonic(t *testing.T) {
	prev := math.Inf(1)
	for creat := 20.0; creat <= 1500; creat += 20 {
		res, err := ComputeEGFR(creat, 50, true, false)
		if err != nil {
			t.Fatalf("creatinine %v: %v", creat, err)
		}
		if !(res.EGFR < prev) {
			t.Fatalf("eGFR not decreasing in creatinine at %v: %v >= %v", creat, res.EGFR, prev)
		}
		prev = res.EGFR
	}

	prev = math.Inf(1)
	for age := MinAge; age <= MaxAge; age++ {
		res, err := ComputeEGFR(100, age, false, true)
		if err != nil {
			t.Fatalf("age %d: %v", age, err)
		}
		if !(res.EGFR < prev) {
			t.Fatalf("eGFR not decreasing in age at %d: %v >= %v", age, res.EGFR, prev)
		}
		prev = res.EGFR
	}
}

func TestComputeEGFRRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name       string
		creatinine float64
		age        int
		field      string
	}{
		{"zero creatinine", 0, 40, "creatinine"},
		{"negative creatinine", -5, 40, "creatinine"},
		{"NaN creatinine", math.NaN(), 40, "creatinine"},
		{"infinite creatinine", math.Inf(1), 40, "creatinine"},
		{"age below range", 100, 17, "age"},
		{"age above range", 100, 111, "age"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ComputeEGFR(tt.creatinine, tt.age, false, false)
			if err == nil {
				t.Fatalf("expected error, got result %+v", res)
			}
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
			if vErr.Field != tt.field {
				t.Errorf("field = %q, want %q", vErr.Field, tt.field)
			}
			if res != (Result{}) {
				t.Errorf("expected zero result, got %+v", res)
			}
		})
	}
}

func TestComputeEGFRAgeBoundsInclusive(t *testing.T) {
	for _, age := range []int{MinAge, MaxAge} {
		res, err := ComputeEGFR(90, age, false, false)
		if err != nil {
			t.Fatalf("age %d rejected: %v", age, err)
		}
		if res.EGFR <= 0 {
			t.Errorf("age %d: eGFR %v not positive", age, res.EGFR)
		}
	}
}

func TestToMicromolPerL(t *testing.T) {
	v, err := ToMicromolPerL(1.2, MgPerDL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !almostEqual(v, 1.2*88.4) {
		t.Errorf("converted = %v, want %v", v, 1.2*88.4)
	}

	v, err = ToMicromolPerL(106, MicromolPerL)
	if err != nil || v != 106 {
		t.Errorf("micromol/l passthrough = %v, %v", v, err)
	}

	if _, err := ToMicromolPerL(1, Unit("mmol/l")); err == nil {
		t.Error("expected error for unknown unit")
	}
}
