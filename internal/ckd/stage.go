package ckd

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Stage is a CKD stage. The zero value is not a valid stage.
type Stage int

const (
	Stage1 Stage = iota + 1
	Stage2
	Stage3A
	Stage3B
	Stage4
	Stage5
)

// Band groups stages for display purposes.
type Band string

const (
	BandGood     Band = "good"
	BandWarning  Band = "warning"
	BandCritical Band = "critical"
)

var stageCodes = map[Stage]string{
	Stage1:  "1",
	Stage2:  "2",
	Stage3A: "3A",
	Stage3B: "3B",
	Stage4:  "4",
	Stage5:  "5",
}

// Stages lists every stage from mildest to most severe.
var Stages = []Stage{Stage1, Stage2, Stage3A, Stage3B, Stage4, Stage5}

// StageFor maps an eGFR value to its stage. Lower bounds are inclusive.
func StageFor(egfr float64) Stage {
	switch {
	case egfr >= 90:
		return Stage1
	case egfr >= 60:
		return Stage2
	case egfr >= 45:
		return Stage3A
	case egfr >= 30:
		return Stage3B
	case egfr >= 15:
		return Stage4
	default:
		return Stage5
	}
}

// Valid reports whether s is one of the six defined stages.
func (s Stage) Valid() bool {
	_, ok := stageCodes[s]
	return ok
}

// Rank orders stages from 0 (stage 1) to 5 (stage 5). Invalid stages rank -1.
func (s Stage) Rank() int {
	if !s.Valid() {
		return -1
	}
	return int(s) - 1
}

// AtMost reports whether s is no more severe than other.
func (s Stage) AtMost(other Stage) bool {
	return s.Valid() && other.Valid() && s.Rank() <= other.Rank()
}

// Numeric reports whether the stage is one of the plain integer stages.
func (s Stage) Numeric() bool {
	return s.Valid() && s != Stage3A && s != Stage3B
}

// Band returns good for stages up to 2, warning for 3A and 3B, critical otherwise.
func (s Stage) Band() Band {
	switch {
	case s.AtMost(Stage2):
		return BandGood
	case s == Stage3A || s == Stage3B:
		return BandWarning
	default:
		return BandCritical
	}
}

func (s Stage) String() string {
	if code, ok := stageCodes[s]; ok {
		return code
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// ParseStage accepts the rendered stage codes ("1", "2", "3A", "3B", "4", "5"), case-insensitively.
func ParseStage(code string) (Stage, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	for stage, c := range stageCodes {
		if c == code {
			return stage, nil
		}
	}
	return 0, fmt.Errorf("unknown CKD stage %q", code)
}

// MarshalJSON keeps the mixed form of the stage: numbers for 1, 2, 4 and 5, strings for 3A and 3B.
func (s Stage) MarshalJSON() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("cannot marshal invalid stage %d", int(s))
	}
	if s.Numeric() {
		return []byte(stageCodes[s]), nil
	}
	return json.Marshal(stageCodes[s])
}

func (s *Stage) UnmarshalJSON(data []byte) error {
	var code string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &code); err != nil {
			return err
		}
	} else {
		n, err := strconv.Atoi(string(data))
		if err != nil {
			return fmt.Errorf("invalid CKD stage %s", data)
		}
		code = strconv.Itoa(n)
	}
	parsed, err := ParseStage(code)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Value stores the stage as its code.
func (s Stage) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("cannot store invalid stage %d", int(s))
	}
	return s.String(), nil
}

func (s *Stage) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		parsed, err := ParseStage(v)
		if err != nil {
			return err
		}
		*s = parsed
	case []byte:
		parsed, err := ParseStage(string(v))
		if err != nil {
			return err
		}
		*s = parsed
	case int64:
		parsed, err := ParseStage(strconv.FormatInt(v, 10))
		if err != nil {
			return err
		}
		*s = parsed
	case nil:
		*s = 0
	default:
		return fmt.Errorf("cannot scan %T into CKD stage", src)
	}
	return nil
}
