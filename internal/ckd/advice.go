package ckd

// Audience selects the wording of stage advice.
type Audience string

const (
	AudiencePatient   Audience = "patient"
	AudienceClinician Audience = "clinician"
)

// StageInfo describes one row of the staging table.
type StageInfo struct {
	Stage           Stage   `json:"stage"`
	MinEGFR         float64 `json:"minEGFR"`
	MaxEGFR         float64 `json:"maxEGFR,omitempty"`
	Band            Band    `json:"band"`
	ClinicianAdvice string  `json:"clinicianAdvice"`
	PatientAdvice   string  `json:"patientAdvice"`
}

// StageTable is ordered from stage 1 to stage 5. MaxEGFR is exclusive; zero means unbounded.
var StageTable = []StageInfo{
	{
		Stage: Stage1, MinEGFR: 90, Band: BandGood,
		ClinicianAdvice: "Normal kidney function but with other findings. Consider regular monitoring.",
		PatientAdvice:   "Kidneys are functioning normally, but there might be other findings that suggest kidney disease.",
	},
	{
		Stage: Stage2, MinEGFR: 60, MaxEGFR: 90, Band: BandGood,
		ClinicianAdvice: "Mildly reduced kidney function. Monitor and assess cardiovascular risk factors.",
		PatientAdvice:   "Kidneys have mildly reduced function. Follow-up with your doctor for monitoring.",
	},
	{
		Stage: Stage3A, MinEGFR: 45, MaxEGFR: 60, Band: BandWarning,
		ClinicianAdvice: "Moderately reduced kidney function. Monitor at least every 6 months. Assess and manage CVD risk.",
		PatientAdvice:   "Kidneys have moderately reduced function. Regular check-ups are important.",
	},
	{
		Stage: Stage3B, MinEGFR: 30, MaxEGFR: 45, Band: BandWarning,
		ClinicianAdvice: "Moderately reduced kidney function. Monitor quarterly. Consider nephrology referral.",
		PatientAdvice:   "Kidneys have moderately reduced function. More frequent monitoring is recommended.",
	},
	{
		Stage: Stage4, MinEGFR: 15, MaxEGFR: 30, Band: BandCritical,
		ClinicianAdvice: "Severely reduced kidney function. Likely requires nephrology referral.",
		PatientAdvice:   "Kidneys have severely reduced function. You should be under specialist care.",
	},
	{
		Stage: Stage5, MinEGFR: 0, MaxEGFR: 15, Band: BandCritical,
		ClinicianAdvice: "Very severe reduction or kidney failure. Patient needs nephrologist care.",
		PatientAdvice:   "Kidneys have very severe reduced function or failure. Specialist care is essential.",
	},
}

const noAdvice = "No specific recommendations for this result."

// Advice returns the stage guidance worded for the given audience.
func Advice(s Stage, audience Audience) string {
	if !s.Valid() {
		return noAdvice
	}
	info := StageTable[s.Rank()]
	if audience == AudienceClinician {
		return info.ClinicianAdvice
	}
	return info.PatientAdvice
}
