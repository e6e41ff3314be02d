package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"ckd-egfr-server/internal/batch"
	"ckd-egfr-server/internal/ckd"
	"ckd-egfr-server/internal/middleware"
	"ckd-egfr-server/internal/models"
)

var testNow = time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)

func init() {
	gin.SetMode(gin.TestMode)
}

type recordingArchiver struct {
	names []string
	data  []string
}

func (a *recordingArchiver) Archive(_ context.Context, name string, data []byte) (string, error) {
	a.names = append(a.names, name)
	a.data = append(a.data, string(data))
	return "exports/" + name, nil
}

type envelope struct {
	Status  int               `json:"status"`
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Error   string            `json:"error"`
	Fields  map[string]string `json:"fields"`
}

type testServer struct {
	router   *gin.Engine
	db       *gorm.DB
	archiver *recordingArchiver
	batch    *BatchHandler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db, err := models.InitDB(models.DatabaseConfig{
		Driver:   "sqlite",
		DSN:      filepath.Join(t.TempDir(), "handlers.db"),
		LogLevel: logger.Silent,
	})
	if err != nil {
		t.Fatalf("InitDB: %v", err)
	}

	clock := func() time.Time { return testNow }
	archiver := &recordingArchiver{}

	calc := NewCalculatorHandler(db, zerolog.Nop())
	calc.now = clock
	batchHandler := NewBatchHandler(db, zerolog.Nop(), archiver, batch.SchemaA, 1<<20)
	batchHandler.now = clock
	history := NewHistoryHandler(db)

	router := gin.New()
	api := router.Group("/api/v1")
	api.Use(middleware.SessionMiddleware())
	api.POST("/egfr", calc.Calculate)
	api.GET("/stages", ListStages)
	api.POST("/batches", batchHandler.Upload)
	api.POST("/batches/export", batchHandler.ExportRecords)
	api.GET("/batches/:id", batchHandler.GetBatch)
	api.GET("/batches/:id/export", batchHandler.ExportBatch)
	api.GET("/history", history.ListHistory)
	api.GET("/history/trend", history.Trend)

	return &testServer{router: router, db: db, archiver: archiver, batch: batchHandler}
}

func (s *testServer) do(method, path, contentType string, body io.Reader, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) postJSON(path string, payload interface{}, headers map[string]string) *httptest.ResponseRecorder {
	body, _ := json.Marshal(payload)
	return s.do(http.MethodPost, path, "application/json", bytes.NewReader(body), headers)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return env
}

func clinician(id string) map[string]string {
	return map[string]string{middleware.HeaderUserType: "clinician", middleware.HeaderUserID: id}
}

func historyCount(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&models.CalculationEntry{}).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestCalculateGuestPatient(t *testing.T) {
	s := newTestServer(t)

	w := s.postJSON("/api/v1/egfr", map[string]interface{}{
		"age": 40, "gender": "female", "isBlack": false, "creatinine": 88.4,
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var resp CalculateResponse
	if err := json.Unmarshal(decode(t, w).Data, &resp); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	want, _ := ckd.ComputeEGFR(88.4, 40, true, false)
	if resp.EGFR != want.EGFR || resp.Stage != want.Stage {
		t.Errorf("result = %v/%v, want %v/%v", resp.EGFR, resp.Stage, want.EGFR, want.Stage)
	}
	if resp.Display != batch.FormatEGFR(want.EGFR) || resp.Unit != EGFRUnit {
		t.Errorf("display/unit = %q/%q", resp.Display, resp.Unit)
	}
	if resp.Advice != ckd.Advice(want.Stage, ckd.AudiencePatient) {
		t.Errorf("advice = %q", resp.Advice)
	}
	if resp.EntryID != "" || historyCount(t, s.db) != 0 {
		t.Error("patient result without rememberMe must not be saved")
	}
}

func TestCalculateMgPerDL(t *testing.T) {
	s := newTestServer(t)

	w := s.postJSON("/api/v1/egfr", map[string]interface{}{
		"age": 65, "gender": "male", "isBlack": true, "creatinine": 1.0, "creatinineUnit": "mg/dL",
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var resp CalculateResponse
	json.Unmarshal(decode(t, w).Data, &resp)

	want, _ := ckd.ComputeEGFR(88.4, 65, false, true)
	if resp.EGFR != want.EGFR {
		t.Errorf("eGFR = %v, want %v", resp.EGFR, want.EGFR)
	}
}

func TestCalculateSavesClinicianHistory(t *testing.T) {
	s := newTestServer(t)

	w := s.postJSON("/api/v1/egfr", map[string]interface{}{
		"age": 72, "gender": "male", "creatinine": 180, "userType": "clinician", "hcpId": "HCP-42",
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var resp CalculateResponse
	json.Unmarshal(decode(t, w).Data, &resp)
	if resp.EntryID == "" {
		t.Fatal("expected clinician result to be saved")
	}
	if resp.Advice != ckd.Advice(resp.Stage, ckd.AudienceClinician) {
		t.Errorf("expected clinician advice, got %q", resp.Advice)
	}

	entries, err := models.RecentHistory(s.db, models.UserTypeClinician, "HCP-42", 10)
	if err != nil {
		t.Fatalf("RecentHistory: %v", err)
	}
	if len(entries) != 1 || entries[0].PatientID != models.AnonymousPatient || entries[0].Stage != resp.Stage {
		t.Errorf("entries = %+v", entries)
	}
	if !entries[0].Date.Equal(testNow) {
		t.Errorf("date = %v, want %v", entries[0].Date, testNow)
	}
}

func TestCalculateUsesSessionIdentity(t *testing.T) {
	s := newTestServer(t)

	w := s.postJSON("/api/v1/egfr", map[string]interface{}{
		"patientId": "P-77", "age": 50, "gender": "female", "creatinine": 120,
	}, clinician("HCP-9"))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	entries, _ := models.RecentHistory(s.db, models.UserTypeClinician, "HCP-9", 10)
	if len(entries) != 1 || entries[0].PatientID != "P-77" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestCalculateSessionIdentityWinsOverBody(t *testing.T) {
	patient := map[string]string{middleware.HeaderUserType: "patient", middleware.HeaderUserID: "9876543210"}
	tests := []struct {
		name     string
		payload  map[string]interface{}
		headers  map[string]string
		userType models.UserType
		userID   string
		audience ckd.Audience
	}{
		{
			name:     "clinician naming another HCP ID",
			payload:  map[string]interface{}{"age": 50, "gender": "female", "creatinine": 120, "hcpId": "HCP-1"},
			headers:  clinician("HCP-9"),
			userType: models.UserTypeClinician, userID: "HCP-9", audience: ckd.AudienceClinician,
		},
		{
			name: "clinician claiming to be a patient",
			payload: map[string]interface{}{
				"age": 50, "gender": "female", "creatinine": 120,
				"userType": "patient", "rememberMe": true, "nhsNumber": "1234567890",
			},
			headers:  clinician("HCP-9"),
			userType: models.UserTypeClinician, userID: "HCP-9", audience: ckd.AudienceClinician,
		},
		{
			name: "patient naming another NHS number",
			payload: map[string]interface{}{
				"age": 50, "gender": "female", "creatinine": 120, "rememberMe": true, "nhsNumber": "1111111111",
			},
			headers:  patient,
			userType: models.UserTypePatient, userID: "9876543210", audience: ckd.AudiencePatient,
		},
		{
			name: "patient claiming to be a clinician",
			payload: map[string]interface{}{
				"age": 50, "gender": "female", "creatinine": 120, "userType": "clinician", "hcpId": "HCP-1", "rememberMe": true,
			},
			headers:  patient,
			userType: models.UserTypePatient, userID: "9876543210", audience: ckd.AudiencePatient,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			w := s.postJSON("/api/v1/egfr", tt.payload, tt.headers)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
			}
			var resp CalculateResponse
			json.Unmarshal(decode(t, w).Data, &resp)
			if resp.Advice != ckd.Advice(resp.Stage, tt.audience) {
				t.Errorf("advice = %q, want %s advice", resp.Advice, tt.audience)
			}

			var entries []models.CalculationEntry
			s.db.Find(&entries)
			if len(entries) != 1 || entries[0].UserType != tt.userType || entries[0].UserID != tt.userID {
				t.Errorf("entries = %+v, want one under %s/%s", entries, tt.userType, tt.userID)
			}
		})
	}
}

func TestCalculateRememberMe(t *testing.T) {
	s := newTestServer(t)

	w := s.postJSON("/api/v1/egfr", map[string]interface{}{
		"age": 30, "gender": "male", "creatinine": 70, "userType": "patient",
		"rememberMe": true, "nhsNumber": "1234567890",
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	entries, _ := models.RecentHistory(s.db, models.UserTypePatient, "1234567890", 10)
	if len(entries) != 1 {
		t.Errorf("expected 1 saved entry, got %d", len(entries))
	}
}

func TestCalculateValidation(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]interface{}
		field   string
		message string
	}{
		{
			name:    "age below range",
			payload: map[string]interface{}{"age": 17, "gender": "male", "creatinine": 90},
			field:   "age",
			message: "Age must be between 18 and 110",
		},
		{
			name:    "age above range",
			payload: map[string]interface{}{"age": 111, "gender": "male", "creatinine": 90},
			field:   "age",
			message: "Age must be between 18 and 110",
		},
		{
			name:    "zero creatinine",
			payload: map[string]interface{}{"age": 40, "gender": "male", "creatinine": 0},
			field:   "creatinine",
			message: "Please enter a valid creatinine value",
		},
		{
			name:    "negative creatinine",
			payload: map[string]interface{}{"age": 40, "gender": "male", "creatinine": -5},
			field:   "creatinine",
			message: "Please enter a valid creatinine value",
		},
		{
			name:    "clinician without HCP ID",
			payload: map[string]interface{}{"age": 40, "gender": "male", "creatinine": 90, "userType": "clinician"},
			field:   "hcpId",
			message: "Please enter your HCP ID",
		},
		{
			name: "remember me without NHS number",
			payload: map[string]interface{}{
				"age": 40, "gender": "male", "creatinine": 90, "userType": "patient", "rememberMe": true,
			},
			field:   "nhsNumber",
			message: "Please enter a valid 10-digit NHS number",
		},
		{
			name: "short NHS number",
			payload: map[string]interface{}{
				"age": 40, "gender": "male", "creatinine": 90, "nhsNumber": "12345",
			},
			field:   "nhsNumber",
			message: "Please enter a valid 10-digit NHS number",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			w := s.postJSON("/api/v1/egfr", tt.payload, nil)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
			}
			env := decode(t, w)
			if env.Fields[tt.field] != tt.message {
				t.Errorf("fields = %v, want %s: %q", env.Fields, tt.field, tt.message)
			}
		})
	}
}

const sampleCSV = "PatientID,Gender,Ethnicity,Age,Creatinine\n" +
	"P001,0,B,45,90\n" +
	"P002,1,O,15,100\n" +
	"P003,1,O,60,150\n"

func TestBatchUploadGetAndExport(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/api/v1/batches", "text/csv", strings.NewReader(sampleCSV), clinician("HCP-1"))
	if w.Code != http.StatusCreated {
		t.Fatalf("upload status = %d, body %s", w.Code, w.Body.String())
	}
	var uploaded BatchResponse
	if err := json.Unmarshal(decode(t, w).Data, &uploaded); err != nil {
		t.Fatalf("decode upload: %v", err)
	}
	if uploaded.ID == "" || uploaded.Schema != "A" {
		t.Fatalf("upload = %+v", uploaded)
	}
	if uploaded.Accepted != 2 || uploaded.Rejected != 1 {
		t.Errorf("counts = %d/%d, want 2/1", uploaded.Accepted, uploaded.Rejected)
	}
	if uploaded.Records[0].PatientID != "P001" || uploaded.Records[1].PatientID != "P003" {
		t.Errorf("records = %+v", uploaded.Records)
	}
	if uploaded.Rejections[0].Line != 3 || uploaded.Rejections[0].Reason != batch.ReasonAgeOutOfRange {
		t.Errorf("rejections = %+v", uploaded.Rejections)
	}
	if n := historyCount(t, s.db); n != 2 {
		t.Errorf("history entries = %d, want 2", n)
	}

	w = s.do(http.MethodGet, "/api/v1/batches/"+uploaded.ID, "", nil, clinician("HCP-1"))
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var fetched BatchResponse
	json.Unmarshal(decode(t, w).Data, &fetched)
	if len(fetched.Records) != 2 || fetched.Records[1] != uploaded.Records[1] {
		t.Errorf("fetched = %+v", fetched.Records)
	}

	w = s.do(http.MethodGet, "/api/v1/batches/"+uploaded.ID, "", nil, clinician("HCP-2"))
	if w.Code != http.StatusNotFound {
		t.Errorf("other clinician status = %d, want 404", w.Code)
	}

	w = s.do(http.MethodGet, "/api/v1/batches/"+uploaded.ID+"/export", "", nil, clinician("HCP-1"))
	if w.Code != http.StatusOK {
		t.Fatalf("export status = %d, body %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("content type = %q", ct)
	}
	fileName := exportFileName(testNow)
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, fileName) {
		t.Errorf("content disposition = %q, want %s", cd, fileName)
	}
	if got, want := w.Body.String(), batch.ExportBatch(uploaded.Records); got != want {
		t.Errorf("export body =\n%s\nwant\n%s", got, want)
	}

	if len(s.archiver.names) != 1 || s.archiver.names[0] != uploaded.ID+"/"+fileName {
		t.Fatalf("archived = %v", s.archiver.names)
	}
	var run models.BatchRun
	s.db.First(&run, "id = ?", uploaded.ID)
	if run.ArchiveKey != "exports/"+uploaded.ID+"/"+fileName {
		t.Errorf("archive key = %q", run.ArchiveKey)
	}
}

func TestBatchUploadMultipartSchemaB(t *testing.T) {
	s := newTestServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "clinic.csv")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	io.WriteString(part, "patientID,gender,yearOfBirth,ethnicity,creatinine\n"+
		"B1,Female,1970,Black Caribbean,95\n"+
		"B2,male,2010,White,80\n")
	mw.Close()

	w := s.do(http.MethodPost, "/api/v1/batches?schema=b", mw.FormDataContentType(), &body, clinician("HCP-1"))
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var resp BatchResponse
	json.Unmarshal(decode(t, w).Data, &resp)

	if resp.Schema != "B" || resp.FileName != "clinic.csv" {
		t.Errorf("schema/file = %q/%q", resp.Schema, resp.FileName)
	}
	if len(resp.Records) != 1 || resp.Records[0].Age != 55 {
		t.Fatalf("records = %+v", resp.Records)
	}
	want, _ := ckd.ComputeEGFR(95, 55, true, true)
	if resp.Records[0].EGFR != want.EGFR {
		t.Errorf("eGFR = %v, want %v", resp.Records[0].EGFR, want.EGFR)
	}
}

func TestBatchUploadErrors(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/api/v1/batches", "text/csv", strings.NewReader(" \n \n"), clinician("HCP-1"))
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("empty upload status = %d, want 422", w.Code)
	}

	w = s.do(http.MethodPost, "/api/v1/batches?schema=Z", "text/csv", strings.NewReader(sampleCSV), clinician("HCP-1"))
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown schema status = %d, want 400", w.Code)
	}

	s.batch.MaxUploadSize = 16
	w = s.do(http.MethodPost, "/api/v1/batches", "text/csv", strings.NewReader(sampleCSV), clinician("HCP-1"))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("oversized upload status = %d, want 413", w.Code)
	}

	w = s.do(http.MethodGet, "/api/v1/batches/missing", "", nil, clinician("HCP-1"))
	if w.Code != http.StatusNotFound {
		t.Errorf("missing batch status = %d, want 404", w.Code)
	}
}

func TestExportRecords(t *testing.T) {
	s := newTestServer(t)

	payload := `{"records":[{"patientId":"X1","age":40,"gender":"female","ethnicity":"B",` +
		`"creatinine":88.4,"eGFR":77.2649,"stage":2},` +
		`{"patientId":"X2","age":71,"gender":"male","ethnicity":"O","creatinine":130,"eGFR":48.04,"stage":"3A"}]}`
	w := s.do(http.MethodPost, "/api/v1/batches/export", "application/json", strings.NewReader(payload), clinician("HCP-1"))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	want := "Patient ID,Age,Gender,Ethnicity,Creatinine,eGFR,CKD Stage\n" +
		"X1,40,female,B,88.4,77.3,2\n" +
		"X2,71,male,O,130,48.0,3A\n"
	if w.Body.String() != want {
		t.Errorf("body =\n%s\nwant\n%s", w.Body.String(), want)
	}

	w = s.do(http.MethodPost, "/api/v1/batches/export", "application/json", strings.NewReader(`{"records":[]}`), clinician("HCP-1"))
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("empty export status = %d, want 422", w.Code)
	}
}

func TestExportRecordsRejectsUnusableRecords(t *testing.T) {
	s := newTestServer(t)

	good := `{"patientId":"X1","age":40,"gender":"female","ethnicity":"B","creatinine":88.4,"eGFR":77.2649,"stage":2}`
	tests := []struct {
		name   string
		record string
		field  string
	}{
		{"missing stage", `{"patientId":"X2","age":40,"gender":"male","ethnicity":"O","creatinine":88.4,"eGFR":77.2}`, "records[1].stage"},
		{"missing eGFR", `{"patientId":"X2","age":40,"gender":"male","ethnicity":"O","creatinine":88.4,"stage":2}`, "records[1].eGFR"},
		{"age five", `{"patientId":"X2","age":5,"gender":"male","ethnicity":"O","creatinine":88.4,"eGFR":77.2,"stage":2}`, "records[1].age"},
		{"invalid gender", `{"patientId":"X2","age":40,"gender":"other","ethnicity":"O","creatinine":88.4,"eGFR":77.2,"stage":2}`, "records[1].gender"},
		{"comma in patient id", `{"patientId":"X2,99","age":40,"gender":"male","ethnicity":"O","creatinine":88.4,"eGFR":77.2,"stage":2}`, "records[1].patientId"},
		{"newline in patient id", `{"patientId":"X2\nX3,1,2","age":40,"gender":"male","ethnicity":"O","creatinine":88.4,"eGFR":77.2,"stage":2}`, "records[1].patientId"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := `{"records":[` + good + `,` + tt.record + `]}`
			w := s.do(http.MethodPost, "/api/v1/batches/export", "application/json", strings.NewReader(payload), clinician("HCP-1"))
			if w.Code != http.StatusUnprocessableEntity {
				t.Fatalf("status = %d, want 422 (%s)", w.Code, w.Body.String())
			}
			env := decode(t, w)
			if env.Fields[tt.field] == "" {
				t.Errorf("fields = %v, want an entry for %s", env.Fields, tt.field)
			}
			if _, ok := env.Fields["records[0].stage"]; ok {
				t.Errorf("valid first record was flagged: %v", env.Fields)
			}
		})
	}
}

func TestHistoryListAndTrend(t *testing.T) {
	s := newTestServer(t)

	for i := 0; i < 9; i++ {
		entry := models.CalculationEntry{
			UserType: models.UserTypePatient, UserID: "9876543210", PatientID: "Me",
			Age: 60, Creatinine: 100, EGFR: float64(40 + i), Stage: ckd.StageFor(float64(40 + i)),
			Source: models.SourceCalculator, Date: testNow.Add(time.Duration(i) * time.Hour),
		}
		if err := s.db.Create(&entry).Error; err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	patient := map[string]string{middleware.HeaderUserType: "patient", middleware.HeaderUserID: "9876543210"}

	w := s.do(http.MethodGet, "/api/v1/history?limit=2", "", nil, patient)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var entries []models.CalculationEntry
	json.Unmarshal(decode(t, w).Data, &entries)
	if len(entries) != 2 || entries[0].EGFR != 48 || entries[1].EGFR != 47 {
		t.Errorf("entries = %+v", entries)
	}

	w = s.do(http.MethodGet, "/api/v1/history?limit=501", "", nil, patient)
	if w.Code != http.StatusBadRequest {
		t.Errorf("limit 501 status = %d, want 400", w.Code)
	}

	w = s.do(http.MethodGet, "/api/v1/history", "", nil, clinician("HCP-1"))
	json.Unmarshal(decode(t, w).Data, &entries)
	if len(entries) != 0 {
		t.Errorf("clinician sees %d patient entries", len(entries))
	}

	w = s.do(http.MethodGet, "/api/v1/history/trend", "", nil, patient)
	var trend TrendResponse
	json.Unmarshal(decode(t, w).Data, &trend)
	want := []float64{42, 43, 44, 45, 46, 47, 48}
	if len(trend.EGFR) != len(want) {
		t.Fatalf("trend = %v, want %v", trend.EGFR, want)
	}
	for i := range want {
		if trend.EGFR[i] != want[i] {
			t.Fatalf("trend = %v, want %v", trend.EGFR, want)
		}
	}
}

func TestListStages(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/api/v1/stages", "", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	env := decode(t, w)
	if !strings.Contains(string(env.Data), `"stage":"3A"`) {
		t.Errorf("stage 3A not rendered as a string: %s", env.Data)
	}
	var table []ckd.StageInfo
	if err := json.Unmarshal(env.Data, &table); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(table) != len(ckd.Stages) {
		t.Errorf("got %d stages", len(table))
	}
}
