package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"gitlab.com/plantai/plantai.server/src/production/PAI.ApiService/health"
	"gitlab.com/plantai/plantai.server/src/production/PAI.ApiService/implementation/images"
	"gitlab.com/plantai/plantai.server/src/production/PAI.ApiService/implementation/sensor"
	logger "gitlab.com/plantai/plantai.server/src/production/PAI.Logger"
	models "gitlab.com/plantai/plantai.server/src/production/PAI.Models"
	implementation "gitlab.com/plantai/plantai.server/src/production/PAI.Repository/Implementation"
	interfaces "gitlab.com/plantai/plantai.server/src/production/PAI.Repository/Interfaces"
)

const testSecret = "s3cret"

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeIdentifier struct {
	configured bool
	text       string
	err        error
	gotPath    string
}

func (f *fakeIdentifier) Configured() bool { return f.configured }
func (f *fakeIdentifier) Identify(_ context.Context, path, _ string) (string, error) {
	f.gotPath = path
	return f.text, f.err
}

type testServer struct {
	router     *gin.Engine
	store      *implementation.MemoryReadingStore
	images     *images.Service
	identifier *fakeIdentifier
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := logger.Nop()
	store := implementation.NewMemoryReadingStore(models.ReadingLogCap)

	dir := t.TempDir()
	repo, err := implementation.NewFileImageRepository(filepath.Join(dir, "image_metadata.json"))
	if err != nil {
		t.Fatalf("NewFileImageRepository: %v", err)
	}
	imageSvc, err := images.NewService(repo, filepath.Join(dir, "uploads"), 1024)
	if err != nil {
		t.Fatalf("images.NewService: %v", err)
	}

	checker := health.NewHealthChecker()
	checker.Register("store", store.Ping)

	identifier := &fakeIdentifier{configured: true, text: "A Boston fern."}

	router := gin.New()
	sensorController := NewSensorController(sensor.NewService(store, nil, log, ""), log)
	sensorController.RegisterRoutes(router)
	NewInternalController(sensorController, testSecret).RegisterRoutes(router)
	NewUploadController(imageSvc, log).RegisterRoutes(router)
	NewIdentifyController(identifier, imageSvc, log).RegisterRoutes(router)
	NewHealthController(checker).RegisterRoutes(router)
	NewHomeController("PlantAI").RegisterRoutes(router)

	return &testServer{router: router, store: store, images: imageSvc, identifier: identifier}
}

func (s *testServer) do(req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	var body map[string]any
	json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestPostSensorData(t *testing.T) {
	s := newTestServer(t)

	w, body := s.do(jsonRequest(http.MethodPost, "/sensor-data",
		`{"temperature": 22, "pressure": 1013, "humidity": 50, "soil_moisture": 50}`))
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body)
	}
	if body["success"] != true {
		t.Errorf("success: got %v", body["success"])
	}
	rb, ok := body["response_body"].(map[string]any)
	if !ok {
		t.Fatalf("response_body missing: %v", body)
	}
	for _, key := range []string{"sensor_data_id", "timestamp", "ai_reply", "status_color", "severity_score"} {
		if _, ok := rb[key]; !ok {
			t.Errorf("response_body has no %q", key)
		}
	}
	if _, ok := rb["sensor_readings"]; ok {
		t.Errorf("ingest response should not carry sensor_readings")
	}
	if rb["status_color"] != "green" {
		t.Errorf("status_color: got %v", rb["status_color"])
	}
	if s.store.Len() != 1 {
		t.Errorf("store Len: got %d", s.store.Len())
	}
}

func TestPostSensorDataValidation(t *testing.T) {
	cases := []struct {
		name       string
		body       string
		wantKind   string
		wantFields []any
	}{
		{"missing pressure", `{"temperature": 22, "humidity": 50, "soil_moisture": 50}`, "missing_fields", []any{"pressure"}},
		{"non numeric", `{"temperature": "hot", "pressure": 1013, "humidity": 50, "soil_moisture": null}`, "non_numeric_fields", []any{"temperature", "soil_moisture"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer(t)
			w, body := s.do(jsonRequest(http.MethodPost, "/sensor-data", tc.body))
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status: got %d", w.Code)
			}
			if body["error"] != "validation_failed" || body["kind"] != tc.wantKind {
				t.Errorf("got %v", body)
			}
			fields, _ := body["fields"].([]any)
			if len(fields) != len(tc.wantFields) {
				t.Fatalf("fields: got %v, want %v", fields, tc.wantFields)
			}
			for i := range fields {
				if fields[i] != tc.wantFields[i] {
					t.Errorf("fields[%d]: got %v, want %v", i, fields[i], tc.wantFields[i])
				}
			}
			if s.store.Len() != 0 {
				t.Errorf("invalid reading was stored")
			}
		})
	}
}

func TestPostSensorDataBadBody(t *testing.T) {
	reading := `{"temperature":22,"pressure":1013,"humidity":50,"soil_moisture":50}`
	bodies := []string{"", "   ", "[1,2]", "{broken", "42",
		reading + " trailing-garbage",
		reading + reading,
		reading + " null",
	}
	for _, body := range bodies {
		s := newTestServer(t)
		w, resp := s.do(jsonRequest(http.MethodPost, "/sensor-data", body))
		if w.Code != http.StatusBadRequest || resp["error"] != "invalid_body" {
			t.Errorf("body %q: got %d %v", body, w.Code, resp)
		}
		if s.store.Len() != 0 {
			t.Errorf("body %q: reading was stored", body)
		}
	}
}

func TestGetResponseBody(t *testing.T) {
	s := newTestServer(t)

	w, body := s.do(httptest.NewRequest(http.MethodGet, "/response-body", nil))
	if w.Code != http.StatusNotFound || body["error"] != "no_data" {
		t.Fatalf("empty log: got %d %v", w.Code, body)
	}

	s.do(jsonRequest(http.MethodPost, "/sensor-data",
		`{"temperature": 5, "pressure": 1000, "humidity": 15, "soil_moisture": 95}`))

	w, body = s.do(httptest.NewRequest(http.MethodGet, "/response-body", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	if body["status_color"] != "red" || body["severity_score"] != float64(6) {
		t.Errorf("got %v", body)
	}
	readings, ok := body["sensor_readings"].(map[string]any)
	if !ok || readings["soil_moisture"] != float64(95) {
		t.Errorf("sensor_readings: got %v", body["sensor_readings"])
	}
}

type brokenSensorService struct{ err error }

func (b brokenSensorService) Ingest(context.Context, map[string]any) (models.Readout, error) {
	return models.Readout{}, b.err
}
func (b brokenSensorService) Latest(context.Context) (models.Readout, error) {
	return models.Readout{}, b.err
}

func TestSensorStorageFailure(t *testing.T) {
	router := gin.New()
	storeErr := interfaces.NewStorageError("file", "latest", errors.New("permission denied"))
	NewSensorController(brokenSensorService{err: storeErr}, logger.Nop()).RegisterRoutes(router)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/response-body", nil))
	if w.Code != http.StatusInternalServerError || !strings.Contains(w.Body.String(), "storage_error") {
		t.Errorf("got %d %s", w.Code, w.Body)
	}
}

func TestSensorCancelledRequest(t *testing.T) {
	s := newTestServer(t)
	payload := `{"temperature": 22, "pressure": 1013, "humidity": 50, "soil_moisture": 50}`

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w, resp := s.do(jsonRequest(http.MethodPost, "/sensor-data", payload).WithContext(ctx))
	if w.Code != http.StatusInternalServerError || resp["error"] != "storage_error" {
		t.Errorf("got %d %v", w.Code, resp)
	}
	if s.store.Len() != 0 {
		t.Errorf("cancelled reading was stored")
	}
}

func TestSensorUnexpectedErrorIsNotEchoed(t *testing.T) {
	router := gin.New()
	NewSensorController(brokenSensorService{err: errors.New("dial tcp 10.0.0.7:5432: secret")}, logger.Nop()).RegisterRoutes(router)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/response-body", nil))
	if w.Code != http.StatusInternalServerError || !strings.Contains(w.Body.String(), "internal_error") {
		t.Fatalf("got %d %s", w.Code, w.Body)
	}
	if strings.Contains(w.Body.String(), "secret") {
		t.Errorf("error detail leaked: %s", w.Body)
	}
}

func TestInternalSensorDataAuth(t *testing.T) {
	s := newTestServer(t)
	payload := `{"temperature": 22, "pressure": 1013, "humidity": 50, "soil_moisture": 50}`

	w, _ := s.do(jsonRequest(http.MethodPost, "/internal/sensor-data", payload))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no token: got %d", w.Code)
	}

	req := jsonRequest(http.MethodPost, "/internal/sensor-data", payload)
	req.Header.Set("Authorization", "Bearer wrong")
	if w, _ := s.do(req); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token: got %d", w.Code)
	}

	req = jsonRequest(http.MethodPost, "/internal/sensor-data", payload)
	req.Header.Set("Authorization", "Bearer "+testSecret)
	if w, body := s.do(req); w.Code != http.StatusOK || body["success"] != true {
		t.Errorf("valid token: got %d %v", w.Code, body)
	}
	if s.store.Len() != 1 {
		t.Errorf("store Len: got %d, want 1", s.store.Len())
	}
}

func multipartRequest(t *testing.T, field, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename == "" {
		mw.WriteField(field, "")
	} else {
		fw, err := mw.CreateFormFile(field, filename)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		fw.Write(content)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUpload(t *testing.T) {
	s := newTestServer(t)

	w, body := s.do(multipartRequest(t, "image", "fern.png", []byte("png bytes")))
	if w.Code != http.StatusOK || body["success"] != true {
		t.Fatalf("upload: got %d %v", w.Code, body)
	}
	id, _ := body["image_id"].(string)
	if id == "" || body["original_filename"] != "fern.png" || body["file_size"] != float64(9) {
		t.Errorf("got %v", body)
	}

	w, body = s.do(httptest.NewRequest(http.MethodGet, "/images", nil))
	if w.Code != http.StatusOK || body["count"] != float64(1) {
		t.Errorf("list: got %d %v", w.Code, body)
	}

	w, body = s.do(httptest.NewRequest(http.MethodGet, "/images/"+id, nil))
	if w.Code != http.StatusOK || body["id"] != id {
		t.Errorf("get: got %d %v", w.Code, body)
	}

	w, _ = s.do(httptest.NewRequest(http.MethodGet, "/images/does-not-exist", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("get missing: got %d", w.Code)
	}
}

func TestUploadRejects(t *testing.T) {
	cases := []struct {
		name      string
		req       func(t *testing.T) *http.Request
		wantError string
		wantKey   string
	}{
		{"no file part", func(t *testing.T) *http.Request { return multipartRequest(t, "other", "fern.png", []byte("x")) }, "No image file provided", ""},
		{"empty filename", func(t *testing.T) *http.Request { return multipartRequest(t, "image", "", nil) }, "No file selected", ""},
		{"bad type", func(t *testing.T) *http.Request { return multipartRequest(t, "image", "notes.txt", []byte("x")) }, "File type not allowed", "allowed_types"},
		{"too large", func(t *testing.T) *http.Request {
			return multipartRequest(t, "image", "big.jpg", bytes.Repeat([]byte("x"), 2048))
		}, "File too large", "max_size_mb"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer(t)
			w, body := s.do(tc.req(t))
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status: got %d %v", w.Code, body)
			}
			if body["error"] != tc.wantError {
				t.Errorf("error: got %v, want %q", body["error"], tc.wantError)
			}
			if tc.wantKey != "" {
				if _, ok := body[tc.wantKey]; !ok {
					t.Errorf("missing %q in %v", tc.wantKey, body)
				}
			}
		})
	}
}

func TestIdentify(t *testing.T) {
	s := newTestServer(t)

	_, up := s.do(multipartRequest(t, "image", "fern.png", []byte("png bytes")))
	id := up["image_id"].(string)

	w, body := s.do(jsonRequest(http.MethodPost, "/identify", `{"image_id": "`+id+`"}`))
	if w.Code != http.StatusOK || body["text"] != "A Boston fern." {
		t.Fatalf("identify: got %d %v", w.Code, body)
	}
	if s.identifier.gotPath == "" || body["image_path"] != s.identifier.gotPath {
		t.Errorf("identifier saw %q, response %v", s.identifier.gotPath, body["image_path"])
	}

	if w, _ := s.do(jsonRequest(http.MethodPost, "/identify", `{}`)); w.Code != http.StatusBadRequest {
		t.Errorf("no reference: got %d", w.Code)
	}
	if w, _ := s.do(jsonRequest(http.MethodPost, "/identify", `{"image_path": "/etc/passwd"}`)); w.Code != http.StatusNotFound {
		t.Errorf("foreign path: got %d", w.Code)
	}

	s.identifier.err = errors.New("model offline")
	if w, _ := s.do(jsonRequest(http.MethodPost, "/identify", `{"image_id": "`+id+`"}`)); w.Code != http.StatusBadGateway {
		t.Errorf("upstream failure: got %d", w.Code)
	}

	s.identifier.configured = false
	if w, _ := s.do(jsonRequest(http.MethodPost, "/identify", `{"image_id": "`+id+`"}`)); w.Code != http.StatusServiceUnavailable {
		t.Errorf("not configured: got %d", w.Code)
	}
}

func TestHealthAndHome(t *testing.T) {
	s := newTestServer(t)

	if w, body := s.do(httptest.NewRequest(http.MethodGet, "/health/live", nil)); w.Code != http.StatusOK || body["status"] != "ok" {
		t.Errorf("live: got %d %v", w.Code, body)
	}
	if w, body := s.do(httptest.NewRequest(http.MethodGet, "/health/ready", nil)); w.Code != http.StatusOK || body["status"] != "ok" {
		t.Errorf("ready: got %d %v", w.Code, body)
	}
	w, body := s.do(httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK || body["status"] != "running" {
		t.Errorf("home: got %d %v", w.Code, body)
	}
	if _, ok := body["endpoints"].(map[string]any)["sensor_data"]; !ok {
		t.Errorf("home does not list sensor_data")
	}
	if w, _ := s.do(httptest.NewRequest(http.MethodGet, "/metrics", nil)); w.Code != http.StatusOK {
		t.Errorf("metrics: got %d", w.Code)
	}
}

func TestHealthReadyDegraded(t *testing.T) {
	checker := health.NewHealthChecker()
	checker.Register("store", func(context.Context) error { return errors.New("disk gone") })
	router := gin.New()
	NewHealthController(checker).RegisterRoutes(router)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if w.Code != http.StatusServiceUnavailable || !strings.Contains(w.Body.String(), "degraded") {
		t.Errorf("got %d %s", w.Code, w.Body)
	}
}
