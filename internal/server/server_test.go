package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/fhirtab/fhirtab/internal/config"
	"github.com/fhirtab/fhirtab/internal/flatten"
	"github.com/fhirtab/fhirtab/internal/pipeline"
	"github.com/fhirtab/fhirtab/internal/platform/sandbox"
	"github.com/fhirtab/fhirtab/internal/platform/telemetry"
	"github.com/fhirtab/fhirtab/internal/registry"
	"github.com/fhirtab/fhirtab/internal/survey"
)

func newTestServer(t *testing.T, mutate func(*config.Config)) *Server {
	t.Helper()

	cfg := &config.Config{
		Port:                "8000",
		Env:                 "test",
		LogLevel:            "info",
		MaxBodyBytes:        1 << 20,
		DefaultMovingWindow: 7,
	}
	if mutate != nil {
		mutate(cfg)
	}

	log := zerolog.Nop()
	reg := registry.New()
	mapper, err := survey.NewMapper(sandbox.PHQ9Definition)
	if err != nil {
		t.Fatalf("parse embedded questionnaire: %v", err)
	}
	flat := flatten.New(reg, flatten.WithSurveyMapper(mapper))
	proc := pipeline.New(reg)
	tp := telemetry.NewTelemetryProvider(telemetry.TelemetryConfig{})

	return New(cfg, log, reg, flat, proc, tp)
}

func do(s *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	return rec
}

const stepObservations = `[
  {"resourceType": "Observation", "id": "o1",
   "subject": {"id": "u1"},
   "effectiveDateTime": "2024-03-01T08:00:00Z",
   "code": {"coding": [{"system": "http://loinc.org", "code": "55423-8"}]},
   "valueQuantity": {"value": 2000, "unit": "steps"}},
  {"resourceType": "Observation", "id": "o2",
   "subject": {"id": "u1"},
   "effectiveDateTime": "2024-03-01T18:00:00Z",
   "code": {"coding": [{"system": "http://loinc.org", "code": "55423-8"}]},
   "valueQuantity": {"value": 3000, "unit": "steps"}}
]`

func TestServer_Health(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(s, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestServer_FlattenArray(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(s, http.MethodPost, "/v1/flatten", stepObservations)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	for _, want := range []string{`"UserId":"u1"`, `"LoincCode":"55423-8"`, `"EffectiveDateTime":"2024-03-01"`, "2000"} {
		if !strings.Contains(body, want) {
			t.Errorf("response missing %s: %s", want, body)
		}
	}
}

func TestServer_FlattenEnvelope(t *testing.T) {
	s := newTestServer(t, nil)
	payload := `{
	  "resources": [
	    {"resourceType": "Observation", "id": "o1",
	     "subject": {"id": "u1"},
	     "effectiveDateTime": "2024-03-01T08:00:00Z",
	     "code": {"coding": [{"system": "http://loinc.org", "code": "8867-4"}]},
	     "valueQuantity": {"value": 72, "unit": "beats/minute"}}
	  ],
	  "questionnaires": [
	    {"resourceType": "Questionnaire", "url": "http://example.org/q/phq-9", "title": "PHQ-9", "item": []}
	  ]
	}`
	rec := do(s, http.MethodPost, "/v1/flatten", payload)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"Display":"Heart rate"`) {
		t.Errorf("registry display should be backfilled: %s", rec.Body.String())
	}
}

func TestServer_FlattenMixedBatch(t *testing.T) {
	s := newTestServer(t, nil)
	payload := `[
	  {"resourceType": "Observation", "id": "o1", "subject": {"id": "u1"},
	   "effectiveDateTime": "2024-03-01T08:00:00Z",
	   "code": {"coding": [{"code": "55423-8"}]},
	   "valueQuantity": {"value": 2000}},
	  {"resourceType": "QuestionnaireResponse", "id": "qr1", "subject": {"id": "u1"}}
	]`
	rec := do(s, http.MethodPost, "/v1/flatten", payload)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for a mixed batch, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "OperationOutcome") {
		t.Errorf("expected an OperationOutcome body, got %s", rec.Body.String())
	}
	if !json.Valid(rec.Body.Bytes()) {
		t.Errorf("error body must be a single JSON document: %s", rec.Body.String())
	}
}

func TestServer_FlattenBadJSON(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(s, http.MethodPost, "/v1/flatten", "[{not json")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "OperationOutcome") {
		t.Errorf("expected an OperationOutcome body, got %s", rec.Body.String())
	}
	if !json.Valid(rec.Body.Bytes()) {
		t.Errorf("error body must be a single JSON document: %s", rec.Body.String())
	}
}

func TestServer_FlattenCSVFormat(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(s, http.MethodPost, "/v1/flatten?format=csv", stepObservations)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("expected text/csv, got %s", ct)
	}
	if !strings.HasPrefix(rec.Body.String(), "UserId,ResourceId,") {
		t.Errorf("expected a CSV header, got %s", rec.Body.String())
	}
}

func TestServer_FlattenUnsupportedFormat(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(s, http.MethodPost, "/v1/flatten?format=xml", stepObservations)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "unsupported format") {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestServer_ProcessDefaultStages(t *testing.T) {
	s := newTestServer(t, nil)
	payload := `{"resources": [
	  {"resourceType": "Observation", "id": "o1", "subject": {"id": "u1"},
	   "effectiveDateTime": "2024-03-01T08:00:00Z",
	   "code": {"coding": [{"code": "55423-8"}]},
	   "valueQuantity": {"value": 2000, "unit": "steps"}},
	  {"resourceType": "Observation", "id": "o2", "subject": {"id": "u1"},
	   "effectiveDateTime": "2024-03-01T18:00:00Z",
	   "code": {"coding": [{"code": "55423-8"}]},
	   "valueQuantity": {"value": 3000, "unit": "steps"}}
	]}`
	rec := do(s, http.MethodPost, "/v1/process", payload)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Total daily") {
		t.Errorf("default stages should aggregate per day: %s", body)
	}
	if !strings.Contains(body, "5000") {
		t.Errorf("expected the summed step count: %s", body)
	}
}

func TestServer_ProcessUnknownStage(t *testing.T) {
	s := newTestServer(t, nil)
	payload := `{"resources": [
	  {"resourceType": "Observation", "id": "o1", "subject": {"id": "u1"},
	   "effectiveDateTime": "2024-03-01T08:00:00Z",
	   "code": {"coding": [{"code": "55423-8"}]},
	   "valueQuantity": {"value": 2000}}
	], "options": {"stages": ["shuffle"]}}`
	rec := do(s, http.MethodPost, "/v1/process", payload)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "unknown pipeline stage") {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestServer_ProcessBadDateRange(t *testing.T) {
	s := newTestServer(t, nil)
	payload := `{"resources": [
	  {"resourceType": "Observation", "id": "o1", "subject": {"id": "u1"},
	   "effectiveDateTime": "2024-03-01T08:00:00Z",
	   "code": {"coding": [{"code": "55423-8"}]},
	   "valueQuantity": {"value": 2000}}
	], "options": {"start_date": "2024-03-05", "end_date": "2024-03-01"}}`
	rec := do(s, http.MethodPost, "/v1/process", payload)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for an inverted range, got %d: %s", rec.Code, rec.Body.String())
	}
	if !json.Valid(rec.Body.Bytes()) {
		t.Errorf("error body must be a single JSON document: %s", rec.Body.String())
	}
}

func TestServer_ProcessOpenDateRange(t *testing.T) {
	s := newTestServer(t, nil)
	payload := `{"resources": [
	  {"resourceType": "Observation", "id": "o1", "subject": {"id": "u1"},
	   "effectiveDateTime": "2024-03-01T08:00:00Z",
	   "code": {"coding": [{"code": "55423-8"}]},
	   "valueQuantity": {"value": 2000, "unit": "steps"}},
	  {"resourceType": "Observation", "id": "o2", "subject": {"id": "u1"},
	   "effectiveDateTime": "2024-03-05T08:00:00Z",
	   "code": {"coding": [{"code": "55423-8"}]},
	   "valueQuantity": {"value": 3000, "unit": "steps"}}
	], "options": {"start_date": "2024-03-03"}}`
	rec := do(s, http.MethodPost, "/v1/process", payload)
	if rec.Code != http.StatusOK {
		t.Fatalf("start-only range should be open-ended, got %d: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if !strings.Contains(body, "3000") || strings.Contains(body, "2000") {
		t.Errorf("expected only rows from 2024-03-03 on: %s", body)
	}
}

func TestServer_ProcessScoreStage(t *testing.T) {
	s := newTestServer(t, nil)
	payload := `{"resources": [
	  {"resourceType": "QuestionnaireResponse", "id": "qr1", "status": "completed",
	   "subject": {"id": "u1"},
	   "questionnaire": "http://fhirtab.dev/questionnaires/phq-9",
	   "authored": "2024-03-01T10:00:00Z",
	   "item": [
	     {"linkId": "phq9-q1", "answer": [{"valueInteger": 1}]},
	     {"linkId": "phq9-q2", "answer": [{"valueInteger": 2}]}
	   ]}
	], "options": {"stages": ["score"]}}`
	rec := do(s, http.MethodPost, "/v1/process", payload)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	for _, want := range []string{`"RiskScore":3`, `"ScoreInterpretation":"No or minimal depression"`, `"QuestionnaireTitle":"PHQ-9"`} {
		if !strings.Contains(body, want) {
			t.Errorf("scored response missing %s: %s", want, body)
		}
	}
}

func TestServer_Summary(t *testing.T) {
	s := newTestServer(t, nil)
	payload := `{"resources": [
	  {"resourceType": "Observation", "id": "o1", "subject": {"id": "u1"},
	   "effectiveDateTime": "2024-03-01T08:00:00Z",
	   "code": {"coding": [{"code": "55423-8"}]},
	   "valueQuantity": {"value": 2000, "unit": "steps"}},
	  {"resourceType": "Observation", "id": "o2", "subject": {"id": "u1"},
	   "effectiveDateTime": "2024-03-02T08:00:00Z",
	   "code": {"coding": [{"code": "55423-8"}]},
	   "valueQuantity": {"value": 4000, "unit": "steps"}},
	  {"resourceType": "Observation", "id": "o3", "subject": {"id": "u2"},
	   "effectiveDateTime": "2024-03-01T09:00:00Z",
	   "code": {"coding": [{"code": "55423-8"}]},
	   "valueQuantity": {"value": 500, "unit": "steps"}}
	]}`
	rec := do(s, http.MethodPost, "/v1/summary", payload)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	for _, want := range []string{`"user_id":"u1"`, `"user_id":"u2"`, `"mean":3000`, `"rows":2`} {
		if !strings.Contains(body, want) {
			t.Errorf("summary missing %s: %s", want, body)
		}
	}
}

func TestServer_SummaryNarrowsByUser(t *testing.T) {
	s := newTestServer(t, nil)
	payload := `{"resources": [
	  {"resourceType": "Observation", "id": "o1", "subject": {"id": "u1"},
	   "effectiveDateTime": "2024-03-01T08:00:00Z",
	   "code": {"coding": [{"code": "55423-8"}]},
	   "valueQuantity": {"value": 2000, "unit": "steps"}},
	  {"resourceType": "Observation", "id": "o2", "subject": {"id": "u2"},
	   "effectiveDateTime": "2024-03-01T09:00:00Z",
	   "code": {"coding": [{"code": "55423-8"}]},
	   "valueQuantity": {"value": 500, "unit": "steps"}}
	], "options": {"user_id": "u1"}}`
	rec := do(s, http.MethodPost, "/v1/summary", payload)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"user_id":"u1"`) || strings.Contains(body, `"user_id":"u2"`) {
		t.Errorf("summary should cover only the requested user: %s", body)
	}
}

func TestServer_ExportCSV(t *testing.T) {
	s := newTestServer(t, nil)
	payload := `{"resources": [
	  {"resourceType": "Observation", "id": "o1", "subject": {"id": "u1"},
	   "effectiveDateTime": "2024-03-01T08:00:00Z",
	   "code": {"coding": [{"code": "55423-8"}]},
	   "valueQuantity": {"value": 2000, "unit": "steps"}},
	  {"resourceType": "Observation", "id": "o2", "subject": {"id": "u2"},
	   "effectiveDateTime": "2024-03-01T09:00:00Z",
	   "code": {"coding": [{"code": "55423-8"}]},
	   "valueQuantity": {"value": 4000, "unit": "steps"}}
	], "options": {"users": ["u1"]}}`
	rec := do(s, http.MethodPost, "/v1/export/csv", payload)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "dataset.csv") {
		t.Errorf("expected an attachment disposition, got %s", cd)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "u1,o1,") {
		t.Errorf("expected the u1 row: %s", body)
	}
	if strings.Contains(body, "u2") {
		t.Errorf("u2 should be filtered out: %s", body)
	}
}

func TestServer_Codes(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(s, http.MethodGet, "/v1/codes?limit=100", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "55423-8") || !strings.Contains(body, "8867-4") {
		t.Errorf("expected builtin codes in listing: %s", body)
	}
	if !strings.Contains(body, `"total":`) {
		t.Errorf("expected a paged envelope: %s", body)
	}
}

func TestServer_CodesPaged(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(s, http.MethodGet, "/v1/codes?limit=5", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"limit":5`) || !strings.Contains(body, `"has_more":true`) {
		t.Errorf("expected a truncated first page: %s", body)
	}
	if got := strings.Count(body, `"code":`); got != 5 {
		t.Errorf("expected 5 entries, got %d: %s", got, body)
	}
}

func TestServer_CodeLookup(t *testing.T) {
	s := newTestServer(t, nil)

	rec := do(s, http.MethodGet, "/v1/codes/8867-4", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Heart rate") || !strings.Contains(body, `"known":true`) {
		t.Errorf("unexpected body %s", body)
	}

	rec = do(s, http.MethodGet, "/v1/codes/0000-0", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body = rec.Body.String()
	if !strings.Contains(body, "0000-0") || !strings.Contains(body, `"known":false`) {
		t.Errorf("unknown codes should echo with known=false: %s", body)
	}
}

func TestServer_SandboxDisabledByDefault(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(s, http.MethodGet, "/v1/sandbox/dataset", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("sandbox route should not exist when disabled, got %d", rec.Code)
	}
}

func TestServer_SandboxDataset(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) {
		c.SandboxEnabled = true
		c.SandboxUsers = 2
		c.SandboxDays = 2
		c.SandboxSeed = 1
	})
	rec := do(s, http.MethodGet, "/v1/sandbox/dataset", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"LoincCode":"55423-8"`) {
		t.Errorf("expected generated step counts: %s", body)
	}
}

func TestServer_MetricsAfterFlatten(t *testing.T) {
	s := newTestServer(t, nil)
	do(s, http.MethodPost, "/v1/flatten", stepObservations)

	rec := do(s, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `fhirtab_flatten_requests_total{resource_type="Observation",outcome="ok"} 1`) {
		t.Errorf("flatten requests counter missing: %s", body)
	}
	if !strings.Contains(body, `fhirtab_flatten_rows_total{resource_type="Observation"} 2`) {
		t.Errorf("flatten rows counter missing: %s", body)
	}
}

func TestServer_BodyLimitApplies(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.MaxBodyBytes = 64 })
	rec := do(s, http.MethodPost, "/v1/flatten", stepObservations)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
}
