package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/specula/internal/logging"
	"github.com/fyrsmithlabs/specula/internal/state"
	"github.com/fyrsmithlabs/specula/internal/storage"
	"github.com/fyrsmithlabs/specula/internal/telemetry"
	"github.com/fyrsmithlabs/specula/internal/workflow"
)

type testServer struct {
	*Server
	log *logging.TestLogger
	tel *telemetry.TestTelemetry
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := storage.NewBadger(storage.BadgerConfig{InMemory: true}, nil)
	require.NoError(t, err)

	tel := telemetry.NewTestTelemetry()
	files := state.NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	svc, err := workflow.NewService(files, store,
		workflow.WithClock(func() time.Time { return time.Date(2026, 3, 9, 14, 0, 0, 0, time.UTC) }),
		workflow.WithTelemetry(tel.Telemetry),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	tl := logging.NewTestLogger()
	server, err := NewServer(svc, tl.Underlying(), &Config{Host: "127.0.0.1", Port: 8088, Version: "test", Telemetry: tel.Telemetry})
	require.NoError(t, err)
	return &testServer{Server: server, log: tl, tel: tel}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Message string `json:"message"`
	}
	decode(t, rec, &body)
	return body.Message
}

type stepBody struct {
	AssistantText string          `json:"assistant_text"`
	Artifact      json.RawMessage `json:"artifact"`
}

func (b stepBody) artifactID(t *testing.T) string {
	t.Helper()
	var doc struct {
		Meta struct {
			ArtifactID string `json:"artifact_id"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(b.Artifact, &doc))
	require.NotEmpty(t, doc.Meta.ArtifactID)
	return doc.Meta.ArtifactID
}

func (s *testServer) step(t *testing.T) stepBody {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/v1/step", `{"user_input":"Start project for sustainable brand"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body stepBody
	decode(t, rec, &body)
	return body
}

func TestNewServer(t *testing.T) {
	base := setupTestServer(t)

	t.Run("uses defaults when config is nil", func(t *testing.T) {
		server, err := NewServer(base.svc, zap.NewNop(), nil)
		require.NoError(t, err)
		assert.Equal(t, "127.0.0.1", server.config.Host)
		assert.Equal(t, 8088, server.config.Port)
	})

	t.Run("returns error when logger is nil", func(t *testing.T) {
		_, err := NewServer(base.svc, nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "logger is required")
	})

	t.Run("returns error when service is nil", func(t *testing.T) {
		_, err := NewServer(nil, zap.NewNop(), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "workflow service cannot be nil")
	})
}

func TestHandleHealth(t *testing.T) {
	s := setupTestServer(t)

	rec := s.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	decode(t, rec, &resp)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "test", resp.Version)
	require.NotNil(t, resp.Telemetry)
	assert.True(t, resp.Telemetry.Healthy)
}

func TestHandleState_FreshProject(t *testing.T) {
	s := setupTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/v1/state", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var ps state.ProjectState
	decode(t, rec, &ps)
	assert.NotEmpty(t, ps.ProjectID)
	assert.Equal(t, "0", string(ps.CurrentPhase))
}

func TestHandleStep(t *testing.T) {
	s := setupTestServer(t)

	body := s.step(t)
	assert.Equal(t, "MODE: sensemaking | PHASE: 0\n"+
		"Project context is initialized and phase entry is active.\n"+
		"Who will validate phase outputs as the explicit human decision authority?", body.AssistantText)

	s.tel.AssertSpanExists(t, "workflow.step")
}

func TestHandleStep_Errors(t *testing.T) {
	s := setupTestServer(t)

	tests := []struct {
		name    string
		body    string
		code    int
		message string
	}{
		{"malformed body", `{"user_input":`, http.StatusBadRequest, "invalid request body"},
		{"missing input", `{}`, http.StatusBadRequest, "invalid request: user_input is required"},
		{"unknown phase", `{"user_input":"x","phase":"9"}`, http.StatusBadRequest, ""},
		{"skipped prerequisites", `{"user_input":"x","phase":"2"}`, http.StatusUnprocessableEntity, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/v1/step", tt.body)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
			if tt.message != "" {
				assert.Equal(t, tt.message, errorMessage(t, rec))
			}
		})
	}
}

func TestHandleValidate(t *testing.T) {
	s := setupTestServer(t)
	step := s.step(t)

	valid, err := json.Marshal(map[string]interface{}{
		"assistant_text": step.AssistantText,
		"artifact":       step.Artifact,
		"current_phase":  "0",
	})
	require.NoError(t, err)
	rec := s.do(t, http.MethodPost, "/api/v1/validate", string(valid))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var ok workflow.ValidateResponse
	decode(t, rec, &ok)
	assert.True(t, ok.Valid)

	invalid, err := json.Marshal(map[string]interface{}{
		"assistant_text": "We recommend option A.",
		"artifact":       step.Artifact,
		"current_phase":  "1",
	})
	require.NoError(t, err)
	rec = s.do(t, http.MethodPost, "/api/v1/validate", string(invalid))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var bad workflow.ValidateResponse
	decode(t, rec, &bad)
	assert.False(t, bad.Valid)
	assert.Contains(t, bad.Errors, "meta.phase `0` does not match current phase `1`")

	rec = s.do(t, http.MethodPost, "/api/v1/validate", `{"assistant_text":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleAdvance(t *testing.T) {
	s := setupTestServer(t)
	id := s.step(t).artifactID(t)

	rec := s.do(t, http.MethodPost, "/api/v1/advance",
		`{"phase":"0","artifact_id":"`+id+`","validator_id":"alice","validator_role":"strategy_lead","validated_by_human":true}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var first workflow.AdvanceResponse
	decode(t, rec, &first)
	assert.False(t, first.Advanced)
	assert.Equal(t, "0", first.Phase)
	assert.Equal(t, "artifact `"+id+"` requires at least two human approvals to advance", first.Reason)

	rec = s.do(t, http.MethodPost, "/api/v1/advance",
		`{"phase":"0","artifact_id":"`+id+`","validator_id":"alice","validator_role":"strategy_lead","validated_by_human":true}`)
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/v1/advance",
		`{"phase":"0","artifact_id":"`+id+`","validator_id":"bob","validator_role":"ethics_reviewer","decision":"approve","validated_by_human":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var second workflow.AdvanceResponse
	decode(t, rec, &second)
	assert.True(t, second.Advanced)
	assert.Equal(t, "1", second.Phase)

	rec = s.do(t, http.MethodGet, "/api/v1/audit?limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var audit AuditResponse
	decode(t, rec, &audit)
	require.Len(t, audit.Events, 2)
	assert.Equal(t, storage.EventValidationRecorded, audit.Events[0].Event)
	assert.Equal(t, "advanced to phase 1", audit.Events[1].Content)
	assert.NotEmpty(t, audit.ProjectID)
}

func TestHandleAdvance_Errors(t *testing.T) {
	s := setupTestServer(t)
	id := s.step(t).artifactID(t)

	tests := []struct {
		name string
		body string
		code int
	}{
		{"missing fields", `{"phase":"0"}`, http.StatusBadRequest},
		{"bad decision", `{"phase":"0","artifact_id":"` + id + `","validator_role":"r","decision":"maybe"}`, http.StatusBadRequest},
		{"approve without human", `{"phase":"0","artifact_id":"` + id + `","validator_role":"r","validated_by_human":false}`, http.StatusBadRequest},
		{"approve with human flag omitted", `{"phase":"0","artifact_id":"` + id + `","validator_role":"r"}`, http.StatusBadRequest},
		{"phase mismatch", `{"phase":"1","artifact_id":"` + id + `","validator_role":"r","validated_by_human":true}`, http.StatusUnprocessableEntity},
		{"unknown artifact", `{"phase":"0","artifact_id":"nope","validator_role":"r","validated_by_human":true}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/v1/advance", tt.body)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
		})
	}
}

func TestHandleInitDB(t *testing.T) {
	s := setupTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/init-db", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp InitDBResponse
	decode(t, rec, &resp)
	assert.Equal(t, "database schema initialized", resp.Status)
}

func TestHandleAudit(t *testing.T) {
	s := setupTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/v1/audit", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var empty AuditResponse
	decode(t, rec, &empty)
	assert.NotNil(t, empty.Events)
	assert.Empty(t, empty.Events)

	for _, q := range []string{"abc", "0", "-1", "1001"} {
		rec := s.do(t, http.MethodGet, "/api/v1/audit?limit="+q, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := setupTestServer(t)
	s.step(t)

	rec := s.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `specula_project_phase{phase="0",project_id="`)
	assert.Contains(t, body, "specula_project_artifacts{")
	assert.Contains(t, body, "go_goroutines")

	assert.Equal(t, int64(2), s.tel.CounterValue(t, "specula.http.requests_total"))
}

func TestRequestLogging(t *testing.T) {
	s := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(echo.HeaderXRequestID, "req-123")
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-123", rec.Header().Get(echo.HeaderXRequestID))

	s.log.AssertLogged(t, zapcore.InfoLevel, "http request")
	s.log.AssertField(t, "http request", "request.id", "req-123")
	s.log.AssertField(t, "http request", "uri", "/health")
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{workflow.ErrInvalidRequest, http.StatusBadRequest},
		{state.ErrDuplicateSignature, http.StatusConflict},
		{storage.ErrDuplicateValidation, http.StatusConflict},
		{assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}

	he := toHTTPError(assert.AnError)
	assert.Equal(t, "internal error", he.Message)
}
