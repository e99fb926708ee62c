package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrimacro/agrimacro/internal/api/handlers"
	"github.com/agrimacro/agrimacro/internal/audit"
	"github.com/agrimacro/agrimacro/internal/contracts"
	"github.com/agrimacro/agrimacro/internal/paths"
	"github.com/agrimacro/agrimacro/internal/pipeline"
	"github.com/agrimacro/agrimacro/internal/scheduler"
	"github.com/agrimacro/agrimacro/internal/store"
	"github.com/agrimacro/agrimacro/pkg/logger"
)

type stubArchive struct {
	runs  []audit.RunRecord
	err   error
	limit int
}

func (a *stubArchive) SaveRun(context.Context, *audit.RunRecord) error { return nil }

func (a *stubArchive) ListRuns(_ context.Context, limit int) ([]audit.RunRecord, error) {
	a.limit = limit
	return a.runs, a.err
}

type stubStats map[string]scheduler.JobStats

func (s stubStats) GetJobStats() map[string]scheduler.JobStats { return s }

func newTestRouter(t *testing.T, archive audit.Archive) (http.Handler, paths.Paths) {
	t.Helper()
	p := paths.New(t.TempDir())
	require.NoError(t, p.Ensure())

	routes := Routes{
		Runs: handlers.NewRunHandler(p, archive, logger.Nop()),
		Jobs: handlers.NewJobHandler(stubStats{"daily_run": {JobName: "daily_run", Schedule: "0 30 6 * * *"}}),
		Hub:  NewHub(logger.Nop()),
	}
	return NewRouter(routes, logger.Nop()), p
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h, _ := newTestRouter(t, nil)

	rec := get(t, h, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestArtifacts(t *testing.T) {
	h, p := newTestRouter(t, nil)

	m := contracts.NewRunManifest("20260302T093000Z", "2026-03-02")
	m.Record("prices", contracts.StepResult{Status: contracts.StepOK, Kind: contracts.KindAdapter})
	require.NoError(t, store.WriteJSON(p.Manifest(), m))
	require.NoError(t, store.WriteJSON(p.ProcessedFile("spreads"), map[string]interface{}{"spreads": map[string]interface{}{}}))

	tests := []struct {
		path string
		code int
	}{
		{"/api/manifest", http.StatusOK},
		{"/api/qa", http.StatusNotFound},
		{"/api/bundle", http.StatusNotFound},
		{"/api/processed/spreads", http.StatusOK},
		{"/api/processed/stocks_watch", http.StatusNotFound},
		{"/api/processed/Spreads.json", http.StatusBadRequest},
		{"/api/runs", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := get(t, h, tt.path)
			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		})
	}

	var got contracts.RunManifest
	require.NoError(t, json.Unmarshal(get(t, h, "/api/manifest").Body.Bytes(), &got))
	assert.Equal(t, 1, got.TotalSteps)
}

func TestListRuns(t *testing.T) {
	archive := &stubArchive{runs: []audit.RunRecord{{RunID: "20260302T093000Z", Status: contracts.VerdictWarn, Confidence: 97}}}
	h, _ := newTestRouter(t, archive)

	rec := get(t, h, "/api/runs?limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, archive.limit)
	assert.Contains(t, rec.Body.String(), `"count":1`)

	get(t, h, "/api/runs?limit=5000")
	assert.Equal(t, 365, archive.limit, "limit is capped")

	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/runs?limit=abc").Code)

	archive.err = errors.New("connection refused")
	assert.Equal(t, http.StatusInternalServerError, get(t, h, "/api/runs").Code)
}

func TestJobs(t *testing.T) {
	h, _ := newTestRouter(t, nil)

	rec := get(t, h, "/api/jobs")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"daily_run"`)
	assert.Contains(t, rec.Body.String(), `"scheduler":true`)
}

func TestRecoveryMiddleware(t *testing.T) {
	panicking := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { panic("boom") })
	h := recoveryMiddleware(logger.Nop())(panicking)

	rec := get(t, h, "/anything")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Internal server error")
}

func TestHub_StreamsRunProgress(t *testing.T) {
	hub := NewHub(logger.Nop())
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()
	defer hub.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 5*time.Millisecond)

	hub.StepFinished(pipeline.StepEvent{
		RunID:  "20260302T093000Z",
		Step:   "prices",
		Index:  1,
		Total:  27,
		Result: contracts.StepResult{Status: contracts.StepOK, Kind: contracts.KindAdapter},
	})
	hub.RunFinished(contracts.NewRunManifest("20260302T093000Z", "2026-03-02"))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var first Message
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "step", first.Type)
	require.NotNil(t, first.Step)
	assert.Equal(t, "prices", first.Step.Step)

	var second Message
	require.NoError(t, conn.ReadJSON(&second))
	assert.Equal(t, "run", second.Type)
	require.NotNil(t, second.Manifest)
	assert.Equal(t, "2026-03-02", second.Manifest.Date)
}

func TestHub_DropsClosedClients(t *testing.T) {
	hub := NewHub(logger.Nop())
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 5*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 5*time.Millisecond)

	// 클라이언트가 없어도 broadcast 는 안전
	hub.RunFinished(contracts.NewRunManifest("r", "2026-03-02"))
}
