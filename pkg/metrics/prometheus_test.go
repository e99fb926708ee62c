package metrics

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_WriteTextfile(t *testing.T) {
	r := New()
	r.RecordStep("prices", "OK", 1.5)
	r.RecordStep("cot", "WARN", 0.2)
	r.RecordAdapter("prices", AdapterOK)
	r.RecordAdapter("cot", AdapterCached)
	r.RecordFinding("FLAG", "STALE_DATA")
	r.RecordVerdict(90, 1767225600)

	path := filepath.Join(t.TempDir(), "metrics.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, `agrimacro_step_status_total{status="OK",step="prices"} 1`)
	assert.Contains(t, out, `agrimacro_adapter_status{adapter="cot"} 1`)
	assert.Contains(t, out, `agrimacro_audit_findings_total{code="STALE_DATA",severity="FLAG"} 1`)
	assert.Contains(t, out, "agrimacro_verdict_confidence 90")
}

func TestRecorder_Gather(t *testing.T) {
	r := New()
	r.RecordStep("spreads", "OK", 0.01)

	families, err := r.Gather()
	require.NoError(t, err)
	assert.Equal(t, 1, families["agrimacro_step_duration_seconds"])
	assert.Equal(t, 1, families["agrimacro_step_status_total"])
}

func TestRecorder_Handler(t *testing.T) {
	r := New()
	r.RecordAdapter("eia", AdapterError)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `agrimacro_adapter_status{adapter="eia"} 2`)
}
