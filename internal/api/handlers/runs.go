package handlers

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"regexp"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/agrimacro/agrimacro/internal/audit"
	"github.com/agrimacro/agrimacro/internal/bundle"
	"github.com/agrimacro/agrimacro/internal/paths"
	"github.com/agrimacro/agrimacro/pkg/logger"
)

// processedName guards /api/processed/{name} against path traversal
var processedName = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// maxRunsLimit caps /api/runs?limit=
const maxRunsLimit = 365

// RunHandler serves the run artifacts read-only
// ⭐ SSOT: 대시보드 API 핸들러는 여기서만 (쓰기 엔드포인트 없음)
type RunHandler struct {
	paths   paths.Paths
	archive audit.Archive
	logger  *logger.Logger
}

// NewRunHandler creates a new run handler. archive may be nil (no DATABASE_URL).
func NewRunHandler(p paths.Paths, archive audit.Archive, log *logger.Logger) *RunHandler {
	return &RunHandler{
		paths:   p,
		archive: archive,
		logger:  log,
	}
}

// GetManifest returns last_run.json
// GET /api/manifest
func (h *RunHandler) GetManifest(w http.ResponseWriter, r *http.Request) {
	h.serveFile(w, h.paths.Manifest(), "no run recorded yet")
}

// GetQA returns the latest audit report
// GET /api/qa
func (h *RunHandler) GetQA(w http.ResponseWriter, r *http.Request) {
	h.serveFile(w, h.paths.ProcessedFile(audit.ProcessedQAFile), "no audit report yet")
}

// GetBundle returns processed/report_bundle.json
// GET /api/bundle
func (h *RunHandler) GetBundle(w http.ResponseWriter, r *http.Request) {
	h.serveFile(w, h.paths.ProcessedFile(bundle.FileName), "no report bundle yet")
}

// GetProcessed returns one processed/{name}.json file
// GET /api/processed/{name}
func (h *RunHandler) GetProcessed(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if !processedName.MatchString(name) {
		respondError(w, http.StatusBadRequest, "invalid processed file name")
		return
	}
	h.serveFile(w, h.paths.ProcessedFile(name), "processed file not found")
}

// ListRuns returns archived runs, newest first
// GET /api/runs?limit=30
func (h *RunHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		respondError(w, http.StatusServiceUnavailable, "run archive is not configured")
		return
	}

	limit := 30
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if n > maxRunsLimit {
			n = maxRunsLimit
		}
		limit = n
	}

	runs, err := h.archive.ListRuns(r.Context(), limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list runs")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve runs")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

func (h *RunHandler) serveFile(w http.ResponseWriter, path, missing string) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			respondError(w, http.StatusNotFound, missing)
			return
		}
		h.logger.WithError(err).WithField("path", path).Error("Failed to read artifact")
		respondError(w, http.StatusInternalServerError, "Failed to read artifact")
		return
	}
	respondRaw(w, http.StatusOK, raw)
}
