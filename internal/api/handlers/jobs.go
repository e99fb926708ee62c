package handlers

import (
	"net/http"

	"github.com/agrimacro/agrimacro/internal/scheduler"
)

// JobStats is implemented by *scheduler.Scheduler
type JobStats interface {
	GetJobStats() map[string]scheduler.JobStats
}

// JobHandler exposes scheduler statistics
type JobHandler struct {
	stats JobStats
}

// NewJobHandler creates a job handler. stats may be nil (serve without --schedule).
func NewJobHandler(stats JobStats) *JobHandler {
	return &JobHandler{stats: stats}
}

// GetJobs returns the scheduler job stats
// GET /api/jobs
func (h *JobHandler) GetJobs(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		respondJSON(w, http.StatusOK, map[string]interface{}{"scheduler": false, "jobs": map[string]interface{}{}})
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"scheduler": true, "jobs": h.stats.GetJobStats()})
}
