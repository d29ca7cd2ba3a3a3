package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sabq4org/so7ba.ai/internal/scheduler"
	"github.com/sabq4org/so7ba.ai/pkg/logger"
)

// JobRunner scheduler operations exposed over HTTP
type JobRunner interface {
	GetJobStats() map[string]scheduler.JobStats
	RunJob(jobName string) error
}

// JobHandler handles scheduler endpoints
type JobHandler struct {
	scheduler JobRunner
	logger    *logger.Logger
}

// NewJobHandler creates a new job handler
func NewJobHandler(s JobRunner, log *logger.Logger) *JobHandler {
	return &JobHandler{
		scheduler: s,
		logger:    log,
	}
}

// GetJobs returns per-job statistics
// GET /api/jobs
func (h *JobHandler) GetJobs(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.scheduler.GetJobStats())
}

// TriggerJob runs a job immediately in the background
// POST /api/jobs/{name}/run
func (h *JobHandler) TriggerJob(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	if err := h.scheduler.RunJob(name); err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	h.logger.WithField("job", name).Info("Job triggered via API")
	respondJSON(w, http.StatusAccepted, map[string]string{
		"status": "accepted",
		"job":    name,
	})
}
