package handler

import (
	"net/http"

	"github.com/calebfife/tandem/internal/scheduler"
)

type JobHandler struct {
	scheduler *scheduler.Scheduler
}

func NewJobHandler(s *scheduler.Scheduler) *JobHandler {
	return &JobHandler{scheduler: s}
}

// RunReminders handles POST /jobs/reminders. It runs one delivery pass
// immediately and reports the outcome counts.
func (h *JobHandler) RunReminders(w http.ResponseWriter, r *http.Request) {
	result := h.scheduler.Run()
	writeJSON(w, http.StatusOK, result)
}
