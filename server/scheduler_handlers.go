package server

import (
	"net/http"
	"time"

	"github.com/meridian-hq/ABMX/abm"
	"github.com/meridian-hq/ABMX/logger"
)

// addTaskRequest registers a known task under a new id. Arbitrary code
// is not accepted over HTTP; Task names one of the callables the
// server owns.
type addTaskRequest struct {
	ID              string `json:"id"`
	Task            string `json:"task"`
	IntervalSeconds int    `json:"interval_seconds"`
}

// updateTaskRequest mutates a live task's interval.
type updateTaskRequest struct {
	IntervalSeconds *int `json:"interval_seconds"`
}

// handleSchedulerStatus reports the scheduler state and every task.
func (s *Server) handleSchedulerStatus(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, s.scheduler.Status())
}

func (s *Server) handleSchedulerStart(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	s.scheduler.Start()
	writeJSON(w, http.StatusOK, map[string]any{"running": s.scheduler.Running()})
}

func (s *Server) handleSchedulerStop(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	if err := s.scheduler.Stop(); err != nil {
		// Stopped, but with tasks still in flight past the bounded wait.
		writeJSON(w, http.StatusOK, map[string]any{
			"running": s.scheduler.Running(),
			"warning": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"running": s.scheduler.Running()})
}

// handleSchedulerTasks registers a new task. Only named callables the
// server owns can be scheduled; "sweep" is the one on offer.
func (s *Server) handleSchedulerTasks(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req addTaskRequest
	if err := readJSON(w, r, &req); err != nil {
		return
	}
	if req.ID == "" || req.IntervalSeconds <= 0 {
		writeError(w, http.StatusBadRequest, "id and a positive interval_seconds are required")
		return
	}

	if req.Task != "sweep" {
		writeError(w, http.StatusBadRequest, "unknown task: only \"sweep\" can be scheduled")
		return
	}

	interval := time.Duration(req.IntervalSeconds) * time.Second
	if !s.scheduler.AddTask(req.ID, s.service.Sweep, interval) {
		writeError(w, http.StatusConflict, "task id already exists")
		return
	}

	s.log.Infow("task registered via admin API",
		logger.FieldTaskID, req.ID,
		logger.FieldInterval, interval)

	status, _ := s.scheduler.TaskStatus(req.ID)
	writeJSON(w, http.StatusCreated, status)
}

// handleSchedulerTask serves one task by id: GET status, PATCH
// interval, DELETE removal. Removal of an absent id is a no-op 404,
// never a failure.
func (s *Server) handleSchedulerTask(w http.ResponseWriter, r *http.Request) {
	id := pathSuffix(r.URL.Path, "/api/scheduler/tasks/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "task id required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		status, ok := s.scheduler.TaskStatus(id)
		if !ok {
			writeError(w, http.StatusNotFound, "task not found")
			return
		}
		writeJSON(w, http.StatusOK, status)

	case http.MethodPatch:
		var req updateTaskRequest
		if err := readJSON(w, r, &req); err != nil {
			return
		}
		if req.IntervalSeconds == nil || *req.IntervalSeconds <= 0 {
			writeError(w, http.StatusBadRequest, "a positive interval_seconds is required")
			return
		}
		interval := time.Duration(*req.IntervalSeconds) * time.Second
		if !s.scheduler.UpdateTask(id, &interval, nil) {
			writeError(w, http.StatusNotFound, "task not found")
			return
		}
		status, _ := s.scheduler.TaskStatus(id)
		writeJSON(w, http.StatusOK, status)

	case http.MethodDelete:
		if !s.scheduler.RemoveTask(id) {
			writeError(w, http.StatusNotFound, "task not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "success",
			"id":     id,
		})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// sweepTaskID reports whether the standard sweep task is registered,
// used by the flow status surface.
func (s *Server) sweepRegistered() bool {
	_, ok := s.scheduler.TaskStatus(abm.SweepTaskID)
	return ok
}
