package server

import (
	"net/http"

	"github.com/meridian-hq/ABMX/abm"
	"github.com/meridian-hq/ABMX/flow"
)

// flowStatusResponse describes the pipeline topology and its most
// recent run.
type flowStatusResponse struct {
	Name            string            `json:"name"`
	Order           []string          `json:"order"`
	Nodes           []flow.Descriptor `json:"nodes"`
	Connections     []flow.Connection `json:"connections"`
	SweepRegistered bool              `json:"sweep_registered"`
	LastRun         *abm.RunEvent     `json:"last_run,omitempty"`
}

// handleFlowStatus reports the pipeline wiring, execution order, and
// last-run summary.
func (s *Server) handleFlowStatus(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	pipeline := s.service.Pipeline()
	writeJSON(w, http.StatusOK, flowStatusResponse{
		Name:            pipeline.Name(),
		Order:           pipeline.Order(),
		Nodes:           pipeline.Descriptors(),
		Connections:     pipeline.Connections(),
		SweepRegistered: s.sweepRegistered(),
		LastRun:         s.service.LastRun(),
	})
}
