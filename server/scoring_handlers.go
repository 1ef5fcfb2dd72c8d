package server

import (
	"net/http"
)

// handleScoringWeights serves the active signal weights: GET reads
// them, PUT applies updates. Updates validate into [0, 1] before
// anything is applied; cached scores are dropped by the agent so the
// new weights take effect immediately.
func (s *Server) handleScoringWeights(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"weights": s.agent.Weights()})

	case http.MethodPut:
		var updates map[string]float64
		if err := readJSON(w, r, &updates); err != nil {
			return
		}
		if len(updates) == 0 {
			writeError(w, http.StatusBadRequest, "no weights provided")
			return
		}
		weights, err := s.agent.SetWeights(updates)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"weights": weights})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleScoringWeightsReset restores the rule set the agent was built
// with.
func (s *Server) handleScoringWeightsReset(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"weights": s.agent.ResetWeights()})
}
