package server

import (
	"net/http"

	"github.com/meridian-hq/ABMX/cache"
)

// handleCacheStats reports per-tier occupancy and configuration.
func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, s.caches.Stats())
}

// handleCacheClear empties one tier (?kind=entity|score|prompt) or all
// of them when kind is omitted. An unknown kind is a 400; clearing
// nothing silently would mask operator typos.
func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	kind := cache.Kind(r.URL.Query().Get("kind"))
	if err := s.caches.Clear(kind); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cleared := "all"
	if kind != "" {
		cleared = string(kind)
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"cleared": cleared,
	})
}
