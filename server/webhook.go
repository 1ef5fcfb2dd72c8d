package server

import (
	"net/http"

	"github.com/meridian-hq/ABMX/crm"
	"github.com/meridian-hq/ABMX/logger"
)

// handleWebhook ingests one CRM webhook delivery. The response is
// always 200 with a status field so the CRM's retry logic is not
// triggered by partial failures; the one exception is a body that does
// not parse, which has no status to carry and gets a 400.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var evt crm.Event
	if err := readJSON(w, r, &evt); err != nil {
		return
	}

	s.log.Infow("webhook received",
		logger.FieldEventType, evt.EventType)

	ctx := r.Context()
	if requestID := r.Header.Get("X-Request-ID"); requestID != "" {
		ctx = logger.WithRequestID(ctx, requestID)
	}

	result := s.service.Process(ctx, evt)
	writeJSON(w, http.StatusOK, result)
}
