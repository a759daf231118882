package server

import (
	"net/http"
	"time"
)

// handleHealth godoc
// @Title Health check
// @Description Returns service health, uptime and fleet availability.
// @Resource System
// @Produce json
// @Success 200 {object} HealthResponse
// @Route /healthz [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	fleet := make(map[string]int)
	for availability, n := range s.dispatcher.FleetCounts() {
		fleet[string(availability)] = n
	}
	payload := HealthResponse{
		Status:  "ok",
		Env:     s.cfg.Env,
		Uptime:  time.Since(s.startedAt).String(),
		Journal: s.journalBackend(),
		Fleet:   fleet,
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *Server) journalBackend() string {
	if s.pool != nil {
		return "postgres"
	}
	return "memory"
}
