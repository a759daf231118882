package server

import "net/http"

// handleListRecentActivity godoc
// @Title List recent activity
// @Description Returns the most recent status changes for requests and ambulances, newest first.
// @Resource Activity
// @Produce json
// @Param limit query int false "Maximum results" default(10)
// @Success 200 {array} ActivityLogResponse
// @Failure 500 {object} APIError
// @Route /v1/activity/recent [get]
func (s *Server) handleListRecentActivity(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 10, 100)

	rows, err := s.dispatcher.Recent(r.Context(), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to list recent activity", err.Error())
		return
	}

	resp := make([]ActivityLogResponse, 0, len(rows))
	for _, row := range rows {
		resp = append(resp, mapActivity(row))
	}
	s.writeJSON(w, http.StatusOK, resp)
}
