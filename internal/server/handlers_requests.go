package server

import (
	"net/http"

	"medi/connect/internal/emergency"
)

// handleListRequests godoc
// @Title List requests
// @Description Lists emergency requests in submission order, optionally filtered by status.
// @Resource Requests
// @Produce json
// @Param status query string false "Comma-separated statuses to include (e.g., requested,dispatched)"
// @Success 200 {array} RequestResponse
// @Failure 400 {object} APIError
// @Route /v1/requests [get]
func (s *Server) handleListRequests(w http.ResponseWriter, r *http.Request) {
	var statuses []emergency.Status
	for _, raw := range splitCSV(r.URL.Query().Get("status")) {
		st := emergency.Status(raw)
		if !st.Valid() {
			s.writeError(w, http.StatusBadRequest, "invalid status filter", raw)
			return
		}
		statuses = append(statuses, st)
	}

	rows := s.dispatcher.List(statuses...)
	resp := make([]RequestResponse, 0, len(rows))
	for _, row := range rows {
		resp = append(resp, mapRequest(row))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleCreateRequest godoc
// @Title Create request
// @Description Submits a new emergency request. With auto-dispatch enabled an ambulance is assigned immediately when one is free.
// @Resource Requests
// @Accept json
// @Produce json
// @Param request body CreateRequestPayload true "Request payload"
// @Success 201 {object} RequestResponse
// @Failure 400 {object} APIError
// @Route /v1/requests [post]
func (s *Server) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	var req CreateRequestPayload
	if err := s.decodeAndValidate(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidPayload, err.Error())
		return
	}

	row, err := s.dispatcher.Create(r.Context(), req.submission())
	if err != nil {
		s.writeDomainError(w, err, "failed to create request")
		return
	}

	s.writeJSON(w, http.StatusCreated, mapRequest(row))
}

// handleGetRequest godoc
// @Title Get request
// @Description Returns a single emergency request with its assigned ambulance and arrival estimate.
// @Resource Requests
// @Produce json
// @Param requestID path string true "Request ID"
// @Success 200 {object} RequestResponse
// @Failure 400 {object} APIError
// @Failure 404 {object} APIError
// @Route /v1/requests/{requestID} [get]
func (s *Server) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	requestID, err := s.parseUUIDParam(r, "requestID")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidRequestID, err.Error())
		return
	}

	row, err := s.dispatcher.Get(requestID)
	if err != nil {
		s.writeDomainError(w, err, "failed to fetch request")
		return
	}
	s.writeJSON(w, http.StatusOK, mapRequest(row))
}

// handleUpdateRequestStatus godoc
// @Title Update request status
// @Description Advances a request along its lifecycle. Illegal transitions are rejected with 409.
// @Resource Requests
// @Accept json
// @Produce json
// @Param requestID path string true "Request ID"
// @Param request body UpdateRequestStatusPayload true "Status payload"
// @Success 200 {object} RequestResponse
// @Failure 400 {object} APIError
// @Failure 404 {object} APIError
// @Failure 409 {object} APIError
// @Failure 503 {object} APIError
// @Route /v1/requests/{requestID}/status [patch]
func (s *Server) handleUpdateRequestStatus(w http.ResponseWriter, r *http.Request) {
	requestID, err := s.parseUUIDParam(r, "requestID")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidRequestID, err.Error())
		return
	}

	var req UpdateRequestStatusPayload
	if err := s.decodeAndValidate(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidPayload, err.Error())
		return
	}

	row, err := s.dispatcher.UpdateStatus(r.Context(), requestID, emergency.Status(req.Status))
	if err != nil {
		s.writeDomainError(w, err, "failed to update request")
		return
	}
	s.writeJSON(w, http.StatusOK, mapRequest(row))
}

// handleDispatchRequest godoc
// @Title Dispatch request
// @Description Assigns the first available ambulance to a pending request.
// @Resource Requests
// @Produce json
// @Param requestID path string true "Request ID"
// @Success 200 {object} RequestResponse
// @Failure 400 {object} APIError
// @Failure 404 {object} APIError
// @Failure 409 {object} APIError
// @Failure 503 {object} APIError
// @Route /v1/requests/{requestID}/dispatch [post]
func (s *Server) handleDispatchRequest(w http.ResponseWriter, r *http.Request) {
	requestID, err := s.parseUUIDParam(r, "requestID")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidRequestID, err.Error())
		return
	}

	row, err := s.dispatcher.Dispatch(r.Context(), requestID)
	if err != nil {
		s.writeDomainError(w, err, "failed to dispatch request")
		return
	}
	s.writeJSON(w, http.StatusOK, mapRequest(row))
}

// handleAcceptRequest godoc
// @Title Accept request
// @Description Assigns the caller's own ambulance to a pending request. The unit must be available.
// @Resource Requests
// @Accept json
// @Produce json
// @Param requestID path string true "Request ID"
// @Param request body AcceptRequestPayload true "Ambulance accepting the request"
// @Success 200 {object} RequestResponse
// @Failure 400 {object} APIError
// @Failure 404 {object} APIError
// @Failure 409 {object} APIError
// @Route /v1/requests/{requestID}/accept [post]
func (s *Server) handleAcceptRequest(w http.ResponseWriter, r *http.Request) {
	requestID, err := s.parseUUIDParam(r, "requestID")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidRequestID, err.Error())
		return
	}

	var req AcceptRequestPayload
	if err := s.decodeAndValidate(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidPayload, err.Error())
		return
	}

	row, err := s.dispatcher.Accept(r.Context(), requestID, req.ResourceID)
	if err != nil {
		s.writeDomainError(w, err, "failed to accept request")
		return
	}
	s.writeJSON(w, http.StatusOK, mapRequest(row))
}

// handleCancelRequest godoc
// @Title Cancel request
// @Description Cancels a request that has not been dispatched yet. The record is kept as cancelled.
// @Resource Requests
// @Produce json
// @Param requestID path string true "Request ID"
// @Success 200 {object} RequestResponse
// @Failure 400 {object} APIError
// @Failure 404 {object} APIError
// @Failure 409 {object} APIError
// @Route /v1/requests/{requestID}/cancel [post]
func (s *Server) handleCancelRequest(w http.ResponseWriter, r *http.Request) {
	requestID, err := s.parseUUIDParam(r, "requestID")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidRequestID, err.Error())
		return
	}

	row, err := s.dispatcher.Cancel(r.Context(), requestID)
	if err != nil {
		s.writeDomainError(w, err, "failed to cancel request")
		return
	}
	s.writeJSON(w, http.StatusOK, mapRequest(row))
}

// handleRemoveRequest godoc
// @Title Remove request
// @Description Deletes a request that has not been dispatched yet.
// @Resource Requests
// @Param requestID path string true "Request ID"
// @Success 204 {string} string "No Content"
// @Failure 400 {object} APIError
// @Failure 404 {object} APIError
// @Failure 409 {object} APIError
// @Route /v1/requests/{requestID} [delete]
func (s *Server) handleRemoveRequest(w http.ResponseWriter, r *http.Request) {
	requestID, err := s.parseUUIDParam(r, "requestID")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidRequestID, err.Error())
		return
	}

	if err := s.dispatcher.Remove(r.Context(), requestID); err != nil {
		s.writeDomainError(w, err, "failed to remove request")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListRequestTransitions godoc
// @Title List next statuses
// @Description Returns the statuses a request may move to next.
// @Resource Requests
// @Produce json
// @Param requestID path string true "Request ID"
// @Success 200 {object} TransitionsResponse
// @Failure 400 {object} APIError
// @Failure 404 {object} APIError
// @Route /v1/requests/{requestID}/transitions [get]
func (s *Server) handleListRequestTransitions(w http.ResponseWriter, r *http.Request) {
	requestID, err := s.parseUUIDParam(r, "requestID")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidRequestID, err.Error())
		return
	}

	row, err := s.dispatcher.Get(requestID)
	if err != nil {
		s.writeDomainError(w, err, "failed to fetch request")
		return
	}
	s.writeJSON(w, http.StatusOK, TransitionsResponse{
		RequestID: row.ID,
		Status:    string(row.Status),
		Next:      statusStrings(emergency.NextStatuses(row.Status)),
		Terminal:  row.Status.Terminal(),
	})
}
