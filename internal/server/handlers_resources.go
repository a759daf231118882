package server

import (
	"net/http"

	"medi/connect/internal/emergency"
)

// handleListResources godoc
// @Title List ambulances
// @Description Returns the ambulance roster in dispatch scan order.
// @Resource Resources
// @Produce json
// @Success 200 {array} ResourceResponse
// @Route /v1/resources [get]
func (s *Server) handleListResources(w http.ResponseWriter, r *http.Request) {
	rows := s.dispatcher.Resources()
	resp := make([]ResourceResponse, 0, len(rows))
	for _, row := range rows {
		resp = append(resp, mapResource(row))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleCreateResource godoc
// @Title Register ambulance
// @Description Adds an ambulance to the end of the roster.
// @Resource Resources
// @Accept json
// @Produce json
// @Param request body CreateResourcePayload true "Ambulance payload"
// @Success 201 {object} ResourceResponse
// @Failure 400 {object} APIError
// @Failure 409 {object} APIError
// @Route /v1/resources [post]
func (s *Server) handleCreateResource(w http.ResponseWriter, r *http.Request) {
	var req CreateResourcePayload
	if err := s.decodeAndValidate(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidPayload, err.Error())
		return
	}

	row, err := s.dispatcher.AddResource(r.Context(), emergency.Resource{
		ID:           req.ID,
		CallSign:     req.CallSign,
		Driver:       req.Driver,
		Paramedic:    req.Paramedic,
		Availability: emergency.Availability(req.Availability),
		Location:     req.Location.location(),
	})
	if err != nil {
		s.writeDomainError(w, err, "failed to register ambulance")
		return
	}
	s.writeJSON(w, http.StatusCreated, mapResource(row))
}

// handleUpdateResourceAvailability godoc
// @Title Update ambulance availability
// @Description Toggles an idle ambulance between available and offline.
// @Resource Resources
// @Accept json
// @Produce json
// @Param resourceID path string true "Resource ID"
// @Param request body UpdateResourceAvailabilityPayload true "Availability payload"
// @Success 200 {object} ResourceResponse
// @Failure 400 {object} APIError
// @Failure 404 {object} APIError
// @Failure 409 {object} APIError
// @Route /v1/resources/{resourceID}/availability [patch]
func (s *Server) handleUpdateResourceAvailability(w http.ResponseWriter, r *http.Request) {
	resourceID, err := s.parseIDParam(r, "resourceID")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidResourceID, err.Error())
		return
	}

	var req UpdateResourceAvailabilityPayload
	if err := s.decodeAndValidate(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidPayload, err.Error())
		return
	}

	row, err := s.dispatcher.SetAvailability(r.Context(), resourceID, emergency.Availability(req.Availability))
	if err != nil {
		s.writeDomainError(w, err, "failed to update ambulance")
		return
	}
	s.writeJSON(w, http.StatusOK, mapResource(row))
}
