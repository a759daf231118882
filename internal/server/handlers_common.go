package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"medi/connect/internal/emergency"
	"medi/connect/internal/ticketing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type APIError struct {
	Error   string      `json:"error"`
	Details interface{} `json:"details,omitempty"`
}

const (
	errInvalidPayload    = "invalid payload"
	errInvalidRequestID  = "invalid request id"
	errInvalidResourceID = "invalid resource id"
	errInvalidFilmID     = "invalid film id"
)

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string, details interface{}) {
	s.writeJSON(w, status, APIError{Error: message, Details: details})
}

// writeDomainError maps lifecycle, fleet and catalogue errors onto HTTP statuses.
func (s *Server) writeDomainError(w http.ResponseWriter, err error, fallback string) {
	var ite *emergency.IllegalTransitionError
	switch {
	case errors.As(err, &ite):
		s.writeError(w, http.StatusConflict, "illegal transition", TransitionErrorDetails{From: string(ite.From), To: string(ite.To)})
	case errors.Is(err, emergency.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "not found", err.Error())
	case errors.Is(err, emergency.ErrInvalidState):
		s.writeError(w, http.StatusConflict, "invalid state", err.Error())
	case errors.Is(err, emergency.ErrNoResourceAvailable):
		s.writeError(w, http.StatusServiceUnavailable, "no ambulance available", err.Error())
	case errors.Is(err, ticketing.ErrFilmNotFound):
		s.writeError(w, http.StatusNotFound, "film not found", err.Error())
	case errors.Is(err, ticketing.ErrSoldOut):
		s.writeError(w, http.StatusConflict, "sold out", err.Error())
	case errors.Is(err, ticketing.ErrInvalidTicket):
		s.writeError(w, http.StatusBadRequest, "invalid ticket count", err.Error())
	default:
		s.log.Error().Err(err).Msg(fallback)
		s.writeError(w, http.StatusInternalServerError, fallback, err.Error())
	}
}

func (s *Server) decodeAndValidate(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return err
	}
	if err := s.validate.Struct(dst); err != nil {
		return err
	}
	return nil
}

func (s *Server) parseUUIDParam(r *http.Request, key string) (string, error) {
	raw := chi.URLParam(r, key)
	if strings.TrimSpace(raw) == "" {
		return "", errors.New("missing id")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return "", err
	}
	return parsed.String(), nil
}

func (s *Server) parseIDParam(r *http.Request, key string) (string, error) {
	raw := strings.TrimSpace(chi.URLParam(r, key))
	if raw == "" {
		return "", errors.New("missing id")
	}
	return raw, nil
}

func queryLimit(r *http.Request, def, max int) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
