package server

import "net/http"

// handleListFilms godoc
// @Title List films
// @Description Returns every film on the programme with remaining ticket counts.
// @Resource Films
// @Produce json
// @Success 200 {array} FilmResponse
// @Route /v1/films [get]
func (s *Server) handleListFilms(w http.ResponseWriter, r *http.Request) {
	rows := s.films.List()
	resp := make([]FilmResponse, 0, len(rows))
	for _, row := range rows {
		resp = append(resp, mapFilm(row))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleGetFilm godoc
// @Title Get film
// @Resource Films
// @Produce json
// @Param filmID path string true "Film ID"
// @Success 200 {object} FilmResponse
// @Failure 404 {object} APIError
// @Route /v1/films/{filmID} [get]
func (s *Server) handleGetFilm(w http.ResponseWriter, r *http.Request) {
	filmID, err := s.parseIDParam(r, "filmID")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidFilmID, err.Error())
		return
	}

	row, err := s.films.Get(filmID)
	if err != nil {
		s.writeDomainError(w, err, "failed to fetch film")
		return
	}
	s.writeJSON(w, http.StatusOK, mapFilm(row))
}

// handleUpdateFilm godoc
// @Title Update film
// @Description Overwrites the number of tickets sold.
// @Resource Films
// @Accept json
// @Produce json
// @Param filmID path string true "Film ID"
// @Param request body UpdateFilmPayload true "Film payload"
// @Success 200 {object} FilmResponse
// @Failure 400 {object} APIError
// @Failure 404 {object} APIError
// @Route /v1/films/{filmID} [patch]
func (s *Server) handleUpdateFilm(w http.ResponseWriter, r *http.Request) {
	filmID, err := s.parseIDParam(r, "filmID")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidFilmID, err.Error())
		return
	}

	var req UpdateFilmPayload
	if err := s.decodeAndValidate(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidPayload, err.Error())
		return
	}

	row, err := s.films.SetTicketsSold(filmID, *req.TicketsSold)
	if err != nil {
		s.writeDomainError(w, err, "failed to update film")
		return
	}
	s.writeJSON(w, http.StatusOK, mapFilm(row))
}

// handleBuyTicket godoc
// @Title Buy ticket
// @Description Sells one ticket for a showing; sold-out showings are rejected with 409.
// @Resource Films
// @Produce json
// @Param filmID path string true "Film ID"
// @Success 201 {object} TicketResponse
// @Failure 404 {object} APIError
// @Failure 409 {object} APIError
// @Route /v1/films/{filmID}/tickets [post]
func (s *Server) handleBuyTicket(w http.ResponseWriter, r *http.Request) {
	filmID, err := s.parseIDParam(r, "filmID")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidFilmID, err.Error())
		return
	}

	film, ticket, err := s.films.Buy(filmID, s.now())
	if err != nil {
		s.writeDomainError(w, err, "failed to buy ticket")
		return
	}
	if film.SoldOut() {
		s.log.Info().Str("film_id", film.ID).Str("title", film.Title).Msg("showing sold out")
	}

	resp := mapTicket(ticket)
	f := mapFilm(film)
	resp.Film = &f
	s.writeJSON(w, http.StatusCreated, resp)
}

// handleListTickets godoc
// @Title List tickets
// @Description Returns every ticket sold for a showing, oldest first.
// @Resource Films
// @Produce json
// @Param filmID path string true "Film ID"
// @Success 200 {array} TicketResponse
// @Failure 404 {object} APIError
// @Route /v1/films/{filmID}/tickets [get]
func (s *Server) handleListTickets(w http.ResponseWriter, r *http.Request) {
	filmID, err := s.parseIDParam(r, "filmID")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidFilmID, err.Error())
		return
	}

	rows, err := s.films.Tickets(filmID)
	if err != nil {
		s.writeDomainError(w, err, "failed to list tickets")
		return
	}
	resp := make([]TicketResponse, 0, len(rows))
	for _, row := range rows {
		resp = append(resp, mapTicket(row))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleDeleteFilm godoc
// @Title Delete film
// @Resource Films
// @Param filmID path string true "Film ID"
// @Success 204 {string} string "No Content"
// @Failure 404 {object} APIError
// @Route /v1/films/{filmID} [delete]
func (s *Server) handleDeleteFilm(w http.ResponseWriter, r *http.Request) {
	filmID, err := s.parseIDParam(r, "filmID")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidFilmID, err.Error())
		return
	}

	if err := s.films.Delete(filmID); err != nil {
		s.writeDomainError(w, err, "failed to delete film")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
