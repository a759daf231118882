package server

import (
	"net/http"
	"time"

	"medi/connect/internal/dispatch"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.metricsMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-Actor"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(v1 chi.Router) {
		if s.authMw != nil {
			v1.Use(s.authMw.Middleware)
		}
		v1.Use(s.actorMiddleware)

		v1.Get("/requests", s.handleListRequests)
		v1.Post("/requests", s.handleCreateRequest)
		v1.Get("/requests/{requestID}", s.handleGetRequest)
		v1.Delete("/requests/{requestID}", s.handleRemoveRequest)
		v1.Patch("/requests/{requestID}/status", s.handleUpdateRequestStatus)
		v1.Post("/requests/{requestID}/dispatch", s.handleDispatchRequest)
		v1.Post("/requests/{requestID}/accept", s.handleAcceptRequest)
		v1.Post("/requests/{requestID}/cancel", s.handleCancelRequest)
		v1.Get("/requests/{requestID}/transitions", s.handleListRequestTransitions)

		v1.Get("/resources", s.handleListResources)
		v1.Post("/resources", s.handleCreateResource)
		v1.Patch("/resources/{resourceID}/availability", s.handleUpdateResourceAvailability)

		v1.Get("/activity/recent", s.handleListRecentActivity)

		v1.Get("/films", s.handleListFilms)
		v1.Get("/films/{filmID}", s.handleGetFilm)
		v1.Patch("/films/{filmID}", s.handleUpdateFilm)
		v1.Delete("/films/{filmID}", s.handleDeleteFilm)
		v1.Get("/films/{filmID}/tickets", s.handleListTickets)
		v1.Post("/films/{filmID}/tickets", s.handleBuyTicket)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		duration := time.Since(start)
		s.log.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", duration).
			Msg("http request")
	})
}

// actorMiddleware names the caller in journal entries. With auth on only the
// verified token counts; X-Actor is honoured only when auth is off.
func (s *Server) actorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var actor string
		if s.authMw != nil {
			if claims, ok := GetUserFromContext(r.Context()); ok {
				actor = claims.PreferredUsername
				if actor == "" {
					actor = claims.Subject
				}
			}
		} else {
			actor = r.Header.Get("X-Actor")
		}
		if actor == "" {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(dispatch.WithActor(r.Context(), actor)))
	})
}
