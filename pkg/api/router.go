package api

import (
	"net/http"

	"casenotes/pkg/session"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// GetRouter initialises a new http router and applies all routes
func (s *Server) GetRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	return s.applyRoutes(r)
}

func (s *Server) applyRoutes(r chi.Router) chi.Router {
	r.Get("/healthz", getHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/{program}", func(r chi.Router) {
		r.Use(s.requireRole)

		r.Post("/refresh", s.postRefresh)
		r.Get("/summary", s.getSummary)
		r.Get("/clients", s.getClients)
		r.Get("/clients/{name}", s.getClient)
		r.Post("/clients/{name}/notes", s.postNote)
		r.Post("/referrals", s.postReferral)
		r.Post("/notes/{row}/edit", s.beginInteraction(session.Edit))
		r.Post("/notes/{row}/delete", s.beginInteraction(session.Delete))
		r.Get("/interactions/{id}", s.getInteraction)
		r.Post("/interactions/{id}/commit", s.commitInteraction)
		r.Delete("/interactions/{id}", s.cancelInteraction)
	})

	return r
}
