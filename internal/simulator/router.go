package simulator

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cisseniang564/ProvTech-sub001/internal/pkg/metrics"
)

// Handler builds the simulator's HTTP surface. Health and metrics stay
// public; the alert API, the push endpoint and the scripting hooks sit
// behind the bearer token when one is configured.
func (s *Simulator) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(requestID())
	r.Use(recovery(s.log))
	r.Use(corsHandler())

	// The push endpoint skips the logging, metrics and rate-limit
	// wrappers: an upgraded connection is not a request/response
	// exchange, and the wrappers hide http.Hijacker from the upgrader.
	r.Group(func(wr chi.Router) {
		if s.cfg.Token != "" {
			wr.Use(tokenAuth(s.cfg.Token))
		}
		wr.Get("/ws", s.hub.Handle)
	})

	r.Group(func(hr chi.Router) {
		hr.Use(requestLogger(s.log))
		hr.Use(metrics.Middleware)
		hr.Use(rateLimit(100, 200))

		hr.Get("/healthz", s.handleHealthz)
		hr.Method(http.MethodGet, "/metrics", metrics.Handler())

		hr.Group(func(pr chi.Router) {
			if s.cfg.Token != "" {
				pr.Use(tokenAuth(s.cfg.Token))
			}

			pr.Route("/alerts", func(ar chi.Router) {
				ar.Get("/active", s.handleListActive)
				ar.Post("/{id}/acknowledge", s.handleAcknowledge)
				ar.Post("/{id}/resolve", s.handleResolve)
			})

			// Scripting hooks for tests and demos, not part of
			// the production contract.
			pr.Route("/sim", func(sr chi.Router) {
				sr.Post("/alerts", s.handleFire)
				sr.Post("/disconnect", s.handleDisconnect)
			})
		})
	})

	return r
}
