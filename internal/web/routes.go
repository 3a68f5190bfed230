package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/blackshadow-software/face-auth/internal/web/handlers"
)

// setupRoutes registers all API routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/verify", s.service.Verify)
		r.Post("/similar", s.service.Similar)

		r.Route("/identities", func(r chi.Router) {
			r.Get("/", s.service.ListIdentities)
			r.Post("/import", s.service.ImportIdentity)

			r.Route("/{userID}", func(r chi.Router) {
				r.Get("/", s.service.GetIdentity)
				r.Delete("/", s.service.DeleteIdentity)
				r.Get("/export", s.service.ExportIdentity)
				r.Post("/enroll", s.service.Enroll)
				r.Post("/samples", s.service.AppendSamples)
			})
		})
	})
}
