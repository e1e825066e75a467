/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for a frontend

ROUTE GROUPS:
  /api/attendance       Self-service marking and queries
  /api/leaves           Leave submission, queries, amendment
  /api/grade            Recompute-on-read grade for the caller
  /api/admin/*          Review, reports, roster, manual job triggers

SEE ALSO:
  - handlers.go: handler implementations
  - cmd/server/main.go: server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/warp/attendance-engine/engine"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Person-ID", "X-Role"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/attendance", func(r chi.Router) {
			r.Post("/", h.MarkAttendance)
			r.Get("/", h.QueryAttendance)
		})

		r.Route("/leaves", func(r chi.Router) {
			r.Post("/", h.SubmitLeave)
			r.Get("/", h.QueryLeaves)
			r.Patch("/{id}", h.AmendLeave)
		})

		r.Get("/grade", h.GetGrade)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/leaves/{id}/approve", h.ReviewLeave(engine.DecisionApprove))
			r.Post("/leaves/{id}/reject", h.ReviewLeave(engine.DecisionReject))
			r.Get("/grades", h.GradeReport)
			r.Put("/users", h.SaveUser)
			r.Post("/jobs/{name}", h.TriggerJob)
		})
	})

	return r
}
