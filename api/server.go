/*
server.go - HTTP router and middleware configuration

ROUTER: chi
  Lightweight, context-based, RESTful route patterns.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the admin frontend

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/calendar", func(r chi.Router) {
			r.Get("/day/{date}", h.GetDayInfo)
			r.Get("/range", h.GetRangeInfo)
		})

		r.Get("/statistics/groups", h.GetGroupStatistics)
		r.Get("/statistics/cohort", h.GetCohortHistory)
		r.Get("/students/{id}/history", h.GetStudentHistory)

		r.Post("/dayend/run", h.RunDayEnd)
	})

	return r
}
