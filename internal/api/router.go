package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check
		r.Get("/health", s.handleHealth)

		// Capacity endpoints
		r.Route("/capacity", func(r chi.Router) {
			r.Get("/state", s.handleGetState)
			r.Post("/evaluate", s.handleEvaluate)
			r.Get("/availability", s.handleAvailability)
			r.Get("/evaluations", s.handleListEvaluations)
			r.Get("/analytics", s.handleGetAnalytics)

			// Capacity rule endpoints
			r.Route("/rules", func(r chi.Router) {
				r.Get("/", s.handleListRules)
				r.Post("/", s.handleCreateRule)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetRule)
					r.Patch("/", s.handleUpdateRule)
					r.Delete("/", s.handleDeleteRule)
				})
			})

			// Override endpoints
			r.Route("/overrides", func(r chi.Router) {
				r.Get("/", s.handleListOverrides)
				r.Post("/", s.handleCreateOverride)

				r.Route("/{id}", func(r chi.Router) {
					r.Delete("/", s.handleDeleteOverride)
					r.Post("/approve", s.handleApproveOverride)
				})
			})

			// Special event endpoints
			r.Route("/events", func(r chi.Router) {
				r.Get("/", s.handleListEvents)
				r.Post("/", s.handleCreateEvent)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetEvent)
					r.Patch("/", s.handleUpdateEvent)
				})
			})

			// Priority booking rule endpoints
			r.Route("/priority-rules", func(r chi.Router) {
				r.Get("/", s.handleListPriorityRules)
				r.Post("/", s.handleCreatePriorityRule)
			})

			// Weather capacity rule endpoints
			r.Route("/weather-rules", func(r chi.Router) {
				r.Get("/", s.handleListWeatherRules)
				r.Post("/", s.handleCreateWeatherRule)
			})
		})

		// WebSocket for real-time state broadcasts
		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
