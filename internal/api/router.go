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
		r.Get("/health", s.handleHealth)

		// Reader endpoints
		r.Route("/readers", func(r chi.Router) {
			r.Get("/", s.handleListReaders)
			r.Post("/", s.handleCreateReader)
			r.Get("/{id}", s.handleGetReader)
		})

		// Card endpoints
		r.Route("/cards", func(r chi.Router) {
			r.Get("/", s.handleListCards)
			r.Post("/", s.handleCreateCard)
			r.Get("/{id}", s.handleGetCard)
		})

		// Punch event log (read-only)
		r.Get("/events", s.handleListEvents)

		// Reader WebSocket (auth via query parameter, validated in handler)
		r.Get("/ws", s.handleReaderSocket)
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"version":     s.version,
		"connections": s.sessions.Count(),
	})
}
