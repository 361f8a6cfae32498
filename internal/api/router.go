package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
//
// Authentication and authorization run as global middleware so that every
// path, including unknown ones, is evaluated against the access policy
// before routing.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)
	r.Use(s.authenticateMiddleware)
	r.Use(s.authorizeMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "resource not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllow, "method not allowed")
	})

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)
	})

	r.Get("/health", s.handleHealth)
	r.Get("/me", s.handleMe)

	r.Route("/product", func(r chi.Router) {
		r.Get("/", s.handleListProducts)
		r.Post("/", s.handleCreateProduct)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetProduct)
			r.Put("/", s.handleUpdateProduct)
			r.Patch("/", s.handlePatchProduct)
			r.Delete("/", s.handleDeleteProduct)
		})
	})

	r.Route("/orders", func(r chi.Router) {
		r.Get("/", s.handleListOrders)
		r.Post("/", s.handlePlaceOrder)
	})

	// Admin event feed (role checked in handler)
	r.Get("/events/ws", s.handleWebSocket)

	if s.consoleCfg.Enabled {
		r.Route("/console", func(r chi.Router) {
			r.Get("/health", s.handleConsoleHealth)
			r.Get("/migrations", s.handleConsoleMigrations)
			r.Get("/audit", s.handleConsoleAudit)
			r.Get("/policy", s.handleConsolePolicy)
		})
	}

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
