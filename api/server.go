/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the frontend

SECURITY NOTE:
  No authentication middleware. The engine is a single-operator desktop
  companion; every endpoint is public on the bound interface.

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

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/sources", func(r chi.Router) {
			r.Get("/", h.ListSources)
			r.Post("/", h.CreateSource)
			r.Put("/{id}", h.UpdateSource)
		})

		r.Route("/drugs", func(r chi.Router) {
			r.Get("/", h.ListDrugs)
			r.Post("/", h.CreateDrug)
			r.Get("/warnings", h.ListWarnings)
			r.Get("/ranked", h.RankDrugs)
			r.Get("/{name}/stock", h.GetStock)
		})

		r.Route("/stock-ins", func(r chi.Router) {
			r.Get("/", h.ListStockIns)
			r.Post("/", h.CreateStockIn)
		})

		r.Route("/stock-outs", func(r chi.Router) {
			r.Get("/", h.ListStockOuts)
			r.Post("/", h.CreateStockOut)
			r.Post("/estimate", h.EstimateCost)
		})

		r.Route("/prescriptions", func(r chi.Router) {
			r.Get("/", h.ListPrescriptions)
			r.Post("/", h.SubmitPrescription)
			r.Get("/last", h.LastPrescription)
			r.Get("/{id}/diagnosis-log", h.GetPrescriptionDiagnosisLog)
		})

		r.Route("/diagnosis-logs", func(r chi.Router) {
			r.Get("/last", h.LastDiagnosisLog)
		})

		r.Route("/stats", func(r chi.Router) {
			r.Get("/daily", h.DailyStats)
			r.Get("/warnings", h.WarningStats)
		})

		// Admin operations
		r.Get("/backup", h.ExportBackup)
		r.Post("/restore", h.ImportBackup)
		r.Post("/reset", h.ResetDatabase)
		r.Post("/seed", h.SeedDemo)
	})

	return r
}
