/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests, origins from configuration

ROUTE GROUPS:
  /api/health               Liveness probe
  /api/users/{username}/*   One user's expenses, budgets and reports

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Route("/users/{username}", func(r chi.Router) {
			r.Delete("/", h.DeleteUser)

			r.Route("/expenses", func(r chi.Router) {
				r.Get("/", h.ListExpenses)
				r.Post("/", h.CreateExpense)
				r.Get("/{index}", h.GetExpense)
				r.Put("/{index}", h.UpdateExpense)
				r.Delete("/{index}", h.DeleteExpense)
			})

			r.Get("/budgets", h.GetBudgets)
			r.Put("/budgets", h.SetBudget)
			r.Get("/utilization", h.GetUtilization)
			r.Get("/spending", h.GetSpending)
			r.Get("/report", h.GetReport)
			r.Get("/months", h.ListMonths)

			r.Post("/import", h.ImportTransactions)
			r.Get("/export", h.ExportTransactions)
			r.Post("/backup", h.BackupUser)
		})
	})

	return r
}
