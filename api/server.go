/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     One logrus line per request (method, path, status, latency, id)
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for dashboards

ROUTE GROUPS:
  /api/profiles/*       Weight profiles
  /api/targets/*        Monthly targets and daily allocations
  /api/allocations/*    Allocation overrides
  /api/branches/*       Directory, performance, snapshots, cashier ranking
  /api/cashiers/*       Cashier directory
  /api/sales            Sales fact intake
  /api/leaderboard/*    Branch rankings
  /api/alerts           Branch alert levels
  /api/tiers/*          Incentive tiers
  /api/awards/*         Incentive awards
  /api/rates/*          Commission rates
  /api/commissions/*    Commission calculations
  /api/reference        Reference-data import
  /api/reset            Database reset (dev only)

SECURITY NOTE:
  No authentication middleware. Run behind a gateway that authenticates
  planners and approvers.

SEE ALSO:
  - handlers.go, payouts.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.Log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		AllowCredentials: !wildcard(allowedOrigins),
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/profiles", func(r chi.Router) {
			r.Get("/", h.ListProfiles)
			r.Post("/", h.CreateProfile)
			r.Get("/{id}", h.GetProfile)
			r.Put("/{id}/default", h.SetDefaultProfile)
		})

		r.Route("/targets", func(r chi.Router) {
			r.Get("/", h.ListTargets)
			r.Post("/", h.CreateTarget)
			r.Get("/{id}", h.GetTarget)
			r.Put("/{id}", h.UpdateTarget)
			r.Delete("/{id}", h.DeleteTarget)
			r.Post("/{id}/generate", h.GenerateAllocations)
			r.Get("/{id}/allocations", h.ListAllocations)
		})
		r.Put("/allocations/{id}", h.OverrideAllocation)

		r.Route("/branches", func(r chi.Router) {
			r.Get("/", h.ListBranches)
			r.Post("/", h.SaveBranch)
			r.Get("/{id}/performance", h.GetPerformance)
			r.Get("/{id}/cashiers/leaderboard", h.GetCashierLeaderboard)
			r.Get("/{id}/snapshots", h.ListSnapshots)
			r.Post("/{id}/snapshots/refresh", h.RefreshSnapshots)
			r.Get("/{id}/snapshots/{date}", h.GetSnapshot)
			r.Post("/{id}/snapshots/{date}/refresh", h.RefreshSnapshot)
		})

		r.Get("/cashiers", h.ListCashiers)
		r.Post("/cashiers", h.SaveCashier)
		r.Post("/sales", h.RecordSale)

		r.Get("/leaderboard", h.GetLeaderboard)
		r.Get("/leaderboard/competition", h.GetCompetition)
		r.Get("/alerts", h.GetAlerts)

		r.Route("/tiers", func(r chi.Router) {
			r.Get("/", h.ListTiers)
			r.Post("/", h.CreateTier)
			r.Put("/{id}", h.UpdateTier)
			r.Delete("/{id}", h.DeleteTier)
		})

		r.Route("/awards", func(r chi.Router) {
			r.Get("/", h.ListAwards)
			r.Post("/branch", h.EvaluateBranch)
			r.Post("/cashier", h.EvaluateCashier)
			r.Get("/{id}", h.GetAward)
			r.Put("/{id}/adjust", h.AdjustAward)
			r.Post("/{id}/approve", h.ApproveAward)
			r.Post("/{id}/pay", h.PayAward)
		})

		r.Route("/rates", func(r chi.Router) {
			r.Get("/", h.ListRates)
			r.Post("/", h.CreateRate)
			r.Put("/{id}", h.UpdateRate)
			r.Delete("/{id}", h.DeleteRate)
		})

		r.Route("/commissions", func(r chi.Router) {
			r.Get("/", h.ListCalculations)
			r.Post("/", h.CalculateCommission)
			r.Get("/{id}", h.GetCalculation)
			r.Put("/{id}/adjust", h.AdjustCalculation)
			r.Post("/{id}/approve", h.ApproveCalculation)
			r.Post("/{id}/pay", h.PayCalculation)
		})

		r.Post("/reference", h.ImportReference)
		r.Post("/reset", h.ResetDatabase)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}

// requestLogger logs one line per request after it completes.
func requestLogger(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.WithFields(logrus.Fields{
					"method":     r.Method,
					"path":       r.URL.Path,
					"status":     ww.Status(),
					"latency":    time.Since(start).String(),
					"request_id": middleware.GetReqID(r.Context()),
				}).Info("request handled")
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

func wildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
