package rest

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"

	"github.com/frahmantamala/fleet-ledger/internal/audit"
	"github.com/frahmantamala/fleet-ledger/internal/auth"
	"github.com/frahmantamala/fleet-ledger/internal/driver"
	"github.com/frahmantamala/fleet-ledger/internal/obligation"
	"github.com/frahmantamala/fleet-ledger/internal/payment"
	"github.com/frahmantamala/fleet-ledger/internal/summary"
	"github.com/frahmantamala/fleet-ledger/internal/transport/middleware"
	"github.com/frahmantamala/fleet-ledger/internal/transport/swagger"
)

// Handlers groups everything the router mounts. A nil handler leaves its
// routes out.
type Handlers struct {
	Health     *HealthHandler
	Actor      *auth.Middleware
	Driver     *driver.Handler
	Obligation *obligation.Handler
	Payment    *payment.Handler
	Summary    *summary.Handler
	Audit      *audit.Handler
}

func corsHandler(origins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", auth.DefaultActorHeader, middleware.TraceHeader},
		ExposedHeaders:   []string{middleware.TraceHeader},
		AllowCredentials: false,
		MaxAge:           300,
	})
}

func RegisterAllRoutes(router *chi.Mux, h Handlers, allowedOrigins []string, logger *slog.Logger) {
	router.Use(corsHandler(allowedOrigins))
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.TraceID)
	router.Use(middleware.Recoverer(logger))
	router.Use(middleware.RequestLogger(logger))

	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./api/openapi.yml")
	})
	router.Handle("/swagger/*", swagger.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		if h.Health != nil {
			r.Get("/health", h.Health.healthCheckHandler)
			r.Get("/ping", h.Health.pingHandler)
		}

		r.Group(func(pr chi.Router) {
			if h.Actor != nil {
				pr.Use(h.Actor.RequireActor)
			}

			pr.Route("/drivers", func(dr chi.Router) {
				if h.Summary != nil {
					dr.Get("/", h.Summary.ListDrivers)
					dr.Get("/{driverID}/summary", h.Summary.GetDriverSummary)
				}
				if h.Driver != nil {
					dr.Post("/", h.Driver.CreateDriver)
					dr.Get("/search", h.Driver.SearchDrivers)
					dr.Get("/{driverID}", h.Driver.GetDriver)
				}
				if h.Obligation != nil {
					dr.Get("/{driverID}/obligations", h.Obligation.ListObligations)
					dr.Post("/{driverID}/obligations", h.Obligation.CreateObligations)
				}
				if h.Payment != nil {
					dr.Post("/{driverID}/payments", h.Payment.RecordPayment)
					dr.Post("/{driverID}/payments/standalone", h.Payment.RecordStandalonePayment)
				}
			})

			if h.Obligation != nil {
				pr.Route("/obligations", func(or chi.Router) {
					or.Get("/{id}", h.Obligation.GetObligation)
					or.Patch("/{id}", h.Obligation.UpdateObligation)
					or.Delete("/{id}", h.Obligation.DeleteObligation)
					or.Post("/{id}/mark-paid", h.Obligation.MarkPaid)
				})
			}

			if h.Payment != nil {
				pr.Route("/payments", func(pmr chi.Router) {
					pmr.Get("/", h.Payment.ListPayments)
					pmr.Get("/{id}", h.Payment.GetPayment)
					pmr.Patch("/{id}", h.Payment.UpdatePayment)
					pmr.Delete("/{id}", h.Payment.DeletePayment)
					pmr.Post("/{id}/reallocate", h.Payment.ReallocatePayment)
					pmr.Patch("/{id}/receipt-status", h.Payment.UpdateReceiptStatus)
				})
			}

			if h.Summary != nil {
				pr.Get("/reports/payments", h.Summary.PaymentReport)
				pr.Get("/reports/top-payers", h.Summary.TopPayers)
			}

			if h.Audit != nil {
				pr.Get("/audit", h.Audit.ListEntries)
			}
		})
	})
}
