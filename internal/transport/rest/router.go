package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"

	"github.com/jaaptech/nepalipay/internal/payment"
	"github.com/jaaptech/nepalipay/internal/transport/middleware"
	"github.com/jaaptech/nepalipay/internal/transport/swagger"
)

func RegisterAllRoutes(router *chi.Mux, db *sql.DB, paymentHandler *payment.Handler, logger *slog.Logger) {
	healthHandler := NewHealthHandler(db)

	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))

	// Serve OpenAPI spec at root (outside API prefix)
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./api/openapi.yml")
	})
	router.Handle("/swagger/*", swagger.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		if paymentHandler != nil {
			r.Route("/payments", func(pr chi.Router) {
				pr.Get("/", paymentHandler.ListPayments)
				pr.Post("/{gateway}/initiate", paymentHandler.Initiate)
				pr.Post("/{gateway}/verify", paymentHandler.Verify)
				pr.Get("/reference/{referenceID}", paymentHandler.GetPaymentByReference)
				pr.Get("/{id}", paymentHandler.GetPayment)
				pr.Post("/{id}/complete", paymentHandler.CompletePayment)
				pr.Post("/{id}/cancel", paymentHandler.CancelPayment)
				pr.Post("/{id}/fail", paymentHandler.FailPayment)
				pr.Post("/{id}/refunds", paymentHandler.CreateRefund)
				pr.Get("/{id}/refunds", paymentHandler.ListRefunds)
			})

			r.Route("/refunds", func(rr chi.Router) {
				rr.Get("/{id}", paymentHandler.GetRefund)
				rr.Post("/{id}/process", paymentHandler.ProcessRefund)
			})
		}
	})
}
