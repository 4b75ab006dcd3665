package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"

	"github.com/hoanglv/swapstation-management/internal/payment"
	"github.com/hoanglv/swapstation-management/internal/transport/middleware"
	"github.com/hoanglv/swapstation-management/internal/transport/swagger"
)

// RegisterAllRoutes wires the payment endpoints. The /vnpay paths sit at the
// root because the gateway calls the configured return and IPN URLs
// verbatim.
func RegisterAllRoutes(router *chi.Mux, db *sql.DB, allowedOrigins string, paymentHandler *payment.Handler, returnHandler *payment.ReturnHandler, ipnHandler *payment.IPNHandler, logger *slog.Logger) {
	healthHandler := NewHealthHandler(db)

	router.Use(middleware.CORS(allowedOrigins))
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.RecoveryMiddleware(logger))

	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./api/openapi.yml")
	})
	router.Handle("/swagger/*", swagger.Handler())

	router.Route("/vnpay", func(r chi.Router) {
		r.Post("/create-url", paymentHandler.CreateURL)
		r.Get("/create-qr", paymentHandler.CreateQR)
		r.Get("/status/{txnRef}", paymentHandler.Status)
		r.Get("/return", returnHandler.Handle)
		r.Get("/ipn", ipnHandler.Handle)
	})

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)
	})
}
