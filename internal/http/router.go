package router

import (
	"net/http"
	"time"

	"github.com/Renal37/wa-orderbot/internal/logger"
	"github.com/Renal37/wa-orderbot/internal/metrics"
	"github.com/Renal37/wa-orderbot/internal/middlewares"
	"github.com/Renal37/wa-orderbot/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config - настройки HTTP-сервера
type Config struct {
	Endpoint string
}

type Router struct {
	config   Config
	services middlewares.Services
}

// New создаёт роутер с внедрёнными сервисами
func New(config Config, services middlewares.Services) *Router {
	return &Router{config, services}
}

func (router *Router) get() chi.Router {
	r := chi.NewRouter()

	r.Use(
		middlewares.ServiceInjectorMiddleware(router.services),
		logger.RequestLogger,
		metrics.Middleware,
	)

	r.Get("/health", Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/menu", GetMenu)
		r.With(middlewares.JSONMiddleware[models.InboundEvent]).Post("/webhook/events", HandleEvent)

		r.Route("/admin", func(r chi.Router) {
			r.Use(middlewares.AuthMiddleware)

			r.Get("/orders", ListOrders)
			r.Get("/orders/{id}", GetOrder)
			r.With(middlewares.JSONMiddleware[models.OrderStatusUpdate]).Post("/orders/{id}/status", UpdateOrderStatus)
			r.With(middlewares.JSONMiddleware[models.BillingRequest]).Post("/orders/{id}/billing", ApplyBilling)
			r.Post("/orders/{id}/payment/{action}", UpdatePayment)

			r.Get("/payments/summary", GetPaymentSummary)
			r.Get("/stats", GetStats)

			r.Get("/customers/{waID}/orders", GetCustomerOrders)
			r.With(middlewares.JSONMiddleware[models.CustomerBlockUpdate]).Post("/customers/{waID}/block", BlockCustomer)

			r.Post("/cache/clear", ClearCache)
		})
	})

	return r
}

// Server возвращает HTTP-сервер; запуск и остановка остаются за вызывающим
func (router *Router) Server() *http.Server {
	return &http.Server{
		Addr:              router.config.Endpoint,
		Handler:           router.get(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       time.Minute,
	}
}
