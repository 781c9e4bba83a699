package middlewares

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Renal37/wa-orderbot/internal/models"
)

type key int

const (
	JwtServiceKey key = iota
	IngestServiceKey
	OrderServiceKey
	BillingServiceKey
	CustomerServiceKey
	MenuServiceKey
	HealthCheckerKey
)

// Services - зависимости обработчиков, которые кладутся в контекст запроса
type Services struct {
	JWT      models.JWTService
	Ingest   models.IngestService
	Orders   models.OrderService
	Billing  models.BillingService
	Customer models.CustomerService
	Menu     models.MenuService
	Health   models.HealthChecker
}

// ServiceInjectorMiddleware кладёт сервисы в контекст запроса, обработчики достают их через GetServiceFromContext
func ServiceInjectorMiddleware(services Services) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), JwtServiceKey, services.JWT)
			ctx = context.WithValue(ctx, IngestServiceKey, services.Ingest)
			ctx = context.WithValue(ctx, OrderServiceKey, services.Orders)
			ctx = context.WithValue(ctx, BillingServiceKey, services.Billing)
			ctx = context.WithValue(ctx, CustomerServiceKey, services.Customer)
			ctx = context.WithValue(ctx, MenuServiceKey, services.Menu)
			ctx = context.WithValue(ctx, HealthCheckerKey, services.Health)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetServiceFromContext отвечает 500 и возвращает nil, если сервис не передан
func GetServiceFromContext[Service interface{}](w http.ResponseWriter, r *http.Request, serviceKey key) *Service {
	foundService, ok := r.Context().Value(serviceKey).(Service)

	if !ok {
		http.Error(w, fmt.Sprintf("Service wasn't found in context by key %v", serviceKey), http.StatusInternalServerError)
		return nil
	}

	return &foundService
}
