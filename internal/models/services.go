package models

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

//go:generate mockgen -destination=mocks/mock_jwt.go . JWTService
type JWTService interface {
	GenerateJWT(subject string) (string, error)

	ValidateToken(token string) (*jwt.Token, error)
}

//go:generate mockgen -destination=mocks/mock_ingest.go . IngestService
type IngestService interface {
	Handle(ctx context.Context, event InboundEvent) (IngestResult, error)
}

//go:generate mockgen -destination=mocks/mock_order.go . OrderService
type OrderService interface {
	GetOrder(ctx context.Context, orderID uuid.UUID) (*Order, error)

	ListRecentOrders(ctx context.Context, limit int) ([]Order, error)

	OrderHistory(ctx context.Context, sender string, limit int) ([]OrderHistoryItem, error)

	UpdateStatus(ctx context.Context, orderID uuid.UUID, status OrderStatus) (*Order, error)
}

//go:generate mockgen -destination=mocks/mock_billing.go . BillingService
type BillingService interface {
	ApplyBilling(ctx context.Context, orderID uuid.UUID, tax int64, method string) (*Order, error)

	ConfirmPayment(ctx context.Context, orderID uuid.UUID, at time.Time) (*Order, error)

	FailPayment(ctx context.Context, orderID uuid.UUID) (*Order, error)

	RefundPayment(ctx context.Context, orderID uuid.UUID) (*Order, error)

	PaymentSummary(ctx context.Context, start, end time.Time) (*PaymentSummary, error)
}

//go:generate mockgen -destination=mocks/mock_customer.go . CustomerService
type CustomerService interface {
	SetBlocked(ctx context.Context, sender string, blocked bool) error

	Stats(ctx context.Context) (Stats, error)
}

//go:generate mockgen -destination=mocks/mock_menu.go . MenuService
type MenuService interface {
	ListMenu(ctx context.Context) ([]MenuItem, error)

	InvalidateMenu()
}

//go:generate mockgen -destination=mocks/mock_health.go . HealthChecker
type HealthChecker interface {
	Ping(ctx context.Context) error
}
