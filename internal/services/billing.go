package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/Renal37/wa-orderbot/internal/database"
	"github.com/Renal37/wa-orderbot/internal/logger"
	"github.com/Renal37/wa-orderbot/internal/metrics"
	"github.com/Renal37/wa-orderbot/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultPendingPaymentExpiry - срок, после которого неоплаченный заказ отменяется
const DefaultPendingPaymentExpiry = 24 * time.Hour

// BillingService считает итоги заказа и ведёт статус оплаты
type BillingService struct {
	storage   billingStorage
	publisher orderEventPublisher
	now       func() time.Time
}

type billingStorage interface {
	FindOrder(ctx context.Context, orderID uuid.UUID) (*database.OrderDB, error)

	ApplyBilling(ctx context.Context, orderID uuid.UUID, tax int64, method string, now time.Time) (*database.OrderDB, error)

	UpdatePaymentStatus(ctx context.Context, orderID uuid.UUID, from, to models.PaymentStatus, confirmedAt *time.Time, now time.Time) (*database.OrderDB, error)

	ExpireStalePending(ctx context.Context, cutoff, now time.Time) ([]string, error)

	FindPaymentSummary(ctx context.Context, start, end time.Time) (*database.PaymentSummaryDB, error)
}

// NewBillingService создаёт сервис оплаты. publisher может быть nil.
func NewBillingService(storage billingStorage, publisher orderEventPublisher) *BillingService {
	return &BillingService{storage: storage, publisher: publisher, now: time.Now}
}

// ApplyBilling задаёт налог и способ оплаты, итог пересчитывается как subtotal + tax.
// Оплата переходит в pending, если ещё не была задана. Отменённый или доставленный
// заказ не пересчитывается.
func (b *BillingService) ApplyBilling(ctx context.Context, orderID uuid.UUID, tax int64, method string) (*models.Order, error) {
	if tax < 0 {
		return nil, fmt.Errorf("%w: отрицательный налог", ErrInvalidOrder)
	}
	if method == "" {
		return nil, fmt.Errorf("%w: не указан способ оплаты", ErrInvalidOrder)
	}

	current, err := b.storage.FindOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrOrderNotFound
	}
	if tax > math.MaxInt64-current.Subtotal {
		return nil, fmt.Errorf("%w: итог заказа слишком велик", ErrInvalidOrder)
	}
	if closed := current.Status.OrderStatus; closed == models.StatusCancelled || closed == models.StatusDelivered {
		return nil, fmt.Errorf("%w: заказ %s", ErrPaymentAlreadyTerminal, closed)
	}

	updated, err := b.storage.ApplyBilling(ctx, orderID, tax, method, b.now().UTC())
	if err != nil {
		return nil, err
	}

	// оплата уже закрыта или заказ закрылся после чтения
	if updated == nil {
		return nil, ErrPaymentAlreadyTerminal
	}

	order := orderFromDB(updated)
	logger.Log.Info("billing applied",
		zap.String("orderNumber", order.OrderNumber),
		zap.Int64("tax", order.Tax),
		zap.Int64("total", order.TotalAmount),
		zap.String("method", method),
	)
	return order, nil
}

// ConfirmPayment переводит оплату pending -> confirmed. Заказ из каталога
// в статусе pending_payment переходит в placed тем же изменением.
func (b *BillingService) ConfirmPayment(ctx context.Context, orderID uuid.UUID, at time.Time) (*models.Order, error) {
	at = at.UTC()
	return b.transition(ctx, orderID, models.PaymentPending, models.PaymentConfirmed, &at)
}

// FailPayment переводит оплату pending -> failed
func (b *BillingService) FailPayment(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return b.transition(ctx, orderID, models.PaymentPending, models.PaymentFailed, nil)
}

// RefundPayment переводит оплату confirmed -> refunded. Возврат разрешён и у отменённого заказа.
func (b *BillingService) RefundPayment(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return b.transition(ctx, orderID, models.PaymentConfirmed, models.PaymentRefunded, nil)
}

func (b *BillingService) transition(ctx context.Context, orderID uuid.UUID, from, to models.PaymentStatus, confirmedAt *time.Time) (*models.Order, error) {
	updated, err := b.storage.UpdatePaymentStatus(ctx, orderID, from, to, confirmedAt, b.now().UTC())
	if err != nil {
		return nil, err
	}

	if updated == nil {
		return nil, b.rejection(ctx, orderID, from, to)
	}

	order := orderFromDB(updated)
	metrics.PaymentTransitionsTotal.WithLabelValues(string(to)).Inc()
	logger.Log.Info("payment status updated",
		zap.String("orderNumber", order.OrderNumber),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("status", string(order.Status)),
	)

	if b.publisher != nil {
		if err := b.publisher.PublishOrderEvent(ctx, models.NewOrderEvent(models.OrderPaymentChange, *order, b.now())); err != nil {
			logger.Log.Error("failed to publish payment event", zap.String("orderNumber", order.OrderNumber), zap.Error(err))
		}
	}

	return order, nil
}

// rejection объясняет, почему условное обновление оплаты не затронуло строк
func (b *BillingService) rejection(ctx context.Context, orderID uuid.UUID, from, to models.PaymentStatus) error {
	current, err := b.storage.FindOrder(ctx, orderID)
	if err != nil {
		return err
	}

	if current == nil {
		return ErrOrderNotFound
	}

	if to != models.PaymentRefunded && current.Status.OrderStatus == models.StatusCancelled {
		return fmt.Errorf("%w: заказ отменён", ErrPaymentAlreadyTerminal)
	}

	if current.PaymentStatus == nil {
		return ErrBillingNotApplied
	}

	status := models.PaymentStatus(*current.PaymentStatus)
	if from == models.PaymentPending && status.IsTerminal() {
		return fmt.Errorf("%w: %s", ErrPaymentAlreadyTerminal, status)
	}

	return fmt.Errorf("%w: %s -> %s", ErrInvalidPaymentTransition, status, to)
}

// ExpireStalePending отменяет неоплаченные заказы, созданные раньше now - olderThan.
// Повторный запуск с той же границей ничего не меняет.
func (b *BillingService) ExpireStalePending(ctx context.Context, olderThan time.Duration) (int, error) {
	if olderThan <= 0 {
		olderThan = DefaultPendingPaymentExpiry
	}

	now := b.now().UTC()
	expired, err := b.storage.ExpireStalePending(ctx, now.Add(-olderThan), now)
	if err != nil {
		return 0, err
	}

	if len(expired) > 0 {
		metrics.SweptRowsTotal.WithLabelValues("pending_orders").Add(float64(len(expired)))
		logger.Log.Info("expired stale pending orders",
			zap.Int("count", len(expired)),
			zap.Strings("orderNumbers", expired),
		)
	}

	return len(expired), nil
}

// PaymentSummary считает агрегаты по заказам, созданным в [start, end)
func (b *BillingService) PaymentSummary(ctx context.Context, start, end time.Time) (*models.PaymentSummary, error) {
	if !start.Before(end) {
		return nil, fmt.Errorf("%w: начало периода должно быть раньше конца", ErrInvalidPeriod)
	}

	summary, err := b.storage.FindPaymentSummary(ctx, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}

	return &models.PaymentSummary{
		TotalOrders:       summary.TotalOrders,
		ConfirmedPayments: summary.ConfirmedPayments,
		PendingPayments:   summary.PendingPayments,
		FailedPayments:    summary.FailedPayments,
		TotalRevenue:      summary.TotalRevenue,
		PendingRevenue:    summary.PendingRevenue,
		PerMethodCounts:   summary.PerMethodCounts,
	}, nil
}
