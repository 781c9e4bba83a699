package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Renal37/wa-orderbot/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	// ApplyBillingQuery пересчитывает итог из subtotal и налога.
	// Закрытая оплата, а также отменённый или доставленный заказ не пересчитываются.
	ApplyBillingQuery = `
		UPDATE
			orders
		SET
			tax = $2,
			total_amount = subtotal + $2,
			payment_method = $3,
			payment_status = COALESCE(payment_status, 'pending'),
			updated_at = $4
		WHERE
			id = $1
			AND (payment_status IS NULL OR payment_status = 'pending')
			AND status NOT IN ('cancelled', 'delivered')
		RETURNING ` + orderColumns

	// UpdatePaymentStatusQuery переводит оплату from -> to. Подтверждённая оплата
	// переводит заказ из pending_payment в placed тем же запросом.
	// У отменённого заказа допускается только возврат.
	UpdatePaymentStatusQuery = `
		UPDATE
			orders
		SET
			payment_status = $3,
			payment_confirmed_at = COALESCE($4, payment_confirmed_at),
			status = CASE
				WHEN $3 = 'confirmed' AND status = 'pending_payment' THEN 'placed'
				ELSE status
			END,
			updated_at = $5
		WHERE
			id = $1
			AND payment_status = $2
			AND ($3 = 'refunded' OR status <> 'cancelled')
		RETURNING ` + orderColumns

	// ExpireStalePendingQuery отменяет неоплаченные заказы старше $1.
	// Отменённые и доставленные заказы не трогает, поэтому повторный запуск ничего не меняет.
	ExpireStalePendingQuery = `
		UPDATE
			orders
		SET
			status = 'cancelled',
			payment_status = 'failed',
			updated_at = $2
		WHERE
			created_at < $1
			AND status NOT IN ('cancelled', 'delivered')
			AND (payment_status = 'pending' OR status = 'pending_payment')
		RETURNING
			order_number
	`

	SelectPaymentSummaryQuery = `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE payment_status = 'confirmed'),
			COUNT(*) FILTER (WHERE payment_status = 'pending'),
			COUNT(*) FILTER (WHERE payment_status = 'failed'),
			COALESCE(SUM(total_amount) FILTER (WHERE payment_status = 'confirmed'), 0)::BIGINT,
			COALESCE(SUM(total_amount) FILTER (WHERE payment_status = 'pending'), 0)::BIGINT
		FROM
			orders
		WHERE
			created_at >= $1
			AND created_at < $2
	`
	SelectPaymentMethodCountsQuery = `
		SELECT
			payment_method,
			COUNT(*)
		FROM
			orders
		WHERE
			created_at >= $1
			AND created_at < $2
			AND payment_method IS NOT NULL
		GROUP BY
			payment_method
	`
)

// PaymentSummaryDB - агрегаты по оплатам за период
type PaymentSummaryDB struct {
	TotalOrders       int64
	ConfirmedPayments int64
	PendingPayments   int64
	FailedPayments    int64
	TotalRevenue      int64
	PendingRevenue    int64
	PerMethodCounts   map[string]int64
}

// ApplyBilling возвращает nil без ошибки, если заказ не найден, оплата уже закрыта
// или заказ отменён либо доставлен
func (d *Database) ApplyBilling(ctx context.Context, orderID uuid.UUID, tax int64, method string, now time.Time) (*OrderDB, error) {
	order, err := scanOrder(d.db.QueryRow(ctx, ApplyBillingQuery, orderID, tax, method, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка применения расчёта: %w", err)
	}
	return order, nil
}

// UpdatePaymentStatus возвращает nil без ошибки, если текущий статус оплаты не равен from
func (d *Database) UpdatePaymentStatus(ctx context.Context, orderID uuid.UUID, from, to models.PaymentStatus, confirmedAt *time.Time, now time.Time) (*OrderDB, error) {
	order, err := scanOrder(d.db.QueryRow(ctx, UpdatePaymentStatusQuery, orderID, string(from), string(to), confirmedAt, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка обновления статуса оплаты: %w", err)
	}
	return order, nil
}

// ExpireStalePending возвращает номера отменённых заказов
func (d *Database) ExpireStalePending(ctx context.Context, cutoff, now time.Time) ([]string, error) {
	rows, err := d.db.Query(ctx, ExpireStalePendingQuery, cutoff, now)
	if err != nil {
		return nil, fmt.Errorf("ошибка отмены неоплаченных заказов: %w", err)
	}

	numbers, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения отменённых заказов: %w", err)
	}
	return numbers, nil
}

// FindPaymentSummary считает агрегаты по заказам, созданным в [start, end)
func (d *Database) FindPaymentSummary(ctx context.Context, start, end time.Time) (*PaymentSummaryDB, error) {
	summary := &PaymentSummaryDB{PerMethodCounts: map[string]int64{}}

	err := d.db.QueryRow(ctx, SelectPaymentSummaryQuery, start, end).Scan(
		&summary.TotalOrders,
		&summary.ConfirmedPayments,
		&summary.PendingPayments,
		&summary.FailedPayments,
		&summary.TotalRevenue,
		&summary.PendingRevenue,
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка расчёта сводки по оплатам: %w", err)
	}

	rows, err := d.db.Query(ctx, SelectPaymentMethodCountsQuery, start, end)
	if err != nil {
		return nil, fmt.Errorf("ошибка расчёта способов оплаты: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			method string
			count  int64
		)
		if err := rows.Scan(&method, &count); err != nil {
			return nil, fmt.Errorf("ошибка при сканировании способа оплаты: %w", err)
		}
		summary.PerMethodCounts[method] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка после чтения способов оплаты: %w", err)
	}

	return summary, nil
}
