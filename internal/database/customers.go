package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

const (
	customerColumns = `id, wa_id, phone, name, first_seen_at, last_active_at, total_orders, is_blocked, metadata`

	// UpsertCustomerQuery создаёт профиль или обновляет last_active_at.
	// Пустое имя не затирает сохранённое.
	UpsertCustomerQuery = `
		INSERT INTO
			customers (wa_id, phone, name, first_seen_at, last_active_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (wa_id) DO UPDATE SET
			last_active_at = EXCLUDED.last_active_at,
			name = COALESCE(EXCLUDED.name, customers.name)
		RETURNING ` + customerColumns

	// IncrementCustomerOrdersQuery увеличивает счётчик заказов в транзакции создания заказа.
	IncrementCustomerOrdersQuery = `
		INSERT INTO
			customers (wa_id, phone, first_seen_at, last_active_at, total_orders)
		VALUES ($1, $2, $3, $3, 1)
		ON CONFLICT (wa_id) DO UPDATE SET
			total_orders = customers.total_orders + 1,
			last_active_at = EXCLUDED.last_active_at
		RETURNING id
	`
	SelectCustomerQuery = `
		SELECT ` + customerColumns + `
		FROM
			customers
		WHERE
			wa_id = $1
	`
	SelectCustomerBlockedQuery = `
		SELECT
			is_blocked
		FROM
			customers
		WHERE
			wa_id = $1
	`
	UpdateCustomerBlockedQuery = `
		UPDATE
			customers
		SET
			is_blocked = $2
		WHERE
			wa_id = $1
	`
	CountCustomersQuery = `SELECT COUNT(*) FROM customers`
)

// CustomerDB - строка таблицы customers
type CustomerDB struct {
	ID           int64
	WaID         string
	Phone        string
	Name         *string
	FirstSeenAt  time.Time
	LastActiveAt time.Time
	TotalOrders  int
	IsBlocked    bool
	Metadata     map[string]any
}

func scanCustomer(row pgx.Row) (*CustomerDB, error) {
	var (
		c        CustomerDB
		metadata []byte
	)
	if err := row.Scan(&c.ID, &c.WaID, &c.Phone, &c.Name, &c.FirstSeenAt, &c.LastActiveAt, &c.TotalOrders, &c.IsBlocked, &metadata); err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &c.Metadata); err != nil {
			return nil, fmt.Errorf("некорректные metadata покупателя: %w", err)
		}
	}
	return &c, nil
}

// UpsertCustomer создаёт или обновляет профиль покупателя и возвращает его актуальное состояние
func (d *Database) UpsertCustomer(ctx context.Context, waID, phone string, name *string, now time.Time) (*CustomerDB, error) {
	customer, err := scanCustomer(d.db.QueryRow(ctx, UpsertCustomerQuery, waID, phone, name, now))
	if err != nil {
		return nil, fmt.Errorf("ошибка при сохранении покупателя: %w", err)
	}
	return customer, nil
}

// FindCustomer находит покупателя по wa_id
func (d *Database) FindCustomer(ctx context.Context, waID string) (*CustomerDB, error) {
	customer, err := scanCustomer(d.db.QueryRow(ctx, SelectCustomerQuery, waID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка при получении покупателя: %w", err)
	}
	return customer, nil
}

// IsCustomerBlocked возвращает false для неизвестного отправителя
func (d *Database) IsCustomerBlocked(ctx context.Context, waID string) (bool, error) {
	var blocked bool
	if err := d.db.QueryRow(ctx, SelectCustomerBlockedQuery, waID).Scan(&blocked); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("ошибка при проверке блокировки: %w", err)
	}
	return blocked, nil
}

// SetCustomerBlocked возвращает false, если покупатель не найден
func (d *Database) SetCustomerBlocked(ctx context.Context, waID string, blocked bool) (bool, error) {
	tag, err := d.db.Exec(ctx, UpdateCustomerBlockedQuery, waID, blocked)
	if err != nil {
		return false, fmt.Errorf("ошибка при изменении блокировки: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// CountCustomers возвращает число известных клиентов
func (d *Database) CountCustomers(ctx context.Context) (int64, error) {
	var count int64
	if err := d.db.QueryRow(ctx, CountCustomersQuery).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка при подсчёте покупателей: %w", err)
	}
	return count, nil
}

// incrementCustomerOrders вызывается только внутри транзакции создания заказа
func incrementCustomerOrders(ctx context.Context, exec DBExecutor, waID, phone string, now time.Time) (int64, error) {
	var id int64
	if err := exec.QueryRow(ctx, IncrementCustomerOrdersQuery, waID, phone, now).Scan(&id); err != nil {
		return 0, fmt.Errorf("ошибка при обновлении счётчика заказов: %w", err)
	}
	return id, nil
}
