package database

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Renal37/wa-orderbot/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Определение пользовательских ошибок
var (
	ErrDuplicateOrderNumber = errors.New("номер заказа уже занят")
)

const orderNumberConstraint = "orders_order_number_key"

// SQL-запросы для работы с заказами
const (
	orderColumns = `
		id, order_number, customer_id, wa_id, customer_phone, origin,
		item_id, item_name, item_price, quantity, items,
		subtotal, tax, total_amount,
		payment_method, payment_status, payment_confirmed_at,
		status, notes, created_at, updated_at
	`

	InsertOrderQuery = `
		INSERT INTO
			orders (
				id, order_number, customer_id, wa_id, customer_phone, origin,
				item_id, item_name, item_price, quantity, items,
				subtotal, tax, total_amount, status, notes, created_at, updated_at
			)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $17)
		RETURNING ` + orderColumns

	SelectOrderQuery = `
		SELECT ` + orderColumns + `
		FROM
			orders
		WHERE
			id = $1
	`
	SelectRecentOrdersQuery = `
		SELECT ` + orderColumns + `
		FROM
			orders
		ORDER BY
			created_at DESC
		LIMIT $1
	`
	SelectOrdersByWaIDQuery = `
		SELECT ` + orderColumns + `
		FROM
			orders
		WHERE
			wa_id = $1
		ORDER BY
			created_at DESC
		LIMIT $2
	`
	// UpdateOrderStatusQuery меняет статус только из разрешённых предшественников,
	// поэтому проверка перехода и запись выполняются одной операцией.
	// При отмене незавершённая оплата закрывается как failed.
	UpdateOrderStatusQuery = `
		UPDATE
			orders
		SET
			status = $2,
			payment_status = CASE
				WHEN $2 = 'cancelled' AND payment_status = 'pending' THEN 'failed'
				ELSE payment_status
			END,
			updated_at = $4
		WHERE
			id = $1
			AND status = ANY($3)
		RETURNING ` + orderColumns

	CountOrdersSinceQuery = `
		SELECT
			COUNT(*)
		FROM
			orders
		WHERE
			created_at >= $1
	`
)

// Структура для хранения информации о заказе
type OrderDB struct {
	ID                 uuid.UUID
	OrderNumber        string
	CustomerID         *int64
	WaID               string
	CustomerPhone      string
	Origin             string
	ItemID             *string
	ItemName           *string
	ItemPrice          *int64
	Quantity           *int
	Items              []models.LineItem // только для заказов из каталога
	Subtotal           int64
	Tax                int64
	TotalAmount        int64
	PaymentMethod      *string
	PaymentStatus      *string
	PaymentConfirmedAt *time.Time
	Status             OrderStatusDB
	Notes              *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Определение статуса заказа с возможностью преобразования в/из базы данных
type OrderStatusDB struct {
	models.OrderStatus
}

// Реализация интерфейса sql.Scanner для чтения статуса заказа из базы данных
func (s *OrderStatusDB) Scan(value interface{}) error {
	strVal, ok := value.(string)
	if !ok {
		return fmt.Errorf("статус заказа должен быть строкой, а не %T", value)
	}

	*s = OrderStatusDB{models.OrderStatus(strVal)}
	return nil
}

// Реализация интерфейса driver.Valuer для преобразования статуса заказа в строку перед записью в базу данных
func (s OrderStatusDB) Value() (driver.Value, error) {
	return string(s.OrderStatus), nil
}

func scanOrder(row pgx.Row) (*OrderDB, error) {
	var (
		order OrderDB
		items []byte
	)
	err := row.Scan(
		&order.ID, &order.OrderNumber, &order.CustomerID, &order.WaID, &order.CustomerPhone, &order.Origin,
		&order.ItemID, &order.ItemName, &order.ItemPrice, &order.Quantity, &items,
		&order.Subtotal, &order.Tax, &order.TotalAmount,
		&order.PaymentMethod, &order.PaymentStatus, &order.PaymentConfirmedAt,
		&order.Status, &order.Notes, &order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(items) > 0 {
		if err := json.Unmarshal(items, &order.Items); err != nil {
			return nil, fmt.Errorf("некорректные позиции заказа %s: %w", order.OrderNumber, err)
		}
	}

	return &order, nil
}

func collectOrders(rows pgx.Rows) ([]OrderDB, error) {
	defer rows.Close()

	var result []OrderDB
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка обработки строки с заказом: %w", err)
		}
		result = append(result, *order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации по строкам: %w", err)
	}

	return result, nil
}

// CreateOrder сохраняет заказ и увеличивает счётчик заказов покупателя в одной транзакции.
// При занятом номере транзакция откатывается целиком и возвращается ErrDuplicateOrderNumber.
func (d *Database) CreateOrder(ctx context.Context, order OrderDB) (*OrderDB, error) {
	var itemsJSON any
	if order.Items != nil {
		data, err := json.Marshal(order.Items)
		if err != nil {
			return nil, fmt.Errorf("не удалось сериализовать позиции заказа: %w", err)
		}
		itemsJSON = string(data)
	}

	var created *OrderDB
	err := d.inTx(ctx, func(tx pgx.Tx) error {
		customerID, err := incrementCustomerOrders(ctx, tx, order.WaID, order.CustomerPhone, order.CreatedAt)
		if err != nil {
			return err
		}

		created, err = scanOrder(tx.QueryRow(ctx, InsertOrderQuery,
			order.ID, order.OrderNumber, customerID, order.WaID, order.CustomerPhone, order.Origin,
			order.ItemID, order.ItemName, order.ItemPrice, order.Quantity, itemsJSON,
			order.Subtotal, order.Tax, order.TotalAmount, order.Status, order.Notes, order.CreatedAt,
		))
		return err
	})
	if err != nil {
		// Проверяем, не является ли ошибка нарушением уникальности номера заказа
		if isUniqueViolation(err, orderNumberConstraint) {
			return nil, ErrDuplicateOrderNumber
		}
		return nil, fmt.Errorf("ошибка создания заказа: %w", err)
	}

	return created, nil
}

// Поиск заказа по его ID
func (d *Database) FindOrder(ctx context.Context, orderID uuid.UUID) (*OrderDB, error) {
	order, err := scanOrder(d.db.QueryRow(ctx, SelectOrderQuery, orderID))
	if err != nil {
		// Если заказ не найден, возвращаем nil без ошибки
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка поиска заказа: %w", err)
	}

	return order, nil
}

// FindRecentOrders возвращает последние заказы всех покупателей
func (d *Database) FindRecentOrders(ctx context.Context, limit int) ([]OrderDB, error) {
	rows, err := d.db.Query(ctx, SelectRecentOrdersQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска последних заказов: %w", err)
	}
	return collectOrders(rows)
}

// FindOrdersByWaID возвращает историю заказов отправителя
func (d *Database) FindOrdersByWaID(ctx context.Context, waID string, limit int) ([]OrderDB, error) {
	rows, err := d.db.Query(ctx, SelectOrdersByWaIDQuery, waID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска заказов покупателя: %w", err)
	}
	return collectOrders(rows)
}

// UpdateOrderStatus переводит заказ в status, если текущий статус входит в from.
// Отмена переводит оплату pending в failed.
// Возвращает nil без ошибки, если заказ не найден или переход не разрешён.
func (d *Database) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, from []models.OrderStatus, status models.OrderStatus, now time.Time) (*OrderDB, error) {
	allowed := make([]string, len(from))
	for i, s := range from {
		allowed[i] = string(s)
	}

	order, err := scanOrder(d.db.QueryRow(ctx, UpdateOrderStatusQuery, orderID, OrderStatusDB{status}, allowed, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка обновления статуса заказа: %w", err)
	}
	return order, nil
}

// CountOrdersSince считает заказы, созданные не раньше since
func (d *Database) CountOrdersSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	if err := d.db.QueryRow(ctx, CountOrdersSinceQuery, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка при подсчёте заказов: %w", err)
	}
	return count, nil
}
