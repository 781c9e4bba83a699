package services

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Renal37/wa-orderbot/internal/database"
	"github.com/Renal37/wa-orderbot/internal/logger"
	"github.com/Renal37/wa-orderbot/internal/metrics"
	"github.com/Renal37/wa-orderbot/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	maxOrderNumberAttempts = 10
	defaultListLimit       = 20
	maxListLimit           = 100
)

// OrderNumberGenerator выдаёт кандидата в номер заказа для даты now
type OrderNumberGenerator func(now time.Time) (string, error)

var orderNumberEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// GenerateOrderNumber возвращает номер вида ORD-YYYYMMDD-XXXXXX
func GenerateOrderNumber(now time.Time) (string, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("не удалось получить случайные байты: %w", err)
	}

	return fmt.Sprintf("ORD-%s-%s", now.UTC().Format("20060102"), orderNumberEncoding.EncodeToString(b)[:6]), nil
}

// OrderService - реестр заказов: создание, нумерация и переходы статусов
type OrderService struct {
	storage   orderStorage
	publisher orderEventPublisher
	generate  OrderNumberGenerator
	now       func() time.Time
}

type orderStorage interface {
	CreateOrder(ctx context.Context, order database.OrderDB) (*database.OrderDB, error)

	FindOrder(ctx context.Context, orderID uuid.UUID) (*database.OrderDB, error)

	FindRecentOrders(ctx context.Context, limit int) ([]database.OrderDB, error)

	FindOrdersByWaID(ctx context.Context, waID string, limit int) ([]database.OrderDB, error)

	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, from []models.OrderStatus, status models.OrderStatus, now time.Time) (*database.OrderDB, error)

	FindMenuItem(ctx context.Context, itemID string) (*models.MenuItem, error)
}

type orderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event models.OrderEvent) error
}

// NewOrderService создаёт реестр заказов. publisher может быть nil, тогда события не публикуются.
func NewOrderService(storage orderStorage, publisher orderEventPublisher) *OrderService {
	return &OrderService{
		storage:   storage,
		publisher: publisher,
		generate:  GenerateOrderNumber,
		now:       time.Now,
	}
}

// ValidateItems проверяет позиции заказа и соответствие источника варианту позиций
func ValidateItems(origin models.OrderOrigin, items models.LineItems) error {
	if items == nil {
		return fmt.Errorf("%w: нет позиций", ErrInvalidOrder)
	}

	if !origin.IsValid() || items.Origin() != origin {
		return fmt.Errorf("%w: источник %q не соответствует позициям", ErrInvalidOrder, origin)
	}

	lines := items.Lines()
	if len(lines) == 0 {
		return fmt.Errorf("%w: нет позиций", ErrInvalidOrder)
	}

	for _, line := range lines {
		if line.ProductID == "" || line.Name == "" {
			return fmt.Errorf("%w: у позиции нет идентификатора или названия", ErrInvalidOrder)
		}
		if line.Quantity <= 0 {
			return fmt.Errorf("%w: количество %s должно быть больше нуля", ErrInvalidOrder, line.ProductID)
		}
		if line.Quantity > models.MaxLineQuantity {
			return fmt.Errorf("%w: количество %s больше %d", ErrInvalidOrder, line.ProductID, models.MaxLineQuantity)
		}
		if line.UnitPrice < 0 {
			return fmt.Errorf("%w: отрицательная цена %s", ErrInvalidOrder, line.ProductID)
		}
	}

	// Сумма должна точно равняться сумме позиций, переполнение int64 недопустимо
	if _, ok := models.CheckedSubtotal(items); !ok {
		return fmt.Errorf("%w: сумма заказа слишком велика", ErrInvalidOrder)
	}

	return nil
}

// CreateOrder сохраняет заказ с новым номером. При коллизии номера пробует
// другого кандидата, не более maxOrderNumberAttempts раз.
func (o *OrderService) CreateOrder(ctx context.Context, sender string, origin models.OrderOrigin, items models.LineItems, notes *string) (*models.Order, error) {
	if sender == "" {
		return nil, fmt.Errorf("%w: пустой отправитель", ErrInvalidOrder)
	}

	if err := ValidateItems(origin, items); err != nil {
		return nil, err
	}

	now := o.now().UTC()
	record := orderToDB(sender, items, notes, now)

	for attempt := 1; attempt <= maxOrderNumberAttempts; attempt++ {
		number, err := o.generate(now)
		if err != nil {
			return nil, err
		}

		record.ID = uuid.New()
		record.OrderNumber = number

		created, err := o.storage.CreateOrder(ctx, record)
		if err != nil {
			if errors.Is(err, database.ErrDuplicateOrderNumber) {
				metrics.OrderNumberCollisionsTotal.Inc()
				logger.Log.Warn("order number collision",
					zap.String("orderNumber", number),
					zap.Int("attempt", attempt),
				)
				continue
			}
			return nil, err
		}

		order := orderFromDB(created)
		metrics.OrdersCreatedTotal.WithLabelValues(string(order.Origin)).Inc()
		logger.Log.Info("order created",
			zap.String("orderNumber", order.OrderNumber),
			zap.String("waID", sender),
			zap.String("origin", string(order.Origin)),
			zap.Int64("subtotal", order.Subtotal),
		)
		o.publish(ctx, models.OrderCreated, order)

		return order, nil
	}

	metrics.OrderNumberExhaustedTotal.Inc()
	logger.Log.Error("order number generation exhausted",
		zap.String("waID", sender),
		zap.Int("attempts", maxOrderNumberAttempts),
	)
	return nil, ErrOrderNumberGenerationExhausted
}

// CreateMenuOrder создаёт заказ из позиции меню бота по текущей цене меню
func (o *OrderService) CreateMenuOrder(ctx context.Context, sender, itemID string, quantity int, notes *string) (*models.Order, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: количество должно быть больше нуля", ErrInvalidOrder)
	}

	item, err := o.storage.FindMenuItem(ctx, itemID)
	if err != nil {
		return nil, err
	}

	if item == nil || !item.IsAvailable {
		return nil, fmt.Errorf("%w: %s", ErrMenuItemUnavailable, itemID)
	}

	return o.CreateOrder(ctx, sender, models.OriginBotMenu, models.LegacyItem{
		ItemID:    item.ItemID,
		Name:      item.Name,
		UnitPrice: item.Price,
		Quantity:  quantity,
	}, notes)
}

// UpdateStatus переводит заказ в status, если текущий статус это допускает.
// Проверка и запись выполняются одним условным UPDATE.
func (o *OrderService) UpdateStatus(ctx context.Context, orderID uuid.UUID, status models.OrderStatus) (*models.Order, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: неизвестный статус %q", ErrInvalidOrderTransition, status)
	}

	from := models.OrderPredecessors(status)
	if len(from) == 0 {
		return nil, fmt.Errorf("%w: в статус %s нельзя перейти", ErrInvalidOrderTransition, status)
	}

	updated, err := o.storage.UpdateOrderStatus(ctx, orderID, from, status, o.now().UTC())
	if err != nil {
		return nil, err
	}

	if updated == nil {
		current, err := o.storage.FindOrder(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidOrderTransition, current.Status.OrderStatus, status)
	}

	order := orderFromDB(updated)
	logger.Log.Info("order status updated",
		zap.String("orderNumber", order.OrderNumber),
		zap.String("status", string(status)),
	)
	o.publish(ctx, models.OrderStatusChanged, order)

	return order, nil
}

// GetOrder возвращает заказ или ErrOrderNotFound
func (o *OrderService) GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := o.storage.FindOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if order == nil {
		return nil, ErrOrderNotFound
	}

	return orderFromDB(order), nil
}

// ListRecentOrders возвращает последние заказы, новые первыми
func (o *OrderService) ListRecentOrders(ctx context.Context, limit int) ([]models.Order, error) {
	orders, err := o.storage.FindRecentOrders(ctx, clampLimit(limit))
	if err != nil {
		return nil, err
	}

	result := make([]models.Order, len(orders))
	for i := range orders {
		result[i] = *orderFromDB(&orders[i])
	}
	return result, nil
}

// OrderHistory возвращает последние заказы отправителя в кратком виде
func (o *OrderService) OrderHistory(ctx context.Context, sender string, limit int) ([]models.OrderHistoryItem, error) {
	orders, err := o.storage.FindOrdersByWaID(ctx, sender, clampLimit(limit))
	if err != nil {
		return nil, err
	}

	result := make([]models.OrderHistoryItem, len(orders))
	for i := range orders {
		order := orderFromDB(&orders[i])
		result[i] = models.OrderHistoryItem{
			OrderNumber: order.OrderNumber,
			Summary:     summarize(order.Lines()),
			Status:      order.Status,
			CreatedAt:   order.CreatedAt,
		}
	}
	return result, nil
}

// publish не влияет на результат операции: заказ уже сохранён
func (o *OrderService) publish(ctx context.Context, kind models.OrderEventType, order *models.Order) {
	if o.publisher == nil {
		return
	}

	if err := o.publisher.PublishOrderEvent(ctx, models.NewOrderEvent(kind, *order, o.now())); err != nil {
		logger.Log.Error("failed to publish order event",
			zap.String("orderNumber", order.OrderNumber),
			zap.String("event", string(kind)),
			zap.Error(err),
		)
	}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

func summarize(lines []models.LineItem) string {
	parts := make([]string, 0, len(lines))
	for _, line := range lines {
		parts = append(parts, fmt.Sprintf("%d x %s", line.Quantity, line.Name))
	}
	return strings.Join(parts, ", ")
}

func orderToDB(sender string, items models.LineItems, notes *string, now time.Time) database.OrderDB {
	subtotal := models.Subtotal(items)

	record := database.OrderDB{
		WaID:          sender,
		CustomerPhone: sender,
		Origin:        string(items.Origin()),
		Subtotal:      subtotal,
		TotalAmount:   subtotal,
		Notes:         notes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	switch v := items.(type) {
	case models.LegacyItem:
		record.ItemID = &v.ItemID
		record.ItemName = &v.Name
		record.ItemPrice = &v.UnitPrice
		record.Quantity = &v.Quantity
		record.Status = database.OrderStatusDB{OrderStatus: models.StatusPlaced}
	case models.CatalogueItems:
		record.Items = []models.LineItem(v)
		record.Status = database.OrderStatusDB{OrderStatus: models.StatusPendingPayment}
	}

	return record
}

func orderFromDB(o *database.OrderDB) *models.Order {
	order := &models.Order{
		ID:            o.ID,
		OrderNumber:   o.OrderNumber,
		CustomerID:    o.CustomerID,
		WaID:          o.WaID,
		CustomerPhone: o.CustomerPhone,
		Origin:        models.OrderOrigin(o.Origin),
		Subtotal:      o.Subtotal,
		Tax:           o.Tax,
		TotalAmount:   o.TotalAmount,
		PaymentMethod: o.PaymentMethod,
		Status:        o.Status.OrderStatus,
		Notes:         o.Notes,
		CreatedAt:     models.OrderTimestamp(o.CreatedAt),
		UpdatedAt:     models.OrderTimestamp(o.UpdatedAt),
	}

	if o.PaymentStatus != nil {
		status := models.PaymentStatus(*o.PaymentStatus)
		order.PaymentStatus = &status
	}

	if o.PaymentConfirmedAt != nil {
		at := models.OrderTimestamp(*o.PaymentConfirmedAt)
		order.PaymentConfirmedAt = &at
	}

	switch order.Origin {
	case models.OriginCatalogue:
		order.Items = models.CatalogueItems(o.Items)
	case models.OriginBotMenu:
		item := models.LegacyItem{}
		if o.ItemID != nil {
			item.ItemID = *o.ItemID
		}
		if o.ItemName != nil {
			item.Name = *o.ItemName
		}
		if o.ItemPrice != nil {
			item.UnitPrice = *o.ItemPrice
		}
		if o.Quantity != nil {
			item.Quantity = *o.Quantity
		}
		order.Items = item
	}

	return order
}
