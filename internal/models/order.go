package models

import (
	"math"
	"slices"
	"time"

	"github.com/Renal37/wa-orderbot/internal/utils"
	"github.com/google/uuid"
)

// OrderStatus - жизненный цикл заказа.
type OrderStatus string

const (
	StatusPendingPayment OrderStatus = "pending_payment"
	StatusPlaced         OrderStatus = "placed"
	StatusConfirmed      OrderStatus = "confirmed"
	StatusPreparing      OrderStatus = "preparing"
	StatusReady          OrderStatus = "ready"
	StatusDelivered      OrderStatus = "delivered"
	StatusCancelled      OrderStatus = "cancelled"
)

// orderTransitions содержит допустимые переходы статусов заказа.
// Все переходы только вперёд, cancelled достижим из любого нетерминального статуса.
var orderTransitions = map[OrderStatus][]OrderStatus{
	StatusPendingPayment: {StatusPlaced, StatusCancelled},
	StatusPlaced:         {StatusConfirmed, StatusCancelled},
	StatusConfirmed:      {StatusPreparing, StatusCancelled},
	StatusPreparing:      {StatusReady, StatusCancelled},
	StatusReady:          {StatusDelivered, StatusCancelled},
}

// IsValid сообщает, известен ли статус.
func (s OrderStatus) IsValid() bool {
	switch s {
	case StatusPendingPayment, StatusPlaced, StatusConfirmed, StatusPreparing,
		StatusReady, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal сообщает, что из статуса больше нет переходов.
func (s OrderStatus) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// CanTransition проверяет переход from -> to по таблице состояний.
func (s OrderStatus) CanTransition(to OrderStatus) bool {
	for _, next := range orderTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// OrderPredecessors возвращает статусы, из которых разрешён переход в to.
func OrderPredecessors(to OrderStatus) []OrderStatus {
	var result []OrderStatus
	for from, nexts := range orderTransitions {
		for _, next := range nexts {
			if next == to {
				result = append(result, from)
			}
		}
	}
	slices.Sort(result)
	return result
}

// PaymentStatus - независимая от жизненного цикла ось оплаты.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentConfirmed PaymentStatus = "confirmed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:   {PaymentConfirmed, PaymentFailed},
	PaymentConfirmed: {PaymentRefunded},
}

func (s PaymentStatus) CanTransition(to PaymentStatus) bool {
	for _, next := range paymentTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal сообщает, что оплата закрыта для подтверждения и перерасчёта.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentConfirmed || s == PaymentFailed || s == PaymentRefunded
}

// OrderOrigin - путь, которым был создан заказ.
type OrderOrigin string

const (
	OriginBotMenu   OrderOrigin = "bot_menu"
	OriginCatalogue OrderOrigin = "catalogue"
)

func (o OrderOrigin) IsValid() bool {
	return o == OriginBotMenu || o == OriginCatalogue
}

// LineItem - одна позиция заказа в общем виде.
type LineItem struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
}

// Amount возвращает стоимость позиции в минимальных единицах валюты.
func (li LineItem) Amount() int64 {
	return li.UnitPrice * int64(li.Quantity)
}

// LineItems - позиции заказа: либо одна позиция меню бота (LegacyItem),
// либо список товаров каталога (CatalogueItems).
type LineItems interface {
	Lines() []LineItem
	Origin() OrderOrigin
	isLineItems()
}

// LegacyItem - позиция, выбранная через меню бота.
type LegacyItem struct {
	ItemID    string
	Name      string
	UnitPrice int64
	Quantity  int
}

func (li LegacyItem) Lines() []LineItem {
	return []LineItem{{ProductID: li.ItemID, Name: li.Name, UnitPrice: li.UnitPrice, Quantity: li.Quantity}}
}

func (LegacyItem) Origin() OrderOrigin { return OriginBotMenu }
func (LegacyItem) isLineItems()        {}

// CatalogueItems - корзина, оформленная через каталог.
type CatalogueItems []LineItem

func (ci CatalogueItems) Lines() []LineItem { return []LineItem(ci) }

func (CatalogueItems) Origin() OrderOrigin { return OriginCatalogue }
func (CatalogueItems) isLineItems()        {}

// MaxLineQuantity - наибольшее количество в одной позиции, ограничено типом INTEGER в базе.
const MaxLineQuantity = math.MaxInt32

// CheckedSubtotal считает сумму позиций и возвращает false, если произведение
// или сумма не помещаются в int64. Отрицательные цены и количества не допускаются.
func CheckedSubtotal(items LineItems) (int64, bool) {
	if items == nil {
		return 0, true
	}

	var sum int64
	for _, line := range items.Lines() {
		if line.UnitPrice < 0 || line.Quantity < 0 {
			return 0, false
		}
		if line.Quantity > 0 && line.UnitPrice > math.MaxInt64/int64(line.Quantity) {
			return 0, false
		}
		amount := line.Amount()
		if sum > math.MaxInt64-amount {
			return 0, false
		}
		sum += amount
	}
	return sum, true
}

// Subtotal считает сумму позиций одинаково для обоих вариантов.
// Позиции должны быть проверены CheckedSubtotal заранее.
func Subtotal(items LineItems) int64 {
	if items == nil {
		return 0
	}
	var sum int64
	for _, line := range items.Lines() {
		sum += line.Amount()
	}
	return sum
}

type Order struct {
	ID                 uuid.UUID          `json:"id"`
	OrderNumber        string             `json:"order_number"`
	CustomerID         *int64             `json:"customer_id,omitempty"`
	WaID               string             `json:"wa_id"`
	CustomerPhone      string             `json:"customer_phone"`
	Origin             OrderOrigin        `json:"origin"`
	Items              LineItems          `json:"-"`
	Subtotal           int64              `json:"subtotal"`
	Tax                int64              `json:"tax"`
	TotalAmount        int64              `json:"total_amount"`
	PaymentMethod      *string            `json:"payment_method,omitempty"`
	PaymentStatus      *PaymentStatus     `json:"payment_status,omitempty"`
	PaymentConfirmedAt *utils.RFC3339Date `json:"payment_confirmed_at,omitempty"`
	Status             OrderStatus        `json:"status"`
	Notes              *string            `json:"notes,omitempty"`
	CreatedAt          utils.RFC3339Date  `json:"created_at"`
	UpdatedAt          utils.RFC3339Date  `json:"updated_at"`
}

// Lines - позиции заказа для JSON-ответов.
func (o Order) Lines() []LineItem {
	if o.Items == nil {
		return nil
	}
	return o.Items.Lines()
}

// OrderView - представление заказа для API с развёрнутыми позициями.
type OrderView struct {
	Order
	Lines []LineItem `json:"items"`
}

func NewOrderView(o Order) OrderView {
	return OrderView{Order: o, Lines: o.Lines()}
}

// OrderHistoryItem - строка истории заказов покупателя.
type OrderHistoryItem struct {
	OrderNumber string            `json:"order_number"`
	Summary     string            `json:"summary"`
	Status      OrderStatus       `json:"status"`
	CreatedAt   utils.RFC3339Date `json:"created_at"`
}

type OrderStatusUpdate struct {
	Status *OrderStatus `json:"status"`
}

type BillingRequest struct {
	Tax           *int64  `json:"tax"`
	PaymentMethod *string `json:"payment_method"`
}

// OrderTimestamp упрощает получение времени для заказов в тестах и сервисах.
func OrderTimestamp(t time.Time) utils.RFC3339Date {
	return utils.RFC3339Date{Time: t.UTC()}
}
