package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Renal37/wa-orderbot/internal/utils"
	"github.com/google/uuid"
)

// EventKind - тип входящего события от провайдера.
type EventKind string

const (
	KindText        EventKind = "text"
	KindButton      EventKind = "button"
	KindList        EventKind = "list"
	KindInteractive EventKind = "interactive"
)

func (k EventKind) IsValid() bool {
	switch k {
	case KindText, KindButton, KindList, KindInteractive:
		return true
	}
	return false
}

// InboundEvent - нормализованное событие вебхука, которое передаёт транспорт.
type InboundEvent struct {
	EventID     string          `json:"event_id"`
	Sender      string          `json:"sender"`
	Kind        EventKind       `json:"kind"`
	DisplayName *string         `json:"display_name,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

var ErrInvalidEvent = errors.New("некорректное событие")

// Validate проверяет обязательные поля события.
func (e InboundEvent) Validate() error {
	if e.EventID == "" {
		return fmt.Errorf("%w: пустой event_id", ErrInvalidEvent)
	}
	if e.Sender == "" {
		return fmt.Errorf("%w: пустой sender", ErrInvalidEvent)
	}
	if !e.Kind.IsValid() {
		return fmt.Errorf("%w: неизвестный тип %q", ErrInvalidEvent, e.Kind)
	}
	return nil
}

type TextPayload struct {
	Body string `json:"body"`
}

// ReplyPayload - ответ кнопкой или выбор из списка.
type ReplyPayload struct {
	ReplyID  string `json:"reply_id"`
	Title    string `json:"title"`
	Quantity int    `json:"quantity"`
}

type CatalogueProduct struct {
	ProductRetailerID string `json:"product_retailer_id"`
	Name              string `json:"name"`
	ItemPrice         int64  `json:"item_price"`
	Quantity          int    `json:"quantity"`
}

// CatalogueOrderPayload - оформление корзины из каталога.
type CatalogueOrderPayload struct {
	CatalogID    string             `json:"catalog_id"`
	ProductItems []CatalogueProduct `json:"product_items"`
	Text         string             `json:"text"`
}

// Items переводит корзину каталога в позиции заказа.
func (p CatalogueOrderPayload) Items() CatalogueItems {
	items := make(CatalogueItems, 0, len(p.ProductItems))
	for _, product := range p.ProductItems {
		items = append(items, LineItem{
			ProductID: product.ProductRetailerID,
			Name:      product.Name,
			UnitPrice: product.ItemPrice,
			Quantity:  product.Quantity,
		})
	}
	return items
}

// DecodePayload разбирает полезную нагрузку события в target.
func (e InboundEvent) DecodePayload(target any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("%w: пустая нагрузка", ErrInvalidEvent)
	}
	if err := json.Unmarshal(e.Payload, target); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidEvent, err.Error())
	}
	return nil
}

// IngestStatus - итог обработки события конвейером.
type IngestStatus string

const (
	IngestAccepted    IngestStatus = "accepted"
	IngestDuplicate   IngestStatus = "duplicate"
	IngestBlocked     IngestStatus = "blocked"
	IngestRateLimited IngestStatus = "rate_limited"
	IngestIgnored     IngestStatus = "ignored"
)

type IngestResult struct {
	Status     IngestStatus  `json:"status"`
	Order      *OrderView    `json:"order,omitempty"`
	RetryAfter time.Duration `json:"-"`
}

// OrderEventType совпадает с ключом маршрутизации в брокере.
type OrderEventType string

const (
	OrderCreated       OrderEventType = "order.created"
	OrderStatusChanged OrderEventType = "order.status"
	OrderPaymentChange OrderEventType = "order.payment"
)

// OrderEvent - уведомление об изменении заказа для внешних потребителей.
type OrderEvent struct {
	Type          OrderEventType    `json:"type"`
	OrderID       uuid.UUID         `json:"order_id"`
	OrderNumber   string            `json:"order_number"`
	WaID          string            `json:"wa_id"`
	Status        OrderStatus       `json:"status"`
	PaymentStatus *PaymentStatus    `json:"payment_status,omitempty"`
	TotalAmount   int64             `json:"total_amount"`
	OccurredAt    utils.RFC3339Date `json:"occurred_at"`
}

// NewOrderEvent собирает событие из текущего состояния заказа.
func NewOrderEvent(kind OrderEventType, o Order, at time.Time) OrderEvent {
	return OrderEvent{
		Type:          kind,
		OrderID:       o.ID,
		OrderNumber:   o.OrderNumber,
		WaID:          o.WaID,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		TotalAmount:   o.TotalAmount,
		OccurredAt:    OrderTimestamp(at),
	}
}
