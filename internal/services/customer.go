package services

import (
	"context"
	"time"

	"github.com/Renal37/wa-orderbot/internal/database"
	"github.com/Renal37/wa-orderbot/internal/models"
)

// CustomerService ведёт профили отправителей
type CustomerService struct {
	storage customerStorage
	now     func() time.Time
}

type customerStorage interface {
	UpsertCustomer(ctx context.Context, waID, phone string, name *string, now time.Time) (*database.CustomerDB, error)

	FindCustomer(ctx context.Context, waID string) (*database.CustomerDB, error)

	IsCustomerBlocked(ctx context.Context, waID string) (bool, error)

	SetCustomerBlocked(ctx context.Context, waID string, blocked bool) (bool, error)

	CountCustomers(ctx context.Context) (int64, error)

	CountOrdersSince(ctx context.Context, since time.Time) (int64, error)
}

// NewCustomerService создаёт сервис клиентов
func NewCustomerService(storage customerStorage) *CustomerService {
	return &CustomerService{storage: storage, now: time.Now}
}

// Touch создаёт профиль при первом обращении и обновляет last_active_at.
// Счётчик заказов здесь не меняется, пустое имя не затирает сохранённое.
func (c *CustomerService) Touch(ctx context.Context, sender string, displayName *string) (*models.Customer, error) {
	if displayName != nil && *displayName == "" {
		displayName = nil
	}

	customer, err := c.storage.UpsertCustomer(ctx, sender, sender, displayName, c.now().UTC())
	if err != nil {
		return nil, err
	}

	return customerFromDB(customer), nil
}

// GetCustomer возвращает клиента по номеру WhatsApp или ErrCustomerNotFound
func (c *CustomerService) GetCustomer(ctx context.Context, sender string) (*models.Customer, error) {
	customer, err := c.storage.FindCustomer(ctx, sender)
	if err != nil {
		return nil, err
	}

	if customer == nil {
		return nil, ErrCustomerNotFound
	}

	return customerFromDB(customer), nil
}

// IsBlocked сообщает, заблокирован ли отправитель. Неизвестный отправитель не заблокирован.
func (c *CustomerService) IsBlocked(ctx context.Context, sender string) (bool, error) {
	return c.storage.IsCustomerBlocked(ctx, sender)
}

// SetBlocked блокирует или разблокирует клиента
func (c *CustomerService) SetBlocked(ctx context.Context, sender string, blocked bool) error {
	found, err := c.storage.SetCustomerBlocked(ctx, sender, blocked)
	if err != nil {
		return err
	}

	if !found {
		return ErrCustomerNotFound
	}

	return nil
}

// Stats считает покупателей, все заказы и заказы с начала текущих суток UTC
func (c *CustomerService) Stats(ctx context.Context) (models.Stats, error) {
	now := c.now().UTC()

	customers, err := c.storage.CountCustomers(ctx)
	if err != nil {
		return models.Stats{}, err
	}

	total, err := c.storage.CountOrdersSince(ctx, time.Time{})
	if err != nil {
		return models.Stats{}, err
	}

	today, err := c.storage.CountOrdersSince(ctx, time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC))
	if err != nil {
		return models.Stats{}, err
	}

	return models.Stats{
		TotalCustomers: customers,
		TotalOrders:    total,
		OrdersToday:    today,
		Timestamp:      models.OrderTimestamp(now),
	}, nil
}

func customerFromDB(c *database.CustomerDB) *models.Customer {
	return &models.Customer{
		ID:           c.ID,
		WaID:         c.WaID,
		Phone:        c.Phone,
		Name:         c.Name,
		FirstSeenAt:  models.OrderTimestamp(c.FirstSeenAt),
		LastActiveAt: models.OrderTimestamp(c.LastActiveAt),
		TotalOrders:  c.TotalOrders,
		IsBlocked:    c.IsBlocked,
		Metadata:     c.Metadata,
	}
}
