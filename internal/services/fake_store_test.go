package services

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/Renal37/wa-orderbot/internal/database"
	"github.com/Renal37/wa-orderbot/internal/models"
	"github.com/google/uuid"
)

type rateKey struct {
	waID  string
	start time.Time
}

// fakeStore хранит данные в памяти и повторяет ограничения схемы:
// уникальность message_id, (wa_id, window_start), order_number и условные UPDATE
type fakeStore struct {
	mu          sync.Mutex
	processed   map[string]time.Time
	rateLimits  map[rateKey]int
	customers   map[string]*database.CustomerDB
	orders      map[uuid.UUID]*database.OrderDB
	numbers     map[string]bool
	menu        map[string]models.MenuItem
	messageLogs []database.MessageLogDB
	nextID      int64

	createErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		processed:  map[string]time.Time{},
		rateLimits: map[rateKey]int{},
		customers:  map[string]*database.CustomerDB{},
		orders:     map[uuid.UUID]*database.OrderDB{},
		numbers:    map[string]bool{},
		menu:       map[string]models.MenuItem{},
	}
}

func (f *fakeStore) InsertProcessedMessage(_ context.Context, messageID, _, _ string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.processed[messageID]; ok {
		return false, nil
	}
	f.processed[messageID] = at
	return true, nil
}

func (f *fakeStore) DeleteProcessedMessage(_ context.Context, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.processed, messageID)
	return nil
}

func (f *fakeStore) DeleteProcessedMessagesBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var n int64
	for id, at := range f.processed {
		if at.Before(cutoff) {
			delete(f.processed, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) IncrementRateLimit(_ context.Context, waID string, windowStart time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := rateKey{waID, windowStart}
	f.rateLimits[key]++
	return f.rateLimits[key], nil
}

func (f *fakeStore) DeleteRateLimitsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var n int64
	for key := range f.rateLimits {
		if key.start.Before(cutoff) {
			delete(f.rateLimits, key)
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) upsertCustomerLocked(waID, phone string, now time.Time) *database.CustomerDB {
	c, ok := f.customers[waID]
	if !ok {
		f.nextID++
		c = &database.CustomerDB{ID: f.nextID, WaID: waID, Phone: phone, FirstSeenAt: now}
		f.customers[waID] = c
	}
	c.LastActiveAt = now
	return c
}

func (f *fakeStore) UpsertCustomer(_ context.Context, waID, phone string, name *string, now time.Time) (*database.CustomerDB, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c := f.upsertCustomerLocked(waID, phone, now)
	if name != nil {
		c.Name = name
	}
	copied := *c
	return &copied, nil
}

func (f *fakeStore) FindCustomer(_ context.Context, waID string) (*database.CustomerDB, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.customers[waID]
	if !ok {
		return nil, nil
	}
	copied := *c
	return &copied, nil
}

func (f *fakeStore) IsCustomerBlocked(_ context.Context, waID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.customers[waID]
	return ok && c.IsBlocked, nil
}

func (f *fakeStore) SetCustomerBlocked(_ context.Context, waID string, blocked bool) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.customers[waID]
	if !ok {
		return false, nil
	}
	c.IsBlocked = blocked
	return true, nil
}

func (f *fakeStore) CountCustomers(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return int64(len(f.customers)), nil
}

func (f *fakeStore) CountOrdersSince(_ context.Context, since time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var n int64
	for _, o := range f.orders {
		if !o.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) CreateOrder(_ context.Context, order database.OrderDB) (*database.OrderDB, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.createErr != nil {
		return nil, f.createErr
	}

	if f.numbers[order.OrderNumber] {
		return nil, database.ErrDuplicateOrderNumber
	}

	customer := f.upsertCustomerLocked(order.WaID, order.CustomerPhone, order.CreatedAt)
	customer.TotalOrders++

	id := customer.ID
	order.CustomerID = &id
	f.numbers[order.OrderNumber] = true
	f.orders[order.ID] = &order

	copied := order
	return &copied, nil
}

func (f *fakeStore) FindOrder(_ context.Context, orderID uuid.UUID) (*database.OrderDB, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	o, ok := f.orders[orderID]
	if !ok {
		return nil, nil
	}
	copied := *o
	return &copied, nil
}

func (f *fakeStore) sortedOrders(filter func(*database.OrderDB) bool, limit int) []database.OrderDB {
	var result []database.OrderDB
	for _, o := range f.orders {
		if filter(o) {
			result = append(result, *o)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result
}

func (f *fakeStore) FindRecentOrders(_ context.Context, limit int) ([]database.OrderDB, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.sortedOrders(func(*database.OrderDB) bool { return true }, limit), nil
}

func (f *fakeStore) FindOrdersByWaID(_ context.Context, waID string, limit int) ([]database.OrderDB, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.sortedOrders(func(o *database.OrderDB) bool { return o.WaID == waID }, limit), nil
}

func (f *fakeStore) UpdateOrderStatus(_ context.Context, orderID uuid.UUID, from []models.OrderStatus, status models.OrderStatus, now time.Time) (*database.OrderDB, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	o, ok := f.orders[orderID]
	if !ok || !slices.Contains(from, o.Status.OrderStatus) {
		return nil, nil
	}
	o.Status = database.OrderStatusDB{OrderStatus: status}
	if status == models.StatusCancelled && o.PaymentStatus != nil && *o.PaymentStatus == string(models.PaymentPending) {
		failed := string(models.PaymentFailed)
		o.PaymentStatus = &failed
	}
	o.UpdatedAt = now
	copied := *o
	return &copied, nil
}

func (f *fakeStore) FindMenuItem(_ context.Context, itemID string) (*models.MenuItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	item, ok := f.menu[itemID]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (f *fakeStore) FindAvailableMenuItems(context.Context) ([]models.MenuItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var items []models.MenuItem
	for _, item := range f.menu {
		if item.IsAvailable {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].SortOrder != items[j].SortOrder {
			return items[i].SortOrder < items[j].SortOrder
		}
		return items[i].ItemID < items[j].ItemID
	})
	return items, nil
}

func (f *fakeStore) UpsertMenuItems(_ context.Context, items []models.MenuItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, item := range items {
		f.menu[item.ItemID] = item
	}
	return nil
}

func (f *fakeStore) ApplyBilling(_ context.Context, orderID uuid.UUID, tax int64, method string, now time.Time) (*database.OrderDB, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	o, ok := f.orders[orderID]
	if !ok || (o.PaymentStatus != nil && *o.PaymentStatus != string(models.PaymentPending)) {
		return nil, nil
	}
	if o.Status.OrderStatus == models.StatusCancelled || o.Status.OrderStatus == models.StatusDelivered {
		return nil, nil
	}

	o.Tax = tax
	o.TotalAmount = o.Subtotal + tax
	o.PaymentMethod = &method
	if o.PaymentStatus == nil {
		pending := string(models.PaymentPending)
		o.PaymentStatus = &pending
	}
	o.UpdatedAt = now
	copied := *o
	return &copied, nil
}

func (f *fakeStore) UpdatePaymentStatus(_ context.Context, orderID uuid.UUID, from, to models.PaymentStatus, confirmedAt *time.Time, now time.Time) (*database.OrderDB, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	o, ok := f.orders[orderID]
	if !ok || o.PaymentStatus == nil || *o.PaymentStatus != string(from) {
		return nil, nil
	}
	if to != models.PaymentRefunded && o.Status.OrderStatus == models.StatusCancelled {
		return nil, nil
	}

	status := string(to)
	o.PaymentStatus = &status
	if confirmedAt != nil {
		at := *confirmedAt
		o.PaymentConfirmedAt = &at
	}
	if to == models.PaymentConfirmed && o.Status.OrderStatus == models.StatusPendingPayment {
		o.Status = database.OrderStatusDB{OrderStatus: models.StatusPlaced}
	}
	o.UpdatedAt = now
	copied := *o
	return &copied, nil
}

func (f *fakeStore) ExpireStalePending(_ context.Context, cutoff, now time.Time) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var expired []string
	for _, o := range f.orders {
		if !o.CreatedAt.Before(cutoff) || o.Status.IsTerminal() {
			continue
		}
		pendingPayment := o.PaymentStatus != nil && *o.PaymentStatus == string(models.PaymentPending)
		if !pendingPayment && o.Status.OrderStatus != models.StatusPendingPayment {
			continue
		}

		failed := string(models.PaymentFailed)
		o.Status = database.OrderStatusDB{OrderStatus: models.StatusCancelled}
		o.PaymentStatus = &failed
		o.UpdatedAt = now
		expired = append(expired, o.OrderNumber)
	}
	return expired, nil
}

func (f *fakeStore) FindPaymentSummary(_ context.Context, start, end time.Time) (*database.PaymentSummaryDB, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	summary := &database.PaymentSummaryDB{PerMethodCounts: map[string]int64{}}
	for _, o := range f.orders {
		if o.CreatedAt.Before(start) || !o.CreatedAt.Before(end) {
			continue
		}
		summary.TotalOrders++
		if o.PaymentMethod != nil {
			summary.PerMethodCounts[*o.PaymentMethod]++
		}
		if o.PaymentStatus == nil {
			continue
		}
		switch models.PaymentStatus(*o.PaymentStatus) {
		case models.PaymentConfirmed:
			summary.ConfirmedPayments++
			summary.TotalRevenue += o.TotalAmount
		case models.PaymentPending:
			summary.PendingPayments++
			summary.PendingRevenue += o.TotalAmount
		case models.PaymentFailed:
			summary.FailedPayments++
		}
	}
	return summary, nil
}

func (f *fakeStore) CreateMessageLog(_ context.Context, entry database.MessageLogDB) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.messageLogs = append(f.messageLogs, entry)
	return nil
}

func (f *fakeStore) orderCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.orders)
}

func (f *fakeStore) customer(waID string) database.CustomerDB {
	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.customers[waID]; ok {
		return *c
	}
	return database.CustomerDB{}
}

// fakePublisher запоминает опубликованные события
type fakePublisher struct {
	mu     sync.Mutex
	events []models.OrderEvent
	err    error
}

func (p *fakePublisher) PublishOrderEvent(_ context.Context, event models.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *fakePublisher) types() []models.OrderEventType {
	p.mu.Lock()
	defer p.mu.Unlock()

	result := make([]models.OrderEventType, len(p.events))
	for i, e := range p.events {
		result[i] = e.Type
	}
	return result
}

// fixedClock возвращает управляемое время для сервисов
type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fixedClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fixedClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}
