package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/Renal37/wa-orderbot/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func newTestOrderService(store *fakeStore) (*OrderService, *fakePublisher) {
	publisher := &fakePublisher{}
	service := NewOrderService(store, publisher)
	service.now = func() time.Time { return testNow }
	return service, publisher
}

func seedMenu(store *fakeStore) {
	store.menu["ITEM_ZINGER"] = models.MenuItem{ItemID: "ITEM_ZINGER", Name: "Zinger", Price: 45000, IsAvailable: true}
	store.menu["ITEM_SOLD_OUT"] = models.MenuItem{ItemID: "ITEM_SOLD_OUT", Name: "Wrap", Price: 30000, IsAvailable: false}
}

func TestGenerateOrderNumber(t *testing.T) {
	pattern := regexp.MustCompile(`^ORD-20260301-[A-Z2-7]{6}$`)

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		number, err := GenerateOrderNumber(time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC))
		require.NoError(t, err)
		assert.Regexp(t, pattern, number)
		seen[number] = true
	}
	assert.Greater(t, len(seen), 90)
}

func TestCreateOrderTotals(t *testing.T) {
	testCases := []struct {
		testName         string
		origin           models.OrderOrigin
		items            models.LineItems
		expectedSubtotal int64
		expectedStatus   models.OrderStatus
	}{
		{
			testName:         "Should price a bot menu item",
			origin:           models.OriginBotMenu,
			items:            models.LegacyItem{ItemID: "ITEM_ZINGER", Name: "Zinger", UnitPrice: 45000, Quantity: 2},
			expectedSubtotal: 90000,
			expectedStatus:   models.StatusPlaced,
		},
		{
			testName: "Should price a catalogue cart",
			origin:   models.OriginCatalogue,
			items: models.CatalogueItems{
				{ProductID: "SKU-1", Name: "Burger", UnitPrice: 35000, Quantity: 2},
				{ProductID: "SKU-2", Name: "Fries", UnitPrice: 12000, Quantity: 1},
				{ProductID: "SKU-3", Name: "Sauce", UnitPrice: 0, Quantity: 3},
			},
			expectedSubtotal: 82000,
			expectedStatus:   models.StatusPendingPayment,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.testName, func(t *testing.T) {
			store := newFakeStore()
			service, publisher := newTestOrderService(store)

			order, err := service.CreateOrder(context.Background(), "79990001122", tc.origin, tc.items, nil)
			require.NoError(t, err)

			assert.Equal(t, tc.expectedSubtotal, order.Subtotal)
			assert.Equal(t, order.Subtotal+order.Tax, order.TotalAmount)
			assert.Equal(t, tc.expectedStatus, order.Status)
			assert.Equal(t, tc.origin, order.Origin)
			assert.Equal(t, tc.items.Lines(), order.Lines())
			assert.Nil(t, order.PaymentStatus)
			assert.Equal(t, []models.OrderEventType{models.OrderCreated}, publisher.types())

			customer := store.customer("79990001122")
			assert.Equal(t, 1, customer.TotalOrders)
			assert.Equal(t, &customer.ID, order.CustomerID)
		})
	}
}

func TestCreateOrderValidation(t *testing.T) {
	testCases := []struct {
		testName string
		origin   models.OrderOrigin
		items    models.LineItems
	}{
		{
			testName: "Should reject missing items",
			origin:   models.OriginCatalogue,
			items:    nil,
		},
		{
			testName: "Should reject empty cart",
			origin:   models.OriginCatalogue,
			items:    models.CatalogueItems{},
		},
		{
			testName: "Should reject zero quantity",
			origin:   models.OriginBotMenu,
			items:    models.LegacyItem{ItemID: "ITEM_ZINGER", Name: "Zinger", UnitPrice: 45000, Quantity: 0},
		},
		{
			testName: "Should reject negative price",
			origin:   models.OriginCatalogue,
			items:    models.CatalogueItems{{ProductID: "SKU-1", Name: "Burger", UnitPrice: -1, Quantity: 1}},
		},
		{
			testName: "Should reject origin that does not match the items",
			origin:   models.OriginBotMenu,
			items:    models.CatalogueItems{{ProductID: "SKU-1", Name: "Burger", UnitPrice: 100, Quantity: 1}},
		},
		{
			testName: "Should reject unknown origin",
			origin:   models.OrderOrigin("web"),
			items:    models.LegacyItem{ItemID: "ITEM_ZINGER", Name: "Zinger", UnitPrice: 45000, Quantity: 1},
		},
		{
			testName: "Should reject cart whose line amount overflows",
			origin:   models.OriginCatalogue,
			items: models.CatalogueItems{
				{ProductID: "SKU-1", Name: "Burger", UnitPrice: 1 << 62, Quantity: 4},
				{ProductID: "SKU-2", Name: "Fries", UnitPrice: 1000, Quantity: 1},
			},
		},
		{
			testName: "Should reject cart whose line amount wraps to a small value",
			origin:   models.OriginCatalogue,
			items: models.CatalogueItems{
				{ProductID: "SKU-1", Name: "Burger", UnitPrice: math.MaxInt64/2 + 1, Quantity: 2},
			},
		},
		{
			testName: "Should reject cart whose sum overflows",
			origin:   models.OriginCatalogue,
			items: models.CatalogueItems{
				{ProductID: "SKU-1", Name: "Burger", UnitPrice: math.MaxInt64 - 10, Quantity: 1},
				{ProductID: "SKU-2", Name: "Fries", UnitPrice: 100, Quantity: 1},
			},
		},
		{
			testName: "Should reject quantity that does not fit the quantity column",
			origin:   models.OriginBotMenu,
			items:    models.LegacyItem{ItemID: "ITEM_ZINGER", Name: "Zinger", UnitPrice: 1, Quantity: math.MaxInt32 + 1},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.testName, func(t *testing.T) {
			store := newFakeStore()
			service, _ := newTestOrderService(store)

			_, err := service.CreateOrder(context.Background(), "79990001122", tc.origin, tc.items, nil)
			assert.ErrorIs(t, err, ErrInvalidOrder)
			assert.Zero(t, store.orderCount())
			assert.Zero(t, store.customer("79990001122").TotalOrders)
		})
	}
}

func TestCreateOrderRetriesOnCollision(t *testing.T) {
	store := newFakeStore()
	store.numbers["ORD-20260301-AAAAAA"] = true
	store.numbers["ORD-20260301-BBBBBB"] = true

	service, _ := newTestOrderService(store)
	candidates := []string{"ORD-20260301-AAAAAA", "ORD-20260301-BBBBBB", "ORD-20260301-CCCCCC"}
	var calls int
	service.generate = func(time.Time) (string, error) {
		number := candidates[calls]
		calls++
		return number, nil
	}

	order, err := service.CreateOrder(context.Background(), "79990001122", models.OriginBotMenu,
		models.LegacyItem{ItemID: "ITEM_ZINGER", Name: "Zinger", UnitPrice: 45000, Quantity: 1}, nil)
	require.NoError(t, err)

	assert.Equal(t, "ORD-20260301-CCCCCC", order.OrderNumber)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 1, store.customer("79990001122").TotalOrders)
}

func TestCreateOrderExhausted(t *testing.T) {
	store := newFakeStore()
	store.numbers["ORD-20260301-AAAAAA"] = true

	service, publisher := newTestOrderService(store)
	var calls int
	service.generate = func(time.Time) (string, error) {
		calls++
		return "ORD-20260301-AAAAAA", nil
	}

	_, err := service.CreateOrder(context.Background(), "79990001122", models.OriginBotMenu,
		models.LegacyItem{ItemID: "ITEM_ZINGER", Name: "Zinger", UnitPrice: 45000, Quantity: 1}, nil)

	assert.ErrorIs(t, err, ErrOrderNumberGenerationExhausted)
	assert.Equal(t, maxOrderNumberAttempts, calls)
	assert.Zero(t, store.orderCount())
	assert.Empty(t, publisher.types())
}

func TestCreateOrderStorageError(t *testing.T) {
	store := newFakeStore()
	boom := errors.New("connection reset")
	store.createErr = boom

	service, _ := newTestOrderService(store)
	_, err := service.CreateOrder(context.Background(), "79990001122", models.OriginBotMenu,
		models.LegacyItem{ItemID: "ITEM_ZINGER", Name: "Zinger", UnitPrice: 45000, Quantity: 1}, nil)

	assert.ErrorIs(t, err, boom)
}

func TestConcurrentOrderCreation(t *testing.T) {
	store := newFakeStore()
	service, _ := newTestOrderService(store)

	const n = 1000
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers = map[string]bool{}
	)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			sender := fmt.Sprintf("7999000%04d", i%10)
			order, err := service.CreateOrder(context.Background(), sender, models.OriginBotMenu,
				models.LegacyItem{ItemID: "ITEM_ZINGER", Name: "Zinger", UnitPrice: 45000, Quantity: 1}, nil)
			if !assert.NoError(t, err) {
				return
			}

			mu.Lock()
			numbers[order.OrderNumber] = true
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	assert.Len(t, numbers, n)
	assert.Equal(t, n, store.orderCount())

	var total int
	for i := 0; i < 10; i++ {
		total += store.customer(fmt.Sprintf("7999000%04d", i)).TotalOrders
	}
	assert.Equal(t, n, total)
}

func TestCreateMenuOrder(t *testing.T) {
	store := newFakeStore()
	seedMenu(store)
	service, _ := newTestOrderService(store)
	ctx := context.Background()

	order, err := service.CreateMenuOrder(ctx, "79990001122", "ITEM_ZINGER", 2, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(90000), order.Subtotal)
	assert.Equal(t, models.LegacyItem{ItemID: "ITEM_ZINGER", Name: "Zinger", UnitPrice: 45000, Quantity: 2}, order.Items)

	_, err = service.CreateMenuOrder(ctx, "79990001122", "ITEM_SOLD_OUT", 1, nil)
	assert.ErrorIs(t, err, ErrMenuItemUnavailable)

	_, err = service.CreateMenuOrder(ctx, "79990001122", "VIEW_MENU", 1, nil)
	assert.ErrorIs(t, err, ErrMenuItemUnavailable)

	_, err = service.CreateMenuOrder(ctx, "79990001122", "ITEM_ZINGER", -1, nil)
	assert.ErrorIs(t, err, ErrInvalidOrder)
}

func TestUpdateStatus(t *testing.T) {
	store := newFakeStore()
	service, publisher := newTestOrderService(store)
	ctx := context.Background()

	order, err := service.CreateOrder(ctx, "79990001122", models.OriginBotMenu,
		models.LegacyItem{ItemID: "ITEM_ZINGER", Name: "Zinger", UnitPrice: 45000, Quantity: 1}, nil)
	require.NoError(t, err)

	for _, status := range []models.OrderStatus{
		models.StatusConfirmed,
		models.StatusPreparing,
		models.StatusReady,
		models.StatusDelivered,
	} {
		updated, err := service.UpdateStatus(ctx, order.ID, status)
		require.NoError(t, err)
		assert.Equal(t, status, updated.Status)
	}

	testCases := []struct {
		testName string
		orderID  uuid.UUID
		status   models.OrderStatus
		expected error
	}{
		{
			testName: "Should reject moving a delivered order back to placed",
			orderID:  order.ID,
			status:   models.StatusPlaced,
			expected: ErrInvalidOrderTransition,
		},
		{
			testName: "Should reject cancelling a delivered order",
			orderID:  order.ID,
			status:   models.StatusCancelled,
			expected: ErrInvalidOrderTransition,
		},
		{
			testName: "Should reject pending_payment as a target",
			orderID:  order.ID,
			status:   models.StatusPendingPayment,
			expected: ErrInvalidOrderTransition,
		},
		{
			testName: "Should reject unknown status",
			orderID:  order.ID,
			status:   models.OrderStatus("lost"),
			expected: ErrInvalidOrderTransition,
		},
		{
			testName: "Should report missing order",
			orderID:  uuid.New(),
			status:   models.StatusConfirmed,
			expected: ErrOrderNotFound,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.testName, func(t *testing.T) {
			_, err := service.UpdateStatus(ctx, tc.orderID, tc.status)
			assert.ErrorIs(t, err, tc.expected)

			current, err := service.GetOrder(ctx, order.ID)
			require.NoError(t, err)
			assert.Equal(t, models.StatusDelivered, current.Status)
		})
	}

	assert.Len(t, publisher.types(), 5)
}

func TestPublishFailureDoesNotFailOrder(t *testing.T) {
	store := newFakeStore()
	service, publisher := newTestOrderService(store)
	publisher.err = errors.New("broker down")

	order, err := service.CreateOrder(context.Background(), "79990001122", models.OriginBotMenu,
		models.LegacyItem{ItemID: "ITEM_ZINGER", Name: "Zinger", UnitPrice: 45000, Quantity: 1}, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, order.OrderNumber)
}

func TestOrderHistory(t *testing.T) {
	store := newFakeStore()
	service, _ := newTestOrderService(store)
	ctx := context.Background()

	_, err := service.CreateOrder(ctx, "79990001122", models.OriginBotMenu,
		models.LegacyItem{ItemID: "ITEM_ZINGER", Name: "Zinger", UnitPrice: 45000, Quantity: 2}, nil)
	require.NoError(t, err)

	service.now = func() time.Time { return testNow.Add(time.Minute) }
	_, err = service.CreateOrder(ctx, "79990001122", models.OriginCatalogue, models.CatalogueItems{
		{ProductID: "SKU-1", Name: "Burger", UnitPrice: 35000, Quantity: 1},
		{ProductID: "SKU-2", Name: "Fries", UnitPrice: 12000, Quantity: 3},
	}, nil)
	require.NoError(t, err)

	_, err = service.CreateOrder(ctx, "79990003344", models.OriginBotMenu,
		models.LegacyItem{ItemID: "ITEM_ZINGER", Name: "Zinger", UnitPrice: 45000, Quantity: 1}, nil)
	require.NoError(t, err)

	history, err := service.OrderHistory(ctx, "79990001122", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)

	assert.Equal(t, "1 x Burger, 3 x Fries", history[0].Summary)
	assert.Equal(t, models.StatusPendingPayment, history[0].Status)
	assert.Equal(t, "2 x Zinger", history[1].Summary)

	recent, err := service.ListRecentOrders(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, recent, 3)
}
