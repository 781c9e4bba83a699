package services

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/Renal37/wa-orderbot/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBilling(store *fakeStore, clock *fixedClock) (*OrderService, *BillingService, *fakePublisher) {
	publisher := &fakePublisher{}

	orders := NewOrderService(store, publisher)
	orders.now = clock.now

	billing := NewBillingService(store, publisher)
	billing.now = clock.now

	return orders, billing, publisher
}

func createZinger(t *testing.T, orders *OrderService, sender string, quantity int) *models.Order {
	t.Helper()

	order, err := orders.CreateOrder(context.Background(), sender, models.OriginBotMenu,
		models.LegacyItem{ItemID: "ITEM_ZINGER", Name: "Zinger", UnitPrice: 45000, Quantity: quantity}, nil)
	require.NoError(t, err)
	return order
}

func TestApplyBilling(t *testing.T) {
	store := newFakeStore()
	clock := &fixedClock{t: testNow}
	orders, billing, _ := newTestBilling(store, clock)
	ctx := context.Background()

	order := createZinger(t, orders, "79990001122", 2)

	billed, err := billing.ApplyBilling(ctx, order.ID, 9000, "cash")
	require.NoError(t, err)
	assert.Equal(t, int64(90000), billed.Subtotal)
	assert.Equal(t, int64(9000), billed.Tax)
	assert.Equal(t, int64(99000), billed.TotalAmount)
	require.NotNil(t, billed.PaymentStatus)
	assert.Equal(t, models.PaymentPending, *billed.PaymentStatus)

	// перерасчёт до подтверждения разрешён, итог считается заново
	billed, err = billing.ApplyBilling(ctx, order.ID, 0, "card")
	require.NoError(t, err)
	assert.Equal(t, billed.Subtotal, billed.TotalAmount)
	assert.Equal(t, "card", *billed.PaymentMethod)

	_, err = billing.ConfirmPayment(ctx, order.ID, testNow)
	require.NoError(t, err)

	_, err = billing.ApplyBilling(ctx, order.ID, 100, "cash")
	assert.ErrorIs(t, err, ErrPaymentAlreadyTerminal)

	_, err = billing.ApplyBilling(ctx, order.ID, -1, "cash")
	assert.ErrorIs(t, err, ErrInvalidOrder)

	_, err = billing.ApplyBilling(ctx, order.ID, 0, "")
	assert.ErrorIs(t, err, ErrInvalidOrder)

	_, err = billing.ApplyBilling(ctx, uuid.New(), 0, "cash")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestPaymentTransitions(t *testing.T) {
	testCases := []struct {
		testName string
		prepare  func(t *testing.T, billing *BillingService, id uuid.UUID)
		act      func(billing *BillingService, id uuid.UUID) (*models.Order, error)
		expected error
		status   *models.PaymentStatus
	}{
		{
			testName: "Should confirm pending payment",
			prepare: func(t *testing.T, billing *BillingService, id uuid.UUID) {
				_, err := billing.ApplyBilling(context.Background(), id, 0, "cash")
				require.NoError(t, err)
			},
			act: func(billing *BillingService, id uuid.UUID) (*models.Order, error) {
				return billing.ConfirmPayment(context.Background(), id, testNow)
			},
			status: paymentStatus(models.PaymentConfirmed),
		},
		{
			testName: "Should fail pending payment",
			prepare: func(t *testing.T, billing *BillingService, id uuid.UUID) {
				_, err := billing.ApplyBilling(context.Background(), id, 0, "cash")
				require.NoError(t, err)
			},
			act: func(billing *BillingService, id uuid.UUID) (*models.Order, error) {
				return billing.FailPayment(context.Background(), id)
			},
			status: paymentStatus(models.PaymentFailed),
		},
		{
			testName: "Should refund confirmed payment",
			prepare: func(t *testing.T, billing *BillingService, id uuid.UUID) {
				_, err := billing.ApplyBilling(context.Background(), id, 0, "cash")
				require.NoError(t, err)
				_, err = billing.ConfirmPayment(context.Background(), id, testNow)
				require.NoError(t, err)
			},
			act: func(billing *BillingService, id uuid.UUID) (*models.Order, error) {
				return billing.RefundPayment(context.Background(), id)
			},
			status: paymentStatus(models.PaymentRefunded),
		},
		{
			testName: "Should reject refund of pending payment",
			prepare: func(t *testing.T, billing *BillingService, id uuid.UUID) {
				_, err := billing.ApplyBilling(context.Background(), id, 0, "cash")
				require.NoError(t, err)
			},
			act: func(billing *BillingService, id uuid.UUID) (*models.Order, error) {
				return billing.RefundPayment(context.Background(), id)
			},
			expected: ErrInvalidPaymentTransition,
			status:   paymentStatus(models.PaymentPending),
		},
		{
			testName: "Should reject confirming twice",
			prepare: func(t *testing.T, billing *BillingService, id uuid.UUID) {
				_, err := billing.ApplyBilling(context.Background(), id, 0, "cash")
				require.NoError(t, err)
				_, err = billing.ConfirmPayment(context.Background(), id, testNow)
				require.NoError(t, err)
			},
			act: func(billing *BillingService, id uuid.UUID) (*models.Order, error) {
				return billing.ConfirmPayment(context.Background(), id, testNow)
			},
			expected: ErrPaymentAlreadyTerminal,
			status:   paymentStatus(models.PaymentConfirmed),
		},
		{
			testName: "Should reject confirming a failed payment",
			prepare: func(t *testing.T, billing *BillingService, id uuid.UUID) {
				_, err := billing.ApplyBilling(context.Background(), id, 0, "cash")
				require.NoError(t, err)
				_, err = billing.FailPayment(context.Background(), id)
				require.NoError(t, err)
			},
			act: func(billing *BillingService, id uuid.UUID) (*models.Order, error) {
				return billing.ConfirmPayment(context.Background(), id, testNow)
			},
			expected: ErrPaymentAlreadyTerminal,
			status:   paymentStatus(models.PaymentFailed),
		},
		{
			testName: "Should require billing before confirmation",
			act: func(billing *BillingService, id uuid.UUID) (*models.Order, error) {
				return billing.ConfirmPayment(context.Background(), id, testNow)
			},
			expected: ErrBillingNotApplied,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.testName, func(t *testing.T) {
			store := newFakeStore()
			clock := &fixedClock{t: testNow}
			orders, billing, _ := newTestBilling(store, clock)
			order := createZinger(t, orders, "79990001122", 1)

			if tc.prepare != nil {
				tc.prepare(t, billing, order.ID)
			}

			_, err := tc.act(billing, order.ID)
			if tc.expected != nil {
				assert.ErrorIs(t, err, tc.expected)
			} else {
				assert.NoError(t, err)
			}

			current, err := orders.GetOrder(context.Background(), order.ID)
			require.NoError(t, err)
			assert.Equal(t, tc.status, current.PaymentStatus)
		})
	}
}

func paymentStatus(s models.PaymentStatus) *models.PaymentStatus {
	return &s
}

func TestConfirmPaymentPlacesCatalogueOrder(t *testing.T) {
	store := newFakeStore()
	clock := &fixedClock{t: testNow}
	orders, billing, publisher := newTestBilling(store, clock)
	ctx := context.Background()

	order, err := orders.CreateOrder(ctx, "79990001122", models.OriginCatalogue, models.CatalogueItems{
		{ProductID: "SKU-1", Name: "Burger", UnitPrice: 35000, Quantity: 1},
	}, nil)
	require.NoError(t, err)
	require.Equal(t, models.StatusPendingPayment, order.Status)

	_, err = billing.ApplyBilling(ctx, order.ID, 3500, "card")
	require.NoError(t, err)

	confirmedAt := testNow.Add(5 * time.Minute)
	confirmed, err := billing.ConfirmPayment(ctx, order.ID, confirmedAt)
	require.NoError(t, err)

	assert.Equal(t, models.StatusPlaced, confirmed.Status)
	require.NotNil(t, confirmed.PaymentConfirmedAt)
	assert.True(t, confirmedAt.Equal(confirmed.PaymentConfirmedAt.Time))
	assert.Equal(t, []models.OrderEventType{models.OrderCreated, models.OrderPaymentChange}, publisher.types())
}

func TestExpireStalePending(t *testing.T) {
	store := newFakeStore()
	clock := &fixedClock{t: testNow}
	orders, billing, _ := newTestBilling(store, clock)
	ctx := context.Background()

	stale := createZinger(t, orders, "79990001122", 1)
	_, err := billing.ApplyBilling(ctx, stale.ID, 0, "cash")
	require.NoError(t, err)

	cart, err := orders.CreateOrder(ctx, "79990001122", models.OriginCatalogue, models.CatalogueItems{
		{ProductID: "SKU-1", Name: "Burger", UnitPrice: 35000, Quantity: 1},
	}, nil)
	require.NoError(t, err)

	paid := createZinger(t, orders, "79990001122", 1)
	_, err = billing.ApplyBilling(ctx, paid.ID, 0, "cash")
	require.NoError(t, err)
	_, err = billing.ConfirmPayment(ctx, paid.ID, testNow)
	require.NoError(t, err)

	unbilled := createZinger(t, orders, "79990001122", 1)

	clock.advance(time.Hour)
	fresh := createZinger(t, orders, "79990001122", 1)
	_, err = billing.ApplyBilling(ctx, fresh.ID, 0, "cash")
	require.NoError(t, err)

	clock.advance(24 * time.Hour)

	count, err := billing.ExpireStalePending(ctx, 24*time.Hour+30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = billing.ExpireStalePending(ctx, 24*time.Hour+30*time.Minute)
	require.NoError(t, err)
	assert.Zero(t, count)

	expected := map[uuid.UUID]models.OrderStatus{
		stale.ID:    models.StatusCancelled,
		cart.ID:     models.StatusCancelled,
		paid.ID:     models.StatusPlaced,
		unbilled.ID: models.StatusPlaced,
		fresh.ID:    models.StatusPlaced,
	}
	for id, status := range expected {
		current, err := orders.GetOrder(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, status, current.Status, current.OrderNumber)
	}

	current, err := orders.GetOrder(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, paymentStatus(models.PaymentFailed), current.PaymentStatus)
}

func TestPaymentSummary(t *testing.T) {
	store := newFakeStore()
	clock := &fixedClock{t: testNow}
	orders, billing, _ := newTestBilling(store, clock)
	ctx := context.Background()

	confirmed := createZinger(t, orders, "79990001122", 2)
	_, err := billing.ApplyBilling(ctx, confirmed.ID, 10000, "card")
	require.NoError(t, err)
	_, err = billing.ConfirmPayment(ctx, confirmed.ID, testNow)
	require.NoError(t, err)

	pending := createZinger(t, orders, "79990001122", 1)
	_, err = billing.ApplyBilling(ctx, pending.ID, 0, "cash")
	require.NoError(t, err)

	failed := createZinger(t, orders, "79990003344", 1)
	_, err = billing.ApplyBilling(ctx, failed.ID, 0, "cash")
	require.NoError(t, err)
	_, err = billing.FailPayment(ctx, failed.ID)
	require.NoError(t, err)

	createZinger(t, orders, "79990003344", 1)

	summary, err := billing.PaymentSummary(ctx, testNow.Add(-time.Hour), testNow.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, &models.PaymentSummary{
		TotalOrders:       4,
		ConfirmedPayments: 1,
		PendingPayments:   1,
		FailedPayments:    1,
		TotalRevenue:      100000,
		PendingRevenue:    45000,
		PerMethodCounts:   map[string]int64{"card": 1, "cash": 2},
	}, summary)

	_, err = billing.PaymentSummary(ctx, testNow, testNow)
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestApplyBillingRejectsOverflowingTax(t *testing.T) {
	store := newFakeStore()
	clock := &fixedClock{t: testNow}
	orders, billing, _ := newTestBilling(store, clock)
	ctx := context.Background()

	order := createZinger(t, orders, "79990001122", 2)

	_, err := billing.ApplyBilling(ctx, order.ID, math.MaxInt64-order.Subtotal+1, "cash")
	assert.ErrorIs(t, err, ErrInvalidOrder)

	current, err := orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Nil(t, current.PaymentStatus)
	assert.Equal(t, current.Subtotal, current.TotalAmount)

	billed, err := billing.ApplyBilling(ctx, order.ID, math.MaxInt64-order.Subtotal, "cash")
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), billed.TotalAmount)
}

func TestCancelledOrderClosesPayment(t *testing.T) {
	store := newFakeStore()
	clock := &fixedClock{t: testNow}
	orders, billing, _ := newTestBilling(store, clock)
	ctx := context.Background()

	order := createZinger(t, orders, "79990001122", 1)
	_, err := billing.ApplyBilling(ctx, order.ID, 0, "cash")
	require.NoError(t, err)

	cancelled, err := orders.UpdateStatus(ctx, order.ID, models.StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, paymentStatus(models.PaymentFailed), cancelled.PaymentStatus)

	_, err = billing.ConfirmPayment(ctx, order.ID, testNow)
	assert.ErrorIs(t, err, ErrPaymentAlreadyTerminal)

	_, err = billing.ApplyBilling(ctx, order.ID, 100, "card")
	assert.ErrorIs(t, err, ErrPaymentAlreadyTerminal)

	current, err := orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, current.Status)
	assert.Equal(t, paymentStatus(models.PaymentFailed), current.PaymentStatus)
	assert.Nil(t, current.PaymentConfirmedAt)

	summary, err := billing.PaymentSummary(ctx, testNow.Add(-time.Hour), testNow.Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, summary.PendingPayments)
	assert.Zero(t, summary.PendingRevenue)

	clock.advance(25 * time.Hour)
	count, err := billing.ExpireStalePending(ctx, DefaultPendingPaymentExpiry)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestCancelledUnbilledOrderRejectsPayment(t *testing.T) {
	store := newFakeStore()
	clock := &fixedClock{t: testNow}
	orders, billing, _ := newTestBilling(store, clock)
	ctx := context.Background()

	order := createZinger(t, orders, "79990001122", 1)
	_, err := orders.UpdateStatus(ctx, order.ID, models.StatusCancelled)
	require.NoError(t, err)

	_, err = billing.ApplyBilling(ctx, order.ID, 0, "cash")
	assert.ErrorIs(t, err, ErrPaymentAlreadyTerminal)

	_, err = billing.ConfirmPayment(ctx, order.ID, testNow)
	assert.ErrorIs(t, err, ErrPaymentAlreadyTerminal)

	current, err := orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Nil(t, current.PaymentStatus)
}

func TestRefundAfterCancel(t *testing.T) {
	store := newFakeStore()
	clock := &fixedClock{t: testNow}
	orders, billing, _ := newTestBilling(store, clock)
	ctx := context.Background()

	order := createZinger(t, orders, "79990001122", 1)
	_, err := billing.ApplyBilling(ctx, order.ID, 0, "card")
	require.NoError(t, err)
	_, err = billing.ConfirmPayment(ctx, order.ID, testNow)
	require.NoError(t, err)

	cancelled, err := orders.UpdateStatus(ctx, order.ID, models.StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, paymentStatus(models.PaymentConfirmed), cancelled.PaymentStatus)

	refunded, err := billing.RefundPayment(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, paymentStatus(models.PaymentRefunded), refunded.PaymentStatus)
	assert.Equal(t, models.StatusCancelled, refunded.Status)
}

func TestDeliveredOrderKeepsCashOnDelivery(t *testing.T) {
	store := newFakeStore()
	clock := &fixedClock{t: testNow}
	orders, billing, _ := newTestBilling(store, clock)
	ctx := context.Background()

	order := createZinger(t, orders, "79990001122", 1)
	_, err := billing.ApplyBilling(ctx, order.ID, 0, "cash")
	require.NoError(t, err)

	for _, status := range []models.OrderStatus{
		models.StatusConfirmed,
		models.StatusPreparing,
		models.StatusReady,
		models.StatusDelivered,
	} {
		_, err := orders.UpdateStatus(ctx, order.ID, status)
		require.NoError(t, err)
	}

	_, err = billing.ApplyBilling(ctx, order.ID, 100, "card")
	assert.ErrorIs(t, err, ErrPaymentAlreadyTerminal)

	confirmed, err := billing.ConfirmPayment(ctx, order.ID, testNow)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDelivered, confirmed.Status)
	assert.Equal(t, paymentStatus(models.PaymentConfirmed), confirmed.PaymentStatus)
}
