package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CafePos/app/models"
	"CafePos/app/money"
)

func pendingOrder(id, staffID string) *models.Order {
	now := time.Now()
	return &models.Order{
		ID:          id,
		Status:      models.OrderStatusPending,
		OrderType:   models.OrderTypeTakeaway,
		StaffID:     staffID,
		TotalAmount: money.FromRupees(100),
		Lines: []models.OrderLine{
			{ItemID: "espresso", Name: "Espresso", UnitPrice: money.FromRupees(100), Quantity: 1},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestCreateOrderRejectsDuplicateID(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.CreateOrder(ctx, pendingOrder("o1", "staff-1")))
	assert.ErrorIs(t, m.CreateOrder(ctx, pendingOrder("o1", "staff-1")), ErrConflict)
}

func TestGetOrderReturnsCopy(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.CreateOrder(ctx, pendingOrder("o1", "staff-1")))

	got, err := m.GetOrder(ctx, "o1")
	require.NoError(t, err)
	got.Status = models.OrderStatusCancelled
	got.Lines[0].Quantity = 99

	fresh, err := m.GetOrder(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, fresh.Status)
	assert.Equal(t, 1, fresh.Lines[0].Quantity)
}

func TestSetOrderStatusPredicate(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.CreateOrder(ctx, pendingOrder("o1", "staff-1")))

	err := m.SetOrderStatus(ctx, "o1", models.ActiveStatuses, models.OrderStatusReady, time.Now())
	require.NoError(t, err)

	// Predicate misses: order is ready, not pending.
	err = m.SetOrderStatus(ctx, "o1", []models.OrderStatus{models.OrderStatusPending}, models.OrderStatusPreparing, time.Now())
	assert.ErrorIs(t, err, ErrStale)

	assert.ErrorIs(t, m.SetOrderStatus(ctx, "missing", models.ActiveStatuses, models.OrderStatusReady, time.Now()), ErrNotFound)
}

func TestCompleteOrderOnlyOnce(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.CreateOrder(ctx, pendingOrder("o1", "staff-1")))

	payment := models.PaymentDetails{Method: models.PaymentCash, CashAmount: money.FromRupees(100), Total: money.FromRupees(100)}
	require.NoError(t, m.CompleteOrder(ctx, "o1", payment, time.Now()))
	assert.ErrorIs(t, m.CompleteOrder(ctx, "o1", payment, time.Now()), ErrStale)

	got, err := m.GetOrder(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)
}

func TestCompletedOrdersByStaffWindow(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	day := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
	inWindow := day.Add(10 * time.Hour)
	payment := models.PaymentDetails{Method: models.PaymentCash, CashAmount: money.FromRupees(100), Total: money.FromRupees(100)}

	require.NoError(t, m.CreateOrder(ctx, pendingOrder("o1", "staff-1")))
	require.NoError(t, m.CompleteOrder(ctx, "o1", payment, inWindow))

	require.NoError(t, m.CreateOrder(ctx, pendingOrder("o2", "staff-1")))
	require.NoError(t, m.CompleteOrder(ctx, "o2", payment, day.AddDate(0, 0, 1)))

	require.NoError(t, m.CreateOrder(ctx, pendingOrder("o3", "staff-2")))
	require.NoError(t, m.CompleteOrder(ctx, "o3", payment, inWindow))

	require.NoError(t, m.CreateOrder(ctx, pendingOrder("o4", "staff-1")))

	got, err := m.CompletedOrdersByStaff(ctx, "staff-1", day, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "o1", got[0].ID)
}

func TestOpenDrawerUniquePerStaffDay(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	entry := &models.CashDrawerEntry{StaffID: "staff-1", Date: "2026-08-29", OpeningAmount: money.FromRupees(1000), OpenedAt: time.Now()}
	require.NoError(t, m.OpenDrawer(ctx, entry))
	assert.NotZero(t, entry.ID)

	dup := &models.CashDrawerEntry{StaffID: "staff-1", Date: "2026-08-29", OpeningAmount: money.FromRupees(2000), OpenedAt: time.Now()}
	assert.ErrorIs(t, m.OpenDrawer(ctx, dup), ErrConflict)

	nextDay := &models.CashDrawerEntry{StaffID: "staff-1", Date: "2026-08-30", OpeningAmount: money.FromRupees(1000), OpenedAt: time.Now()}
	require.NoError(t, m.OpenDrawer(ctx, nextDay))
}

func TestCloseDrawerOnlyOnce(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	entry := &models.CashDrawerEntry{StaffID: "staff-1", Date: "2026-08-29", OpeningAmount: money.FromRupees(1000), OpenedAt: time.Now()}
	require.NoError(t, m.OpenDrawer(ctx, entry))

	closedAt := time.Now()
	entry.ClosingAmount = money.FromRupees(1000)
	entry.ExpectedAmount = money.FromRupees(1000)
	entry.ClosedAt = &closedAt
	require.NoError(t, m.CloseDrawer(ctx, entry))

	assert.ErrorIs(t, m.CloseDrawer(ctx, entry), ErrStale)

	stored, err := m.GetDrawer(ctx, "staff-1", "2026-08-29")
	require.NoError(t, err)
	assert.True(t, stored.Closed)
}

func TestRedeemPointsGuard(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	m.PutCustomer(&models.Customer{ID: "cust-1", LoyaltyPoints: 5})

	assert.ErrorIs(t, m.RedeemPoints(ctx, "cust-1", 6), ErrStale)
	require.NoError(t, m.RedeemPoints(ctx, "cust-1", 5))

	customer, err := m.GetCustomer(ctx, "cust-1")
	require.NoError(t, err)
	assert.Zero(t, customer.LoyaltyPoints)
}

func TestListMenuItemsActiveOnly(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	m.PutMenuItem(&models.MenuItem{ID: "espresso", Name: "Espresso", Category: "beverages", IsActive: true})
	m.PutMenuItem(&models.MenuItem{ID: "retired", Name: "Retired", Category: "snacks", IsActive: false})

	items, err := m.ListMenuItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "espresso", items[0].ID)
}
