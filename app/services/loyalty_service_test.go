package services

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CafePos/app/errs"
	"CafePos/app/models"
	"CafePos/app/money"
	"CafePos/app/store"
)

func loyaltyFixture(t *testing.T) (*store.Memory, *LoyaltyService) {
	t.Helper()
	mem := store.NewMemory()
	mem.PutCustomer(&models.Customer{ID: "cust-1", Name: "Ravi", LoyaltyPoints: 10})
	return mem, NewLoyaltyService(mem, decimal.NewFromInt(1))
}

func completedOrder(total money.Money) *models.Order {
	at := time.Now()
	return &models.Order{
		ID:          "order-1",
		Status:      models.OrderStatusCompleted,
		TotalAmount: total,
		CompletedAt: &at,
	}
}

func TestPointsForFloors(t *testing.T) {
	_, svc := loyaltyFixture(t)

	assert.Equal(t, int64(2), svc.PointsFor(completedOrder(money.FromRupees(270))))
	assert.Equal(t, int64(0), svc.PointsFor(completedOrder(money.FromRupees(99))))
	assert.Equal(t, int64(1), svc.PointsFor(completedOrder(money.FromRupees(100))))
}

func TestPointsForCustomRate(t *testing.T) {
	mem := store.NewMemory()
	svc := NewLoyaltyService(mem, decimal.RequireFromString("2.5"))

	// 270/100 * 2.5 = 6.75, floored.
	assert.Equal(t, int64(6), svc.PointsFor(completedOrder(money.FromRupees(270))))
}

func TestAccrueCreditsAndRecordsVisit(t *testing.T) {
	_, svc := loyaltyFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.Accrue(ctx, "cust-1", completedOrder(money.FromRupees(270))))

	customer, err := svc.GetCustomer(ctx, "cust-1")
	require.NoError(t, err)
	assert.Equal(t, int64(12), customer.LoyaltyPoints)
	assert.Equal(t, 1, customer.VisitCount)
	assert.NotNil(t, customer.LastVisit)
}

func TestAccrueRequiresCompletedOrder(t *testing.T) {
	_, svc := loyaltyFixture(t)

	order := &models.Order{ID: "order-1", Status: models.OrderStatusPending, TotalAmount: money.FromRupees(100)}
	err := svc.Accrue(context.Background(), "cust-1", order)
	assert.True(t, errs.IsKind(err, errs.KindOrderNotActive))
}

func TestAccrueUnknownCustomer(t *testing.T) {
	_, svc := loyaltyFixture(t)

	err := svc.Accrue(context.Background(), "nobody", completedOrder(money.FromRupees(100)))
	assert.True(t, errs.IsKind(err, errs.KindInvalidItem))
}

func TestRedeem(t *testing.T) {
	_, svc := loyaltyFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.Redeem(ctx, "cust-1", 4))

	customer, err := svc.GetCustomer(ctx, "cust-1")
	require.NoError(t, err)
	assert.Equal(t, int64(6), customer.LoyaltyPoints)
}

func TestRedeemBeyondBalance(t *testing.T) {
	_, svc := loyaltyFixture(t)
	ctx := context.Background()

	err := svc.Redeem(ctx, "cust-1", 11)
	assert.True(t, errs.IsKind(err, errs.KindInsufficientPoints))

	// Balance is untouched by the failed redemption.
	customer, err := svc.GetCustomer(ctx, "cust-1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), customer.LoyaltyPoints)
}

func TestRedeemRequiresPositivePoints(t *testing.T) {
	_, svc := loyaltyFixture(t)

	err := svc.Redeem(context.Background(), "cust-1", 0)
	assert.True(t, errs.IsKind(err, errs.KindInsufficientPoints))

	err = svc.Redeem(context.Background(), "cust-1", -5)
	assert.True(t, errs.IsKind(err, errs.KindInsufficientPoints))
}
