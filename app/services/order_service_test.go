package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CafePos/app/errs"
	"CafePos/app/models"
	"CafePos/app/money"
	"CafePos/app/store"
)

type completionRecorder struct {
	mu     sync.Mutex
	orders []*models.Order
}

func (r *completionRecorder) EnqueueCompletion(order *models.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders = append(r.orders, order)
}

func (r *completionRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.orders)
}

type failingAccruer struct{}

func (failingAccruer) Accrue(context.Context, string, *models.Order) error {
	return errors.New("loyalty backend down")
}

// checkoutOrder builds a ₹270 dine-in order: 2x Cappuccino + 1x Samosa
// with a 10% discount.
func checkoutOrder(t *testing.T, mem *store.Memory, svc *OrderService) *models.Order {
	t.Helper()
	ctx := context.Background()

	cart := NewCart(mem, nil)
	require.NoError(t, cart.AddLine(ctx, "cappuccino", 2))
	require.NoError(t, cart.AddLine(ctx, "samosa", 1))
	require.NoError(t, cart.ApplyDiscount(DiscountPercentage, decimal.NewFromInt(10)))

	order, err := svc.Checkout(ctx, cart, CheckoutRequest{
		OrderType:   models.OrderTypeDineIn,
		TableNumber: "5",
		StaffID:     "staff-1",
		StaffName:   "Asha",
	})
	require.NoError(t, err)
	return order
}

func TestCheckoutEmptyCart(t *testing.T) {
	mem := seedCatalog(t)
	svc := NewOrderService(mem, nil, nil)

	_, err := svc.Checkout(context.Background(), NewCart(mem, nil), CheckoutRequest{
		OrderType: models.OrderTypeTakeaway,
		StaffID:   "staff-1",
	})
	assert.True(t, errs.IsKind(err, errs.KindEmptyCart))
}

func TestCheckoutDineInRequiresTable(t *testing.T) {
	mem := seedCatalog(t)
	svc := NewOrderService(mem, nil, nil)
	ctx := context.Background()

	cart := NewCart(mem, nil)
	require.NoError(t, cart.AddLine(ctx, "samosa", 1))

	_, err := svc.Checkout(ctx, cart, CheckoutRequest{
		OrderType: models.OrderTypeDineIn,
		StaffID:   "staff-1",
	})
	assert.True(t, errs.IsKind(err, errs.KindMissingTable))

	// Nothing was committed and the cart is intact.
	assert.False(t, cart.IsEmpty())
	active, err := svc.ActiveOrders(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestCheckoutCommitsAndClearsCart(t *testing.T) {
	mem := seedCatalog(t)
	svc := NewOrderService(mem, nil, nil)
	ctx := context.Background()

	cart := NewCart(mem, nil)
	require.NoError(t, cart.AddLine(ctx, "cappuccino", 2))
	require.NoError(t, cart.AddLine(ctx, "samosa", 1))
	require.NoError(t, cart.ApplyDiscount(DiscountPercentage, decimal.NewFromInt(10)))

	order, err := svc.Checkout(ctx, cart, CheckoutRequest{
		OrderType:   models.OrderTypeDineIn,
		TableNumber: "5",
		StaffID:     "staff-1",
		StaffName:   "Asha",
	})
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, money.FromRupees(270), order.TotalAmount)
	assert.Equal(t, "5", order.TableNumber)
	assert.Len(t, order.Lines, 2)
	assert.True(t, cart.IsEmpty())

	stored, err := svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.TotalAmount, stored.TotalAmount)
}

func TestTotalSurvivesMenuEdit(t *testing.T) {
	mem := seedCatalog(t)
	svc := NewOrderService(mem, nil, nil)
	ctx := context.Background()

	order := checkoutOrder(t, mem, svc)

	// Reprice the menu between checkout and settlement.
	mem.PutMenuItem(&models.MenuItem{ID: "cappuccino", Name: "Cappuccino", Price: money.FromRupees(999), Category: "beverages", IsActive: true})

	settled, err := svc.CompleteOrder(ctx, order.ID, models.PaymentDetails{
		Method:     models.PaymentCash,
		CashAmount: money.FromRupees(270),
	})
	require.NoError(t, err)
	assert.Equal(t, money.FromRupees(270), settled.TotalAmount)
}

func TestUpdateStatusJumps(t *testing.T) {
	mem := seedCatalog(t)
	svc := NewOrderService(mem, nil, nil)
	ctx := context.Background()
	order := checkoutOrder(t, mem, svc)

	require.NoError(t, svc.UpdateStatus(ctx, order.ID, models.OrderStatusReady))
	require.NoError(t, svc.UpdateStatus(ctx, order.ID, models.OrderStatusPreparing))
	require.NoError(t, svc.UpdateStatus(ctx, order.ID, models.OrderStatusReady))

	err := svc.UpdateStatus(ctx, order.ID, models.OrderStatusCompleted)
	assert.True(t, errs.IsKind(err, errs.KindInvalidTransition), "completion must go through payment")
}

func TestUpdateStatusAfterSettlement(t *testing.T) {
	mem := seedCatalog(t)
	svc := NewOrderService(mem, nil, nil)
	ctx := context.Background()
	order := checkoutOrder(t, mem, svc)

	_, err := svc.CompleteOrder(ctx, order.ID, models.PaymentDetails{
		Method:     models.PaymentCash,
		CashAmount: money.FromRupees(270),
	})
	require.NoError(t, err)

	err = svc.UpdateStatus(ctx, order.ID, models.OrderStatusPreparing)
	assert.True(t, errs.IsKind(err, errs.KindInvalidTransition))
}

func TestCompleteOrderCashShortfall(t *testing.T) {
	mem := seedCatalog(t)
	svc := NewOrderService(mem, nil, nil)
	ctx := context.Background()
	order := checkoutOrder(t, mem, svc)

	_, err := svc.CompleteOrder(ctx, order.ID, models.PaymentDetails{
		Method:     models.PaymentCash,
		CashAmount: money.FromRupees(200),
	})
	require.True(t, errs.IsKind(err, errs.KindPaymentMismatch))

	var e *errs.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, money.FromRupees(70), e.Deficit)

	// The order is still active and payable.
	stored, err := svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, stored.Status)
	assert.False(t, stored.Payment.Present())
}

func TestCompleteOrderSplitExact(t *testing.T) {
	mem := seedCatalog(t)
	svc := NewOrderService(mem, nil, nil)
	ctx := context.Background()
	order := checkoutOrder(t, mem, svc)

	_, err := svc.CompleteOrder(ctx, order.ID, models.PaymentDetails{
		Method:     models.PaymentSplit,
		CashAmount: money.FromRupees(100),
		UPIAmount:  money.FromRupees(100),
	})
	assert.True(t, errs.IsKind(err, errs.KindPaymentMismatch))

	settled, err := svc.CompleteOrder(ctx, order.ID, models.PaymentDetails{
		Method:     models.PaymentSplit,
		CashAmount: money.FromRupees(100),
		UPIAmount:  money.FromRupees(170),
	})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, settled.Status)
	assert.NotNil(t, settled.CompletedAt)
	assert.Equal(t, money.FromRupees(100), settled.Payment.CashPortion())
}

func TestCompleteOrderTwice(t *testing.T) {
	mem := seedCatalog(t)
	svc := NewOrderService(mem, nil, nil)
	ctx := context.Background()
	order := checkoutOrder(t, mem, svc)

	payment := models.PaymentDetails{Method: models.PaymentUPI, UPIAmount: money.FromRupees(270)}
	_, err := svc.CompleteOrder(ctx, order.ID, payment)
	require.NoError(t, err)

	_, err = svc.CompleteOrder(ctx, order.ID, models.PaymentDetails{
		Method:     models.PaymentCash,
		CashAmount: money.FromRupees(270),
	})
	assert.True(t, errs.IsKind(err, errs.KindAlreadyCompleted))

	// The rejected attempt must not disturb the recorded settlement.
	stored, err := svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentUPI, stored.Payment.Method)
	assert.True(t, stored.Payment.UPIAmount.Equal(money.FromRupees(270)))
	assert.True(t, stored.Payment.CashAmount.IsZero())
}

func TestCompleteCancelledOrder(t *testing.T) {
	mem := seedCatalog(t)
	svc := NewOrderService(mem, nil, nil)
	ctx := context.Background()
	order := checkoutOrder(t, mem, svc)

	require.NoError(t, svc.CancelOrder(ctx, order.ID))

	_, err := svc.CompleteOrder(ctx, order.ID, models.PaymentDetails{
		Method:     models.PaymentCash,
		CashAmount: money.FromRupees(270),
	})
	assert.True(t, errs.IsKind(err, errs.KindOrderNotActive))
}

func TestCancelCompletedOrder(t *testing.T) {
	mem := seedCatalog(t)
	svc := NewOrderService(mem, nil, nil)
	ctx := context.Background()
	order := checkoutOrder(t, mem, svc)

	_, err := svc.CompleteOrder(ctx, order.ID, models.PaymentDetails{
		Method:     models.PaymentCash,
		CashAmount: money.FromRupees(270),
	})
	require.NoError(t, err)

	err = svc.CancelOrder(ctx, order.ID)
	assert.True(t, errs.IsKind(err, errs.KindOrderNotActive))
}

func TestConcurrentCompletionSingleWinner(t *testing.T) {
	mem := seedCatalog(t)
	rec := &completionRecorder{}
	svc := NewOrderService(mem, nil, rec)
	ctx := context.Background()
	order := checkoutOrder(t, mem, svc)

	const attempts = 16
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CompleteOrder(ctx, order.ID, models.PaymentDetails{
				Method:     models.PaymentCash,
				CashAmount: money.FromRupees(270),
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var wins, already int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errs.IsKind(err, errs.KindAlreadyCompleted):
			already++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, attempts-1, already)
	assert.Equal(t, 1, rec.count())
}

func TestAccrualFailureDoesNotUndoCompletion(t *testing.T) {
	mem := seedCatalog(t)
	rec := &completionRecorder{}
	svc := NewOrderService(mem, failingAccruer{}, rec)
	ctx := context.Background()

	cart := NewCart(mem, nil)
	require.NoError(t, cart.AddLine(ctx, "samosa", 1))
	customerID := "cust-1"
	order, err := svc.Checkout(ctx, cart, CheckoutRequest{
		CustomerID: &customerID,
		OrderType:  models.OrderTypeTakeaway,
		StaffID:    "staff-1",
	})
	require.NoError(t, err)

	settled, err := svc.CompleteOrder(ctx, order.ID, models.PaymentDetails{
		Method:     models.PaymentCash,
		CashAmount: money.FromRupees(60),
	})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, settled.Status)
	assert.Equal(t, 1, rec.count())
}

func TestMarkPrintedIdempotent(t *testing.T) {
	mem := seedCatalog(t)
	svc := NewOrderService(mem, nil, nil)
	ctx := context.Background()
	order := checkoutOrder(t, mem, svc)

	require.NoError(t, svc.MarkKOTPrinted(ctx, order.ID))
	require.NoError(t, svc.MarkKOTPrinted(ctx, order.ID))
	require.NoError(t, svc.MarkBillPrinted(ctx, order.ID))

	stored, err := svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, stored.KOTPrinted)
	assert.True(t, stored.BillPrinted)

	err = svc.MarkKOTPrinted(ctx, "no-such-order")
	assert.True(t, errs.IsKind(err, errs.KindOrderNotActive))
}
