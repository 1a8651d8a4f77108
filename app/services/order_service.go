package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"CafePos/app/errs"
	"CafePos/app/models"
	"CafePos/app/money"
	"CafePos/app/store"
)

// CheckoutRequest carries everything checkout needs besides the cart.
type CheckoutRequest struct {
	CustomerID  *string
	OrderType   models.OrderType
	TableNumber string
	StaffID     string
	StaffName   string
	Notes       string
}

// CompletionNotifier receives the post-commit completion event. Dispatch is
// fire-and-forget: the order is already durably completed when this runs.
type CompletionNotifier interface {
	EnqueueCompletion(order *models.Order)
}

// Accruer credits loyalty on completion.
type Accruer interface {
	Accrue(ctx context.Context, customerID string, order *models.Order) error
}

// OrderService owns the order lifecycle: checkout commit, preparation-state
// transitions, payment-gated completion, cancellation and print flags.
// Completion and cancellation are serialized per order id; the store's
// compare-and-set predicates back that up across processes.
type OrderService struct {
	orders   store.OrderStore
	loyalty  Accruer
	notifier CompletionNotifier
	now      func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewOrderService creates a new order service. loyalty and notifier may be
// nil when those side effects are not wired (tests, headless tools).
func NewOrderService(orders store.OrderStore, loyalty Accruer, notifier CompletionNotifier) *OrderService {
	return &OrderService{
		orders:   orders,
		loyalty:  loyalty,
		notifier: notifier,
		now:      time.Now,
		locks:    make(map[string]*sync.Mutex),
	}
}

// lockOrder returns the mutation lock for one order id.
func (s *OrderService) lockOrder(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

// Checkout turns the cart into a pending order. This is the single commit
// point: line names and prices are snapshotted here, the total is computed
// once from the cart, and the cart is cleared only after the order has been
// persisted. No partial order is ever visible.
func (s *OrderService) Checkout(ctx context.Context, cart *Cart, req CheckoutRequest) (*models.Order, error) {
	if cart.IsEmpty() {
		return nil, errs.New(errs.KindEmptyCart, "cannot checkout an empty cart")
	}
	if !req.OrderType.Valid() {
		return nil, errs.New(errs.KindInvalidTransition, "unknown order type %q", req.OrderType)
	}
	if req.OrderType == models.OrderTypeDineIn && req.TableNumber == "" {
		return nil, errs.New(errs.KindMissingTable, "dine-in orders require a table number")
	}

	lines, total := cart.snapshot()
	now := s.now()
	order := &models.Order{
		ID:          uuid.NewString(),
		Lines:       lines,
		CustomerID:  req.CustomerID,
		Status:      models.OrderStatusPending,
		OrderType:   req.OrderType,
		TableNumber: req.TableNumber,
		StaffID:     req.StaffID,
		StaffName:   req.StaffName,
		TotalAmount: total,
		Notes:       req.Notes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.orders.CreateOrder(ctx, order); err != nil {
		return nil, errs.StoreUnavailable(err)
	}

	// Cart lines are destroyed only once the order is durable.
	cart.Clear()

	log.WithFields(log.Fields{
		"order_id": order.ID,
		"staff_id": order.StaffID,
		"type":     order.OrderType,
		"total":    order.TotalAmount.String(),
	}).Info("order created")

	return order, nil
}

// GetOrder returns the order by id.
func (s *OrderService) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	order, err := s.orders.GetOrder(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errs.Wrap(errs.KindOrderNotActive, err, "order %s not found", id)
		}
		return nil, errs.StoreUnavailable(err)
	}
	return order, nil
}

// ActiveOrders lists orders still in preparation, oldest first. Explicit
// refresh surface for the UI layer.
func (s *OrderService) ActiveOrders(ctx context.Context) ([]models.Order, error) {
	orders, err := s.orders.ActiveOrders(ctx)
	if err != nil {
		return nil, errs.StoreUnavailable(err)
	}
	return orders, nil
}

// UpdateStatus moves an order among the three active preparation states.
// Jumps in any direction are allowed while the order is active; terminal
// orders reject any further status change.
func (s *OrderService) UpdateStatus(ctx context.Context, id string, status models.OrderStatus) error {
	if !status.IsActive() {
		return errs.New(errs.KindInvalidTransition, "status %q is not a preparation state", status)
	}

	err := s.orders.SetOrderStatus(ctx, id, models.ActiveStatuses, status, s.now())
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return errs.Wrap(errs.KindOrderNotActive, err, "order %s not found", id)
	case errors.Is(err, store.ErrStale):
		return errs.New(errs.KindInvalidTransition, "order %s is already settled", id)
	default:
		return errs.StoreUnavailable(err)
	}
}

// CompleteOrder settles an order: validates the payment against the order's
// immutable total, commits the terminal transition, then fires post-commit
// side effects (loyalty accrual, customer notification). Exactly one of any
// set of concurrent callers succeeds; the rest observe AlreadyCompleted or
// OrderNotActive.
func (s *OrderService) CompleteOrder(ctx context.Context, id string, payment models.PaymentDetails) (*models.Order, error) {
	lock := s.lockOrder(id)
	lock.Lock()
	defer lock.Unlock()

	order, err := s.orders.GetOrder(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errs.Wrap(errs.KindOrderNotActive, err, "order %s not found", id)
		}
		return nil, errs.StoreUnavailable(err)
	}

	switch order.Status {
	case models.OrderStatusCompleted:
		return nil, errs.New(errs.KindAlreadyCompleted, "order %s is already completed", id)
	case models.OrderStatusCancelled:
		return nil, errs.New(errs.KindOrderNotActive, "order %s is cancelled", id)
	}

	payment.Total = order.TotalAmount
	if err := checkPayment(payment, order.TotalAmount); err != nil {
		return nil, err
	}

	completedAt := s.now()
	if err := s.orders.CompleteOrder(ctx, id, payment, completedAt); err != nil {
		switch {
		case errors.Is(err, store.ErrStale):
			// A concurrent caller won the race since our read.
			return nil, errs.New(errs.KindAlreadyCompleted, "order %s was settled concurrently", id)
		case errors.Is(err, store.ErrNotFound):
			return nil, errs.Wrap(errs.KindOrderNotActive, err, "order %s not found", id)
		default:
			return nil, errs.StoreUnavailable(err)
		}
	}

	order.Status = models.OrderStatusCompleted
	order.Payment = payment
	order.CompletedAt = &completedAt
	order.UpdatedAt = completedAt

	log.WithFields(log.Fields{
		"order_id": order.ID,
		"method":   payment.Method,
		"total":    payment.Total.String(),
	}).Info("order completed")

	// Post-commit side effects. Payment has been physically collected; a
	// failure here is reported, never rolled back.
	if order.CustomerID != nil && s.loyalty != nil {
		if err := s.loyalty.Accrue(ctx, *order.CustomerID, order); err != nil {
			log.WithError(err).WithFields(log.Fields{
				"order_id":    order.ID,
				"customer_id": *order.CustomerID,
			}).Warn("loyalty accrual failed after completion")
		}
	}
	if s.notifier != nil {
		s.notifier.EnqueueCompletion(order)
	}

	return order, nil
}

// checkPayment enforces the completeness invariant for each method with
// exact Money equality. Under-payment is rejected with the deficit; there is
// no rounding grace window.
func checkPayment(p models.PaymentDetails, total money.Money) error {
	switch p.Method {
	case models.PaymentCash:
		if !p.CashAmount.Equal(total) || !p.UPIAmount.IsZero() {
			return errs.PaymentMismatch(total.Sub(p.CashAmount))
		}
	case models.PaymentUPI:
		if !p.UPIAmount.Equal(total) || !p.CashAmount.IsZero() {
			return errs.PaymentMismatch(total.Sub(p.UPIAmount))
		}
	case models.PaymentSplit:
		paid := p.CashAmount.Add(p.UPIAmount)
		if !paid.Equal(total) {
			return errs.PaymentMismatch(total.Sub(paid))
		}
	default:
		return errs.New(errs.KindPaymentMismatch, "unknown payment method %q", p.Method)
	}
	if p.CashAmount.IsNegative() || p.UPIAmount.IsNegative() {
		return errs.New(errs.KindPaymentMismatch, "payment legs must be non-negative")
	}
	return nil
}

// CancelOrder moves an active order to cancelled. Terminal orders reject.
func (s *OrderService) CancelOrder(ctx context.Context, id string) error {
	lock := s.lockOrder(id)
	lock.Lock()
	defer lock.Unlock()

	err := s.orders.SetOrderStatus(ctx, id, models.ActiveStatuses, models.OrderStatusCancelled, s.now())
	switch {
	case err == nil:
		log.WithField("order_id", id).Info("order cancelled")
		return nil
	case errors.Is(err, store.ErrNotFound):
		return errs.Wrap(errs.KindOrderNotActive, err, "order %s not found", id)
	case errors.Is(err, store.ErrStale):
		return errs.New(errs.KindOrderNotActive, "order %s is already settled", id)
	default:
		return errs.StoreUnavailable(err)
	}
}

// MarkKOTPrinted records that the kitchen ticket has been printed at least
// once. Idempotent: repeat calls are no-ops, not errors.
func (s *OrderService) MarkKOTPrinted(ctx context.Context, id string) error {
	return s.markPrinted(ctx, id, store.PrintKOT)
}

// MarkBillPrinted records that the bill has been printed at least once.
// Idempotent like MarkKOTPrinted.
func (s *OrderService) MarkBillPrinted(ctx context.Context, id string) error {
	return s.markPrinted(ctx, id, store.PrintBill)
}

func (s *OrderService) markPrinted(ctx context.Context, id string, flag store.PrintFlag) error {
	err := s.orders.SetPrintFlag(ctx, id, flag, s.now())
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return errs.Wrap(errs.KindOrderNotActive, err, "order %s not found", id)
	default:
		return errs.StoreUnavailable(err)
	}
}
