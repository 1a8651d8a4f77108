package services

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"CafePos/app/errs"
	"CafePos/app/models"
	"CafePos/app/money"
	"CafePos/app/store"
)

// Reconciliation is the advisory result of closing a drawer. A nonzero
// difference is a recorded outcome, not an error: the shift closes either
// way and the shortage or excess is surfaced for follow-up.
type Reconciliation struct {
	Entry      *models.CashDrawerEntry
	Opening    money.Money
	CashSales  money.Money
	Expected   money.Money
	Counted    money.Money
	Difference money.Money // negative = shortage, positive = excess
}

// Shortage reports whether the counted cash fell below the expected amount.
func (r Reconciliation) Shortage() bool {
	return r.Difference.IsNegative()
}

// DrawerService reconciles each staff member's physical cash drawer against
// recorded cash sales, one entry per staff per calendar day. It reads
// completed orders only; it never mutates them.
type DrawerService struct {
	drawers store.DrawerStore
	orders  store.OrderStore
	now     func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewDrawerService creates a new drawer service.
func NewDrawerService(drawers store.DrawerStore, orders store.OrderStore) *DrawerService {
	return &DrawerService{
		drawers: drawers,
		orders:  orders,
		now:     time.Now,
		locks:   make(map[string]*sync.Mutex),
	}
}

// lockStaff serializes open/close for one staff member, preventing
// double-open and double-close races in-process; the store's unique index
// and update-if-open predicate cover concurrent processes.
func (s *DrawerService) lockStaff(staffID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[staffID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[staffID] = l
	}
	return l
}

// OpenDrawer starts the staff member's drawer session for today with the
// counted opening float. A second open for the same staff and day is
// rejected.
func (s *DrawerService) OpenDrawer(ctx context.Context, staffID, staffName string, opening money.Money, reason string) (*models.CashDrawerEntry, error) {
	lock := s.lockStaff(staffID)
	lock.Lock()
	defer lock.Unlock()

	now := s.now()
	entry := &models.CashDrawerEntry{
		StaffID:       staffID,
		Date:          now.Format(models.DrawerDateFormat),
		StaffName:     staffName,
		OpeningAmount: opening,
		Reason:        reason,
		OpenedAt:      now,
	}

	err := s.drawers.OpenDrawer(ctx, entry)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrConflict):
		return nil, errs.New(errs.KindDrawerAlreadyOpen, "drawer already open for staff %s on %s", staffID, entry.Date)
	default:
		return nil, errs.StoreUnavailable(err)
	}

	log.WithFields(log.Fields{
		"staff_id": staffID,
		"date":     entry.Date,
		"opening":  opening.String(),
	}).Info("cash drawer opened")

	return entry, nil
}

// CurrentDrawer returns today's entry for the staff member, if any.
// Explicit refresh surface for the UI layer.
func (s *DrawerService) CurrentDrawer(ctx context.Context, staffID string) (*models.CashDrawerEntry, error) {
	entry, err := s.drawers.GetDrawer(ctx, staffID, s.now().Format(models.DrawerDateFormat))
	switch {
	case err == nil:
		return entry, nil
	case errors.Is(err, store.ErrNotFound):
		return nil, errs.New(errs.KindNoOpenDrawer, "no drawer entry for staff %s today", staffID)
	default:
		return nil, errs.StoreUnavailable(err)
	}
}

// CloseDrawer records the counted closing amount for today's entry and
// reconciles it: expected = opening float + the cash-attributable portion of
// the staff member's completed orders today. Pure-UPI orders and orders
// still in preparation contribute nothing. Closing twice is rejected.
func (s *DrawerService) CloseDrawer(ctx context.Context, staffID string, counted money.Money) (*Reconciliation, error) {
	lock := s.lockStaff(staffID)
	lock.Lock()
	defer lock.Unlock()

	now := s.now()
	date := now.Format(models.DrawerDateFormat)

	entry, err := s.drawers.GetDrawer(ctx, staffID, date)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		return nil, errs.New(errs.KindNoOpenDrawer, "no open drawer for staff %s today", staffID)
	default:
		return nil, errs.StoreUnavailable(err)
	}
	if entry.Closed {
		return nil, errs.New(errs.KindAlreadyClosed, "drawer for staff %s on %s is already closed", staffID, date)
	}

	cashSales, err := s.cashSales(ctx, staffID, now)
	if err != nil {
		return nil, err
	}

	expected := entry.OpeningAmount.Add(cashSales)
	difference := counted.Sub(expected)

	closedAt := now
	entry.ClosingAmount = counted
	entry.ExpectedAmount = expected
	entry.Difference = difference
	entry.ClosedAt = &closedAt

	if err := s.drawers.CloseDrawer(ctx, entry); err != nil {
		if errors.Is(err, store.ErrStale) {
			return nil, errs.New(errs.KindAlreadyClosed, "drawer for staff %s on %s was closed concurrently", staffID, date)
		}
		return nil, errs.StoreUnavailable(err)
	}
	entry.Closed = true

	rec := &Reconciliation{
		Entry:      entry,
		Opening:    entry.OpeningAmount,
		CashSales:  cashSales,
		Expected:   expected,
		Counted:    counted,
		Difference: difference,
	}

	logger := log.WithFields(log.Fields{
		"staff_id":   staffID,
		"date":       date,
		"expected":   expected.String(),
		"counted":    counted.String(),
		"difference": difference.String(),
	})
	if difference.IsZero() {
		logger.Info("cash drawer closed, balanced")
	} else {
		logger.Warn("cash drawer closed with difference")
	}

	return rec, nil
}

// cashSales sums the cash-attributable portion of the staff member's
// completed orders for the calendar day containing now: the full total for
// cash orders, the cash leg for split orders, nothing for UPI.
func (s *DrawerService) cashSales(ctx context.Context, staffID string, now time.Time) (money.Money, error) {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	orders, err := s.orders.CompletedOrdersByStaff(ctx, staffID, dayStart, dayEnd)
	if err != nil {
		return money.Zero, errs.StoreUnavailable(err)
	}

	total := money.Zero
	for _, order := range orders {
		total = total.Add(order.Payment.CashPortion())
	}
	return total, nil
}
