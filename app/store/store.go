package store

import (
	"context"
	"errors"
	"time"

	"CafePos/app/models"
)

// Sentinel conditions the service layer translates into caller-facing error
// kinds. Anything else coming out of a store is treated as the store being
// unavailable.
var (
	// ErrNotFound means the keyed record does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrConflict means an insert-if-absent hit an existing record.
	ErrConflict = errors.New("store: conflict")
	// ErrStale means an update-if-matches predicate matched nothing: the
	// record moved on under a concurrent caller.
	ErrStale = errors.New("store: stale state")
)

// PrintFlag names one of the order's printed-at-least-once markers.
type PrintFlag string

const (
	PrintKOT  PrintFlag = "kot_printed"
	PrintBill PrintFlag = "bill_printed"
)

// OrderStore persists orders. Status-changing writes are compare-and-set:
// they only apply while the current status is in the given set, and report
// ErrStale otherwise, so exactly one of any set of concurrent callers wins.
type OrderStore interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrder(ctx context.Context, id string) (*models.Order, error)

	// SetOrderStatus moves the order to status iff its current status is in
	// from. Used for preparation-state jumps and cancellation.
	SetOrderStatus(ctx context.Context, id string, from []models.OrderStatus, to models.OrderStatus, at time.Time) error

	// CompleteOrder attaches payment and stamps completion iff the order is
	// still active.
	CompleteOrder(ctx context.Context, id string, payment models.PaymentDetails, at time.Time) error

	// SetPrintFlag marks a print flag true. Idempotent.
	SetPrintFlag(ctx context.Context, id string, flag PrintFlag, at time.Time) error

	ActiveOrders(ctx context.Context) ([]models.Order, error)

	// CompletedOrdersByStaff returns orders completed by the staff member in
	// [from, to), for drawer reconciliation.
	CompletedOrdersByStaff(ctx context.Context, staffID string, from, to time.Time) ([]models.Order, error)
}

// DrawerStore persists cash drawer sessions. OpenDrawer is insert-if-absent
// on (staff, date); CloseDrawer is update-if-still-open.
type DrawerStore interface {
	OpenDrawer(ctx context.Context, entry *models.CashDrawerEntry) error
	GetDrawer(ctx context.Context, staffID, date string) (*models.CashDrawerEntry, error)
	CloseDrawer(ctx context.Context, entry *models.CashDrawerEntry) error
}

// CustomerStore persists loyalty state.
type CustomerStore interface {
	GetCustomer(ctx context.Context, id string) (*models.Customer, error)

	// ApplyAccrual credits points and records the visit.
	ApplyAccrual(ctx context.Context, id string, points int64, visitAt time.Time) error

	// RedeemPoints debits points iff the balance covers them; ErrStale when
	// it does not. The balance never goes negative.
	RedeemPoints(ctx context.Context, id string, points int64) error
}

// CatalogStore is the read-only menu surface the cart snapshots from.
type CatalogStore interface {
	GetMenuItem(ctx context.Context, id string) (*models.MenuItem, error)
	ListMenuItems(ctx context.Context) ([]models.MenuItem, error)
}
