package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"CafePos/app/models"
)

// Gorm is the production store backed by the engine database.
type Gorm struct {
	db *gorm.DB
}

// NewGorm wraps an initialized database handle.
func NewGorm(db *gorm.DB) *Gorm {
	return &Gorm{db: db}
}

var _ OrderStore = (*Gorm)(nil)
var _ DrawerStore = (*Gorm)(nil)
var _ CustomerStore = (*Gorm)(nil)
var _ CatalogStore = (*Gorm)(nil)

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// isDuplicateKey detects unique-index violations across the sqlite and
// postgres drivers.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}

// Orders

func (g *Gorm) CreateOrder(ctx context.Context, order *models.Order) error {
	return g.db.WithContext(ctx).Create(order).Error
}

func (g *Gorm) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := g.db.WithContext(ctx).Preload("Lines").First(&order, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &order, nil
}

func (g *Gorm) SetOrderStatus(ctx context.Context, id string, from []models.OrderStatus, to models.OrderStatus, at time.Time) error {
	res := g.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return g.staleOrMissing(ctx, id)
	}
	return nil
}

func (g *Gorm) CompleteOrder(ctx context.Context, id string, payment models.PaymentDetails, at time.Time) error {
	res := g.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status IN ?", id, models.ActiveStatuses).
		Updates(map[string]interface{}{
			"status":              models.OrderStatusCompleted,
			"payment_method":      payment.Method,
			"payment_cash_amount": payment.CashAmount,
			"payment_upi_amount":  payment.UPIAmount,
			"payment_total":       payment.Total,
			"completed_at":        at,
			"updated_at":          at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return g.staleOrMissing(ctx, id)
	}
	return nil
}

func (g *Gorm) SetPrintFlag(ctx context.Context, id string, flag PrintFlag, at time.Time) error {
	res := g.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			string(flag): true,
			"updated_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (g *Gorm) ActiveOrders(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	err := g.db.WithContext(ctx).Preload("Lines").
		Where("status IN ?", models.ActiveStatuses).
		Order("created_at ASC").
		Find(&orders).Error
	return orders, err
}

func (g *Gorm) CompletedOrdersByStaff(ctx context.Context, staffID string, from, to time.Time) ([]models.Order, error) {
	var orders []models.Order
	err := g.db.WithContext(ctx).
		Where("staff_id = ? AND status = ? AND completed_at >= ? AND completed_at < ?",
			staffID, models.OrderStatusCompleted, from, to).
		Order("completed_at ASC").
		Find(&orders).Error
	return orders, err
}

// staleOrMissing distinguishes a missed CAS predicate from an unknown id.
func (g *Gorm) staleOrMissing(ctx context.Context, id string) error {
	var count int64
	if err := g.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}
	return ErrStale
}

// Cash drawer

func (g *Gorm) OpenDrawer(ctx context.Context, entry *models.CashDrawerEntry) error {
	err := g.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(entry).Error
	if err != nil {
		if isDuplicateKey(err) {
			return ErrConflict
		}
		return err
	}
	// OnConflict DoNothing reports success with no insert; detect the
	// silent skip so a second open for the same staff/day is rejected.
	if entry.ID == 0 {
		return ErrConflict
	}
	return nil
}

func (g *Gorm) GetDrawer(ctx context.Context, staffID, date string) (*models.CashDrawerEntry, error) {
	var entry models.CashDrawerEntry
	err := g.db.WithContext(ctx).
		Where("staff_id = ? AND date = ?", staffID, date).
		First(&entry).Error
	if err != nil {
		return nil, translate(err)
	}
	return &entry, nil
}

func (g *Gorm) CloseDrawer(ctx context.Context, entry *models.CashDrawerEntry) error {
	res := g.db.WithContext(ctx).Model(&models.CashDrawerEntry{}).
		Where("id = ? AND closed = ?", entry.ID, false).
		Updates(map[string]interface{}{
			"closing_amount":  entry.ClosingAmount,
			"expected_amount": entry.ExpectedAmount,
			"difference":      entry.Difference,
			"closed":          true,
			"closed_at":       entry.ClosedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStale
	}
	return nil
}

// Customers

func (g *Gorm) GetCustomer(ctx context.Context, id string) (*models.Customer, error) {
	var customer models.Customer
	err := g.db.WithContext(ctx).First(&customer, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &customer, nil
}

func (g *Gorm) ApplyAccrual(ctx context.Context, id string, points int64, visitAt time.Time) error {
	res := g.db.WithContext(ctx).Model(&models.Customer{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"loyalty_points": gorm.Expr("loyalty_points + ?", points),
			"visit_count":    gorm.Expr("visit_count + 1"),
			"last_visit":     visitAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (g *Gorm) RedeemPoints(ctx context.Context, id string, points int64) error {
	res := g.db.WithContext(ctx).Model(&models.Customer{}).
		Where("id = ? AND loyalty_points >= ?", id, points).
		Update("loyalty_points", gorm.Expr("loyalty_points - ?", points))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := g.db.WithContext(ctx).Model(&models.Customer{}).
			Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}
		return ErrStale
	}
	return nil
}

// Catalog (read-only)

func (g *Gorm) GetMenuItem(ctx context.Context, id string) (*models.MenuItem, error) {
	var item models.MenuItem
	err := g.db.WithContext(ctx).First(&item, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &item, nil
}

func (g *Gorm) ListMenuItems(ctx context.Context) ([]models.MenuItem, error) {
	var items []models.MenuItem
	err := g.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("category, name").
		Find(&items).Error
	return items, err
}
