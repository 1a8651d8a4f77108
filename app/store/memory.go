package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"CafePos/app/models"
)

// Memory is a mutex-guarded in-memory store with the same compare-and-set
// semantics as the database-backed store. It backs tests and lets a terminal
// keep taking orders when the hosted database is unreachable.
type Memory struct {
	mu         sync.RWMutex
	orders     map[string]*models.Order
	drawers    map[string]*models.CashDrawerEntry // keyed staffID + "|" + date
	nextDrawer uint
	customers  map[string]*models.Customer
	menuItems  map[string]*models.MenuItem
}

// NewMemory builds an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		orders:    make(map[string]*models.Order),
		drawers:   make(map[string]*models.CashDrawerEntry),
		customers: make(map[string]*models.Customer),
		menuItems: make(map[string]*models.MenuItem),
	}
}

var _ OrderStore = (*Memory)(nil)
var _ DrawerStore = (*Memory)(nil)
var _ CustomerStore = (*Memory)(nil)
var _ CatalogStore = (*Memory)(nil)

func cloneOrder(o *models.Order) *models.Order {
	c := *o
	c.Lines = make([]models.OrderLine, len(o.Lines))
	copy(c.Lines, o.Lines)
	if o.CustomerID != nil {
		id := *o.CustomerID
		c.CustomerID = &id
	}
	if o.CompletedAt != nil {
		at := *o.CompletedAt
		c.CompletedAt = &at
	}
	return &c
}

// Orders

func (m *Memory) CreateOrder(_ context.Context, order *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[order.ID]; ok {
		return ErrConflict
	}
	m.orders[order.ID] = cloneOrder(order)
	return nil
}

func (m *Memory) GetOrder(_ context.Context, id string) (*models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	order, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneOrder(order), nil
}

func statusIn(s models.OrderStatus, set []models.OrderStatus) bool {
	for _, v := range set {
		if s == v {
			return true
		}
	}
	return false
}

func (m *Memory) SetOrderStatus(_ context.Context, id string, from []models.OrderStatus, to models.OrderStatus, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return ErrNotFound
	}
	if !statusIn(order.Status, from) {
		return ErrStale
	}
	order.Status = to
	order.UpdatedAt = at
	return nil
}

func (m *Memory) CompleteOrder(_ context.Context, id string, payment models.PaymentDetails, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return ErrNotFound
	}
	if !order.Status.IsActive() {
		return ErrStale
	}
	order.Status = models.OrderStatusCompleted
	order.Payment = payment
	completed := at
	order.CompletedAt = &completed
	order.UpdatedAt = at
	return nil
}

func (m *Memory) SetPrintFlag(_ context.Context, id string, flag PrintFlag, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return ErrNotFound
	}
	switch flag {
	case PrintKOT:
		order.KOTPrinted = true
	case PrintBill:
		order.BillPrinted = true
	}
	order.UpdatedAt = at
	return nil
}

func (m *Memory) ActiveOrders(_ context.Context) ([]models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var orders []models.Order
	for _, o := range m.orders {
		if o.Status.IsActive() {
			orders = append(orders, *cloneOrder(o))
		}
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.Before(orders[j].CreatedAt) })
	return orders, nil
}

func (m *Memory) CompletedOrdersByStaff(_ context.Context, staffID string, from, to time.Time) ([]models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var orders []models.Order
	for _, o := range m.orders {
		if o.Status != models.OrderStatusCompleted || o.StaffID != staffID || o.CompletedAt == nil {
			continue
		}
		if o.CompletedAt.Before(from) || !o.CompletedAt.Before(to) {
			continue
		}
		orders = append(orders, *cloneOrder(o))
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].CompletedAt.Before(*orders[j].CompletedAt) })
	return orders, nil
}

// Cash drawer

func drawerKey(staffID, date string) string {
	return staffID + "|" + date
}

func (m *Memory) OpenDrawer(_ context.Context, entry *models.CashDrawerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := drawerKey(entry.StaffID, entry.Date)
	if _, ok := m.drawers[key]; ok {
		return ErrConflict
	}
	m.nextDrawer++
	entry.ID = m.nextDrawer
	stored := *entry
	m.drawers[key] = &stored
	return nil
}

func (m *Memory) GetDrawer(_ context.Context, staffID, date string) (*models.CashDrawerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.drawers[drawerKey(staffID, date)]
	if !ok {
		return nil, ErrNotFound
	}
	c := *entry
	return &c, nil
}

func (m *Memory) CloseDrawer(_ context.Context, entry *models.CashDrawerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.drawers[drawerKey(entry.StaffID, entry.Date)]
	if !ok || stored.ID != entry.ID {
		return ErrStale
	}
	if stored.Closed {
		return ErrStale
	}
	stored.ClosingAmount = entry.ClosingAmount
	stored.ExpectedAmount = entry.ExpectedAmount
	stored.Difference = entry.Difference
	stored.Closed = true
	stored.ClosedAt = entry.ClosedAt
	return nil
}

// Customers

func (m *Memory) GetCustomer(_ context.Context, id string) (*models.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	customer, ok := m.customers[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *customer
	return &c, nil
}

// PutCustomer seeds a customer record. Test and bootstrap helper; customer
// CRUD itself lives outside the engine.
func (m *Memory) PutCustomer(customer *models.Customer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *customer
	m.customers[customer.ID] = &c
}

func (m *Memory) ApplyAccrual(_ context.Context, id string, points int64, visitAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	customer, ok := m.customers[id]
	if !ok {
		return ErrNotFound
	}
	customer.LoyaltyPoints += points
	customer.VisitCount++
	visit := visitAt
	customer.LastVisit = &visit
	return nil
}

func (m *Memory) RedeemPoints(_ context.Context, id string, points int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	customer, ok := m.customers[id]
	if !ok {
		return ErrNotFound
	}
	if customer.LoyaltyPoints < points {
		return ErrStale
	}
	customer.LoyaltyPoints -= points
	return nil
}

// Catalog

// PutMenuItem seeds a catalog row for tests and offline startup.
func (m *Memory) PutMenuItem(item *models.MenuItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *item
	m.menuItems[item.ID] = &c
}

func (m *Memory) GetMenuItem(_ context.Context, id string) (*models.MenuItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.menuItems[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *item
	return &c, nil
}

func (m *Memory) ListMenuItems(_ context.Context) ([]models.MenuItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var items []models.MenuItem
	for _, item := range m.menuItems {
		if item.IsActive {
			items = append(items, *item)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Category != items[j].Category {
			return items[i].Category < items[j].Category
		}
		return items[i].Name < items[j].Name
	})
	return items, nil
}
