package services

import (
	"context"
	"errors"
	"sync"

	"github.com/shopspring/decimal"

	"CafePos/app/errs"
	"CafePos/app/models"
	"CafePos/app/money"
	"CafePos/app/store"
)

// DiscountKind selects how a cart discount is computed
type DiscountKind string

const (
	DiscountPercentage  DiscountKind = "percentage"
	DiscountFixedAmount DiscountKind = "fixed"
)

// CartEvents receives UI feedback events from a cart. Implementations must
// not block; the notification hub's sink drops when saturated.
type CartEvents interface {
	ItemAdded(line models.CartLine)
}

// Cart aggregates line items before checkout. One cart per terminal; all
// mutations are all-or-nothing under a single mutex. Lines snapshot the
// catalog name and price at add time.
type Cart struct {
	mu       sync.Mutex
	catalog  store.CatalogStore
	events   CartEvents
	lines    []models.CartLine
	discount DiscountKind
	percent  decimal.Decimal
	fixed    money.Money
}

// NewCart builds an empty cart over the given catalog. events may be nil.
func NewCart(catalog store.CatalogStore, events CartEvents) *Cart {
	return &Cart{catalog: catalog, events: events}
}

// AddLine adds qty of the item, merging with an existing line for the same
// item. Exactly one ItemAdded event is emitted per successful call.
func (c *Cart) AddLine(ctx context.Context, itemID string, qty int) error {
	if qty < 1 {
		qty = 1
	}

	item, err := c.catalog.GetMenuItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errs.New(errs.KindInvalidItem, "unknown menu item %q", itemID)
		}
		return errs.StoreUnavailable(err)
	}
	if !item.IsActive {
		return errs.New(errs.KindInvalidItem, "menu item %q is not available", itemID)
	}

	c.mu.Lock()
	var added models.CartLine
	if i := c.index(itemID); i >= 0 {
		c.lines[i].Quantity += qty
		added = c.lines[i]
	} else {
		added = models.CartLine{
			ItemID:    item.ID,
			Name:      item.Name,
			UnitPrice: item.Price,
			Quantity:  qty,
			Category:  item.Category,
		}
		c.lines = append(c.lines, added)
	}
	c.mu.Unlock()

	if c.events != nil {
		c.events.ItemAdded(added)
	}
	return nil
}

// SetQuantity sets the line's quantity exactly; qty <= 0 removes the line.
func (c *Cart) SetQuantity(itemID string, qty int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.index(itemID)
	if i < 0 {
		return errs.New(errs.KindInvalidItem, "item %q not in cart", itemID)
	}
	if qty <= 0 {
		c.lines = append(c.lines[:i], c.lines[i+1:]...)
		return nil
	}
	c.lines[i].Quantity = qty
	return nil
}

// RemoveLine removes the item's line if present.
func (c *Cart) RemoveLine(itemID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.index(itemID); i >= 0 {
		c.lines = append(c.lines[:i], c.lines[i+1:]...)
	}
}

// Clear drops all lines and any applied discount.
func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearLocked()
}

func (c *Cart) clearLocked() {
	c.lines = nil
	c.discount = ""
	c.percent = decimal.Zero
	c.fixed = money.Zero
}

// Lines returns a copy of the current lines.
func (c *Cart) Lines() []models.CartLine {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lines) == 0
}

// Subtotal sums unit price times quantity over all lines.
func (c *Cart) Subtotal() money.Money {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subtotalLocked()
}

func (c *Cart) subtotalLocked() money.Money {
	total := money.Zero
	for _, line := range c.lines {
		total = total.Add(line.Subtotal())
	}
	return total
}

// ApplyDiscount sets the cart discount. Percentage must be within [0,100];
// a fixed amount is clamped to [0, subtotal] at total time, so the total
// never goes negative. The discount is cleared by Clear.
func (c *Cart) ApplyDiscount(kind DiscountKind, value decimal.Decimal) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch kind {
	case DiscountPercentage:
		if value.IsNegative() || value.GreaterThan(decimal.NewFromInt(100)) {
			return errs.New(errs.KindInvalidItem, "percentage discount must be in [0,100], got %s", value)
		}
		c.discount = kind
		c.percent = value
	case DiscountFixedAmount:
		p := value.Shift(2)
		if !p.IsInteger() || p.IsNegative() {
			return errs.New(errs.KindInvalidItem, "fixed discount must be a non-negative amount, got %s", value)
		}
		c.discount = kind
		c.fixed = money.FromPaise(p.IntPart())
	default:
		return errs.New(errs.KindInvalidItem, "unknown discount kind %q", kind)
	}
	return nil
}

// Discount returns the discount amount for the current subtotal.
func (c *Cart) Discount() money.Money {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.discountLocked(c.subtotalLocked())
}

func (c *Cart) discountLocked(subtotal money.Money) money.Money {
	switch c.discount {
	case DiscountPercentage:
		return subtotal.Percent(c.percent)
	case DiscountFixedAmount:
		if c.fixed.Cmp(subtotal) > 0 {
			return subtotal
		}
		return c.fixed
	}
	return money.Zero
}

// Total is max(0, subtotal minus discount).
func (c *Cart) Total() money.Money {
	c.mu.Lock()
	defer c.mu.Unlock()
	subtotal := c.subtotalLocked()
	return money.Max(money.Zero, subtotal.Sub(c.discountLocked(subtotal)))
}

func (c *Cart) index(itemID string) int {
	for i, line := range c.lines {
		if line.ItemID == itemID {
			return i
		}
	}
	return -1
}

// snapshot converts the cart lines to order line snapshots and returns the
// total the order will carry. The cart itself is cleared by the order
// service only after the order has been persisted.
func (c *Cart) snapshot() ([]models.OrderLine, money.Money) {
	c.mu.Lock()
	defer c.mu.Unlock()

	lines := make([]models.OrderLine, len(c.lines))
	for i, l := range c.lines {
		lines[i] = models.OrderLine{
			ItemID:    l.ItemID,
			Name:      l.Name,
			UnitPrice: l.UnitPrice,
			Quantity:  l.Quantity,
			Category:  l.Category,
		}
	}
	subtotal := c.subtotalLocked()
	return lines, money.Max(money.Zero, subtotal.Sub(c.discountLocked(subtotal)))
}
