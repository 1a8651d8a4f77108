package models

import (
	"database/sql/driver"
	"time"

	"CafePos/app/money"
)

// OrderStatus represents the status of an order
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPreparing OrderStatus = "preparing"
	OrderStatusReady     OrderStatus = "ready"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

func (s OrderStatus) String() string {
	return string(s)
}

func (s *OrderStatus) Scan(value interface{}) error {
	*s = OrderStatus(value.(string))
	return nil
}

func (s OrderStatus) Value() (driver.Value, error) {
	return string(s), nil
}

// IsTerminal reports whether no further status or payment mutation is allowed.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// IsActive reports whether the order is still in the preparation flow.
func (s OrderStatus) IsActive() bool {
	return s == OrderStatusPending || s == OrderStatusPreparing || s == OrderStatusReady
}

// ActiveStatuses are the three pre-terminal states. The UI may move an order
// freely among them.
var ActiveStatuses = []OrderStatus{OrderStatusPending, OrderStatusPreparing, OrderStatusReady}

// OrderType represents how the order is fulfilled
type OrderType string

const (
	OrderTypeDineIn   OrderType = "dine-in"
	OrderTypeTakeaway OrderType = "takeaway"
	OrderTypeDelivery OrderType = "delivery"
)

func (t OrderType) Valid() bool {
	switch t {
	case OrderTypeDineIn, OrderTypeTakeaway, OrderTypeDelivery:
		return true
	}
	return false
}

// PaymentMethod is how a completed order was settled
type PaymentMethod string

const (
	PaymentCash  PaymentMethod = "cash"
	PaymentUPI   PaymentMethod = "upi"
	PaymentSplit PaymentMethod = "split"
)

// PaymentDetails records how an order total was collected. Set exactly once,
// at completion. For split payments CashAmount + UPIAmount must equal Total
// exactly; for cash and upi the single leg carries the full total.
type PaymentDetails struct {
	Method     PaymentMethod `json:"method"`
	CashAmount money.Money   `json:"cash_amount"`
	UPIAmount  money.Money   `json:"upi_amount"`
	Total      money.Money   `json:"total"`
}

// Present reports whether payment has been recorded.
func (p PaymentDetails) Present() bool {
	return p.Method != ""
}

// CashPortion is the part of the payment that entered the physical drawer.
func (p PaymentDetails) CashPortion() money.Money {
	switch p.Method {
	case PaymentCash:
		return p.Total
	case PaymentSplit:
		return p.CashAmount
	}
	return money.Zero
}

// Order represents a customer order. Lines and TotalAmount are snapshots
// taken at checkout; later menu edits never change them.
type Order struct {
	ID          string         `gorm:"primaryKey" json:"id"`
	Lines       []OrderLine    `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"lines"`
	CustomerID  *string        `gorm:"index" json:"customer_id,omitempty"`
	Status      OrderStatus    `gorm:"index" json:"status"`
	OrderType   OrderType      `json:"order_type"`
	TableNumber string         `json:"table_number,omitempty"`
	StaffID     string         `gorm:"index" json:"staff_id"`
	StaffName   string         `json:"staff_name"`
	TotalAmount money.Money    `json:"total_amount"`
	Payment     PaymentDetails `gorm:"embedded;embeddedPrefix:payment_" json:"payment"`
	KOTPrinted  bool           `json:"kot_printed"`
	BillPrinted bool           `json:"bill_printed"`
	Notes       string         `json:"notes,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// OrderLine is one snapshotted cart line. Name and UnitPrice are captured at
// checkout, not references into the live menu.
type OrderLine struct {
	ID        uint        `gorm:"primaryKey" json:"id"`
	OrderID   string      `gorm:"index" json:"order_id"`
	ItemID    string      `json:"item_id"`
	Name      string      `json:"name"`
	UnitPrice money.Money `json:"unit_price"`
	Quantity  int         `json:"quantity"`
	Category  string      `json:"category"`
}

// Subtotal is the line's extended price.
func (l OrderLine) Subtotal() money.Money {
	return l.UnitPrice.MulInt(int64(l.Quantity))
}

// CartLine is an in-progress line owned by a Cart. Destroyed on checkout or
// clear; it becomes an OrderLine snapshot at the checkout commit point.
type CartLine struct {
	ItemID    string      `json:"item_id"`
	Name      string      `json:"name"`
	UnitPrice money.Money `json:"unit_price"`
	Quantity  int         `json:"quantity"`
	Category  string      `json:"category"`
}

// Subtotal is the line's extended price.
func (l CartLine) Subtotal() money.Money {
	return l.UnitPrice.MulInt(int64(l.Quantity))
}
