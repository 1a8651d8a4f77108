package models

import (
	"time"

	"CafePos/app/money"
)

// DrawerDateFormat is the staff-local calendar day a drawer entry is keyed by.
const DrawerDateFormat = "2006-01-02"

// CashDrawerEntry is one staff member's cash drawer session for one calendar
// day. One entry per (staff, date); closing is recorded exactly once.
// ExpectedAmount and Difference are filled at close: expected is the opening
// float plus the cash-attributable portion of that staff's completed orders
// for the day, difference is counted minus expected. A nonzero difference is
// a recorded outcome, not an error.
type CashDrawerEntry struct {
	ID             uint        `gorm:"primaryKey" json:"id"`
	StaffID        string      `gorm:"uniqueIndex:idx_drawer_staff_date" json:"staff_id"`
	Date           string      `gorm:"uniqueIndex:idx_drawer_staff_date" json:"date"`
	StaffName      string      `json:"staff_name"`
	OpeningAmount  money.Money `json:"opening_amount"`
	ClosingAmount  money.Money `json:"closing_amount"`
	ExpectedAmount money.Money `json:"expected_amount"`
	Difference     money.Money `json:"difference"`
	Closed         bool        `json:"closed"`
	Reason         string      `json:"reason,omitempty"`
	OpenedAt       time.Time   `json:"opened_at"`
	ClosedAt       *time.Time  `json:"closed_at,omitempty"`
}
