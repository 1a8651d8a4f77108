package models

import (
	"time"

	"gorm.io/gorm"
)

// Customer holds the loyalty-relevant customer record. Mutated only by the
// loyalty service on order completion and explicit redemption.
type Customer struct {
	ID            string         `gorm:"primaryKey" json:"id"`
	Name          string         `gorm:"not null" json:"name"`
	Contact       string         `json:"contact"` // phone or push token, opaque to the engine
	LoyaltyPoints int64          `json:"loyalty_points"`
	VisitCount    int            `json:"visit_count"`
	LastVisit     *time.Time     `json:"last_visit,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}
