package models

import (
	"time"

	"CafePos/app/money"
	"gorm.io/gorm"
)

// MenuItem is a catalog row. The engine reads it once when a line is added to
// a cart, to snapshot name/price/category; it never writes the catalog.
// Menu editing belongs to the CRUD layer outside this engine.
type MenuItem struct {
	ID        string         `gorm:"primaryKey" json:"id"`
	Name      string         `gorm:"not null" json:"name"`
	Price     money.Money    `json:"price"`
	Category  string         `gorm:"index" json:"category"`
	IsActive  bool           `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}
