package database

import (
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"CafePos/app/config"
	"CafePos/app/models"
	"CafePos/app/money"
)

var db *gorm.DB

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return db
}

// Initialize opens the configured database, runs migrations and seeds the
// catalog on first run.
func Initialize(cfg *config.DatabaseConfig) error {
	var err error

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		TranslateError: true,
	}

	switch cfg.Driver {
	case "postgres":
		db, err = gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	default:
		db, err = gorm.Open(sqlite.Open(cfg.Path), gormConfig)
	}
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.Driver == "postgres" {
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("failed to get database instance: %w", err)
		}
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	if err := RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := SeedInitialData(); err != nil {
		log.WithError(err).Warn("failed to seed initial data")
	}

	return nil
}

// RunMigrations runs database migrations
func RunMigrations() error {
	err := db.AutoMigrate(
		// Catalog (read-only to the engine)
		&models.MenuItem{},

		// Order models
		&models.Order{},
		&models.OrderLine{},

		// Cash drawer models
		&models.CashDrawerEntry{},

		// Customer loyalty models
		&models.Customer{},
	)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	createIndexes()
	return nil
}

// createIndexes creates database indexes for better query performance
func createIndexes() {
	db.Exec("CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_orders_completed_at ON orders(completed_at)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_orders_staff_id ON orders(staff_id)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_order_lines_order_id ON order_lines(order_id)")
}

// SeedInitialData seeds a starter menu so a fresh install can take orders.
// Menu editing afterwards belongs to the CRUD layer, not this engine.
func SeedInitialData() error {
	items := []models.MenuItem{
		{ID: "espresso", Name: "Espresso", Price: money.FromRupees(90), Category: "Coffee", IsActive: true},
		{ID: "cappuccino", Name: "Cappuccino", Price: money.FromRupees(120), Category: "Coffee", IsActive: true},
		{ID: "latte", Name: "Cafe Latte", Price: money.FromRupees(140), Category: "Coffee", IsActive: true},
		{ID: "masala-chai", Name: "Masala Chai", Price: money.FromRupees(60), Category: "Tea", IsActive: true},
		{ID: "samosa", Name: "Samosa", Price: money.FromRupees(60), Category: "Snacks", IsActive: true},
		{ID: "veg-sandwich", Name: "Veg Sandwich", Price: money.FromRupees(110), Category: "Snacks", IsActive: true},
	}

	for _, item := range items {
		var count int64
		db.Model(&models.MenuItem{}).Where("id = ?", item.ID).Count(&count)
		if count == 0 {
			db.Create(&item)
		}
	}

	return nil
}

// Close closes the database connection
func Close() error {
	if db == nil {
		return nil
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
