package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// AppConfig holds all engine configuration. Loaded once at startup and
// passed by reference to the components that need it; nothing reads the
// environment after Load returns.
type AppConfig struct {
	Database DatabaseConfig
	Server   ServerConfig
	Printer  PrinterConfig
	Loyalty  LoyaltyConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver   string // "sqlite" or "postgres"
	Path     string // sqlite file path
	Host     string
	Port     int
	Database string
	Username string
	Password string
	SSLMode  string
}

// ServerConfig holds notification hub settings
type ServerConfig struct {
	Port         string // ":8080" form
	AnnounceMDNS bool
}

// PrinterConfig holds thermal printer settings
type PrinterConfig struct {
	Address     string // "host:9100" network printer, empty for none
	Width       int    // characters per line
	AutoCut     bool
	CafeName    string
	CafeAddress string
	CafePhone   string
	// UPIVPA, when set, puts a upi://pay QR for the order total on every
	// printed bill.
	UPIVPA   string
	UPIPayee string
}

// LoyaltyConfig holds the accrual rule parameters
type LoyaltyConfig struct {
	// PointsPerHundred is points credited per ₹100 of completed order total.
	PointsPerHundred decimal.Decimal
}

// DSN builds the postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.Username, d.Password, d.Database, d.SSLMode)
}

// Load reads configuration from the environment, honoring a local .env file
// when present.
func Load() (*AppConfig, error) {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := &AppConfig{
		Database: DatabaseConfig{
			Driver:   envOr("DB_DRIVER", "sqlite"),
			Path:     envOr("DB_PATH", "cafepos.db"),
			Host:     envOr("DB_HOST", "localhost"),
			Port:     envIntOr("DB_PORT", 5432),
			Database: envOr("DB_NAME", "cafepos"),
			Username: envOr("DB_USER", "postgres"),
			Password: envOr("DB_PASSWORD", ""),
			SSLMode:  envOr("DB_SSLMODE", "disable"),
		},
		Server: ServerConfig{
			Port:         envOr("SERVER_PORT", ":8090"),
			AnnounceMDNS: envBoolOr("SERVER_MDNS", true),
		},
		Printer: PrinterConfig{
			Address:     envOr("PRINTER_ADDR", ""),
			Width:       envIntOr("PRINTER_WIDTH", 42),
			AutoCut:     envBoolOr("PRINTER_AUTOCUT", true),
			CafeName:    envOr("CAFE_NAME", "CafePos"),
			CafeAddress: envOr("CAFE_ADDRESS", ""),
			CafePhone:   envOr("CAFE_PHONE", ""),
			UPIVPA:      envOr("UPI_VPA", ""),
			UPIPayee:    envOr("UPI_PAYEE", ""),
		},
	}

	switch cfg.Database.Driver {
	case "sqlite", "postgres":
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Database.Driver)
	}

	rate := envOr("LOYALTY_POINTS_PER_100", "1")
	points, err := decimal.NewFromString(rate)
	if err != nil || points.IsNegative() {
		return nil, fmt.Errorf("invalid LOYALTY_POINTS_PER_100 %q", rate)
	}
	cfg.Loyalty.PointsPerHundred = points

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBoolOr(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
