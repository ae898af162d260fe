package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"go-pos-ws/pkg/money"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
	"go.uber.org/zap"
)

type Config struct {
	Port    string
	AppName string

	DatabaseURL string
	DBTimezone  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CatalogTTL    time.Duration

	JWTSecret string
	TokenTTL  time.Duration

	VATRate          decimal.Decimal
	PricesIncludeTax bool
	CashShortfall    string
	CartIdleTTL      time.Duration

	LogMode string
	LogFile string

	AdminEmail    string
	AdminPassword string
}

// Load reads the process environment. Call godotenv.Load first to pick up a .env file.
func Load() Config {
	vat, err := money.ParseRate(getEnv("VAT_RATE", "0.12"))
	if err != nil {
		zap.S().Warnf("VAT_RATE ignored: %v", err)
		vat = money.DefaultVATRate
	}

	shortfall := strings.ToLower(strings.TrimSpace(getEnv("CASH_SHORTFALL_POLICY", "block")))
	if shortfall != "block" && shortfall != "warn" {
		zap.S().Warnf("CASH_SHORTFALL_POLICY %q unknown, using block", shortfall)
		shortfall = "block"
	}

	cfg := Config{
		Port:             getEnv("PORT", "3000"),
		AppName:          getEnv("APP_NAME", "POS Checkout v1.0"),
		DatabaseURL:      databaseURL(),
		DBTimezone:       getEnv("DB_TIMEZONE", "Asia/Jakarta"),
		RedisAddr:        strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		RedisDB:          cast.ToInt(getEnv("REDIS_DB", "0")),
		CatalogTTL:       positiveDuration("CATALOG_CACHE_TTL_SECONDS", 30, time.Second),
		JWTSecret:        strings.TrimSpace(os.Getenv("JWT_SECRET")),
		TokenTTL:         positiveDuration("TOKEN_TTL_HOURS", 24, time.Hour),
		VATRate:          vat,
		PricesIncludeTax: cast.ToBool(getEnv("PRICES_INCLUDE_TAX", "true")),
		CashShortfall:    shortfall,
		CartIdleTTL:      positiveDuration("CART_IDLE_TTL_MINUTES", 120, time.Minute),
		LogMode:          getEnv("LOG_MODE", "development"),
		LogFile:          strings.TrimSpace(os.Getenv("LOG_FILE")),
		AdminEmail:       getEnv("ADMIN_EMAIL", "admin@example.com"),
		AdminPassword:    getEnv("ADMIN_PASSWORD", "admin123"),
	}
	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

// UsesDatabase reports whether a postgres connection is configured; without
// one the service runs on the in-memory store.
func (c Config) UsesDatabase() bool {
	return c.DatabaseURL != ""
}

func databaseURL() string {
	if dsn := strings.TrimSpace(os.Getenv("DATABASE_URL")); dsn != "" {
		return dsn
	}
	host := os.Getenv("DB_HOST")
	if host == "" {
		return ""
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=%s",
		host,
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
		getEnv("DB_PORT", "5432"),
		getEnv("DB_TIMEZONE", "Asia/Jakarta"),
	)
}

func positiveDuration(key string, fallback int, unit time.Duration) time.Duration {
	n, err := cast.ToIntE(getEnv(key, ""))
	if err != nil || n < 1 {
		n = fallback
	}
	return time.Duration(n) * unit
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
