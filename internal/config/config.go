package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds application configuration
type Config struct {
	DatabasePath string
	LogLevel     string
	Port         int
	DevMode      bool

	QuoteBaseURL      string
	QuoteCacheSeconds int

	Fees FeeSchedule
}

// FeeSchedule holds the commission, tax and transfer-fee rates used by the
// fee calculator. Equities and funds are configured separately because they
// face different tax treatment.
type FeeSchedule struct {
	EquityCommissionRate decimal.Decimal
	EquityCommissionMin  decimal.Decimal
	FundCommissionRate   decimal.Decimal
	FundCommissionMin    decimal.Decimal
	StampTaxRate         decimal.Decimal // equity sells only
	TransferFeeRate      decimal.Decimal // Shanghai equities only
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Port:              getEnvAsInt("PORT", 8030),
		DevMode:           getEnvAsBool("DEV_MODE", false),
		DatabasePath:      getEnv("DATABASE_PATH", "./data/ledger.db"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		QuoteBaseURL:      getEnv("QUOTE_BASE_URL", "https://hq.sinajs.cn"),
		QuoteCacheSeconds: getEnvAsInt("QUOTE_CACHE_SECONDS", 10),
		Fees: FeeSchedule{
			EquityCommissionRate: getEnvAsDecimal("FEE_EQUITY_COMMISSION_RATE", "0.0003"),
			EquityCommissionMin:  getEnvAsDecimal("FEE_EQUITY_COMMISSION_MIN", "5"),
			FundCommissionRate:   getEnvAsDecimal("FEE_FUND_COMMISSION_RATE", "0.0003"),
			FundCommissionMin:    getEnvAsDecimal("FEE_FUND_COMMISSION_MIN", "5"),
			StampTaxRate:         getEnvAsDecimal("FEE_STAMP_TAX_RATE", "0.0005"),
			TransferFeeRate:      getEnvAsDecimal("FEE_TRANSFER_FEE_RATE", "0.00001"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	if c.Fees.EquityCommissionRate.IsNegative() || c.Fees.FundCommissionRate.IsNegative() {
		return fmt.Errorf("commission rates must not be negative")
	}
	if c.Fees.StampTaxRate.IsNegative() || c.Fees.TransferFeeRate.IsNegative() {
		return fmt.Errorf("tax and transfer fee rates must not be negative")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDecimal(key, defaultValue string) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return decimal.RequireFromString(defaultValue)
}
