package config

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8030, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 10, cfg.QuoteCacheSeconds)
	assert.True(t, cfg.Fees.EquityCommissionRate.Equal(decimal.RequireFromString("0.0003")))
	assert.True(t, cfg.Fees.EquityCommissionMin.Equal(decimal.RequireFromString("5")))
	assert.True(t, cfg.Fees.StampTaxRate.Equal(decimal.RequireFromString("0.0005")))
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("FEE_STAMP_TAX_RATE", "0.001")
	t.Setenv("QUOTE_CACHE_SECONDS", "30")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, 30, cfg.QuoteCacheSeconds)
	assert.True(t, cfg.Fees.StampTaxRate.Equal(decimal.RequireFromString("0.001")))
}

func TestValidateRejectsNegativeRates(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	cfg.Fees.StampTaxRate = decimal.RequireFromString("-0.01")
	assert.Error(t, cfg.Validate())
}
