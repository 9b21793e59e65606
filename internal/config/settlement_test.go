package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDefaultSettlementConfigIsValid(t *testing.T) {
	cfg := DefaultSettlementConfig()
	require.NoError(t, ValidateSettlementConfig(cfg))
	assert.True(t, cfg.Fees.CrowdpenRate.Equal(decimal.RequireFromString("0.15")))
	assert.True(t, cfg.Fees.StartbuttonRate.Equal(decimal.RequireFromString("0.05")))
	assert.Equal(t, 50, cfg.Batch.DefaultLimit)
	assert.Equal(t, 250, cfg.Batch.MaxLimit)
}

func TestValidateSettlementConfig(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*SettlementConfig)
	}{
		{
			name: "negative_rate",
			mutate: func(c *SettlementConfig) {
				c.Fees.CrowdpenRate = decimal.RequireFromString("-0.01")
			},
		},
		{
			name: "rates_sum_to_one",
			mutate: func(c *SettlementConfig) {
				c.Fees.CrowdpenRate = decimal.RequireFromString("0.6")
				c.Fees.StartbuttonRate = decimal.RequireFromString("0.4")
			},
		},
		{
			name: "default_limit_above_max",
			mutate: func(c *SettlementConfig) {
				c.Batch.DefaultLimit = 300
			},
		},
		{
			name: "zero_statement_timeout",
			mutate: func(c *SettlementConfig) {
				c.Store.StatementTimeout = 0
			},
		},
		{
			name: "missing_currency",
			mutate: func(c *SettlementConfig) {
				c.Payout.DefaultCurrency = ""
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultSettlementConfig()
			tc.mutate(&cfg)
			assert.Error(t, ValidateSettlementConfig(cfg))
		})
	}
}

func TestNewSettlementConfigHolderReadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settlement.yml")
	content := []byte(`fees:
  crowdpen_rate: 0.10
  startbutton_rate: 0.025
batch:
  default_limit: 20
  max_limit: 100
  concurrency: 2
store:
  statement_timeout: 250ms
payout:
  default_currency: ngn
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	holder, err := NewSettlementConfigHolder(Config{SettlementConfigFile: path}, zap.NewNop())
	require.NoError(t, err)

	cfg := holder.Get()
	assert.True(t, cfg.Fees.CrowdpenRate.Equal(decimal.RequireFromString("0.1")))
	assert.True(t, cfg.Fees.StartbuttonRate.Equal(decimal.RequireFromString("0.025")))
	assert.Equal(t, 20, cfg.Batch.DefaultLimit)
	assert.Equal(t, 100, cfg.Batch.MaxLimit)
	assert.Equal(t, 2, cfg.Batch.Concurrency)
	assert.Equal(t, 250*time.Millisecond, cfg.Store.StatementTimeout)
	assert.Equal(t, "NGN", cfg.Payout.DefaultCurrency)
}

func TestNewSettlementConfigHolderRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settlement.yml")
	require.NoError(t, os.WriteFile(path, []byte("fees:\n  crowdpen_rate: 1.5\n"), 0o600))

	_, err := NewSettlementConfigHolder(Config{SettlementConfigFile: path}, zap.NewNop())
	assert.Error(t, err)
}
