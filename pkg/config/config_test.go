package config_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/ledger-migration-api/pkg/config"
)

func TestLoad_ValoresPorDefecto(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.Ledger.PageSize)
	assert.Equal(t, 30*time.Second, cfg.Ledger.RequestTimeout)
	assert.Equal(t, "1300", cfg.Migration.ReceivableAccount)
	assert.Equal(t, "1600", cfg.Migration.PayableAccount)
	assert.True(t, decimal.RequireFromString("0.01").Equal(cfg.Migration.AmountTolerance))
	assert.Equal(t, 30*24*time.Hour, cfg.Migration.DateWindow)
	assert.Equal(t, 1, cfg.Migration.Concurrency)
	assert.Empty(t, cfg.Migration.Types)
	assert.Empty(t, cfg.Redis.Addr)
	assert.False(t, cfg.Migration.DryRun)
	assert.True(t, cfg.Migration.DateFrom.IsZero())
	assert.True(t, cfg.Migration.DateTo.IsZero())
}

func TestLoad_DesdeEntorno(t *testing.T) {
	t.Setenv("LEDGER_PAGE_SIZE", "250")
	t.Setenv("LEDGER_RATE_LIMIT_PER_SECOND", "2.5")
	t.Setenv("MIGRATION_TYPES", "2, 0,3")
	t.Setenv("MIGRATION_COLLECTOR_PATTERNS", "WooCommerce, mollie ,")
	t.Setenv("MIGRATION_AMOUNT_TOLERANCE", "0.05")
	t.Setenv("MIGRATION_CONCURRENCY", "0")
	t.Setenv("MIGRATION_LOCK_TTL_MINUTES", "5")
	t.Setenv("MIGRATION_DRY_RUN", "true")
	t.Setenv("MIGRATION_DATE_FROM", "2023-01-01")
	t.Setenv("MIGRATION_DATE_TO", " 2023-12-31 ")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 250, cfg.Ledger.PageSize)
	assert.InDelta(t, 2.5, cfg.Ledger.RatePerSecond, 0.0001)
	assert.Equal(t, []int{2, 0, 3}, cfg.Migration.Types)
	assert.Equal(t, []string{"WooCommerce", "mollie"}, cfg.Migration.CollectorPatterns)
	assert.True(t, decimal.RequireFromString("0.05").Equal(cfg.Migration.AmountTolerance))
	assert.Equal(t, 1, cfg.Migration.Concurrency, "una concurrencia menor que 1 se corrige a 1")
	assert.Equal(t, 5*time.Minute, cfg.Migration.LockTTL)
	assert.True(t, cfg.Migration.DryRun)
	assert.Equal(t, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), cfg.Migration.DateFrom)
	assert.Equal(t, time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC), cfg.Migration.DateTo)
}

func TestLoad_RangoDeFechasInvertido(t *testing.T) {
	t.Setenv("MIGRATION_DATE_FROM", "2024-02-01")
	t.Setenv("MIGRATION_DATE_TO", "2024-01-31")
	_, err := config.Load()
	assert.Error(t, err)
}

func TestLoad_ValoresInvalidos(t *testing.T) {
	cases := map[string][2]string{
		"página demasiado grande": {"LEDGER_PAGE_SIZE", "501"},
		"tipos no numéricos":      {"MIGRATION_TYPES", "2,x"},
		"tolerancia no decimal":   {"MIGRATION_AMOUNT_TOLERANCE", "abc"},
		"tolerancia negativa":     {"MIGRATION_AMOUNT_TOLERANCE", "-1"},
		"reintentos negativos":    {"LEDGER_MAX_RETRIES", "-2"},
		"tasa cero":               {"LEDGER_RATE_LIMIT_PER_SECOND", "0"},
		"fecha desde inválida":    {"MIGRATION_DATE_FROM", "31-12-2023"},
		"fecha hasta inválida":    {"MIGRATION_DATE_TO", "2023-13-01"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			_, err := config.Load()
			assert.Error(t, err)
		})
	}
}
