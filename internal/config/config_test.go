package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tahmidhoque/vstop-backend/internal/config"
)

func TestLoadRequiresDatabaseURL(t *testing.T) {
	_, err := config.LoadForTests(map[string]string{
		"DATABASE_URL": "",
		"REDIS_URL":    "redis://localhost:6379",
	})
	require.Error(t, err)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.LoadForTests(map[string]string{
		"DATABASE_URL": "postgres://localhost/vstop",
		"REDIS_URL":    "redis://localhost:6379",
		"PORT":         "",
		"CART_TTL":     "",
	})
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.Equal(t, "GBP", cfg.CurrencyCode)
	require.Equal(t, 7*24*time.Hour, cfg.CartTTL)
	require.Equal(t, 30, cfg.ReportsDefaultRange)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := config.LoadForTests(map[string]string{
		"DATABASE_URL":     "postgres://localhost/vstop",
		"REDIS_URL":        "redis://localhost:6379",
		"PORT":             ":9090",
		"OFFERS_CACHE_TTL": "30s",
		"CURRENCY_CODE":    "EUR",
	})
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTPAddr())
	require.Equal(t, 30*time.Second, cfg.OffersCacheTTL)
	require.Equal(t, "EUR", cfg.CurrencyCode)
}
