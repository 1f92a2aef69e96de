package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/loyalty-shop/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.LoadForTests(map[string]string{
		"LOYALTY_BASE_URL":     "",
		"LOYALTY_HTTP_TIMEOUT": "",
		"REDIS_URL":            "",
		"OBS_LOG_FORMAT":       "",
		"STUB_PORT":            "",
	})
	require.NoError(t, err)
	require.Equal(t, "http://localhost:5000", cfg.LoyaltyBaseURL)
	require.Equal(t, 10*time.Second, cfg.HTTPTimeout)
	require.Equal(t, 1, cfg.GetMaxAttempts)
	require.Equal(t, ":5000", cfg.StubAddr())
	require.False(t, cfg.CacheEnabled())
	require.Equal(t, "json", cfg.LogFormat)
	require.Empty(t, cfg.MetricsAddr)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := config.LoadForTests(map[string]string{
		"LOYALTY_BASE_URL":         "http://shop.internal:8080/",
		"LOYALTY_HTTP_TIMEOUT":     "2s",
		"LOYALTY_GET_MAX_ATTEMPTS": "3",
		"REDIS_URL":                "redis://localhost:6379/0",
		"CATALOG_CACHE_TTL":        "5m",
		"CORS_ALLOWED_ORIGINS":     "http://a.test, http://b.test",
		"STUB_PORT":                ":7000",
		"OBS_METRICS_ADDR":         ":9464",
	})
	require.NoError(t, err)
	require.Equal(t, "http://shop.internal:8080", cfg.LoyaltyBaseURL)
	require.Equal(t, 2*time.Second, cfg.HTTPTimeout)
	require.Equal(t, 3, cfg.GetMaxAttempts)
	require.True(t, cfg.CacheEnabled())
	require.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSAllowedOrigins)
	require.Equal(t, ":7000", cfg.StubAddr())
	require.Equal(t, ":9464", cfg.MetricsAddr)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	_, err := config.LoadForTests(map[string]string{
		"LOYALTY_BASE_URL": "not a url",
	})
	require.Error(t, err)

	_, err = config.LoadForTests(map[string]string{
		"LOYALTY_BREAKER_FAILURE_RATIO": "1.5",
	})
	require.Error(t, err)

	_, err = config.LoadForTests(map[string]string{
		"OBS_METRICS_ADDR": "not an address",
	})
	require.Error(t, err)
}
