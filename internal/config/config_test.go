package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8081", cfg.HTTPAddr)
	assert.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 72*time.Hour, cfg.JWTTTL)
	assert.Equal(t, "yalidine", cfg.Shipping.Provider)
	assert.Equal(t, "800", cfg.Shipping.FallbackFee.String())
	assert.Equal(t, 5*time.Minute, cfg.OrderRateWindow)
	assert.Equal(t, int64(5<<20), cfg.UploadMaxBytes)
	require.NoError(t, cfg.Validate())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,,")
	t.Setenv("SHIPPING_PROVIDER", "Guepex")
	t.Setenv("SHIPPING_FALLBACK_FEE", "650.50")
	t.Setenv("ORDER_RATE_WINDOW", "1m")
	t.Setenv("AUTO_SHIP", "true")
	t.Setenv("UPLOAD_BASE_URL", "https://cdn.example.dz/uploads/")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "guepex", cfg.Shipping.Provider)
	assert.Equal(t, "650.5", cfg.Shipping.FallbackFee.String())
	assert.Equal(t, time.Minute, cfg.OrderRateWindow)
	assert.True(t, cfg.AutoShip)
	assert.Equal(t, "https://cdn.example.dz/uploads", cfg.UploadBaseURL)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "storefront.yaml")
	require.NoError(t, os.WriteFile(path, []byte("HTTP_ADDR: \":9000\"\nJWT_SECRET: fromfile\n"), 0o600))
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.HTTPAddr)
	assert.Equal(t, "fromfile", cfg.JWTSecret)
}

func TestLoadBadFee(t *testing.T) {
	t.Setenv("SHIPPING_FALLBACK_FEE", "eight hundred")
	_, err := Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	cfg.JWTSecret = ""
	cfg.Shipping.Provider = "dhl"
	cfg.RateLimitBackend = "memcached"

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
	assert.Contains(t, err.Error(), "dhl")
	assert.Contains(t, err.Error(), "memcached")
}
