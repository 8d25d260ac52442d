package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "sandbox", cfg.Env)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, "Europe/Warsaw", cfg.ClinicTimezone)
	assert.Equal(t, 20*time.Minute, cfg.HoldWindow)
	assert.Equal(t, "p24", cfg.PaymentProvider)
	assert.False(t, cfg.AllowMockPayments)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("PAYMENT_PROVIDER", "PayU")
	t.Setenv("SLOT_HOLD_WINDOW", "45m")
	t.Setenv("P24_MERCHANT_ID", "12345")
	t.Setenv("P24_REST_API_KEY", "  secret-key  ")
	t.Setenv("ALLOW_MOCK_PAYMENTS", "true")

	cfg := Load()

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "payu", cfg.PaymentProvider)
	assert.Equal(t, 45*time.Minute, cfg.HoldWindow)
	assert.Equal(t, 12345, cfg.P24MerchantID)
	assert.Equal(t, "secret-key", cfg.P24APIKey)
	assert.True(t, cfg.AllowMockPayments)
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("P24_MERCHANT_ID", "not-a-number")
	t.Setenv("SLOT_HOLD_WINDOW", "soon")

	cfg := Load()

	assert.Equal(t, 0, cfg.P24MerchantID)
	assert.Equal(t, 20*time.Minute, cfg.HoldWindow)
}
