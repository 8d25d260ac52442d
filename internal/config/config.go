package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	PublicBaseURL string

	DatabaseURL   string
	RedisAddr     string
	RedisPassword string

	ClinicTimezone string
	HoldWindow     time.Duration

	// PaymentProvider selects the active gateway: p24, payu, stripe or mock.
	// The deployment declares it; no runtime probing against providers.
	PaymentProvider   string
	AllowMockPayments bool

	P24MerchantID int
	P24PosID      int
	P24CRC        string
	P24APIKey     string
	P24BaseURL    string
	P24ReturnURL  string
	P24StatusURL  string

	PayUPosID        string
	PayUClientID     string
	PayUClientSecret string
	PayUBaseURL      string
	PayUReturnURL    string
	PayUNotifyURL    string

	StripeSecretKey     string
	StripeWebhookSecret string
	StripeSuccessURL    string
	StripeCancelURL     string

	AdminJWTSecret string

	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	ClinicName        string
}

// Load reads configuration from the environment, after loading .env if present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           strings.ToLower(getEnv("ENV", "sandbox")),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),

		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		ClinicTimezone: getEnv("CLINIC_TIMEZONE", "Europe/Warsaw"),
		HoldWindow:     getEnvAsDuration("SLOT_HOLD_WINDOW", 20*time.Minute),

		PaymentProvider:   strings.ToLower(strings.TrimSpace(getEnv("PAYMENT_PROVIDER", "p24"))),
		AllowMockPayments: getEnvAsBool("ALLOW_MOCK_PAYMENTS", false),

		P24MerchantID: getEnvAsInt("P24_MERCHANT_ID", 0),
		P24PosID:      getEnvAsInt("P24_POS_ID", 0),
		P24CRC:        strings.TrimSpace(getEnv("P24_CRC", "")),
		P24APIKey:     strings.TrimSpace(getEnv("P24_REST_API_KEY", "")),
		P24BaseURL:    getEnv("P24_BASE_URL", ""),
		P24ReturnURL:  getEnv("P24_RETURN_URL", ""),
		P24StatusURL:  getEnv("P24_STATUS_URL", ""),

		PayUPosID:        strings.TrimSpace(getEnv("PAYU_POS_ID", "")),
		PayUClientID:     strings.TrimSpace(getEnv("PAYU_CLIENT_ID", "")),
		PayUClientSecret: strings.TrimSpace(getEnv("PAYU_CLIENT_SECRET", "")),
		PayUBaseURL:      getEnv("PAYU_BASE_URL", ""),
		PayUReturnURL:    getEnv("PAYU_RETURN_URL", ""),
		PayUNotifyURL:    getEnv("PAYU_NOTIFY_URL", ""),

		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		StripeSuccessURL:    getEnv("STRIPE_SUCCESS_URL", ""),
		StripeCancelURL:     getEnv("STRIPE_CANCEL_URL", ""),

		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),

		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Przychodnia Telemed"),
		ClinicName:        getEnv("CLINIC_NAME", "Przychodnia Telemed"),
	}
}

// IsProduction reports whether the deployment runs against live providers.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value.
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value.
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
