package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config carries everything the engine needs from the environment.
// It is loaded once in cmd/api and handed to constructors; business logic
// never reads the environment directly.
type Config struct {
	OrdersTable      string
	IdempotencyTable string
	StockTable       string
	CouponsTable     string
	AuditTable       string

	EmailQueueURL string
	AlertQueueURL string

	GatewayName        string
	GatewayBaseURL     string
	GatewayAccessToken string
	GatewayTimeout     time.Duration

	ConfirmSecret string
	ConfirmTTL    time.Duration

	ClaimTTL        time.Duration
	ClaimStaleAfter time.Duration

	LowStockThreshold int
	MetricsNamespace  string
}

// Load reads configuration from the environment, applying defaults for
// tunables and failing on missing credentials.
func Load() (Config, error) {
	cfg := Config{
		OrdersTable:      os.Getenv("ORDERS_TABLE"),
		IdempotencyTable: os.Getenv("IDEMPOTENCY_TABLE"),
		StockTable:       os.Getenv("STOCK_TABLE"),
		CouponsTable:     os.Getenv("COUPONS_TABLE"),
		AuditTable:       os.Getenv("AUDIT_TABLE"),

		EmailQueueURL: os.Getenv("EMAIL_QUEUE_URL"),
		AlertQueueURL: os.Getenv("ALERT_QUEUE_URL"),

		GatewayName:        getenvDefault("GATEWAY_NAME", "mercadopago"),
		GatewayBaseURL:     getenvDefault("GATEWAY_BASE_URL", "https://api.mercadopago.com"),
		GatewayAccessToken: os.Getenv("GATEWAY_ACCESS_TOKEN"),
		GatewayTimeout:     durationDefault("GATEWAY_TIMEOUT", 10*time.Second),

		ConfirmSecret: os.Getenv("CONFIRM_TOKEN_SECRET"),
		ConfirmTTL:    durationDefault("CONFIRM_TOKEN_TTL", 30*24*time.Hour),

		ClaimTTL:        durationDefault("CLAIM_TTL", 48*time.Hour),
		ClaimStaleAfter: durationDefault("CLAIM_STALE_AFTER", 15*time.Minute),

		LowStockThreshold: intDefault("LOW_STOCK_THRESHOLD", 5),
		MetricsNamespace:  getenvDefault("METRICS_NAMESPACE", "OrderLifecycle"),
	}

	if cfg.GatewayAccessToken == "" {
		return cfg, fmt.Errorf("GATEWAY_ACCESS_TOKEN is required")
	}
	if cfg.ConfirmSecret == "" {
		return cfg, fmt.Errorf("CONFIRM_TOKEN_SECRET is required")
	}
	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationDefault(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func intDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
