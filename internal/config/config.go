// Package config handles application configuration loading from environment
// variables. It provides a centralized Config struct used across the application.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds all application configuration values loaded from the environment.
type Config struct {
	// Server settings
	Host   string
	Port   string
	Env    string // "development", "production", "testing"
	Domain string // public base URL used in customer-facing links

	// PostgreSQL connection
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Valkey (Redis-compatible cache)
	ValkeyHost     string
	ValkeyPort     string
	ValkeyPassword string

	// S3-compatible object storage for product images
	S3Endpoint  string
	S3Region    string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3PublicURL string

	// Email
	DefaultFromEmail string
	SMTPHost         string
	SMTPPort         int
	SMTPUsername     string
	SMTPPassword     string

	// Basket and pricing
	BasketTimeout       time.Duration
	BasketSweepSchedule string // cron spec; empty disables the scheduled sweep
	ShippingCost        decimal.Decimal

	// Payment
	PaymentMethods       []string
	GatewayURL           string
	GatewayAPIKey        string
	GatewayWebhookSecret string
	GatewayCurrency      string
	GatewayLabel         string

	// Per-client request limits per minute
	AuthRateLimit int // staff login and 2FA
	ShopRateLimit int // basket adds and checkout

	// Kafka event stream (optional)
	KafkaBrokers      []string
	KafkaTopicOrders  string
	KafkaTopicBaskets string
}

// Load reads configuration from environment variables, applying defaults
// for development where appropriate. Returns an error if critical values
// are missing in production mode.
func Load() (*Config, error) {
	cfg := &Config{
		Host:   envOrDefault("APP_HOST", "0.0.0.0"),
		Port:   envOrDefault("APP_PORT", "8080"),
		Env:    envOrDefault("APP_ENV", "development"),
		Domain: strings.TrimRight(envOrDefault("DOMAIN", "http://localhost:8080"), "/"),

		DBHost:     envOrDefault("POSTGRES_HOST", "localhost"),
		DBPort:     envOrDefault("POSTGRES_PORT", "5432"),
		DBUser:     envOrDefault("POSTGRES_USER", "pipshop"),
		DBPassword: envOrDefault("POSTGRES_PASSWORD", "changeme"),
		DBName:     envOrDefault("POSTGRES_DB", "pipshop"),

		ValkeyHost:     envOrDefault("VALKEY_HOST", "localhost"),
		ValkeyPort:     envOrDefault("VALKEY_PORT", "6379"),
		ValkeyPassword: os.Getenv("VALKEY_PASSWORD"),

		S3Endpoint:  os.Getenv("S3_ENDPOINT"),
		S3Region:    envOrDefault("S3_REGION", "us-east-1"),
		S3AccessKey: os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey: os.Getenv("S3_SECRET_KEY"),
		S3Bucket:    envOrDefault("S3_BUCKET", "pipshop-media"),
		S3PublicURL: os.Getenv("S3_PUBLIC_URL"),

		DefaultFromEmail: envOrDefault("DEFAULT_FROM_EMAIL", "shop+no-reply@pipshop.local"),
		SMTPHost:         os.Getenv("SMTP_HOST"),
		SMTPUsername:     os.Getenv("SMTP_USERNAME"),
		SMTPPassword:     os.Getenv("SMTP_PASSWORD"),

		BasketSweepSchedule: os.Getenv("BASKET_SWEEP_SCHEDULE"),

		PaymentMethods:       splitCSV(envOrDefault("PAYMENT_METHODS", "gateway")),
		GatewayURL:           os.Getenv("GATEWAY_URL"),
		GatewayAPIKey:        os.Getenv("GATEWAY_API_KEY"),
		GatewayWebhookSecret: os.Getenv("GATEWAY_WEBHOOK_SECRET"),
		GatewayCurrency:      envOrDefault("GATEWAY_CURRENCY", "gbp"),
		GatewayLabel:         envOrDefault("GATEWAY_LABEL", "Pay with card"),

		KafkaBrokers:      splitCSV(os.Getenv("KAFKA_BROKERS")),
		KafkaTopicOrders:  envOrDefault("KAFKA_TOPIC_ORDERS", "shop.orders"),
		KafkaTopicBaskets: envOrDefault("KAFKA_TOPIC_BASKETS", "shop.baskets"),
	}

	port, err := strconv.Atoi(envOrDefault("SMTP_PORT", "1025"))
	if err != nil {
		return nil, fmt.Errorf("SMTP_PORT: %w", err)
	}
	cfg.SMTPPort = port

	if cfg.AuthRateLimit, err = positiveInt("AUTH_RATE_LIMIT", "10"); err != nil {
		return nil, err
	}
	if cfg.ShopRateLimit, err = positiveInt("SHOP_RATE_LIMIT", "30"); err != nil {
		return nil, err
	}

	minutes, err := strconv.Atoi(envOrDefault("BASKET_TIMEOUT_MINUTES", "15"))
	if err != nil || minutes <= 0 {
		return nil, fmt.Errorf("BASKET_TIMEOUT_MINUTES must be a positive integer")
	}
	cfg.BasketTimeout = time.Duration(minutes) * time.Minute

	cfg.ShippingCost, err = decimal.NewFromString(envOrDefault("SHIPPING_COST", "3.99"))
	if err != nil {
		return nil, fmt.Errorf("SHIPPING_COST: %w", err)
	}

	if cfg.Env == "production" {
		if cfg.DBPassword == "changeme" {
			return nil, fmt.Errorf("POSTGRES_PASSWORD must be set in production")
		}
		if cfg.GatewayEnabled() && cfg.GatewayWebhookSecret == "" {
			return nil, fmt.Errorf("GATEWAY_WEBHOOK_SECRET must be set when the gateway is enabled")
		}
	}

	return cfg, nil
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName,
	)
}

// Addr returns the server listen address (host:port).
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// IsDev returns true if the application is running in development mode.
func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// GatewayEnabled reports whether the hosted card gateway is one of the
// configured payment methods.
func (c *Config) GatewayEnabled() bool {
	for _, m := range c.PaymentMethods {
		if m == "gateway" {
			return true
		}
	}
	return false
}

// envOrDefault reads an environment variable, returning a fallback if unset or empty.
func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// positiveInt reads a positive integer variable.
func positiveInt(key, fallback string) (int, error) {
	n, err := strconv.Atoi(envOrDefault(key, fallback))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer", key)
	}
	return n, nil
}

// splitCSV splits a comma-separated value, dropping blanks.
func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
