// Package config loads the storefront configuration from the environment and
// an optional pricing policy file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/shopstack/storefront/internal/app/services/orders"
)

// Config holds everything the API server needs at startup.
type Config struct {
	Port            int
	DatabaseURL     string
	JWTSecret       string
	TokenTTL        time.Duration
	PayPalClientID  string
	UploadDir       string
	CORSOrigins     []string
	RateLimitRPS    int
	RateLimitBurst  int
	LogLevel        string
	LogFormat       string
	PricingPolicy   orders.PricingPolicy
	PricingFilePath string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first if present. JWT_SECRET is required; everything
// else has a sensible default.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Port:            envInt("PORT", 8080),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		TokenTTL:        envDuration("TOKEN_TTL", 24*time.Hour),
		PayPalClientID:  os.Getenv("PAYPAL_CLIENT_ID"),
		UploadDir:       envString("UPLOAD_DIR", "uploads"),
		CORSOrigins:     envList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		RateLimitRPS:    envInt("RATE_LIMIT_RPS", 20),
		RateLimitBurst:  envInt("RATE_LIMIT_BURST", 40),
		LogLevel:        envString("LOG_LEVEL", "info"),
		LogFormat:       envString("LOG_FORMAT", "text"),
		PricingFilePath: os.Getenv("PRICING_CONFIG"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET must be set")
	}

	policy, err := loadPricingPolicy(cfg.PricingFilePath)
	if err != nil {
		return Config{}, err
	}
	cfg.PricingPolicy = policy

	return cfg, nil
}

// loadPricingPolicy reads the tax and shipping policy from a YAML file, or
// returns the default policy when no path is configured.
func loadPricingPolicy(path string) (orders.PricingPolicy, error) {
	if path == "" {
		return orders.DefaultPricingPolicy(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return orders.PricingPolicy{}, fmt.Errorf("read pricing config: %w", err)
	}
	var policy orders.PricingPolicy
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return orders.PricingPolicy{}, fmt.Errorf("parse pricing config: %w", err)
	}
	if policy.TaxRate < 0 || policy.TaxRate >= 1 {
		return orders.PricingPolicy{}, fmt.Errorf("pricing config: tax_rate must be in [0, 1)")
	}
	if policy.ShippingFlat < 0 {
		return orders.PricingPolicy{}, fmt.Errorf("pricing config: shipping_flat must not be negative")
	}
	return policy, nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
