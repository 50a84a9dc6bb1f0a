// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Payment
	PaymentSecretKey       string
	PaymentTimeout         time.Duration
	PaymentProductMap      map[int64]string
	PaymentCatchAllProduct string
	Currency               string

	// Session
	SessionSecret string
	SessionMaxAge int

	// Cart
	CartStore     string
	CartTTL       time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Checkout
	CheckoutExpiry time.Duration

	// Accounts
	AdminEmails []string

	// Rate Limit
	RateLimitGeneral int
	RateLimitAuth    int

	// Catalog
	ImageProbe bool

	// Logging
	LogLevel string

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに.envがあれば先に読み込む（既存の環境変数は上書きしない）。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	var missing []string

	cfg.PaymentSecretKey = os.Getenv("PAYMENT_SECRET_KEY")
	if cfg.PaymentSecretKey == "" {
		missing = append(missing, "PAYMENT_SECRET_KEY")
	}

	cfg.SessionSecret = os.Getenv("SESSION_SECRET")
	if cfg.SessionSecret == "" {
		missing = append(missing, "SESSION_SECRET")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	productMap, err := parseProductMap(os.Getenv("PAYMENT_PRODUCT_MAP"))
	if err != nil {
		return nil, fmt.Errorf("invalid PAYMENT_PRODUCT_MAP: %w", err)
	}
	cfg.PaymentProductMap = productMap

	cfg.CartStore = strings.ToLower(getEnvString("CART_STORE", "memory"))
	if cfg.CartStore != "memory" && cfg.CartStore != "redis" {
		return nil, fmt.Errorf("invalid CART_STORE: %q (allowed: memory, redis)", cfg.CartStore)
	}

	// Optional fields with defaults
	cfg.DatabaseURL = getEnvString("DATABASE_URL", "sqlite://storefront.db")
	cfg.BaseURL = strings.TrimRight(getEnvString("BASE_URL", "http://127.0.0.1:8080"), "/")
	cfg.PaymentTimeout = getEnvDuration("PAYMENT_TIMEOUT", 10*time.Second)
	cfg.PaymentCatchAllProduct = getEnvString("PAYMENT_CATCHALL_PRODUCT", "")
	cfg.Currency = strings.ToLower(getEnvString("CURRENCY", "usd"))
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400)
	cfg.CartTTL = getEnvDuration("CART_TTL", 72*time.Hour)
	cfg.RedisAddr = getEnvString("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = getEnvString("REDIS_PASSWORD", "")
	cfg.RedisDB = getEnvInt("REDIS_DB", 0)
	cfg.CheckoutExpiry = getEnvDuration("CHECKOUT_EXPIRY", 24*time.Hour)
	cfg.AdminEmails = getEnvList("ADMIN_EMAILS")
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitAuth = getEnvInt("RATE_LIMIT_AUTH", 10)
	cfg.ImageProbe = getEnvBool("IMAGE_PROBE", false)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", cfg.BaseURL)

	return cfg, nil
}

// parseProductMap は "1=prod_A,2=prod_B" 形式の文字列をローカル商品ID→リモート商品IDのマップに変換する。
func parseProductMap(raw string) (map[int64]string, error) {
	result := make(map[int64]string)
	if strings.TrimSpace(raw) == "" {
		return result, nil
	}

	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("entry %q is not in id=remote_id form", pair)
		}
		id, err := strconv.ParseInt(strings.TrimSpace(key), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("entry %q has a non-numeric product id", pair)
		}
		value = strings.TrimSpace(value)
		if value == "" {
			return nil, fmt.Errorf("entry %q has an empty remote id", pair)
		}
		result[id] = value
	}

	return result, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

// getEnvList はカンマ区切りの環境変数を小文字化・トリムしたスライスとして返す。
func getEnvList(key string) []string {
	var result []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			result = append(result, v)
		}
	}
	return result
}
