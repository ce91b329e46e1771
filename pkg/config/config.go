package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServiceName string
	ServerPort  int
	LogLevel    string

	DatabaseURL string

	JWTAccessSecret []byte
	AuthHTTPURL     string
	CookieSecure    bool

	KafkaBrokers []string

	ESURL      string
	ESUser     string
	ESPassword string
	AuditIndex string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	Gateway GatewayConfig

	StoreName          string
	InvoiceRendererURL string
	WebhookDedupTTL    time.Duration
}

type GatewayConfig struct {
	BaseURL       string
	KeyID         string
	KeySecret     []byte
	WebhookSecret []byte
	Timeout       time.Duration
	Currency      string
}

// Load reads envFiles (missing files are not an error) and then the process environment.
func Load(envFiles ...string) Config {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil {
			log.Printf("notice: %s not loaded: %v, using process env", f, err)
		}
	}

	return Config{
		ServiceName: EnvDefault("SERVICE_NAME", "shop"),
		ServerPort:  EnvIntDefault("SERVER_PORT", 8080),
		LogLevel:    EnvDefault("LOG_LEVEL", "info"),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		JWTAccessSecret: []byte(os.Getenv("JWT_SECRET")),
		AuthHTTPURL:     os.Getenv("AUTH_URL"),
		CookieSecure:    EnvBoolDefault("COOKIE_SECURE", false),

		KafkaBrokers: CSV(os.Getenv("KAFKA_BROKERS")),

		ESURL:      os.Getenv("ES_URL"),
		ESUser:     os.Getenv("ES_USER"),
		ESPassword: os.Getenv("ES_PASSWORD"),
		AuditIndex: EnvDefault("AUDIT_INDEX", "order-audit"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       EnvIntDefault("REDIS_DB", 0),

		Gateway: GatewayConfig{
			BaseURL:       EnvDefault("GATEWAY_BASE_URL", "https://api.razorpay.com/v1"),
			KeyID:         os.Getenv("GATEWAY_KEY_ID"),
			KeySecret:     []byte(os.Getenv("GATEWAY_KEY_SECRET")),
			WebhookSecret: []byte(os.Getenv("GATEWAY_WEBHOOK_SECRET")),
			Timeout:       EnvDurationDefault("GATEWAY_TIMEOUT", 10*time.Second),
			Currency:      EnvDefault("CURRENCY", "INR"),
		},

		StoreName:          EnvDefault("STORE_NAME", "E-Commerce Store"),
		InvoiceRendererURL: os.Getenv("INVOICE_RENDERER_URL"),
		WebhookDedupTTL:    EnvDurationDefault("WEBHOOK_DEDUP_TTL", 72*time.Hour),
	}
}

func CSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func EnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func EnvIntDefault(key string, def int) int {
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

func EnvDurationDefault(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func EnvBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
