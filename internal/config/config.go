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
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBPath            string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	CatalogPath string

	Redis       RedisConfig
	RateLimit   RateLimitConfig
	Reservation ReservationConfig
	AMQP        AMQPConfig
	Admin       AdminConfig
	CORS        CORSConfig
	Scheduler   SchedulerConfig
	Webhook     WebhookConfig
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func (c RedisConfig) Enabled() bool {
	return strings.TrimSpace(c.Addr) != ""
}

type RateLimitConfig struct {
	Enabled             bool
	ReserveAccountRate  float64
	ReserveAccountBurst int
}

type ReservationConfig struct {
	LockBackend string
	LockTTL     time.Duration
	LockWait    time.Duration
}

type AMQPConfig struct {
	URL      string
	Exchange string
}

type AdminConfig struct {
	// TokenHash is the bcrypt hash of the shared admin API token.
	TokenHash string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type WebhookConfig struct {
	// TopupSecret signs credit top-up callbacks from the payment processor.
	TopupSecret string
}

type SchedulerConfig struct {
	RunInterval time.Duration
	BatchSize   int
}

const (
	LockBackendLocal = "local"
	LockBackendRedis = "redis"
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:           getenv("APP_SERVICE", "spotlight"),
		AppVersion:        getenv("APP_VERSION", "0.1.0"),
		Environment:       getenv("ENVIRONMENT", "development"),
		HTTPAddr:          getenv("HTTP_ADDR", ":8080"),
		OTLPEndpoint:      getenv("OTLP_ENDPOINT", "localhost:4317"),
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "spotlight"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBPath:            getenv("DATABASE_PATH", "spotlight.db"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 10),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 50),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),
		CatalogPath:       strings.TrimSpace(getenv("CATALOG_CONFIG_PATH", "")),
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: strings.TrimSpace(getenv("REDIS_PASSWORD", "")),
			DB:       getenvInt("REDIS_DB", 0),
		},
		RateLimit: RateLimitConfig{
			Enabled:             getenvBool("RATE_LIMIT_ENABLED", false),
			ReserveAccountRate:  getenvFloat("RATE_LIMIT_RESERVE_ACCOUNT_RATE", 1),
			ReserveAccountBurst: getenvInt("RATE_LIMIT_RESERVE_ACCOUNT_BURST", 5),
		},
		Reservation: ReservationConfig{
			LockBackend: normalizeLockBackend(getenv("RESERVATION_LOCK_BACKEND", LockBackendLocal)),
			LockTTL:     getenvDuration("RESERVATION_LOCK_TTL", 10*time.Second),
			LockWait:    getenvDuration("RESERVATION_LOCK_WAIT", 3*time.Second),
		},
		AMQP: AMQPConfig{
			URL:      strings.TrimSpace(getenv("AMQP_URL", "")),
			Exchange: getenv("AMQP_EXCHANGE", "spotlight.events"),
		},
		Admin: AdminConfig{
			TokenHash: strings.TrimSpace(getenv("ADMIN_TOKEN_HASH", "")),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Scheduler: SchedulerConfig{
			RunInterval: getenvDuration("SCHEDULER_RUN_INTERVAL", time.Minute),
			BatchSize:   getenvInt("SCHEDULER_BATCH_SIZE", 100),
		},
		Webhook: WebhookConfig{
			TopupSecret: strings.TrimSpace(getenv("TOPUP_WEBHOOK_SECRET", "")),
		},
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func normalizeLockBackend(raw string) string {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch value {
	case LockBackendRedis:
		return LockBackendRedis
	default:
		return LockBackendLocal
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
