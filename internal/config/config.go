package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Port                   string
	AllowedOrigin          string
	DatabaseURL            string
	EnsureSchema           bool
	RedisAddr              string
	RedisPassword          string
	RedisDB                int
	VariantCacheTTLSeconds int
	StoreUTCOffsetHours    int
	StoreOpenHour          int
	SalesTaxRate           decimal.Decimal
	AllowNegativeStock     bool
	AuthSecret             string
	AccessTokenTTLMinutes  int
	ManagerPINHash         string
	LogLevel               string
	LogFormat              string
}

// Load reads the environment, after merging an optional .env file from the
// working directory. Variables already set in the environment win.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		Port:                   getEnv("PORT", "8080"),
		AllowedOrigin:          getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		EnsureSchema:           getBool("DB_ENSURE_SCHEMA", true),
		RedisAddr:              os.Getenv("REDIS_ADDR"),
		RedisPassword:          os.Getenv("REDIS_PASSWORD"),
		RedisDB:                getInt("REDIS_DB", 0, 0),
		VariantCacheTTLSeconds: getInt("VARIANT_CACHE_TTL_SECONDS", 3600, 1),
		StoreUTCOffsetHours:    getInt("STORE_UTC_OFFSET_HOURS", -6, -12),
		StoreOpenHour:          getInt("STORE_OPEN_HOUR", 8, 0),
		SalesTaxRate:           decimal.RequireFromString("0.0825"),
		AllowNegativeStock:     getBool("ALLOW_NEGATIVE_STOCK", true),
		AuthSecret:             strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes:  getInt("ACCESS_TOKEN_TTL_MINUTES", 480, 1),
		ManagerPINHash:         strings.TrimSpace(os.Getenv("MANAGER_PIN_HASH")),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		LogFormat:              getEnv("LOG_FORMAT", "json"),
	}

	if cfg.StoreUTCOffsetHours > 14 {
		cfg.StoreUTCOffsetHours = -6
	}
	if cfg.StoreOpenHour > 23 {
		cfg.StoreOpenHour = 8
	}
	if raw := strings.TrimSpace(os.Getenv("SALES_TAX_RATE")); raw != "" {
		if rate, err := decimal.NewFromString(raw); err == nil && !rate.IsNegative() && rate.LessThan(decimal.NewFromInt(1)) {
			cfg.SalesTaxRate = rate
		}
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

// StoreLocation is the store's wall clock as a fixed UTC offset. Daylight
// saving is not applied.
func (c Config) StoreLocation() *time.Location {
	offset := c.StoreUTCOffsetHours
	return time.FixedZone(fmt.Sprintf("UTC%+d", offset), offset*60*60)
}

func (c Config) VariantCacheTTL() time.Duration {
	return time.Duration(c.VariantCacheTTLSeconds) * time.Second
}

func (c Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLMinutes) * time.Minute
}

// NewLogger builds the process logger. format "text" selects the human
// readable formatter; anything else logs JSON.
func NewLogger(level string, format string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	if strings.EqualFold(format, "text") {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func getInt(key string, fallback int, min int) int {
	val, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil || val < min {
		return fallback
	}
	return val
}

func getBool(key string, fallback bool) bool {
	val, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return val
}
