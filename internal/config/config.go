// internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jason-s-yu/hungrygod/internal/room"
)

// Config holds everything the binaries read from the environment.
type Config struct {
	Port              string
	LogLevel          string
	ReconcileInterval time.Duration

	Countdown         time.Duration
	OrderDuration     time.Duration
	OrdersPerGame     int
	OrderPacing       time.Duration
	ResultsTimeout    time.Duration
	InactivityTimeout time.Duration

	RedisAddr        string
	RedisDB          int
	ResultsQueueName string

	DatabaseURL string

	TokenExpireTime string
}

// Load reads the environment, falling back to defaults for unset keys.
func Load() (*Config, error) {
	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		RedisAddr:        getEnv("REDIS_ADDR", ""),
		ResultsQueueName: getEnv("RESULTS_QUEUE_NAME", "hungrygod_results"),
		TokenExpireTime:  getEnv("TOKEN_EXPIRE_TIME", ""),
		DatabaseURL:      databaseURL(),
	}

	var err error
	if cfg.ReconcileInterval, err = getEnvDuration("RECONCILE_INTERVAL", time.Second); err != nil {
		return nil, err
	}
	if cfg.Countdown, err = getEnvUnits("COUNTDOWN_SECONDS", 6, time.Second); err != nil {
		return nil, err
	}
	if cfg.OrderDuration, err = getEnvUnits("ORDER_SECONDS", 10, time.Second); err != nil {
		return nil, err
	}
	if cfg.OrdersPerGame, err = getEnvInt("ORDERS_PER_GAME", 10); err != nil {
		return nil, err
	}
	if cfg.OrdersPerGame < 1 {
		return nil, fmt.Errorf("ORDERS_PER_GAME must be at least 1, got %d", cfg.OrdersPerGame)
	}
	if cfg.OrderPacing, err = getEnvUnits("ORDER_PACING_MS", 1000, time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.ResultsTimeout, err = getEnvUnits("RESULTS_TIMEOUT_SECONDS", 30, time.Second); err != nil {
		return nil, err
	}
	if cfg.InactivityTimeout, err = getEnvUnits("ROOM_INACTIVITY_MINUTES", 5, time.Minute); err != nil {
		return nil, err
	}
	if cfg.RedisDB, err = getEnvInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.ReconcileInterval <= 0 {
		return nil, fmt.Errorf("RECONCILE_INTERVAL must be positive, got %s", cfg.ReconcileInterval)
	}
	return cfg, nil
}

// Settings converts the timing keys into room settings.
func (c *Config) Settings() room.Settings {
	return room.Settings{
		Countdown:         c.Countdown,
		OrderDuration:     c.OrderDuration,
		OrdersPerGame:     c.OrdersPerGame,
		OrderPacing:       c.OrderPacing,
		ResultsTimeout:    c.ResultsTimeout,
		InactivityTimeout: c.InactivityTimeout,
	}
}

// JournalEnabled reports whether finished games should be queued to Redis.
func (c *Config) JournalEnabled() bool {
	return c.RedisAddr != ""
}

// databaseURL prefers DATABASE_URL and otherwise assembles one from the PG_* keys.
func databaseURL() string {
	if v := getEnv("DATABASE_URL", ""); v != "" {
		return v
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(getEnv("POSTGRES_USER", "postgres"), getEnv("POSTGRES_PASSWORD", "")),
		Host:   getEnv("PG_HOST", "localhost") + ":" + getEnv("PG_PORT", "5432"),
		Path:   "/" + getEnv("PG_DATABASE", "hungrygod"),
	}
	return u.String()
}

// getEnv retrieves an environment variable's value or returns a default.
func getEnv(key, defVal string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return defVal
}

func getEnvInt(key string, defVal int) (int, error) {
	v := getEnv(key, "")
	if v == "" {
		return defVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid %s %q: must not be negative", key, v)
	}
	return n, nil
}

// getEnvUnits reads a whole number of units, e.g. COUNTDOWN_SECONDS=6.
func getEnvUnits(key string, defVal int, unit time.Duration) (time.Duration, error) {
	n, err := getEnvInt(key, defVal)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * unit, nil
}

func getEnvDuration(key string, defVal time.Duration) (time.Duration, error) {
	v := getEnv(key, "")
	if v == "" {
		return defVal, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}
