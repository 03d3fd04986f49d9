package config

import (
	"testing"
	"time"

	"github.com/jason-s-yu/hungrygod/internal/room"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allKeys = []string{
	"PORT", "LOG_LEVEL", "RECONCILE_INTERVAL", "COUNTDOWN_SECONDS", "ORDER_SECONDS",
	"ORDERS_PER_GAME", "ORDER_PACING_MS", "RESULTS_TIMEOUT_SECONDS", "ROOM_INACTIVITY_MINUTES",
	"REDIS_ADDR", "REDIS_DB", "RESULTS_QUEUE_NAME", "DATABASE_URL", "POSTGRES_USER",
	"POSTGRES_PASSWORD", "PG_HOST", "PG_PORT", "PG_DATABASE", "TOKEN_EXPIRE_TIME",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, time.Second, cfg.ReconcileInterval)
	assert.Equal(t, room.DefaultSettings(), cfg.Settings())
	assert.False(t, cfg.JournalEnabled())
	assert.Equal(t, "hungrygod_results", cfg.ResultsQueueName)
	assert.Equal(t, "postgres://postgres:@localhost:5432/hungrygod", cfg.DatabaseURL)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("RECONCILE_INTERVAL", "250ms")
	t.Setenv("COUNTDOWN_SECONDS", "3")
	t.Setenv("ORDERS_PER_GAME", "4")
	t.Setenv("ORDER_PACING_MS", "0")
	t.Setenv("ROOM_INACTIVITY_MINUTES", "1")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("PG_HOST", "db")
	t.Setenv("POSTGRES_PASSWORD", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, 250*time.Millisecond, cfg.ReconcileInterval)

	s := cfg.Settings()
	assert.Equal(t, 3*time.Second, s.Countdown)
	assert.Equal(t, 4, s.OrdersPerGame)
	assert.Zero(t, s.OrderPacing)
	assert.Equal(t, time.Minute, s.InactivityTimeout)

	assert.True(t, cfg.JournalEnabled())
	assert.Equal(t, 2, cfg.RedisDB)
	assert.Equal(t, "postgres://postgres:secret@db:5432/hungrygod", cfg.DatabaseURL)
}

func TestLoadPrefersDatabaseURL(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://u:p@h/d")
	t.Setenv("PG_HOST", "ignored")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@h/d", cfg.DatabaseURL)
}

func TestLoadRejectsBadNumbers(t *testing.T) {
	cases := map[string]string{
		"COUNTDOWN_SECONDS":  "six",
		"ORDERS_PER_GAME":    "0",
		"ORDER_PACING_MS":    "-5",
		"REDIS_DB":           "x",
		"RECONCILE_INTERVAL": "soon",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, val)
			_, err := Load()
			assert.ErrorContains(t, err, key)
		})
	}
}
