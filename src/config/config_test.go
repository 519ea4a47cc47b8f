package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, 365*24*time.Hour, cfg.Auth.SessionTimeout)
		assert.Equal(t, time.Hour, cfg.Auth.SweepInterval)
		assert.Equal(t, "session", cfg.Auth.CookieName)
		assert.True(t, cfg.IsSQLite())
	})
	t.Run("yaml file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		err := os.WriteFile(path, []byte(`
env: live
log_level: debug
timezone: Europe/Berlin
database:
  path: /tmp/weights.db
auth:
  sweep_interval: 30m
`), 0644)
		require.NoError(t, err)

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, Live, cfg.Env)
		assert.Equal(t, zerolog.DebugLevel, cfg.Level())
		assert.Equal(t, "/tmp/weights.db", cfg.Database.Path)
		assert.Equal(t, 30*time.Minute, cfg.Auth.SweepInterval)
		assert.Equal(t, 365*24*time.Hour, cfg.Auth.SessionTimeout, "unset keys keep their defaults")
		assert.True(t, cfg.Auth.CookieSecure, "live always uses secure cookies")
		assert.Equal(t, "Europe/Berlin", cfg.Location().String())
	})
	t.Run("missing explicit file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("PORT", "8123")
		t.Setenv("DATABASE_PATH", "/srv/tracker.db")
		t.Setenv("COOKIE_SECURE", "true")

		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, ":8123", cfg.Addr)
		assert.Equal(t, "/srv/tracker.db", cfg.Database.Path)
		assert.True(t, cfg.Auth.CookieSecure)
	})
}

func TestLevelFallsBackToInfo(t *testing.T) {
	cfg := Defaults()
	cfg.LogLevel = "loud"
	assert.Equal(t, zerolog.InfoLevel, cfg.Level())
}
