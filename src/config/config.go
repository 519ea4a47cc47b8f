package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type Environment string

const (
	Live Environment = "live"
	Beta Environment = "beta"
	Dev  Environment = "dev"
)

type WeightsConfig struct {
	Env       Environment `yaml:"env"`
	Addr      string      `yaml:"addr"`
	BaseUrl   string      `yaml:"base_url"`
	LogLevel  string      `yaml:"log_level"`
	LogFormat string      `yaml:"log_format"` // "pretty" or "json"

	// IANA zone used to decide what "today" is when building date columns.
	Timezone string `yaml:"timezone"`

	// Built frontend (index.html and assets/).
	DistDir string `yaml:"dist_dir"`

	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Backup   BackupConfig   `yaml:"backup"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "postgres"

	// SQLite file path. Ignored for postgres.
	Path string `yaml:"path"`

	// Postgres connection string. Ignored for sqlite.
	DSN string `yaml:"dsn"`

	// pgx tracelog level ("trace", "debug", "info", "warn", "error", "none")
	LogLevel     string `yaml:"log_level"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

type AuthConfig struct {
	CookieName   string `yaml:"cookie_name"`
	CookieDomain string `yaml:"cookie_domain"`
	CookieSecure bool   `yaml:"cookie_secure"`

	// Sliding expiry measured from last access. One year unless deliberately changed.
	SessionTimeout time.Duration `yaml:"session_timeout"`
	SweepInterval  time.Duration `yaml:"sweep_interval"`
}

type BackupConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Interval  time.Duration `yaml:"interval"`
	Endpoint  string        `yaml:"endpoint"`
	Region    string        `yaml:"region"`
	Bucket    string        `yaml:"bucket"`
	Prefix    string        `yaml:"prefix"`
	AccessKey string        `yaml:"access_key"`
	SecretKey string        `yaml:"secret_key"`
}

func (c WeightsConfig) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || c.LogLevel == "" {
		return zerolog.InfoLevel
	}
	return level
}

func (c WeightsConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c WeightsConfig) IsSQLite() bool {
	return c.Database.Driver == "" || c.Database.Driver == "sqlite"
}

var Config = mustLoad()

func Defaults() WeightsConfig {
	return WeightsConfig{
		Env:       Dev,
		Addr:      ":3000",
		BaseUrl:   "http://localhost:3000",
		LogLevel:  "info",
		LogFormat: "pretty",
		Timezone:  "UTC",
		DistDir:   "./dist",
		Database: DatabaseConfig{
			Driver:       "sqlite",
			Path:         "./data/tracker.db",
			LogLevel:     "warn",
			MaxOpenConns: 4,
		},
		Auth: AuthConfig{
			CookieName:     "session",
			SessionTimeout: 365 * 24 * time.Hour,
			SweepInterval:  time.Hour,
		},
		Backup: BackupConfig{
			Interval: 24 * time.Hour,
			Region:   "us-east-1",
			Prefix:   "weights",
		},
	}
}

func mustLoad() WeightsConfig {
	cfg, err := Load(os.Getenv("WEIGHTS_CONFIG"))
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load builds a config from defaults, then the YAML file at path (default
// ./config.yaml, skipped if missing), then .env, then the process environment.
func Load(path string) (WeightsConfig, error) {
	cfg := Defaults()

	explicit := path != ""
	if !explicit {
		path = "config.yaml"
	}
	raw, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return WeightsConfig{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	} else if explicit || !errors.Is(err, fs.ErrNotExist) {
		return WeightsConfig{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	// A missing .env is normal outside of local development.
	_ = godotenv.Load()

	applyEnv(&cfg)

	if cfg.Env == Live {
		cfg.Auth.CookieSecure = true
	}

	return cfg, nil
}

func applyEnv(cfg *WeightsConfig) {
	if v := os.Getenv("APP_ENV"); v != "" {
		cfg.Env = Environment(v)
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Addr = ":" + v
	}
	if v := os.Getenv("ADDR"); v != "" {
		cfg.Addr = v
	}
	cfg.BaseUrl = getenv("BASE_URL", cfg.BaseUrl)
	cfg.LogLevel = getenv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getenv("LOG_FORMAT", cfg.LogFormat)
	cfg.Timezone = getenv("TZ_NAME", cfg.Timezone)
	cfg.DistDir = getenv("DIST_DIR", cfg.DistDir)

	cfg.Database.Driver = getenv("DATABASE_DRIVER", cfg.Database.Driver)
	cfg.Database.Path = getenv("DATABASE_PATH", cfg.Database.Path)
	cfg.Database.DSN = getenv("DATABASE_URL", cfg.Database.DSN)

	cfg.Auth.CookieSecure = getenvBool("COOKIE_SECURE", cfg.Auth.CookieSecure)
	cfg.Auth.CookieDomain = getenv("COOKIE_DOMAIN", cfg.Auth.CookieDomain)

	cfg.Backup.Enabled = getenvBool("BACKUP_ENABLED", cfg.Backup.Enabled)
	cfg.Backup.Endpoint = getenv("BACKUP_ENDPOINT", cfg.Backup.Endpoint)
	cfg.Backup.Region = getenv("BACKUP_REGION", cfg.Backup.Region)
	cfg.Backup.Bucket = getenv("BACKUP_BUCKET", cfg.Backup.Bucket)
	cfg.Backup.AccessKey = getenv("BACKUP_ACCESS_KEY", cfg.Backup.AccessKey)
	cfg.Backup.SecretKey = getenv("BACKUP_SECRET_KEY", cfg.Backup.SecretKey)
	if v := os.Getenv("BACKUP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Backup.Interval = d
		}
	}
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getenvBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return d
	}
	return b
}
