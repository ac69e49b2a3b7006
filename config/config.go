package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the runtime configuration, read from the environment (and .env if present).
type Config struct {
	DatabaseURL    string   `env:"DATABASE_URL,required,notEmpty"`
	Port           string   `env:"PORT" envDefault:"5200"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	ServiceToken   string   `env:"GAMIFICATION_SERVICE_TOKEN,required,notEmpty"`
	LogMode        string   `env:"LOG_MODE" envDefault:"dev"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisChannel  string `env:"REDIS_CHANNEL" envDefault:"gamification:events"`

	Timezone   string `env:"PROGRESSION_TIMEZONE" envDefault:"UTC"`
	MaxRetries int    `env:"PROGRESSION_MAX_RETRIES" envDefault:"3"`

	CatalogPath  string `env:"CATALOG_PATH"`
	CatalogR2Key string `env:"CATALOG_R2_KEY"`

	QuestRetentionDays int           `env:"QUEST_RETENTION_DAYS" envDefault:"90"`
	RetentionInterval  time.Duration `env:"QUEST_RETENTION_INTERVAL" envDefault:"24h"`

	R2 R2Config `envPrefix:"R2_"`
}

// R2Config holds the Cloudflare R2 credentials used to fetch the catalog.
type R2Config struct {
	AccountID       string `env:"ACCOUNT_ID"`
	AccessKeyID     string `env:"ACCESS_KEY_ID"`
	AccessKeySecret string `env:"ACCESS_KEY_SECRET"`
	Bucket          string `env:"BUCKET_NAME"`
}

// Enabled reports whether enough R2 settings are present to build a client.
func (c R2Config) Enabled() bool {
	return c.AccountID != "" && c.Bucket != ""
}

// Load reads .env (when present) and parses the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return Parse()
}

// Parse reads the process environment only.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	for i, o := range cfg.AllowedOrigins {
		cfg.AllowedOrigins[i] = strings.TrimSpace(o)
	}
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("PROGRESSION_MAX_RETRIES must not be negative")
	}
	if cfg.QuestRetentionDays < 0 {
		return nil, fmt.Errorf("QUEST_RETENTION_DAYS must not be negative")
	}
	if _, err := cfg.Location(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Location resolves PROGRESSION_TIMEZONE.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("PROGRESSION_TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Origins is the CORS origin list in fiber's comma form.
func (c *Config) Origins() string {
	return strings.Join(c.AllowedOrigins, ",")
}
