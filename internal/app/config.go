package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"metrix/internal/provider/polygon"
	"metrix/internal/saver"
)

// EnvPrefix is prepended to every variable name.
const EnvPrefix = "METRIX_"

// Cache backends.
const (
	BackendDir   = "dir"
	BackendS3    = "s3"
	BackendRedis = "redis"
)

// Config holds application configuration from env
type Config struct {
	DataProvider string `env:"DATA_PROVIDER" envDefault:"polygon"`
	UseCache     bool   `env:"USE_CACHE" envDefault:"true"`

	Polygon PolygonConfig `envPrefix:"POLYGON_"`
	Cache   CacheConfig   `envPrefix:"CACHE_"`
	S3      S3Config      `envPrefix:"S3_"`
	Redis   RedisConfig   `envPrefix:"REDIS_"`
	Log     LogConfig     `envPrefix:"LOG_"`
}

type PolygonConfig struct {
	APIKey        string        `env:"API_KEY"`
	APIKeys       []string      `env:"API_KEYS" envSeparator:","`
	KeyStrategy   string        `env:"KEY_STRATEGY" envDefault:"round-robin"`
	BaseURL       string        `env:"BASE_URL" envDefault:"https://api.polygon.io"`
	Timeout       time.Duration `env:"TIMEOUT" envDefault:"60s"`
	RatePerMinute int           `env:"RATE_PER_MINUTE" envDefault:"0"` // per key; 0 = unpaced
}

// Keys returns API_KEYS followed by API_KEY, trimmed and without duplicates.
func (p PolygonConfig) Keys() []string {
	seen := make(map[string]bool)
	var keys []string
	for _, k := range append(append([]string{}, p.APIKeys...), p.APIKey) {
		k = strings.TrimSpace(k)
		if k != "" && !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	return keys
}

type CacheConfig struct {
	Dir     string `env:"DIR" envDefault:".cache/historical_data"`
	Format  string `env:"FORMAT" envDefault:"parquet"`
	Backend string `env:"BACKEND" envDefault:"dir"`
}

type S3Config struct {
	Bucket   string `env:"BUCKET"`
	Prefix   string `env:"PREFIX" envDefault:"historical_data/"`
	Region   string `env:"REGION"`
	Endpoint string `env:"ENDPOINT"`
}

type RedisConfig struct {
	Addr     string `env:"ADDR" envDefault:"localhost:6379"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
	Prefix   string `env:"PREFIX" envDefault:"metrix:aggs:"`
}

type LogConfig struct {
	Level      string `env:"LEVEL" envDefault:"info"` // debug | info | warn | error
	File       string `env:"FILE"`
	MaxSizeMB  int    `env:"MAX_SIZE_MB" envDefault:"100"`
	MaxBackups int    `env:"MAX_BACKUPS" envDefault:"3"`
	MaxAgeDays int    `env:"MAX_AGE_DAYS" envDefault:"28"`
}

// ConfigError reports an invalid or missing setting. Field is the
// environment variable name.
type ConfigError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config %s: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("config %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// LoadConfig reads an optional .env file (METRIX_ENV_FILE overrides the path),
// parses the environment and validates the result. Variables already set in
// the environment win over the file.
func LoadConfig() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, &ConfigError{Field: EnvPrefix + "*", Reason: "parse environment", Err: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadDotEnv() error {
	if p := os.Getenv(EnvPrefix + "ENV_FILE"); p != "" {
		if err := godotenv.Load(p); err != nil {
			return &ConfigError{Field: EnvPrefix + "ENV_FILE", Reason: "load " + p, Err: err}
		}
		return nil
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &ConfigError{Field: ".env", Reason: "load", Err: err}
	}
	return nil
}

// Validate checks settings that would otherwise fail on first use.
func (c *Config) Validate() error {
	if !strings.EqualFold(c.DataProvider, "polygon") {
		return &ConfigError{Field: EnvPrefix + "DATA_PROVIDER", Reason: fmt.Sprintf("unsupported provider %q (use: polygon)", c.DataProvider)}
	}
	if len(c.Polygon.Keys()) == 0 {
		return &ConfigError{Field: EnvPrefix + "POLYGON_API_KEY", Reason: "POLYGON_API_KEY or POLYGON_API_KEYS not set"}
	}
	if c.Polygon.Timeout <= 0 {
		return &ConfigError{Field: EnvPrefix + "POLYGON_TIMEOUT", Reason: "must be positive"}
	}
	if c.Polygon.RatePerMinute < 0 {
		return &ConfigError{Field: EnvPrefix + "POLYGON_RATE_PER_MINUTE", Reason: "must not be negative"}
	}
	if s := strings.ToLower(strings.TrimSpace(c.Polygon.KeyStrategy)); polygon.ParseStrategy(s).String() != s {
		return &ConfigError{Field: EnvPrefix + "POLYGON_KEY_STRATEGY", Reason: fmt.Sprintf("unknown strategy %q (use: round-robin, least-used)", c.Polygon.KeyStrategy)}
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 || c.Log.MaxAgeDays < 0 {
		return &ConfigError{Field: EnvPrefix + "LOG_MAX_*", Reason: "rotation limits must not be negative"}
	}
	if saver.NewFormat(c.Cache.Format) == nil {
		return &ConfigError{Field: EnvPrefix + "CACHE_FORMAT", Reason: fmt.Sprintf("unsupported format %q (use: parquet, csv, json)", c.Cache.Format)}
	}
	switch strings.ToLower(c.Cache.Backend) {
	case BackendDir:
		if strings.TrimSpace(c.Cache.Dir) == "" {
			return &ConfigError{Field: EnvPrefix + "CACHE_DIR", Reason: "must not be empty"}
		}
	case BackendS3:
		if c.S3.Bucket == "" {
			return &ConfigError{Field: EnvPrefix + "S3_BUCKET", Reason: "required for the s3 backend"}
		}
	case BackendRedis:
		if c.Redis.Addr == "" {
			return &ConfigError{Field: EnvPrefix + "REDIS_ADDR", Reason: "required for the redis backend"}
		}
	default:
		return &ConfigError{Field: EnvPrefix + "CACHE_BACKEND", Reason: fmt.Sprintf("unsupported backend %q (use: dir, s3, redis)", c.Cache.Backend)}
	}
	return nil
}
