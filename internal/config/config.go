// Package config loads service configuration from the environment and an
// optional config.yaml.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"route-editor/internal/models"
)

// Config holds all configuration values.
type Config struct {
	ServerAddr string `mapstructure:"SERVER_ADDR"`
	Env        string `mapstructure:"ENV"`
	LogLevel   string `mapstructure:"LOG_LEVEL"`

	// Route optimizer backend.
	BackendURL            string `mapstructure:"BACKEND_URL"`
	BackendTimeoutSeconds int    `mapstructure:"BACKEND_TIMEOUT_SECONDS"`

	// Mapping collaborator.
	DirectionsProvider   string  `mapstructure:"DIRECTIONS_PROVIDER"`
	OSRMURL              string  `mapstructure:"OSRM_URL"`
	GoogleAPIKey         string  `mapstructure:"GOOGLE_API_KEY"`
	DirectionsRatePerSec float64 `mapstructure:"DIRECTIONS_RATE_PER_SEC"`

	// Route cache.
	RouteCache           string `mapstructure:"ROUTE_CACHE"`
	RouteCacheTTLSeconds int    `mapstructure:"ROUTE_CACHE_TTL_SECONDS"`
	RedisAddr            string `mapstructure:"REDIS_ADDR"`
	RedisPassword        string `mapstructure:"REDIS_PASSWORD"`
	RedisDB              int    `mapstructure:"REDIS_DB"`

	// Snapshot archive.
	ArchiveDriver string `mapstructure:"ARCHIVE_DRIVER"`
	DatabaseURL   string `mapstructure:"DATABASE_URL"`
	SQLitePath    string `mapstructure:"SQLITE_PATH"`

	// Dwell times per visit category.
	DwellHBSeconds          int `mapstructure:"DWELL_HB_SECONDS"`
	DwellNeuaufnahmeSeconds int `mapstructure:"DWELL_NEUAUFNAHME_SECONDS"`

	GeocodeMissing bool   `mapstructure:"GEOCODE_MISSING"`
	NominatimURL   string `mapstructure:"NOMINATIM_URL"`
}

const (
	ProviderOSRM   = "osrm"
	ProviderGoogle = "google"

	CacheDatabase = "database"
	CacheRedis    = "redis"
	CacheNone     = "none"

	ArchiveSQLite   = "sqlite"
	ArchivePostgres = "postgres"
)

// Load reads config.yaml (from . or ./config) if present, then lets
// environment variables override every key.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_ADDR", "127.0.0.1:8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("BACKEND_URL", "http://127.0.0.1:5000")
	v.SetDefault("BACKEND_TIMEOUT_SECONDS", 60)
	v.SetDefault("DIRECTIONS_PROVIDER", ProviderOSRM)
	v.SetDefault("OSRM_URL", "https://router.project-osrm.org")
	v.SetDefault("GOOGLE_API_KEY", "")
	v.SetDefault("DIRECTIONS_RATE_PER_SEC", 5.0)
	v.SetDefault("ROUTE_CACHE", CacheDatabase)
	v.SetDefault("ROUTE_CACHE_TTL_SECONDS", 7*24*3600)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("ARCHIVE_DRIVER", ArchiveSQLite)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("SQLITE_PATH", "")
	v.SetDefault("DWELL_HB_SECONDS", 2100)
	v.SetDefault("DWELL_NEUAUFNAHME_SECONDS", 3600)
	v.SetDefault("GEOCODE_MISSING", false)
	v.SetDefault("NOMINATIM_URL", "https://nominatim.openstreetmap.org")
}

// Validate checks that the selected providers have what they need.
func (c *Config) Validate() error {
	if c.BackendURL == "" {
		return errors.New("BACKEND_URL is required")
	}
	if c.BackendTimeoutSeconds <= 0 {
		return fmt.Errorf("BACKEND_TIMEOUT_SECONDS must be positive, got %d", c.BackendTimeoutSeconds)
	}

	switch c.DirectionsProvider {
	case ProviderOSRM:
		if c.OSRMURL == "" {
			return errors.New("OSRM_URL is required for the osrm provider")
		}
	case ProviderGoogle:
		if c.GoogleAPIKey == "" {
			return errors.New("GOOGLE_API_KEY is required for the google provider")
		}
	default:
		return fmt.Errorf("unknown DIRECTIONS_PROVIDER %q", c.DirectionsProvider)
	}

	switch c.RouteCache {
	case CacheDatabase, CacheNone:
	case CacheRedis:
		if c.RedisAddr == "" {
			return errors.New("REDIS_ADDR is required for the redis route cache")
		}
	default:
		return fmt.Errorf("unknown ROUTE_CACHE %q", c.RouteCache)
	}

	switch c.ArchiveDriver {
	case ArchiveSQLite:
	case ArchivePostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres archive")
		}
	default:
		return fmt.Errorf("unknown ARCHIVE_DRIVER %q", c.ArchiveDriver)
	}

	if c.DwellHBSeconds < 0 || c.DwellNeuaufnahmeSeconds < 0 {
		return errors.New("dwell times must not be negative")
	}
	return nil
}

// IsProduction reports whether the service runs in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// BackendTimeout is the request timeout for optimizer calls
func (c *Config) BackendTimeout() time.Duration {
	return time.Duration(c.BackendTimeoutSeconds) * time.Second
}

// RouteCacheTTL is how long a cached directions result stays valid
func (c *Config) RouteCacheTTL() time.Duration {
	return time.Duration(c.RouteCacheTTLSeconds) * time.Second
}

// Dwell returns the per-category service time used by the estimator
func (c *Config) Dwell() map[models.Category]time.Duration {
	return map[models.Category]time.Duration{
		models.CategoryHomeVisit: time.Duration(c.DwellHBSeconds) * time.Second,
		models.CategoryAdmission: time.Duration(c.DwellNeuaufnahmeSeconds) * time.Second,
	}
}
