// Package config provides configuration management using Viper.
// It loads configuration from environment variables, .env files, and config files.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultServerPort                = 8080
	defaultServerHost                = "0.0.0.0"
	defaultReadTimeout               = 30 * time.Second
	defaultWriteTimeout              = 30 * time.Second
	defaultDatabasePath              = "./data/carousel.db"
	defaultDatabaseConnectionTimeout = 5 * time.Second
	defaultDatabaseEnableWAL         = true
	defaultLogLevel                  = "info"
	defaultLogPretty                 = false
	defaultLogFileMaxSizeMB          = 100
	defaultLogFileMaxBackups         = 3
	defaultLogFileMaxAgeDays         = 28
	defaultSyncInterval              = 2 * time.Second
	defaultGuardWindow               = 30 * time.Second
	defaultGuardTripCount            = 3
	defaultGuideHorizon              = 12 * time.Hour
	defaultGuideWorkers              = 8
	defaultImportConcurrency         = 2
	envPrefix                        = "CAROUSEL"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Logging   LoggingConfig
	Scheduler SchedulerConfig
	Guide     GuideConfig
	Library   LibraryConfig
	Import    ImportConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int
	Host         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Path              string
	ConnectionTimeout time.Duration
	EnableWAL         bool
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// SchedulerConfig holds live session and failure guard configuration
type SchedulerConfig struct {
	SyncInterval   time.Duration
	GuardWindow    time.Duration
	GuardTripCount int
}

// GuideConfig holds program guide precompute configuration
type GuideConfig struct {
	Horizon time.Duration
	Workers int
}

// LibraryConfig holds media library scan configuration
type LibraryConfig struct {
	Roots            []string
	SupportedFormats []string
	Watch            bool
}

// ImportConfig holds S3 library import configuration; disabled unless a
// bucket is set
type ImportConfig struct {
	Bucket      string
	Prefix      string
	Region      string
	Destination string
	Concurrency int
}

// Load reads configuration from .env file, config files, environment variables, and defaults
func Load() (*Config, error) {
	// Load .env file if present (optional, won't error if missing)
	// .env files are optional in production and CI where env vars are set directly
	_ = godotenv.Load() // nolint:errcheck // .env file is optional

	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Config file settings
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/carousel")

	// Environment variable settings
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	// Unmarshal into struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.host", defaultServerHost)
	v.SetDefault("server.readtimeout", defaultReadTimeout)
	v.SetDefault("server.writetimeout", defaultWriteTimeout)

	// Database defaults
	v.SetDefault("database.path", defaultDatabasePath)
	v.SetDefault("database.connectiontimeout", defaultDatabaseConnectionTimeout)
	v.SetDefault("database.enablewal", defaultDatabaseEnableWAL)

	// Logging defaults
	v.SetDefault("logging.level", defaultLogLevel)
	v.SetDefault("logging.pretty", defaultLogPretty)
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.maxsizemb", defaultLogFileMaxSizeMB)
	v.SetDefault("logging.maxbackups", defaultLogFileMaxBackups)
	v.SetDefault("logging.maxagedays", defaultLogFileMaxAgeDays)

	// Scheduler defaults
	v.SetDefault("scheduler.syncinterval", defaultSyncInterval)
	v.SetDefault("scheduler.guardwindow", defaultGuardWindow)
	v.SetDefault("scheduler.guardtripcount", defaultGuardTripCount)

	// Guide defaults
	v.SetDefault("guide.horizon", defaultGuideHorizon)
	v.SetDefault("guide.workers", defaultGuideWorkers)

	// Library defaults
	v.SetDefault("library.supportedformats", []string{"mp4", "mkv", "avi", "mov"})
	v.SetDefault("library.watch", false)

	// Import defaults
	v.SetDefault("import.concurrency", defaultImportConcurrency)
}

// Validate checks that configuration values are valid
func (c *Config) Validate() error {
	// Validate server port
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}

	// Validate timeout durations
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("invalid read timeout: %v (must be > 0)", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("invalid write timeout: %v (must be > 0)", c.Server.WriteTimeout)
	}
	if c.Database.ConnectionTimeout <= 0 {
		return fmt.Errorf("invalid database connection timeout: %v (must be > 0)", c.Database.ConnectionTimeout)
	}

	// Validate log level
	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.Logging.Level, strings.Join(validLevels, ", "))
	}

	// Validate scheduler settings
	if c.Scheduler.SyncInterval <= 0 {
		return fmt.Errorf("invalid sync interval: %v (must be > 0)", c.Scheduler.SyncInterval)
	}
	if c.Scheduler.GuardWindow <= 0 {
		return fmt.Errorf("invalid guard window: %v (must be > 0)", c.Scheduler.GuardWindow)
	}
	if c.Scheduler.GuardTripCount < 1 {
		return fmt.Errorf("invalid guard trip count: %d (must be >= 1)", c.Scheduler.GuardTripCount)
	}

	// Validate guide settings
	if c.Guide.Horizon <= 0 {
		return fmt.Errorf("invalid guide horizon: %v (must be > 0)", c.Guide.Horizon)
	}
	if c.Guide.Workers < 1 {
		return fmt.Errorf("invalid guide workers: %d (must be >= 1)", c.Guide.Workers)
	}

	// Validate import settings only when the importer is enabled
	if c.Import.Bucket != "" {
		if c.Import.Destination == "" {
			return fmt.Errorf("import destination is required when an import bucket is set")
		}
		if c.Import.Concurrency < 1 {
			return fmt.Errorf("invalid import concurrency: %d (must be >= 1)", c.Import.Concurrency)
		}
	}

	return nil
}

// contains checks if a string slice contains a specific value
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
