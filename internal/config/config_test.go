package config

import (
	"testing"
	"time"
)

func TestConfigDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// Test server defaults
	if cfg.Server.Port != defaultServerPort {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, defaultServerPort)
	}
	if cfg.Server.Host != defaultServerHost {
		t.Errorf("Server.Host = %s, want %s", cfg.Server.Host, defaultServerHost)
	}

	// Test database defaults
	if cfg.Database.Path != defaultDatabasePath {
		t.Errorf("Database.Path = %s, want %s", cfg.Database.Path, defaultDatabasePath)
	}
	if cfg.Database.EnableWAL != defaultDatabaseEnableWAL {
		t.Errorf("Database.EnableWAL = %v, want %v", cfg.Database.EnableWAL, defaultDatabaseEnableWAL)
	}

	// Test logging defaults
	if cfg.Logging.Level != defaultLogLevel {
		t.Errorf("Logging.Level = %s, want %s", cfg.Logging.Level, defaultLogLevel)
	}
	if cfg.Logging.File != "" {
		t.Errorf("Logging.File = %s, want empty", cfg.Logging.File)
	}

	// Test scheduler defaults
	if cfg.Scheduler.SyncInterval != defaultSyncInterval {
		t.Errorf("Scheduler.SyncInterval = %v, want %v", cfg.Scheduler.SyncInterval, defaultSyncInterval)
	}
	if cfg.Scheduler.GuardWindow != defaultGuardWindow {
		t.Errorf("Scheduler.GuardWindow = %v, want %v", cfg.Scheduler.GuardWindow, defaultGuardWindow)
	}
	if cfg.Scheduler.GuardTripCount != defaultGuardTripCount {
		t.Errorf("Scheduler.GuardTripCount = %d, want %d", cfg.Scheduler.GuardTripCount, defaultGuardTripCount)
	}

	// Test guide defaults
	if cfg.Guide.Horizon != defaultGuideHorizon {
		t.Errorf("Guide.Horizon = %v, want %v", cfg.Guide.Horizon, defaultGuideHorizon)
	}
	if cfg.Guide.Workers != defaultGuideWorkers {
		t.Errorf("Guide.Workers = %d, want %d", cfg.Guide.Workers, defaultGuideWorkers)
	}

	// Import is disabled by default
	if cfg.Import.Bucket != "" {
		t.Errorf("Import.Bucket = %s, want empty", cfg.Import.Bucket)
	}
}

func TestConfigEnvironmentOverrides(t *testing.T) {
	t.Setenv("CAROUSEL_SERVER_PORT", "9090")
	t.Setenv("CAROUSEL_LOGGING_LEVEL", "debug")
	t.Setenv("CAROUSEL_SCHEDULER_SYNCINTERVAL", "5s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %s, want debug", cfg.Logging.Level)
	}
	if cfg.Scheduler.SyncInterval != 5*time.Second {
		t.Errorf("Scheduler.SyncInterval = %v, want 5s", cfg.Scheduler.SyncInterval)
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid defaults",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "invalid port",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: true,
		},
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: true,
		},
		{
			name:    "invalid sync interval",
			mutate:  func(c *Config) { c.Scheduler.SyncInterval = 0 },
			wantErr: true,
		},
		{
			name:    "invalid guard trip count",
			mutate:  func(c *Config) { c.Scheduler.GuardTripCount = 0 },
			wantErr: true,
		},
		{
			name:    "invalid guide workers",
			mutate:  func(c *Config) { c.Guide.Workers = 0 },
			wantErr: true,
		},
		{
			name:    "import bucket without destination",
			mutate:  func(c *Config) { c.Import.Bucket = "media" },
			wantErr: true,
		},
		{
			name: "import bucket with destination",
			mutate: func(c *Config) {
				c.Import.Bucket = "media"
				c.Import.Destination = "/library/import"
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}

			tt.mutate(cfg)

			err = cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
