package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Storage  StorageConfig  `yaml:"storage"`
	Dispatch DispatchConfig `yaml:"dispatch"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateBurst       int     `yaml:"rate_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// AuthConfig holds the bearer token protecting the upload endpoints.
type AuthConfig struct {
	APIToken string `yaml:"api_token"`
}

// StorageConfig holds the image storage configuration. The sweep settings
// control how often staging leftovers are collected and how old a staging
// file must be before it is considered abandoned.
type StorageConfig struct {
	Root                 string `yaml:"root"`
	MaxUploadBytes       int64  `yaml:"max_upload_bytes"`
	SweepIntervalMinutes int    `yaml:"sweep_interval_minutes"`
	StaleStagingMinutes  int    `yaml:"stale_staging_minutes"`
}

// DispatchConfig holds the OCR task dispatch (RabbitMQ) configuration.
type DispatchConfig struct {
	Enabled        bool   `yaml:"enabled"`
	URL            string `yaml:"url"`
	Exchange       string `yaml:"exchange"`
	RoutingKey     string `yaml:"routing_key"`
	WorkerPoolSize int    `yaml:"worker_pool_size"`
	QueueDepth     int    `yaml:"queue_depth"`
}

// Load reads the configuration from the given path. Environment variables
// override file values for credentials so deployments can keep secrets out
// of the config file. Missing required settings are returned as an error;
// the caller is expected to treat that as fatal.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) applyEnvOverrides() {
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("API_TOKEN"); v != "" {
		cfg.Auth.APIToken = v
	}
	if v := os.Getenv("STORAGE_ROOT"); v != "" {
		cfg.Storage.Root = v
	}
	if v := os.Getenv("MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Storage.MaxUploadBytes = n
		}
	}
	if v := os.Getenv("AMQP_URL"); v != "" {
		cfg.Dispatch.URL = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateBurst <= 0 {
		cfg.Server.RateBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 5
	}

	if cfg.Storage.SweepIntervalMinutes <= 0 {
		cfg.Storage.SweepIntervalMinutes = 15
	}
	if cfg.Storage.StaleStagingMinutes <= 0 {
		cfg.Storage.StaleStagingMinutes = 60
	}

	if cfg.Database.MaxOpenConns <= 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns <= 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetimeMinutes <= 0 {
		cfg.Database.ConnMaxLifetimeMinutes = 30
	}

	if cfg.Dispatch.Exchange == "" {
		cfg.Dispatch.Exchange = "ocr.tasks"
	}
	if cfg.Dispatch.RoutingKey == "" {
		cfg.Dispatch.RoutingKey = "ocr.task.created"
	}
	if cfg.Dispatch.WorkerPoolSize <= 0 {
		log.Printf("dispatch.worker_pool_size is not set or invalid; defaulting to 4")
		cfg.Dispatch.WorkerPoolSize = 4
	}
	if cfg.Dispatch.QueueDepth <= 0 {
		cfg.Dispatch.QueueDepth = 64
	}
}

func (cfg *Config) validate() error {
	var missing []string
	if cfg.Database.DSN == "" {
		missing = append(missing, "database.dsn")
	}
	if cfg.Auth.APIToken == "" {
		missing = append(missing, "auth.api_token")
	}
	if cfg.Storage.Root == "" {
		missing = append(missing, "storage.root")
	}
	if cfg.Storage.MaxUploadBytes <= 0 {
		missing = append(missing, "storage.max_upload_bytes")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %v", missing)
	}
	if cfg.Dispatch.Enabled && cfg.Dispatch.URL == "" {
		return fmt.Errorf("dispatch.enabled is set but dispatch.url is empty")
	}
	return nil
}
