package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/JaimeStill/accord/pkg/database"
	"github.com/JaimeStill/accord/pkg/events"
	"github.com/JaimeStill/accord/pkg/storage"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"

	EnvAccordEnv             = "ACCORD_ENV"
	EnvAccordShutdownTimeout = "ACCORD_SHUTDOWN_TIMEOUT"
	EnvAccordVersion         = "ACCORD_VERSION"
)

var databaseEnv = &database.Env{
	Host:            "ACCORD_DB_HOST",
	Port:            "ACCORD_DB_PORT",
	Name:            "ACCORD_DB_NAME",
	User:            "ACCORD_DB_USER",
	Password:        "ACCORD_DB_PASSWORD",
	SSLMode:         "ACCORD_DB_SSL_MODE",
	ApplicationName: "ACCORD_DB_APPLICATION_NAME",
	MaxOpenConns:    "ACCORD_DB_MAX_OPEN_CONNS",
	MaxIdleConns:    "ACCORD_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime: "ACCORD_DB_CONN_MAX_LIFETIME",
	ConnTimeout:     "ACCORD_DB_CONN_TIMEOUT",
}

var storageEnv = &storage.Env{
	Backend:          "ACCORD_STORAGE_BACKEND",
	ContainerName:    "ACCORD_STORAGE_CONTAINER_NAME",
	ConnectionString: "ACCORD_STORAGE_CONNECTION_STRING",
	AccountURL:       "ACCORD_STORAGE_ACCOUNT_URL",
	Root:             "ACCORD_STORAGE_ROOT",
}

var eventsEnv = &events.Env{
	Enabled:       "ACCORD_EVENTS_ENABLED",
	Addr:          "ACCORD_EVENTS_ADDR",
	Password:      "ACCORD_EVENTS_PASSWORD",
	DB:            "ACCORD_EVENTS_DB",
	ChannelPrefix: "ACCORD_EVENTS_CHANNEL_PREFIX",
}

// Config is the root configuration for the Accord service.
type Config struct {
	Server          ServerConfig     `toml:"server"`
	Database        database.Config  `toml:"database"`
	Storage         storage.Config   `toml:"storage"`
	Events          events.Config    `toml:"events"`
	API             APIConfig        `toml:"api"`
	Generation      GenerationConfig `toml:"generation"`
	ShutdownTimeout string           `toml:"shutdown_timeout"`
	Version         string           `toml:"version"`
}

// Env returns the ACCORD_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvAccordEnv); env != "" {
		return env
	}
	return "local"
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// Load reads config.toml from the working directory. See LoadFile.
func Load() (*Config, error) {
	return LoadFile(BaseConfigFile)
}

// LoadFile reads the base config at path (if present), applies any
// environment overlay found beside it, and finalizes all values. If no base
// file exists, defaults and environment variables provide all configuration.
func LoadFile(path string) (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat(path); err == nil {
		loaded, err := load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if overlay := overlayPath(path); overlay != "" {
		loaded, err := load(overlay)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", overlay, err)
		}
		cfg.Merge(loaded)
	}

	if err := cfg.finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}

	return cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sub-configs.
func (c *Config) Merge(overlay *Config) {
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
	if overlay.Version != "" {
		c.Version = overlay.Version
	}
	c.Server.Merge(&overlay.Server)
	c.Database.Merge(&overlay.Database)
	c.Storage.Merge(&overlay.Storage)
	c.Events.Merge(&overlay.Events)
	c.API.Merge(&overlay.API)
	c.Generation.Merge(&overlay.Generation)
}

func (c *Config) finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}
	if err := c.Server.Finalize(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Database.Finalize(databaseEnv); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Storage.Finalize(storageEnv); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := c.Events.Finalize(eventsEnv); err != nil {
		return fmt.Errorf("events: %w", err)
	}
	if err := c.API.Finalize(); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	if err := c.Generation.Finalize(); err != nil {
		return fmt.Errorf("generation: %w", err)
	}
	return nil
}
func (c *Config) loadDefaults() {
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
}

func (c *Config) loadEnv() {
	if v := os.Getenv(EnvAccordShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
	if v := os.Getenv(EnvAccordVersion); v != "" {
		c.Version = v
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}
	return nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

func overlayPath(base string) string {
	if env := os.Getenv(EnvAccordEnv); env != "" {
		path := filepath.Join(filepath.Dir(base), fmt.Sprintf(OverlayConfigPattern, env))
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
