package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/JaimeStill/accord/internal/merge"
)

const (
	EnvGenerationArchiveTimeout   = "ACCORD_GENERATION_ARCHIVE_TIMEOUT"
	EnvGenerationPackagePrefix    = "ACCORD_GENERATION_PACKAGE_PREFIX"
	EnvGenerationUnresolvedPolicy = "ACCORD_GENERATION_UNRESOLVED_POLICY"
	EnvGenerationMaxItems         = "ACCORD_GENERATION_MAX_ITEMS"
	EnvGenerationCacheEntries     = "ACCORD_GENERATION_CACHE_ENTRIES"
)

// GenerationConfig holds bulk run settings.
type GenerationConfig struct {
	ArchiveTimeout   string `toml:"archive_timeout"`
	PackagePrefix    string `toml:"package_prefix"`
	UnresolvedPolicy string `toml:"unresolved_policy"`
	MaxItems         int    `toml:"max_items"`
	CacheEntries     int    `toml:"cache_entries"`
}

// ArchiveTimeoutDuration returns ArchiveTimeout as a time.Duration.
func (c *GenerationConfig) ArchiveTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ArchiveTimeout)
	return d
}

// Policy returns the parsed unresolved placeholder policy.
func (c *GenerationConfig) Policy() merge.UnresolvedPolicy {
	p, _ := merge.ParsePolicy(c.UnresolvedPolicy)
	return p
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *GenerationConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *GenerationConfig) Merge(overlay *GenerationConfig) {
	if overlay.ArchiveTimeout != "" {
		c.ArchiveTimeout = overlay.ArchiveTimeout
	}
	if overlay.PackagePrefix != "" {
		c.PackagePrefix = overlay.PackagePrefix
	}
	if overlay.UnresolvedPolicy != "" {
		c.UnresolvedPolicy = overlay.UnresolvedPolicy
	}
	if overlay.MaxItems != 0 {
		c.MaxItems = overlay.MaxItems
	}
	if overlay.CacheEntries != 0 {
		c.CacheEntries = overlay.CacheEntries
	}
}

func (c *GenerationConfig) loadDefaults() {
	if c.ArchiveTimeout == "" {
		c.ArchiveTimeout = "30s"
	}
	if c.PackagePrefix == "" {
		c.PackagePrefix = "packages"
	}
	if c.UnresolvedPolicy == "" {
		c.UnresolvedPolicy = string(merge.PolicyBlank)
	}
	if c.MaxItems == 0 {
		c.MaxItems = 500
	}
	if c.CacheEntries == 0 {
		c.CacheEntries = 512
	}
}

func (c *GenerationConfig) loadEnv() {
	if v := os.Getenv(EnvGenerationArchiveTimeout); v != "" {
		c.ArchiveTimeout = v
	}
	if v := os.Getenv(EnvGenerationPackagePrefix); v != "" {
		c.PackagePrefix = v
	}
	if v := os.Getenv(EnvGenerationUnresolvedPolicy); v != "" {
		c.UnresolvedPolicy = v
	}
	if v := os.Getenv(EnvGenerationMaxItems); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxItems = n
		}
	}
	if v := os.Getenv(EnvGenerationCacheEntries); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.CacheEntries = n
		}
	}
}

func (c *GenerationConfig) validate() error {
	if _, err := time.ParseDuration(c.ArchiveTimeout); err != nil {
		return fmt.Errorf("invalid archive_timeout: %w", err)
	}
	if _, err := merge.ParsePolicy(c.UnresolvedPolicy); err != nil {
		return err
	}
	if c.MaxItems < 0 {
		return fmt.Errorf("invalid max_items: %d", c.MaxItems)
	}
	return nil
}
