package events

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds Redis pub/sub parameters. Publishing is a no-op when Enabled is false.
type Config struct {
	Enabled       bool   `toml:"enabled"`
	Addr          string `toml:"addr"`
	Password      string `toml:"password"`
	DB            int    `toml:"db"`
	ChannelPrefix string `toml:"channel_prefix"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Enabled       string
	Addr          string
	Password      string
	DB            string
	ChannelPrefix string
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	if c.Addr == "" {
		c.Addr = "localhost:6379"
	}
	if c.ChannelPrefix == "" {
		c.ChannelPrefix = "accord"
	}

	if env != nil {
		c.loadEnv(env)
	}

	if c.DB < 0 {
		return fmt.Errorf("invalid db: %d", c.DB)
	}
	if c.Enabled && c.Addr == "" {
		return fmt.Errorf("addr required when enabled")
	}
	return nil
}

// Merge overwrites fields from overlay. Enabled always applies.
func (c *Config) Merge(overlay *Config) {
	c.Enabled = overlay.Enabled
	if overlay.Addr != "" {
		c.Addr = overlay.Addr
	}
	if overlay.Password != "" {
		c.Password = overlay.Password
	}
	if overlay.DB != 0 {
		c.DB = overlay.DB
	}
	if overlay.ChannelPrefix != "" {
		c.ChannelPrefix = overlay.ChannelPrefix
	}
}

func (c *Config) loadEnv(env *Env) {
	get := func(name string) (string, bool) {
		if name == "" {
			return "", false
		}
		v := os.Getenv(name)
		return v, v != ""
	}

	if v, ok := get(env.Enabled); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Enabled = b
		}
	}
	if v, ok := get(env.Addr); ok {
		c.Addr = v
	}
	if v, ok := get(env.Password); ok {
		c.Password = v
	}
	if v, ok := get(env.DB); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.DB = n
		}
	}
	if v, ok := get(env.ChannelPrefix); ok {
		c.ChannelPrefix = v
	}
}
