// Package config is used to load the configuration file
package config

import (
	"fmt"
	"runtime"
	"slices"
	"strings"

	"github.com/spf13/viper"
)

// Formats are the report formats `info` understands.
var Formats = []string{"text", "json", "yaml"}

const DefaultCacheSize = 4096

type info struct {
	Format   string `mapstructure:"format"`
	Arch     string `mapstructure:"arch"`
	Sections bool   `mapstructure:"sections"`
}

type scan struct {
	Workers   int      `mapstructure:"workers"`
	CacheSize int      `mapstructure:"cache-size"`
	UUIDs     []string `mapstructure:"uuid"`
}

// Config is the configuration struct
type Config struct {
	Verbose bool `mapstructure:"verbose"`
	Color   bool `mapstructure:"color"`
	Info    info `mapstructure:"info"`
	Scan    scan `mapstructure:"scan"`
}

func (c *Config) verify() error {
	c.Info.Format = strings.ToLower(c.Info.Format)
	if c.Info.Format == "" {
		c.Info.Format = "text"
	} else if !slices.Contains(Formats, c.Info.Format) {
		return fmt.Errorf("config: info.format must be one of %s (got %q)", strings.Join(Formats, ", "), c.Info.Format)
	}

	if c.Scan.Workers == 0 {
		c.Scan.Workers = runtime.NumCPU()
	} else if c.Scan.Workers < 1 {
		return fmt.Errorf("config: scan.workers must be at least 1 (got %d)", c.Scan.Workers)
	}

	if c.Scan.CacheSize == 0 {
		c.Scan.CacheSize = DefaultCacheSize
	} else if c.Scan.CacheSize < 1 {
		return fmt.Errorf("config: scan.cache-size must be at least 1 (got %d)", c.Scan.CacheSize)
	}

	return nil
}

// Load unmarshals and verifies the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var c Config

	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal: %v", err)
	}

	if err := c.verify(); err != nil {
		return nil, fmt.Errorf("config: failed to verify: %v", err)
	}

	return &c, nil
}

// LoadConfig loads the configuration from the global viper instance
func LoadConfig() (*Config, error) {
	return Load(viper.GetViper())
}
