package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/spf13/viper"
)

// EngineConfig contains all configuration for a local job run.
type EngineConfig struct {
	WorkDir  string        `mapstructure:"work_dir"`
	Output   string        `mapstructure:"output"`
	Progress bool          `mapstructure:"progress"`
	Store    StoreConfig   `mapstructure:"store"`
	CSV      CSVConfig     `mapstructure:"csv"`
	Logging  LoggingConfig `mapstructure:"logging"`
}

// Comma returns the csv delimiter as a rune.
func (c *EngineConfig) Comma() rune {
	r, _ := utf8.DecodeRuneInString(c.CSV.Delimiter)
	return r
}

func (c *EngineConfig) validate() error {
	switch c.Store.Backend {
	case "fs", "bbolt":
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if utf8.RuneCountInString(c.CSV.Delimiter) != 1 {
		return fmt.Errorf("csv delimiter must be a single character, got %q", c.CSV.Delimiter)
	}
	if r := c.Comma(); r == '"' || r == '\r' || r == '\n' || r == utf8.RuneError {
		return fmt.Errorf("invalid csv delimiter %q", c.CSV.Delimiter)
	}
	return nil
}

// LoadEngine loads the engine configuration from the given path.
// If configPath is empty, it looks for diskmr.yaml in the config/ directory.
// Environment variables with DISKMR_ prefix override config file values.
func LoadEngine(configPath string) (*EngineConfig, error) {
	v := viper.New()

	v.SetDefault("work_dir", filepath.Join(os.TempDir(), "diskmr"))
	v.SetDefault("output", "map_reduce_output.txt")
	v.SetDefault("progress", false)
	v.SetDefault("store.backend", "fs")
	v.SetDefault("csv.delimiter", ",")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("diskmr")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("DISKMR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg EngineConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}
