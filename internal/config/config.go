// Package config provides YAML/env/flag configuration loading for p2pchat.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the root application configuration.
type Config struct {
	// Port is the TCP port the node listens on. 0 lets the OS pick one.
	Port int `mapstructure:"port"`

	// MaxBufferSize caps a single read from a peer.
	MaxBufferSize int `mapstructure:"max_buffer_size"`

	// ReuseAddr sets SO_REUSEADDR on the listening socket.
	ReuseAddr bool `mapstructure:"reuse_addr"`

	// Prompt printed in front of operator input
	Prompt string `mapstructure:"prompt"`

	// Color highlights `list` output
	Color bool `mapstructure:"color"`

	Log LogConfig `mapstructure:"log"`
}

// LogConfig defines logger settings.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `mapstructure:"level"`
	// Format: console or json
	Format string `mapstructure:"format"`
	// Outputs: stdout, stderr, or file paths
	Outputs []string `mapstructure:"outputs"`

	Rotation    RotationConfig `mapstructure:"rotation"`
	Development bool           `mapstructure:"development"`
}

// RotationConfig controls log file rotation for file outputs.
type RotationConfig struct {
	Enable     bool   `mapstructure:"enable"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

const envPrefix = "P2PCHAT"

// Default returns a Config populated with sensible defaults.
// Logs go to a rotated file: stdout belongs to the chat console.
func Default() *Config {
	return &Config{
		Port:          0,
		MaxBufferSize: 1024,
		ReuseAddr:     true,
		Prompt:        "> ",
		Color:         true,
		Log: LogConfig{
			Level:   "info",
			Format:  "console",
			Outputs: []string{"logs/p2pchat.log"},
			Rotation: RotationConfig{
				Enable:     true,
				Filename:   "logs/p2pchat.log",
				MaxSizeMB:  10,
				MaxBackups: 3,
				MaxAgeDays: 7,
				Compress:   false,
			},
		},
	}
}

// Load reads configuration from path (if non-empty), otherwise searches the
// usual locations. Environment overrides use the P2PCHAT prefix with `.` and
// `-` replaced by `_` (P2PCHAT_LOG_LEVEL=debug). Flags listed in flagKeys win
// over everything else when they were set on the command line.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("port", cfg.Port)
	v.SetDefault("max_buffer_size", cfg.MaxBufferSize)
	v.SetDefault("reuse_addr", cfg.ReuseAddr)
	v.SetDefault("prompt", cfg.Prompt)
	v.SetDefault("color", cfg.Color)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.outputs", cfg.Log.Outputs)
	v.SetDefault("log.development", cfg.Log.Development)
	v.SetDefault("log.rotation.enable", cfg.Log.Rotation.Enable)
	v.SetDefault("log.rotation.filename", cfg.Log.Rotation.Filename)
	v.SetDefault("log.rotation.max_size_mb", cfg.Log.Rotation.MaxSizeMB)
	v.SetDefault("log.rotation.max_backups", cfg.Log.Rotation.MaxBackups)
	v.SetDefault("log.rotation.max_age_days", cfg.Log.Rotation.MaxAgeDays)
	v.SetDefault("log.rotation.compress", cfg.Log.Rotation.Compress)

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	if path == "" {
		if envPath := os.Getenv(envPrefix + "_CONFIG"); envPath != "" {
			path = envPath
		}
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("p2pchat")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".p2pchat"))
		}
	}

	// a missing config file is fine, defaults + env still apply
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// flagKeys maps CLI flag names onto config keys.
var flagKeys = map[string]string{
	"log-level":   "log.level",
	"buffer-size": "max_buffer_size",
	"prompt":      "prompt",
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

func (c *Config) validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.MaxBufferSize <= 0 {
		return fmt.Errorf("invalid max_buffer_size: %d", c.MaxBufferSize)
	}

	switch strings.ToLower(strings.TrimSpace(c.Log.Level)) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log.level: %q", c.Log.Level)
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if len(c.Log.Outputs) == 0 {
		c.Log.Outputs = []string{"stderr"}
	}
	if c.Prompt == "" {
		c.Prompt = "> "
	}
	return nil
}
