// Package config loads folio settings from defaults, an optional config.yaml,
// FOLIO_ environment variables and command line flags, in increasing order of
// precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds folio configuration.
type Config struct {
	PageWidth      int          `mapstructure:"page_width" yaml:"page_width"`         // Columns at 1x zoom
	LinesPerPage   int          `mapstructure:"lines_per_page" yaml:"lines_per_page"` // Plain text pagination
	Scale          float64      `mapstructure:"scale" yaml:"scale"`                   // Initial zoom
	TextLayerClass string       `mapstructure:"text_layer_class" yaml:"text_layer_class"`
	StateDir       string       `mapstructure:"state_dir" yaml:"state_dir"`
	LogFile        string       `mapstructure:"log_file" yaml:"log_file"`
	LogLevel       string       `mapstructure:"log_level" yaml:"log_level"` // debug, info, warn, error
	Watch          bool         `mapstructure:"watch" yaml:"watch"`         // Reload when the file changes
	Summarize      SummarizeCfg `mapstructure:"summarize" yaml:"summarize"`
}

// SummarizeCfg configures the summarization backend.
type SummarizeCfg struct {
	APIKey         string `mapstructure:"api_key" yaml:"api_key"` // Supports ${ENV_VAR} syntax
	Model          string `mapstructure:"model" yaml:"model"`
	BaseURL        string `mapstructure:"base_url" yaml:"base_url"` // Empty for the OpenAI default
	MaxRetries     int    `mapstructure:"max_retries" yaml:"max_retries"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// flagKeys maps command line flags onto config keys.
var flagKeys = map[string]string{
	"page-width":     "page_width",
	"lines-per-page": "lines_per_page",
	"scale":          "scale",
	"state-dir":      "state_dir",
	"log-file":       "log_file",
	"log-level":      "log_level",
	"watch":          "watch",
	"model":          "summarize.model",
}

// Load reads configuration. cfgFile may be empty to search ./config.yaml and
// the folio config dir; flags may be nil.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Environment variables with FOLIO_ prefix, e.g. FOLIO_SUMMARIZE_MODEL
	v.SetEnvPrefix("FOLIO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(Dir())
	}

	// Try to read config file (not required)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Summarize.APIKey = ResolveEnvVars(cfg.Summarize.APIKey)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the viewer cannot work with.
func (c *Config) Validate() error {
	if c.PageWidth < 1 {
		return fmt.Errorf("page_width must be positive, got %d", c.PageWidth)
	}
	if c.LinesPerPage < 1 {
		return fmt.Errorf("lines_per_page must be positive, got %d", c.LinesPerPage)
	}
	if c.Scale <= 0 {
		return fmt.Errorf("scale must be positive, got %g", c.Scale)
	}
	if c.Summarize.MaxRetries < 0 {
		return fmt.Errorf("summarize.max_retries must not be negative, got %d", c.Summarize.MaxRetries)
	}
	return nil
}

// Dir returns XDG_CONFIG_HOME/folio or ~/.config/folio
func Dir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "folio")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "folio")
}

var envRef = regexp.MustCompile(`\$\{([^}]+)\}`)

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	return envRef.ReplaceAllStringFunc(value, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})
}
