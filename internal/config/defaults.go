package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		PageWidth:      80,
		LinesPerPage:   40,
		Scale:          1.0,
		TextLayerClass: "textLayer",
		LogLevel:       "info",
		Watch:          true,
		Summarize: SummarizeCfg{
			APIKey:         "${OPENAI_API_KEY}",
			Model:          "gpt-4o-mini",
			MaxRetries:     3,
			TimeoutSeconds: 60,
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("page_width", d.PageWidth)
	v.SetDefault("lines_per_page", d.LinesPerPage)
	v.SetDefault("scale", d.Scale)
	v.SetDefault("text_layer_class", d.TextLayerClass)
	v.SetDefault("state_dir", d.StateDir)
	v.SetDefault("log_file", d.LogFile)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("watch", d.Watch)
	v.SetDefault("summarize.api_key", d.Summarize.APIKey)
	v.SetDefault("summarize.model", d.Summarize.Model)
	v.SetDefault("summarize.base_url", d.Summarize.BaseURL)
	v.SetDefault("summarize.max_retries", d.Summarize.MaxRetries)
	v.SetDefault("summarize.timeout_seconds", d.Summarize.TimeoutSeconds)
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	header := []byte(`# folio configuration
# The API key uses ${ENV_VAR} syntax to reference environment variables.
# Any key can also be set as FOLIO_<KEY>, e.g. FOLIO_SUMMARIZE_MODEL.

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}
