// Package config handles configuration loading for statcango.
// It supports YAML config files with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	Statcan StatcanConfig `mapstructure:"statcan" yaml:"statcan"`
	Cache   CacheConfig   `mapstructure:"cache"   yaml:"cache"`
	HTTP    HTTPConfig    `mapstructure:"http"    yaml:"http"`
	API     APIConfig     `mapstructure:"api"     yaml:"api"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// StatcanConfig holds source-agency settings.
type StatcanConfig struct {
	// BaseURL is where full-table zips live; a bare product id on the
	// CLI is expanded against it.
	BaseURL  string `mapstructure:"base_url" yaml:"base_url"`
	Language string `mapstructure:"language" yaml:"language"` // "eng" or "fra"
}

// CacheConfig holds the on-disk download cache settings.
type CacheConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// HTTPConfig holds outbound HTTP settings.
type HTTPConfig struct {
	TimeoutSec int `mapstructure:"timeout_sec"  yaml:"timeout_sec"`
	RatePerSec int `mapstructure:"rate_per_sec" yaml:"rate_per_sec"`
}

// APIConfig holds the REST server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host"         yaml:"host"`
	Port        int      `mapstructure:"port"         yaml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format"` // "text" or "json"
}

// ZipURL expands a bare product id into a full-table zip URL using the
// configured base URL and language.
func (c *Config) ZipURL(pid string) string {
	lang := c.Statcan.Language
	if lang == "" {
		lang = "eng"
	}
	base := strings.TrimSuffix(c.Statcan.BaseURL, "/")
	return fmt.Sprintf("%s/%s-%s.zip", base, pid, lang)
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.statcango/config.yaml (home directory)
//  3. /etc/statcango/config.yaml (system)
//
// Environment variables override config file values.
// Format: STATCANGO_<SECTION>_<KEY>, e.g., STATCANGO_CACHE_DIR
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".statcango"))
	v.AddConfigPath("/etc/statcango")

	v.SetEnvPrefix("STATCANGO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found — defaults + env vars apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvPrefix("STATCANGO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("statcan.base_url", "https://www150.statcan.gc.ca/n1/tbl/csv")
	v.SetDefault("statcan.language", "eng")

	v.SetDefault("cache.dir", "") // empty = ~/.statcango

	v.SetDefault("http.timeout_sec", 300)
	v.SetDefault("http.rate_per_sec", 2)

	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"*"})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
