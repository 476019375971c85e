// Package config loads cref settings from cref.yaml, CREF_* environment
// variables and a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// ConfigName is the config file name without extension.
	ConfigName = "cref"
	// ConfigDir is the directory name under XDG_CONFIG_HOME.
	ConfigDir = "cref"
	// EnvPrefix prefixes every environment override, e.g. CREF_STORE_PATH.
	EnvPrefix = "CREF"

	DefaultStorePath           = "canonical-references.json"
	DefaultIndexFile           = "index.db"
	DefaultLowInfoThreshold    = 4
	DefaultConfidenceThreshold = 0.7
	DefaultCrossRefBaseURL     = "https://api.crossref.org"
	DefaultRateLimit           = 10.0
	DefaultTimeout             = 10 * time.Second
	DefaultConcurrency         = 4
	DefaultCacheDays           = 30
	DefaultLogLevel            = "warn"
)

// CrossRef holds the metadata authority settings.
type CrossRef struct {
	BaseURL   string  `mapstructure:"base_url"`
	Mailto    string  `mapstructure:"mailto"`
	RateLimit float64 `mapstructure:"rate_limit"`
}

// Config is the resolved configuration.
type Config struct {
	StorePath             string        `mapstructure:"store_path"`
	IndexPath             string        `mapstructure:"index_path"`
	LowInfoThreshold      int           `mapstructure:"low_info_threshold"`
	ConfidenceThreshold   float64       `mapstructure:"confidence_threshold"`
	StrictFields          bool          `mapstructure:"strict_fields"`
	FailOnInaccessibleURL bool          `mapstructure:"fail_on_inaccessible_url"`
	FailOnInvalidDOI      bool          `mapstructure:"fail_on_invalid_doi"`
	CrossRef              CrossRef      `mapstructure:"crossref"`
	Timeout               time.Duration `mapstructure:"timeout"`
	Concurrency           int           `mapstructure:"concurrency"`
	CacheDays             int           `mapstructure:"cache_days"`
	LogLevel              string        `mapstructure:"log_level"`

	// Source is the config file that was read, empty if none.
	Source string `mapstructure:"-"`
}

// SetDefaults registers every key with its default so that environment
// overrides are seen by Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("store_path", DefaultStorePath)
	v.SetDefault("index_path", "")
	v.SetDefault("low_info_threshold", DefaultLowInfoThreshold)
	v.SetDefault("confidence_threshold", DefaultConfidenceThreshold)
	v.SetDefault("strict_fields", false)
	v.SetDefault("fail_on_inaccessible_url", false)
	v.SetDefault("fail_on_invalid_doi", false)
	v.SetDefault("crossref.base_url", DefaultCrossRefBaseURL)
	v.SetDefault("crossref.mailto", "")
	v.SetDefault("crossref.rate_limit", DefaultRateLimit)
	v.SetDefault("timeout", DefaultTimeout)
	v.SetDefault("concurrency", DefaultConcurrency)
	v.SetDefault("cache_days", DefaultCacheDays)
	v.SetDefault("log_level", DefaultLogLevel)
}

// New returns a viper instance with defaults, search paths and environment
// binding configured. An explicit file replaces the search paths.
func New(configFile string) *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir := GlobalConfigDir(); dir != "" {
			v.AddConfigPath(dir)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads .env (if present), then the config file, then decodes and
// validates. A missing config file is not an error unless it was named
// explicitly.
func Load(configFile string) (*Config, error) {
	if err := LoadDotEnv(); err != nil {
		return nil, err
	}
	return FromViper(New(configFile))
}

// FromViper reads the config file registered on v and decodes it.
func FromViper(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.Source = v.ConfigFileUsed()
	cfg.StorePath = ExpandPath(cfg.StorePath)
	cfg.IndexPath = ExpandPath(cfg.IndexPath)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDotEnv loads ./.env into the environment without overriding
// variables that are already set. A missing file is ignored.
func LoadDotEnv() error {
	if _, err := os.Stat(".env"); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("checking .env: %w", err)
	}
	if err := godotenv.Load(); err != nil {
		return fmt.Errorf("loading .env: %w", err)
	}
	return nil
}

// Validate rejects out-of-range values.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.StorePath) == "" {
		problems = append(problems, "store_path must not be empty")
	}
	if c.LowInfoThreshold < 0 {
		problems = append(problems, fmt.Sprintf("low_info_threshold must be >= 0, got %d", c.LowInfoThreshold))
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		problems = append(problems, fmt.Sprintf("confidence_threshold must be in [0, 1], got %g", c.ConfidenceThreshold))
	}
	if c.CrossRef.BaseURL == "" {
		problems = append(problems, "crossref.base_url must not be empty")
	}
	if c.CrossRef.RateLimit < 0 {
		problems = append(problems, fmt.Sprintf("crossref.rate_limit must be >= 0, got %g", c.CrossRef.RateLimit))
	}
	if c.Timeout <= 0 {
		problems = append(problems, fmt.Sprintf("timeout must be positive, got %s", c.Timeout))
	}
	if c.Concurrency < 1 {
		problems = append(problems, fmt.Sprintf("concurrency must be >= 1, got %d", c.Concurrency))
	}
	if c.CacheDays < 0 {
		problems = append(problems, fmt.Sprintf("cache_days must be >= 0, got %d", c.CacheDays))
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error", "":
	default:
		problems = append(problems, fmt.Sprintf("log_level must be debug, info, warn or error, got %q", c.LogLevel))
	}

	if len(problems) > 0 {
		return &Error{Problems: problems}
	}
	return nil
}

// CacheWindow is CacheDays as a duration.
func (c *Config) CacheWindow() time.Duration {
	return time.Duration(c.CacheDays) * 24 * time.Hour
}

// IndexFile returns the index path, defaulting to .cref/index.db beside the store.
func (c *Config) IndexFile() string {
	if c.IndexPath != "" {
		return c.IndexPath
	}
	return filepath.Join(filepath.Dir(c.StorePath), ".cref", DefaultIndexFile)
}

// Error lists every invalid setting.
type Error struct {
	Problems []string
}

func (e *Error) Error() string {
	return "invalid config: " + strings.Join(e.Problems, "; ")
}

// IsConfigError reports whether err is (or wraps) a *Error.
func IsConfigError(err error) bool {
	var ce *Error
	return errors.As(err, &ce)
}

// GlobalConfigDir returns $XDG_CONFIG_HOME/cref, defaulting to ~/.config/cref.
func GlobalConfigDir() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, ConfigDir)
}

// ExpandPath expands ~ to the user's home directory.
// Returns the original path unchanged if it doesn't start with ~.
func ExpandPath(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path // Return original if we can't get home directory
	}

	return filepath.Join(home, path[1:])
}
