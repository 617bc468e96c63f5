// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Locus Contributors

package config

import (
	"errors"
	"log/slog"
	"math"
	"net"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/locus-dev/locus/internal/encoder"
	"github.com/locus-dev/locus/internal/secrets"
	"github.com/locus-dev/locus/internal/store"
	locuserr "github.com/locus-dev/locus/pkg/errors"
)

// FileName is the config file looked up when no explicit path is given.
const FileName = "locus.yaml"

// Config is the top-level Locus configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Encoder EncoderConfig `mapstructure:"encoder"`
	Search  SearchConfig  `mapstructure:"search"`

	// File is the config file that was read, empty when running on
	// defaults and environment only.
	File string `mapstructure:"-"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Listen       string        `mapstructure:"listen"`
	CORSOrigins  []string      `mapstructure:"cors_origins"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	RateLimit    RateLimit     `mapstructure:"rate_limit"`
}

// RateLimit bounds API requests per client IP. A zero rate disables it.
type RateLimit struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// StorageConfig selects the location store.
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
	DSN     string `mapstructure:"dsn"`
}

// EncoderConfig selects and tunes the text encoder.
type EncoderConfig struct {
	Variant           string        `mapstructure:"variant"`
	Model             string        `mapstructure:"model"`
	Version           string        `mapstructure:"version"`
	Dimensions        int           `mapstructure:"dimensions"`
	Pooling           string        `mapstructure:"pooling"`
	Normalize         bool          `mapstructure:"normalize"`
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`
	LoadTimeout       time.Duration `mapstructure:"load_timeout"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	MaxConcurrency    int           `mapstructure:"max_concurrency"`
}

// SearchConfig holds query defaults and limits.
type SearchConfig struct {
	DefaultThreshold float64 `mapstructure:"default_threshold"`
	DefaultLimit     int     `mapstructure:"default_limit"`
	MaxLimit         int     `mapstructure:"max_limit"`
	InProcess        bool    `mapstructure:"in_process"`
}

// Keys whose values may be keyring://service/key references.
var secretKeys = []string{"encoder.api_key", "storage.dsn"}

var (
	validBackends = []string{"sqlite", "postgres", "memory"}
	validVariants = []string{"hashing", "tei", "openai", "gemini"}
)

// SearchPaths are the directories searched for FileName, in order.
func SearchPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "locus"))
	}
	return append(paths, "/etc/locus")
}

// LoadDotEnv loads a .env file from the working directory into the process
// environment. Existing variables win. A missing file is not an error.
func LoadDotEnv() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("ignoring unreadable .env file", "error", err)
	}
}

// Load reads configuration from path, or from the first FileName found in
// SearchPaths when path is empty, with LOCUS_ environment overrides.
// keyring:// values are resolved through the OS keyring.
func Load(path string) (*Config, error) {
	return LoadWithSecrets(path, secrets.NewKeyringStore())
}

// LoadWithSecrets is Load with an explicit secret store.
func LoadWithSecrets(path string, secretStore secrets.Store) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("LOCUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(strings.TrimSuffix(FileName, filepath.Ext(FileName)))
		v.SetConfigType("yaml")
		for _, dir := range SearchPaths() {
			v.AddConfigPath(dir)
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, locuserr.Wrapf(err, locuserr.CodeConfigLoadReadFailure, "reading config %s", path)
		}
	}

	if err := secrets.ResolveViperKeys(v, secretStore, secretKeys...); err != nil {
		return nil, locuserr.Wrapf(err, locuserr.CodeSecretResolveFailure, "resolving config secrets")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, locuserr.Wrapf(err, locuserr.CodeConfigParseInvalidFormat, "unmarshalling config")
	}
	cfg.File = v.ConfigFileUsed()

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, locuserr.Wrapf(errors.Join(errs...), locuserr.CodeConfigValidateInvalidValue, "validating config")
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	enc := encoder.DefaultConfig()

	v.SetDefault("server.listen", "127.0.0.1:8080")
	v.SetDefault("server.cors_origins", []string{})
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.rate_limit.requests_per_second", 0)
	v.SetDefault("server.rate_limit.burst", 0)

	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("storage.path", "locus.db")
	v.SetDefault("storage.dsn", "")

	v.SetDefault("encoder.variant", enc.Variant)
	v.SetDefault("encoder.model", enc.Model)
	v.SetDefault("encoder.version", enc.Version)
	v.SetDefault("encoder.dimensions", enc.Dimensions)
	v.SetDefault("encoder.pooling", enc.Pooling)
	v.SetDefault("encoder.normalize", enc.Normalize)
	v.SetDefault("encoder.base_url", "")
	v.SetDefault("encoder.api_key", "")
	v.SetDefault("encoder.load_timeout", enc.LoadTimeout)
	v.SetDefault("encoder.request_timeout", enc.RequestTimeout)
	v.SetDefault("encoder.requests_per_second", 0.0)
	v.SetDefault("encoder.max_concurrency", 0)

	v.SetDefault("search.default_threshold", 0.5)
	v.SetDefault("search.default_limit", 10)
	v.SetDefault("search.max_limit", 100)
	v.SetDefault("search.in_process", false)
}

// EncoderConfig converts the encoder section for encoder.NewCache.
func (c *Config) EncoderConfig() encoder.Config {
	e := c.Encoder
	return encoder.Config{
		Variant:           e.Variant,
		Model:             e.Model,
		Version:           e.Version,
		Dimensions:        e.Dimensions,
		Pooling:           e.Pooling,
		Normalize:         e.Normalize,
		BaseURL:           e.BaseURL,
		APIKey:            e.APIKey,
		LoadTimeout:       e.LoadTimeout,
		RequestTimeout:    e.RequestTimeout,
		RequestsPerSecond: e.RequestsPerSecond,
		MaxConcurrency:    e.MaxConcurrency,
	}
}

// StoreConfig converts the storage section for store.Open. The store's
// vector size always follows the encoder.
func (c *Config) StoreConfig() store.Config {
	return store.Config{
		Backend:    c.Storage.Backend,
		Path:       c.Storage.Path,
		DSN:        c.Storage.DSN,
		Dimensions: c.Encoder.Dimensions,
	}
}

// Validate checks the configuration for logical errors. It returns every
// problem found rather than stopping at the first.
func (c *Config) Validate() []error {
	var errs []error
	errs = append(errs, c.validateServer()...)
	errs = append(errs, c.validateStorage()...)
	errs = append(errs, c.validateEncoder()...)
	errs = append(errs, c.validateSearch()...)
	return errs
}

func invalid(format string, args ...any) error {
	return locuserr.Errorf(locuserr.CodeConfigValidateInvalidValue, "config: "+format, args...)
}

func (c *Config) validateServer() []error {
	var errs []error

	if c.Server.Listen == "" {
		errs = append(errs, invalid("server.listen must not be empty"))
	} else if _, portStr, err := net.SplitHostPort(c.Server.Listen); err != nil {
		errs = append(errs, invalid("server.listen must be a valid host:port address, got %q", c.Server.Listen))
	} else if port, err := strconv.Atoi(portStr); err != nil || port < 1 || port > 65535 {
		errs = append(errs, invalid("server.listen port must be between 1 and 65535, got %q", portStr))
	}

	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 {
		errs = append(errs, invalid("server timeouts must not be negative"))
	}

	rl := c.Server.RateLimit
	if rl.RequestsPerSecond < 0 {
		errs = append(errs, invalid("server.rate_limit.requests_per_second must not be negative, got %g", rl.RequestsPerSecond))
	} else if rl.RequestsPerSecond > 0 && rl.Burst <= 0 {
		errs = append(errs, invalid("server.rate_limit.burst must be positive when a rate is set, got %d", rl.Burst))
	}
	return errs
}

func (c *Config) validateStorage() []error {
	var errs []error

	switch {
	case !slices.Contains(validBackends, c.Storage.Backend):
		errs = append(errs, invalid("storage.backend must be one of %v, got %q", validBackends, c.Storage.Backend))
	case c.Storage.Backend == "postgres" && c.Storage.DSN == "":
		errs = append(errs, invalid("storage.dsn is required for the postgres backend"))
	case c.Storage.Backend == "sqlite" && c.Storage.Path == "":
		errs = append(errs, invalid("storage.path is required for the sqlite backend"))
	}
	return errs
}

func (c *Config) validateEncoder() []error {
	var errs []error

	e := c.Encoder
	if !slices.Contains(validVariants, e.Variant) {
		errs = append(errs, invalid("encoder.variant must be one of %v, got %q", validVariants, e.Variant))
	}
	switch e.Variant {
	case "tei":
		if e.BaseURL == "" {
			errs = append(errs, invalid("encoder.base_url is required for the tei variant"))
		}
	case "openai", "gemini":
		if e.APIKey == "" {
			errs = append(errs, invalid("encoder.api_key is required for the %s variant", e.Variant))
		}
	}

	if err := c.EncoderConfig().Validate(); err != nil {
		errs = append(errs, locuserr.Wrap(err, locuserr.CodeConfigValidateInvalidValue, "config: encoder"))
	}
	return errs
}

func (c *Config) validateSearch() []error {
	var errs []error

	s := c.Search
	if math.IsNaN(s.DefaultThreshold) || s.DefaultThreshold < -1 || s.DefaultThreshold > 1 {
		errs = append(errs, invalid("search.default_threshold must be within [-1, 1], got %v", s.DefaultThreshold))
	}
	if s.MaxLimit <= 0 {
		errs = append(errs, invalid("search.max_limit must be greater than 0, got %d", s.MaxLimit))
	}
	if s.DefaultLimit <= 0 || (s.MaxLimit > 0 && s.DefaultLimit > s.MaxLimit) {
		errs = append(errs, invalid("search.default_limit must be within [1, search.max_limit], got %d", s.DefaultLimit))
	}
	return errs
}
