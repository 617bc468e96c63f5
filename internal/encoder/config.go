// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Locus Contributors

package encoder

import (
	"errors"
	"time"

	locuserr "github.com/locus-dev/locus/pkg/errors"
)

// Defaults select the offline feature-hashing encoder, which needs no model
// download. Production deployments set the variant to tei (or a hosted API)
// and name the served model, e.g. sentence-transformers/all-MiniLM-L6-v2,
// whose 384 dimensions the default keeps.
const (
	DefaultVariant        = "hashing"
	DefaultModel          = "feature-hash"
	DefaultVersion        = "1"
	DefaultDimensions     = 384
	DefaultLoadTimeout    = 2 * time.Minute
	DefaultRequestTimeout = 30 * time.Second

	PoolingMean = "mean"
)

// Config identifies a fixed, versioned encoder and how to reach it.
type Config struct {
	Variant    string
	Model      string
	Version    string
	Dimensions int
	Pooling    string
	Normalize  bool

	BaseURL string
	APIKey  string

	LoadTimeout       time.Duration
	RequestTimeout    time.Duration
	RequestsPerSecond float64 // 0 means unlimited
	MaxConcurrency    int     // 0 means the model is reentrant
}

// DefaultConfig returns the built-in encoder configuration.
func DefaultConfig() Config {
	return Config{
		Variant:        DefaultVariant,
		Model:          DefaultModel,
		Version:        DefaultVersion,
		Dimensions:     DefaultDimensions,
		Pooling:        PoolingMean,
		Normalize:      true,
		LoadTimeout:    DefaultLoadTimeout,
		RequestTimeout: DefaultRequestTimeout,
	}
}

// Info returns the model identity described by the config.
func (c Config) Info() ModelInfo {
	return ModelInfo{
		Variant:    c.Variant,
		Name:       c.Model,
		Version:    c.Version,
		Dimensions: c.Dimensions,
		Pooling:    c.Pooling,
		Normalize:  c.Normalize,
	}
}

// Validate checks the fields every variant relies on. Variant specific
// requirements such as API keys are checked by the variant's loader.
func (c Config) Validate() error {
	var errs []error
	if c.Variant == "" {
		errs = append(errs, locuserr.New(locuserr.CodeEncoderConfigInvalid, "encoder.variant is required"))
	}
	if c.Model == "" {
		errs = append(errs, locuserr.New(locuserr.CodeEncoderConfigInvalid, "encoder.model is required"))
	}
	if c.Version == "" {
		errs = append(errs, locuserr.New(locuserr.CodeEncoderConfigInvalid, "encoder.version is required"))
	}
	if c.Dimensions <= 0 {
		errs = append(errs, locuserr.Errorf(locuserr.CodeEncoderConfigInvalid,
			"encoder.dimensions must be positive, got %d", c.Dimensions))
	}
	if c.Pooling != PoolingMean {
		errs = append(errs, locuserr.Errorf(locuserr.CodeEncoderConfigInvalid,
			"encoder.pooling %q is not supported (only %q)", c.Pooling, PoolingMean))
	}
	if !c.Normalize {
		errs = append(errs, locuserr.New(locuserr.CodeEncoderConfigInvalid,
			"encoder.normalize must be true: similarity is computed as a dot product"))
	}
	if c.LoadTimeout < 0 || c.RequestTimeout < 0 {
		errs = append(errs, locuserr.New(locuserr.CodeEncoderConfigInvalid, "encoder timeouts must not be negative"))
	}
	if c.RequestsPerSecond < 0 {
		errs = append(errs, locuserr.Errorf(locuserr.CodeEncoderConfigInvalid,
			"encoder.requests_per_second must not be negative, got %v", c.RequestsPerSecond))
	}
	if c.MaxConcurrency < 0 {
		errs = append(errs, locuserr.Errorf(locuserr.CodeEncoderConfigInvalid,
			"encoder.max_concurrency must not be negative, got %d", c.MaxConcurrency))
	}

	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	return locuserr.Wrap(errors.Join(errs...), locuserr.CodeEncoderConfigInvalid, "invalid encoder config")
}
