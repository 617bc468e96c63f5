// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Locus Contributors

package encoder

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/locus-dev/locus/internal/metrics"
	locuserr "github.com/locus-dev/locus/pkg/errors"
	"github.com/locus-dev/locus/pkg/health"
)

const loadKey = "model"

// Option configures a Cache.
type Option func(*Cache)

// WithMetrics records load and encode metrics on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// Source hands out the shared encoder. *Cache is the production
// implementation.
type Source interface {
	Acquire(ctx context.Context) (Encoder, error)
	Info() ModelInfo
}

// Compile-time interface check.
var _ Source = (*Cache)(nil)

// Cache is the process-wide holder of the shared TextEncoder. The first
// Acquire loads the model; concurrent callers wait on the same load and
// receive the same encoder. A failed load is not remembered, so the next
// Acquire tries again.
type Cache struct {
	cfg     Config
	load    LoadFunc
	health  *HealthTracker
	metrics *metrics.Metrics

	group singleflight.Group
	mu    sync.RWMutex
	enc   *TextEncoder
	loads atomic.Int64
}

// NewCache validates cfg and resolves its registered variant. Nothing is
// loaded until the first Acquire.
func NewCache(cfg Config, opts ...Option) (*Cache, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	load, err := lookupVariant(cfg.Variant)
	if err != nil {
		return nil, err
	}
	return NewCacheWithLoader(cfg, load, opts...), nil
}

// NewCacheWithLoader builds a Cache around an explicit loader.
func NewCacheWithLoader(cfg Config, load LoadFunc, opts ...Option) *Cache {
	tracker, _ := NewHealthTracker(DefaultHealthCooldown)
	c := &Cache{cfg: cfg, load: load, health: tracker}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Acquire returns the shared encoder, loading it on first use. ctx bounds
// only this caller's wait: abandoning it returns a canceled error without
// affecting the load other callers are waiting on.
func (c *Cache) Acquire(ctx context.Context) (Encoder, error) {
	if enc := c.loaded(); enc != nil {
		return enc, nil
	}

	ch := c.group.DoChan(loadKey, func() (any, error) {
		if enc := c.loaded(); enc != nil {
			return enc, nil
		}
		return c.doLoad(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return nil, locuserr.Wrap(ctx.Err(), locuserr.CodeEncoderLoadCanceled,
			"waiting for encoder load", locuserr.FieldModel(c.cfg.Info().ID()))
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*TextEncoder), nil
	}
}

func (c *Cache) doLoad(ctx context.Context) (*TextEncoder, error) {
	if c.cfg.LoadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.LoadTimeout)
		defer cancel()
	}

	info := c.cfg.Info()
	c.loads.Add(1)
	slog.Info("loading text encoder", "model", info.ID())
	start := time.Now()

	model, err := c.load(ctx, c.cfg)
	elapsed := time.Since(start)
	if err != nil {
		err = locuserr.Wrap(err, locuserr.CodeEncoderLoadFailure, "loading text encoder", locuserr.FieldModel(info.ID()))
		c.health.RecordFailure(err)
		c.metrics.ObserveEncoderLoad(elapsed, err)
		slog.Warn("text encoder load failed", "model", info.ID(), "duration", elapsed, "error", err)
		return nil, err
	}

	enc := NewTextEncoder(model, info, c.cfg.MaxConcurrency, c.health, c.metrics)
	c.mu.Lock()
	c.enc = enc
	c.mu.Unlock()

	c.health.RecordSuccess()
	c.metrics.ObserveEncoderLoad(elapsed, nil)
	slog.Info("text encoder ready", "model", info.ID(), "duration", elapsed)
	return enc, nil
}

func (c *Cache) loaded() *TextEncoder {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.enc
}

// Loaded reports whether the encoder is ready without triggering a load.
func (c *Cache) Loaded() bool {
	return c.loaded() != nil
}

// Loads returns how many load attempts have started.
func (c *Cache) Loads() int64 {
	return c.loads.Load()
}

// Info is the identity of the configured model; it does not require a load.
func (c *Cache) Info() ModelInfo {
	return c.cfg.Info()
}

// Health returns the tracker snapshot for the health endpoint.
func (c *Cache) Health() health.Metrics {
	return c.health.Metrics()
}

// LastError is the message of the most recent load or inference failure.
func (c *Cache) LastError() string {
	return c.health.LastError()
}

// Close releases the loaded model, if any. It is meant for process
// shutdown; a later Acquire loads a fresh model.
func (c *Cache) Close() error {
	c.mu.Lock()
	enc := c.enc
	c.enc = nil
	c.mu.Unlock()
	if enc == nil {
		return nil
	}
	return enc.Close()
}
