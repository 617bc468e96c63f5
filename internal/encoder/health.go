// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Locus Contributors

package encoder

import (
	"sync"
	"time"

	locuserr "github.com/locus-dev/locus/pkg/errors"
	"github.com/locus-dev/locus/pkg/health"
)

// DefaultHealthCooldown is how long the encoder reports unavailable after a
// failed load or inference.
const DefaultHealthCooldown = 30 * time.Second

// HealthTracker records encoder failures for the health endpoint. It never
// blocks calls; Cache.Acquire retries a failed load regardless of state.
type HealthTracker struct {
	mu           sync.RWMutex
	healthy      bool
	failedAt     time.Time
	lastError    string
	cooldown     time.Duration
	failureCount int64
	nowFunc      func() time.Time // for testing
}

// NewHealthTracker creates a HealthTracker that starts healthy.
func NewHealthTracker(cooldown time.Duration) (*HealthTracker, error) {
	if cooldown <= 0 {
		return nil, locuserr.Errorf(locuserr.CodeEncoderConfigInvalid,
			"health tracker cooldown must be positive, got %s", cooldown)
	}
	return &HealthTracker{
		healthy:  true,
		cooldown: cooldown,
		nowFunc:  time.Now,
	}, nil
}

// isHealthyLocked reports whether the encoder is healthy or the cooldown
// has elapsed. The caller MUST hold at least h.mu.RLock.
func (h *HealthTracker) isHealthyLocked() bool {
	if h.healthy {
		return true
	}
	return h.nowFunc().Sub(h.failedAt) >= h.cooldown
}

func (h *HealthTracker) IsHealthy() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.isHealthyLocked()
}

func (h *HealthTracker) RecordSuccess() {
	h.mu.Lock()
	h.healthy = true
	h.mu.Unlock()
}

// RecordFailure marks the encoder unhealthy and keeps err's message for
// operators.
func (h *HealthTracker) RecordFailure(err error) {
	h.mu.Lock()
	h.healthy = false
	h.failedAt = h.nowFunc()
	h.failureCount++
	if err != nil {
		h.lastError = err.Error()
	}
	h.mu.Unlock()
}

// LastError returns the message of the most recent recorded failure.
func (h *HealthTracker) LastError() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastError
}

// SetNowFunc overrides the time source (for testing).
func (h *HealthTracker) SetNowFunc(fn func() time.Time) {
	h.mu.Lock()
	h.nowFunc = fn
	h.mu.Unlock()
}

// Metrics returns a point-in-time snapshot of the tracker's state.
func (h *HealthTracker) Metrics() health.Metrics {
	h.mu.RLock()
	defer h.mu.RUnlock()

	m := health.Metrics{FailureCount: h.failureCount}
	if h.failureCount > 0 {
		t := h.failedAt
		m.LastFailureAt = &t
	}
	m.Available = h.isHealthyLocked()
	if !h.healthy {
		cooldownEnd := h.failedAt.Add(h.cooldown)
		m.CooldownUntil = &cooldownEnd
	}
	return m
}
