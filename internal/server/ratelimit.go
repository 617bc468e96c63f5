// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Locus Contributors

package server

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	locuserr "github.com/locus-dev/locus/pkg/errors"
)

const apiPrefix = "/api/"

// RateLimitConfig configures per-client rate limiting of the API routes.
// Every API request may run the encoder, so the limit protects it from a
// single noisy client.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per client IP. Zero disables
	// limiting.
	RequestsPerSecond float64
	// Burst is the bucket size per client IP.
	Burst int
	// MaxClients caps the number of tracked IPs. Default 10000.
	MaxClients int
}

// Validate checks the config and applies defaults.
func (c *RateLimitConfig) Validate() error {
	if c.RequestsPerSecond < 0 {
		return locuserr.Errorf(locuserr.CodeServerConfigInvalid,
			"rate limit requests per second must not be negative (got %g)", c.RequestsPerSecond)
	}
	if c.RequestsPerSecond > 0 && c.Burst <= 0 {
		return locuserr.Errorf(locuserr.CodeServerConfigInvalid,
			"rate limit burst must be positive when a rate is set (got %d)", c.Burst)
	}
	if c.MaxClients < 0 {
		return locuserr.Errorf(locuserr.CodeServerConfigInvalid,
			"rate limit max clients must not be negative (got %d)", c.MaxClients)
	}
	if c.MaxClients == 0 {
		c.MaxClients = 10000
	}
	return nil
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimitMiddleware limits requests under prefix per client IP. Other
// paths pass through. It is a pass-through when the rate is zero. done
// stops the idle-client sweeper.
func rateLimitMiddleware(cfg RateLimitConfig, prefix string, done <-chan struct{}) func(http.Handler) http.Handler {
	if cfg.RequestsPerSecond <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	var (
		mu      sync.Mutex
		clients = make(map[string]*client)
	)

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				mu.Lock()
				for ip, c := range clients {
					if time.Since(c.lastSeen) > 10*time.Minute {
						delete(clients, ip)
					}
				}
				mu.Unlock()
			case <-done:
				return
			}
		}
	}()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, prefix) {
				next.ServeHTTP(w, r)
				return
			}

			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr
			}

			mu.Lock()
			c, ok := clients[ip]
			if !ok {
				if len(clients) >= cfg.MaxClients {
					mu.Unlock()
					slog.Warn("rate limiter client table full", "max_clients", cfg.MaxClients)
					tooManyRequests(w)
					return
				}
				c = &client{limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)}
				clients[ip] = c
			}
			c.lastSeen = time.Now()
			allowed := c.limiter.Allow()
			mu.Unlock()

			if !allowed {
				slog.Debug("rate limit exceeded", "ip", ip, "path", r.URL.Path)
				tooManyRequests(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func tooManyRequests(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.Header().Set("Retry-After", "1")
	w.WriteHeader(http.StatusTooManyRequests)
	_, _ = w.Write([]byte(`{"title":"Too Many Requests","status":429,"detail":"rate limit exceeded"}`))
}
