// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Locus Contributors

package encoder

import (
	"context"

	"golang.org/x/time/rate"

	locuserr "github.com/locus-dev/locus/pkg/errors"
)

// NewLimiter paces requests to remote model servers. rps <= 0 disables
// pacing.
func NewLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// Wait blocks until l admits one request or ctx ends.
func Wait(ctx context.Context, l *rate.Limiter) error {
	if err := l.Wait(ctx); err != nil {
		return locuserr.Wrap(err, locuserr.CodeEncoderEncodeCanceled, "waiting for request budget")
	}
	return nil
}
