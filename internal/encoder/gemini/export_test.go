// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Locus Contributors

package gemini

import (
	"context"

	"github.com/locus-dev/locus/internal/encoder"
)

// NewWithEmbedFunc exposes newModel for white-box testing without network
// access.
var NewWithEmbedFunc = func(cfg encoder.Config, embed func(ctx context.Context, text string) ([]float32, error)) *Model {
	return newModel(cfg, embed)
}
