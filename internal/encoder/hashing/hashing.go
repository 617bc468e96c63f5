// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Locus Contributors

// Package hashing is a local encoder that needs no model weights. Each token
// is mapped to a sparse signed random vector by feature hashing, so texts
// that share words land close together. It is deterministic across
// processes and platforms, which makes it the default for development and
// tests.
package hashing

import (
	"context"
	"hash/fnv"
	"regexp"
	"strings"
	"unicode"

	"github.com/locus-dev/locus/internal/encoder"
	locuserr "github.com/locus-dev/locus/pkg/errors"
)

// Variant is the registry name of this encoder.
const Variant = "hashing"

// activeComponents is how many coordinates each token touches.
const activeComponents = 16

func init() {
	encoder.RegisterVariant(Variant, func(ctx context.Context, cfg encoder.Config) (encoder.Model, error) {
		return New(cfg.Model+"@"+cfg.Version, cfg.Dimensions), nil
	})
}

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}]+`)

// Model hashes tokens into dims-dimensional vectors. The seed makes
// different model versions produce unrelated spaces.
type Model struct {
	seed uint64
	dims int
}

// New returns a hashing model seeded by seed.
func New(seed string, dims int) *Model {
	h := fnv.New64a()
	_, _ = h.Write([]byte(seed))
	return &Model{seed: h.Sum64(), dims: dims}
}

// Infer returns one row per token.
func (m *Model) Infer(ctx context.Context, text string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil, locuserr.New(locuserr.CodeEncoderEncodeInvalidInput,
			"text has no word characters to encode")
	}
	rows := make([][]float32, len(tokens))
	for i, tok := range tokens {
		rows[i] = m.tokenVector(tok)
	}
	return rows, nil
}

func (m *Model) Close() error { return nil }

func (m *Model) tokenVector(tok string) []float32 {
	row := make([]float32, m.dims)
	h := fnv.New64a()
	_, _ = h.Write([]byte(tok))
	state := h.Sum64() ^ m.seed
	for i := 0; i < activeComponents; i++ {
		state = splitmix64(state)
		idx := int(state % uint64(m.dims))
		if state&(1<<63) != 0 {
			row[idx]--
		} else {
			row[idx]++
		}
	}
	return row
}

// splitmix64 advances a 64-bit state with good avalanche behaviour.
func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

// Tokenize lower-cases text and splits it into words. Runs of Han, Hiragana,
// Katakana or Hangul characters, which carry no spaces, become overlapping
// character bigrams.
func Tokenize(text string) []string {
	var tokens []string
	for _, word := range wordPattern.FindAllString(strings.ToLower(text), -1) {
		tokens = appendWord(tokens, word)
	}
	return tokens
}

func appendWord(tokens []string, word string) []string {
	var (
		latin []rune
		cjk   []rune
	)
	flushLatin := func() {
		if len(latin) > 0 {
			tokens = append(tokens, string(latin))
			latin = latin[:0]
		}
	}
	flushCJK := func() {
		switch {
		case len(cjk) == 1:
			tokens = append(tokens, string(cjk))
		case len(cjk) > 1:
			for i := 0; i+1 < len(cjk); i++ {
				tokens = append(tokens, string(cjk[i:i+2]))
			}
		}
		cjk = cjk[:0]
	}

	for _, r := range word {
		if isCJK(r) {
			flushLatin()
			cjk = append(cjk, r)
			continue
		}
		flushCJK()
		latin = append(latin, r)
	}
	flushLatin()
	flushCJK()
	return tokens
}

func isCJK(r rune) bool {
	return unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul)
}
