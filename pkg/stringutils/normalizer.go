// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package stringutils provides small string helpers shared across the
// matching pipeline, most notably a memoizing normalizer used in hot loops.
package stringutils

import (
	"strings"
	"sync"
)

// Normalizer memoizes a pure transformation from K to V. Matching code calls
// Normalize on the same handful of strings thousands of times per search, so
// the cache pays for itself quickly.
type Normalizer[K comparable, V any] struct {
	mu    sync.RWMutex
	cache map[K]V
	fn    func(K) V
}

// New creates a Normalizer backed by fn.
func New[K comparable, V any](fn func(K) V) *Normalizer[K, V] {
	return &Normalizer[K, V]{
		cache: make(map[K]V),
		fn:    fn,
	}
}

// Normalize returns the cached transformation of k, computing it on first use.
func (n *Normalizer[K, V]) Normalize(k K) V {
	n.mu.RLock()
	v, ok := n.cache[k]
	n.mu.RUnlock()
	if ok {
		return v
	}

	v = n.fn(k)

	n.mu.Lock()
	n.cache[k] = v
	n.mu.Unlock()
	return v
}

// NewDefaultNormalizer returns a lowercase+trim normalizer, the common case
// for comparing release tokens case-insensitively.
func NewDefaultNormalizer() *Normalizer[string, string] {
	return New(func(s string) string {
		return strings.ToLower(strings.TrimSpace(s))
	})
}
