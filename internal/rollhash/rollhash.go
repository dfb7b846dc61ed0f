// Copyright 2025 Florian Zenker (flo@znkr.io)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package rollhash implements a cyclic polynomial rolling hash (also known as buzhash) over a
// fixed-size window of bytes.
//
// After at least n bytes have been fed to a Hash with window size n, its value only depends on the
// last n bytes. Moving the window by one byte costs O(1).
package rollhash

import (
	"crypto/sha256"
	"fmt"
	"math/bits"
	"math/rand/v2"
)

// basis maps every byte value to a pseudo-random 32 bit value. It's generated from a fixed seed;
// ChaCha8 is deterministic so the table is identical on every run.
var basis = func() (t [256]uint32) {
	rng := rand.New(rand.NewChaCha8(sha256.Sum256([]byte("znkr.io/bindiff/internal/rollhash"))))
	for i := range t {
		t[i] = rng.Uint32()
	}
	return t
}()

// Hash is a rolling hash over a window of the last n bytes.
type Hash struct {
	h      uint32
	window []byte // circular buffer of the last n bytes
	pos    int    // next write position in window
	filled bool   // true once window holds n bytes
	shift  int    // n mod 32, the rotation of the evicted byte's contribution
}

// New returns a rolling hash with a window of n bytes. It panics if n < 1.
func New(n int) *Hash {
	if n < 1 {
		panic(fmt.Sprintf("rollhash: invalid window size %d", n))
	}
	return &Hash{
		window: make([]byte, n),
		shift:  n % 32,
	}
}

// HashByte adds b to the window, evicting the oldest byte if the window is full, and returns the
// updated hash.
func (h *Hash) HashByte(b byte) uint32 {
	h.h = bits.RotateLeft32(h.h, 1) ^ basis[b]
	if h.filled {
		h.h ^= bits.RotateLeft32(basis[h.window[h.pos]], h.shift)
	}
	h.window[h.pos] = b
	h.pos++
	if h.pos == len(h.window) {
		h.pos = 0
		h.filled = true
	}
	return h.h
}

// Reset returns h to its initial state.
func (h *Hash) Reset() {
	h.h = 0
	clear(h.window)
	h.pos = 0
	h.filled = false
}

// Sum32 returns the current hash value.
func (h *Hash) Sum32() uint32 { return h.h }

// WindowSize returns the size of the window.
func (h *Hash) WindowSize() int { return len(h.window) }

// Filled returns true if at least WindowSize bytes have been hashed since the last reset.
func (h *Hash) Filled() bool { return h.filled }
