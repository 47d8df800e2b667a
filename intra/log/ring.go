// Copyright (c) 2024 RethinkDNS and its authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package log

import (
	"sync"
)

// A thread-safe, fixed-capacity ring buffer that overwrites its oldest
// element when full.
type ring[T any] struct {
	sync.RWMutex
	b    []T // buffer
	head int // next write
	n    int // no. of elements
}

func newRing[T any](capacity int) *ring[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &ring[T]{
		b: make([]T, capacity),
	}
}

// Push adds v, evicting the oldest element if the ring is full.
func (r *ring[T]) Push(v T) {
	r.Lock()
	defer r.Unlock()

	r.b[r.head] = v
	r.head = (r.head + 1) % len(r.b)
	if r.n < len(r.b) {
		r.n++
	}
}

// Len returns the number of elements in the ring buffer
func (r *ring[T]) Len() int {
	r.RLock()
	defer r.RUnlock()

	return r.n
}

// Cap returns the capacity of the ring buffer
func (r *ring[T]) Cap() int {
	return len(r.b)
}

// Snapshot returns all elements, oldest first.
func (r *ring[T]) Snapshot() []T {
	r.RLock()
	defer r.RUnlock()

	out := make([]T, 0, r.n)
	start := (r.head - r.n + len(r.b)) % len(r.b)
	for i := 0; i < r.n; i++ {
		out = append(out, r.b[(start+i)%len(r.b)])
	}
	return out
}

// Reset empties the ring buffer
func (r *ring[T]) Reset() {
	r.Lock()
	defer r.Unlock()

	clear(r.b)
	r.head = 0
	r.n = 0
}
