// Copyright (c) 2024 RethinkDNS and its authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package core

import "sync/atomic"

// Volatile is a typed atomic.Value. Unlike atomic.Value, the zero
// Volatile loads the zero T instead of nil.
type Volatile[T any] atomic.Value

// NewVolatile returns a new Volatile holding t.
func NewVolatile[T any](t T) *Volatile[T] {
	v := new(Volatile[T])
	v.Store(t)
	return v
}

// Load returns the current value, or the zero T if nothing was stored.
func (a *Volatile[T]) Load() (t T) {
	aa := (*atomic.Value)(a)
	t, _ = aa.Load().(T)
	return
}

// Store replaces the value with t.
func (a *Volatile[T]) Store(t T) {
	aa := (*atomic.Value)(a)
	aa.Store(t)
}

// Swap stores new and returns the previous value.
func (a *Volatile[T]) Swap(new T) (old T) {
	aa := (*atomic.Value)(a)
	old, _ = aa.Swap(new).(T)
	return old
}
