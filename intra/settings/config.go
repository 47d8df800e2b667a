// Copyright (c) 2024 RethinkDNS and its authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package settings

import (
	"github.com/celzero/sockaddr/intra/core"
	"github.com/celzero/sockaddr/intra/log"
)

// AddrOpts tunes how generic address values are validated.
type AddrOpts struct {
	// Strict rejects stored address images whose bytes past the
	// active family's struct are not zero.
	Strict bool
}

// DefaultAddrOpts returns non-strict options.
func DefaultAddrOpts() AddrOpts {
	return AddrOpts{
		Strict: false,
	}
}

var addropts = core.NewVolatile(DefaultAddrOpts())

// SetAddrOpts replaces the process-wide address options.
func SetAddrOpts(o AddrOpts) {
	prev := addropts.Swap(o)
	log.I("settings: addr opts: strict? %t => %t", prev.Strict, o.Strict)
}

// GetAddrOpts returns the process-wide address options.
func GetAddrOpts() AddrOpts {
	return addropts.Load()
}
