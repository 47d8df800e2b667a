// Copyright (c) 2024 RethinkDNS and its authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

//go:build darwin || dragonfly || freebsd || netbsd || openbsd

package sa

// stampLen records l in sa_len, which BSD kernels expect to be set.
func stampLen(v *Value, l uint32) {
	v.hdr().Len = uint8(l)
}

// lenOK reports whether sa_len agrees with the family's struct size.
func lenOK(v *Value) bool {
	return uint32(v.hdr().Len) == sizeOf(v.family())
}
