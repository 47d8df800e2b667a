// Copyright (c) 2024 RethinkDNS and its authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package sa

import (
	"bytes"
)

// Compare compares the full fixed-size images of a and b, including
// bytes unused by the active family, and returns -1, 0 or +1. All
// constructors zero the storage first, so equal endpoints built through
// this package compare equal. Panics if a or b is not valid.
func Compare(a, b *Value) int {
	a.check("compare")
	b.check("compare")
	return bytes.Compare(bytesOf(a), bytesOf(b))
}

// CompareIP compares only the addresses of a and b, ignoring ports.
// If the families differ, it returns -1 without looking at the
// addresses; that is "not equal", not an ordering. Panics if a or b is
// not Sane, or if both are of a non-IP family.
func CompareIP(a, b *Value) int {
	a.mustSane("compareip")
	b.mustSane("compareip")

	fa, fb := a.family(), b.family()
	if fa != fb {
		return -1
	}
	switch fa {
	case V4:
		x, y := a.in4().Addr, b.in4().Addr
		return bytes.Compare(x[:], y[:])
	case V6:
		x, y := a.in6().Addr, b.in6().Addr
		return bytes.Compare(x[:], y[:])
	default:
		corrupt("compareip", "not ip: "+fa.String())
		return -1
	}
}

// Equal reports whether Compare(a, b) == 0.
func Equal(a, b *Value) bool {
	return Compare(a, b) == 0
}

// EqualIP reports whether CompareIP(a, b) == 0.
func EqualIP(a, b *Value) bool {
	return CompareIP(a, b) == 0
}
