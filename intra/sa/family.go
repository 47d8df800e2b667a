// Copyright (c) 2024 RethinkDNS and its authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package sa

import (
	"strconv"

	"golang.org/x/sys/unix"
)

// Family is an address family discriminant, as in sa_family_t.
type Family uint16

const (
	None Family = unix.AF_UNSPEC
	V4   Family = unix.AF_INET
	V6   Family = unix.AF_INET6
	// Unix is tracked by size only; it carries no address or port.
	Unix Family = unix.AF_UNIX
)

const portLen = 2 // in_port_t

func (f Family) String() string {
	switch f {
	case None:
		return "none"
	case V4:
		return "ip4"
	case V6:
		return "ip6"
	case Unix:
		return "unix"
	default:
		return "af" + strconv.Itoa(int(f))
	}
}

// IsIP reports whether f is V4 or V6.
func (f Family) IsIP() bool {
	return f == V4 || f == V6
}

// sizeOf returns the length of f's sockaddr struct, or 0 if f is not supported.
func sizeOf(f Family) uint32 {
	switch f {
	case V4:
		return unix.SizeofSockaddrInet4
	case V6:
		return unix.SizeofSockaddrInet6
	case Unix:
		return unix.SizeofSockaddrUnix
	default:
		return 0
	}
}

// addrLen returns the length of f's address field, or 0.
func addrLen(f Family) int {
	switch f {
	case V4:
		return 4
	case V6:
		return 16
	default:
		return 0
	}
}
