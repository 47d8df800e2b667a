// Copyright (c) 2024 RethinkDNS and its authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

//go:build linux && !386 && !s390x

package sa

import (
	"unsafe"

	"github.com/celzero/sockaddr/intra/log"
	"golang.org/x/sys/unix"
)

// getname lets the kernel write straight into d's union, bounded by
// its full capacity. 386 and s390x multiplex socket calls through
// socketcall(2) and use the portable path instead.
func getname(fd int, d *Value, which endpoint) (*Value, error) {
	if d == nil {
		return nil, ErrInvalid
	}

	*d = Value{magic: magic}
	trap := uintptr(unix.SYS_GETSOCKNAME)
	if which == peer {
		trap = unix.SYS_GETPEERNAME
	}
	l := uint32(len(d.u)) // socklen_t
	_, _, errno := unix.Syscall(trap, uintptr(fd), uintptr(unsafe.Pointer(&d.u[0])), uintptr(unsafe.Pointer(&l)))
	if errno != 0 {
		*d = Value{}
		log.D("sa: %s(%d): %v", which, fd, errno)
		return nil, errno
	}
	log.VV("sa: %s(%d): %s; len %d", which, fd, d.family(), l)
	return d, nil
}
