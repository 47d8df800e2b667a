// Copyright (c) 2024 RethinkDNS and its authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package core

import (
	"errors"
	"syscall"

	"github.com/celzero/sockaddr/intra/log"
)

var errNoConn = errors.New("core: nil conn")

// Control runs fn with the file descriptor backing c. The fd is only
// valid for the duration of fn. An error from fn is returned as-is; an
// error from the RawConn itself is logged and returned.
func Control(c syscall.Conn, fn func(fd int) error) error {
	if IsNil(c) {
		return errNoConn
	}

	rawConn, err := c.SyscallConn()
	if err != nil || rawConn == nil {
		if err == nil {
			err = errNoConn
		}
		log.W("core: control: SyscallConn() err: %v", err)
		return err
	}

	var fnerr error
	err = rawConn.Control(func(fd uintptr) {
		fnerr = fn(int(fd))
	})
	if err != nil {
		log.E("core: control: RawConn.Control() err: %v", err)
		return err
	}
	return fnerr
}
