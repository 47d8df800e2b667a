// Copyright (c) 2024 RethinkDNS and its authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

//go:build unix && (!linux || 386 || s390x)

package sa

import (
	"github.com/celzero/sockaddr/intra/log"
	"golang.org/x/sys/unix"
)

func getname(fd int, d *Value, which endpoint) (*Value, error) {
	if d == nil {
		return nil, ErrInvalid
	}

	*d = Value{magic: magic}
	var s unix.Sockaddr
	var err error
	if which == peer {
		s, err = unix.Getpeername(fd)
	} else {
		s, err = unix.Getsockname(fd)
	}
	if err != nil {
		*d = Value{}
		log.D("sa: %s(%d): %v", which, fd, err)
		return nil, err
	}
	if _, err = FromSockaddr(d, s); err != nil {
		*d = Value{}
		log.D("sa: %s(%d): %T: %v", which, fd, s, err)
		return nil, err
	}
	return d, nil
}
