// Copyright (c) 2024 RethinkDNS and its authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package sa

import (
	"syscall"

	"github.com/celzero/sockaddr/intra/core"
)

type endpoint int

const (
	local endpoint = iota // getsockname
	peer                  // getpeername
)

func (e endpoint) String() string {
	if e == peer {
		return "getpeername"
	}
	return "getsockname"
}

// Sockname fills d with the local address fd is bound to.
// A nil d fails with ErrInvalid without calling into the OS; OS
// errors are returned as-is and leave d zeroed.
func Sockname(fd int, d *Value) (*Value, error) {
	return getname(fd, d, local)
}

// Peername fills d with the address of the peer fd is connected to;
// see Sockname.
func Peername(fd int, d *Value) (*Value, error) {
	return getname(fd, d, peer)
}

// LocalOf returns the local address of c, ex: a *net.TCPConn or a
// *net.UnixListener.
func LocalOf(c syscall.Conn) (v *Value, err error) {
	v = new(Value)
	err = core.Control(c, func(fd int) (err error) {
		_, err = Sockname(fd, v)
		return
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// PeerOf returns the remote address of c.
func PeerOf(c syscall.Conn) (v *Value, err error) {
	v = new(Value)
	err = core.Control(c, func(fd int) (err error) {
		_, err = Peername(fd, v)
		return
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}
