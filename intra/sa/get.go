// Copyright (c) 2024 RethinkDNS and its authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package sa

import (
	"fmt"
	"net/netip"
	"unsafe"

	"github.com/celzero/sockaddr/intra/log"
	"golang.org/x/sys/unix"
)

// corrupt panics with an error wrapping ErrCorrupt. A Value that fails
// its checks was never built by this package (or was overwritten), so
// there is no sane answer to return.
func corrupt(op, why string) {
	err := fmt.Errorf("%w: %s: %s", ErrCorrupt, op, why)
	log.E("sa: %v", err)
	log.T("sa: " + op)
	panic(err)
}

// check asserts that v carries the validity tag.
func (v *Value) check(op string) {
	if v == nil {
		corrupt(op, "nil")
	} else if v.magic != magic {
		corrupt(op, fmt.Sprintf("bad magic %#x", v.magic))
	}
}

// mustSane asserts that v is Sane.
func (v *Value) mustSane(op string) {
	v.check(op)
	if sizeOf(v.family()) == 0 {
		corrupt(op, "unknown family "+v.family().String())
	} else if !lenOK(v) {
		corrupt(op, "sa_len does not match "+v.family().String())
	}
}

// Sane reports whether v carries the validity tag and a supported family.
// It never panics.
func Sane(v *Value) bool {
	return v != nil && v.magic == magic && sizeOf(v.family()) != 0 && lenOK(v)
}

// Sane is the method form of Sane.
func (v *Value) Sane() bool {
	return Sane(v)
}

// Family returns v's address family. Panics if v is not valid.
func (v *Value) Family() Family {
	v.check("family")
	return v.family()
}

// Addr returns v's family and a copy of its network-order address:
// 4 bytes for V4, 16 for V6. Other families, and nil, get (None, nil);
// acl and other address-set lookups rely on Addr never panicking for
// non-IP values.
func (v *Value) Addr() (Family, []byte) {
	if v == nil {
		return None, nil
	}
	v.check("addr")
	switch v.family() {
	case V4:
		a := v.in4().Addr
		return V4, a[:]
	case V6:
		a := v.in6().Addr
		return V6, a[:]
	default:
		return None, nil
	}
}

// IP returns v's address, or the zero netip.Addr if v is not V4 or V6.
func (v *Value) IP() netip.Addr {
	if v == nil {
		return netip.Addr{}
	}
	v.check("ip")
	switch v.family() {
	case V4:
		return netip.AddrFrom4(v.in4().Addr)
	case V6:
		return netip.AddrFrom16(v.in6().Addr)
	default:
		return netip.Addr{}
	}
}

// AddrPort returns v as a netip.AddrPort, or the zero value if v is
// not V4 or V6.
func (v *Value) AddrPort() netip.AddrPort {
	ip := v.IP()
	if !ip.IsValid() {
		return netip.AddrPort{}
	}
	return netip.AddrPortFrom(ip, v.Port())
}

// Port returns v's port in host byte order; 0 for families without one.
func (v *Value) Port() uint16 {
	v.check("port")
	switch v.family() {
	case V4:
		return ntohs(v.in4().Port)
	case V6:
		return ntohs(v.in6().Port)
	default:
		return 0
	}
}

// Sockaddr returns a pointer to v's sockaddr and its length, for
// passing to syscalls like bind(2) and connect(2). The memory must not
// be written to.
func (v *Value) Sockaddr() (name unsafe.Pointer, namelen uint32, err error) {
	v.check("sockaddr")
	l := sizeOf(v.family())
	if l == 0 {
		return nil, 0, ErrFamily
	}
	return unsafe.Pointer(&v.u[0]), l, nil
}

// ToSockaddr converts v for use with unix.Bind, unix.Connect et al.
// Unix values convert only if they hold a pathname; unnamed and
// abstract names have no recorded length.
func (v *Value) ToSockaddr() (unix.Sockaddr, error) {
	v.check("tosockaddr")
	switch v.family() {
	case V4:
		return &unix.SockaddrInet4{
			Port: int(v.Port()),
			Addr: v.in4().Addr,
		}, nil
	case V6:
		sin6 := v.in6()
		return &unix.SockaddrInet6{
			Port:   int(v.Port()),
			ZoneId: sin6.Scope_id,
			Addr:   sin6.Addr,
		}, nil
	case Unix:
		path := v.un().Path
		n := 0
		for n < len(path) && path[n] != 0 {
			n++
		}
		if n == 0 {
			return nil, ErrInvalid
		}
		name := make([]byte, n)
		for i := range name {
			name[i] = byte(path[i])
		}
		return &unix.SockaddrUnix{Name: string(name)}, nil
	default:
		return nil, ErrFamily
	}
}

func (v *Value) String() string {
	if !v.Sane() {
		return "<invalid>"
	}
	if ipp := v.AddrPort(); ipp.IsValid() {
		return ipp.String()
	}
	return v.family().String()
}
