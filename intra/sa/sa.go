// Copyright (c) 2024 RethinkDNS and its authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package sa implements a fixed-size socket address value that holds an
// IPv4, IPv6 or (size-only) unix-domain sockaddr, so that code can store,
// copy and compare endpoints without knowing their family up front.
package sa

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net/netip"
	"unsafe"

	"github.com/celzero/sockaddr/intra/log"
	"github.com/celzero/sockaddr/intra/settings"
	"golang.org/x/sys/unix"
)

// magic marks a Value as constructed by this package.
const magic uint32 = 0x4b1e9335

// unionLen fits the largest supported sockaddr, sockaddr_un,
// rounded up so that Value has no padding.
const unionLen = (unix.SizeofSockaddrUnix + 3) &^ 3

// hdrLen is the no. of leading bytes needed to read sa_family.
const hdrLen = int(unsafe.Offsetof(unix.RawSockaddr{}.Family) + unsafe.Sizeof(unix.RawSockaddr{}.Family))

// Value is a socket address of any supported family. Every Value has
// the same Size, so it can be copied byte-for-byte, stored in arrays or
// exported as a flat image. The zero Value is not valid; build one with
// Build, BuildFAP, FromAddrPort, FromSockaddr, Load or an endpoint query.
//
// u overlays sockaddr, sockaddr_in, sockaddr_in6 and sockaddr_un; the
// generic and per-family sa_family fields are the same bytes.
type Value struct {
	magic uint32
	u     [unionLen]byte
}

// Size is the storage needed for one Value.
const Size = int(unsafe.Sizeof(Value{}))

var (
	// ErrInvalid is returned for nil destinations and for lengths
	// that do not match the family's sockaddr.
	ErrInvalid = fmt.Errorf("sa: invalid argument: %w", unix.EINVAL)
	// ErrFamily is returned for families other than V4, V6 and Unix
	// (or, where noted, other than V4 and V6).
	ErrFamily = fmt.Errorf("sa: family not supported: %w", unix.EAFNOSUPPORT)
	// ErrCorrupt is the panic value when a Value fails its validity
	// check on read, and is returned by Load for garbage images.
	ErrCorrupt = errors.New("sa: corrupt address")
)

// bytesOf returns the memory of *p as a byte slice.
func bytesOf[T any](p *T) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(p)), unsafe.Sizeof(*p))
}

func htons(p uint16) (n [portLen]byte) {
	binary.BigEndian.PutUint16(n[:], p)
	return
}

// ntohs reads a port stored in network byte order.
func ntohs(p uint16) uint16 {
	return binary.BigEndian.Uint16(bytesOf(&p))
}

// familyOf reads sa_family from a raw sockaddr.
func familyOf(raw []byte) (Family, bool) {
	if len(raw) < hdrLen {
		return None, false
	}
	var h unix.RawSockaddr
	copy(bytesOf(&h), raw)
	return Family(h.Family), true
}

// Build copies the raw sockaddr s into d. len(s) must be exactly the
// size of the sockaddr struct for the family found in s.
func Build(d *Value, s []byte) (*Value, error) {
	if d == nil {
		return nil, ErrInvalid
	}
	fam, ok := familyOf(s)
	if !ok {
		log.V("sa: build: short sockaddr; %d bytes", len(s))
		return nil, ErrInvalid
	}
	l := sizeOf(fam)
	if l == 0 {
		log.V("sa: build: unsupported family %s", fam)
		return nil, ErrFamily
	} else if int(l) != len(s) {
		log.V("sa: build: %s len %d != %d", fam, len(s), l)
		return nil, ErrInvalid
	}

	// s may alias d
	var u [unionLen]byte
	copy(u[:], s)
	*d = Value{magic: magic, u: u}
	stampLen(d, l)
	return d, nil
}

// BuildFAP builds a V4 or V6 endpoint into d from its family, address
// and port, both in network byte order. An empty addr or port is left
// as zero; a non-empty one must be exactly 4 or 16 bytes (addr) and 2
// bytes (port).
func BuildFAP(d *Value, fam Family, addr, port []byte) (*Value, error) {
	if !fam.IsIP() {
		log.V("sa: build: fap: unsupported family %s", fam)
		return nil, ErrFamily
	} else if len(port) > 0 && len(port) != portLen {
		return nil, ErrInvalid
	} else if len(addr) > 0 && len(addr) != addrLen(fam) {
		return nil, ErrInvalid
	}
	switch fam {
	case V4:
		var sin4 unix.RawSockaddrInet4
		sin4.Family = unix.AF_INET
		copy(sin4.Addr[:], addr)
		copy(bytesOf(&sin4.Port), port)
		return Build(d, bytesOf(&sin4))
	case V6:
		var sin6 unix.RawSockaddrInet6
		sin6.Family = unix.AF_INET6
		copy(sin6.Addr[:], addr)
		copy(bytesOf(&sin6.Port), port)
		return Build(d, bytesOf(&sin6))
	default:
		return nil, ErrFamily
	}
}

// New allocates a Value and builds s into it; see Build.
func New(s []byte) (*Value, error) {
	return Build(new(Value), s)
}

// NewFAP allocates a Value and builds fam, addr, port into it; see BuildFAP.
func NewFAP(fam Family, addr, port []byte) (*Value, error) {
	return BuildFAP(new(Value), fam, addr, port)
}

// FromAddrPort builds ipp into d. IPv4-mapped IPv6 addresses stay V6.
// Zones are not carried.
func FromAddrPort(d *Value, ipp netip.AddrPort) (*Value, error) {
	if !ipp.IsValid() {
		return nil, ErrInvalid
	}
	ip := ipp.Addr()
	port := htons(ipp.Port())
	if ip.Is4() {
		a := ip.As4()
		return BuildFAP(d, V4, a[:], port[:])
	}
	a := ip.As16()
	return BuildFAP(d, V6, a[:], port[:])
}

// FromSockaddr builds s into d. For unix sockets, only the path
// survives; names beyond sun_path are rejected.
func FromSockaddr(d *Value, s unix.Sockaddr) (*Value, error) {
	switch x := s.(type) {
	case *unix.SockaddrInet4:
		if x == nil {
			return nil, ErrInvalid
		}
		port := htons(uint16(x.Port))
		return BuildFAP(d, V4, x.Addr[:], port[:])
	case *unix.SockaddrInet6:
		if x == nil {
			return nil, ErrInvalid
		}
		var sin6 unix.RawSockaddrInet6
		sin6.Family = unix.AF_INET6
		port := htons(uint16(x.Port))
		copy(bytesOf(&sin6.Port), port[:])
		sin6.Addr = x.Addr
		sin6.Scope_id = x.ZoneId
		return Build(d, bytesOf(&sin6))
	case *unix.SockaddrUnix:
		if x == nil {
			return nil, ErrInvalid
		}
		var sun unix.RawSockaddrUnix
		sun.Family = unix.AF_UNIX
		name := x.Name
		if len(name) > len(sun.Path) {
			return nil, ErrInvalid
		}
		for i := 0; i < len(name); i++ {
			sun.Path[i] = int8(name[i])
		}
		if len(name) > 0 && name[0] == '@' {
			sun.Path[0] = 0 // abstract
		}
		return Build(d, bytesOf(&sun))
	case nil:
		return nil, ErrInvalid
	default:
		log.V("sa: from sockaddr: unsupported %T", s)
		return nil, ErrFamily
	}
}

// Clone returns a byte-exact copy of v in new storage.
// Panics if v is not Sane.
func Clone(v *Value) *Value {
	v.mustSane("clone")
	c := new(Value)
	*c = *v
	return c
}

// Bytes returns a copy of v's full fixed-size image, Size bytes long.
// Pass it to Load to get v back.
func (v *Value) Bytes() []byte {
	v.check("bytes")
	b := make([]byte, Size)
	copy(b, bytesOf(v))
	return b
}

// Load rebuilds into d a Value exported by Bytes. b must be exactly
// Size bytes. Images that are not Sane are rejected with ErrCorrupt; so
// are images with stray bytes past the active family, if
// settings.AddrOpts.Strict is set.
func Load(d *Value, b []byte) (*Value, error) {
	if d == nil || len(b) != Size {
		return nil, ErrInvalid
	}
	var tmp Value
	copy(bytesOf(&tmp), b)
	if !tmp.Sane() {
		log.W("sa: load: insane image; magic %#x, family %s", tmp.magic, tmp.family())
		return nil, ErrCorrupt
	}
	if settings.GetAddrOpts().Strict && !tmp.tailZero() {
		log.W("sa: load: %s image has a dirty tail", tmp.family())
		return nil, ErrCorrupt
	}
	*d = tmp
	return d, nil
}

// tailZero reports whether all bytes past the active sockaddr are zero.
func (v *Value) tailZero() bool {
	for _, b := range v.u[sizeOf(v.family()):] {
		if b != 0 {
			return false
		}
	}
	return true
}

func (v *Value) hdr() *unix.RawSockaddr {
	return (*unix.RawSockaddr)(unsafe.Pointer(&v.u[0]))
}

func (v *Value) in4() *unix.RawSockaddrInet4 {
	return (*unix.RawSockaddrInet4)(unsafe.Pointer(&v.u[0]))
}

func (v *Value) in6() *unix.RawSockaddrInet6 {
	return (*unix.RawSockaddrInet6)(unsafe.Pointer(&v.u[0]))
}

func (v *Value) un() *unix.RawSockaddrUnix {
	return (*unix.RawSockaddrUnix)(unsafe.Pointer(&v.u[0]))
}

func (v *Value) family() Family {
	return Family(v.hdr().Family)
}
