// Copyright (c) 2024 RethinkDNS and its authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package acl

import (
	"errors"
	"net"
	"net/netip"
	"strings"
	"sync"

	"github.com/celzero/sockaddr/intra/log"
	"github.com/celzero/sockaddr/intra/sa"
	"github.com/k-sone/critbitgo"
)

// An ACL is a thread-safe set of IP CIDRs that endpoints are matched
// against. The longest matching route decides; routes added with a
// leading "!" exclude instead of include. v4-mapped v6 addresses are v6:
// they match only routes within ::ffff:0:0/96, never v4 routes.
type ACL interface {
	// Add adds cidr (or a bare ip) to the set; "!cidr" adds an exclusion.
	// Re-adding a cidr overwrites its polarity.
	Add(cidr string) error
	// Del deletes cidr. Returns true if cidr was found.
	Del(cidr string) bool
	// Match reports whether v's address is included. Values that are
	// not IP endpoints never match.
	Match(v *sa.Value) bool
	// Clears the set.
	Clear()
	// Returns the number of routes.
	Len() int
}

type acl struct {
	sync.RWMutex
	t *critbitgo.Net // v4 and v6 routes
	// v4-mapped v6 routes, keyed by their unmapped v4 form;
	// critbitgo folds 16-byte mapped keys into v4 keys.
	m *critbitgo.Net
}

var _ ACL = (*acl)(nil)

const negate = "!"

var errNotPrefix = errors.New("acl: not an ip or cidr")

func New() ACL {
	return &acl{t: critbitgo.NewNet(), m: critbitgo.NewNet()}
}

func (a *acl) Add(cidr string) error {
	incl := !strings.HasPrefix(cidr, negate)
	r, mapped, err := ip2cidr(strings.TrimPrefix(cidr, negate))
	if err != nil {
		return err
	}

	a.Lock()
	defer a.Unlock()

	return a.tree(mapped).Add(r, incl)
}

func (a *acl) Del(cidr string) bool {
	r, mapped, err := ip2cidr(strings.TrimPrefix(cidr, negate))
	if err != nil {
		return false
	}

	a.Lock()
	defer a.Unlock()

	_, ok, err := a.tree(mapped).Delete(r)
	return ok && err == nil
}

func (a *acl) Match(v *sa.Value) bool {
	fam, ip := v.Addr()
	if fam == sa.None {
		log.VV("acl: match: not ip: %v", v)
		return false
	}
	mapped := false
	if fam == sa.V6 {
		if addr := netip.AddrFrom16([16]byte(ip)); addr.Is4In6() {
			ip, mapped = addr.Unmap().AsSlice(), true
		}
	}
	bits := len(ip) * 8
	r := &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)}

	a.RLock()
	defer a.RUnlock()

	route, incl, err := a.tree(mapped).Match(r)
	if err != nil {
		log.W("acl: match: %v: %v", v, err)
		return false
	} else if route == nil {
		return false
	}
	ok, _ := incl.(bool)
	log.VV("acl: match: %v => %v (incl? %t)", v, route, ok)
	return ok
}

func (a *acl) Clear() {
	a.Lock()
	defer a.Unlock()

	a.t.Clear()
	a.m.Clear()
}

func (a *acl) Len() int {
	a.RLock()
	defer a.RUnlock()

	return a.t.Size() + a.m.Size()
}

func (a *acl) tree(mapped bool) *critbitgo.Net {
	if mapped {
		return a.m
	}
	return a.t
}

// ip2cidr parses ipOrCidr; mapped is set for routes within
// ::ffff:0:0/96, which are returned in their v4 form.
func ip2cidr(ipOrCidr string) (r *net.IPNet, mapped bool, err error) {
	var p netip.Prefix
	if p, err = netip.ParsePrefix(ipOrCidr); err == nil {
		p = p.Masked()
	} else if ip, err2 := netip.ParseAddr(ipOrCidr); err2 == nil {
		p = netip.PrefixFrom(ip.WithZone(""), ip.BitLen())
	} else {
		log.W("acl: ip2cidr: %q: %v", ipOrCidr, errNotPrefix)
		return nil, false, errNotPrefix
	}
	// a masked prefix shorter than /96 cannot keep the ffff marker
	if p.Addr().Is4In6() {
		return prefix2net(p.Addr().Unmap(), p.Bits()-96), true, nil
	}
	return prefix2net(p.Addr(), p.Bits()), false, nil
}

// prefix2net keeps v4 keys 4 bytes long, as sa.Value.Addr returns them.
func prefix2net(ip netip.Addr, bits int) *net.IPNet {
	return &net.IPNet{
		IP:   ip.AsSlice(),
		Mask: net.CIDRMask(bits, ip.BitLen()),
	}
}
