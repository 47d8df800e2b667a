// Copyright (c) 2024 RethinkDNS and its authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package xdns

import (
	"net"

	"github.com/celzero/sockaddr/intra/log"
	"github.com/celzero/sockaddr/intra/sa"
	"github.com/miekg/dns"
)

// edns0 udp payload size set on msgs that have no OPT record.
const ednsUDPSize = 1232

// ECS address families, per RFC 7871 (IANA address family numbers).
const (
	ecsFamily4 uint16 = 1
	ecsFamily6 uint16 = 2
)

// AsMsg unpacks packet, or returns nil.
func AsMsg(packet []byte) *dns.Msg {
	msg := &dns.Msg{}
	if err := msg.Unpack(packet); err != nil {
		log.D("xdns: failed to unpack msg: %v", err)
		return nil
	}
	return msg
}

// SubnetOf returns a client-subnet option carrying v's address truncated
// to bits4 (for V4) or bits6 (for V6) leading bits.
func SubnetOf(v *sa.Value, bits4, bits6 uint8) (*dns.EDNS0_SUBNET, error) {
	fam, ip := v.Addr()

	var family uint16
	var bits uint8
	switch fam {
	case sa.V4:
		family, bits = ecsFamily4, min(bits4, 32)
	case sa.V6:
		family, bits = ecsFamily6, min(bits6, 128)
	default:
		return nil, sa.ErrFamily
	}
	mask := net.CIDRMask(int(bits), len(ip)*8)
	return &dns.EDNS0_SUBNET{
		Code:          dns.EDNS0SUBNET,
		Family:        family,
		SourceNetmask: bits,
		SourceScope:   0,
		Address:       net.IP(ip).Mask(mask),
	}, nil
}

// WithSubnet sets msg's client-subnet option to v's subnet, replacing
// any existing one, and adds an OPT record if msg has none. Returns
// false if v is not an IP endpoint.
func WithSubnet(msg *dns.Msg, v *sa.Value, bits4, bits6 uint8) bool {
	if msg == nil {
		return false
	}
	ecs, err := SubnetOf(v, bits4, bits6)
	if err != nil {
		log.V("xdns: ecs: skip %v: %v", v, err)
		return false
	}

	opt := msg.IsEdns0()
	if opt == nil {
		msg.SetEdns0(ednsUDPSize, false)
		opt = msg.IsEdns0()
	}
	kept := make([]dns.EDNS0, 0, len(opt.Option)+1)
	for _, o := range opt.Option {
		if o.Option() != dns.EDNS0SUBNET {
			kept = append(kept, o)
		}
	}
	opt.Option = append(kept, ecs)
	return true
}

// Subnet returns msg's client-subnet option, if any.
func Subnet(msg *dns.Msg) *dns.EDNS0_SUBNET {
	if msg == nil {
		return nil
	}
	opt := msg.IsEdns0()
	if opt == nil {
		return nil
	}
	for _, o := range opt.Option {
		if ecs, ok := o.(*dns.EDNS0_SUBNET); ok {
			return ecs
		}
	}
	return nil
}
