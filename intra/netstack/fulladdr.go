// Copyright (c) 2024 RethinkDNS and its authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package netstack

import (
	"net/netip"

	"github.com/celzero/sockaddr/intra/log"
	"github.com/celzero/sockaddr/intra/sa"
	"gvisor.dev/gvisor/pkg/tcpip"
	"gvisor.dev/gvisor/pkg/tcpip/network/ipv4"
	"gvisor.dev/gvisor/pkg/tcpip/network/ipv6"
)

// FullAddrFrom translates v into a gvisor endpoint on nic, along with
// the network protocol to dial it over. Only V4 and V6 translate.
func FullAddrFrom(v *sa.Value, nic tcpip.NICID) (tcpip.FullAddress, tcpip.NetworkProtocolNumber, error) {
	var proto tcpip.NetworkProtocolNumber
	var nsaddr tcpip.Address

	ipp := v.AddrPort()
	if !ipp.IsValid() {
		log.V("netstack: fulladdr: not ip: %v", v)
		return tcpip.FullAddress{}, 0, sa.ErrFamily
	}
	if ip := ipp.Addr(); ip.Is4() {
		proto = ipv4.ProtocolNumber
		nsaddr = tcpip.AddrFrom4(ip.As4())
	} else {
		proto = ipv6.ProtocolNumber
		nsaddr = tcpip.AddrFrom16(ip.As16())
	}
	log.VV("netstack: fulladdr: translate %v -> %v", ipp, nsaddr)
	return tcpip.FullAddress{
		NIC:  nic,
		Addr: nsaddr,
		Port: ipp.Port(), // may be 0
	}, proto, nil
}

// FromFullAddr builds the gvisor endpoint fa into d. The NIC is dropped.
func FromFullAddr(d *sa.Value, fa tcpip.FullAddress) (*sa.Value, error) {
	var ip netip.Addr
	switch fa.Addr.Len() {
	case 4:
		ip = netip.AddrFrom4(fa.Addr.As4())
	case 16:
		ip = netip.AddrFrom16(fa.Addr.As16())
	default:
		log.V("netstack: fromfulladdr: bad addr len %d", fa.Addr.Len())
		return nil, sa.ErrFamily
	}
	return sa.FromAddrPort(d, netip.AddrPortFrom(ip, fa.Port))
}
