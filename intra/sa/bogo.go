// Copyright (c) 2024 RethinkDNS and its authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package sa

// Bogons are the placeholder endpoints 0.0.0.0:0 and [::]:0, handed out
// where an IP endpoint is expected but the real one is not IP (ex: a
// peer on a unix socket).
type Bogons struct {
	ip4 Value
	ip6 Value
}

// NewBogons builds the placeholders. Call it once at startup, before
// any goroutine reads them, and share the result; Bogons are never
// written to after.
func NewBogons() *Bogons {
	b := new(Bogons)
	if _, err := BuildFAP(&b.ip4, V4, nil, nil); err != nil {
		panic(err)
	}
	if _, err := BuildFAP(&b.ip6, V6, nil, nil); err != nil {
		panic(err)
	}
	return b
}

// IP4 returns 0.0.0.0:0. Must not be used as a Build destination.
func (b *Bogons) IP4() *Value {
	return &b.ip4
}

// IP6 returns [::]:0. Must not be used as a Build destination.
func (b *Bogons) IP6() *Value {
	return &b.ip6
}

// Or returns v if it is a sane V4 or V6 endpoint, and IP4 otherwise.
func (b *Bogons) Or(v *Value) *Value {
	if v.Sane() && v.family().IsIP() {
		return v
	}
	return b.IP4()
}
