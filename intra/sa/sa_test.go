// Copyright (c) 2024 RethinkDNS and its authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package sa

import (
	"bytes"
	"errors"
	"net/netip"
	"testing"
	"unsafe"

	"github.com/celzero/sockaddr/intra/settings"
	"golang.org/x/sys/unix"
)

var (
	lo4   = []byte{0x7f, 0, 0, 1}
	lo6   = netip.IPv6Loopback().AsSlice()
	p8080 = []byte{0x1f, 0x90}
	p443  = []byte{0x01, 0xbb}
	p80   = []byte{0x00, 0x50}
)

func ko(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

func mustFAP(t *testing.T, fam Family, addr, port []byte) *Value {
	t.Helper()
	v, err := NewFAP(fam, addr, port)
	ko(t, err)
	return v
}

// unixValue builds a unix-domain value from a raw sockaddr_un.
func unixValue(t *testing.T, path string) *Value {
	t.Helper()
	var sun unix.RawSockaddrUnix
	sun.Family = unix.AF_UNIX
	for i := 0; i < len(path); i++ {
		sun.Path[i] = int8(path[i])
	}
	v, err := New(bytesOf(&sun))
	ko(t, err)
	return v
}

func mustPanicCorrupt(t *testing.T, name string, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("%s: no panic", name)
		}
		err, ok := r.(error)
		if !ok || !errors.Is(err, ErrCorrupt) {
			t.Fatalf("%s: panic %v; want ErrCorrupt", name, r)
		}
	}()
	fn()
}

func TestIP4LoopbackFAP(t *testing.T) {
	v := mustFAP(t, V4, lo4, p8080)

	if f := v.Family(); f != V4 {
		t.Fatalf("family: got %s", f)
	}
	if p := v.Port(); p != 8080 {
		t.Fatalf("port: got %d", p)
	}
	fam, addr := v.Addr()
	if fam != V4 || !bytes.Equal(addr, []byte{0x7f, 0x00, 0x00, 0x01}) {
		t.Fatalf("addr: got %s %x", fam, addr)
	}
	if ipp := v.AddrPort(); ipp != netip.MustParseAddrPort("127.0.0.1:8080") {
		t.Fatalf("addrport: got %v", ipp)
	}
}

func TestIP6LoopbackFAP(t *testing.T) {
	v := mustFAP(t, V6, lo6, p443)

	if f := v.Family(); f != V6 {
		t.Fatalf("family: got %s", f)
	}
	if p := v.Port(); p != 443 {
		t.Fatalf("port: got %d", p)
	}
	want := make([]byte, 16)
	want[15] = 0x01
	fam, addr := v.Addr()
	if fam != V6 || !bytes.Equal(addr, want) {
		t.Fatalf("addr: got %s %x", fam, addr)
	}
	if v.String() != "[::1]:443" {
		t.Fatalf("string: got %s", v)
	}
}

func TestRoundTrip(t *testing.T) {
	cases := []struct {
		fam  Family
		addr []byte
		port []byte
		want uint16
	}{
		{V4, []byte{10, 0, 0, 1}, p80, 80},
		{V4, []byte{255, 255, 255, 255}, []byte{0xff, 0xff}, 65535},
		{V6, netip.MustParseAddr("2001:db8::1").AsSlice(), p443, 443},
		{V6, netip.MustParseAddr("::ffff:1.2.3.4").AsSlice(), []byte{0, 1}, 1},
	}
	for _, c := range cases {
		v := mustFAP(t, c.fam, c.addr, c.port)
		fam, addr := v.Addr()
		if v.Family() != c.fam || fam != c.fam || !bytes.Equal(addr, c.addr) || v.Port() != c.want {
			t.Errorf("%s %x: got %s %x :%d", c.fam, c.addr, fam, addr, v.Port())
		}
		if !Sane(v) {
			t.Errorf("%s %x: not sane", c.fam, c.addr)
		}
	}
}

func TestFAPZeroDefaults(t *testing.T) {
	v4 := mustFAP(t, V4, nil, nil)
	if v4.AddrPort() != netip.MustParseAddrPort("0.0.0.0:0") {
		t.Fatalf("v4: got %v", v4.AddrPort())
	}
	v6 := mustFAP(t, V6, []byte{}, []byte{})
	if v6.AddrPort() != netip.MustParseAddrPort("[::]:0") {
		t.Fatalf("v6: got %v", v6.AddrPort())
	}
}

func TestFAPRejects(t *testing.T) {
	var d Value
	if _, err := BuildFAP(&d, V4, lo6, nil); !errors.Is(err, ErrInvalid) {
		t.Errorf("v4 with 16b addr: %v", err)
	}
	if _, err := BuildFAP(&d, V6, lo4, nil); !errors.Is(err, ErrInvalid) {
		t.Errorf("v6 with 4b addr: %v", err)
	}
	if _, err := BuildFAP(&d, V4, lo4, []byte{1}); !errors.Is(err, ErrInvalid) {
		t.Errorf("1b port: %v", err)
	}
	if _, err := BuildFAP(&d, Unix, nil, nil); !errors.Is(err, ErrFamily) {
		t.Errorf("unix: %v", err)
	}
	if _, err := BuildFAP(&d, Family(unix.AF_APPLETALK), lo4, []byte{1}); !errors.Is(err, ErrFamily) {
		t.Errorf("appletalk: %v", err)
	}
	if _, err := BuildFAP(nil, V4, lo4, p80); !errors.Is(err, ErrInvalid) {
		t.Errorf("nil dst: %v", err)
	}
	if Sane(&d) {
		t.Error("failed builds left d sane")
	}
}

func TestBuildShortByOne(t *testing.T) {
	var sin4 unix.RawSockaddrInet4
	sin4.Family = unix.AF_INET
	raw := bytesOf(&sin4)

	var d Value
	v, err := Build(&d, raw[:unix.SizeofSockaddrInet4-1])
	if v != nil || !errors.Is(err, ErrInvalid) || !errors.Is(err, unix.EINVAL) {
		t.Fatalf("got %v, %v; want nil, EINVAL", v, err)
	}
	if _, err := Build(&d, raw[:1]); !errors.Is(err, ErrInvalid) {
		t.Fatalf("1 byte: %v", err)
	}
	if _, err := Build(&d, raw); err != nil {
		t.Fatalf("full: %v", err)
	}
}

func TestBuildUnknownFamily(t *testing.T) {
	var sa unix.RawSockaddr
	sa.Family = unix.AF_APPLETALK
	_, err := New(bytesOf(&sa))
	if !errors.Is(err, ErrFamily) || !errors.Is(err, unix.EAFNOSUPPORT) {
		t.Fatalf("got %v; want EAFNOSUPPORT", err)
	}
}

func TestBuildAliased(t *testing.T) {
	v := mustFAP(t, V4, lo4, p8080)
	raw := v.u[:unix.SizeofSockaddrInet4]
	if _, err := Build(v, raw); err != nil {
		t.Fatal(err)
	}
	if v.AddrPort() != netip.MustParseAddrPort("127.0.0.1:8080") {
		t.Fatalf("got %v", v.AddrPort())
	}
}

func TestFixedSize(t *testing.T) {
	v4 := mustFAP(t, V4, lo4, p80)
	v6 := mustFAP(t, V6, lo6, p80)
	vu := unixValue(t, "/tmp/x.sock")
	for _, v := range []*Value{v4, v6, vu} {
		if n := len(v.Bytes()); n != Size {
			t.Errorf("%s: image %d; want %d", v.Family(), n, Size)
		}
		if n := int(unsafe.Sizeof(*v)); n != Size {
			t.Errorf("%s: sizeof %d; want %d", v.Family(), n, Size)
		}
	}
	if Size < 4+unix.SizeofSockaddrUnix {
		t.Fatalf("size %d cannot hold sockaddr_un", Size)
	}
	arr := make([]Value, 3)
	arr[0], arr[1], arr[2] = *v4, *v6, *vu
	if !Equal(&arr[1], v6) {
		t.Fatal("array copy differs")
	}
}

func TestZeroValueNotSane(t *testing.T) {
	var v Value
	if Sane(&v) || v.Sane() {
		t.Fatal("zero value is sane")
	}
	if Sane(nil) {
		t.Fatal("nil is sane")
	}
	if _, err := Load(new(Value), make([]byte, Size)); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("zero image: %v", err)
	}
}

func TestUnreadableZero(t *testing.T) {
	var v Value
	mustPanicCorrupt(t, "port", func() { v.Port() })
	mustPanicCorrupt(t, "family", func() { v.Family() })
	mustPanicCorrupt(t, "addr", func() { v.Addr() })
	mustPanicCorrupt(t, "clone", func() { Clone(&v) })
	mustPanicCorrupt(t, "compare", func() { Compare(&v, &v) })
	mustPanicCorrupt(t, "sockaddr", func() { v.Sockaddr() })
	if v.String() != "<invalid>" {
		t.Fatalf("string: %s", v.String())
	}
}

func TestNilAddr(t *testing.T) {
	var v *Value
	if fam, a := v.Addr(); fam != None || a != nil {
		t.Fatalf("nil addr: %s %x", fam, a)
	}
	if v.IP().IsValid() {
		t.Fatal("nil ip")
	}
}

func TestUnixSizeOnly(t *testing.T) {
	v := unixValue(t, "/run/vsock")
	if !v.Sane() || v.Family() != Unix {
		t.Fatalf("got %s", v.Family())
	}
	if p := v.Port(); p != 0 {
		t.Fatalf("port: got %d", p)
	}
	if fam, a := v.Addr(); fam != None || a != nil {
		t.Fatalf("addr: %s %x", fam, a)
	}
	if v.AddrPort().IsValid() {
		t.Fatal("addrport valid")
	}
	_, l, err := v.Sockaddr()
	ko(t, err)
	if l != unix.SizeofSockaddrUnix {
		t.Fatalf("sockaddr len: %d", l)
	}
	s, err := v.ToSockaddr()
	ko(t, err)
	if sun, ok := s.(*unix.SockaddrUnix); !ok || sun.Name != "/run/vsock" {
		t.Fatalf("tosockaddr: %#v", s)
	}
}

func TestSockaddrView(t *testing.T) {
	v := mustFAP(t, V6, lo6, p443)
	p, l, err := v.Sockaddr()
	ko(t, err)
	if l != unix.SizeofSockaddrInet6 {
		t.Fatalf("len: %d", l)
	}
	sin6 := (*unix.RawSockaddrInet6)(p)
	if Family(sin6.Family) != V6 || sin6.Addr[15] != 1 {
		t.Fatalf("view: %+v", sin6)
	}
}

func TestToSockaddr(t *testing.T) {
	v := mustFAP(t, V4, lo4, p8080)
	s, err := v.ToSockaddr()
	ko(t, err)
	sin4, ok := s.(*unix.SockaddrInet4)
	if !ok || sin4.Port != 8080 || sin4.Addr != [4]byte{127, 0, 0, 1} {
		t.Fatalf("got %#v", s)
	}

	var d Value
	_, err = FromSockaddr(&d, s)
	ko(t, err)
	if !Equal(&d, v) {
		t.Fatal("from(to(v)) != v")
	}
}

func TestFromSockaddr6Scope(t *testing.T) {
	s := &unix.SockaddrInet6{Port: 53, ZoneId: 3, Addr: netip.MustParseAddr("fe80::1").As16()}
	v, err := FromSockaddr(new(Value), s)
	ko(t, err)
	back, err := v.ToSockaddr()
	ko(t, err)
	if x := back.(*unix.SockaddrInet6); x.ZoneId != 3 || x.Port != 53 || x.Addr != s.Addr {
		t.Fatalf("got %#v", x)
	}
	if _, err := FromSockaddr(new(Value), nil); !errors.Is(err, ErrInvalid) {
		t.Fatalf("nil: %v", err)
	}
}

func TestFromAddrPort(t *testing.T) {
	ipp := netip.MustParseAddrPort("10.0.0.1:80")
	v, err := FromAddrPort(new(Value), ipp)
	ko(t, err)
	if !Equal(v, mustFAP(t, V4, []byte{10, 0, 0, 1}, p80)) {
		t.Fatal("fromaddrport != fap")
	}
	mapped := netip.MustParseAddrPort("[::ffff:10.0.0.1]:80")
	v6, err := FromAddrPort(new(Value), mapped)
	ko(t, err)
	if v6.Family() != V6 {
		t.Fatalf("mapped: %s", v6.Family())
	}
	if _, err := FromAddrPort(new(Value), netip.AddrPort{}); !errors.Is(err, ErrInvalid) {
		t.Fatalf("zero: %v", err)
	}
}

func TestCloneIsCopy(t *testing.T) {
	v := mustFAP(t, V4, lo4, p8080)
	c := Clone(v)
	if Compare(v, c) != 0 {
		t.Fatal("clone differs")
	}
	if c == v {
		t.Fatal("clone shares storage")
	}
	_, err := BuildFAP(c, V4, lo4, p80)
	ko(t, err)
	if v.Port() != 8080 {
		t.Fatal("rebuilding the clone changed the source")
	}
}

func TestBytesLoad(t *testing.T) {
	v := mustFAP(t, V6, lo6, p443)
	img := v.Bytes()

	var d Value
	_, err := Load(&d, img)
	ko(t, err)
	if !Equal(&d, v) {
		t.Fatal("load(bytes(v)) != v")
	}
	if _, err := Load(&d, img[1:]); !errors.Is(err, ErrInvalid) {
		t.Fatalf("short image: %v", err)
	}
	if _, err := Load(nil, img); !errors.Is(err, ErrInvalid) {
		t.Fatalf("nil dst: %v", err)
	}
}

func TestLoadStrictTail(t *testing.T) {
	defer settings.SetAddrOpts(settings.DefaultAddrOpts())

	v := mustFAP(t, V4, lo4, p80)
	img := v.Bytes()
	img[Size-1] = 0xff // past sockaddr_in

	settings.SetAddrOpts(settings.AddrOpts{Strict: false})
	d, err := Load(new(Value), img)
	ko(t, err)
	if Equal(d, v) {
		t.Fatal("dirty tail compared equal")
	}
	if !EqualIP(d, v) || d.Port() != v.Port() {
		t.Fatal("dirty tail changed the endpoint")
	}

	settings.SetAddrOpts(settings.AddrOpts{Strict: true})
	if _, err := Load(new(Value), img); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("strict: %v", err)
	}
}

func TestLoadGarbageMagic(t *testing.T) {
	v := mustFAP(t, V4, lo4, p80)
	img := v.Bytes()
	img[0] ^= 0xff
	if _, err := Load(new(Value), img); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("got %v", err)
	}
}

func TestFamilyString(t *testing.T) {
	for f, want := range map[Family]string{None: "none", V4: "ip4", V6: "ip6", Unix: "unix", 99: "af99"} {
		if f.String() != want {
			t.Errorf("%d: got %s", f, f.String())
		}
	}
}
