// Copyright (c) 2020 RethinkDNS and its authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.
//
// Code relicensed from opensnitch with permissions from evilsocket.
package netstat

import (
	"bufio"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"syscall"

	"github.com/celzero/sockaddr/intra/core"
	"github.com/celzero/sockaddr/intra/log"
	"github.com/celzero/sockaddr/intra/sa"
)

const (
	crlftabspace = "\r\n\t "
	procnet      = "/proc/net"
	suffix6      = "6"
)

var (
	parser = regexp.MustCompile(`(?i)` +
		`\d+:\s+` + // sl
		// source
		`([a-f0-9]{8}|[a-f0-9]{32}):([a-f0-9]{4})\s+` +
		// destination
		`([a-f0-9]{8}|[a-f0-9]{32}):([a-f0-9]{4})\s+` +
		`[a-f0-9]{2}\s+` + // st
		// transfer queue, recieve queue
		`[a-f0-9]{8}:[a-f0-9]{8}\s+` +
		// tr tm->when
		`[a-f0-9]{2}:[a-f0-9]{8}\s+` +
		// retrnsmt
		`[a-f0-9]{8}\s+` +
		// uid
		`(\d+)\s+` +
		// timeout
		`\d+\s+` +
		// inode
		`(\d+)\s+` +
		// the rest...
		`.+`)

	errBadHex = errors.New("netstat: bad hex address")
)

// Entry is a single socket, as listed in a /proc/net/{tcp,udp}{,6} table.
type Entry struct {
	Protocol string
	Src      sa.Value
	Dst      sa.Value
	UserID   int
	INode    int
}

func (e *Entry) String() string {
	return e.Protocol + " " + e.Src.String() + " " + e.Dst.String()
}

// Table reads socket tables from procfs.
type Table struct {
	root   string
	bogons *sa.Bogons
}

// NewTable reads from /proc/net. b supplies the unspecified addresses
// that act as wildcards in Same; if nil, a fresh set is built.
func NewTable(b *sa.Bogons) *Table {
	return NewTableAt(procnet, b)
}

// NewTableAt reads tables from dir instead of /proc/net.
func NewTableAt(dir string, b *sa.Bogons) *Table {
	if b == nil {
		b = sa.NewBogons()
	}
	return &Table{root: dir, bogons: b}
}

// Same reports whether p and q are the same socket, treating
// unspecified addresses and a zero remote port as wildcards.
func (t *Table) Same(p, q *Entry) bool {
	if p == nil || q == nil {
		return false
	}
	if strings.TrimSuffix(p.Protocol, suffix6) != strings.TrimSuffix(q.Protocol, suffix6) {
		return false
	}

	// github.com/M66B/NetGuard/blob/1fe3a04ae/app/src/main/jni/netguard/ip.c#L393
	skipSrcIP := t.unspecified(&p.Src) || t.unspecified(&q.Src)
	skipDstIP := t.unspecified(&p.Dst) || t.unspecified(&q.Dst)
	skipDstPort := p.Dst.Port() == 0 || q.Dst.Port() == 0

	return (skipSrcIP || sameIP(&p.Src, &q.Src)) &&
		p.Src.Port() == q.Src.Port() &&
		(skipDstIP || sameIP(&p.Dst, &q.Dst)) &&
		(skipDstPort || p.Dst.Port() == q.Dst.Port())
}

func (t *Table) unspecified(v *sa.Value) bool {
	switch v.Family() {
	case sa.V4:
		return sa.EqualIP(v, t.bogons.IP4())
	case sa.V6:
		return sa.EqualIP(v, t.bogons.IP6())
	}
	return false
}

// sameIP compares addresses across families, so that a v4-mapped
// address in a tcp6 table matches its v4 form.
func sameIP(a, b *sa.Value) bool {
	if a.Family() == b.Family() {
		return sa.EqualIP(a, b)
	}
	return a.IP().Unmap() == b.IP().Unmap()
}

func trim(s string) string {
	return strings.Trim(s, crlftabspace)
}

// hexToValue decodes a procfs "ADDR:PORT" pair. procfs prints each
// 32-bit word of the address in host byte order and the port as a
// plain hex number.
func hexToValue(d *sa.Value, addr, port string) (*sa.Value, error) {
	raw, err := hex.DecodeString(addr)
	if err != nil || (len(raw) != 4 && len(raw) != 16) {
		return nil, errBadHex
	}
	for i := 0; i < len(raw); i += 4 {
		w := binary.BigEndian.Uint32(raw[i:])
		binary.NativeEndian.PutUint32(raw[i:], w)
	}
	p, err := strconv.ParseUint(port, 16, 16)
	if err != nil {
		return nil, err
	}
	pb := binary.BigEndian.AppendUint16(nil, uint16(p))

	fam := sa.V4
	if len(raw) == 16 {
		fam = sa.V6
	}
	return sa.BuildFAP(d, fam, raw, pb)
}

// Parse reads a /proc/net/{tcp,udp}{,6} table from r. Lines that do
// not parse are logged and skipped.
func Parse(r io.Reader, protocol string) ([]Entry, error) {
	entries := make([]Entry, 0)
	scanner := bufio.NewScanner(r)
	for lineno := 0; scanner.Scan(); lineno++ {
		// skip column names
		if lineno == 0 {
			continue
		}

		line := trim(scanner.Text())
		m := parser.FindStringSubmatch(line)
		if m == nil {
			log.W("netstat: could not parse %s line: %s", protocol, line)
			continue
		}

		var e Entry
		e.Protocol = protocol
		if _, err := hexToValue(&e.Src, m[1], m[2]); err != nil {
			log.W("netstat: %s src %s:%s: %v", protocol, m[1], m[2], err)
			continue
		}
		if _, err := hexToValue(&e.Dst, m[3], m[4]); err != nil {
			log.W("netstat: %s dst %s:%s: %v", protocol, m[3], m[4], err)
			continue
		}
		e.UserID, _ = strconv.Atoi(m[5])
		e.INode, _ = strconv.Atoi(m[6])
		entries = append(entries, e)
	}
	return entries, scanner.Err()
}

// Read parses the table for protocol, ex: "tcp" or "udp6".
func (t *Table) Read(protocol string) ([]Entry, error) {
	filename := filepath.Join(t.root, filepath.Base(protocol))
	fd, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer core.Close(fd)

	return Parse(fd, protocol)
}

// Find returns the entry for the socket src -> dst in protocol's v4
// table or, failing that, its v6 table.
func (t *Table) Find(protocol string, src, dst *sa.Value) *Entry {
	if !src.Sane() || !dst.Sane() {
		return nil
	}
	want := &Entry{Protocol: protocol, Src: *src, Dst: *dst}

	protos := []string{protocol}
	if !strings.HasSuffix(protocol, suffix6) {
		protos = append(protos, protocol+suffix6)
	}
	for _, proto := range protos {
		entries, err := t.Read(proto)
		if err != nil {
			log.W("netstat: find: %s: %v", proto, err)
			continue
		}
		for i := range entries {
			// return on first match since Same is pretty lax and deliberately
			// not exact at matching the various procnet entries
			if t.Same(want, &entries[i]) {
				return &entries[i]
			}
		}
	}
	return nil
}

// Owner returns the uid that owns the socket c, as listed in procfs.
func (t *Table) Owner(protocol string, c syscall.Conn) (uid int, ok bool) {
	src, err := sa.LocalOf(c)
	if err != nil {
		log.D("netstat: owner: local: %v", err)
		return -1, false
	}
	dst, err := sa.PeerOf(c)
	if err != nil {
		dst = t.bogons.Or(nil)
	}
	if e := t.Find(protocol, src, dst); e != nil {
		return e.UserID, true
	}
	return -1, false
}
