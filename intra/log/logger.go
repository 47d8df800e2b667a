// Copyright (c) 2022 RethinkDNS and its authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.
//
// This file incorporates work covered by the following copyright and
// permission notice:
//
//	MIT License
//
//	Copyright (c) 2018 eycorsican
//
//	Permission is hereby granted, free of charge, to any person obtaining a copy
//	of this software and associated documentation files (the "Software"), to deal
//	in the Software without restriction, including without limitation the rights
//	to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
//	copies of the Software, and to permit persons to whom the Software is
//	furnished to do so, subject to the following conditions:
//
//	The above copyright notice and this permission notice shall be included in all
//	copies or substantial portions of the Software.
//
//	THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
//	IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
//	FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
//	AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
//	LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
//	OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
//	SOFTWARE.
package log

import (
	"fmt"
	golog "log"
	"os"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
)

type Logger interface {
	SetLevel(level LogLevel)
	VeryVerbosef(at int, msg string, args ...any)
	Verbosef(at int, msg string, args ...any)
	Debugf(at int, msg string, args ...any)
	Infof(at int, msg string, args ...any)
	Warnf(at int, msg string, args ...any)
	Errorf(at int, msg string, args ...any)
	Stack(at int, msg string)
}

// based on github.com/eycorsican/go-tun2socks/blob/301549c43/common/log/simple/logger.go
type simpleLogger struct {
	sync.Mutex // guards stcount
	level      atomic.Uint32
	stcount    map[string]uint32 // stack trace counter for identical traces
	e          *golog.Logger
	o          *golog.Logger
	q          *ring[string]
}

// based on: github.com/eycorsican/go-tun2socks/blob/301549c43/common/log/logger.go
type LogLevel uint32

const (
	VVERBOSE LogLevel = iota
	VERBOSE
	DEBUG
	INFO
	WARN
	ERROR
	STACKTRACE
	NONE
)

const defaultLevel = INFO

var _ Logger = (*simpleLogger)(nil)

// qSize is the number of recent log msgs to keep in the ring buffer.
const qSize = 64

// similarTraceThreshold is the no. of similar stacktraces to report before suppressing.
const similarTraceThreshold = 8

// stackSize is the scratch space for a single goroutine's trace.
const stackSize = 8 * 1024

var defaultFlags = golog.Lshortfile
var _ = RegisterLogger(defaultLogger())

func defaultLogger() *simpleLogger {
	l := &simpleLogger{
		stcount: make(map[string]uint32),
		e:       golog.New(os.Stderr, "", defaultFlags),
		o:       golog.New(os.Stdout, "", defaultFlags),
		q:       newRing[string](qSize),
	}
	l.level.Store(uint32(defaultLevel))
	return l
}

// SetLevel sets the log level.
func (l *simpleLogger) SetLevel(n LogLevel) {
	l.level.Store(uint32(n))
	l.clearStCounts()
}

func (l *simpleLogger) lvl() LogLevel {
	return LogLevel(l.level.Load())
}

func (l *simpleLogger) clearStCounts() {
	l.Lock()
	defer l.Unlock()
	clear(l.stcount)
}

func (l *simpleLogger) incrStCount(id string) (c uint32) {
	l.Lock()
	defer l.Unlock()

	c = l.stcount[id]
	c++
	l.stcount[id] = c
	return c
}

func (l *simpleLogger) VeryVerbosef(at int, msg string, args ...any) {
	if l.lvl() <= VVERBOSE {
		l.out(at, l.msgstr(msg, args...))
	}
}

func (l *simpleLogger) Verbosef(at int, msg string, args ...any) {
	if l.lvl() <= VERBOSE {
		l.out(at, l.msgstr(msg, args...))
	}
}

func (l *simpleLogger) Debugf(at int, msg string, args ...any) {
	if l.lvl() <= DEBUG {
		l.out(at, l.msgstr(msg, args...))
	}
}

func (l *simpleLogger) Infof(at int, msg string, args ...any) {
	if l.lvl() <= INFO {
		l.out(at, l.msgstr(msg, args...))
	}
}

func (l *simpleLogger) Warnf(at int, msg string, args ...any) {
	if l.lvl() <= WARN {
		l.err(at, l.msgstr(msg, args...))
	}
}

func (l *simpleLogger) Errorf(at int, msg string, args ...any) {
	if l.lvl() <= ERROR {
		l.err(at, l.msgstr(msg, args...))
	}
}

// Stack logs recent msgs and the current goroutine's stacktrace.
// Identical traces are suppressed after similarTraceThreshold.
func (l *simpleLogger) Stack(at int, msg string) {
	if l.lvl() > STACKTRACE {
		return
	}

	count := l.incrStCount(msg)
	msg = msg + fmt.Sprintf(" (#%d)", count)
	if count > similarTraceThreshold {
		l.err(at, msg+" stacktrace suppressed")
		return
	}

	if recent := l.q.Snapshot(); len(recent) > 0 {
		l.err(at, strings.Join(recent, "\n"))
	}

	scratch := make([]byte, stackSize)
	n := runtime.Stack(scratch, false)
	if n == len(scratch) {
		msg += "[trunc]"
	}
	l.err(at, msg)
	l.err(at, string(scratch[:n]))
}

func (l *simpleLogger) msgstr(f string, args ...any) string {
	return fmt.Sprintf(f, args...)
}

// out logs to stdout and pushes msg into ring buffer.
func (l *simpleLogger) out(at int, msg string) {
	_ = l.o.Output(at, msg) // may error
	l.q.Push(msg)
}

// err logs to stderr and pushes msg into ring buffer.
func (l *simpleLogger) err(at int, msg string) {
	_ = l.e.Output(at, msg) // may error
	l.q.Push(msg)
}
