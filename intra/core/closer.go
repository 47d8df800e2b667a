// Copyright (c) 2024 RethinkDNS and its authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package core

import (
	"io"
	"reflect"
)

// Close closes cs, ignoring nils and errors.
func Close(cs ...io.Closer) {
	for _, c := range cs {
		if IsNotNil(c) {
			_ = c.Close()
		}
	}
}

// IsNil reports whether x is nil or a typed nil.
func IsNil(x any) bool {
	if x == nil {
		return true
	}
	// from: stackoverflow.com/a/76595928
	v := reflect.ValueOf(x)
	switch v.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice:
		return v.IsNil()
	}
	return false
}

func IsNotNil(x any) bool {
	return !IsNil(x)
}
