// Copyright 2025 The leakdetector Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Goroutine id extraction.
//
// The registry keys tracked threads by runtime goroutine id. There is no
// public accessor for it, so the id is parsed from the first line of the
// goroutine's own stack dump. The buffer is stack-allocated and only the
// header line is needed, so the cost stays around a microsecond, paid once
// per registration and once per registry lookup.

package thread

import "runtime"

// currentGoroutineID returns the runtime id of the calling goroutine.
//
// Returns 0 only if the stack header cannot be parsed, which would indicate
// a runtime format change.
func currentGoroutineID() int64 {
	// Only the "goroutine N [state]:" header is needed.
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	return parseGID(buf[:n])
}

// parseGID extracts the goroutine id from stack trace bytes.
//
// Expected format: "goroutine 123 [running]:...". Direct byte parsing, no
// allocation.
func parseGID(buf []byte) int64 {
	const prefix = "goroutine "
	if len(buf) < len(prefix) || string(buf[:len(prefix)]) != prefix {
		return 0
	}
	var gid int64
	for i := len(prefix); i < len(buf); i++ {
		c := buf[i]
		if c < '0' || c > '9' {
			break
		}
		gid = gid*10 + int64(c-'0')
	}
	return gid
}
