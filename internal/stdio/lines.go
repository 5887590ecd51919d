// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PlugBridge Contributors

package stdio

import (
	"bufio"
	"io"
	"strings"
)

// LogLines reads r until it fails, calling logFn(prefix + line) for every
// complete newline-terminated line. Framing happens strictly on '\n'
// regardless of how the bytes arrive from the pipe; a trailing fragment
// with no newline is dropped along with the read error that ends the loop.
// A read error, including EOF after the write side closes, is the normal
// shutdown path for a capture pipe, not a condition to report.
//
// Run it on its own goroutine; it never touches the group host's main loop,
// so heavy log volume cannot starve plugin dispatch.
func LogLines(r io.Reader, prefix string, logFn func(string)) {
	br := bufio.NewReaderSize(r, 64*1024)
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return
		}
		logFn(prefix + strings.TrimSuffix(line, "\n"))
	}
}
