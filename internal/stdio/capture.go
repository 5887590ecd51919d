// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PlugBridge Contributors

// Package stdio redirects a process-wide output stream into a pipe and
// forwards its content to the logger one line at a time.
package stdio

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// Capture redirects a file descriptor (typically stdout or stderr) into an
// internally owned pipe. Anything the process writes to the descriptor after
// capture lands in the pipe instead; Reader exposes the other end. A
// duplicate of the original descriptor is kept so Restore can undo the
// redirection.
type Capture struct {
	targetFD int
	savedFD  int
	reader   *os.File

	restoreOnce sync.Once
	restoreErr  error
}

// CaptureFD starts capturing the given file descriptor.
func CaptureFD(fd int) (*Capture, error) {
	saved, err := unix.Dup(fd)
	if err != nil {
		return nil, fmt.Errorf("dup fd %d: %w", fd, err)
	}

	var p [2]int
	if err := unix.Pipe(p[:]); err != nil {
		_ = unix.Close(saved)
		return nil, fmt.Errorf("pipe: %w", err)
	}

	if err := unix.Dup2(p[1], fd); err != nil {
		_ = unix.Close(saved)
		_ = unix.Close(p[0])
		_ = unix.Close(p[1])
		return nil, fmt.Errorf("dup2 over fd %d: %w", fd, err)
	}
	// The write end now lives on as the target descriptor itself.
	_ = unix.Close(p[1])

	return &Capture{
		targetFD: fd,
		savedFD:  saved,
		reader:   os.NewFile(uintptr(p[0]), fmt.Sprintf("capture-fd-%d", fd)),
	}, nil
}

// Reader returns the read end of the capture pipe. Reads block until the
// process writes to the captured descriptor; the reader hits EOF once
// Restore has run and all buffered output is drained.
func (c *Capture) Reader() *os.File {
	return c.reader
}

// OriginalWriter returns a fresh file backed by a duplicate of the
// descriptor as it was before capture. The logger writes here: routing log
// output through the captured descriptor would feed the logger its own
// lines. The caller owns the returned file.
func (c *Capture) OriginalWriter() (*os.File, error) {
	fd, err := unix.Dup(c.savedFD)
	if err != nil {
		return nil, fmt.Errorf("dup saved fd %d: %w", c.savedFD, err)
	}
	return os.NewFile(uintptr(fd), fmt.Sprintf("original-fd-%d", c.targetFD)), nil
}

// Restore puts the original descriptor back and closes the capture pipe.
// Safe to call more than once; later calls return the first result. Output
// written between the dup2 and the pipe close may be dropped, which only
// matters at process exit.
func (c *Capture) Restore() error {
	c.restoreOnce.Do(func() {
		if err := unix.Dup2(c.savedFD, c.targetFD); err != nil {
			c.restoreErr = fmt.Errorf("restore fd %d: %w", c.targetFD, err)
		}
		_ = unix.Close(c.savedFD)
		// Closing the reader makes any in-flight LogLines loop observe EOF
		// and retire.
		_ = c.reader.Close()
	})
	return c.restoreErr
}
