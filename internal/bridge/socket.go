// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PlugBridge Contributors

package bridge

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"path/filepath"
	"sync/atomic"
)

// ControlSocketName is the filename of a plugin's control protocol socket
// inside its endpoint base directory.
const ControlSocketName = "control.sock"

// Dispatcher handles one control protocol command and produces its reply.
// The command protocol itself belongs to the plugin proxy; the group host
// only moves frames. A Dispatcher may flip the skip flag around operations
// that must not be interrupted by message pumping.
type Dispatcher interface {
	Dispatch(command []byte) (reply []byte, err error)
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(command []byte) ([]byte, error)

func (f DispatcherFunc) Dispatch(command []byte) ([]byte, error) { return f(command) }

// SocketBridge is the stock Bridge: it connects to the plugin's control
// socket and serves newline-framed commands through a Dispatcher until the
// plugin closes the connection. Embeddings with richer native integration
// provide their own Bridge instead.
type SocketBridge struct {
	conn       net.Conn
	dispatcher Dispatcher
	skip       atomic.Bool
	serviced   atomic.Uint64
}

// NewSocketBridge connects to the control socket under req.EndpointBaseDir.
func NewSocketBridge(req HostingRequest, dispatcher Dispatcher) (*SocketBridge, error) {
	path := filepath.Join(req.EndpointBaseDir, ControlSocketName)
	conn, err := net.Dial("unix", path)
	if err != nil {
		return nil, fmt.Errorf("connect control socket %s: %w", path, err)
	}
	if dispatcher == nil {
		dispatcher = DispatcherFunc(func(command []byte) ([]byte, error) {
			return command, nil
		})
	}
	return &SocketBridge{conn: conn, dispatcher: dispatcher}, nil
}

// HandleDispatch serves the control socket until the plugin hangs up.
// A closed connection is plugin termination, not an error.
func (b *SocketBridge) HandleDispatch() error {
	r := bufio.NewReader(b.conn)
	for {
		frame, err := r.ReadBytes('\n')
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("read control frame: %w", err)
		}

		reply, err := b.dispatcher.Dispatch(frame[:len(frame)-1])
		if err != nil {
			return fmt.Errorf("dispatch control frame: %w", err)
		}
		if _, err := b.conn.Write(append(reply, '\n')); err != nil {
			return fmt.Errorf("write control reply: %w", err)
		}
	}
}

// ServiceEvents counts ticks; the stock bridge has no native event queue.
func (b *SocketBridge) ServiceEvents() {
	b.serviced.Add(1)
}

// SkipMessageLoop reports whether the dispatcher asked for suppression.
func (b *SocketBridge) SkipMessageLoop() bool {
	return b.skip.Load()
}

// SetSkipMessageLoop flags that message pumping must pause, typically for
// the duration of opening an editor.
func (b *SocketBridge) SetSkipMessageLoop(v bool) {
	b.skip.Store(v)
}

// Close tears down the control connection.
func (b *SocketBridge) Close() error {
	if err := b.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("close control socket: %w", err)
	}
	return nil
}
