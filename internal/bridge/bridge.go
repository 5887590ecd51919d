// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PlugBridge Contributors

// Package bridge defines the contract between the group host and the
// per-plugin bridge objects it hosts, plus the two messages exchanged when
// a plugin is onboarded onto a group process.
package bridge

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

// HostingRequest asks a group process to host one plugin. These are the
// same options an individually hosted plugin would be started with. The
// struct is comparable and serves as the registry key; two requests are the
// same plugin instance exactly when both fields match.
type HostingRequest struct {
	// PluginPath is the path to the plugin image to load.
	PluginPath string `json:"plugin_path"`
	// EndpointBaseDir is the directory holding this plugin's own control
	// protocol sockets.
	EndpointBaseDir string `json:"endpoint_base_dir"`
}

func (r HostingRequest) String() string {
	return fmt.Sprintf("%s (endpoints in %s)", r.PluginPath, r.EndpointBaseDir)
}

// HostingResponse is sent back as soon as a HostingRequest has been read,
// before the plugin is constructed. It carries only the group process's PID
// so the requester can detect the group process crashing during plugin
// initialization instead of waiting forever for the plugin's sockets.
type HostingResponse struct {
	PID int `json:"pid"`
}

// Bridge is one hosted plugin instance. The group host is the only owner;
// construction and every method except HandleDispatch run on the host's
// main loop thread.
type Bridge interface {
	// HandleDispatch blocks on the plugin's own control protocol socket,
	// serving its commands until the plugin signals termination. Called on
	// the plugin's dedicated dispatch goroutine.
	HandleDispatch() error

	// ServiceEvents lets the plugin service its native event queue. Called
	// once per event loop tick.
	ServiceEvents()

	// SkipMessageLoop reports that the plugin is mid-operation on something
	// that must not be interrupted by shared message dispatch, such as
	// opening an editor window.
	SkipMessageLoop() bool

	// Close releases the plugin's native resources. Called on the main loop
	// thread after the dispatch goroutine has returned.
	Close() error
}

// Factory constructs the bridge for one hosting request. Implementations
// are invoked synchronously on the group host's main loop thread because
// plugin construction and later message servicing must share one thread
// identity.
type Factory func(req HostingRequest) (Bridge, error)

// The onboarding exchange is newline-delimited JSON: one request line in,
// one response line out. Everything after that happens on the plugin's own
// sockets.

// ReadRequest reads one HostingRequest from the connection.
func ReadRequest(r io.Reader) (HostingRequest, error) {
	var req HostingRequest
	if err := readLine(r, &req); err != nil {
		return HostingRequest{}, fmt.Errorf("read hosting request: %w", err)
	}
	return req, nil
}

// WriteRequest writes one HostingRequest to the connection.
func WriteRequest(w io.Writer, req HostingRequest) error {
	if err := writeLine(w, req); err != nil {
		return fmt.Errorf("write hosting request: %w", err)
	}
	return nil
}

// ReadResponse reads one HostingResponse from the connection.
func ReadResponse(r io.Reader) (HostingResponse, error) {
	var resp HostingResponse
	if err := readLine(r, &resp); err != nil {
		return HostingResponse{}, fmt.Errorf("read hosting response: %w", err)
	}
	return resp, nil
}

// WriteResponse writes one HostingResponse to the connection.
func WriteResponse(w io.Writer, resp HostingResponse) error {
	if err := writeLine(w, resp); err != nil {
		return fmt.Errorf("write hosting response: %w", err)
	}
	return nil
}

func readLine(r io.Reader, v any) error {
	line, err := bufio.NewReader(r).ReadBytes('\n')
	if err != nil {
		return err
	}
	return json.Unmarshal(line, v)
}

func writeLine(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}
