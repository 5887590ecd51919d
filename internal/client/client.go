// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PlugBridge Contributors

// Package client performs the plugin side of group onboarding: connect to a
// group process's rendezvous socket, send one hosting request, read back
// the group process's identity.
package client

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/plugbridge/plugbridge/internal/bridge"
)

// Dial timing. A freshly spawned group process needs a moment to bind its
// rendezvous socket, so connection attempts back off and retry until the
// deadline instead of failing on the first refused connection.
const (
	initialBackoff = 20 * time.Millisecond
	dialTimeout    = 5 * time.Second
)

// Host asks the group process listening on socketPath to host the plugin
// described by req. The returned PID identifies the group process; callers
// watch it to detect the coordinator crashing while the plugin initializes.
func Host(ctx context.Context, socketPath string, req bridge.HostingRequest) (bridge.HostingResponse, error) {
	var conn net.Conn

	backoff := retry.WithMaxDuration(dialTimeout, retry.NewExponential(initialBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		d := net.Dialer{}
		c, err := d.DialContext(ctx, "unix", socketPath)
		if err != nil {
			return retry.RetryableError(err)
		}
		conn = c
		return nil
	})
	if err != nil {
		return bridge.HostingResponse{}, fmt.Errorf("connect to group host %s: %w", socketPath, err)
	}
	defer func() { _ = conn.Close() }()

	if err := bridge.WriteRequest(conn, req); err != nil {
		return bridge.HostingResponse{}, err
	}

	resp, err := bridge.ReadResponse(conn)
	if err != nil {
		return bridge.HostingResponse{}, err
	}
	return resp, nil
}
