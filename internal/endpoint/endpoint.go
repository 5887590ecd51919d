// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PlugBridge Contributors

// Package endpoint manages the group host's rendezvous socket: exclusive
// binding with stale-socket recovery, socket path naming, and group label
// derivation for log prefixes.
package endpoint

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/oklog/ulid/v2"
)

// SocketPrefix is the leading component of every group socket filename.
const SocketPrefix = "plugbridge-group"

// procNetUnix lists every unix domain socket currently open on the system.
// Overridable for tests.
var procNetUnix = "/proc/net/unix"

// Listen binds a unix stream listener on path, handling the three possible
// states of the endpoint:
//
//  1. The path does not exist: bind normally.
//  2. The path exists but nothing is listening (a previous group process
//     died without cleanup): remove the stale file and bind again.
//  3. Another process is actively listening: return the original bind error
//     so this process exits and the live coordinator keeps serving.
//
// There is no atomic test-and-bind for unix socket paths, so liveness is
// determined by scanning the kernel's open-socket table.
func Listen(path string) (net.Listener, error) {
	ln, err := net.Listen("unix", path)
	if err == nil {
		return ln, nil
	}

	live, liveErr := pathHasListener(path)
	if liveErr != nil {
		return nil, fmt.Errorf("bind %s: %w (liveness probe failed: %v)", path, err, liveErr)
	}
	if live {
		// Another group process owns this endpoint.
		return nil, fmt.Errorf("bind %s: %w", path, err)
	}

	if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
		return nil, fmt.Errorf("remove stale socket %s: %w", path, rmErr)
	}
	ln, err = net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("bind %s after stale cleanup: %w", path, err)
	}
	return ln, nil
}

// pathHasListener reports whether any process on the system has a unix
// socket open at path. Each line of /proc/net/unix ends with the socket
// path, so a suffix match on the full line is sufficient.
func pathHasListener(path string) (bool, error) {
	f, err := os.Open(procNetUnix)
	if err != nil {
		return false, fmt.Errorf("open %s: %w", procNetUnix, err)
	}
	defer func() { _ = f.Close() }()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if strings.HasSuffix(sc.Text(), path) {
			return true, nil
		}
	}
	if err := sc.Err(); err != nil {
		return false, fmt.Errorf("scan %s: %w", procNetUnix, err)
	}
	return false, nil
}

// GroupSocketPath builds the rendezvous socket path for a group inside dir.
// The filename format is <prefix>-<group>-<token>-<arch>.sock; the token
// keeps groups with the same name in different base directories from
// colliding.
func GroupSocketPath(dir, group, token, arch string) string {
	return filepath.Join(dir, fmt.Sprintf("%s-%s-%s-%s.sock", SocketPrefix, group, token, arch))
}

// NewToken returns an opaque collision-avoidance token for socket names.
func NewToken() string {
	return strings.ToLower(ulid.Make().String())
}

// groupLabelRe captures the group name out of a socket filename stem. The
// group name itself may contain dashes, so the token and arch tag are
// matched as the last two dash-free components.
var groupLabelRe = regexp.MustCompile(`^` + SocketPrefix + `-(.*)-[^-]+-([^-]+)$`)

// DeriveGroupLabel extracts the group name from a rendezvous socket path
// for use as a log prefix. When the filename does not match the group
// socket naming scheme the unmodified stem is returned. 32-bit group
// processes get an "-x32" suffix so they can be told apart from 64-bit
// processes hosting the same group.
func DeriveGroupLabel(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	m := groupLabelRe.FindStringSubmatch(stem)
	if m == nil {
		return stem
	}
	label := m[1]
	if m[2] == "x32" {
		label += "-x32"
	}
	return label
}
