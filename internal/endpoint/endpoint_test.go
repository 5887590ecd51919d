// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PlugBridge Contributors

package endpoint

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListen(t *testing.T) {
	t.Run("fresh path succeeds", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "group.sock")

		ln, err := Listen(path)
		require.NoError(t, err)
		defer func() { _ = ln.Close() }()

		// The acceptor works: a client can connect.
		conn, err := net.Dial("unix", path)
		require.NoError(t, err)
		_ = conn.Close()
	})

	t.Run("stale socket file is removed and rebound", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "group.sock")

		// Leave behind a socket file with nobody listening, the way a
		// crashed group process would.
		stale, err := net.Listen("unix", path)
		require.NoError(t, err)
		// Closing a unix listener normally unlinks the file; recreate the
		// stale artifact by hand.
		require.NoError(t, stale.Close())
		require.NoError(t, os.WriteFile(path, nil, 0o600))

		ln, err := Listen(path)
		require.NoError(t, err)
		defer func() { _ = ln.Close() }()

		conn, err := net.Dial("unix", path)
		require.NoError(t, err)
		_ = conn.Close()
	})

	t.Run("live listener is not stolen", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "group.sock")

		live, err := net.Listen("unix", path)
		require.NoError(t, err)
		defer func() { _ = live.Close() }()

		_, err = Listen(path)
		require.Error(t, err)

		// The live process's socket file must be untouched.
		_, statErr := os.Stat(path)
		assert.NoError(t, statErr)
		conn, dialErr := net.Dial("unix", path)
		require.NoError(t, dialErr)
		_ = conn.Close()
	})
}

func TestGroupSocketPath(t *testing.T) {
	path := GroupSocketPath("/tmp", "my-group", "tok123", "x64")
	assert.Equal(t, "/tmp/plugbridge-group-my-group-tok123-x64.sock", path)
}

func TestNewToken(t *testing.T) {
	a := NewToken()
	b := NewToken()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
	assert.NotContains(t, a, "-")
}

func TestDeriveGroupLabel(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{
			name: "plain group name",
			path: "/tmp/plugbridge-group-synths-01hx2abc-x64.sock",
			want: "synths",
		},
		{
			name: "group name containing dashes",
			path: "/tmp/plugbridge-group-my-old-synths-01hx2abc-x64.sock",
			want: "my-old-synths",
		},
		{
			name: "32-bit arch tag is kept visible",
			path: "/tmp/plugbridge-group-synths-01hx2abc-x32.sock",
			want: "synths-x32",
		},
		{
			name: "non-matching name falls back to the stem",
			path: "/tmp/some-other-socket.sock",
			want: "some-other-socket",
		},
		{
			name: "no extension",
			path: "/tmp/plainname",
			want: "plainname",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveGroupLabel(tt.path))
		})
	}
}

func TestDeriveGroupLabelRoundTrip(t *testing.T) {
	path := GroupSocketPath(t.TempDir(), "chorus-rack", NewToken(), "x64")
	assert.Equal(t, "chorus-rack", DeriveGroupLabel(path))
}
