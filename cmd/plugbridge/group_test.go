// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PlugBridge Contributors

package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRootCmd(t *testing.T) {
	cmd := NewRootCmd()

	names := make([]string, 0)
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.Contains(t, names, "group")
}

func TestNewGroupCmdFlags(t *testing.T) {
	cmd := NewGroupCmd()

	for _, name := range []string{
		"socket-dir", "log-format", "metrics-addr",
		"tick-interval", "tick-floor", "pump-budget", "grace-period",
	} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "missing flag %s", name)
	}
}

func TestResolveSocketPath(t *testing.T) {
	t.Run("socket paths pass through", func(t *testing.T) {
		path := "/tmp/plugbridge-group-synths-tok-x64.sock"
		assert.Equal(t, path, resolveSocketPath("/var/run", path))
	})

	t.Run("relative sock filename passes through", func(t *testing.T) {
		assert.Equal(t, "custom.sock", resolveSocketPath("/var/run", "custom.sock"))
	})

	t.Run("bare group name gets a generated socket path", func(t *testing.T) {
		path := resolveSocketPath("/var/run", "synths")
		require.True(t, strings.HasPrefix(path, "/var/run/plugbridge-group-synths-"))
		require.True(t, strings.HasSuffix(path, ".sock"))

		// Tokens keep two hosts of the same group apart.
		assert.NotEqual(t, path, resolveSocketPath("/var/run", "synths"))
	})
}

func TestArchTag(t *testing.T) {
	tag := archTag()
	assert.Contains(t, []string{"x32", "x64"}, tag)
}
