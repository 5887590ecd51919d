// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PlugBridge Contributors

package stdio

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestLogLines(t *testing.T) {
	t.Run("frames strictly on newlines across chunk boundaries", func(t *testing.T) {
		pr, pw := io.Pipe()

		var lines []string
		done := make(chan struct{})
		go func() {
			defer close(done)
			LogLines(pr, "[STDOUT] ", func(line string) {
				lines = append(lines, line)
			})
		}()

		for _, chunk := range []string{"he", "llo\nworld\n"} {
			_, err := pw.Write([]byte(chunk))
			require.NoError(t, err)
		}
		require.NoError(t, pw.Close())
		<-done

		assert.Equal(t, []string{"[STDOUT] hello", "[STDOUT] world"}, lines)
	})

	t.Run("trailing fragment without newline is dropped", func(t *testing.T) {
		pr, pw := io.Pipe()

		var lines []string
		done := make(chan struct{})
		go func() {
			defer close(done)
			LogLines(pr, "", func(line string) {
				lines = append(lines, line)
			})
		}()

		_, err := pw.Write([]byte("complete\npartial"))
		require.NoError(t, err)
		require.NoError(t, pw.Close())
		<-done

		assert.Equal(t, []string{"complete"}, lines)
	})

	t.Run("empty lines are forwarded", func(t *testing.T) {
		pr, pw := io.Pipe()

		var lines []string
		done := make(chan struct{})
		go func() {
			defer close(done)
			LogLines(pr, "> ", func(line string) {
				lines = append(lines, line)
			})
		}()

		_, err := pw.Write([]byte("\n\n"))
		require.NoError(t, err)
		require.NoError(t, pw.Close())
		<-done

		assert.Equal(t, []string{"> ", "> "}, lines)
	})
}

func TestCaptureFD(t *testing.T) {
	// Captures a scratch file descriptor rather than the test process's
	// real stdout, which the test harness owns.
	openScratch := func(t *testing.T) *os.File {
		t.Helper()
		f, err := os.Create(filepath.Join(t.TempDir(), "scratch"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = f.Close() })
		return f
	}

	t.Run("writes land in the pipe while captured", func(t *testing.T) {
		f := openScratch(t)
		fd := int(f.Fd())

		c, err := CaptureFD(fd)
		require.NoError(t, err)
		defer func() { _ = c.Restore() }()

		_, err = unix.Write(fd, []byte("captured\n"))
		require.NoError(t, err)

		buf := make([]byte, 64)
		n, err := c.Reader().Read(buf)
		require.NoError(t, err)
		assert.Equal(t, "captured\n", string(buf[:n]))
	})

	t.Run("restore puts the original descriptor back", func(t *testing.T) {
		f := openScratch(t)
		fd := int(f.Fd())

		c, err := CaptureFD(fd)
		require.NoError(t, err)
		require.NoError(t, c.Restore())

		_, err = unix.Write(fd, []byte("after restore\n"))
		require.NoError(t, err)

		data, err := os.ReadFile(f.Name())
		require.NoError(t, err)
		assert.Equal(t, "after restore\n", string(data))
	})

	t.Run("restore is idempotent", func(t *testing.T) {
		f := openScratch(t)

		c, err := CaptureFD(int(f.Fd()))
		require.NoError(t, err)
		require.NoError(t, c.Restore())
		require.NoError(t, c.Restore())
	})

	t.Run("restore ends a running line logger", func(t *testing.T) {
		f := openScratch(t)
		fd := int(f.Fd())

		c, err := CaptureFD(fd)
		require.NoError(t, err)

		done := make(chan struct{})
		go func() {
			defer close(done)
			LogLines(c.Reader(), "", func(string) {})
		}()

		require.NoError(t, c.Restore())

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("line logger did not stop after restore")
		}
	})

	t.Run("original writer bypasses the capture", func(t *testing.T) {
		f := openScratch(t)
		fd := int(f.Fd())

		c, err := CaptureFD(fd)
		require.NoError(t, err)
		defer func() { _ = c.Restore() }()

		w, err := c.OriginalWriter()
		require.NoError(t, err)
		defer func() { _ = w.Close() }()

		_, err = w.WriteString("direct\n")
		require.NoError(t, err)

		data, err := os.ReadFile(f.Name())
		require.NoError(t, err)
		assert.Equal(t, "direct\n", string(data))
	})
}
