// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PlugBridge Contributors

package grouphost

import (
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/plugbridge/plugbridge/internal/bridge"
)

// acceptLoop blocks on the group listener and hands accepted connections to
// the main loop. A transport-level accept failure is fatal to the process
// unless it is the listener being closed during normal teardown.
func (h *Host) acceptLoop() {
	for {
		conn, err := h.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			select {
			case h.acceptErr <- err:
			case <-h.quit:
			}
			return
		}

		select {
		case h.conns <- conn:
		case <-h.quit:
			_ = conn.Close()
			return
		}
	}
}

// onboard runs one accept cycle on the main loop thread: read the request,
// reply with this process's identity, construct the bridge, register it and
// start its dispatch runner. A plugin that fails to initialize is logged
// and dropped; it must not take down the plugins already hosted here.
func (h *Host) onboard(conn net.Conn) {
	req, err := bridge.ReadRequest(conn)
	if err != nil {
		h.logger.Warn("dropping connection with unreadable hosting request", "error", err)
		_ = conn.Close()
		return
	}

	// Reply before constructing the plugin. The requester uses the PID to
	// tell "coordinator unreachable" apart from "coordinator reachable but
	// the plugin crashed it during initialization".
	if err := bridge.WriteResponse(conn, bridge.HostingResponse{PID: os.Getpid()}); err != nil {
		h.logger.Warn("dropping connection after failed hosting response", "error", err)
		_ = conn.Close()
		return
	}
	_ = conn.Close()

	// Endpoint names are generated to be unique per plugin instance, so a
	// duplicate key means the naming scheme upstream is broken. That is a
	// contract violation, not a runtime condition to recover from.
	if h.reg.contains(req) {
		panic(fmt.Sprintf("grouphost: duplicate hosting request already registered: %s", req))
	}

	h.logger.Info("received request to host plugin",
		"plugin", req.PluginPath,
		"endpoint_base_dir", req.EndpointBaseDir)

	e := &entry{done: make(chan struct{})}

	br, err := h.factory(req)
	if err != nil {
		h.logger.Error("error while initializing plugin",
			"plugin", req.PluginPath,
			"error", err)
		h.countRequest("error")
		return
	}
	e.bridge = br
	h.logger.Info("finished initializing plugin", "plugin", req.PluginPath)

	if !h.reg.insert(req, e) {
		panic(fmt.Sprintf("grouphost: duplicate hosting request already registered: %s", req))
	}
	h.countRequest("ok")
	if h.metrics != nil {
		h.metrics.ActivePlugins.Inc()
	}

	go h.runDispatch(req, e)
}

// runDispatch is the dispatch runner: it blocks on the plugin's own control
// protocol socket until the plugin exits, then hands removal back to the
// main loop. Releasing native plugin resources must happen on the thread
// identity the plugin was constructed on, so the dispatch goroutine never
// mutates the registry itself.
func (h *Host) runDispatch(req bridge.HostingRequest, e *entry) {
	defer close(e.done)

	if err := e.bridge.HandleDispatch(); err != nil {
		h.logger.Warn("plugin dispatch ended with error",
			"plugin", req.PluginPath,
			"error", err)
	}
	h.logger.Info("plugin has exited", "plugin", req.PluginPath)

	h.post(func() {
		h.reg.remove(req)
		if err := e.bridge.Close(); err != nil {
			h.logger.Warn("error while closing plugin bridge",
				"plugin", req.PluginPath,
				"error", err)
		}
		if h.metrics != nil {
			h.metrics.ActivePlugins.Dec()
		}
	})

	// Defer actually shutting the process down so that a scan loading
	// plugins back to back can reuse this process.
	select {
	case h.rearm <- struct{}{}:
	default:
	}
}

// post schedules fn onto the main loop. Dropped when the host has already
// retired, in which case the process is exiting anyway.
func (h *Host) post(fn func()) {
	select {
	case h.tasks <- fn:
	case <-h.quit:
	}
}

func (h *Host) countRequest(status string) {
	if h.metrics != nil {
		h.metrics.HostingRequests.WithLabelValues(status).Inc()
	}
}
