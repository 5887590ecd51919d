// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PlugBridge Contributors

// Package grouphost runs one group process: a single worker hosting many
// plugin instances so a burst of plugin loads does not spawn one process
// per plugin.
//
// Everything the host platform requires to happen on one thread identity
// (bridge construction, native event servicing, message pumping, bridge
// teardown) runs on the main loop, which locks itself to an OS thread.
// Each hosted plugin additionally gets one goroutine that does nothing but
// block on that plugin's control protocol socket.
package grouphost

import (
	"context"
	"log/slog"
	"net"
	"runtime"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/plugbridge/plugbridge/internal/bridge"
)

// Config tunes the group host's loops.
type Config struct {
	// TickInterval is the event loop period.
	TickInterval time.Duration
	// TickFloor is the minimum gap between ticks, bounding the catch-up
	// burst after a long stall.
	TickFloor time.Duration
	// PumpBudget caps the number of shared messages drained per tick.
	PumpBudget int
	// GracePeriod is how long an empty registry must stay empty before the
	// process shuts down. Plugin scans load and unload plugins in quick
	// succession; the grace period lets them reuse one process.
	GracePeriod time.Duration
}

// DefaultConfig returns the production tuning: roughly 30 ticks per
// second, two seconds of shutdown grace.
func DefaultConfig() Config {
	return Config{
		TickInterval: time.Second / 30,
		TickFloor:    5 * time.Millisecond,
		PumpBudget:   20,
		GracePeriod:  2 * time.Second,
	}
}

// Host coordinates one group process: it accepts hosting requests on the
// group's rendezvous listener, owns the registry of live plugins, drives
// the cooperative event loop, and shuts the process down once the last
// plugin has been gone for the grace period.
type Host struct {
	cfg     Config
	logger  *slog.Logger
	ln      net.Listener
	factory bridge.Factory
	pump    MessagePump
	metrics *Metrics

	reg *registry

	conns     chan net.Conn
	acceptErr chan error
	tasks     chan func()
	rearm     chan struct{}

	quit     chan struct{}
	stopOnce sync.Once
}

// Option configures the Host.
type Option func(*Host)

// WithLogger sets the host's logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Host) { h.logger = l }
}

// WithConfig overrides the default tuning.
func WithConfig(cfg Config) Option {
	return func(h *Host) { h.cfg = cfg }
}

// WithMessagePump sets the shared windowing message pump.
func WithMessagePump(p MessagePump) Option {
	return func(h *Host) { h.pump = p }
}

// WithMetrics attaches Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(h *Host) { h.metrics = m }
}

// New creates a group host serving hosting requests from ln. The factory
// is called on the main loop thread once per accepted request.
func New(ln net.Listener, factory bridge.Factory, opts ...Option) *Host {
	h := &Host{
		cfg:       DefaultConfig(),
		logger:    slog.Default(),
		ln:        ln,
		factory:   factory,
		pump:      NopPump{},
		reg:       newRegistry(),
		conns:     make(chan net.Conn),
		acceptErr: make(chan error, 1),
		tasks:     make(chan func()),
		rearm:     make(chan struct{}, 1),
		quit:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ActivePlugins returns the number of plugin instances currently hosted.
func (h *Host) ActivePlugins() int {
	return h.reg.size()
}

// SkipMessageLoop reports whether any hosted plugin has asked for message
// pumping to be suppressed this tick.
func (h *Host) SkipMessageLoop() bool {
	return h.reg.anySkipMessageLoop()
}

// Stop asks the main loop to retire. In-flight plugin dispatch calls are
// not interrupted; the process-level teardown is the only cancellation the
// host knows.
func (h *Host) Stop() {
	h.stopOnce.Do(func() { close(h.quit) })
}

// Run drives the main loop until the context is cancelled, Stop is called,
// the accept loop fails, or the last plugin has been gone for the grace
// period. It locks itself to an OS thread: the host platform requires that
// plugin construction, message servicing and teardown all share one thread
// identity.
func (h *Host) Run(ctx context.Context) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer h.Stop()

	go h.acceptLoop()

	// Closing the listener unblocks the accept loop when we retire.
	defer func() { _ = h.ln.Close() }()

	tick := time.NewTimer(h.cfg.TickInterval)
	defer tick.Stop()
	deadline := time.Now().Add(h.cfg.TickInterval)

	// Armed on every plugin exit; drained and re-armed last-writer-wins.
	shutdown := time.NewTimer(time.Hour)
	if !shutdown.Stop() {
		<-shutdown.C
	}
	defer shutdown.Stop()

	h.logger.Info("group host is up and running, now accepting incoming connections")

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-h.quit:
			return nil

		case err := <-h.acceptErr:
			// The rendezvous endpoint is the process's reason to exist;
			// without it there is no degraded mode.
			h.logger.Error("error while listening for incoming connections", "error", err)
			return oops.Code("ACCEPT_FAILED").Wrap(err)

		case conn := <-h.conns:
			h.onboard(conn)

		case fn := <-h.tasks:
			fn()

		case <-h.rearm:
			// A plugin exited. Arming cancels any earlier outstanding
			// deadline: only the most recent exit matters.
			if !shutdown.Stop() {
				select {
				case <-shutdown.C:
				default:
				}
			}
			shutdown.Reset(h.cfg.GracePeriod)

		case <-shutdown.C:
			if h.reg.size() == 0 {
				h.logger.Info("all plugins have exited, shutting down the group process")
				return nil
			}

		case <-tick.C:
			deadline = h.tick(deadline)
			tick.Reset(time.Until(deadline))
		}
	}
}
