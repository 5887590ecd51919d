// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PlugBridge Contributors

package grouphost

import (
	"time"

	"github.com/plugbridge/plugbridge/internal/bridge"
)

// tick runs one event loop iteration on the main loop thread and returns
// the next deadline. The deadline advances by a fixed interval from the
// previous one to keep a steady rate, with a floor above now so a long
// stall does not turn into a storm of catch-up ticks.
func (h *Host) tick(prev time.Time) time.Time {
	next := prev.Add(h.cfg.TickInterval)
	if floor := time.Now().Add(h.cfg.TickFloor); next.Before(floor) {
		next = floor
	}

	// Every plugin services its own native event queue every tick, whether
	// or not message pumping is suppressed.
	h.reg.forEach(func(_ bridge.HostingRequest, e *entry) {
		e.bridge.ServiceEvents()
	})

	// Pump the shared message queue unless a plugin is mid-operation on
	// something message dispatch would interrupt, like opening an editor.
	if !h.reg.anySkipMessageLoop() {
		var n int
		// Hold the registry lock while pumping so no plugin is torn down
		// under a message handler's feet mid-drain.
		h.reg.locked(func() {
			n = h.pump.Pump(h.cfg.PumpBudget)
		})
		if h.metrics != nil && n > 0 {
			h.metrics.PumpedMessages.Add(float64(n))
		}
	}

	return next
}
