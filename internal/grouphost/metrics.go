// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PlugBridge Contributors

package grouphost

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the group host's Prometheus metrics.
type Metrics struct {
	ActivePlugins   prometheus.Gauge
	HostingRequests *prometheus.CounterVec
	PumpedMessages  prometheus.Counter
}

// NewMetrics creates and registers the group host metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ActivePlugins: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "plugbridge_group_active_plugins",
			Help: "Number of plugin instances currently hosted by this group process",
		}),
		HostingRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plugbridge_group_hosting_requests_total",
				Help: "Total hosting requests received, by outcome",
			},
			[]string{"status"},
		),
		PumpedMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "plugbridge_group_pumped_messages_total",
			Help: "Total windowing messages dispatched by the event loop",
		}),
	}

	reg.MustRegister(m.ActivePlugins)
	reg.MustRegister(m.HostingRequests)
	reg.MustRegister(m.PumpedMessages)

	return m
}
