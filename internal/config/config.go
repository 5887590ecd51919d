// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PlugBridge Contributors

// Package config loads group host configuration from an optional YAML file
// with command line flags taking precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/plugbridge/plugbridge/internal/xdg"
)

// Group holds the tunables of one group host process.
type Group struct {
	// SocketDir is where group rendezvous sockets live.
	SocketDir string `koanf:"socket_dir"`
	// LogFormat is "json" or "text".
	LogFormat string `koanf:"log_format"`
	// MetricsAddr is the observability HTTP listen address; empty disables it.
	MetricsAddr string `koanf:"metrics_addr"`
	// TickInterval is the event loop period.
	TickInterval time.Duration `koanf:"tick_interval"`
	// TickFloor is the minimum gap between event loop ticks.
	TickFloor time.Duration `koanf:"tick_floor"`
	// PumpBudget caps shared messages drained per tick.
	PumpBudget int `koanf:"pump_budget"`
	// GracePeriod is how long the process lingers after its last plugin exits.
	GracePeriod time.Duration `koanf:"grace_period"`
}

// DefaultGroup returns the built-in defaults.
func DefaultGroup() Group {
	return Group{
		SocketDir:    xdg.RuntimeDir(),
		LogFormat:    "json",
		MetricsAddr:  "",
		TickInterval: time.Second / 30,
		TickFloor:    5 * time.Millisecond,
		PumpBudget:   20,
		GracePeriod:  2 * time.Second,
	}
}

// Validate checks that the configuration is usable.
func (g Group) Validate() error {
	if g.LogFormat != "json" && g.LogFormat != "text" {
		return fmt.Errorf("log_format must be 'json' or 'text', got %q", g.LogFormat)
	}
	if g.TickInterval <= 0 {
		return fmt.Errorf("tick_interval must be positive, got %s", g.TickInterval)
	}
	if g.TickFloor < 0 {
		return fmt.Errorf("tick_floor must not be negative, got %s", g.TickFloor)
	}
	if g.PumpBudget <= 0 {
		return fmt.Errorf("pump_budget must be positive, got %d", g.PumpBudget)
	}
	if g.GracePeriod <= 0 {
		return fmt.Errorf("grace_period must be positive, got %s", g.GracePeriod)
	}
	return nil
}

// LoadGroup builds the group configuration: defaults, then the YAML file at
// path (skipped when path is empty; missing files are an error because the
// operator asked for them explicitly), then any flags changed on the
// command line.
func LoadGroup(path string, flags *pflag.FlagSet) (Group, error) {
	cfg := DefaultGroup()

	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Group{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if flags != nil {
		// Flag names use dashes, config keys use underscores.
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return Group{}, fmt.Errorf("load flags: %w", err)
		}
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return Group{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Group{}, err
	}
	return cfg, nil
}
