// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PlugBridge Contributors

package main

import (
	"context"
	"log/slog"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/plugbridge/plugbridge/internal/bridge"
	"github.com/plugbridge/plugbridge/internal/config"
	"github.com/plugbridge/plugbridge/internal/endpoint"
	"github.com/plugbridge/plugbridge/internal/grouphost"
	"github.com/plugbridge/plugbridge/internal/logging"
	"github.com/plugbridge/plugbridge/internal/observability"
	"github.com/plugbridge/plugbridge/internal/stdio"
	"github.com/plugbridge/plugbridge/internal/xdg"
)

// NewGroupCmd creates the group subcommand.
func NewGroupCmd() *cobra.Command {
	defaults := config.DefaultGroup()

	cmd := &cobra.Command{
		Use:   "group <socket-path | group-name>",
		Short: "Run a group host process",
		Long: `Run a group host process: one worker hosting every plugin instance
assigned to a group, accepting hosting requests on the group's
rendezvous socket until the last plugin has exited.

The argument is either the full rendezvous socket path handed out by
the plugin proxy, or a bare group name for which a fresh socket is
created in the socket directory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGroup(cmd, args[0])
		},
	}

	cmd.Flags().String("socket-dir", defaults.SocketDir, "directory for group rendezvous sockets")
	cmd.Flags().String("log-format", defaults.LogFormat, "log format (json or text)")
	cmd.Flags().String("metrics-addr", defaults.MetricsAddr, "metrics/health HTTP address (empty = disabled)")
	cmd.Flags().Duration("tick-interval", defaults.TickInterval, "event loop tick interval")
	cmd.Flags().Duration("tick-floor", defaults.TickFloor, "minimum gap between event loop ticks")
	cmd.Flags().Int("pump-budget", defaults.PumpBudget, "max shared messages pumped per tick")
	cmd.Flags().Duration("grace-period", defaults.GracePeriod, "idle time before an empty group process exits")

	return cmd
}

// archTag distinguishes group processes of different word sizes hosting the
// same group name.
func archTag() string {
	if strings.HasSuffix(runtime.GOARCH, "64") {
		return "x64"
	}
	return "x32"
}

// resolveSocketPath treats target as a rendezvous socket path when it looks
// like one, and as a bare group name otherwise.
func resolveSocketPath(socketDir, target string) string {
	if strings.Contains(target, "/") || strings.HasSuffix(target, ".sock") {
		return target
	}
	return endpoint.GroupSocketPath(socketDir, target, endpoint.NewToken(), archTag())
}

func runGroup(cmd *cobra.Command, target string) error {
	cfg, err := config.LoadGroup(configFile, cmd.Flags())
	if err != nil {
		return err
	}

	if err := xdg.EnsureDir(cfg.SocketDir); err != nil {
		return err
	}
	socketPath := resolveSocketPath(cfg.SocketDir, target)
	label := endpoint.DeriveGroupLabel(socketPath)

	// Capture this process's stdout and stderr before anything can write to
	// them. Plugins and their runtime libraries print freely; every line
	// ends up in the structured log instead of a lost terminal.
	stdoutCap, err := stdio.CaptureFD(syscall.Stdout)
	if err != nil {
		return err
	}
	defer func() { _ = stdoutCap.Restore() }()
	stderrCap, err := stdio.CaptureFD(syscall.Stderr)
	if err != nil {
		return err
	}
	defer func() { _ = stderrCap.Restore() }()

	// The logger must write to the pre-capture stderr or it would be fed
	// its own output.
	logOut, err := stderrCap.OriginalWriter()
	if err != nil {
		return err
	}
	defer func() { _ = logOut.Close() }()

	logger := logging.Setup("plugbridge-group", version, cfg.LogFormat, logOut).With("group", label)
	slog.SetDefault(logger)

	go stdio.LogLines(stdoutCap.Reader(), "[STDOUT] ", logging.LineSink(logger))
	go stdio.LogLines(stderrCap.Reader(), "[STDERR] ", logging.LineSink(logger))

	ln, err := endpoint.Listen(socketPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := []grouphost.Option{
		grouphost.WithLogger(logger),
		grouphost.WithConfig(grouphost.Config{
			TickInterval: cfg.TickInterval,
			TickFloor:    cfg.TickFloor,
			PumpBudget:   cfg.PumpBudget,
			GracePeriod:  cfg.GracePeriod,
		}),
		grouphost.WithMessagePump(grouphost.NewQueuePump(256)),
	}

	var obs *observability.Server
	if cfg.MetricsAddr != "" {
		obs = observability.NewServer(cfg.MetricsAddr, nil)
		if _, err := obs.Start(); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = obs.Stop(shutdownCtx)
		}()
		opts = append(opts, grouphost.WithMetrics(obs.Metrics()))
	}

	factory := func(req bridge.HostingRequest) (bridge.Bridge, error) {
		return bridge.NewSocketBridge(req, nil)
	}

	host := grouphost.New(ln, factory, opts...)
	logger.Info("hosting group", "socket", socketPath)
	return host.Run(ctx)
}
