// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PlugBridge Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the plugbridge CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugbridge",
		Short: "plugbridge - run plugins across execution environments",
		Long: `plugbridge pairs binary plugins with proxy processes over local
sockets so plugins built for one execution environment can run inside
hosts built for another.`,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	cmd.AddCommand(NewGroupCmd())

	return cmd
}
