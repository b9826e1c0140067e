// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"github.com/Thermoquad/hircpd/internal/logging"
	"github.com/spf13/cobra"
)

var (
	configPath string
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:   "hircpd",
	Short: "HIRCP robotic hand controller",
	Long: `hircpd - controller daemon and tools for the HIRCP robotic hand protocol.

The controller accepts one client at a time, performs the HIRCP handshake and
drives five finger actuators either directly (NORMAL mode) or through the
closed-loop grasp controller (CLOSED_LOOP mode).

Commands:
  serve    run the controller
  probe    exercise a running controller as a client
  capture  print a packet capture file

Configuration is read from --config, or from the file named by the
HIRCPD_CONFIG environment variable. Flags given on the command line override
file values.`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if debug {
			logging.EnableDebug()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (YAML)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
