// kcctl runs the keypad climate controller on a Linux host and talks to
// firmware boards over their serial shell.
package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/itohio/keyclimate/pkg/config"
)

var (
	globalConfig  string
	globalNoColor bool
	cfg           *config.Config
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "kcctl",
		Short: "Keypad-gated climate controller",
		Long: `kcctl runs the keypad-gated climate controller on a Linux host
(simulated or periph.io hardware) and talks to firmware boards over serial.

Run 'kcctl <command> --help' for details on each command.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if globalNoColor {
				color.NoColor = true
			}
			var err error
			cfg, err = config.Load(globalConfig)
			return err
		},
	}

	root.PersistentFlags().StringVarP(&globalConfig, "config", "c", "config.yaml", "configuration file (.yaml or .toml)")
	root.PersistentFlags().BoolVar(&globalNoColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newRunCmd(),
		newMonitorCmd(),
		newSendCmd(),
		newPortsCmd(),
		newHashCmd(),
		newConfigCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fail(err.Error())
		os.Exit(1)
	}
}
