//go:build !tinygo

// Command powerctl drives the power subsystem from a terminal, either against
// the built-in simulator or against a PMIC on a Linux I2C bus.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"powercode-go/x/logx"
)

var rootCmd = &cobra.Command{
	Use:   "powerctl",
	Short: "PMIC and sleep/wake console",
	Long:  "Inspect and exercise the PMIC driver and the sleep orchestrator interactively.",
}

func main() {
	logx.Out = os.Stdout
	rootCmd.AddCommand(simCmd, runCmd, boardsCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
