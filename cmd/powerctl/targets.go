//go:build !tinygo

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"powercode-go/boards"
	"powercode-go/platform"
)

var (
	boardName string
	script    string

	simCmd = &cobra.Command{
		Use:   "sim",
		Short: "Run the console against the simulated board",
		RunE: func(cmd *cobra.Command, args []string) error {
			b := boards.Sim()
			if boardName != "" {
				var err error
				if b, err = boards.Load(boardName); err != nil {
					return err
				}
			}
			hw, sm := platform.NewSim(b)
			sys, err := platform.Assemble(hw, b, nil)
			if err != nil {
				return err
			}
			return runConsole(cmd.Context(), &console{sys: sys, hw: hw, board: b, sim: sm, out: cmd.OutOrStdout()})
		},
	}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the console against real hardware (Linux)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if boardName == "" {
				return errors.New("--board is required")
			}
			b, err := boards.Load(boardName)
			if err != nil {
				return err
			}
			hw, closer, err := openHardware(b)
			if err != nil {
				return err
			}
			defer closer()
			sys, err := platform.Assemble(hw, b, nil)
			if err != nil {
				return err
			}
			return runConsole(cmd.Context(), &console{sys: sys, hw: hw, board: b, out: cmd.OutOrStdout()})
		},
	}

	boardsCmd = &cobra.Command{
		Use:   "boards",
		Short: "List known boards",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(boards.Names(), "\n"))
		},
	}
)

func init() {
	for _, c := range []*cobra.Command{simCmd, runCmd} {
		c.Flags().StringVarP(&boardName, "board", "b", "", "board name from the board table")
		c.Flags().StringVarP(&script, "script", "s", "", "read commands from this file instead of stdin")
	}
}

func runConsole(ctx context.Context, c *console) error {
	if ctx == nil {
		ctx = context.Background()
	}
	in := os.Stdin
	if script != "" {
		f, err := os.Open(script)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	return c.serve(ctx, in)
}
