package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start an interactive assistant session",
	RunE: func(cmd *cobra.Command, args []string) error {
		loadedCfg, err := loadConfigForCommand(cmd)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		signals := NewSignalHandler(context.Background())
		signals.Start()
		defer signals.Stop()

		c, err := buildComponents(signals.Context(), loadedCfg)
		if err != nil {
			return err
		}
		defer c.Stop()

		autoConnect, _ := cmd.Flags().GetBool("connect")
		repl := NewREPL(signals.Context(), c, os.Stdin, os.Stdout)
		return repl.Start(autoConnect)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().Bool("connect", false, "Connect to the assistant immediately")
	runCmd.Flags().String("audio.device", "", "Audio device (system, none)")
	runCmd.Flags().String("realtime.turn_detection", "", "Turn detection (manual, server_vad)")
	runCmd.Flags().String("metrics.addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
}
