package main

import (
	"fmt"
	"os"

	"github.com/harunnryd/torque/internal/config"
	"github.com/harunnryd/torque/internal/logger"

	"github.com/spf13/cobra"
)

// skipConfigLoad marks commands that must run even when the config file is broken.
const skipConfigLoad = "torque.skip-config-load"

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "torque",
	Short: "Torque shop assistant",
	Long: `Torque runs a realtime voice assistant for an automotive repair shop.

Settings come from $HOME/.torque/config.yaml (or --config), TORQUE_* environment
variables such as TORQUE_BACKEND_BASE_URL, and flags, in increasing priority.
OPENAI_API_KEY is picked up when realtime.api_key is unset.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if _, skip := cmd.Annotations[skipConfigLoad]; skip {
			logger.Setup(config.DefaultLogLevel)
			return nil
		}

		var err error
		cfg, err = config.Load(cmd)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		logger.Setup(cfg.Log.Level)
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.torque/config.yaml)")
	rootCmd.PersistentFlags().String("log.level", config.DefaultLogLevel, "log level (debug, info, warn, error)")
}
