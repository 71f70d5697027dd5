package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Browse archived session transcripts",
}

var sessionsListCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List archived sessions, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		loadedCfg, err := loadConfigForCommand(cmd)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		archive, err := newArchive(loadedCfg)
		if err != nil {
			return fmt.Errorf("failed to open transcript archive: %w", err)
		}

		sessions, err := archive.List()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), newTableFormatter().FormatSessions(sessions))
		return nil
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one archived transcript (a unique id prefix is enough)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		loadedCfg, err := loadConfigForCommand(cmd)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		archive, err := newArchive(loadedCfg)
		if err != nil {
			return fmt.Errorf("failed to open transcript archive: %w", err)
		}

		tr, err := archive.Load(args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(tr)
		}
		fmt.Fprintln(out, newTableFormatter().FormatTranscript(tr))
		return nil
	},
}

func init() {
	sessionsShowCmd.Flags().Bool("json", false, "Print the raw transcript JSON")
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	rootCmd.AddCommand(sessionsCmd)
}
