package main

import (
	"fmt"

	"github.com/harunnryd/torque/internal/tool"

	"github.com/spf13/cobra"
)

// discardMemory satisfies set_memory when tools are only being listed.
type discardMemory struct{}

func (discardMemory) SetMemory(string, string) {}

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tools offered to the assistant",
	Long:  `List the built-in tools with descriptor overrides applied. Use --output yaml to print a descriptor file you can edit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		loadedCfg, err := loadConfigForCommand(cmd)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		client, err := newBackend(loadedCfg)
		if err != nil {
			return fmt.Errorf("failed to initialize backend client: %w", err)
		}
		descriptors, err := tool.LoadDescriptors(loadedCfg.Tools.DescriptorPath)
		if err != nil {
			return err
		}

		registry := tool.NewRegistry()
		if err := toolSetup(client, descriptors)(registry, discardMemory{}); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		output, _ := cmd.Flags().GetString("output")
		switch output {
		case "yaml":
			data, err := registry.MarshalDescriptors()
			if err != nil {
				return fmt.Errorf("failed to encode descriptors: %w", err)
			}
			_, err = out.Write(data)
			return err
		case "", "table":
			fmt.Fprintln(out, newTableFormatter().FormatTools(registry.Definitions()))
			return nil
		default:
			return fmt.Errorf("unknown output format %q (table, yaml)", output)
		}
	},
}

func init() {
	toolsCmd.Flags().StringP("output", "o", "table", "Output format (table, yaml)")
	rootCmd.AddCommand(toolsCmd)
}
