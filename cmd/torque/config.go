package main

import (
	_ "embed"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/harunnryd/torque/internal/config"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

//go:embed templates/config.yaml
var embeddedDefaultConfig []byte

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or create the Torque config file",
}

var configViewCmd = &cobra.Command{
	Use:   "view",
	Short: "Print the resolved configuration",
	Long:  `Print the configuration after defaults, config file, TORQUE_* variables and flags are applied. API keys and tokens are masked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		loadedCfg, err := loadConfigForCommand(cmd)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return writeConfigYAML(cmd.OutOrStdout(), redactConfigSecrets(loadedCfg))
	},
}

var configInitCmd = &cobra.Command{
	Use:         "init",
	Short:       "Write the default config to $HOME/.torque/config.yaml",
	Annotations: map[string]string{skipConfigLoad: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		force, _ := cmd.Flags().GetBool("force")
		configPath := filepath.Join(home, ".torque", "config.yaml")

		out := cmd.OutOrStdout()
		written, err := writeDefaultConfig(configPath, force)
		if err != nil {
			return err
		}
		if !written {
			fmt.Fprintf(out, "Config already exists at %s (use --force to overwrite)\n", configPath)
			return nil
		}

		fmt.Fprintf(out, "✓ Initialized config at %s\n", configPath)
		fmt.Fprintln(out, "Set OPENAI_API_KEY, point backend.base_url at the shop backend, then run 'torque run'.")
		return nil
	},
}

// writeDefaultConfig writes the embedded template unless a file exists and force is
// false. It reports whether the file was written.
func writeDefaultConfig(path string, force bool) (bool, error) {
	if _, err := os.Stat(path); err == nil && !force {
		return false, nil
	} else if err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to check config file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, fmt.Errorf("failed to create config directory: %w", err)
	}
	body := strings.TrimSpace(string(embeddedDefaultConfig)) + "\n"
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		return false, fmt.Errorf("failed to write config to %s: %w", path, err)
	}
	return true, nil
}

func writeConfigYAML(w io.Writer, c *config.Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// loadConfigForCommand reuses the config loaded by the root pre-run hook. Tests call
// RunE directly and get a fresh load.
func loadConfigForCommand(cmd *cobra.Command) (*config.Config, error) {
	if cfg != nil {
		return cfg, nil
	}
	return config.Load(cmd)
}

func redactConfigSecrets(in *config.Config) *config.Config {
	if in == nil {
		return nil
	}
	out := *in
	for _, secret := range []*string{&out.Realtime.APIKey, &out.Backend.APIToken, &out.Summarizer.APIKey} {
		*secret = maskSecret(*secret)
	}
	return &out
}

// maskSecret keeps the first and last two characters of long secrets.
func maskSecret(secret string) string {
	switch {
	case secret == "":
		return ""
	case len(secret) <= 4:
		return "****"
	default:
		return secret[:2] + strings.Repeat("*", len(secret)-4) + secret[len(secret)-2:]
	}
}

func init() {
	configInitCmd.Flags().Bool("force", false, "Overwrite an existing config file")
	configCmd.AddCommand(configViewCmd, configInitCmd)
	rootCmd.AddCommand(configCmd)
}
