package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ExpandPath resolves environment variables and a leading "~" in configured paths.
func ExpandPath(path string) (string, error) {
	expanded := os.ExpandEnv(strings.TrimSpace(path))
	if expanded == "" {
		return "", nil
	}
	if expanded != "~" && !strings.HasPrefix(expanded, "~/") {
		return filepath.Clean(expanded), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	if home == "" || strings.HasPrefix(home, "~") {
		return "", fmt.Errorf("HOME is not fully resolved: %q", home)
	}
	return filepath.Join(home, strings.TrimPrefix(expanded, "~")), nil
}
