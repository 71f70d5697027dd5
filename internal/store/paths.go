package store

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/harunnryd/torque/internal/config"
)

// ResolveTranscriptDir resolves the configured archive directory.
// If empty, it falls back to ~/.torque/transcripts.
func ResolveTranscriptDir(dir string) (string, error) {
	if trimmed := strings.TrimSpace(dir); trimmed != "" {
		return config.ExpandPath(trimmed)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".torque", "transcripts"), nil
}

func transcriptPath(dir, id string) string {
	return filepath.Join(dir, id+".json")
}

func indexPath(dir string) string {
	return filepath.Join(dir, "index.json")
}
