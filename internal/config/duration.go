package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
)

// DurationOrDefault parses value, or defaultValue when value is blank. Zero and
// negative durations are rejected.
func DurationOrDefault(value string, defaultValue string) (time.Duration, error) {
	candidate := strings.TrimSpace(value)
	if candidate == "" {
		candidate = strings.TrimSpace(defaultValue)
	}
	if candidate == "" {
		return 0, fmt.Errorf("duration value is empty")
	}

	d, err := time.ParseDuration(candidate)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", candidate, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration %q must be positive", candidate)
	}
	return d, nil
}

// validateDurations reports every malformed duration setting, keyed by its koanf path.
func validateDurations(cfg *Config) error {
	settings := []struct {
		key, value, fallback string
	}{
		{"realtime.connect_timeout", cfg.Realtime.ConnectTimeout, DefaultRealtimeConnectTimeout},
		{"backend.timeout", cfg.Backend.Timeout, DefaultBackendTimeout},
		{"summarizer.timeout", cfg.Summarizer.Timeout, DefaultSummarizerTimeout},
		{"store.lock_timeout", cfg.Store.LockTimeout, DefaultStoreLockTimeout},
		{"store.lock_retry", cfg.Store.LockRetry, DefaultStoreLockRetry},
	}

	var result *multierror.Error
	for _, s := range settings {
		if _, err := DurationOrDefault(s.value, s.fallback); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", s.key, err))
		}
	}
	return result.ErrorOrNil()
}
