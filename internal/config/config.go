package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/cobra"
)

type Config struct {
	Log        LogConfig        `koanf:"log"`
	Realtime   RealtimeConfig   `koanf:"realtime"`
	Audio      AudioConfig      `koanf:"audio"`
	Backend    BackendConfig    `koanf:"backend"`
	Prompts    PromptsConfig    `koanf:"prompts"`
	Tools      ToolsConfig      `koanf:"tools"`
	Summarizer SummarizerConfig `koanf:"summarizer"`
	Store      StoreConfig      `koanf:"store"`
	Metrics    MetricsConfig    `koanf:"metrics"`
}

type LogConfig struct {
	Level string `koanf:"level"`
}

type RealtimeConfig struct {
	URL                string `koanf:"url"`
	Model              string `koanf:"model"`
	APIKey             string `koanf:"api_key"`
	Voice              string `koanf:"voice"`
	TurnDetection      string `koanf:"turn_detection"`
	TranscriptionModel string `koanf:"transcription_model"`
	ConnectTimeout     string `koanf:"connect_timeout"`
	AutoReconnect      bool   `koanf:"auto_reconnect"`
}

type AudioConfig struct {
	Device             string `koanf:"device"`
	CaptureSampleRate  int    `koanf:"capture_sample_rate"`
	PlaybackSampleRate int    `koanf:"playback_sample_rate"`
	FrameSize          int    `koanf:"frame_size"`
	FFTSize            int    `koanf:"fft_size"`
}

type BackendConfig struct {
	BaseURL  string `koanf:"base_url"`
	Timeout  string `koanf:"timeout"`
	APIToken string `koanf:"api_token"`
}

type PromptsConfig struct {
	Base         string `koanf:"base"`
	ToolGuidance string `koanf:"tool_guidance"`
}

type ToolsConfig struct {
	DescriptorPath   string `koanf:"descriptor_path"`
	MaxFeedbackChars int    `koanf:"max_feedback_chars"`
}

type SummarizerConfig struct {
	Provider string `koanf:"provider"`
	Model    string `koanf:"model"`
	APIKey   string `koanf:"api_key"`
	BaseURL  string `koanf:"base_url"`
	Timeout  string `koanf:"timeout"`
	MaxChars int    `koanf:"max_chars"`
}

type StoreConfig struct {
	TranscriptDir string `koanf:"transcript_dir"`
	LockTimeout   string `koanf:"lock_timeout"`
	LockRetry     string `koanf:"lock_retry"`
}

type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

const (
	TurnDetectionServerVAD = "server_vad"
	TurnDetectionManual    = "manual"

	AudioDeviceSystem = "system"
	AudioDeviceNone   = "none"

	SummarizerNone      = "none"
	SummarizerOpenAI    = "openai"
	SummarizerAnthropic = "anthropic"
	SummarizerGemini    = "gemini"
)

const (
	DefaultLogLevel                   = "info"
	DefaultRealtimeURL                = "wss://api.openai.com/v1/realtime"
	DefaultRealtimeModel              = "gpt-4o-realtime-preview"
	DefaultRealtimeVoice              = "alloy"
	DefaultRealtimeTurnDetection      = TurnDetectionManual
	DefaultRealtimeTranscriptionModel = "whisper-1"
	DefaultRealtimeConnectTimeout     = "15s"
	DefaultRealtimeAutoReconnect      = true
	DefaultAudioDevice                = AudioDeviceSystem
	DefaultAudioSampleRate            = 24000
	DefaultAudioFrameSize             = 2400
	DefaultAudioFFTSize               = 1024
	DefaultBackendBaseURL             = "http://localhost:8000/api"
	DefaultBackendTimeout             = "10s"
	DefaultBasePrompt                 = "You are the service-desk assistant of an automotive repair shop. Speak briefly and clearly. Help the technician look up customers, manage vehicles, invoices and notes, and research diagnostic trouble codes."
	DefaultToolGuidancePrompt         = "Use the provided tools for every lookup or change instead of guessing. Confirm destructive actions (deletes) before calling the tool. When a tool reports that results are already displayed, summarize them instead of calling it again. If a tool fails, explain the failure and ask how to proceed."
	DefaultToolsMaxFeedbackChars      = 1200
	DefaultSummarizerProvider         = SummarizerNone
	DefaultSummarizerModel            = "gpt-4o-mini"
	DefaultSummarizerTimeout          = "20s"
	DefaultSummarizerMaxChars         = 600
	DefaultStoreLockTimeout           = "10s"
	DefaultStoreLockRetry             = "50ms"
)

func Load(cmd *cobra.Command) (*Config, error) {
	k := koanf.New(".")

	// Hardcoded Defaults
	defaults := map[string]interface{}{
		"log.level":                    DefaultLogLevel,
		"realtime.url":                 DefaultRealtimeURL,
		"realtime.model":               DefaultRealtimeModel,
		"realtime.voice":               DefaultRealtimeVoice,
		"realtime.turn_detection":      DefaultRealtimeTurnDetection,
		"realtime.transcription_model": DefaultRealtimeTranscriptionModel,
		"realtime.connect_timeout":     DefaultRealtimeConnectTimeout,
		"realtime.auto_reconnect":      DefaultRealtimeAutoReconnect,
		"audio.device":                 DefaultAudioDevice,
		"audio.capture_sample_rate":    DefaultAudioSampleRate,
		"audio.playback_sample_rate":   DefaultAudioSampleRate,
		"audio.frame_size":             DefaultAudioFrameSize,
		"audio.fft_size":               DefaultAudioFFTSize,
		"backend.base_url":             DefaultBackendBaseURL,
		"backend.timeout":              DefaultBackendTimeout,
		"prompts.base":                 DefaultBasePrompt,
		"prompts.tool_guidance":        DefaultToolGuidancePrompt,
		"tools.max_feedback_chars":     DefaultToolsMaxFeedbackChars,
		"summarizer.provider":          DefaultSummarizerProvider,
		"summarizer.model":             DefaultSummarizerModel,
		"summarizer.timeout":           DefaultSummarizerTimeout,
		"summarizer.max_chars":         DefaultSummarizerMaxChars,
		"store.transcript_dir":         filepath.Join(os.Getenv("HOME"), ".torque", "transcripts"),
		"store.lock_timeout":           DefaultStoreLockTimeout,
		"store.lock_retry":             DefaultStoreLockRetry,
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	// Config file loading
	configPath := ""
	if cmd != nil {
		if flag := cmd.Flags().Lookup("config"); flag != nil {
			configPath = strings.TrimSpace(flag.Value.String())
		}
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, err
		}
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			globalPath := filepath.Join(home, ".torque", "config.yaml")
			if err := k.Load(file.Provider(globalPath), yaml.Parser()); err != nil {
				slog.Debug("Global config not found or invalid", "path", globalPath, "error", err)
			}
		}
	}

	// Environment Variables
	k.Load(env.Provider("TORQUE_", ".", func(s string) string {
		return envKey(strings.TrimPrefix(s, "TORQUE_"))
	}), nil)

	// CLI Flags
	if cmd != nil {
		k.Load(posflag.Provider(cmd.Flags(), ".", k), nil)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	if err := normalizePathFields(&cfg); err != nil {
		return nil, err
	}
	if err := validateDurations(&cfg); err != nil {
		return nil, err
	}

	// Post-Process: Inject standard Env Vars if missing
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		if cfg.Realtime.APIKey == "" {
			cfg.Realtime.APIKey = key
		}
		if cfg.Summarizer.Provider == SummarizerOpenAI && cfg.Summarizer.APIKey == "" {
			cfg.Summarizer.APIKey = key
		}
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		if cfg.Summarizer.Provider == SummarizerAnthropic && cfg.Summarizer.APIKey == "" {
			cfg.Summarizer.APIKey = key
		}
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		if cfg.Summarizer.Provider == SummarizerGemini && cfg.Summarizer.APIKey == "" {
			cfg.Summarizer.APIKey = key
		}
	}

	return &cfg, nil
}

// envKey maps TORQUE_REALTIME_API_KEY style suffixes onto koanf paths. Only the first
// underscore separates the section; the rest belong to the field name.
func envKey(suffix string) string {
	lower := strings.ToLower(suffix)
	section, field, ok := strings.Cut(lower, "_")
	if !ok {
		return lower
	}
	return section + "." + field
}

// VADEnabled reports whether the remote side decides turn boundaries.
func (c RealtimeConfig) VADEnabled() bool {
	return strings.EqualFold(strings.TrimSpace(c.TurnDetection), TurnDetectionServerVAD)
}

func normalizePathFields(cfg *Config) error {
	if cfg == nil {
		return nil
	}

	transcriptDir, err := expandConfiguredPath(cfg.Store.TranscriptDir)
	if err != nil {
		return err
	}
	if transcriptDir != "" {
		cfg.Store.TranscriptDir = transcriptDir
	}

	descriptorPath, err := expandConfiguredPath(cfg.Tools.DescriptorPath)
	if err != nil {
		return err
	}
	if descriptorPath != "" {
		cfg.Tools.DescriptorPath = descriptorPath
	}

	return nil
}

func expandConfiguredPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	return ExpandPath(trimmed)
}
