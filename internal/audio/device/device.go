package device

import (
	"fmt"

	"github.com/harunnryd/torque/internal/audio"
	"github.com/harunnryd/torque/internal/config"
)

// NewPipeline builds the audio pipeline for the configured device.
func NewPipeline(cfg config.AudioConfig) (*audio.Pipeline, error) {
	opts := audio.Options{
		SampleRate: cfg.PlaybackSampleRate,
		FrameSize:  cfg.FrameSize,
		FFTSize:    cfg.FFTSize,
	}
	switch cfg.Device {
	case config.AudioDeviceSystem:
		return audio.NewPipeline(NewCapture(cfg.CaptureSampleRate), NewPlayback(cfg.PlaybackSampleRate), opts), nil
	case config.AudioDeviceNone:
		return audio.NewPipeline(&audio.SilentCapture{}, audio.NewSilentPlayback(cfg.PlaybackSampleRate), opts), nil
	default:
		return nil, fmt.Errorf("unknown audio device %q", cfg.Device)
	}
}
