package device

import (
	"errors"
	"testing"

	"github.com/gen2brain/malgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harunnryd/torque/internal/config"
	torqueErrors "github.com/harunnryd/torque/internal/errors"
)

func TestDecodePCM16(t *testing.T) {
	got := decodePCM16([]byte{0x01, 0x00, 0xff, 0xff, 0x00, 0x80, 0x7f})
	assert.Equal(t, []int16{1, -1, -32768}, got)
}

func TestDeviceErrorSeparatesPermission(t *testing.T) {
	err := deviceError("init microphone", malgo.ErrAccessDenied)
	assert.ErrorIs(t, err, torqueErrors.ErrAudioPermission)

	err = deviceError("init microphone", errors.New("no backend"))
	assert.ErrorIs(t, err, torqueErrors.ErrAudioInit)
	assert.Contains(t, err.Error(), "init microphone")
}

func TestNewPipelineSelectsDevice(t *testing.T) {
	cfg := config.AudioConfig{Device: config.AudioDeviceNone, PlaybackSampleRate: 24000}
	p, err := NewPipeline(cfg)
	require.NoError(t, err)
	assert.Equal(t, 24000, p.SampleRate())

	cfg.Device = "bluetooth"
	_, err = NewPipeline(cfg)
	require.Error(t, err)
}

func TestCaptureRecordBeforeBegin(t *testing.T) {
	err := NewCapture(24000).Record(func([]int16) {}, nil)
	assert.ErrorIs(t, err, torqueErrors.ErrRecording)
	assert.NoError(t, NewCapture(24000).End())
}
