// Package device binds the audio pipeline to real hardware: malgo (miniaudio) for
// the microphone and oto for the speaker.
package device

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gen2brain/malgo"

	torqueErrors "github.com/harunnryd/torque/internal/errors"
)

const periodMillis = 20

// Capture records PCM16 mono from the default input device.
type Capture struct {
	SampleRate int

	mu       sync.Mutex
	mctx     *malgo.AllocatedContext
	device   *malgo.Device
	onFrame  func([]int16)
	onError  func(error)
	stopping bool
}

func NewCapture(sampleRate int) *Capture {
	return &Capture{SampleRate: sampleRate}
}

func (c *Capture) Begin(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device != nil {
		return nil
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{ThreadPriority: malgo.ThreadPriorityRealtime}, nil)
	if err != nil {
		return deviceError("init audio context", err)
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = 1
	cfg.SampleRate = uint32(c.SampleRate)
	cfg.PeriodSizeInMilliseconds = periodMillis

	device, err := malgo.InitDevice(mctx.Context, cfg, malgo.DeviceCallbacks{
		Data: c.onData,
		Stop: c.onStop,
	})
	if err != nil {
		_ = mctx.Uninit()
		mctx.Free()
		return deviceError("init microphone", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		_ = mctx.Uninit()
		mctx.Free()
		return deviceError("start microphone", err)
	}

	c.mctx = mctx
	c.device = device
	c.stopping = false
	slog.Debug("Microphone started", "sample_rate", c.SampleRate)
	return nil
}

func (c *Capture) Record(onFrame func([]int16), onError func(error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return torqueErrors.Recording("microphone is not open")
	}
	c.onFrame = onFrame
	c.onError = onError
	return nil
}

func (c *Capture) Pause() {
	c.mu.Lock()
	c.onFrame = nil
	c.mu.Unlock()
}

func (c *Capture) End() error {
	c.mu.Lock()
	device, mctx := c.device, c.mctx
	c.device, c.mctx = nil, nil
	c.onFrame, c.onError = nil, nil
	c.stopping = true
	c.mu.Unlock()

	if device == nil {
		return nil
	}
	var err error
	if stopErr := device.Stop(); stopErr != nil {
		err = fmt.Errorf("stop microphone: %w", stopErr)
	}
	device.Uninit()
	if mctx != nil {
		_ = mctx.Uninit()
		mctx.Free()
	}
	return err
}

func (c *Capture) onData(_, input []byte, _ uint32) {
	c.mu.Lock()
	cb := c.onFrame
	c.mu.Unlock()
	if cb == nil || len(input) < 2 {
		return
	}
	cb(decodePCM16(input))
}

func (c *Capture) onStop() {
	c.mu.Lock()
	expected := c.stopping
	cb := c.onError
	c.mu.Unlock()
	if !expected && cb != nil {
		cb(torqueErrors.Recording("microphone stopped"))
	}
}

func decodePCM16(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return out
}

// deviceError sorts a miniaudio failure into permission vs init.
func deviceError(op string, err error) error {
	if errors.Is(err, malgo.ErrAccessDenied) {
		return torqueErrors.AudioPermission(fmt.Sprintf("%s: %v", op, err))
	}
	return torqueErrors.AudioInit(fmt.Sprintf("%s: %v", op, err))
}
