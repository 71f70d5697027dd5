package conversation

import (
	"context"
	"errors"
	"log/slog"

	"github.com/harunnryd/torque/internal/audio"
	"github.com/harunnryd/torque/internal/concurrency"
	torqueErrors "github.com/harunnryd/torque/internal/errors"
	"github.com/harunnryd/torque/internal/realtime"
)

// StartTalk begins a push-to-talk turn, connecting first when needed. Agent audio
// still playing is cut and the remote response truncated where it was heard.
func (c *Controller) StartTalk(ctx context.Context) error {
	if c.vad {
		return torqueErrors.InvalidInput("push-to-talk is disabled while the server detects turns")
	}

	c.life.Lock()
	defer c.life.Unlock()

	if err := c.connectLocked(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	gen, live, already := c.gen, c.status == StatusConnected, c.recording
	c.mu.Unlock()
	if !live {
		return torqueErrors.Connection("session is not connected")
	}
	if already {
		return nil
	}

	c.interrupt(gen)

	if err := c.startStreaming(gen); err != nil {
		return torqueErrors.WrapWithCategory(err, "start talk", torqueErrors.ErrRecording)
	}
	c.mu.Lock()
	c.talkGen = gen
	c.mu.Unlock()
	return nil
}

// StopTalk ends the turn and asks for a response. A turn whose session dropped
// in the meantime is reported as a recording failure.
func (c *Controller) StopTalk(ctx context.Context) error {
	if c.vad {
		return torqueErrors.InvalidInput("push-to-talk is disabled while the server detects turns")
	}

	c.life.Lock()
	defer c.life.Unlock()

	c.audio.Pause()

	c.mu.Lock()
	talkGen := c.talkGen
	gen, live := c.gen, c.status == StatusConnected
	c.talkGen = 0
	if c.recording {
		c.emit(Event{Kind: EventRecording, Recording: false})
	}
	c.recording = false
	c.mu.Unlock()

	if talkGen == 0 {
		return nil
	}
	if !live || talkGen != gen {
		err := torqueErrors.Recording("the session ended before the turn was sent")
		c.emitError(err)
		return err
	}

	c.mu.Lock()
	committed := c.sendLocked(gen, realtime.NewInputAudioCommit()) &&
		c.sendLocked(gen, realtime.NewResponseCreate())
	c.mu.Unlock()
	if !committed {
		err := torqueErrors.Recording("the turn could not be sent")
		c.emitError(err)
		return err
	}
	return nil
}

// startStreaming sends captured frames to the session of generation gen.
func (c *Controller) startStreaming(gen uint64) error {
	onFrame := func(frame []int16) { c.sendFrame(gen, frame) }
	onError := func(err error) { c.captureFailed(gen, err) }

	err := c.audio.Record(onFrame, onError)
	if errors.Is(err, audio.ErrCaptureEnded) {
		if err = c.audio.BeginCapture(context.Background()); err == nil {
			err = c.audio.Record(onFrame, onError)
		}
	}
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.recording = true
	c.emit(Event{Kind: EventRecording, Recording: true})
	c.mu.Unlock()
	return nil
}

func (c *Controller) sendFrame(gen uint64, frame []int16) {
	c.mu.Lock()
	sent := c.sendLocked(gen, realtime.NewInputAudioAppend(frame))
	c.mu.Unlock()
	if sent {
		c.metrics.FrameSent()
	}
}

// captureFailed stops recording after the microphone was lost. The session stays up.
func (c *Controller) captureFailed(gen uint64, err error) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.recording = false
	c.emit(Event{Kind: EventRecording, Recording: false})
	c.emitError(torqueErrors.WrapWithCategory(err, "capture lost", torqueErrors.ErrRecording))
	c.mu.Unlock()

	slog.Error("Capture lost", "error", err)
	concurrency.SafeGo(c.audio.Pause, nil)
}

// interrupt cuts agent playback. When something was audible it cancels the
// response and truncates that item at the heard position.
func (c *Controller) interrupt(gen uint64) (audio.Interruption, bool) {
	cut, ok := c.audio.InterruptPlayback()
	if !ok {
		return audio.Interruption{}, false
	}

	rate := int64(c.audio.SampleRate())
	if rate <= 0 {
		rate = audio.DefaultSampleRate
	}
	audioEndMs := cut.Offset * 1000 / rate

	c.mu.Lock()
	c.sendLocked(gen, realtime.NewResponseCancel())
	c.sendLocked(gen, realtime.NewItemTruncate(cut.TrackID, audioEndMs))
	if gen == c.gen {
		c.emit(Event{Kind: EventInterrupted, Interruption: &cut})
	}
	c.mu.Unlock()

	slog.Debug("Playback interrupted", "track", cut.TrackID, "offset", cut.Offset, "audio_end_ms", audioEndMs)
	return cut, true
}

// SendText adds a typed user message and asks for a response.
func (c *Controller) SendText(ctx context.Context, text string) error {
	if text == "" {
		return torqueErrors.InvalidInput("message text is empty")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != StatusConnected {
		return torqueErrors.Connection("session is not connected")
	}
	if !c.sendLocked(c.gen, realtime.NewUserText(text)) || !c.sendLocked(c.gen, realtime.NewResponseCreate()) {
		return torqueErrors.Connection("message could not be sent")
	}
	return nil
}

// DeleteItem asks the server to drop an item. The local copy goes away when the
// server confirms.
func (c *Controller) DeleteItem(ctx context.Context, id string) error {
	if id == "" {
		return torqueErrors.InvalidInput("item id is required")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != StatusConnected {
		return torqueErrors.Connection("session is not connected")
	}
	if _, ok := c.items.get(id); !ok {
		return torqueErrors.NotFound("conversation item " + id)
	}
	if !c.sendLocked(c.gen, realtime.NewItemDelete(id)) {
		return torqueErrors.Connection("delete could not be sent")
	}
	return nil
}
