// Package audio owns the microphone and speaker side of a session: capture frames
// for the agent, a keyed playback queue for agent audio, and a spectrum view of both.
package audio

import (
	"context"
	"errors"

	torqueErrors "github.com/harunnryd/torque/internal/errors"
)

// Source picks which signal SampleFrequencies reads.
type Source int

const (
	SourceCapture Source = iota
	SourcePlayback
)

func (s Source) String() string {
	if s == SourcePlayback {
		return "playback"
	}
	return "capture"
}

// ErrCaptureEnded is returned by Record once EndCapture has run (or before BeginCapture).
var ErrCaptureEnded = errors.New("audio capture has ended")

// CaptureEngine is the microphone. Record delivers PCM16 mono frames until Pause or End.
type CaptureEngine interface {
	Begin(ctx context.Context) error
	Record(onFrame func([]int16), onError func(error)) error
	Pause()
	End() error
}

// PlaybackEngine is the speaker. Position reports samples played since the last
// Connect or Flush.
type PlaybackEngine interface {
	Connect(ctx context.Context) error
	Enqueue(samples []int16)
	Position() int64
	Flush()
	Close() error
}

// Interruption is where playback stopped: the track being played and the sample
// offset inside it.
type Interruption struct {
	TrackID string
	Offset  int64
}

// classify keeps permission failures distinct from every other init failure.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, torqueErrors.ErrAudioPermission) || errors.Is(err, torqueErrors.ErrAudioInit) {
		return torqueErrors.Wrap(err, op)
	}
	return torqueErrors.WrapWithCategory(err, op, torqueErrors.ErrAudioInit)
}
