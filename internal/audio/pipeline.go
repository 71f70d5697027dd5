package audio

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hashicorp/go-multierror"
)

const (
	DefaultSampleRate = 24000
	DefaultFrameSize  = 2400
	DefaultFFTSize    = 1024
)

type Options struct {
	// SampleRate is the playback rate used to turn offsets into milliseconds.
	SampleRate int
	// FrameSize is the number of capture samples per delivered frame.
	FrameSize int
	FFTSize   int
}

func (o Options) withDefaults() Options {
	if o.SampleRate <= 0 {
		o.SampleRate = DefaultSampleRate
	}
	if o.FrameSize <= 0 {
		o.FrameSize = DefaultFrameSize
	}
	if o.FFTSize <= 1 {
		o.FFTSize = DefaultFFTSize
	}
	return o
}

type track struct {
	id         string
	start, end int64
}

// Pipeline couples one capture and one playback engine. Engine calls are made
// without holding mu because device callbacks re-enter through handleCapture.
type Pipeline struct {
	capture  CaptureEngine
	playback PlaybackEngine
	opts     Options
	spec     *spectrum

	life sync.Mutex

	mu          sync.Mutex
	captureLive bool
	recording   bool
	onFrame     func([]int16)
	pending     []int16
	captureWin  *ring

	playbackLive bool
	tracks       []track
	queued       int64
	history      []int16
	historyBase  int64
}

func NewPipeline(capture CaptureEngine, playback PlaybackEngine, opts Options) *Pipeline {
	opts = opts.withDefaults()
	return &Pipeline{
		capture:    capture,
		playback:   playback,
		opts:       opts,
		spec:       newSpectrum(opts.FFTSize),
		captureWin: newRing(opts.FFTSize),
	}
}

func (p *Pipeline) SampleRate() int {
	return p.opts.SampleRate
}

// BeginCapture opens the microphone. Calling it again while open is a no-op.
func (p *Pipeline) BeginCapture(ctx context.Context) error {
	p.life.Lock()
	defer p.life.Unlock()

	p.mu.Lock()
	live := p.captureLive
	p.mu.Unlock()
	if live {
		return nil
	}
	if err := p.capture.Begin(ctx); err != nil {
		return classify("begin capture", err)
	}

	p.mu.Lock()
	p.captureLive = true
	p.captureWin.reset()
	p.mu.Unlock()
	return nil
}

// EndCapture releases the microphone. Safe to call in any state.
func (p *Pipeline) EndCapture() error {
	p.life.Lock()
	defer p.life.Unlock()

	p.mu.Lock()
	if !p.captureLive {
		p.mu.Unlock()
		return nil
	}
	p.captureLive = false
	p.recording = false
	p.onFrame = nil
	p.pending = nil
	p.captureWin.reset()
	p.mu.Unlock()

	return p.capture.End()
}

// Record starts delivering frames of Options.FrameSize samples to onFrame.
// onError receives asynchronous capture failures.
func (p *Pipeline) Record(onFrame func([]int16), onError func(error)) error {
	p.life.Lock()
	defer p.life.Unlock()

	p.mu.Lock()
	if !p.captureLive {
		p.mu.Unlock()
		return ErrCaptureEnded
	}
	p.recording = true
	p.onFrame = onFrame
	p.pending = p.pending[:0]
	p.mu.Unlock()

	if err := p.capture.Record(p.handleCapture, onError); err != nil {
		p.mu.Lock()
		p.recording = false
		p.onFrame = nil
		p.mu.Unlock()
		return err
	}
	return nil
}

// Pause stops frame delivery but keeps the device open. A partial frame still
// buffered is delivered before Pause returns.
func (p *Pipeline) Pause() {
	p.life.Lock()
	defer p.life.Unlock()

	p.mu.Lock()
	if !p.recording {
		p.mu.Unlock()
		return
	}
	p.recording = false
	rest := p.pending
	p.pending = nil
	cb := p.onFrame
	p.onFrame = nil
	p.captureWin.reset()
	p.mu.Unlock()

	p.capture.Pause()
	if cb != nil && len(rest) > 0 {
		cb(rest)
	}
}

func (p *Pipeline) Recording() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.recording
}

func (p *Pipeline) handleCapture(samples []int16) {
	p.mu.Lock()
	if !p.recording || p.onFrame == nil {
		p.mu.Unlock()
		return
	}
	p.captureWin.write(samples)
	p.pending = append(p.pending, samples...)
	var frames [][]int16
	for len(p.pending) >= p.opts.FrameSize {
		frame := make([]int16, p.opts.FrameSize)
		copy(frame, p.pending)
		frames = append(frames, frame)
		p.pending = p.pending[p.opts.FrameSize:]
	}
	cb := p.onFrame
	p.mu.Unlock()

	for _, frame := range frames {
		cb(frame)
	}
}

// ConnectPlayback opens the speaker. Calling it again while open is a no-op.
func (p *Pipeline) ConnectPlayback(ctx context.Context) error {
	p.life.Lock()
	defer p.life.Unlock()

	p.mu.Lock()
	live := p.playbackLive
	p.mu.Unlock()
	if live {
		return nil
	}
	if err := p.playback.Connect(ctx); err != nil {
		return classify("connect playback", err)
	}

	p.mu.Lock()
	p.playbackLive = true
	p.resetPlaybackLocked()
	p.mu.Unlock()
	return nil
}

// ClosePlayback releases the speaker. Safe to call in any state.
func (p *Pipeline) ClosePlayback() error {
	p.life.Lock()
	defer p.life.Unlock()

	p.mu.Lock()
	if !p.playbackLive {
		p.mu.Unlock()
		return nil
	}
	p.playbackLive = false
	p.resetPlaybackLocked()
	p.mu.Unlock()

	return p.playback.Close()
}

// PushPlaybackSamples queues agent audio under trackID. Consecutive pushes for the
// same track extend it. Samples pushed while playback is closed are dropped.
func (p *Pipeline) PushPlaybackSamples(samples []int16, trackID string) {
	if len(samples) == 0 {
		return
	}
	pos := p.playback.Position()

	p.mu.Lock()
	if !p.playbackLive {
		p.mu.Unlock()
		slog.Debug("Dropping playback samples, speaker is closed", "track", trackID, "samples", len(samples))
		return
	}
	n := int64(len(samples))
	if last := len(p.tracks) - 1; last >= 0 && p.tracks[last].id == trackID && p.tracks[last].end == p.queued {
		p.tracks[last].end += n
	} else {
		p.tracks = append(p.tracks, track{id: trackID, start: p.queued, end: p.queued + n})
	}
	p.queued += n
	p.history = append(p.history, samples...)
	p.compactLocked(pos)
	p.mu.Unlock()

	p.playback.Enqueue(samples)
}

// InterruptPlayback stops the speaker and reports which track was cut and where.
// It returns false when nothing was playing.
func (p *Pipeline) InterruptPlayback() (Interruption, bool) {
	pos := p.playback.Position()

	p.mu.Lock()
	if !p.playbackLive {
		p.mu.Unlock()
		return Interruption{}, false
	}
	var (
		cut   Interruption
		found bool
	)
	for _, t := range p.tracks {
		if pos >= t.start && pos < t.end {
			cut = Interruption{TrackID: t.id, Offset: pos - t.start}
			found = true
			break
		}
	}
	p.resetPlaybackLocked()
	p.mu.Unlock()

	p.playback.Flush()
	return cut, found
}

// Playing reports whether queued audio remains unplayed.
func (p *Pipeline) Playing() bool {
	pos := p.playback.Position()
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playbackLive && pos < p.queued
}

// SampleFrequencies returns FFT magnitudes for the latest window of the chosen
// signal. The result is all zeros while that side is idle: capture paused or ended,
// playback drained or closed.
func (p *Pipeline) SampleFrequencies(which Source) []float64 {
	var seq []float64
	if which == SourcePlayback {
		seq = p.playbackWindow()
	} else {
		p.mu.Lock()
		if p.captureLive && p.recording && !p.captureWin.empty() {
			seq = p.captureWin.snapshot()
		}
		p.mu.Unlock()
	}
	if seq == nil {
		return make([]float64, p.spec.bins())
	}
	return p.spec.magnitudes(seq)
}

func (p *Pipeline) playbackWindow() []float64 {
	pos := p.playback.Position()

	p.mu.Lock()
	defer p.mu.Unlock()
	// A drained queue is idle even though the last window is still in history.
	if !p.playbackLive || pos <= 0 || pos >= p.queued {
		return nil
	}
	seq := make([]float64, p.opts.FFTSize)
	rel := int(pos - p.historyBase)
	for i := len(seq) - 1; i >= 0 && rel > 0; i-- {
		rel--
		if rel < len(p.history) {
			seq[i] = float64(p.history[rel]) / 32768
		}
	}
	return seq
}

// Release ends capture and closes playback, collecting both errors.
func (p *Pipeline) Release() error {
	var result *multierror.Error
	p.InterruptPlayback()
	if err := p.EndCapture(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := p.ClosePlayback(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

func (p *Pipeline) resetPlaybackLocked() {
	p.tracks = nil
	p.queued = 0
	p.history = nil
	p.historyBase = 0
}

// compactLocked drops history and tracks the speaker has finished with, keeping one
// FFT window behind the play head.
func (p *Pipeline) compactLocked(pos int64) {
	keepFrom := pos - int64(p.opts.FFTSize)
	if drop := keepFrom - p.historyBase; drop > 0 && drop <= int64(len(p.history)) {
		p.history = append(p.history[:0:0], p.history[drop:]...)
		p.historyBase += drop
	}
	i := 0
	for i < len(p.tracks)-1 && p.tracks[i].end <= pos {
		i++
	}
	if i > 0 {
		p.tracks = append(p.tracks[:0:0], p.tracks[i:]...)
	}
}
