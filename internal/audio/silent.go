package audio

import (
	"context"
	"sync"
	"time"
)

// SilentCapture is a microphone that never produces samples. It backs the "none"
// device and headless runs.
type SilentCapture struct {
	mu      sync.Mutex
	begun   bool
	onFrame func([]int16)
}

func (c *SilentCapture) Begin(context.Context) error {
	c.mu.Lock()
	c.begun = true
	c.mu.Unlock()
	return nil
}

func (c *SilentCapture) Record(onFrame func([]int16), _ func(error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.begun {
		return ErrCaptureEnded
	}
	c.onFrame = onFrame
	return nil
}

// Feed injects samples as if the microphone had produced them.
func (c *SilentCapture) Feed(samples []int16) {
	c.mu.Lock()
	cb := c.onFrame
	c.mu.Unlock()
	if cb != nil {
		cb(samples)
	}
}

func (c *SilentCapture) Pause() {
	c.mu.Lock()
	c.onFrame = nil
	c.mu.Unlock()
}

func (c *SilentCapture) End() error {
	c.mu.Lock()
	c.begun = false
	c.onFrame = nil
	c.mu.Unlock()
	return nil
}

// SilentPlayback discards audio but advances a play head in real time so that
// interruption offsets behave as they would on a speaker.
type SilentPlayback struct {
	SampleRate int

	mu           sync.Mutex
	now          func() time.Time
	queued       int64
	playedBefore int64
	clockStart   time.Time
}

func NewSilentPlayback(sampleRate int) *SilentPlayback {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	return &SilentPlayback{SampleRate: sampleRate, now: time.Now}
}

func (s *SilentPlayback) Connect(context.Context) error {
	s.mu.Lock()
	s.resetLocked()
	s.mu.Unlock()
	return nil
}

func (s *SilentPlayback) Enqueue(samples []int16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.positionLocked() >= s.queued {
		s.playedBefore = s.queued
		s.clockStart = s.clock()
	}
	s.queued += int64(len(samples))
}

func (s *SilentPlayback) Position() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.positionLocked()
}

func (s *SilentPlayback) Flush() {
	s.mu.Lock()
	s.resetLocked()
	s.mu.Unlock()
}

func (s *SilentPlayback) Close() error {
	s.Flush()
	return nil
}

func (s *SilentPlayback) positionLocked() int64 {
	if s.queued == 0 {
		return 0
	}
	elapsed := s.clock().Sub(s.clockStart)
	pos := s.playedBefore + int64(elapsed/time.Millisecond)*int64(s.SampleRate)/1000
	if pos > s.queued {
		return s.queued
	}
	return pos
}

func (s *SilentPlayback) resetLocked() {
	s.queued = 0
	s.playedBefore = 0
	s.clockStart = s.clock()
}

func (s *SilentPlayback) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}
