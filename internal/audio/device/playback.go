package device

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	torqueErrors "github.com/harunnryd/torque/internal/errors"
)

// oto supports a single context per process.
var shared struct {
	once  sync.Once
	ctx   *oto.Context
	ready chan struct{}
	rate  int
	err   error
}

func otoContext(sampleRate int) (*oto.Context, chan struct{}, error) {
	shared.once.Do(func() {
		shared.rate = sampleRate
		shared.ctx, shared.ready, shared.err = oto.NewContext(&oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: 1,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   100 * time.Millisecond,
		})
	})
	if shared.err != nil {
		return nil, nil, shared.err
	}
	if shared.rate != sampleRate {
		return nil, nil, fmt.Errorf("speaker already opened at %d Hz", shared.rate)
	}
	return shared.ctx, shared.ready, nil
}

// stream is the io.Reader one oto.Player pulls from. It is discarded on Flush.
type stream struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    []byte
	read   int64
	closed bool
}

func newStream() *stream {
	s := &stream{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *stream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.buf) == 0 && !s.closed {
		s.cond.Wait()
	}
	if len(s.buf) == 0 {
		return 0, io.EOF
	}
	n := copy(p, s.buf)
	s.buf = s.buf[n:]
	s.read += int64(n)
	return n, nil
}

func (s *stream) write(b []byte) {
	s.mu.Lock()
	s.buf = append(s.buf, b...)
	s.mu.Unlock()
	s.cond.Signal()
}

func (s *stream) bytesRead() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read
}

func (s *stream) close() {
	s.mu.Lock()
	s.closed = true
	s.buf = nil
	s.mu.Unlock()
	s.cond.Broadcast()
}

// Playback plays PCM16 mono through the default output device.
type Playback struct {
	SampleRate int

	mu     sync.Mutex
	octx   *oto.Context
	player *oto.Player
	stream *stream
}

func NewPlayback(sampleRate int) *Playback {
	return &Playback{SampleRate: sampleRate}
}

func (p *Playback) Connect(ctx context.Context) error {
	octx, ready, err := otoContext(p.SampleRate)
	if err != nil {
		return torqueErrors.AudioInit(fmt.Sprintf("init speaker: %v", err))
	}
	select {
	case <-ready:
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := octx.Resume(); err != nil {
		return torqueErrors.AudioInit(fmt.Sprintf("resume speaker: %v", err))
	}

	p.mu.Lock()
	p.octx = octx
	p.mu.Unlock()
	return nil
}

// Enqueue starts a player lazily on the first samples after Connect or Flush.
func (p *Playback) Enqueue(samples []int16) {
	b := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(b[i*2:], uint16(s))
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.octx == nil {
		return
	}
	if p.stream == nil {
		p.stream = newStream()
		p.player = p.octx.NewPlayer(p.stream)
		p.stream.write(b)
		p.player.Play()
		return
	}
	p.stream.write(b)
}

// Position is the number of samples that have left the player's buffer.
func (p *Playback) Position() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stream == nil || p.player == nil {
		return 0
	}
	played := p.stream.bytesRead() - int64(p.player.BufferedSize())
	if played < 0 {
		return 0
	}
	return played / 2
}

func (p *Playback) Flush() {
	p.mu.Lock()
	player, st := p.player, p.stream
	p.player, p.stream = nil, nil
	p.mu.Unlock()

	if st != nil {
		st.close()
	}
	if player != nil {
		player.Pause()
		_ = player.Close()
	}
}

func (p *Playback) Close() error {
	p.Flush()

	p.mu.Lock()
	octx := p.octx
	p.octx = nil
	p.mu.Unlock()
	if octx == nil {
		return nil
	}
	return octx.Suspend()
}
