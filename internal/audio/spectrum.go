package audio

import (
	"math/cmplx"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// ring keeps the most recent samples of one signal, normalized to [-1, 1].
type ring struct {
	buf    []float64
	next   int
	filled bool
}

func newRing(n int) *ring {
	return &ring{buf: make([]float64, n)}
}

func (r *ring) write(samples []int16) {
	for _, s := range samples {
		r.buf[r.next] = float64(s) / 32768
		r.next++
		if r.next == len(r.buf) {
			r.next = 0
			r.filled = true
		}
	}
}

func (r *ring) reset() {
	clear(r.buf)
	r.next = 0
	r.filled = false
}

// snapshot returns the window in chronological order.
func (r *ring) snapshot() []float64 {
	out := make([]float64, len(r.buf))
	n := copy(out, r.buf[r.next:])
	copy(out[n:], r.buf[:r.next])
	return out
}

func (r *ring) empty() bool {
	return !r.filled && r.next == 0
}

type spectrum struct {
	mu  sync.Mutex
	fft *fourier.FFT
}

func newSpectrum(n int) *spectrum {
	return &spectrum{fft: fourier.NewFFT(n)}
}

// magnitudes runs a Hann-windowed FFT over seq and returns n/2+1 bin magnitudes.
func (s *spectrum) magnitudes(seq []float64) []float64 {
	s.mu.Lock()
	coeff := s.fft.Coefficients(nil, window.Hann(seq))
	s.mu.Unlock()

	out := make([]float64, len(coeff))
	scale := 2 / float64(len(seq))
	for i, c := range coeff {
		out[i] = cmplx.Abs(c) * scale
	}
	return out
}

func (s *spectrum) bins() int {
	return s.fft.Len()/2 + 1
}
