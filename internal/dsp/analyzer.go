// SPDX-License-Identifier: MIT
/*
Package dsp turns interleaved stereo samples into spectral analysis frames.

The Analyzer keeps one growable sample buffer per channel. Every time the left
buffer holds WindowSize+2 samples it transforms two overlapping windows per
channel (offset by a single sample), emits a Frame onto its queue and evicts
Stride samples from the front of each buffer, keeping WindowSize-Stride samples
of overlap for the next window.

Thread Safety:
  - A single mutex guards the buffers and the frame queue.
  - Append holds the lock for the append/transform/evict sequence.
  - Take holds the lock for one pop only.
*/
package dsp

import (
	"fmt"
	"math"
	"math/cmplx"
	"sync"

	applog "spexia/internal/log"
	"spexia/pkg/bitint"
	"spexia/pkg/fifo"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
)

// Default analysis geometry, 75% overlap between consecutive windows.
const (
	DefaultWindowSize = 2048
	DefaultStride     = 512
)

// Config controls the analyzer geometry and output policy.
type Config struct {
	WindowSize int // Transform size, power of two.
	Stride     int // Hop between consecutive windows, 0 < Stride <= WindowSize.

	// QueueCapacity bounds the frame queue, 0 for unbounded. A full queue
	// drops its oldest frame.
	QueueCapacity int

	// DrainBacklog makes Append produce every pending frame instead of at
	// most one per call.
	DrainBacklog bool

	// WindowedTimeSamples stores the tapered samples in Frame.TimeSamples
	// instead of the raw ones.
	WindowedTimeSamples bool
}

// DefaultConfig returns the default analyzer configuration.
func DefaultConfig() Config {
	return Config{
		WindowSize:   DefaultWindowSize,
		Stride:       DefaultStride,
		DrainBacklog: true,
	}
}

// Validate checks the analyzer geometry.
func (c Config) Validate() error {
	if c.WindowSize < 2 || !bitint.IsPowerOfTwo(c.WindowSize) {
		return fmt.Errorf("window size must be a power of 2 and at least 2, got %d", c.WindowSize)
	}
	if c.Stride <= 0 || c.Stride > c.WindowSize {
		return fmt.Errorf("stride must be within (0, %d], got %d", c.WindowSize, c.Stride)
	}
	if c.QueueCapacity < 0 {
		return fmt.Errorf("queue capacity must not be negative, got %d", c.QueueCapacity)
	}
	return nil
}

// Analyzer is the sliding-window spectral analyzer.
type Analyzer struct {
	cfg    Config
	half   int
	window []float64 // Immutable after creation.
	fft    *fourier.CmplxFFT

	mu      sync.Mutex
	buffers [Channels][]float64
	frames  *fifo.Queue[Frame]
	seq     uint64

	// Workspace reused across transforms, guarded by mu.
	tapered []float64
	input   []complex128
	shifted []complex128
	coeffs  []complex128 // Spectrum of the shifted window.
}

// NewAnalyzer creates an analyzer for the given configuration.
func NewAnalyzer(cfg Config) (*Analyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	applog.Infof("Analyzer: Initializing (Window: %d, Stride: %d, Queue: %d, Drain: %v)",
		cfg.WindowSize, cfg.Stride, cfg.QueueCapacity, cfg.DrainBacklog)

	a := &Analyzer{
		cfg:     cfg,
		half:    cfg.WindowSize / 2,
		window:  RaisedCosine(cfg.WindowSize),
		fft:     fourier.NewCmplxFFT(cfg.WindowSize),
		frames:  fifo.New[Frame](cfg.QueueCapacity),
		tapered: make([]float64, cfg.WindowSize),
		input:   make([]complex128, cfg.WindowSize),
		shifted: make([]complex128, cfg.WindowSize),
		coeffs:  make([]complex128, cfg.WindowSize),
	}
	for ch := range a.buffers {
		a.buffers[ch] = make([]float64, 0, cfg.WindowSize+cfg.Stride+2)
	}
	return a, nil
}

// Config returns the analyzer configuration.
func (a *Analyzer) Config() Config { return a.cfg }

// Append de-interleaves samples into the per-channel buffers and transforms
// every window that became available. Sample i of channel j is
// interleaved[2i+j]; a trailing half frame is ignored. It returns the number of
// frames produced.
func (a *Analyzer) Append(interleaved []float32) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := 0; i+Channels <= len(interleaved); i += Channels {
		for ch := range Channels {
			a.buffers[ch] = append(a.buffers[ch], float64(interleaved[i+ch]))
		}
	}

	produced := 0
	for len(a.buffers[0]) >= a.cfg.WindowSize+2 {
		a.transform()
		produced++
		if !a.cfg.DrainBacklog {
			break
		}
	}
	return produced
}

// transform computes one frame from the front of the buffers, queues it and
// evicts Stride samples. Callers hold a.mu.
func (a *Analyzer) transform() {
	size := a.cfg.WindowSize
	a.seq++
	frame := Frame{Seq: a.seq}

	for ch := range Channels {
		buf := a.buffers[ch]

		// Window A, [0, size).
		floats.MulTo(a.tapered, buf[:size], a.window)
		toComplex(a.input, a.tapered)

		timeSamples := make([]float64, size)
		if a.cfg.WindowedTimeSamples {
			copy(timeSamples, a.tapered)
		} else {
			copy(timeSamples, buf[:size])
		}

		// Window B, [1, size+1).
		floats.MulTo(a.tapered, buf[1:size+1], a.window)
		toComplex(a.shifted, a.tapered)

		spectrum := a.fft.Coefficients(make([]complex128, size), a.input)
		a.fft.Coefficients(a.coeffs, a.shifted)

		frame.Spectrum[ch] = spectrum
		frame.TimeSamples[ch] = timeSamples
		frame.PhaseDerivative[ch] = phaseDerivative(make([]float64, a.half), spectrum, a.coeffs)

		n := copy(buf, buf[a.cfg.Stride:])
		a.buffers[ch] = buf[:n]
	}

	if a.frames.Push(frame) {
		applog.Debugf("Analyzer: Frame queue full, dropped oldest frame (total dropped: %d)", a.frames.Dropped())
	}
}

// Take pops the oldest queued frame. It never waits for new data.
func (a *Analyzer) Take() (Frame, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.frames.Pop()
}

// Pending returns the number of queued frames.
func (a *Analyzer) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.frames.Len()
}

// Dropped returns the number of frames evicted from a bounded queue.
func (a *Analyzer) Dropped() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.frames.Dropped()
}

// Buffered returns the number of samples held per channel.
func (a *Analyzer) Buffered() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.buffers[0])
}

// phaseDerivative writes |arg(conj(x[k]) * y[k])| for every bin of dst. The
// argument of a zero product is taken as 0, whatever the signs of its zero
// components.
func phaseDerivative(dst []float64, x, y []complex128) []float64 {
	for k := range dst {
		p := cmplx.Conj(x[k]) * y[k]
		if p == 0 {
			dst[k] = 0
			continue
		}
		dst[k] = math.Abs(cmplx.Phase(p))
	}
	return dst
}

func toComplex(dst []complex128, src []float64) {
	for i, v := range src {
		dst[i] = complex(v, 0)
	}
}
