// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"spexia/internal/dsp"
)

// Publisher sends analysis frames to a consumer outside the process.
// Implementations must be safe for use by one goroutine at a time and must
// not block the caller on slow consumers.
type Publisher interface {
	Publish(frame dsp.Frame) error
	Close() error
}

// MinMagnitude floors magnitudes before log10 so silence stays finite.
const MinMagnitude = 1e-9

// ChannelSummary is the compact per-channel view of a frame.
type ChannelSummary struct {
	Magnitudes []float32 `json:"mag" msgpack:"mag"`     // log10 of the peak |X[k]| per output bin.
	Phase      []float32 `json:"phase" msgpack:"phase"` // Mean phase derivative per output bin.
	Peak       float32   `json:"peak" msgpack:"peak"`   // Peak absolute time-domain sample.
}

// Summary is what transports put on the wire.
type Summary struct {
	Seq        uint64           `json:"seq" msgpack:"seq"`
	Timestamp  int64            `json:"ts" msgpack:"ts"` // Nanoseconds since epoch.
	WindowSize int              `json:"window" msgpack:"window"`
	Channels   []ChannelSummary `json:"channels" msgpack:"channels"`
}

// Summarize reduces a frame to bins positive-frequency bins per channel.
// bins is clamped to [1, WindowSize/2]; each output bin covers
// WindowSize/2/bins transform bins.
func Summarize(frame dsp.Frame, bins int, now time.Time) Summary {
	size := frame.WindowSize()
	half := size / 2

	s := Summary{
		Seq:        frame.Seq,
		Timestamp:  now.UnixNano(),
		WindowSize: size,
		Channels:   make([]ChannelSummary, dsp.Channels),
	}
	if half == 0 {
		return s
	}
	bins = max(1, min(bins, half))
	group := half / bins
	mags := make([]float64, half)

	for ch := range dsp.Channels {
		for k := range half {
			mags[k] = cmplx.Abs(frame.Spectrum[ch][k])
		}

		cs := ChannelSummary{
			Magnitudes: make([]float32, bins),
			Phase:      make([]float32, bins),
		}
		for b := range bins {
			lo, hi := b*group, (b+1)*group
			cs.Magnitudes[b] = float32(logMagnitude(floats.Max(mags[lo:hi])))
			cs.Phase[b] = float32(stat.Mean(frame.PhaseDerivative[ch][lo:hi], nil))
		}
		cs.Peak = float32(peak(frame.TimeSamples[ch]))
		s.Channels[ch] = cs
	}
	return s
}

func logMagnitude(m float64) float64 {
	return math.Log10(max(m, MinMagnitude))
}

// peak returns the largest absolute sample.
func peak(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	return max(floats.Max(samples), -floats.Min(samples))
}

// Fanout publishes every frame to several publishers.
type Fanout []Publisher

// Publish sends frame to all publishers and joins their errors.
func (f Fanout) Publish(frame dsp.Frame) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(frame); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes all publishers and joins their errors.
func (f Fanout) Close() error {
	var errs []error
	for _, p := range f {
		if err := p.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close %T: %w", p, err))
		}
	}
	return errors.Join(errs...)
}

var _ Publisher = Fanout(nil)
